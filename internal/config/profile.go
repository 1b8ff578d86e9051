package config

import (
	"github.com/corrupt0303/listingscan/internal/challenge"
	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/selector"
)

// SelectorOverrides replaces the strategies of named fields.
// Each strategy uses selector.ParseStrategy syntax:
// "css", "css @attr", "xpath:expr" or "xpath:expr @attr".
type SelectorOverrides struct {
	// Listing overrides fields of the result-card rule set.
	Listing map[string][]string `yaml:"listing,omitempty"`

	// Detail overrides fields of the detail-page rule set.
	Detail map[string][]string `yaml:"detail,omitempty"`
}

// MapperConfig holds site-mapping settings.
type MapperConfig struct {
	// Seed is the start URL used when none is given on the command line.
	Seed string `yaml:"seed,omitempty"`

	// MaxDepth overrides the global mapper depth. Zero keeps the global value.
	MaxDepth int `yaml:"maxDepth,omitempty"`

	// IgnorePatterns are URL path patterns to skip during mapping.
	// Patterns are matched against the bare target path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during mapping.
	// If specified, only URLs matching these patterns are visited.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// Profile represents the structure of the .listingscan configuration file.
// It describes one target site: where it lives, how to reach it, and how
// to read it when the markup drifts.
type Profile struct {
	// BaseURL overrides the target site origin.
	BaseURL string `yaml:"baseURL,omitempty"`

	// ProxyPrefix overrides the URL-prefix gateway.
	ProxyPrefix string `yaml:"proxyPrefix,omitempty"`

	// Cookies is the path of a JSON cookie export.
	Cookies string `yaml:"cookies,omitempty"`

	// Headers are extra HTTP headers sent with every browser request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// KeepConsentPopups turns off clicking away cookie and consent popups
	// after navigation.
	KeepConsentPopups bool `yaml:"keepConsentPopups,omitempty"`

	// Slugs is the path of a slug dataset replacing the embedded one.
	Slugs string `yaml:"slugs,omitempty"`

	// Search holds defaults applied to every query.
	Search model.SearchQuery `yaml:"search,omitempty"`

	// Selectors replaces field strategies without code changes.
	Selectors SelectorOverrides `yaml:"selectors,omitempty"`

	// Signatures are extra block markers checked after the built-in ones.
	Signatures []challenge.Signature `yaml:"signatures,omitempty"`

	// Mapper holds site-mapping settings.
	Mapper MapperConfig `yaml:"mapper,omitempty"`
}

// ListingRules returns the result-card rule set with overrides applied.
// A nil profile returns the built-in rules.
func (p *Profile) ListingRules() selector.RuleSet {
	rules := selector.ListingRules()
	if p == nil {
		return rules
	}
	return rules.Override(p.Selectors.Listing)
}

// DetailRules returns the detail-page rule set with overrides applied.
// A nil profile returns the built-in rules.
func (p *Profile) DetailRules() selector.RuleSet {
	rules := selector.DetailRules()
	if p == nil {
		return rules
	}
	return rules.Override(p.Selectors.Detail)
}

// Detector returns a block detector with the profile's extra signatures.
func (p *Profile) Detector() *challenge.Detector {
	if p == nil {
		return challenge.NewDetector()
	}
	return challenge.NewDetector(p.Signatures...)
}

// SearchDefaults returns the profile's query defaults.
func (p *Profile) SearchDefaults() model.SearchQuery {
	if p == nil {
		return model.SearchQuery{}
	}
	return p.Search
}

// ExtraHeaders returns the profile's extra request headers.
func (p *Profile) ExtraHeaders() map[string]string {
	if p == nil {
		return nil
	}
	return p.Headers
}

// DismissConsent reports whether consent popups should be clicked away.
func (p *Profile) DismissConsent() bool {
	return p == nil || !p.KeepConsentPopups
}
