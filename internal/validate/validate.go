package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/corrupt0303/listingscan/internal/selector"
)

// ErrNoFiles is returned when the directory holds no HTML files.
var ErrNoFiles = errors.New("no HTML files to validate")

// Scopes of a strategy result.
const (
	ScopeListing = "listing"
	ScopeDetail  = "detail"
)

// Status classifies a strategy over all files.
type Status string

const (
	// StatusAlways means the strategy matched in every file.
	StatusAlways Status = "ALWAYS"

	// StatusNever means the strategy matched in no file.
	StatusNever Status = "NEVER"

	// StatusSometimes means the strategy matched in some files.
	StatusSometimes Status = "SOMETIMES"
)

// StrategyResult counts the files one strategy matched.
type StrategyResult struct {
	Scope    string `json:"scope"`
	Field    string `json:"field"`
	Strategy string `json:"strategy"`
	Matched  int    `json:"matched"`
	Total    int    `json:"total"`
}

// Status returns the classification of r.
func (r StrategyResult) Status() Status {
	switch {
	case r.Total > 0 && r.Matched == r.Total:
		return StatusAlways
	case r.Matched == 0:
		return StatusNever
	default:
		return StatusSometimes
	}
}

// Label renders the status the way the summary prints it,
// e.g. "SOMETIMES (2/3)".
func (r StrategyResult) Label() string {
	if s := r.Status(); s != StatusSometimes {
		return string(s)
	}
	return fmt.Sprintf("%s (%d/%d)", StatusSometimes, r.Matched, r.Total)
}

// FieldCoverage counts the listing containers a field was resolved in.
type FieldCoverage struct {
	Field      string `json:"field"`
	Found      int    `json:"found"`
	Containers int    `json:"containers"`
}

// Ratio returns Found / Containers, or 0 without containers.
func (c FieldCoverage) Ratio() float64 {
	if c.Containers == 0 {
		return 0
	}
	return float64(c.Found) / float64(c.Containers)
}

// FileReport is the outcome for one file.
type FileReport struct {
	File       string `json:"file"`
	Containers int    `json:"containers"`

	// Missing are the detail fields the full resolver left absent.
	Missing []string `json:"missing,omitempty"`

	// Error is set when the file could not be read or parsed.
	Error string `json:"error,omitempty"`
}

// Report is the outcome of one validation run.
type Report struct {
	Dir        string           `json:"dir"`
	Files      []FileReport     `json:"files"`
	Strategies []StrategyResult `json:"strategies"`
	Coverage   []FieldCoverage  `json:"coverage"`
	Containers int              `json:"containers"`

	// Suggestions are guessed strategies for listing fields that some
	// containers left unresolved.
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// ByStatus returns the strategy results with status s.
func (r *Report) ByStatus(s Status) []StrategyResult {
	var out []StrategyResult
	for _, res := range r.Strategies {
		if res.Status() == s {
			out = append(out, res)
		}
	}
	return out
}

// Validator runs rule sets over saved pages.
type Validator struct {
	listing selector.RuleSet
	detail  selector.RuleSet
	logger  *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger for the Validator.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewValidator creates a Validator for the given rule sets.
// Empty rule sets fall back to the built-in ones.
func NewValidator(listing, detail selector.RuleSet, opts ...Option) *Validator {
	if len(listing) == 0 {
		listing = selector.ListingRules()
	}
	if len(detail) == 0 {
		detail = selector.DetailRules()
	}
	v := &Validator{listing: listing, detail: detail, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateDir validates every *.html file of dir, in name order.
func (v *Validator) ValidateDir(ctx context.Context, dir string) (*Report, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, dir)
	}
	sort.Strings(paths)

	r, err := v.ValidateFiles(ctx, paths)
	if r != nil {
		r.Dir = dir
	}
	return r, err
}

// ValidateFiles validates the given files.
// Unreadable files are reported and excluded from the totals.
func (v *Validator) ValidateFiles(ctx context.Context, paths []string) (*Report, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	results := v.newResults()
	coverage := make([]FieldCoverage, 0, len(v.listing))
	for _, rule := range v.listing {
		coverage = append(coverage, FieldCoverage{Field: rule.Field})
	}

	guesses := newSuggester(v.listing)
	report := &Report{Files: make([]FileReport, 0, len(paths))}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fr := FileReport{File: filepath.Base(path)}
		data, err := os.ReadFile(path) //nolint:gosec // User-provided snapshot path is intentional
		if err != nil {
			fr.Error = err.Error()
			report.Files = append(report.Files, fr)
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
		if err != nil {
			fr.Error = err.Error()
			report.Files = append(report.Files, fr)
			continue
		}

		v.countStrategies(doc, results)
		fr.Containers = v.countCoverage(doc, coverage, guesses)
		fr.Missing = v.missingDetailFields(doc, string(data), path)

		report.Containers += fr.Containers
		report.Files = append(report.Files, fr)
		v.logger.Debug("validated file", "file", fr.File, "containers", fr.Containers, "missing", len(fr.Missing))
	}

	for i := range coverage {
		coverage[i].Containers = report.Containers
	}
	report.Coverage = coverage
	report.Strategies = results
	report.Suggestions = guesses.suggestions()
	return report, nil
}

// newResults lists every strategy and meta name in declared order.
func (v *Validator) newResults() []StrategyResult {
	var out []StrategyResult
	for _, set := range []struct {
		scope string
		rules selector.RuleSet
	}{{ScopeListing, v.listing}, {ScopeDetail, v.detail}} {
		for _, rule := range set.rules {
			for _, s := range rule.Strategies {
				out = append(out, StrategyResult{Scope: set.scope, Field: rule.Field, Strategy: s.String()})
			}
			for _, name := range rule.Meta {
				out = append(out, StrategyResult{Scope: set.scope, Field: rule.Field, Strategy: "meta:" + name})
			}
		}
	}
	return out
}

// countStrategies runs every strategy over the whole document. results
// must come from newResults.
func (v *Validator) countStrategies(doc *goquery.Document, results []StrategyResult) {
	n := 0
	for _, rules := range []selector.RuleSet{v.listing, v.detail} {
		for _, rule := range rules {
			for _, s := range rule.Strategies {
				results[n].Total++
				if s.Count(doc.Selection) > 0 {
					results[n].Matched++
				}
				n++
			}
			for _, name := range rule.Meta {
				results[n].Total++
				if _, ok := selector.MetaContent(doc, name); ok {
					results[n].Matched++
				}
				n++
			}
		}
	}
}

// countCoverage resolves the listing rules per container and returns the
// number of containers in doc. Unresolved fields are handed to guesses.
func (v *Validator) countCoverage(doc *goquery.Document, coverage []FieldCoverage, guesses *suggester) int {
	containers := doc.Find(selector.MapContainers)
	containers.Each(func(_ int, c *goquery.Selection) {
		fields := selector.Extract(doc, c, v.listing, selector.Sources{})
		for i := range coverage {
			if fields.Has(coverage[i].Field) {
				coverage[i].Found++
				continue
			}
			guesses.observe(c, coverage[i].Field)
		}
	})
	return containers.Length()
}

// missingDetailFields resolves the detail rules over the whole document.
func (v *Validator) missingDetailFields(doc *goquery.Document, html, path string) []string {
	fields := selector.Extract(doc, doc.Selection, v.detail, selector.Sources{URL: filepath.Base(path), HTML: html})
	var missing []string
	for _, name := range v.detail.Names() {
		if !fields.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
