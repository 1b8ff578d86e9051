package selector

import (
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Tiers of the resolver, in the order they are tried.
const (
	// TierStructural is a CSS or XPath strategy scoped to the node.
	TierStructural = 1

	// TierMeta is a document <meta> tag.
	TierMeta = 2

	// TierRegex is a regular expression over free text.
	TierRegex = 3
)

// Strategy is one structural extraction attempt: a CSS selector or an
// XPath expression, in text or attribute mode.
//
// Exactly one of Selector and XPath should be set; when both are, XPath
// wins. XPath expressions are evaluated relative to the scope node, so
// scoped rules should start with ".//".
type Strategy struct {
	// Selector is a CSS selector evaluated with goquery.
	Selector string `yaml:"selector,omitempty"`

	// XPath is an XPath 1.0 expression evaluated with htmlquery.
	XPath string `yaml:"xpath,omitempty"`

	// Attr selects attribute mode. Empty means text mode.
	Attr string `yaml:"attr,omitempty"`
}

// CSS returns a text-mode CSS strategy.
func CSS(selector string) Strategy {
	return Strategy{Selector: selector}
}

// CSSAttr returns an attribute-mode CSS strategy.
func CSSAttr(selector, attr string) Strategy {
	return Strategy{Selector: selector, Attr: attr}
}

// XPath returns a text-mode XPath strategy.
func XPath(expr string) Strategy {
	return Strategy{XPath: expr}
}

// String renders the strategy the same way ParseStrategy reads it.
func (s Strategy) String() string {
	var b strings.Builder
	if s.XPath != "" {
		b.WriteString("xpath:")
		b.WriteString(s.XPath)
	} else {
		b.WriteString(s.Selector)
	}
	if s.Attr != "" {
		b.WriteString(" @")
		b.WriteString(s.Attr)
	}
	return b.String()
}

// Value returns the strategy's value on the first element it matches
// inside scope. Attribute mode needs a non-empty trimmed attribute and
// text mode a non-empty trimmed text; otherwise ok is false.
func (s Strategy) Value(scope *goquery.Selection) (string, bool) {
	if scope == nil {
		return "", false
	}

	if s.XPath != "" {
		for _, root := range scope.Nodes {
			node, err := htmlquery.Query(root, s.XPath)
			if err != nil || node == nil {
				continue
			}
			return nodeValue(node, s.Attr)
		}
		return "", false
	}

	if s.Selector == "" {
		return "", false
	}
	found := scope.Find(s.Selector).First()
	if found.Length() == 0 {
		return "", false
	}
	if s.Attr != "" {
		v, _ := found.Attr(s.Attr)
		v = strings.TrimSpace(v)
		return v, v != ""
	}
	v := CollapseSpace(found.Text())
	return v, v != ""
}

// Values returns every non-empty value of the strategy inside scope, in
// document order.
func (s Strategy) Values(scope *goquery.Selection) []string {
	if scope == nil {
		return nil
	}

	var out []string
	if s.XPath != "" {
		for _, root := range scope.Nodes {
			nodes, err := htmlquery.QueryAll(root, s.XPath)
			if err != nil {
				continue
			}
			for _, n := range nodes {
				if v, ok := nodeValue(n, s.Attr); ok {
					out = append(out, v)
				}
			}
		}
		return out
	}

	if s.Selector == "" {
		return nil
	}
	scope.Find(s.Selector).Each(func(_ int, sel *goquery.Selection) {
		var v string
		if s.Attr != "" {
			v, _ = sel.Attr(s.Attr)
			v = strings.TrimSpace(v)
		} else {
			v = CollapseSpace(sel.Text())
		}
		if v != "" {
			out = append(out, v)
		}
	})
	return out
}

// Count returns the number of elements the strategy matches inside scope.
func (s Strategy) Count(scope *goquery.Selection) int {
	if scope == nil {
		return 0
	}
	if s.XPath != "" {
		total := 0
		for _, root := range scope.Nodes {
			nodes, err := htmlquery.QueryAll(root, s.XPath)
			if err == nil {
				total += len(nodes)
			}
		}
		return total
	}
	if s.Selector == "" {
		return 0
	}
	return scope.Find(s.Selector).Length()
}

func nodeValue(n *html.Node, attr string) (string, bool) {
	var v string
	if attr != "" {
		v = strings.TrimSpace(htmlquery.SelectAttr(n, attr))
	} else {
		v = CollapseSpace(htmlquery.InnerText(n))
	}
	return v, v != ""
}

// TextPattern is a tier-3 regular expression applied to named text sources.
//
// Sources name where the text comes from: another field of the same rule
// set (for example "description"), or one of the special sources
// SourceURL, SourceHTML, SourceText.
type TextPattern struct {
	Regex   *regexp.Regexp
	Sources []string
}

// Special tier-3 sources.
const (
	// SourceURL is the navigated page URL.
	SourceURL = "@url"

	// SourceHTML is the raw page HTML.
	SourceHTML = "@html"

	// SourceText is the whitespace-collapsed document text.
	SourceText = "@text"
)

// FieldRule is the ordered extraction plan for one logical field.
//
// Tier 1 tries Strategies in declared order and the first non-empty value
// wins. Tier 2 reads <meta name|property> tags named in Meta, only when
// every strategy failed. Tier 3 runs Patterns over free text, only when
// the structural tiers produced nothing; it is driven by Extract because
// it may read other fields. No match at all means the field is absent.
type FieldRule struct {
	// Field is the logical field name, e.g. "title".
	Field string

	// Strategies are the structural attempts, precise first, broad last.
	Strategies []Strategy

	// Meta are meta tag names or properties for tier 2.
	Meta []string

	// Patterns are the tier-3 expressions, tried in order.
	Patterns []TextPattern

	// Normalize, when set, rewrites tier-1 and tier-2 values to their first
	// capture group if the expression matches; otherwise the value is kept.
	Normalize *regexp.Regexp

	// Multi collects every value across all strategies instead of the
	// first one (image lists).
	Multi bool
}

// Match is a resolved field value.
type Match struct {
	// Field is the rule's field name.
	Field string

	// Value is the resolved value; for Multi rules the first of Values.
	Value string

	// Values holds every value of a Multi rule.
	Values []string

	// Strategy describes what produced the value, e.g. "h1.app_title",
	// "meta:og:title", or "regex:description".
	Strategy string

	// Tier is TierStructural, TierMeta or TierRegex.
	Tier int
}

// Resolve runs tiers 1 and 2 of rule over scope. A nil scope means the
// whole document; a nil doc disables tier 2.
//
// The boolean is false when the field is absent, which is an expected
// outcome and never an error.
func Resolve(doc *goquery.Document, scope *goquery.Selection, rule FieldRule) (Match, bool) {
	if scope == nil && doc != nil {
		scope = doc.Selection
	}

	if rule.Multi {
		return resolveMulti(doc, scope, rule)
	}

	for _, s := range rule.Strategies {
		if v, ok := s.Value(scope); ok {
			return Match{
				Field:    rule.Field,
				Value:    rule.normalize(v),
				Strategy: s.String(),
				Tier:     TierStructural,
			}, true
		}
	}

	if doc != nil {
		for _, name := range rule.Meta {
			if v, ok := MetaContent(doc, name); ok {
				return Match{
					Field:    rule.Field,
					Value:    rule.normalize(v),
					Strategy: "meta:" + name,
					Tier:     TierMeta,
				}, true
			}
		}
	}

	return Match{Field: rule.Field}, false
}

func resolveMulti(doc *goquery.Document, scope *goquery.Selection, rule FieldRule) (Match, bool) {
	var (
		values []string
		used   []string
	)
	for _, s := range rule.Strategies {
		found := s.Values(scope)
		if len(found) == 0 {
			continue
		}
		used = append(used, s.String())
		values = appendUnique(values, found...)
	}
	if len(values) > 0 {
		return Match{
			Field:    rule.Field,
			Value:    values[0],
			Values:   values,
			Strategy: strings.Join(used, ", "),
			Tier:     TierStructural,
		}, true
	}

	if doc != nil {
		for _, name := range rule.Meta {
			found := MetaContents(doc, name)
			if len(found) == 0 {
				continue
			}
			values = appendUnique(values, found...)
			return Match{
				Field:    rule.Field,
				Value:    values[0],
				Values:   values,
				Strategy: "meta:" + name,
				Tier:     TierMeta,
			}, true
		}
	}

	return Match{Field: rule.Field}, false
}

func (r FieldRule) normalize(v string) string {
	if r.Normalize == nil {
		return v
	}
	if m := r.Normalize.FindStringSubmatch(v); len(m) > 1 && m[1] != "" {
		return m[1]
	}
	return v
}

// MetaContent returns the content of the first <meta> tag whose name or
// property equals name (case-insensitive).
func MetaContent(doc *goquery.Document, name string) (string, bool) {
	values := MetaContents(doc, name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// MetaContents returns the non-empty content of every <meta> tag whose
// name or property equals name (case-insensitive).
func MetaContents(doc *goquery.Document, name string) []string {
	if doc == nil {
		return nil
	}
	var out []string
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("name")
		if !ok || key == "" {
			key, _ = s.Attr("property")
		}
		if !strings.EqualFold(key, name) {
			return
		}
		if v := strings.TrimSpace(s.AttrOr("content", "")); v != "" {
			out = append(out, v)
		}
	})
	return out
}

// CollapseSpace trims s and collapses every run of whitespace into one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
