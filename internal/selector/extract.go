package selector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Sources carries the page-level texts available to tier-3 patterns.
type Sources struct {
	// URL is the page URL, exposed as SourceURL.
	URL string

	// HTML is the raw markup, exposed as SourceHTML.
	HTML string
}

// Fields maps field names to their resolved matches.
// Absent fields have no entry.
type Fields map[string]Match

// Get returns the value of name, or "" when absent.
func (f Fields) Get(name string) string {
	return f[name].Value
}

// Values returns every value of a multi-valued field.
// Single-valued fields yield a one-element slice when present.
func (f Fields) Values(name string) []string {
	m, ok := f[name]
	if !ok {
		return nil
	}
	if len(m.Values) > 0 {
		return m.Values
	}
	return []string{m.Value}
}

// Has reports whether name was resolved.
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Extract resolves every rule of rules over scope.
//
// Tiers 1 and 2 run for all rules first, in declared order. Tier 3 then
// runs, again in declared order, only for fields that are still absent;
// patterns may read any field resolved so far as a source, which is how
// an age or phone number is mined from the description.
func Extract(doc *goquery.Document, scope *goquery.Selection, rules RuleSet, src Sources) Fields {
	out := make(Fields, len(rules))

	for _, rule := range rules {
		if m, ok := Resolve(doc, scope, rule); ok {
			out[rule.Field] = m
		}
	}

	var text *string
	sourceText := func(name string) string {
		switch name {
		case SourceURL:
			return src.URL
		case SourceHTML:
			return src.HTML
		case SourceText:
			if text == nil {
				s := documentText(doc, scope)
				text = &s
			}
			return *text
		default:
			return out.Get(name)
		}
	}

	for _, rule := range rules {
		if out.Has(rule.Field) {
			continue
		}
		if m, ok := matchPatterns(rule, sourceText); ok {
			out[rule.Field] = m
		}
	}

	return out
}

func matchPatterns(rule FieldRule, source func(string) string) (Match, bool) {
	for _, p := range rule.Patterns {
		if p.Regex == nil {
			continue
		}
		for _, name := range p.Sources {
			text := source(name)
			if text == "" {
				continue
			}
			sub := p.Regex.FindStringSubmatch(text)
			if sub == nil {
				continue
			}
			v := sub[0]
			if len(sub) > 1 {
				v = sub[1]
			}
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			return Match{
				Field:    rule.Field,
				Value:    v,
				Strategy: "regex:" + name,
				Tier:     TierRegex,
			}, true
		}
	}
	return Match{}, false
}

func documentText(doc *goquery.Document, scope *goquery.Selection) string {
	switch {
	case scope != nil:
		return CollapseSpace(scope.Text())
	case doc != nil:
		return CollapseSpace(doc.Text())
	default:
		return ""
	}
}
