package selector

import (
	"slices"
	"strings"
)

// RuleSet is an ordered list of field rules for one page type.
type RuleSet []FieldRule

// Get returns the rule for field.
func (rs RuleSet) Get(field string) (FieldRule, bool) {
	for _, r := range rs {
		if r.Field == field {
			return r, true
		}
	}
	return FieldRule{}, false
}

// Names returns the field names in declared order.
func (rs RuleSet) Names() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Field
	}
	return names
}

// Override returns a copy of rs where the structural strategies of every
// field named in overrides are replaced by the parsed strategy strings.
// Fields unknown to rs are appended as text rules. The receiver is not
// modified. Keys are processed in sorted order so the result is stable.
//
// Strategy strings use the ParseStrategy syntax.
func (rs RuleSet) Override(overrides map[string][]string) RuleSet {
	out := make(RuleSet, len(rs))
	copy(out, rs)
	if len(overrides) == 0 {
		return out
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, field := range keys {
		raw := overrides[field]
		strategies := make([]Strategy, 0, len(raw))
		for _, s := range raw {
			if st, ok := ParseStrategy(s); ok {
				strategies = append(strategies, st)
			}
		}
		if len(strategies) == 0 {
			continue
		}

		idx := slices.IndexFunc(out, func(r FieldRule) bool { return r.Field == field })
		if idx < 0 {
			out = append(out, FieldRule{Field: field, Strategies: strategies})
			continue
		}
		out[idx].Strategies = strategies
	}
	return out
}

// ParseStrategy reads a strategy from its string form:
//
//	div.h3.js-result_title          CSS, text mode
//	a.posting_listing__title @href  CSS, attribute mode
//	xpath:.//h1                     XPath, text mode
//	xpath:.//img @src               XPath, attribute mode
//
// The attribute is separated by " @" and must be the last token.
// Empty input yields ok == false.
func ParseStrategy(s string) (Strategy, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Strategy{}, false
	}

	var st Strategy
	if i := strings.LastIndex(s, " @"); i >= 0 {
		attr := strings.TrimSpace(s[i+2:])
		if attr != "" && !strings.ContainsAny(attr, " []=") {
			st.Attr = attr
			s = strings.TrimSpace(s[:i])
		}
	}

	if expr, ok := strings.CutPrefix(s, "xpath:"); ok {
		st.XPath = strings.TrimSpace(expr)
		return st, st.XPath != ""
	}
	st.Selector = s
	return st, true
}
