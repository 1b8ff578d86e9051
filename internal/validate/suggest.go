package validate

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/corrupt0303/listingscan/internal/selector"
)

// FieldKeywords are the word prefixes that hint at a listing field inside
// a container the current strategies could not resolve. They are matched
// against the words of class names ("posting_listing__city" is posting,
// listing, city) and of an element's own text.
var FieldKeywords = map[string][]string{
	selector.FieldTitle:       {"title", "headline"},
	selector.FieldURL:         {"link", "url", "href"},
	selector.FieldLocation:    {"location", "city", "place"},
	selector.FieldDescription: {"description", "desc", "summary", "snippet"},
	selector.FieldAge:         {"age"},
	selector.FieldCategory:    {"category", "cat"},
}

var (
	// classNameRegex matches class names usable in a compound CSS selector
	// without escaping.
	classNameRegex = regexp.MustCompile(`^-?[_a-zA-Z][-_a-zA-Z0-9]*$`)

	// wordSplitRegex separates the words of class names and text.
	wordSplitRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

// Candidate is a guessed strategy and the number of unresolved containers
// it was seen in.
type Candidate struct {
	Strategy   string `json:"strategy"`
	Containers int    `json:"containers"`
}

// Suggestion lists candidate strategies for a listing field that some
// containers left unresolved.
type Suggestion struct {
	Field string `json:"field"`

	// Unresolved is the number of containers the field was missing in.
	Unresolved int `json:"unresolved"`

	// Current are the field's strategies at validation time.
	Current []string `json:"current"`

	// Candidates are ordered by container count, most frequent first.
	Candidates []Candidate `json:"candidates"`
}

// Strategies returns the current strategies followed by the candidates,
// ready to be used as a profile override for the field.
func (s Suggestion) Strategies() []string {
	out := slices.Clone(s.Current)
	for _, c := range s.Candidates {
		out = append(out, c.Strategy)
	}
	return out
}

// SuggestedOverrides returns the listing overrides that append every
// candidate to its field's current strategies. Fields without candidates
// are left out.
func (r *Report) SuggestedOverrides() map[string][]string {
	out := make(map[string][]string)
	for _, s := range r.Suggestions {
		if len(s.Candidates) > 0 {
			out[s.Field] = s.Strategies()
		}
	}
	return out
}

// suggester collects candidates over every container of a run.
type suggester struct {
	rules selector.RuleSet
	found map[string]map[string]int
	miss  map[string]int
}

func newSuggester(rules selector.RuleSet) *suggester {
	return &suggester{
		rules: rules,
		found: make(map[string]map[string]int),
		miss:  make(map[string]int),
	}
}

// observe guesses strategies for field inside container c, where the
// current strategies resolved nothing. Each strategy counts once per
// container.
func (s *suggester) observe(c *goquery.Selection, field string) {
	keywords, ok := FieldKeywords[field]
	if !ok {
		return
	}
	s.miss[field]++

	known := make(map[string]bool)
	if rule, ok := s.rules.Get(field); ok {
		for _, st := range rule.Strategies {
			known[st.String()] = true
		}
	}

	seen := make(map[string]bool)
	c.Find("*").Each(func(_ int, el *goquery.Selection) {
		strategy := guessStrategy(el, field, keywords)
		if strategy == "" || known[strategy] || seen[strategy] {
			return
		}
		seen[strategy] = true
		if s.found[field] == nil {
			s.found[field] = make(map[string]int)
		}
		s.found[field][strategy]++
	})
}

// suggestions returns one Suggestion per field that was unresolved at
// least once, in rule set order.
func (s *suggester) suggestions() []Suggestion {
	var out []Suggestion
	for _, rule := range s.rules {
		if s.miss[rule.Field] == 0 {
			continue
		}
		sg := Suggestion{Field: rule.Field, Unresolved: s.miss[rule.Field]}
		for _, st := range rule.Strategies {
			sg.Current = append(sg.Current, st.String())
		}
		for strategy, n := range s.found[rule.Field] {
			sg.Candidates = append(sg.Candidates, Candidate{Strategy: strategy, Containers: n})
		}
		slices.SortFunc(sg.Candidates, func(a, b Candidate) int {
			if c := cmp.Compare(b.Containers, a.Containers); c != 0 {
				return c
			}
			return strings.Compare(a.Strategy, b.Strategy)
		})
		out = append(out, sg)
	}
	return out
}

// guessStrategy returns "tag.class1.class2" for an element whose class
// words or own text words start with one of keywords, or "" when it does
// not qualify. Elements without usable classes are skipped since a bare
// tag name matches too broadly. URL candidates must be anchors and read
// @href.
func guessStrategy(el *goquery.Selection, field string, keywords []string) string {
	tag := goquery.NodeName(el)
	if field == selector.FieldURL && tag != "a" {
		return ""
	}

	classAttr, _ := el.Attr("class")
	var classes []string
	for _, class := range strings.Fields(classAttr) {
		if classNameRegex.MatchString(class) {
			classes = append(classes, class)
		}
	}
	if len(classes) == 0 {
		return ""
	}

	words := splitWords(strings.Join(classes, " "))
	if el.Children().Length() == 0 {
		words = append(words, splitWords(el.Text())...)
	}
	if !hasKeyword(words, keywords) {
		return ""
	}

	strategy := tag + "." + strings.Join(classes, ".")
	if field == selector.FieldURL {
		strategy += " @href"
	}
	return strategy
}

func splitWords(s string) []string {
	return strings.Fields(wordSplitRegex.ReplaceAllString(strings.ToLower(s), " "))
}

func hasKeyword(words, keywords []string) bool {
	for _, w := range words {
		for _, kw := range keywords {
			if strings.HasPrefix(w, kw) {
				return true
			}
		}
	}
	return false
}
