// Package slugs holds the reference dataset of valid taxonomy slugs of the
// target site: locations, categories, sections and tags.
//
// The site only accepts a location in the URL path when it is one of its
// own slugs; any other value produces an error page instead of a search.
// Search URL building therefore checks user input against this dataset
// and falls back to the generic query path when it does not match.
//
// Design decision: We ship the dataset as embedded YAML instead of Go
// constants because:
//  1. It is data harvested from the live site, not code
//  2. A site profile can point at a refreshed file without a rebuild
//  3. `listingscan slugs` regenerates it from saved pages with Harvest
package slugs

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed default_slugs.yaml
var defaultData []byte

// Dataset is a set of known slugs per taxonomy kind.
// Locations, categories and tags are stored normalized; sections are
// stored verbatim because the site's section ids are case-sensitive.
type Dataset struct {
	Locations  []string `yaml:"locations"`
	Categories []string `yaml:"categories"`
	Sections   []string `yaml:"sections"`
	Tags       []string `yaml:"tags"`

	locations  map[string]struct{}
	categories map[string]struct{}
	sections   map[string]struct{}
	tags       map[string]struct{}
}

// New builds a dataset from slug lists, normalizing and de-duplicating them.
func New(locations, categories, sections, tags []string) *Dataset {
	d := &Dataset{
		Locations:  normalizeAll(locations),
		Categories: normalizeAll(categories),
		Sections:   uniqueSorted(sections),
		Tags:       normalizeAll(tags),
	}
	d.index()
	return d
}

// Default returns the embedded dataset. The result is shared and must
// not be modified; Merge returns a copy.
func Default() *Dataset {
	return defaultDataset()
}

var defaultDataset = sync.OnceValue(func() *Dataset {
	d, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("slugs: embedded dataset is invalid: %v", err))
	}
	return d
})

// Load reads a dataset from a YAML file.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided dataset path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read slug dataset: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML dataset.
func Parse(data []byte) (*Dataset, error) {
	var raw Dataset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse slug dataset: %w", err)
	}
	return New(raw.Locations, raw.Categories, raw.Sections, raw.Tags), nil
}

func (d *Dataset) index() {
	d.locations = toSet(d.Locations)
	d.categories = toSet(d.Categories)
	d.sections = toSet(d.Sections)
	d.tags = toSet(d.Tags)
}

// Location returns the slug for a location given as slug or display name
// ("Cape Town", "cape-town", "Cape-Town") and whether it is known.
func (d *Dataset) Location(s string) (string, bool) {
	slug := Normalize(s)
	_, ok := d.locations[slug]
	return slug, ok && slug != ""
}

// IsLocation reports whether s names a known location.
func (d *Dataset) IsLocation(s string) bool {
	_, ok := d.Location(s)
	return ok
}

// IsCategory reports whether s names a known category.
func (d *Dataset) IsCategory(s string) bool {
	_, ok := d.categories[Normalize(s)]
	return ok
}

// IsSection reports whether s is a known section id.
func (d *Dataset) IsSection(s string) bool {
	_, ok := d.sections[strings.TrimSpace(s)]
	return ok
}

// IsTag reports whether s names a known tag.
func (d *Dataset) IsTag(s string) bool {
	_, ok := d.tags[Normalize(s)]
	return ok
}

// Len returns the total number of slugs.
func (d *Dataset) Len() int {
	return len(d.Locations) + len(d.Categories) + len(d.Sections) + len(d.Tags)
}

// Merge returns a new dataset holding the union of d and other.
func (d *Dataset) Merge(other *Dataset) *Dataset {
	if other == nil {
		return New(d.Locations, d.Categories, d.Sections, d.Tags)
	}
	return New(
		slices.Concat(d.Locations, other.Locations),
		slices.Concat(d.Categories, other.Categories),
		slices.Concat(d.Sections, other.Sections),
		slices.Concat(d.Tags, other.Tags),
	)
}

// WriteYAML encodes the dataset as YAML.
func (d *Dataset) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("failed to encode slug dataset: %w", err)
	}
	return enc.Close()
}

// Normalize folds a display name or slug into slug form: compatibility
// decomposition, combining marks removed, lower-cased, whitespace and
// underscores collapsed to single hyphens.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))

	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
	return strings.Join(fields, "-")
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := Normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return uniqueSorted(out)
}

func uniqueSorted(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
