package model

// Search defaults taken from the site's own search form.
const (
	// DefaultSort orders results newest first.
	DefaultSort = "date"

	// DefaultAgeMin and DefaultAgeMax bound the advertiser age filter.
	DefaultAgeMin = 18
	DefaultAgeMax = 40

	// DefaultDistance is the search radius in kilometres around Location.
	DefaultDistance = 30
)

// SearchQuery describes one search invocation.
// All filters are optional and independently composable into a query URL.
// Zero values mean "use the default" for every numeric and string field;
// QueryDescription is a pointer so that an explicit false is expressible.
type SearchQuery struct {
	// Query is the free-text search term.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`

	// Location is a location slug (e.g. "cape-town") or display name.
	// It is only used in the URL path when it is a known slug.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`

	// Category is a category slug placed after the location in the path.
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Section is a section id used when no category is given.
	Section string `json:"section,omitempty" yaml:"section,omitempty"`

	// Tag switches the search to the tag listing /g/tag/<tag>/.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`

	// URL is a seed URL; when set it replaces the structured path and the
	// filters are merged into its query string.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// AgeMin and AgeMax bound the advertiser age.
	AgeMin int `json:"age_min,omitempty" yaml:"age_min,omitempty"`
	AgeMax int `json:"age_max,omitempty" yaml:"age_max,omitempty"`

	// Sort is the result ordering ("date", "relevance", ...).
	Sort string `json:"sort,omitempty" yaml:"sort,omitempty"`

	// Distance is the search radius in kilometres.
	Distance int `json:"dist,omitempty" yaml:"dist,omitempty"`

	// QueryDescription extends the text search to listing descriptions.
	QueryDescription *bool `json:"query_description,omitempty" yaml:"query_description,omitempty"`

	// MaxPages bounds the number of result pages navigated.
	// Zero means one page; negative values are invalid.
	MaxPages int `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
}

// WithDefaults returns a copy of q with every unset field filled from d,
// then from the package defaults.
func (q SearchQuery) WithDefaults(d SearchQuery) SearchQuery {
	out := q
	if out.Sort == "" {
		out.Sort = firstString(d.Sort, DefaultSort)
	}
	if out.AgeMin == 0 {
		out.AgeMin = firstInt(d.AgeMin, DefaultAgeMin)
	}
	if out.AgeMax == 0 {
		out.AgeMax = firstInt(d.AgeMax, DefaultAgeMax)
	}
	if out.Distance == 0 {
		out.Distance = firstInt(d.Distance, DefaultDistance)
	}
	if out.QueryDescription == nil {
		v := true
		if d.QueryDescription != nil {
			v = *d.QueryDescription
		}
		out.QueryDescription = &v
	}
	if out.MaxPages == 0 {
		out.MaxPages = firstInt(d.MaxPages, 1)
	}
	return out
}

// SearchesDescription reports whether description search is enabled.
// An unset flag counts as enabled.
func (q SearchQuery) SearchesDescription() bool {
	return q.QueryDescription == nil || *q.QueryDescription
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
