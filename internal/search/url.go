package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/slugs"
	"github.com/corrupt0303/listingscan/internal/urlutil"
)

// Query-string keys understood by the site's search.
const (
	paramQuery            = "query"
	paramQueryDescription = "query_description"
	paramSort             = "sort"
	paramAgeMin           = "age[min]"
	paramAgeMax           = "age[max]"
	paramDistance         = "dist"
	paramPage             = "page"
)

// BuildSearchURL returns the bare target URL of result page n for q.
// q is expected to carry its defaults already (see model.SearchQuery.WithDefaults).
//
// Structured queries select the path first:
//   - Tag set: /g/tag/<tag>/
//   - Location known to ds: /<location>/, /<location>/<category>/ or /<location>/<section>/
//   - Otherwise /g/q/ when there is a query, or the site root
//
// and then append query, query_description, sort, age[min], age[max],
// dist, and page when n > 1, in that order.
//
// A seed URL replaces the path: it is canonicalized, resolved against the
// base when relative, and the filters are merged into its existing query
// string. An existing "query" value is kept; the other filters overwrite.
func BuildSearchURL(q model.SearchQuery, n int, proxy urlutil.Proxy, ds *slugs.Dataset) string {
	if strings.TrimSpace(q.URL) != "" {
		return mergeSeedURL(q, n, proxy)
	}

	var b strings.Builder
	b.WriteString(proxy.Base)
	b.WriteString(searchPath(q, ds))
	b.WriteByte('?')
	b.WriteString(paramQuery + "=" + url.QueryEscape(q.Query))
	if q.SearchesDescription() {
		b.WriteString("&" + paramQueryDescription + "=1")
	}
	if q.Sort != "" {
		b.WriteString("&" + paramSort + "=" + url.QueryEscape(q.Sort))
	}
	if q.AgeMin > 0 {
		b.WriteString("&" + paramAgeMin + "=" + strconv.Itoa(q.AgeMin))
	}
	if q.AgeMax > 0 {
		b.WriteString("&" + paramAgeMax + "=" + strconv.Itoa(q.AgeMax))
	}
	if q.Distance > 0 {
		b.WriteString("&" + paramDistance + "=" + strconv.Itoa(q.Distance))
	}
	if n > 1 {
		b.WriteString("&" + paramPage + "=" + strconv.Itoa(n))
	}
	return b.String()
}

func searchPath(q model.SearchQuery, ds *slugs.Dataset) string {
	if tag := slugs.Normalize(q.Tag); tag != "" {
		return "/g/tag/" + url.PathEscape(tag) + "/"
	}

	if ds != nil {
		if loc, ok := ds.Location(q.Location); ok {
			switch {
			case strings.TrimSpace(q.Category) != "":
				return "/" + loc + "/" + url.PathEscape(slugs.Normalize(q.Category)) + "/"
			case strings.TrimSpace(q.Section) != "":
				return "/" + loc + "/" + url.PathEscape(strings.TrimSpace(q.Section)) + "/"
			default:
				return "/" + loc + "/"
			}
		}
	}

	if strings.TrimSpace(q.Query) != "" {
		return "/g/q/"
	}
	return "/"
}

func mergeSeedURL(q model.SearchQuery, n int, proxy urlutil.Proxy) string {
	seed := proxy.Resolve(proxy.Canonicalize(q.URL))
	u, err := url.Parse(seed)
	if err != nil {
		return seed
	}

	values := u.Query()
	if !values.Has(paramQuery) {
		values.Set(paramQuery, q.Query)
	}
	if q.SearchesDescription() {
		values.Set(paramQueryDescription, "1")
	}
	if q.Sort != "" {
		values.Set(paramSort, q.Sort)
	}
	if q.AgeMin > 0 {
		values.Set(paramAgeMin, strconv.Itoa(q.AgeMin))
	}
	if q.AgeMax > 0 {
		values.Set(paramAgeMax, strconv.Itoa(q.AgeMax))
	}
	if q.Distance > 0 {
		values.Set(paramDistance, strconv.Itoa(q.Distance))
	}
	if n > 1 {
		values.Set(paramPage, strconv.Itoa(n))
	}
	u.RawQuery = values.Encode()
	return u.String()
}
