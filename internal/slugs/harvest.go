package slugs

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/corrupt0303/listingscan/internal/urlutil"
)

// Taxonomy path shapes of the target site.
var (
	// /g/tag/<tag>/
	tagPathRegex = regexp.MustCompile(`^/g/tag/([a-zA-Z0-9\-]+)/`)

	// /g/<category>/
	globalCategoryRegex = regexp.MustCompile(`^/g/([a-zA-Z0-9\-]+)/`)

	// /<location>/<category>/<section>/
	sectionPathRegex = regexp.MustCompile(`^/([a-zA-Z0-9\-]+)/([a-zA-Z0-9\-]+)/([a-zA-Z0-9]+)/`)

	// /<location>/
	locationPathRegex = regexp.MustCompile(`^/([a-zA-Z0-9\-]+)/$`)
)

// reservedGlobal are /g/ path segments that are search modes, not categories.
var reservedGlobal = map[string]bool{"tag": true, "q": true}

// Harvest collects taxonomy slugs from the anchors of one HTML page.
// Hrefs are unwrapped from the proxy gateway and resolved against the
// site base; links to other hosts are ignored.
func Harvest(r io.Reader, proxy urlutil.Proxy) *Dataset {
	var locations, categories, sections, tags []string

	for _, href := range anchorHrefs(r) {
		path, ok := sitePath(href, proxy)
		if !ok {
			continue
		}

		if strings.HasPrefix(path, "/g/") {
			if m := tagPathRegex.FindStringSubmatch(path); m != nil {
				tags = append(tags, m[1])
				continue
			}
			if m := globalCategoryRegex.FindStringSubmatch(path); m != nil && !reservedGlobal[m[1]] {
				categories = append(categories, m[1])
			}
			continue
		}

		if m := sectionPathRegex.FindStringSubmatch(path); m != nil {
			locations = append(locations, m[1])
			categories = append(categories, m[2])
			sections = append(sections, m[3])
			continue
		}
		if m := locationPathRegex.FindStringSubmatch(path); m != nil {
			locations = append(locations, m[1])
		}
	}

	return New(locations, categories, sections, tags)
}

// HarvestString is Harvest over an HTML string.
func HarvestString(doc string, proxy urlutil.Proxy) *Dataset {
	return Harvest(strings.NewReader(doc), proxy)
}

// sitePath returns the path of href when it points at the target site.
func sitePath(href string, proxy urlutil.Proxy) (string, bool) {
	bare := proxy.Resolve(proxy.Canonicalize(href))
	if !proxy.SameSite(bare) {
		return "", false
	}
	u, err := url.Parse(bare)
	if err != nil || u.Path == "" {
		return "", false
	}
	return u.Path, true
}

func anchorHrefs(r io.Reader) []string {
	var hrefs []string
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return hrefs
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					hrefs = append(hrefs, string(val))
				}
				if !more {
					break
				}
			}
		}
	}
}
