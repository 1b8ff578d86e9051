package crawler

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/corrupt0303/listingscan/internal/urlutil"
)

// taxonomyPathRegex matches the category, personals and dating sections
// of the site that the mapper follows.
var taxonomyPathRegex = regexp.MustCompile(`/(g|personals|dating)/`)

// Parser extracts the navigable links of a rendered page.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Attribute values come back entity-decoded
//  3. Anchor order is kept, which fixes the visit order of the frontier
type Parser struct {
	proxy urlutil.Proxy
}

// ParseResult contains the links found on one page.
type ParseResult struct {
	// Title is the page title from <title> tag.
	Title string

	// TaxonomyLinks are canonical URLs of category, personals and dating
	// pages, in document order without duplicates.
	TaxonomyLinks []string

	// PaginationLinks are canonical URLs of "next page" anchors.
	PaginationLinks []string
}

// Links returns the taxonomy links followed by the pagination links that
// are not already taxonomy links.
func (r *ParseResult) Links() []string {
	out := make([]string, 0, len(r.TaxonomyLinks)+len(r.PaginationLinks))
	seen := make(map[string]bool, cap(out))
	for _, group := range [][]string{r.TaxonomyLinks, r.PaginationLinks} {
		for _, l := range group {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}

// NewParser creates a parser that canonicalizes links through proxy.
func NewParser(proxy urlutil.Proxy) *Parser {
	return &Parser{proxy: proxy}
}

// Parse reads HTML content and collects its links. Relative hrefs are
// resolved against pageURL, the address the content was loaded from; an
// empty pageURL resolves them against the site root.
func (p *Parser) Parse(content io.Reader, pageURL string) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	var page *url.URL
	if pageURL != "" {
		if u, err := url.Parse(p.proxy.Resolve(p.proxy.Canonicalize(pageURL))); err == nil && u.IsAbs() {
			page = u
		}
	}

	result := &ParseResult{
		TaxonomyLinks:   make([]string, 0),
		PaginationLinks: make([]string, 0),
	}
	seenTaxonomy := make(map[string]bool)
	seenPagination := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				link := p.resolveURL(getAttr(n, "href"), page)
				if link == "" {
					break
				}
				if isPagination(n) && !seenPagination[link] {
					seenPagination[link] = true
					result.PaginationLinks = append(result.PaginationLinks, link)
				}
				if p.isTaxonomy(link) && !seenTaxonomy[link] {
					seenTaxonomy[link] = true
					result.TaxonomyLinks = append(result.TaxonomyLinks, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// resolveURL returns the canonical absolute URL of href, or "" for
// anchors and non-navigable schemes.
//
// A query-only href such as "?page=2" is joined to page before
// canonicalizing, since canonicalizing strips a leading '?'. A leftover
// "?url=" wrapper is canonicalized first like any other href.
func (p *Parser) resolveURL(href string, page *url.URL) string {
	href = strings.TrimSpace(href)
	if !urlutil.IsNavigable(href) {
		return ""
	}
	if page == nil {
		return p.proxy.Resolve(p.proxy.Canonicalize(href))
	}

	if strings.HasPrefix(href, "?") && !hasURLParam(href[1:]) {
		if ref, err := url.Parse(href); err == nil {
			return p.proxy.Canonicalize(page.ResolveReference(ref).String())
		}
	}

	bare := p.proxy.Canonicalize(href)
	ref, err := url.Parse(bare)
	if err != nil || ref.IsAbs() {
		return p.proxy.Resolve(bare)
	}
	return page.ResolveReference(ref).String()
}

// hasURLParam reports whether query starts with a "url=" wrapper parameter.
func hasURLParam(query string) bool {
	return len(query) >= 4 && strings.EqualFold(query[:4], "url=")
}

func (p *Parser) isTaxonomy(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return taxonomyPathRegex.MatchString(u.Path)
}

// isPagination reports whether the anchor is a "next page" link.
func isPagination(n *html.Node) bool {
	for _, rel := range strings.Fields(getAttr(n, "rel")) {
		if strings.EqualFold(rel, "next") {
			return true
		}
	}
	for _, class := range strings.Fields(getAttr(n, "class")) {
		if class == "js-pagination-next" {
			return true
		}
	}
	return false
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
