package crawler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/corrupt0303/listingscan/internal/browser/browsertest"
	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/urlutil"
)

const (
	prefix = urlutil.DefaultProxyPrefix
	base   = urlutil.DefaultBaseURL
)

// TestParser tests link extraction.
func TestParser(t *testing.T) {
	t.Parallel()

	parser := NewParser(urlutil.Default())

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		result, err := parser.Parse(strings.NewReader(`<html><head><title>Test Page</title></head><body></body></html>`), "")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", result.Title)
		}
	})

	t.Run("classifies taxonomy and pagination links", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/g/personals/">Personals</a>
			<a href="` + prefix + base + `/cape-town/dating/">Dating</a>
			<a href="https://please.untaint.us/?url=https%3A%2F%2Fwww.locanto.co.za%2Fg%2Fjobs%2F">Jobs</a>
			<a href="/about.html">About</a>
			<a href="/g/q/?query=dating&page=2" rel="next">Next</a>
			<a class="pager js-pagination-next" href="/cape-town/?page=3">More</a>
			<a href="#top">Top</a>
			<a href="javascript:void(0)">Nothing</a>
			<a href="/g/personals/">Personals again</a>
		</body></html>`

		result, err := parser.Parse(strings.NewReader(html), "")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		wantTaxonomy := []string{
			base + "/g/personals/",
			base + "/cape-town/dating/",
			base + "/g/jobs/",
			base + "/g/q/?query=dating&page=2",
		}
		if !equalSlices(result.TaxonomyLinks, wantTaxonomy) {
			t.Errorf("expected taxonomy links %v, got %v", wantTaxonomy, result.TaxonomyLinks)
		}

		wantPagination := []string{
			base + "/g/q/?query=dating&page=2",
			base + "/cape-town/?page=3",
		}
		if !equalSlices(result.PaginationLinks, wantPagination) {
			t.Errorf("expected pagination links %v, got %v", wantPagination, result.PaginationLinks)
		}

		links := result.Links()
		if len(links) != 5 {
			t.Errorf("expected 5 unique links, got %d: %v", len(links), links)
		}
	})

	t.Run("relative links resolve against the page", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="?page=2" rel="next">Next</a>
			<a href="next/">Sub</a>
			<a href="../dating/">Up</a>
			<a href="?url=https://www.locanto.co.za/g/jobs/">Wrapped</a>
		</body></html>`

		result, err := parser.Parse(strings.NewReader(html), prefix+base+"/g/personals/")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		wantPagination := []string{base + "/g/personals/?page=2"}
		if !equalSlices(result.PaginationLinks, wantPagination) {
			t.Errorf("expected pagination links %v, got %v", wantPagination, result.PaginationLinks)
		}

		wantTaxonomy := []string{
			base + "/g/personals/?page=2",
			base + "/g/personals/next/",
			base + "/g/dating/",
			base + "/g/jobs/",
		}
		if !equalSlices(result.TaxonomyLinks, wantTaxonomy) {
			t.Errorf("expected taxonomy links %v, got %v", wantTaxonomy, result.TaxonomyLinks)
		}
	})

	t.Run("empty page URL resolves against the site root", func(t *testing.T) {
		t.Parallel()

		result, err := parser.Parse(strings.NewReader(`<a href="g/next/">Sub</a>`), "")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		want := []string{base + "/g/next/"}
		if !equalSlices(result.TaxonomyLinks, want) {
			t.Errorf("expected %v, got %v", want, result.TaxonomyLinks)
		}
	})

	t.Run("handles malformed html", func(t *testing.T) {
		t.Parallel()

		result, err := parser.Parse(strings.NewReader(`<html><body><a href="/g/x/">unclosed<div><p>broken`), "")
		if err != nil {
			t.Fatalf("expected malformed HTML to parse, got %v", err)
		}
		if len(result.TaxonomyLinks) != 1 {
			t.Errorf("expected 1 taxonomy link, got %v", result.TaxonomyLinks)
		}
	})
}

// TestMatchPattern tests the glob pattern matching.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/g/*", "/g/personals/", true},
		{"/g/*", "/g", true},
		{"/g/*", "/gx/", false},
		{"*.pdf", "/docs/file.pdf", true},
		{"*.pdf", "/docs/file.html", false},
		{"/cape-town/?", "/cape-town/P", true},
		{"/exact", "/exact", true},
		{"/exact", "/other", false},
		{"[", "/anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q): expected %v, got %v", tt.pattern, tt.path, tt.want, got)
			}
		})
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.SettleDelay = 0
	cfg.DebugDir = t.TempDir()
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func node(links ...string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>node</title></head><body>`)
	for _, l := range links {
		b.WriteString(`<a href="` + l + `">link</a>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// siteTree serves a small taxonomy:
//
//	/g/q/?query=dating -> /g/a/, /g/b/
//	/g/a/             -> /g/a/1/, /g/b/
//	/g/b/             -> /g/b/1/
//	/g/a/1/           -> /g/a/1/deep/
func siteTree() *browsertest.Site {
	site := browsertest.NewSite()
	site.Handle(prefix+base+"/g/q/?query=dating", node("/g/a/", "/g/b/", "https://elsewhere.example/g/x/"))
	site.Handle(prefix+base+"/g/a/", node("/g/a/1/", "/g/b/")+
		`<article class="posting_listing"></article><li class="listing"></li>`)
	site.Handle(prefix+base+"/g/b/", node("/g/b/1/"))
	site.Handle(prefix+base+"/g/a/1/", node("/g/a/1/deep/"))
	site.Handle(prefix+base+"/g/b/1/", node())
	site.Handle(prefix+base+"/g/a/1/deep/", node())
	return site
}

func visitedURLs(sm *model.SiteMap) []string {
	out := make([]string, 0, len(sm.Nodes))
	for _, n := range sm.Nodes {
		out = append(out, strings.TrimPrefix(n.URL, base))
	}
	return out
}

func TestMapperDepthFirst(t *testing.T) {
	t.Parallel()

	site := siteTree()
	m := NewMapper(site, testConfig(t), WithMaxDepth(2), WithMapperLogger(quietLogger()))

	sm, err := m.Map(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// /g/b/ is first reached through /g/a/ at depth 2, so /g/b/1/ is too deep.
	want := []string{"/g/q/?query=dating", "/g/a/", "/g/a/1/", "/g/b/"}
	if got := visitedURLs(sm); !equalSlices(got, want) {
		t.Errorf("expected visit order %v, got %v", want, got)
	}

	if sm.Seed != base+DefaultSeedPath {
		t.Errorf("expected seed %q, got %q", base+DefaultSeedPath, sm.Seed)
	}
	if got := site.NavigationCount(prefix + base + "/g/a/1/deep/"); got != 0 {
		t.Errorf("expected depth 3 node to be skipped, got %d navigations", got)
	}
	if sm.Skipped == 0 {
		t.Error("expected skipped entries to be counted")
	}

	for _, n := range sm.Nodes {
		if n.URL == base+"/g/a/" {
			if n.Listings != 2 {
				t.Errorf("expected 2 listing containers on /g/a/, got %d", n.Listings)
			}
			if n.Parent != base+DefaultSeedPath || n.Depth != 1 {
				t.Errorf("expected /g/a/ at depth 1 under the seed, got depth %d parent %q", n.Depth, n.Parent)
			}
		}
	}

	for _, u := range site.Navigations() {
		if strings.Count(u, prefix) != 1 {
			t.Errorf("expected exactly one proxy prefix per navigation, got %q", u)
		}
		if strings.Contains(u, "elsewhere.example") {
			t.Errorf("expected off-site links to be ignored, got %q", u)
		}
	}
}

func TestMapperVisitsEachNodeOnce(t *testing.T) {
	t.Parallel()

	site := siteTree()
	m := NewMapper(site, testConfig(t), WithMaxDepth(5), WithMapperLogger(quietLogger()))

	sm, err := m.Map(context.Background(), prefix+base+DefaultSeedPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.Nodes) != 6 {
		t.Errorf("expected 6 nodes, got %d: %v", len(sm.Nodes), visitedURLs(sm))
	}
	for _, u := range site.Navigations() {
		if c := site.NavigationCount(u); c != 1 {
			t.Errorf("expected %s to be visited once, got %d", u, c)
		}
	}
}

func TestMapperDepthZero(t *testing.T) {
	t.Parallel()

	site := siteTree()
	m := NewMapper(site, testConfig(t), WithMaxDepth(0), WithMapperLogger(quietLogger()))

	sm, err := m.Map(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.Nodes) != 1 {
		t.Errorf("expected only the seed, got %v", visitedURLs(sm))
	}
}

func TestMapperMaxNodes(t *testing.T) {
	t.Parallel()

	site := siteTree()
	m := NewMapper(site, testConfig(t), WithMaxDepth(5), WithMaxNodes(3), WithMapperLogger(quietLogger()))

	sm, err := m.Map(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.Nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(sm.Nodes))
	}
	if !sm.Truncated {
		t.Error("expected the map to be marked truncated")
	}
}

func TestMapperPatterns(t *testing.T) {
	t.Parallel()

	t.Run("ignore", func(t *testing.T) {
		t.Parallel()

		site := siteTree()
		m := NewMapper(site, testConfig(t),
			WithMaxDepth(5),
			WithIgnorePatterns([]string{"/g/b/*"}),
			WithMapperLogger(quietLogger()))

		sm, err := m.Map(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, u := range visitedURLs(sm) {
			if strings.HasPrefix(u, "/g/b/") {
				t.Errorf("expected /g/b/ to be ignored, visited %s", u)
			}
		}
	})

	t.Run("follow", func(t *testing.T) {
		t.Parallel()

		site := siteTree()
		m := NewMapper(site, testConfig(t),
			WithMaxDepth(5),
			WithFollowPatterns([]string{"/g/b/*"}),
			WithMapperLogger(quietLogger()))

		sm, err := m.Map(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"/g/q/?query=dating", "/g/b/", "/g/b/1/"}
		if got := visitedURLs(sm); !equalSlices(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("from profile", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.Profile = &config.Profile{Mapper: config.MapperConfig{IgnorePatterns: []string{"/g/a/*"}}}
		m := NewMapper(siteTree(), cfg, WithMapperLogger(quietLogger()))
		if len(m.ignorePatterns) != 1 || m.ignorePatterns[0] != "/g/a/*" {
			t.Errorf("expected profile ignore patterns, got %v", m.ignorePatterns)
		}
	})
}

func TestMapperFailures(t *testing.T) {
	t.Parallel()

	site := browsertest.NewSite()
	site.Handle(prefix+base+"/g/q/?query=dating", node("/g/blocked/", "/g/missing/", "/g/ok/"))
	site.Handle(prefix+base+"/g/blocked/", `<html><head><title>Locanto Error page</title></head>`+node("/g/hidden/"))
	site.Handle(prefix+base+"/g/ok/", node())
	site.Handle(prefix+base+"/g/hidden/", node())

	m := NewMapper(site, testConfig(t), WithMaxDepth(3), WithMapperLogger(quietLogger()))
	sm, err := m.Map(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byURL := make(map[string]model.MapNode)
	for _, n := range sm.Nodes {
		byURL[strings.TrimPrefix(n.URL, base)] = n
	}

	if n := byURL["/g/blocked/"]; n.Block != model.BlockKindBlocked {
		t.Errorf("expected /g/blocked/ to be marked blocked, got %q", n.Block)
	}
	if n := byURL["/g/missing/"]; n.Error == "" {
		t.Error("expected /g/missing/ to carry a navigation error")
	}
	if _, ok := byURL["/g/ok/"]; !ok {
		t.Error("expected siblings of failed nodes to be visited")
	}
	if _, ok := byURL["/g/hidden/"]; ok {
		t.Error("expected links below a blocked node to be abandoned")
	}
	if got := sm.Stats().Failed; got != 2 {
		t.Errorf("expected 2 failed nodes, got %d", got)
	}
}

func TestMapperSavesHTML(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.SaveHTML = true
	m := NewMapper(siteTree(), cfg, WithMaxDepth(0), WithMapperLogger(quietLogger()))

	sm, err := m.Map(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name := "map_debug_depth0_" + urlutil.SanitizeFilename(base+DefaultSeedPath, 50) + ".html"
	path := filepath.Join(cfg.DebugDir, name)
	if sm.Nodes[0].SavedAs != path {
		t.Errorf("expected SavedAs %q, got %q", path, sm.Nodes[0].SavedAs)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected saved page at %s: %v", path, err)
	}
}

type memoryRecorder struct {
	mu    sync.Mutex
	nodes []string
	links [][2]string
}

func (r *memoryRecorder) RecordNode(_ context.Context, n *model.MapNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, n.URL)
	return nil
}

func (r *memoryRecorder) RecordLink(_ context.Context, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, [2]string{from, to})
	return nil
}

func TestMapperRecorder(t *testing.T) {
	t.Parallel()

	rec := &memoryRecorder{}
	m := NewMapper(siteTree(), testConfig(t), WithMaxDepth(1), WithRecorder(rec), WithMapperLogger(quietLogger()))

	sm, err := m.Map(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.nodes) != len(sm.Nodes) {
		t.Errorf("expected %d recorded nodes, got %d", len(sm.Nodes), len(rec.nodes))
	}
	if len(rec.links) == 0 || rec.links[0][0] != base+DefaultSeedPath {
		t.Errorf("expected the seed's edges to be recorded first, got %v", rec.links)
	}
}

func TestMapperCancellation(t *testing.T) {
	t.Parallel()

	site := browsertest.NewSite()
	site.HandleFunc(func(string) (browsertest.Response, bool) {
		return browsertest.Response{HTML: node("/g/next/"), Delay: time.Second}, true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	m := NewMapper(site, testConfig(t), WithMapperLogger(quietLogger()))
	sm, err := m.Map(ctx, "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if sm == nil {
		t.Fatal("expected the partial map to be returned")
	}
	if len(sm.Nodes) != 0 {
		t.Errorf("expected the interrupted seed not to be recorded as a node, got %+v", sm.Nodes)
	}
}

func TestMapperCancellationNotRecorded(t *testing.T) {
	t.Parallel()

	site := browsertest.NewSite()
	site.HandleFunc(func(string) (browsertest.Response, bool) {
		return browsertest.Response{HTML: node("/g/next/"), Delay: time.Second}, true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	rec := &memoryRecorder{}
	m := NewMapper(site, testConfig(t), WithMapperLogger(quietLogger()), WithRecorder(rec))
	if _, err := m.Map(ctx, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if len(rec.nodes) != 0 {
		t.Errorf("expected no recorded nodes after cancellation, got %d", len(rec.nodes))
	}
}

func TestMapperNoSession(t *testing.T) {
	t.Parallel()

	site := browsertest.NewSite()
	_ = site.Close()
	m := NewMapper(site, testConfig(t))
	if _, err := m.Map(context.Background(), ""); err == nil {
		t.Error("expected an error from a closed session")
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
