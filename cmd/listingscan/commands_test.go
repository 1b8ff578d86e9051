package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/corrupt0303/listingscan/internal/browser/browsertest"
	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/database"
	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/search"
	"github.com/corrupt0303/listingscan/internal/urlutil"
)

const (
	testPrefix = urlutil.DefaultProxyPrefix
	testBase   = urlutil.DefaultBaseURL
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.SettleDelay = 0
	cfg.PageDelay = 0
	cfg.RetryDelay = 0
	cfg.SelectorTimeout = 10 * time.Millisecond
	cfg.DebugDir = t.TempDir()
	cfg.DBDir = t.TempDir()
	return cfg
}

func resultsPage(ids ...int) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Results</title></head><body><main>`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<article class="posting_listing">
<a class="posting_listing__title js-result_title js-ad_link" href="/ID_%d/ad.html"><div class="h3 js-result_title">Ad %d</div></a>
<span class="js-result_location posting_listing__city">Cape Town</span>
<div class="posting_listing__description js-description_snippet">Desc %d</div>
<span class="posting_listing__age">25</span>
</article>`, id, id, id)
	}
	b.WriteString(`</main></body></html>`)
	return b.String()
}

func detailPage(id int) string {
	return fmt.Sprintf(`<html><head><title>Ad %d</title></head><body>
<h1 class="app_title">Title %d</h1>
<div class="vap__description">Lovely person number %d</div>
<span class="contact_buttons__button--call">+27 82 555 010%d</span>
</body></html>`, id, id, id, id)
}

func detailURL(id int) string {
	return fmt.Sprintf("%s%s/ID_%d/ad.html", testPrefix, testBase, id)
}

// TestQueryFromFlags tests search query building.
func TestQueryFromFlags(t *testing.T) {
	t.Parallel()

	cmd := parsedCmd(t, "search",
		"-l", "cape-town",
		"--category", "personals",
		"-p", "3",
		"--age-min", "21",
		"--dist", "50",
		"--no-description",
	)
	q, err := queryFromFlags(cmd, []string{"coffee date"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.Query != "coffee date" || q.Location != "cape-town" || q.Category != "personals" {
		t.Errorf("expected query, location and category from flags, got %+v", q)
	}
	if q.MaxPages != 3 || q.AgeMin != 21 || q.Distance != 50 {
		t.Errorf("expected numeric filters from flags, got %+v", q)
	}
	if q.QueryDescription == nil || *q.QueryDescription {
		t.Error("expected --no-description to disable description search")
	}
	if q.AgeMax != 0 || q.Sort != "" {
		t.Errorf("expected unset filters to stay zero, got %+v", q)
	}
}

// TestRunSearch tests a search over a fake site.
func TestRunSearch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	site := browsertest.NewSite()
	q := model.SearchQuery{Query: "dating", Location: "cape-town"}

	site.Handle(testPrefix+search.NewSearcher(site, cfg).URL(q, 1), resultsPage(1, 2))
	site.Handle(detailURL(1), detailPage(1))
	site.Handle(detailURL(2), detailPage(2))

	result, err := runSearch(context.Background(), cfg, site, q, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Listings()) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(result.Listings()))
	}
	if result.ContactCount() != 2 {
		t.Errorf("expected 2 listings with contact, got %d", result.ContactCount())
	}
	if result.Query.Query != "dating" {
		t.Errorf("expected query to be kept, got %q", result.Query.Query)
	}

	t.Run("saves listings and counts new ones", func(t *testing.T) {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		var out bytes.Buffer
		if err := saveListings(context.Background(), db, result, &out, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "Saved 2 listings (2 new)") {
			t.Errorf("expected 2 new listings, got %q", out.String())
		}

		out.Reset()
		if err := saveListings(context.Background(), db, result, &out, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "Saved 2 listings (0 new)") {
			t.Errorf("expected no new listings on second save, got %q", out.String())
		}
	})
}

// TestMapSeed tests seed selection.
func TestMapSeed(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	if got := mapSeed(cfg, []string{"/cape-town/"}); got != "/cape-town/" {
		t.Errorf("expected argument seed, got %s", got)
	}
	if got := mapSeed(cfg, nil); !strings.HasPrefix(got, testPrefix) {
		t.Errorf("expected proxied default seed, got %s", got)
	}

	cfg.Profile = &config.Profile{Mapper: config.MapperConfig{Seed: "/durban/"}}
	if got := mapSeed(cfg, nil); got != "/durban/" {
		t.Errorf("expected profile seed, got %s", got)
	}
}

// TestRunMap tests mapping with and without recording.
func TestRunMap(t *testing.T) {
	t.Parallel()

	newSite := func() *browsertest.Site {
		return browsertest.NewSite().
			Handle(testPrefix+testBase+"/g/personals/",
				`<html><body><a href="/g/dating/">Dating</a></body></html>`).
			Handle(testPrefix+testBase+"/g/dating/", resultsPage(1, 2, 3))
	}

	t.Run("without database", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		sm, err := runMap(context.Background(), cfg, newSite(), nil, "/g/personals/", discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sm.Stats().Visited != 2 {
			t.Errorf("expected 2 visited nodes, got %d", sm.Stats().Visited)
		}
	})

	t.Run("records run", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig(t)
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		sm, err := runMap(context.Background(), cfg, newSite(), db, "/g/personals/", discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		runs, err := db.ListRuns(context.Background())
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}
		if !runs[0].Finished() || runs[0].Visited != sm.Stats().Visited {
			t.Errorf("expected finished run with %d visited, got %+v", sm.Stats().Visited, runs[0])
		}
		if runs[0].Seed != testBase+"/g/personals/" {
			t.Errorf("expected canonical seed, got %s", runs[0].Seed)
		}

		stored, err := db.LoadSiteMap(context.Background(), runs[0].ID)
		if err != nil {
			t.Fatalf("failed to load site map: %v", err)
		}
		if stored.Stats().Listings != 3 {
			t.Errorf("expected 3 stored listings, got %d", stored.Stats().Listings)
		}
	})
}

// TestWriteRuns tests the run table.
func TestWriteRuns(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := writeRuns(&buf, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No mapping runs") {
			t.Errorf("expected empty message, got %q", buf.String())
		}
	})

	t.Run("statuses", func(t *testing.T) {
		t.Parallel()
		now := time.Now()
		runs := []database.MapRun{
			{ID: 3, Seed: "https://a/", StartedAt: now},
			{ID: 2, Seed: "https://b/", StartedAt: now, FinishedAt: now, Truncated: true},
			{ID: 1, Seed: "https://c/", StartedAt: now, FinishedAt: now, Visited: 7},
		}
		var buf bytes.Buffer
		if err := writeRuns(&buf, runs); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
		}
		for i, want := range []string{"running", "limit", "done"} {
			if !strings.Contains(lines[i+1], want) {
				t.Errorf("row %d: expected status %q, got %q", i, want, lines[i+1])
			}
		}
	})
}

// executeRoot runs the root command with args and returns its stdout.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"-c", writeProfile(t, "{}\n")}, args...))
	err := root.Execute()
	return out.String(), err
}

// TestHistoryCmd tests the history subcommands against a stored run.
func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	dbDir := t.TempDir()
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	ctx := context.Background()
	rec, err := db.StartRun(ctx, testBase+"/g/personals/", 1)
	if err != nil {
		t.Fatalf("failed to start run: %v", err)
	}
	node := model.MapNode{URL: testBase + "/g/personals/", Listings: 4}
	if err := rec.RecordNode(ctx, &node); err != nil {
		t.Fatalf("failed to record node: %v", err)
	}
	if err := rec.Finish(ctx, &model.SiteMap{Nodes: []model.MapNode{node}}); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}
	if _, err := db.SaveListings(ctx, []model.ListingRecord{
		{Title: "Stored ad", URL: detailURL(9), Location: "Durban"},
	}); err != nil {
		t.Fatalf("failed to save listing: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close database: %v", err)
	}

	t.Run("runs", func(t *testing.T) {
		t.Parallel()
		out, err := executeRoot(t, "history", "runs", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "/g/personals/") || !strings.Contains(out, "done") {
			t.Errorf("expected finished run in table, got %q", out)
		}
	})

	t.Run("run as json", func(t *testing.T) {
		t.Parallel()
		out, err := executeRoot(t, "history", "run", fmt.Sprint(rec.RunID()), "--db-dir", dbDir, "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, `"listings": 4`) {
			t.Errorf("expected stored node in JSON, got %q", out)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()
		_, err := executeRoot(t, "history", "run", "999", "--db-dir", dbDir)
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("listings", func(t *testing.T) {
		t.Parallel()
		out, err := executeRoot(t, "history", "listings", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "1. Stored ad") {
			t.Errorf("expected stored listing in summary, got %q", out)
		}
	})

	t.Run("missing database", func(t *testing.T) {
		t.Parallel()
		_, err := executeRoot(t, "history", "runs", "--db-dir", t.TempDir())
		if err == nil {
			t.Error("expected error when no database exists")
		}
	})
}

// TestValidateCmd tests selector validation over saved pages.
func TestValidateCmd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "debug_page_1.html"), []byte(resultsPage(1, 2)), 0600); err != nil {
		t.Fatalf("failed to write page: %v", err)
	}

	out, err := executeRoot(t, "validate", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"SELECTOR VALIDATION", "Containers: 2", "FIELD COVERAGE"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got %q", want, out)
		}
	}

	t.Run("suggest writes a profile fragment", func(t *testing.T) {
		t.Parallel()

		drifted := t.TempDir()
		page := `<html><body>
<article class="posting_listing">
  <a class="posting_listing__title" href="/ID_1/"><div class="h3 js-result_title">One</div></a>
  <span class="card__city">Cape Town</span>
</article>
</body></html>`
		if err := os.WriteFile(filepath.Join(drifted, "page.html"), []byte(page), 0600); err != nil {
			t.Fatalf("failed to write page: %v", err)
		}
		path := filepath.Join(t.TempDir(), "tuned.yaml")

		out, err := executeRoot(t, "validate", drifted, "--suggest", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "SUGGESTED SELECTORS") {
			t.Errorf("expected suggestions in the summary, got %q", out)
		}

		p, err := config.LoadConfigFile(path)
		if err != nil {
			t.Fatalf("expected the suggestion file to load as a profile, got %v", err)
		}
		loc := p.Selectors.Listing["location"]
		if len(loc) == 0 || loc[len(loc)-1] != "span.card__city" {
			t.Errorf("expected span.card__city as the last location strategy, got %v", loc)
		}
	})

	t.Run("suggest without candidates writes nothing", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "tuned.yaml")
		if _, err := executeRoot(t, "validate", dir, "--suggest", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected no file to be written, got %v", err)
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		t.Parallel()
		if _, err := executeRoot(t, "validate", t.TempDir()); err == nil {
			t.Error("expected error for directory without pages")
		}
	})
}

// TestSlugsCmd tests slug harvesting.
func TestSlugsCmd(t *testing.T) {
	t.Parallel()

	page := filepath.Join(t.TempDir(), "home.html")
	html := `<html><body>
<a href="/g/tag/sunday-market/">Tag</a>
<a href="` + testPrefix + testBase + `/atlantis/">Atlantis</a>
<a href="https://elsewhere.test/nowhere/">Other site</a>
</body></html>`
	if err := os.WriteFile(page, []byte(html), 0600); err != nil {
		t.Fatalf("failed to write page: %v", err)
	}

	t.Run("harvested only", func(t *testing.T) {
		t.Parallel()
		out, err := executeRoot(t, "slugs", page, "--no-merge")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "sunday-market") || !strings.Contains(out, "atlantis") {
			t.Errorf("expected harvested slugs, got %q", out)
		}
		if strings.Contains(out, "nowhere") {
			t.Errorf("expected other hosts to be ignored, got %q", out)
		}
		if strings.Contains(out, "cape-town") {
			t.Errorf("expected no embedded slugs without merge, got %q", out)
		}
	})

	t.Run("merged into file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "slugs.yaml")
		if _, err := executeRoot(t, "slugs", page, "-o", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if !strings.Contains(string(content), "atlantis") || !strings.Contains(string(content), "cape-town") {
			t.Errorf("expected harvested and embedded slugs, got %q", content)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := executeRoot(t, "slugs", filepath.Join(t.TempDir(), "missing.html")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
