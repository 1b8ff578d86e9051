package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/corrupt0303/listingscan/internal/browser/browsertest"
	"github.com/corrupt0303/listingscan/internal/challenge"
	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/urlutil"
)

const (
	testPrefix = urlutil.DefaultProxyPrefix
	testBase   = urlutil.DefaultBaseURL
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.SettleDelay = 0
	cfg.PageDelay = 0
	cfg.RetryDelay = 0
	cfg.SelectorTimeout = 10 * time.Millisecond
	cfg.DebugDir = t.TempDir()
	return cfg
}

func newTestSearcher(t *testing.T, site *browsertest.Site, cfg *config.Config) *Searcher {
	t.Helper()
	return NewSearcher(site, cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// listingCard renders one result card. Odd ids link with a relative href,
// even ids with an already proxied one.
func listingCard(id int) string {
	href := fmt.Sprintf("/ID_%d/ad.html", id)
	if id%2 == 0 {
		href = testPrefix + testBase + href
	}
	return fmt.Sprintf(`<article class="posting_listing">
<a class="posting_listing__title js-result_title js-ad_link" href="%s"><div class="h3 js-result_title">Ad %d</div></a>
<span class="js-result_location posting_listing__city">Cape Town</span>
<div class="posting_listing__description js-description_snippet">Desc %d</div>
<span class="posting_listing__age">25</span>
</article>`, href, id, id)
}

func resultsPage(ids ...int) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Results</title></head><body><main>`)
	for _, id := range ids {
		b.WriteString(listingCard(id))
	}
	b.WriteString(`</main></body></html>`)
	return b.String()
}

func detailPage(id int) string {
	return fmt.Sprintf(`<html><head><title>Ad %d</title></head><body>
<h1 class="app_title">Title %d</h1>
<div class="vap__description">Lovely person number %d</div>
<span class="price">R %d00</span>
<span itemprop="addressLocality">Cape Town</span>
<img class="user_images__img" src="https://img.locanto.test/%d.jpg">
<span class="contact_buttons__button--call">+27 82 555 010%d</span>
<div class="header-age">2%d years</div>
</body></html>`, id, id, id, id, id, id, id)
}

func detailURL(id int) string {
	return fmt.Sprintf("%s%s/ID_%d/ad.html", testPrefix, testBase, id)
}

const blockPage = `<html><head><title>Locanto Error page</title></head><body>Access denied</body></html>`

func dating() model.SearchQuery {
	return model.SearchQuery{Query: "dating", Location: "cape-town"}
}

func isResultsPage(u string) bool {
	return strings.Contains(u, "?query=")
}

func TestSearchEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	site := browsertest.NewSite()
	s := newTestSearcher(t, site, cfg)

	q := dating()
	q.MaxPages = 2
	site.Handle(testPrefix+s.URL(q, 1), resultsPage(1, 2, 3))
	site.Handle(testPrefix+s.URL(q, 2), resultsPage(4, 5, 6))
	for id := 1; id <= 6; id++ {
		site.Handle(detailURL(id), detailPage(id))
	}

	records, err := s.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("expected 6 records, got %d", len(records))
	}

	for i, r := range records {
		id := i + 1
		if r.Title != fmt.Sprintf("Ad %d", id) {
			t.Errorf("record %d: expected title %q, got %q", i, fmt.Sprintf("Ad %d", id), r.Title)
		}
		if r.URL != detailURL(id) {
			t.Errorf("record %d: expected url %q, got %q", i, detailURL(id), r.URL)
		}
		if strings.Count(r.URL, testPrefix) != 1 {
			t.Errorf("record %d: expected exactly one proxy prefix, got %q", i, r.URL)
		}
		if r.Location != "Cape Town" {
			t.Errorf("record %d: expected location Cape Town, got %q", i, r.Location)
		}
		if r.ContactInfo == nil {
			t.Errorf("record %d: expected contact info to be set", i)
			continue
		}
		if want := fmt.Sprintf("+27 82 555 010%d", id); *r.ContactInfo != want {
			t.Errorf("record %d: expected contact %q, got %q", i, want, *r.ContactInfo)
		}
	}

	first := records[0]
	if first.DebugURL != s.URL(q, 1) {
		t.Errorf("expected debug url %q, got %q", s.URL(q, 1), first.DebugURL)
	}
	if first.DebugProxiedURL != testPrefix+s.URL(q, 1) {
		t.Errorf("expected debug proxied url %q, got %q", testPrefix+s.URL(q, 1), first.DebugProxiedURL)
	}
	for _, r := range records[1:] {
		if r.DebugURL != "" || r.DebugProxiedURL != "" {
			t.Errorf("expected debug fields only on the first record, got %+v", r)
		}
	}

	if got := site.CountNavigations(isResultsPage); got != 2 {
		t.Errorf("expected 2 result page navigations, got %d", got)
	}
	if got := site.OpenPages(); got != 0 {
		t.Errorf("expected every page to be closed, got %d open", got)
	}
	if got := site.SharedPageViolations(); got != 0 {
		t.Errorf("expected no shared page use, got %d violations", got)
	}
}

func TestSearchPaginationBound(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	site := browsertest.NewSite()
	s := newTestSearcher(t, site, cfg)

	q := dating()
	q.MaxPages = 2
	for n := 1; n <= 3; n++ {
		site.Handle(testPrefix+s.URL(q, n), resultsPage(n*10))
	}
	site.HandleFunc(func(u string) (browsertest.Response, bool) {
		if strings.Contains(u, "/ID_") {
			return browsertest.Response{HTML: detailPage(1)}, true
		}
		return browsertest.Response{}, false
	})

	records, err := s.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
	if got := site.CountNavigations(isResultsPage); got != 2 {
		t.Errorf("expected 2 result page navigations, got %d", got)
	}
	if got := site.NavigationCount(testPrefix + s.URL(q, 3)); got != 0 {
		t.Errorf("expected page 3 to never be visited, got %d", got)
	}
}

func TestSearchDefaultsToOnePage(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	site := browsertest.NewSite()
	s := newTestSearcher(t, site, cfg)

	q := dating()
	site.Handle(testPrefix+s.URL(q, 1), resultsPage(1))
	site.Handle(testPrefix+s.URL(q, 2), resultsPage(2))
	site.Handle(detailURL(1), detailPage(1))

	records, err := s.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
	if got := site.CountNavigations(isResultsPage); got != 1 {
		t.Errorf("expected 1 result page navigation, got %d", got)
	}
}

func TestSearchBlocked(t *testing.T) {
	t.Parallel()

	t.Run("first page", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		site := browsertest.NewSite()
		s := newTestSearcher(t, site, cfg)

		q := dating()
		q.MaxPages = 3
		site.Handle(testPrefix+s.URL(q, 1), blockPage)

		records, err := s.Search(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected exactly 1 record, got %d", len(records))
		}
		r := records[0]
		if r.Error != challenge.BlockedMessage {
			t.Errorf("expected error %q, got %q", challenge.BlockedMessage, r.Error)
		}
		if r.DebugURL != s.URL(q, 1) || r.DebugProxiedURL != testPrefix+s.URL(q, 1) {
			t.Errorf("expected debug fields for page 1, got %q and %q", r.DebugURL, r.DebugProxiedURL)
		}
		if got := len(site.Navigations()); got != 1 {
			t.Errorf("expected 1 navigation, got %d", got)
		}
	})

	t.Run("later page discards earlier records", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		site := browsertest.NewSite()
		s := newTestSearcher(t, site, cfg)

		q := dating()
		q.MaxPages = 3
		site.Handle(testPrefix+s.URL(q, 1), resultsPage(1, 2))
		site.Handle(testPrefix+s.URL(q, 2), blockPage)
		site.Handle(detailURL(1), detailPage(1))
		site.Handle(detailURL(2), detailPage(2))

		records, err := s.Search(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected exactly 1 record, got %d", len(records))
		}
		if !records[0].HasError() {
			t.Errorf("expected an error record, got %+v", records[0])
		}
		if records[0].DebugURL != s.URL(q, 1) {
			t.Errorf("expected page 1 debug url, got %q", records[0].DebugURL)
		}
		if got := site.NavigationCount(testPrefix + s.URL(q, 3)); got != 0 {
			t.Errorf("expected page 3 to never be visited, got %d", got)
		}
	})
}

func TestSearchMissingContainer(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	site := browsertest.NewSite()
	s := newTestSearcher(t, site, cfg)

	q := dating()
	q.MaxPages = 2
	empty := `<html><body><p>No results for your search</p></body></html>`
	site.Handle(testPrefix+s.URL(q, 1), empty)
	site.Handle(testPrefix+s.URL(q, 2), resultsPage(1))

	records, err := s.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected a single debug record, got %d", len(records))
	}
	if !records[0].IsDebugOnly() {
		t.Errorf("expected a debug-only record, got %+v", records[0])
	}
	if got := site.NavigationCount(testPrefix + s.URL(q, 2)); got != 0 {
		t.Errorf("expected pagination to stop, got %d visits to page 2", got)
	}

	data, err := os.ReadFile(filepath.Join(cfg.DebugDir, "debug_page_1.html"))
	if err != nil {
		t.Fatalf("expected debug page to be written: %v", err)
	}
	if string(data) != empty {
		t.Errorf("expected debug page to hold the fetched html, got %q", string(data))
	}
}

func TestSearchNavigationFailureStops(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	site := browsertest.NewSite()
	s := newTestSearcher(t, site, cfg)

	q := dating()
	q.MaxPages = 3
	site.Handle(testPrefix+s.URL(q, 1), resultsPage(1))
	site.Handle(detailURL(1), detailPage(1))
	site.Handle(testPrefix+s.URL(q, 3), resultsPage(3))

	records, err := s.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
	if got := site.NavigationCount(testPrefix + s.URL(q, 3)); got != 0 {
		t.Errorf("expected page 3 to never be visited, got %d", got)
	}
}

func TestSearchListingCards(t *testing.T) {
	t.Parallel()

	t.Run("skips cards without url", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		site := browsertest.NewSite()
		s := newTestSearcher(t, site, cfg)

		q := dating()
		noLink := `<article class="posting_listing"><div class="h3 js-result_title">Orphan</div></article>`
		html := strings.Replace(resultsPage(1, 3), "<main>", "<main>"+noLink, 1)
		site.Handle(testPrefix+s.URL(q, 1), html)
		site.Handle(detailURL(1), detailPage(1))
		site.Handle(detailURL(3), detailPage(3))

		records, err := s.Search(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		for _, r := range records {
			if r.URL == "" {
				t.Errorf("expected every record to carry a url, got %+v", r)
			}
		}
	})

	t.Run("caps cards per page", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.MaxListingsPerPage = 3
		site := browsertest.NewSite()
		s := newTestSearcher(t, site, cfg)

		q := dating()
		site.Handle(testPrefix+s.URL(q, 1), resultsPage(1, 2, 3, 4, 5))
		site.HandleFunc(func(u string) (browsertest.Response, bool) {
			return browsertest.Response{HTML: detailPage(9)}, strings.Contains(u, "/ID_")
		})

		records, err := s.Search(context.Background(), q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 3 {
			t.Errorf("expected 3 records, got %d", len(records))
		}
		if got := site.NavigationCount(detailURL(4)); got != 0 {
			t.Errorf("expected card 4 to be ignored, got %d detail visits", got)
		}
	})
}

func TestSearchDetailFailureIsolated(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	site := browsertest.NewSite()
	s := newTestSearcher(t, site, cfg)

	q := dating()
	site.Handle(testPrefix+s.URL(q, 1), resultsPage(1, 2, 3))
	site.Handle(detailURL(1), detailPage(1))
	site.Handle(detailURL(3), detailPage(3))

	records, err := s.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ContactInfo == nil || records[2].ContactInfo == nil {
		t.Errorf("expected healthy records to be augmented")
	}
	if records[1].ContactInfo != nil {
		t.Errorf("expected failed record to stay unaugmented, got %q", *records[1].ContactInfo)
	}
	if records[1].Title != "Ad 2" {
		t.Errorf("expected failed record to keep its card fields, got %+v", records[1])
	}
	if got := site.NavigationCount(detailURL(2)); got != cfg.RetryAttempts {
		t.Errorf("expected %d attempts for the failing detail, got %d", cfg.RetryAttempts, got)
	}
}

func TestSearchDetailConcurrency(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.DetailConcurrency = 2
	site := browsertest.NewSite()
	s := newTestSearcher(t, site, cfg)

	q := dating()
	site.Handle(testPrefix+s.URL(q, 1), resultsPage(1, 2, 3, 4, 5, 6, 7, 8))
	for id := 1; id <= 8; id++ {
		site.HandleResponse(detailURL(id), browsertest.Response{
			HTML:  detailPage(id),
			Delay: 20 * time.Millisecond,
		})
	}

	records, err := s.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 8 {
		t.Fatalf("expected 8 records, got %d", len(records))
	}
	// One listing page plus at most two detail pages.
	if got := site.MaxOpenPages(); got > 3 {
		t.Errorf("expected at most 3 open pages, got %d", got)
	}
	if got := site.SharedPageViolations(); got != 0 {
		t.Errorf("expected no shared page use, got %d violations", got)
	}
	for i, r := range records {
		if r.ContactInfo == nil {
			t.Errorf("record %d: expected contact info to be set", i)
		}
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	t.Parallel()

	site := browsertest.NewSite()
	s := newTestSearcher(t, site, testConfig(t))

	q := dating()
	q.MaxPages = -1
	_, err := s.Search(context.Background(), q)
	if !errors.Is(err, config.ErrInvalidMaxPages) {
		t.Errorf("expected ErrInvalidMaxPages, got %v", err)
	}
	if got := len(site.Navigations()); got != 0 {
		t.Errorf("expected no navigation, got %d", got)
	}
}

func TestSearchNoSession(t *testing.T) {
	t.Parallel()

	s := NewSearcher(nil, testConfig(t))
	if _, err := s.Search(context.Background(), dating()); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestSearchCancelled(t *testing.T) {
	t.Parallel()

	site := browsertest.NewSite()
	s := newTestSearcher(t, site, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Search(ctx, dating()); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

func TestGetListingDetails(t *testing.T) {
	t.Parallel()

	t.Run("extracts every field", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		s := newTestSearcher(t, site, testConfig(t))
		site.Handle(detailURL(7), detailPage(7))

		d := s.GetListingDetails(context.Background(), testBase+"/ID_7/ad.html")
		if d.HasError() {
			t.Fatalf("unexpected error: %s", d.Error)
		}
		checks := map[string][2]string{
			"title":        {"Title 7", d.Title},
			"description":  {"Lovely person number 7", d.Description},
			"price":        {"R 700", d.Price},
			"location":     {"Cape Town", d.Location},
			"contact_info": {"+27 82 555 0107", d.ContactInfo},
			"age":          {"27", d.Age},
			"ad_id":        {"7", d.AdID},
			"url":          {detailURL(7), d.URL},
		}
		for name, c := range checks {
			if c[0] != c[1] {
				t.Errorf("%s: expected %q, got %q", name, c[0], c[1])
			}
		}
		if len(d.Images) != 1 || d.Images[0] != "https://img.locanto.test/7.jpg" {
			t.Errorf("expected one image, got %v", d.Images)
		}
	})

	t.Run("wraps nested proxy urls once", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		s := newTestSearcher(t, site, testConfig(t))
		site.Handle(detailURL(7), detailPage(7))

		d := s.GetListingDetails(context.Background(), testPrefix+testPrefix+testBase+"/ID_7/ad.html")
		if d.HasError() {
			t.Fatalf("unexpected error: %s", d.Error)
		}
		if got := site.NavigationCount(detailURL(7)); got != 1 {
			t.Errorf("expected 1 navigation to the single-prefixed url, got %d", got)
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		s := newTestSearcher(t, site, testConfig(t))
		site.HandleResponse(detailURL(3), browsertest.Response{HTML: detailPage(3), FailTimes: 2})

		d := s.GetListingDetails(context.Background(), detailURL(3))
		if d.HasError() {
			t.Fatalf("unexpected error: %s", d.Error)
		}
		if d.ContactInfo != "+27 82 555 0103" {
			t.Errorf("expected contact info after retry, got %q", d.ContactInfo)
		}
		if got := site.NavigationCount(detailURL(3)); got != 3 {
			t.Errorf("expected 3 navigations, got %d", got)
		}
	})

	t.Run("reports exhausted retries", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		s := newTestSearcher(t, site, testConfig(t))

		d := s.GetListingDetails(context.Background(), detailURL(4))
		if !strings.HasPrefix(d.Error, "Failed to fetch details after 3 attempts: ") {
			t.Errorf("expected exhausted retry message, got %q", d.Error)
		}
		if d.URL != detailURL(4) {
			t.Errorf("expected url %q, got %q", detailURL(4), d.URL)
		}
	})

	t.Run("does not retry block pages", func(t *testing.T) {
		t.Parallel()

		site := browsertest.NewSite()
		s := newTestSearcher(t, site, testConfig(t))
		site.Handle(detailURL(5), blockPage)

		d := s.GetListingDetails(context.Background(), detailURL(5))
		if d.Error != challenge.BlockedMessage {
			t.Errorf("expected blocked message, got %q", d.Error)
		}
		if got := site.NavigationCount(detailURL(5)); got != 1 {
			t.Errorf("expected 1 navigation, got %d", got)
		}
	})
}

func TestExtractDetailDefaults(t *testing.T) {
	t.Parallel()

	s := newTestSearcher(t, browsertest.NewSite(), testConfig(t))
	d, err := s.ExtractDetail(`<html><body><p>nothing here</p></body></html>`, testBase+"/x.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Images == nil || len(d.Images) != 0 {
		t.Errorf("expected empty image list, got %v", d.Images)
	}
	if d.ContactInfo != "" || d.AdID != "" {
		t.Errorf("expected empty fields, got %+v", d)
	}
}
