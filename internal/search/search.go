// Package search implements the listing search pipeline: it builds result
// page URLs, navigates them through the proxy gateway, extracts result
// cards with the selector resolver, and augments every card with fields
// from its detail page.
//
// The pipeline never fails on content. A block page ends the search with
// a single diagnostic record, a page without a listing container ends
// pagination with a debug snapshot, and a failing detail fetch leaves its
// card unaugmented. Only setup failures (an invalid query, a page that
// cannot be opened) are returned as errors.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/corrupt0303/listingscan/internal/browser"
	"github.com/corrupt0303/listingscan/internal/challenge"
	"github.com/corrupt0303/listingscan/internal/config"
	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/retry"
	"github.com/corrupt0303/listingscan/internal/selector"
	"github.com/corrupt0303/listingscan/internal/slugs"
	"github.com/corrupt0303/listingscan/internal/urlutil"
)

// ErrNoSession is returned when a Searcher is used without a browser session.
var ErrNoSession = errors.New("no browser session")

// debugHeadBytes is how much of each page is logged at Debug level.
const debugHeadBytes = 2000

// Searcher runs searches and detail fetches over one browser session.
// A Searcher is safe for concurrent use by multiple goroutines as long as
// the session is; each search owns its own listing page.
type Searcher struct {
	session  browser.Session
	cfg      *config.Config
	proxy    urlutil.Proxy
	logger   *slog.Logger
	detector *challenge.Detector
	listing  selector.RuleSet
	detail   selector.RuleSet
	slugs    *slugs.Dataset
	defaults model.SearchQuery
	retry    retry.Policy
	debugDir string
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger for the Searcher.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDetector replaces the block detector.
func WithDetector(d *challenge.Detector) Option {
	return func(s *Searcher) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithListingRules replaces the result-card rule set.
func WithListingRules(rules selector.RuleSet) Option {
	return func(s *Searcher) {
		if len(rules) > 0 {
			s.listing = rules
		}
	}
}

// WithDetailRules replaces the detail-page rule set.
func WithDetailRules(rules selector.RuleSet) Option {
	return func(s *Searcher) {
		if len(rules) > 0 {
			s.detail = rules
		}
	}
}

// WithSlugs sets the dataset used to validate locations.
func WithSlugs(ds *slugs.Dataset) Option {
	return func(s *Searcher) {
		if ds != nil {
			s.slugs = ds
		}
	}
}

// WithDefaults sets query defaults applied before the package defaults.
func WithDefaults(q model.SearchQuery) Option {
	return func(s *Searcher) {
		s.defaults = q
	}
}

// WithRetryPolicy replaces the detail retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Searcher) {
		s.retry = p
	}
}

// WithDebugDir sets the directory for debug snapshots. Empty disables them.
func WithDebugDir(dir string) Option {
	return func(s *Searcher) {
		s.debugDir = dir
	}
}

// NewSearcher creates a Searcher over session.
// Rules, signatures and query defaults come from cfg.Profile unless
// overridden by options. A nil cfg means config.NewConfig().
func NewSearcher(session browser.Session, cfg *config.Config, opts ...Option) *Searcher {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	s := &Searcher{
		session:  session,
		cfg:      cfg,
		proxy:    cfg.Proxy(),
		logger:   slog.Default(),
		detector: cfg.Profile.Detector(),
		listing:  cfg.Profile.ListingRules(),
		detail:   cfg.Profile.DetailRules(),
		slugs:    slugs.Default(),
		defaults: cfg.Profile.SearchDefaults(),
		debugDir: cfg.DebugDir,
	}
	s.retry = retry.Policy{
		Attempts:   cfg.RetryAttempts,
		Delay:      cfg.RetryDelay,
		Multiplier: 1,
		Retryable:  retry.DefaultRetryable,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retry.Logger == nil {
		s.retry.Logger = s.logger
	}
	return s
}

// URL returns the bare target URL of result page n for q, with defaults applied.
func (s *Searcher) URL(q model.SearchQuery, n int) string {
	return BuildSearchURL(q.WithDefaults(s.defaults), n, s.proxy, s.slugs)
}

// Search runs q page by page and returns the records in discovery order.
//
// Diagnostics are attached to the first record (or form a standalone
// record when nothing was found): the bare and proxied URL of page 1.
// A block signal on any page returns exactly one record carrying the
// error and the diagnostics.
//
// The returned error is non-nil only for setup failures, or when ctx is
// cancelled, in which case the records collected so far are returned too.
func (s *Searcher) Search(ctx context.Context, q model.SearchQuery) ([]model.ListingRecord, error) {
	if s.session == nil {
		return nil, ErrNoSession
	}
	q = q.WithDefaults(s.defaults)
	if err := config.ValidateQuery(q); err != nil {
		return nil, err
	}

	page, err := s.session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open search page: %w", err)
	}
	defer page.Close()

	var (
		records         []model.ListingRecord
		debugURL        string
		debugProxiedURL string
	)

	for n := 1; n <= q.MaxPages; n++ {
		if n > 1 {
			if err := browser.Settle(ctx, s.cfg.PageDelay); err != nil {
				return attachDebug(records, debugURL, debugProxiedURL), err
			}
		}

		target := BuildSearchURL(q, n, s.proxy, s.slugs)
		proxied := s.proxy.Prefix + target
		if n == 1 {
			debugURL, debugProxiedURL = target, proxied
		}

		result := s.searchPage(ctx, page, n, target, proxied)
		if result.blocked != nil {
			s.logger.Warn("search blocked",
				"page", n,
				"kind", result.blocked.Kind(),
				"signature", result.blocked.Signal.Signature)
			return []model.ListingRecord{{
				Error:           result.blocked.Error(),
				DebugURL:        debugURL,
				DebugProxiedURL: debugProxiedURL,
			}}, nil
		}

		if len(result.records) > 0 {
			s.augment(ctx, result.records)
			records = append(records, result.records...)
		}

		if err := ctx.Err(); err != nil {
			return attachDebug(records, debugURL, debugProxiedURL), err
		}
		if result.stop {
			break
		}
	}

	s.logger.Debug("search finished", "records", len(records))
	return attachDebug(records, debugURL, debugProxiedURL), nil
}

// attachDebug puts the diagnostics on the first record, or appends a
// standalone diagnostics record when there is none.
func attachDebug(records []model.ListingRecord, debugURL, debugProxiedURL string) []model.ListingRecord {
	if debugURL == "" && debugProxiedURL == "" {
		return records
	}
	if len(records) == 0 {
		return []model.ListingRecord{{DebugURL: debugURL, DebugProxiedURL: debugProxiedURL}}
	}
	records[0].DebugURL = debugURL
	records[0].DebugProxiedURL = debugProxiedURL
	return records
}

// pageResult is the outcome of one result page.
type pageResult struct {
	records []model.ListingRecord
	blocked *challenge.BlockedError
	stop    bool
}

// searchPage navigates to one result page and extracts its cards.
func (s *Searcher) searchPage(ctx context.Context, page browser.Page, n int, target, proxied string) pageResult {
	logger := s.logger.With("page", n)
	logger.Debug("navigating", "url", proxied)

	if err := page.Goto(ctx, proxied, s.cfg.PageTimeout); err != nil {
		logger.Error("navigation failed", "error", err)
		return pageResult{stop: true}
	}
	if err := browser.Settle(ctx, s.cfg.SettleDelay); err != nil {
		return pageResult{stop: true}
	}

	html, err := page.Content(ctx)
	if err != nil {
		logger.Error("failed to read page", "error", err)
		return pageResult{stop: true}
	}
	snap := model.NewPage(target, proxied, html)
	logger.Debug("page loaded", "bytes", len(snap.HTML), "head", snap.Head(debugHeadBytes))

	if blocked, ok := challenge.AsBlocked(s.detector.Check(snap.HTML)); ok {
		return pageResult{blocked: blocked}
	}

	if err := page.WaitForSelector(ctx, selector.ListingContainer, s.cfg.SelectorTimeout); err != nil {
		logger.Warn("listing container not found", "error", err)
		s.writeDebugPage(n, snap.HTML)
		return pageResult{stop: true}
	}

	// The container wait may have let the page render more cards.
	if rendered, err := page.Content(ctx); err == nil {
		snap = model.NewPage(target, proxied, rendered)
	}

	records := s.extractListings(snap.HTML, proxied, logger)
	logger.Debug("listings extracted", "count", len(records))
	return pageResult{records: records}
}

// extractListings reads up to MaxListingsPerPage result cards from html.
// Cards without a URL are skipped.
func (s *Searcher) extractListings(html, pageURL string, logger *slog.Logger) []model.ListingRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Error("failed to parse page", "error", err)
		return nil
	}

	cards := doc.Find(selector.ListingContainer)
	if cards.Length() > s.cfg.MaxListingsPerPage {
		cards = cards.Slice(0, s.cfg.MaxListingsPerPage)
	}

	records := make([]model.ListingRecord, 0, cards.Length())
	cards.Each(func(i int, card *goquery.Selection) {
		fields := selector.Extract(doc, card, s.listing, selector.Sources{URL: pageURL})

		href := fields.Get(selector.FieldURL)
		if href == "" {
			logger.Debug("skipping card without url", "index", i)
			return
		}

		records = append(records, model.ListingRecord{
			Title:       fields.Get(selector.FieldTitle),
			URL:         s.proxy.Wrap(href),
			Location:    fields.Get(selector.FieldLocation),
			Description: fields.Get(selector.FieldDescription),
			Age:         fields.Get(selector.FieldAge),
			Category:    fields.Get(selector.FieldCategory),
		})
	})
	return records
}

// writeDebugPage saves the HTML of a page that did not render a container.
func (s *Searcher) writeDebugPage(n int, html string) {
	if s.debugDir == "" {
		return
	}
	if err := os.MkdirAll(s.debugDir, 0o750); err != nil {
		s.logger.Warn("failed to create debug directory", "dir", s.debugDir, "error", err)
		return
	}
	path := filepath.Join(s.debugDir, fmt.Sprintf("debug_page_%d.html", n))
	if err := os.WriteFile(path, []byte(html), 0o600); err != nil {
		s.logger.Warn("failed to write debug page", "path", path, "error", err)
		return
	}
	s.logger.Info("wrote debug page", "path", path)
}
