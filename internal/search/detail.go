package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/corrupt0303/listingscan/internal/browser"
	"github.com/corrupt0303/listingscan/internal/challenge"
	"github.com/corrupt0303/listingscan/internal/model"
	"github.com/corrupt0303/listingscan/internal/retry"
	"github.com/corrupt0303/listingscan/internal/selector"
)

// GetListingDetails fetches and extracts one detail page.
//
// rawURL may be bare, relative, or proxied in any nesting; it is
// canonicalized and wrapped exactly once. The page is opened on its own
// tab and navigated under the retry policy. Failures never return an
// error: a block page sets Error to the blocked message, and exhausted
// retries set "Failed to fetch details after N attempts: <err>".
func (s *Searcher) GetListingDetails(ctx context.Context, rawURL string) model.DetailRecord {
	target := s.proxy.Wrap(rawURL)
	logger := s.logger.With("url", target)

	if s.session == nil {
		return model.DetailRecord{URL: target, Error: ErrNoSession.Error()}
	}

	page, err := s.session.NewPage(ctx)
	if err != nil {
		logger.Error("failed to open detail page", "error", err)
		return model.DetailRecord{URL: target, Error: fmt.Sprintf("failed to open page: %v", err)}
	}
	defer page.Close()

	var detail model.DetailRecord
	err = retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		logger.Debug("fetching detail page", "attempt", attempt)
		d, err := s.fetchDetail(ctx, page, target)
		if err != nil {
			return err
		}
		detail = d
		return nil
	})

	if err != nil {
		logger.Warn("detail fetch failed", "error", err)
		return model.DetailRecord{URL: target, Error: detailError(err)}
	}
	return detail
}

// detailError converts a fetch failure into the record's error text.
func detailError(err error) string {
	var exhausted *retry.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return fmt.Sprintf("Failed to fetch details after %d attempts: %v", exhausted.Attempts, exhausted.Err)
	case challenge.IsBlocked(err):
		return challenge.BlockedMessage
	default:
		return err.Error()
	}
}

// fetchDetail runs one attempt: navigate, settle, block check, extract.
func (s *Searcher) fetchDetail(ctx context.Context, page browser.Page, target string) (model.DetailRecord, error) {
	if err := page.Goto(ctx, target, s.cfg.PageTimeout); err != nil {
		return model.DetailRecord{}, err
	}
	if err := browser.Settle(ctx, s.cfg.SettleDelay); err != nil {
		return model.DetailRecord{}, err
	}

	html, err := page.Content(ctx)
	if err != nil {
		return model.DetailRecord{}, err
	}
	snap := model.NewPage(s.proxy.Unwrap(target), target, html)

	if err := s.detector.Check(snap.HTML); err != nil {
		return model.DetailRecord{}, err
	}

	return s.ExtractDetail(snap.HTML, target)
}

// ExtractDetail resolves the detail rule set over html.
// pageURL is the navigated URL, used as a source for the ad id.
func (s *Searcher) ExtractDetail(html, pageURL string) (model.DetailRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("failed to parse detail page: %w", err)
	}

	fields := selector.Extract(doc, doc.Selection, s.detail, selector.Sources{URL: pageURL, HTML: html})

	images := fields.Values(selector.FieldImages)
	if images == nil {
		images = []string{}
	}

	d := model.DetailRecord{
		Title:       fields.Get(selector.FieldTitle),
		Description: fields.Get(selector.FieldDescription),
		Price:       fields.Get(selector.FieldPrice),
		Location:    fields.Get(selector.FieldLocation),
		DatePosted:  fields.Get(selector.FieldDatePosted),
		Images:      images,
		ContactInfo: fields.Get(selector.FieldContactInfo),
		Age:         fields.Get(selector.FieldAge),
		AdID:        fields.Get(selector.FieldAdID),
		URL:         pageURL,
	}
	s.logger.Debug("details extracted",
		"url", pageURL,
		"fields", len(fields),
		"contact_info", d.ContactInfo)
	return d, nil
}
