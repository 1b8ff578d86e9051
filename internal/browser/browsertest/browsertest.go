// Package browsertest provides a fixture-driven fake of browser.Session.
//
// A Site maps navigation URLs to canned HTML or errors. Pages opened from
// it behave like real tabs at the capability boundary: Goto loads the
// fixture, Content returns it, and WaitForSelector succeeds when the CSS
// selector matches the fixture, or fails immediately with
// browser.ErrSelectorTimeout when it does not.
//
// The Site records every navigation and tracks how many pages are open at
// once, so tests can assert pagination bounds, deduplication, and the
// detail-fetch concurrency limit.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/corrupt0303/listingscan/internal/browser"
)

// ErrNotFound is returned by Goto for URLs without a fixture.
var ErrNotFound = errors.New("browsertest: no fixture for URL")

// Response is the fixture served for one URL.
type Response struct {
	// HTML is returned by Content after a successful Goto.
	HTML string

	// Err is returned by Goto.
	Err error

	// FailTimes makes the first N navigations to the URL fail with
	// Err (or a generic error when Err is nil) before serving HTML.
	FailTimes int

	// Delay is slept inside Goto, honouring ctx and the timeout.
	Delay time.Duration
}

// Site is a fake browser.Session serving fixtures.
// The zero value is not usable; use NewSite.
type Site struct {
	mu          sync.Mutex
	fixtures    map[string]*Response
	handler     func(url string) (Response, bool)
	navigations []string
	attempts    map[string]int
	open        int
	maxOpen     int
	opened      int
	violations  int
	closed      bool
}

var _ browser.Session = (*Site)(nil)

// NewSite creates an empty fixture site.
func NewSite() *Site {
	return &Site{
		fixtures: make(map[string]*Response),
		attempts: make(map[string]int),
	}
}

// Handle serves html for url.
func (s *Site) Handle(url, html string) *Site {
	return s.HandleResponse(url, Response{HTML: html})
}

// HandleResponse serves r for url.
func (s *Site) HandleResponse(url string, r Response) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures[url] = &r
	return s
}

// HandleFunc sets a fallback consulted for URLs without a fixture.
func (s *Site) HandleFunc(fn func(url string) (Response, bool)) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
	return s
}

// Navigations returns every URL passed to Goto, in call order.
func (s *Site) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// NavigationCount returns how many times Goto was called for url.
func (s *Site) NavigationCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.navigations {
		if u == url {
			n++
		}
	}
	return n
}

// CountNavigations returns how many navigations satisfy match.
func (s *Site) CountNavigations(match func(url string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.navigations {
		if match(u) {
			n++
		}
	}
	return n
}

// MaxOpenPages returns the peak number of simultaneously open pages.
func (s *Site) MaxOpenPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxOpen
}

// PagesOpened returns how many pages were opened in total.
func (s *Site) PagesOpened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// OpenPages returns how many pages are currently open.
func (s *Site) OpenPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// SharedPageViolations returns how many times two operations ran on the
// same page concurrently.
func (s *Site) SharedPageViolations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations
}

// Closed reports whether Close was called.
func (s *Site) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// NewPage opens a fake tab.
func (s *Site) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, browser.ErrSessionClosed
	}
	s.open++
	s.opened++
	s.maxOpen = max(s.maxOpen, s.open)
	return &Page{site: s}, nil
}

// Close marks the site closed.
func (s *Site) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// lookup records a navigation and returns what to serve for url.
func (s *Site) lookup(url string) (Response, bool) {
	s.mu.Lock()
	s.navigations = append(s.navigations, url)
	s.attempts[url]++
	attempt := s.attempts[url]
	r, ok := s.fixtures[url]
	handler := s.handler
	s.mu.Unlock()

	var resp Response
	switch {
	case ok:
		resp = *r
	case handler != nil:
		resp, ok = handler(url)
	}
	if !ok {
		return Response{}, false
	}
	if attempt <= resp.FailTimes {
		if resp.Err == nil {
			resp.Err = fmt.Errorf("browsertest: transient failure %d for %s", attempt, url)
		}
		return resp, true
	}
	if resp.FailTimes > 0 {
		resp.Err = nil
	}
	return resp, true
}

// Page is a fake tab of a Site.
type Page struct {
	site *Site

	mu     sync.Mutex
	html   string
	busy   bool
	closed bool
}

var _ browser.Page = (*Page)(nil)

func (p *Page) enter() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		p.site.mu.Lock()
		p.site.violations++
		p.site.mu.Unlock()
	}
	p.busy = true
}

func (p *Page) leave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = false
}

// Goto loads the fixture for url.
func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	p.enter()
	defer p.leave()

	resp, ok := p.site.lookup(url)
	if !ok {
		return fmt.Errorf("%w: %w: %s", browser.ErrNavigation, ErrNotFound, url)
	}

	if resp.Delay > 0 {
		wait := resp.Delay
		timer := time.NewTimer(wait)
		defer timer.Stop()
		var deadline <-chan time.Time
		if timeout > 0 && timeout < wait {
			t := time.NewTimer(timeout)
			defer t.Stop()
			deadline = t.C
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w: %s: %w", browser.ErrNavigation, url, context.DeadlineExceeded)
		case <-timer.C:
		}
	}

	if resp.Err != nil {
		return fmt.Errorf("%w: %s: %w", browser.ErrNavigation, url, resp.Err)
	}

	p.mu.Lock()
	p.html = resp.HTML
	p.mu.Unlock()
	return nil
}

// Content returns the HTML of the last successful navigation.
func (p *Page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

// WaitForSelector reports whether css matches the current HTML.
// It never waits: a miss fails immediately with ErrSelectorTimeout.
func (p *Page) WaitForSelector(ctx context.Context, css string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("browsertest: parse fixture: %w", err)
	}
	if doc.Find(css).Length() == 0 {
		return fmt.Errorf("%w: %s after %s", browser.ErrSelectorTimeout, css, timeout)
	}
	return nil
}

// Close closes the tab. It is safe to call more than once.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.site.mu.Lock()
	p.site.open--
	p.site.mu.Unlock()
	return nil
}
