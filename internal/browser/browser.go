// Package browser defines the headless-browser capability the extraction
// engine depends on, and implements it with chromedp.
//
// The engine only needs four page operations (navigate, read the DOM,
// wait for a selector, close) plus the ability to open several pages in
// one shared context. DOM queries run over a goquery snapshot of
// Page.Content, so the capability never exposes element handles.
//
// Design decision: We keep the capability as two small interfaces instead
// of exposing chromedp contexts because:
//  1. The search pipeline and the site mapper can be tested against a
//     fixture site without launching Chrome (see browsertest)
//  2. chromedp's context-per-tab model stays inside this package
//  3. Decorators such as RateLimited compose at the interface boundary
package browser

import (
	"context"
	"errors"
	"time"
)

// Session is one browser context: a set of pages that share cookies and
// storage. It is owned by the caller for one logical operation (a search
// or a mapping run) and must be closed when that operation ends.
//
// NewPage is safe for concurrent use. Each Page is owned by a single
// goroutine at a time; two navigations must never share a Page.
type Session interface {
	// NewPage opens a new page (tab) in the session.
	NewPage(ctx context.Context) (Page, error)

	// Close releases every page and the browser process.
	Close() error
}

// Page is a single browser tab.
type Page interface {
	// Goto navigates to url and waits for the document to load, giving up
	// after timeout.
	Goto(ctx context.Context, url string, timeout time.Duration) error

	// Content returns the serialized DOM of the current document.
	Content(ctx context.Context) (string, error)

	// WaitForSelector blocks until css matches an element or timeout
	// elapses. A timeout returns an error wrapping ErrSelectorTimeout.
	WaitForSelector(ctx context.Context, css string, timeout time.Duration) error

	// Close closes the tab.
	Close() error
}

var (
	// ErrSelectorTimeout is returned by WaitForSelector when the selector
	// did not appear in time.
	ErrSelectorTimeout = errors.New("selector wait timed out")

	// ErrNavigation wraps every failure of Goto.
	ErrNavigation = errors.New("navigation failed")

	// ErrSessionClosed is returned by NewPage after Close.
	ErrSessionClosed = errors.New("browser session closed")
)

// Settle waits for d, returning early with ctx.Err() on cancellation.
// It is the fixed interval given to client-side rendering after a
// navigation completes.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
