package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Page is a rendered page snapshot taken from the browser after navigation
// and the settle interval.
//
// Design decision: We keep the HTML as a string rather than a parsed tree
// because:
//  1. Block detection is substring matching over the raw markup
//  2. Debug artifacts are written verbatim
//  3. Each consumer (goquery, htmlquery, x/net/html) builds its own tree
type Page struct {
	// URL is the bare target URL the page was requested for.
	URL string `json:"url"`

	// ProxiedURL is the gateway URL that was actually navigated.
	ProxiedURL string `json:"proxied_url"`

	// HTML is the serialized DOM as returned by the browser.
	// Limited to MaxPageSize bytes.
	HTML string `json:"-"`

	// Hash is the SHA-256 hash of HTML.
	// Used by the site mapper to spot identical pages behind different URLs.
	Hash string `json:"hash,omitempty"`

	// FetchedAt is when the snapshot was taken.
	FetchedAt time.Time `json:"fetched_at"`
}

// MaxPageSize is the maximum size of HTML kept per snapshot.
// Classified result pages are well under 1 MB; anything larger is
// usually an error page embedding a large inline payload.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// NewPage creates a snapshot, enforcing the size limit and computing the hash.
func NewPage(url, proxiedURL, html string) *Page {
	p := &Page{
		URL:        url,
		ProxiedURL: proxiedURL,
		HTML:       html,
		FetchedAt:  time.Now(),
	}
	p.TruncateHTML()
	p.ComputeHash()
	return p
}

// ComputeHash calculates and sets the SHA-256 hash of the page's HTML.
func (p *Page) ComputeHash() {
	if p.HTML == "" {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256([]byte(p.HTML))
	p.Hash = hex.EncodeToString(hash[:])
}

// TruncateHTML ensures the snapshot doesn't exceed MaxPageSize.
func (p *Page) TruncateHTML() {
	if len(p.HTML) > MaxPageSize {
		p.HTML = p.HTML[:MaxPageSize]
	}
}

// Head returns at most n bytes of the HTML for debug logging.
func (p *Page) Head(n int) string {
	if n <= 0 || len(p.HTML) <= n {
		return p.HTML
	}
	return p.HTML[:n]
}

// IsEmpty reports whether the browser returned no meaningful markup.
func (p *Page) IsEmpty() bool {
	return strings.TrimSpace(p.HTML) == ""
}
