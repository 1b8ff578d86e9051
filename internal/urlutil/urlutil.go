package urlutil

import (
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

const (
	// DefaultProxyPrefix is the gateway prefix prepended to every target URL.
	DefaultProxyPrefix = "https://please.untaint.us/?url="

	// DefaultBaseURL is the origin of the protected classifieds site.
	DefaultBaseURL = "https://www.locanto.co.za"
)

var (
	// urlParamRegex matches a leftover "url=" parameter name after a
	// '?' or '&' separator.
	urlParamRegex = regexp.MustCompile(`(?i)([&?])url=`)

	// schemeSlashRegex matches an http or https scheme followed by two or
	// more slashes, in any letter case.
	schemeSlashRegex = regexp.MustCompile(`(?i)\b(https?):/{2,}`)

	// unsafeFilenameRegex matches every character that is not ASCII alphanumeric.
	unsafeFilenameRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// Proxy holds the gateway prefix and the protected site's base URL.
// The zero value is not useful; use NewProxy or Default.
//
// Design decision: We keep the prefix and base in a small value type
// instead of package globals so a site profile can point the engine at
// another gateway or mirror without touching shared state.
type Proxy struct {
	// Prefix is the gateway prefix, for example "https://please.untaint.us/?url=".
	Prefix string

	// Base is the target origin used to resolve relative links.
	Base string

	// degenerate is the double-prefix shape produced when the gateway
	// re-wraps an already wrapped URL and drops the "/?url=" of the
	// second layer: "<prefix>https://please.untaint.us?".
	degenerate string

	// prefixRegex and degenerateRegex match Prefix and degenerate in any
	// letter case.
	prefixRegex     *regexp.Regexp
	degenerateRegex *regexp.Regexp
}

// NewProxy creates a Proxy for the given prefix and base URL.
// Empty arguments fall back to DefaultProxyPrefix and DefaultBaseURL.
func NewProxy(prefix, base string) Proxy {
	if prefix == "" {
		prefix = DefaultProxyPrefix
	}
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")

	root := strings.TrimSuffix(prefix, "?url=")
	root = strings.TrimSuffix(root, "/")

	degenerate := prefix + root + "?"
	return Proxy{
		Prefix:          prefix,
		Base:            base,
		degenerate:      degenerate,
		prefixRegex:     foldRegex(prefix),
		degenerateRegex: foldRegex(degenerate),
	}
}

// foldRegex matches literal s case-insensitively.
func foldRegex(s string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(s))
}

// Default returns the Proxy for the default gateway and site.
func Default() Proxy {
	return NewProxy(DefaultProxyPrefix, DefaultBaseURL)
}

// Canonicalize returns the bare target URL for raw using the default gateway.
func Canonicalize(raw string) string {
	return Default().Canonicalize(raw)
}

// Proxied canonicalizes u and wraps it with prefix when it should travel
// through the gateway. Relative URLs are resolved against base first.
func Proxied(u, base, prefix string) string {
	return NewProxy(prefix, base).Wrap(u)
}

// Canonicalize folds every proxied, encoded, or doubly wrapped form of a
// URL into the bare target URL.
//
// The steps of one pass are:
//  1. Percent-decode until the string stops changing ('+' is kept and
//     malformed escapes are left as they are)
//  2. Collapse the degenerate double prefix into a single prefix
//  3. Remove every run of prefixes, ignoring letter case
//  4. Turn "?url=" and "&url=" into "?" and "&", and drop a leading "url="
//  5. Strip leading '?' and '&'
//  6. Repair "https:////" and "http:///" into a single "//"
//  7. Trim whitespace
//
// Passes repeat until the output is a fixed point, so removing an outer
// layer that exposes an encoded prefix is handled too. Every step only
// shortens the string, so the loop terminates.
func (p Proxy) Canonicalize(raw string) string {
	current := strings.TrimSpace(raw)
	for {
		next := p.canonicalPass(current)
		if next == current {
			return next
		}
		current = next
	}
}

func (p Proxy) canonicalPass(s string) string {
	prefixRegex, degenerateRegex := p.prefixRegex, p.degenerateRegex
	if prefixRegex == nil {
		prefixRegex = foldRegex(p.Prefix)
		degenerateRegex = foldRegex(p.degenerate)
	}

	s = unquoteFixedPoint(s)
	if p.degenerate != "" {
		s = degenerateRegex.ReplaceAllLiteralString(s, p.Prefix)
	}
	if p.Prefix != "" {
		s = prefixRegex.ReplaceAllLiteralString(s, "")
	}
	s = urlParamRegex.ReplaceAllString(s, "$1")
	if len(s) >= 4 && strings.EqualFold(s[:4], "url=") {
		s = s[4:]
	}
	s = strings.TrimLeft(s, "?&")
	s = schemeSlashRegex.ReplaceAllString(s, "$1://")
	return strings.TrimSpace(s)
}

// unquoteFixedPoint percent-decodes s until it no longer changes.
func unquoteFixedPoint(s string) string {
	for {
		decoded := unescapeLenient(s)
		if decoded == s {
			return s
		}
		s = decoded
	}
}

// unescapeLenient decodes every valid "%XX" escape of s and copies any
// other '%' through unchanged. '+' is not treated as a space.
func unescapeLenient(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, err := hex.DecodeString(s[i+1 : i+3]); err == nil {
				b.WriteByte(v[0])
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Wrap returns the proxied navigation URL for u.
//
//   - Anchors and non-navigable schemes (javascript:, mailto:, tel:, data:) are returned unchanged
//   - Root-relative and protocol-relative paths are resolved against Base
//   - Absolute http(s) URLs, target or external, get exactly one prefix
//
// Wrap(Wrap(u)) == Wrap(u) because u is canonicalized first.
func (p Proxy) Wrap(u string) string {
	trimmed := strings.TrimSpace(u)
	if trimmed == "" || isLocal(trimmed) {
		return trimmed
	}

	bare := p.Canonicalize(trimmed)
	if bare == "" {
		return ""
	}

	abs := p.Resolve(bare)
	if !isHTTP(abs) {
		return abs
	}
	return p.Prefix + abs
}

// Resolve turns a relative reference into an absolute URL on Base.
// Absolute URLs and unparsable input are returned unchanged.
func (p Proxy) Resolve(u string) string {
	switch {
	case isHTTP(u):
		return u
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "/"):
		return p.Base + u
	}

	base, err := url.Parse(p.Base + "/")
	if err != nil {
		return u
	}
	ref, err := url.Parse(u)
	if err != nil {
		return u
	}
	if ref.Scheme != "" {
		return u
	}
	return base.ResolveReference(ref).String()
}

// Unwrap returns the bare target URL of a proxied URL.
func (p Proxy) Unwrap(u string) string {
	return p.Canonicalize(u)
}

// IsWrapped reports whether u starts with the gateway prefix in any letter case.
func (p Proxy) IsWrapped(u string) bool {
	u = strings.TrimSpace(u)
	return p.Prefix != "" && len(u) >= len(p.Prefix) && strings.EqualFold(u[:len(p.Prefix)], p.Prefix)
}

// SameSite reports whether u points at the protected site once unwrapped
// and resolved. Relative URLs are in scope.
func (p Proxy) SameSite(u string) bool {
	target, err := url.Parse(p.Resolve(p.Canonicalize(u)))
	if err != nil {
		return false
	}
	base, err := url.Parse(p.Base)
	if err != nil {
		return false
	}
	return strings.EqualFold(target.Hostname(), base.Hostname())
}

// SanitizeFilename replaces every non-alphanumeric character of s with
// '_' and cuts the result to at most limit characters. A limit of zero
// or less keeps the whole string.
func SanitizeFilename(s string, limit int) string {
	out := unsafeFilenameRegex.ReplaceAllString(s, "_")
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func isHTTP(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsNavigable reports whether u is a link a browser could navigate to:
// not empty, not an in-page anchor, and not a javascript:, mailto:, tel:
// or data: reference.
func IsNavigable(u string) bool {
	u = strings.TrimSpace(u)
	return u != "" && !isLocal(u)
}

// isLocal reports whether u is an in-page or non-navigable reference.
func isLocal(u string) bool {
	if strings.HasPrefix(u, "#") {
		return true
	}
	lower := strings.ToLower(u)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
