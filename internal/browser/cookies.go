package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Cookie is one entry of a cookie store file.
//
// The field names follow the JSON exported by browser automation tools
// and the common cookie-export extensions: {name, value, domain, path,
// expires, httpOnly, secure, sameSite}. Expires is seconds since the Unix
// epoch; zero or negative means a session cookie. Extensions such as
// "expirationDate" are accepted as an alias.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"` //nolint:tagliatelle // export format
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"` //nolint:tagliatelle // export format

	// ExpirationDate is the alias used by browser-extension exports.
	ExpirationDate float64 `json:"expirationDate,omitempty"` //nolint:tagliatelle // export format
}

// LoadCookies reads a JSON array of cookies from path.
// Entries without a name are skipped.
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided cookie path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	return ParseCookies(data)
}

// ParseCookies decodes a JSON array of cookies.
func ParseCookies(data []byte) ([]Cookie, error) {
	var raw []Cookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file: %w", err)
	}

	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		if c.Name == "" {
			continue
		}
		if c.Expires == 0 && c.ExpirationDate > 0 {
			c.Expires = c.ExpirationDate
		}
		if c.Path == "" {
			c.Path = "/"
		}
		out = append(out, c)
	}
	return out, nil
}

// sameSite maps the spellings used by different exporters onto the CDP enum.
// Unknown or unspecified values return "".
func (c Cookie) sameSite() network.CookieSameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none", "no_restriction":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}

// expiry returns the CDP expiry, or nil for session cookies.
func (c Cookie) expiry() *cdp.TimeSinceEpoch {
	if c.Expires <= 0 {
		return nil
	}
	sec := int64(c.Expires)
	nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
	t := cdp.TimeSinceEpoch(time.Unix(sec, nsec))
	return &t
}

// setCookies returns an action installing cookies into the browser
// context. A cookie the browser rejects is logged and skipped.
func setCookies(cookies []Cookie, logger *slog.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithExpires(c.expiry())
			if ss := c.sameSite(); ss != "" {
				params = params.WithSameSite(ss)
			}
			if err := params.Do(ctx); err != nil {
				logger.Warn("cookie rejected by browser",
					"cookie", c.Name,
					"domain", c.Domain,
					"error", err)
			}
		}
		return nil
	})
}
