package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
)

func TestParseCookies(t *testing.T) {
	t.Parallel()

	data := []byte(`[
		{"name": "cf_clearance", "value": "abc", "domain": ".please.untaint.us", "path": "/", "expires": 1893456000.5, "httpOnly": true, "secure": true, "sameSite": "None"},
		{"name": "session", "value": "xyz", "domain": "www.locanto.co.za", "expirationDate": 1893456000},
		{"name": "", "value": "ignored"}
	]`)

	cookies, err := ParseCookies(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}

	first := cookies[0]
	if first.Name != "cf_clearance" || first.Value != "abc" {
		t.Errorf("unexpected first cookie: %+v", first)
	}
	if !first.HTTPOnly || !first.Secure {
		t.Errorf("expected httpOnly and secure flags, got %+v", first)
	}
	if first.sameSite() != network.CookieSameSiteNone {
		t.Errorf("expected SameSite None, got %q", first.sameSite())
	}

	second := cookies[1]
	if second.Expires != 1893456000 {
		t.Errorf("expected expirationDate alias to set Expires, got %v", second.Expires)
	}
	if second.Path != "/" {
		t.Errorf("expected default path /, got %q", second.Path)
	}
}

func TestParseCookiesInvalid(t *testing.T) {
	t.Parallel()

	if _, err := ParseCookies([]byte(`{"name": "not an array"}`)); err == nil {
		t.Error("expected error for non-array cookie file")
	}
}

func TestLoadCookies(t *testing.T) {
	t.Parallel()

	t.Run("reads file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "cookies.json")
		if err := os.WriteFile(path, []byte(`[{"name":"a","value":"1"}]`), 0o600); err != nil {
			t.Fatal(err)
		}
		cookies, err := LoadCookies(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cookies) != 1 || cookies[0].Name != "a" {
			t.Errorf("unexpected cookies: %+v", cookies)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := LoadCookies(filepath.Join(t.TempDir(), "missing.json")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestCookieSameSite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want network.CookieSameSite
	}{
		{"Strict", network.CookieSameSiteStrict},
		{"lax", network.CookieSameSiteLax},
		{"none", network.CookieSameSiteNone},
		{"no_restriction", network.CookieSameSiteNone},
		{"unspecified", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := Cookie{SameSite: tt.in}.sameSite()
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCookieExpiry(t *testing.T) {
	t.Parallel()

	if (Cookie{}).expiry() != nil {
		t.Error("expected session cookie to have no expiry")
	}
	if (Cookie{Expires: -1}).expiry() != nil {
		t.Error("expected negative expiry to be a session cookie")
	}

	exp := Cookie{Expires: 1893456000}.expiry()
	if exp == nil {
		t.Fatal("expected expiry to be set")
	}
	if got := exp.Time().Unix(); got != 1893456000 {
		t.Errorf("expected 1893456000, got %d", got)
	}
}

func TestSettle(t *testing.T) {
	t.Parallel()

	t.Run("zero returns immediately", func(t *testing.T) {
		t.Parallel()
		if err := Settle(context.Background(), 0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("waits", func(t *testing.T) {
		t.Parallel()
		start := time.Now()
		if err := Settle(context.Background(), 20*time.Millisecond); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if time.Since(start) < 20*time.Millisecond {
			t.Error("expected Settle to wait")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := Settle(ctx, time.Hour); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
