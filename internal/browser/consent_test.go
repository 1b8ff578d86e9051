package browser

import (
	"strings"
	"testing"
)

func TestConsentScript(t *testing.T) {
	t.Parallel()

	js := consentScript([]string{"accept", "j'accepte"})
	if !strings.Contains(js, `const labels = ["accept","j'accepte"];`) {
		t.Errorf("expected labels to be embedded as a JSON array, got %q", js)
	}
	for _, want := range []string{"aria-label", "title", "textContent", "el.click()"} {
		if !strings.Contains(js, want) {
			t.Errorf("expected script to contain %q", want)
		}
	}

	for _, label := range ConsentLabels {
		if label != strings.ToLower(label) {
			t.Errorf("expected lower-case label, got %q", label)
		}
		if !strings.Contains(consentJS, `"`+label+`"`) {
			t.Errorf("expected default script to contain %q", label)
		}
	}
}

func TestExtraHeaders(t *testing.T) {
	t.Parallel()

	if got := extraHeaders(nil); got != nil {
		t.Errorf("expected nil for no headers, got %v", got)
	}
	if got := extraHeaders(map[string]string{"": "x"}); got != nil {
		t.Errorf("expected nil when every name is empty, got %v", got)
	}

	got := extraHeaders(map[string]string{"Accept-Language": "en-ZA", "": "dropped"})
	if len(got) != 1 || got["Accept-Language"] != "en-ZA" {
		t.Errorf("expected only Accept-Language, got %v", got)
	}
}

func TestPageSetupHeaders(t *testing.T) {
	t.Parallel()

	base := (&ChromeSession{opts: chromeOptions{width: 800, height: 600}}).pageSetup()
	withHeaders := (&ChromeSession{opts: chromeOptions{
		width:   800,
		height:  600,
		headers: map[string]string{"X-Trace": "1"},
	}}).pageSetup()
	if len(withHeaders) != len(base)+1 {
		t.Errorf("expected one extra setup action for headers, got %d and %d", len(base), len(withHeaders))
	}
}
