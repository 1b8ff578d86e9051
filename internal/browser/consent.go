package browser

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// consentTimeout bounds the cookie popup check after a navigation.
const consentTimeout = 3 * time.Second

// ConsentLabels are the lower-case fragments of aria-label, title or text
// that identify the accept button of a cookie or consent popup.
var ConsentLabels = []string{"accept", "agree", "allow all", "akzeptieren"}

// consentJS clicks the first button matching ConsentLabels and reports
// whether it found one.
var consentJS = consentScript(ConsentLabels)

// consentScript returns the page script for labels.
func consentScript(labels []string) string {
	data, err := json.Marshal(labels)
	if err != nil {
		data = []byte("[]")
	}
	return `(() => {
  const labels = ` + string(data) + `;
  for (const el of document.querySelectorAll('button, [role="button"]')) {
    const text = [el.getAttribute('aria-label'), el.getAttribute('title'), el.textContent]
      .filter(Boolean).join(' ').toLowerCase();
    if (labels.some((l) => text.includes(l))) {
      el.click();
      return true;
    }
  }
  return false;
})()`
}

// dismissConsent clicks a consent popup away if the page shows one.
// Failures are logged and never fail the navigation.
func (p *chromePage) dismissConsent(ctx context.Context) {
	var clicked bool
	if err := p.run(ctx, consentTimeout, chromedp.Evaluate(consentJS, &clicked)); err != nil {
		p.logger.Debug("consent popup check failed", "error", err)
		return
	}
	if clicked {
		p.logger.Debug("dismissed consent popup")
	}
}

// extraHeaders converts headers to the CDP parameter type. Empty names
// are dropped; nil means no headers.
func extraHeaders(headers map[string]string) network.Headers {
	var out network.Headers
	for k, v := range headers {
		if k == "" {
			continue
		}
		if out == nil {
			out = make(network.Headers, len(headers))
		}
		out[k] = v
	}
	return out
}
