// Package challenge recognizes anti-bot responses in rendered HTML.
//
// A block page is terminal: the caller must not retry the navigation that
// produced it and should surface the condition instead of treating the
// missing listings as "no results". Classification therefore runs right
// after every render, before any selector is resolved.
package challenge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/corrupt0303/listingscan/internal/model"
)

// BlockedMessage is the user-facing error text for any block signal.
const BlockedMessage = "Blocked by Cloudflare or captcha. Try again later or with different proxy/cookies."

// Signature is one block pattern.
//
// All of Contains must be present for the signature to match. When Fold
// is set, the HTML is lower-cased and the needles must be lower-case.
type Signature struct {
	// Name identifies the signature in logs and signals.
	Name string `yaml:"name"`

	// Kind is the classification returned on match.
	Kind model.BlockKind `yaml:"kind"`

	// Contains are substrings that must all occur in the page.
	Contains []string `yaml:"contains"`

	// Fold enables case-insensitive matching.
	Fold bool `yaml:"fold,omitempty"`
}

// DefaultSignatures are the known block markers of the target site and
// its CDN, checked in order.
var DefaultSignatures = []Signature{
	{
		Name:     "error-page-title",
		Kind:     model.BlockKindBlocked,
		Contains: []string{"<title>Locanto Error page</title>"},
	},
	{
		Name:     "human-verification",
		Kind:     model.BlockKindCaptcha,
		Contains: []string{"Please verify you are a human"},
	},
	{
		Name:     "cloudflare-challenge",
		Kind:     model.BlockKindBlocked,
		Contains: []string{"cf-challenge"},
	},
	{
		Name:     "too-many-requests",
		Kind:     model.BlockKindRateLimited,
		Contains: []string{"<title>429 too many requests</title>"},
		Fold:     true,
	},
	{
		Name:     "cloudflare-rate-limit",
		Kind:     model.BlockKindRateLimited,
		Contains: []string{"error code: 1015"},
		Fold:     true,
	},
}

// Signal is a positive block classification.
type Signal struct {
	Kind      model.BlockKind
	Signature string
}

// String returns "<kind> (<signature>)".
func (s Signal) String() string {
	return fmt.Sprintf("%s (%s)", s.Kind, s.Signature)
}

// Detector classifies rendered HTML against a list of signatures.
// A Detector is immutable after construction and safe for concurrent use.
type Detector struct {
	signatures []Signature
}

// NewDetector creates a Detector with the default signatures followed by
// extra, in that order. Extra signatures with an invalid or empty kind
// default to blocked; signatures without needles are ignored.
func NewDetector(extra ...Signature) *Detector {
	sigs := make([]Signature, 0, len(DefaultSignatures)+len(extra))
	sigs = append(sigs, DefaultSignatures...)
	for _, s := range extra {
		if len(s.Contains) == 0 {
			continue
		}
		if !s.Kind.IsValid() {
			s.Kind = model.BlockKindBlocked
		}
		if s.Fold {
			lowered := make([]string, len(s.Contains))
			for i, c := range s.Contains {
				lowered[i] = strings.ToLower(c)
			}
			s.Contains = lowered
		}
		sigs = append(sigs, s)
	}
	return &Detector{signatures: sigs}
}

var defaultDetector = NewDetector()

// Classify checks html against the default signatures.
func Classify(html string) *Signal {
	return defaultDetector.Classify(html)
}

// Classify returns the first matching signal, or nil when html is not a
// block page.
//
// Captcha signatures also require the word "captcha" anywhere in the
// page, in any case.
func (d *Detector) Classify(html string) *Signal {
	if html == "" {
		return nil
	}

	var lower string
	for _, sig := range d.signatures {
		haystack := html
		if sig.Fold {
			if lower == "" {
				lower = strings.ToLower(html)
			}
			haystack = lower
		}
		if !containsAll(haystack, sig.Contains) {
			continue
		}
		if sig.Kind == model.BlockKindCaptcha {
			if lower == "" {
				lower = strings.ToLower(html)
			}
			if !strings.Contains(lower, "captcha") {
				continue
			}
		}
		return &Signal{Kind: sig.Kind, Signature: sig.Name}
	}
	return nil
}

// Check returns a *BlockedError when html is a block page, nil otherwise.
func (d *Detector) Check(html string) error {
	if sig := d.Classify(html); sig != nil {
		return &BlockedError{Signal: *sig}
	}
	return nil
}

func containsAll(haystack string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(haystack, n) {
			return false
		}
	}
	return true
}

// BlockedError reports that a navigation landed on a block page.
// It is terminal: retry policies must not retry it.
type BlockedError struct {
	Signal Signal
}

// Error returns the user-facing blocked message.
func (e *BlockedError) Error() string {
	return BlockedMessage
}

// Kind returns the block classification.
func (e *BlockedError) Kind() model.BlockKind {
	return e.Signal.Kind
}

// IsBlocked reports whether err is or wraps a *BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// AsBlocked extracts the *BlockedError from err.
func AsBlocked(err error) (*BlockedError, bool) {
	var be *BlockedError
	ok := errors.As(err, &be)
	return be, ok
}
