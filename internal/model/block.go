package model

// BlockKind classifies why the target site refused automated access.
// A block is terminal for the navigation that produced it; it is never
// retried and is distinct from a transient network failure.
type BlockKind string

const (
	// BlockKindBlocked is an error page or a challenge interstitial.
	BlockKindBlocked BlockKind = "blocked"

	// BlockKindCaptcha is a human verification prompt.
	BlockKindCaptcha BlockKind = "captcha"

	// BlockKindRateLimited is a "too many requests" response.
	BlockKindRateLimited BlockKind = "rate_limited"
)

// String returns the kind name.
func (k BlockKind) String() string {
	return string(k)
}

// IsValid reports whether k is one of the known kinds.
func (k BlockKind) IsValid() bool {
	switch k {
	case BlockKindBlocked, BlockKindCaptcha, BlockKindRateLimited:
		return true
	default:
		return false
	}
}
