// Package urlutil normalizes URLs that travel through a URL-prefix proxy.
//
// # Proxy model
//
// The target site is never contacted directly. Every navigation goes to
// a proxy gateway that accepts the target URL appended verbatim after a
// fixed prefix:
//
//	https://please.untaint.us/?url=https://www.locanto.co.za/g/q/?query=dating
//
// Pages rendered through the gateway link back to the target in many
// shapes: bare paths, absolute target URLs, already-proxied URLs, and
// percent-encoded or doubly-proxied variants produced when the gateway
// rewrites a link it has already rewritten. Canonicalize folds all of
// these into the bare target URL, and Wrap re-applies exactly one prefix.
//
// # Invariants
//
//   - Canonicalize is idempotent: Canonicalize(Canonicalize(u)) == Canonicalize(u)
//   - Canonicalize output never contains the proxy prefix
//   - Wrap output contains the proxy prefix at most once
//
// Malformed input is passed through best-effort and never produces an
// error; a truly invalid URL surfaces later as a navigation failure.
package urlutil
