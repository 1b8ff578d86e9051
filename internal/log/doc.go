// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of secrets (cookies, tokens, session ids)
//   - Masking of advertiser contact details (phone numbers, email addresses)
//   - Configurable log levels with verbose mode support
//
// # Security Features
//
// The SecureHandler sanitizes log output in three ways:
//   - Attributes with sensitive keys (cookie, cf_clearance, contact_info, phone, email)
//     are replaced entirely
//   - Values that look like a secret, a phone number or an email address are
//     replaced regardless of key
//   - Contact details inside longer text, such as a page excerpt logged at
//     Debug level, are masked in place
//
// Even in verbose mode, sensitive values are masked so logs can be shared
// without leaking scraped personal data or the session cookies.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("details extracted",
//	    "url", "https://please.untaint.us/?url=https://www.locanto.co.za/ID_1/ad.html",
//	    "contact_info", "+27 82 555 0101", // Logged as ***REDACTED***
//	)
//	slog.SetDefault(logger)
package log
