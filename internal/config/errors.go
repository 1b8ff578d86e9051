package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and ValidateMaxPages and
// provide specific information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoBaseURL is returned when the target site origin is empty.
	ErrNoBaseURL = errors.New("no base URL specified")

	// ErrInvalidTimeout is returned when a navigation timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidSelectorTimeout is returned when the container wait is not positive.
	ErrInvalidSelectorTimeout = errors.New("invalid selector timeout: must be positive")

	// ErrInvalidDelay is returned when any pause or interval is negative.
	// Use 0 for no delay.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidConcurrency is returned when the detail concurrency is not positive.
	// A limit of zero would block detail augmentation forever.
	ErrInvalidConcurrency = errors.New("invalid detail concurrency: must be positive")

	// ErrInvalidMaxListings is returned when the per-page listing cap is not positive.
	ErrInvalidMaxListings = errors.New("invalid max listings per page: must be positive")

	// ErrInvalidRetryAttempts is returned when the retry attempts are not positive.
	ErrInvalidRetryAttempts = errors.New("invalid retry attempts: must be positive")

	// ErrInvalidMaxPages is returned when a search asks for a negative page count.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be at least 1")

	// ErrInvalidAgeRange is returned when an age bound is negative or the
	// minimum exceeds the maximum.
	ErrInvalidAgeRange = errors.New("invalid age range: bounds must be non-negative and min <= max")

	// ErrInvalidDistance is returned when the search radius is negative.
	ErrInvalidDistance = errors.New("invalid distance: must be non-negative")

	// ErrInvalidMaxDepth is returned when the mapper depth is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxNodes is returned when the mapper node bound is negative.
	// Use 0 for no bound.
	ErrInvalidMaxNodes = errors.New("invalid max nodes: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
