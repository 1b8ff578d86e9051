// Package retry provides a bounded retry combinator for transient failures.
//
// The policy is parameterized by a retryable predicate so that terminal
// conditions (block pages, caller cancellation) end the loop immediately
// while network errors and timeouts are retried up to a fixed bound.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/corrupt0303/listingscan/internal/challenge"
)

const (
	// DefaultAttempts is the total number of tries, including the first.
	DefaultAttempts = 3

	// DefaultDelay is the pause between attempts.
	DefaultDelay = 2 * time.Second
)

// Policy describes how often and how patiently to retry.
type Policy struct {
	// Attempts is the total number of tries. Values below 1 mean 1.
	Attempts int

	// Delay is the pause before the second attempt.
	Delay time.Duration

	// Multiplier scales Delay after every attempt.
	// Values of 1 or less keep the delay fixed.
	Multiplier float64

	// MaxDelay caps the scaled delay. Zero means no cap.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Nil means DefaultRetryable.
	Retryable func(error) bool

	// Logger receives one Debug record per failed attempt.
	// Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultPolicy returns three attempts with a fixed two second delay.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   DefaultAttempts,
		Delay:      DefaultDelay,
		Multiplier: 1,
		Retryable:  DefaultRetryable,
	}
}

// DefaultRetryable refuses block signals and context cancellation and
// retries everything else.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if challenge.IsBlocked(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	// Attempts is the number of attempts made.
	Attempts int

	// Err is the error of the final attempt.
	Err error
}

// Error returns "failed after N attempts: <last error>".
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the final attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. attempt starts at 1.
//
// A non-retryable error is returned as-is. Exhaustion returns an
// *ExhaustedError wrapping the last error. Cancellation of ctx while
// waiting between attempts returns ctx.Err().
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(p.Attempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attempt := 0
	stopped := false
	operation := func() error {
		if err := ctx.Err(); err != nil {
			stopped = true
			return backoff.Permanent(err)
		}
		attempt++
		err := fn(ctx, attempt)
		if err != nil && !retryable(err) {
			stopped = true
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Debug("attempt failed",
			"attempt", attempt,
			"attempts", attempts,
			"retry_in", wait,
			"error", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(attempts-1)), ctx) //nolint:gosec // attempts >= 1
	err := backoff.RetryNotify(operation, b, notify)
	switch {
	case err == nil:
		return nil
	case stopped:
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	}
	logger.Debug("attempts exhausted",
		"attempts", attempt,
		"error", err)
	return &ExhaustedError{Attempts: attempt, Err: err}
}

// backOff returns the delay schedule between attempts: constant when
// Multiplier is 1 or less, otherwise exponential capped at MaxDelay.
func (p Policy) backOff() backoff.BackOff {
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(max(p.Delay, 0))
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = max(p.Delay, 0)
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Reset()
	return b
}
