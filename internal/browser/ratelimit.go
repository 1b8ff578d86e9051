package browser

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Session so that every Goto on any of its pages first
// waits on limiter. A nil limiter returns s unchanged.
//
// The limiter is shared across pages, which bounds navigations for the
// whole session including concurrent detail fetches.
func RateLimited(s Session, limiter *rate.Limiter) Session {
	if limiter == nil {
		return s
	}
	return &limitedSession{Session: s, limiter: limiter}
}

// NewLimiter returns a limiter allowing one navigation per interval with
// the given burst. A non-positive interval means no limit.
func NewLimiter(interval time.Duration, burst int) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(interval), max(burst, 1))
}

type limitedSession struct {
	Session
	limiter *rate.Limiter
}

func (l *limitedSession) NewPage(ctx context.Context) (Page, error) {
	p, err := l.Session.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	return &limitedPage{Page: p, limiter: l.limiter}, nil
}

type limitedPage struct {
	Page
	limiter *rate.Limiter
}

func (l *limitedPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	return l.Page.Goto(ctx, url, timeout)
}
