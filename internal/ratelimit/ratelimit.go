// Package ratelimit provides the single global gate in front of the external
// lookup service: a strict minimum interval between calls across all
// concurrent requests.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between successive Wait returns. The
// mutex is held for the duration of the wait, so concurrent callers queue and
// are released one interval apart, never in parallel.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	// Test seams. Defaults are time.Now and a context-aware sleep.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter with the given minimum interval. A non-positive
// interval disables gating.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous successful Wait, then records the new call time. Returns early
// with the context error if ctx is done first; an aborted wait does not
// consume the slot.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining := l.interval - l.now().Sub(l.last); remaining > 0 {
		if err := l.sleep(ctx, remaining); err != nil {
			return err
		}
	}
	l.last = l.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
