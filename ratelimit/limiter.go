// Package ratelimit implements a limiter that enforces a minimum spacing
// between calls to an external resource.
package ratelimit

import (
	"context"
	"time"
)

// A Limiter grants at most one call per interval. All callers share a single
// timestamp of the last granted call, so a Limiter is typically shared by
// every goroutine that talks to the same API.
//
// The spacing is measured end-to-end: the timestamp of a grant is taken after
// its own wait, so the next caller waits at least Interval from the moment
// the previous caller was actually allowed to proceed.
type Limiter struct {
	interval time.Duration

	sema chan struct{} // a context aware mutex around last
	last time.Time     // zero until the first grant

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New creates a Limiter that grants calls at least minInterval apart.
func New(minInterval time.Duration) *Limiter {
	if minInterval < 0 {
		minInterval = 0
	}

	return &Limiter{
		interval: minInterval,
		sema:     make(chan struct{}, 1),
		now:      time.Now,
		after:    time.After,
	}
}

// Interval returns the minimum spacing between two grants.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Acquire blocks until at least Interval has passed since the previous grant,
// then records and returns the time of this grant. Waiting callers do not
// block any other goroutines except the ones waiting on the same Limiter.
//
// If the context is done before the call is granted Acquire returns the
// context error and nothing is recorded.
func (l *Limiter) Acquire(ctx context.Context) (time.Time, error) {
	// select picks randomly among ready cases
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	select {
	case l.sema <- struct{}{}:
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}
	defer func() { <-l.sema }()

	for !l.last.IsZero() {
		wait := l.interval - l.now().Sub(l.last)
		if wait <= 0 {
			break
		}

		select {
		case <-l.after(wait):
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		}
	}

	l.last = l.now()
	return l.last, nil
}
