package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teranos/postpulse/errors"
)

// ErrExhausted marks a call rejected because the window is full.
var ErrExhausted = errors.New("post budget exhausted")

// Limiter enforces max calls per time window using a sliding window.
// A Limiter with max <= 0 allows everything.
type Limiter struct {
	max       int
	window    time.Duration
	mu        sync.Mutex
	callTimes []time.Time
	timeNow   func() time.Time // Injectable for testing
}

// NewLimiter creates a limiter allowing max calls per window.
func NewLimiter(max int, window time.Duration) *Limiter {
	return NewLimiterWithClock(max, window, time.Now)
}

// NewLimiterWithClock creates a limiter with an injectable clock (for testing)
func NewLimiterWithClock(max int, window time.Duration, timeNow func() time.Time) *Limiter {
	capacity := max
	if capacity < 0 {
		capacity = 0
	}
	return &Limiter{
		max:       max,
		window:    window,
		callTimes: make([]time.Time, 0, capacity),
		timeNow:   timeNow,
	}
}

// Allow records a call if the window has room and returns an error marked
// ErrExhausted otherwise.
func (r *Limiter) Allow() error {
	if r.max <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeNow()
	r.removeExpiredCalls(now)

	if len(r.callTimes) >= r.max {
		err := errors.Mark(errors.Newf("post budget exhausted: %d calls in the last %s (limit: %d)",
			len(r.callTimes), r.window, r.max), ErrExhausted)
		return errors.WithDetail(err, fmt.Sprintf("Oldest call in window: %s", r.callTimes[0].Format(time.RFC3339)))
	}

	r.callTimes = append(r.callTimes, now)
	return nil
}

// Wait blocks until a call is allowed or ctx is done.
func (r *Limiter) Wait(ctx context.Context) error {
	for {
		if err := r.Allow(); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Must be called with lock held
func (r *Limiter) removeExpiredCalls(now time.Time) {
	cutoff := now.Add(-r.window)

	// Timestamps are ordered, so count expired calls from the front
	expired := 0
	for _, callTime := range r.callTimes {
		if !callTime.After(cutoff) {
			expired++
		} else {
			break
		}
	}

	r.callTimes = r.callTimes[expired:]
}

// Seed pre-fills the window with calls made before this process started,
// e.g. posts already recorded in the database.
func (r *Limiter) Seed(times []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.callTimes = append(r.callTimes[:0], times...)
	r.removeExpiredCalls(r.timeNow())
}

// Reset clears the limiter state
func (r *Limiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.callTimes = r.callTimes[:0]
}

// Stats returns calls in the current window and remaining capacity.
// Remaining is -1 for an unlimited limiter.
func (r *Limiter) Stats() (callsInWindow int, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeExpiredCalls(r.timeNow())
	callsInWindow = len(r.callTimes)
	if r.max <= 0 {
		return callsInWindow, -1
	}

	remaining = r.max - callsInWindow
	if remaining < 0 {
		remaining = 0
	}
	return callsInWindow, remaining
}
