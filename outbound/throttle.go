package outbound

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/pulse/budget"
)

// Throttle paces calls to the wrapped adapter and enforces a post budget.
// It bounds request rate only; job state is never guarded here.
type Throttle struct {
	next   Adapter
	pacer  *rate.Limiter   // nil = no pacing
	budget *budget.Limiter // nil = no budget
}

// NewThrottle wraps next. minInterval <= 0 disables pacing; a nil budget
// disables the window cap.
func NewThrottle(next Adapter, minInterval time.Duration, posts *budget.Limiter) *Throttle {
	t := &Throttle{next: next, budget: posts}
	if minInterval > 0 {
		t.pacer = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return t
}

// Post waits for the pacer, charges the budget, then calls the wrapped adapter.
func (t *Throttle) Post(ctx context.Context, body string) (Result, error) {
	if t.pacer != nil {
		if err := t.pacer.Wait(ctx); err != nil {
			// Wait fails early when the deadline cannot be met. Either way
			// nothing was sent.
			if ctx.Err() == nil {
				return Result{}, errors.Mark(errors.Wrap(err, "pacing would exceed deadline"), ErrThrottled)
			}
			return Result{}, errors.Mark(errors.Wrap(err, "waiting for pacer"), ErrThrottled)
		}
	}

	if t.budget != nil {
		if err := t.budget.Allow(); err != nil {
			return Result{}, errors.Mark(err, ErrThrottled)
		}
	}

	return t.next.Post(ctx, body)
}
