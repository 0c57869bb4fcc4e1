package posting

import (
	"context"
	"time"
)

// Event describes one finalized job. It is emitted after the job row is
// written and carries no guarantee of delivery.
type Event struct {
	JobID     string    `json:"jobId"`
	ContentID string    `json:"contentId"`
	AccountID string    `json:"accountId"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	Attempts  int       `json:"attempts"`
	At        time.Time `json:"at"`
}

// Notifier receives outcome events. Errors are logged by the runner and
// never change job state.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
