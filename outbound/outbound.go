// Package outbound delivers post bodies to an external platform.
//
// Adapters report ordinary platform failures as a non-OK Result carrying
// the HTTP-style status code. A returned error is exceptional; Deliver
// folds it into a retryable Result so the scheduler only ever sees
// results, apart from ErrThrottled.
package outbound

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/teranos/postpulse/errors"
)

// Result is the outcome of one post attempt.
type Result struct {
	OK           bool   `json:"ok"`
	StatusCode   int    `json:"status"`
	ExternalID   string `json:"id,omitempty"`
	ErrorMessage string `json:"error,omitempty"`
}

// Adapter posts a body to a platform.
type Adapter interface {
	Post(ctx context.Context, body string) (Result, error)
}

// AdapterFunc lets a plain function serve as an Adapter.
type AdapterFunc func(ctx context.Context, body string) (Result, error)

// Post calls f.
func (f AdapterFunc) Post(ctx context.Context, body string) (Result, error) {
	return f(ctx, body)
}

// ErrThrottled is returned when the local pacer or post budget refuses a
// call. No request reached the platform.
var ErrThrottled = errors.New("outbound post throttled locally")

// Status codes synthesized for failures that never produced a response.
const (
	StatusDeadlineExceeded = http.StatusGatewayTimeout // adapter ran past its deadline
	StatusTransportError   = http.StatusBadGateway     // adapter returned an error
)

// IsRetryableStatus reports whether a failed post may be retried:
// rate limiting (429) and server-side errors (5xx).
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Deliver invokes a under a deadline of timeout (no deadline when timeout
// is zero). Elapsed deadlines and adapter errors become retryable Results.
// The only error returned is one marked ErrThrottled.
func Deliver(ctx context.Context, a Adapter, body string, timeout time.Duration) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := a.Post(ctx, body)
	switch {
	case err != nil && errors.Is(err, ErrThrottled):
		return Result{}, err
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded):
		return Result{
			StatusCode:   StatusDeadlineExceeded,
			ErrorMessage: fmt.Sprintf("post timed out after %s", timeout),
		}, nil
	case err != nil:
		return Result{
			StatusCode:   StatusTransportError,
			ErrorMessage: err.Error(),
		}, nil
	}

	if !result.OK && result.StatusCode == 0 {
		result.StatusCode = StatusTransportError
	}
	return result, nil
}

// FailureDetail is the message recorded for a non-OK result.
func FailureDetail(r Result) string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	return fmt.Sprintf("Post failed (%d)", r.StatusCode)
}
