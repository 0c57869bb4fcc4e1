// Package stub provides an Adapter that accepts every post without
// contacting a platform.
package stub

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/teranos/postpulse/outbound"
)

// Adapter always succeeds with 201 and a generated external id.
type Adapter struct{}

// New returns a stub adapter.
func New() *Adapter {
	return &Adapter{}
}

// Post implements outbound.Adapter.
func (a *Adapter) Post(ctx context.Context, body string) (outbound.Result, error) {
	if err := ctx.Err(); err != nil {
		return outbound.Result{}, err
	}
	return outbound.Result{
		OK:         true,
		StatusCode: http.StatusCreated,
		ExternalID: "stub-" + uuid.New().String(),
	}, nil
}
