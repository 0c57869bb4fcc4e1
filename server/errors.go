package server

import (
	"net/http"

	"github.com/teranos/postpulse/ai/openrouter"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/generation"
	"github.com/teranos/postpulse/logger"
)

// validationBody is the 422 payload for drafts that break their limits.
type validationBody struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons"`
}

// statusFor maps an error to an HTTP status. Sentinels are checked before
// the generic invalid-request mark because several domain errors carry both.
func statusFor(err error) int {
	var verr *generation.ValidationError
	var rerr *openrouter.RequestError
	switch {
	case errors.As(err, &verr), errors.Is(err, generation.ErrEmptyDraft):
		return http.StatusUnprocessableEntity
	case errors.Is(err, openrouter.ErrNotConfigured):
		return http.StatusInternalServerError
	case errors.As(err, &rerr):
		if rerr.Status == http.StatusTooManyRequests {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case errors.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.IsInvalidRequestError(err):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.IsServiceUnavailableError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeFailure maps err to a response. Known errors carry their own message;
// anything else is a 500 with fallback as the message and err as the detail.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)

	var verr *generation.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, status, validationBody{Error: "Validation failed.", Reasons: verr.Reasons})
		return
	}
	if status == http.StatusInternalServerError && !errors.Is(err, openrouter.ErrNotConfigured) {
		s.log.Errorw(fallback,
			logger.FieldPath, r.URL.Path,
			logger.FieldError, err,
			"details", errors.FlattenDetails(err))
		writeErrorDetail(w, status, fallback, err.Error())
		return
	}
	writeError(w, status, err.Error())
}
