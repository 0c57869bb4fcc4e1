package auth

import (
	"encoding/json"
	"net/http"

	"github.com/teranos/postpulse/logger"
)

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// RequireAdmin rejects requests without a valid admin session.
// It answers 503 while no admin credential is configured.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.AdminConfigured() {
			writeError(w, http.StatusServiceUnavailable, ErrAdminNotConfigured.Error())
			return
		}
		if err := s.ValidateSession(sessionToken(r)); err != nil {
			s.log.Debugw("Admin request rejected",
				logger.FieldPath, r.URL.Path,
				logger.FieldError, err)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCron rejects requests that do not carry the cron secret.
func (s *Service) RequireCron(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.CheckCronBearer(r.Header.Get("Authorization")) {
			if !s.CronConfigured() {
				s.log.Warnw("Cron request rejected, cron secret is not configured",
					logger.FieldPath, r.URL.Path)
			}
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
