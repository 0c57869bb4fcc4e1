package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teranos/postpulse/logger"
)

// routes wires every endpoint.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.HandleHealth)
	r.Get("/api/live/runs", s.hub.ServeHTTP)

	r.Route("/api/cron", func(r chi.Router) {
		r.Use(s.requireAuth(func(a http.Handler) http.Handler { return s.deps.Auth.RequireCron(a) }))
		r.Post("/run-posting", s.HandleRunPosting)
		r.Post("/fetch-analytics", s.HandleFetchAnalytics)
	})

	if s.deps.Auth != nil {
		r.Post("/api/login", s.deps.Auth.HandleLogin)
		r.Post("/api/logout", s.deps.Auth.HandleLogout)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth(func(a http.Handler) http.Handler { return s.deps.Auth.RequireAdmin(a) }))

		r.Post("/api/generate/single", s.HandleGenerateSingle)
		r.Post("/api/generate/preview", s.HandleGeneratePreview)
		r.Post("/api/generate/and-save", s.HandleGenerateAndSave)

		r.Post("/api/posting-jobs", s.HandleCreatePostingJob)
		r.Get("/api/post-types", s.HandlePostTypes)

		r.Get("/api/knowledge/types", s.HandleKnowledgeTypes)
		r.Get("/api/knowledge/types/{typeId}", s.HandleKnowledgeType)
		r.Get("/api/knowledge/general/x-algorithm", s.HandleKnowledgeAlgorithm)

		r.Route("/api/admin", func(r chi.Router) {
			r.Post("/accounts", s.HandleAdminCreateAccount)
			r.Post("/tweets", s.HandleAdminCreateItem)
			r.Post("/posting-jobs", s.HandleAdminCreateJob)
			r.Get("/posting-jobs", s.HandleAdminListJobs)
		})
	})

	return r
}

// requireAuth applies guard when an auth service is configured and
// otherwise rejects everything with 503.
func (s *Server) requireAuth(guard func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.deps.Auth == nil {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "Authentication is not configured.")
			})
		}
		return guard(next)
	}
}

// requestLogger logs one line per request at debug level, warn for 5xx.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := []interface{}{
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatusCode, ww.Status(),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
			logger.FieldRequestID, middleware.GetReqID(r.Context()),
		}
		if ww.Status() >= http.StatusInternalServerError {
			s.log.Warnw("Request failed", fields...)
			return
		}
		s.log.Debugw("Request", fields...)
	})
}
