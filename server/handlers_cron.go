package server

import (
	"net/http"
	"time"

	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/pulse/posting"
	"github.com/teranos/postpulse/sym"
)

// runOptions applies the maxJobsPerRun, maxRetries and lockTtlSeconds query
// overrides to the configured defaults.
func (s *Server) runOptions(w http.ResponseWriter, r *http.Request) (posting.Options, bool) {
	o := s.deps.Options
	if n, present, valid := queryInt(r, "maxJobsPerRun", 1); !valid {
		writeError(w, http.StatusBadRequest, "maxJobsPerRun must be a positive integer.")
		return o, false
	} else if present {
		o.MaxJobsPerRun = n
	}
	if n, present, valid := queryInt(r, "maxRetries", 0); !valid {
		writeError(w, http.StatusBadRequest, "maxRetries must be a non-negative integer.")
		return o, false
	} else if present {
		o.MaxRetries = n
	}
	if n, present, valid := queryInt(r, "lockTtlSeconds", 1); !valid {
		writeError(w, http.StatusBadRequest, "lockTtlSeconds must be a positive integer.")
		return o, false
	} else if present {
		o.LockTTL = time.Duration(n) * time.Second
	}
	return o, true
}

// HandleRunPosting runs one scheduler invocation and returns its report.
// Only a failure to fetch eligible jobs fails the request.
func (s *Server) HandleRunPosting(w http.ResponseWriter, r *http.Request) {
	if s.deps.Posting == nil {
		writeError(w, http.StatusServiceUnavailable, "Posting runner is not configured.")
		return
	}
	opts, ok := s.runOptions(w, r)
	if !ok {
		return
	}

	report, err := s.deps.Posting.Run(r.Context(), opts)
	if err != nil {
		s.log.Errorw(sym.Pulse+" Cron run failed", logger.FieldOperation, "run-posting", logger.FieldError, err)
		writeErrorDetail(w, http.StatusInternalServerError, "Failed to load posting jobs", err.Error())
		return
	}

	s.hub.publishPosting("cron", report)
	writeJSON(w, http.StatusOK, report)
}

// HandleFetchAnalytics runs one snapshot pass and returns its report.
func (s *Server) HandleFetchAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analytics == nil {
		writeError(w, http.StatusServiceUnavailable, "Analytics collector is not configured.")
		return
	}

	report, err := s.deps.Analytics.Run(r.Context())
	if err != nil {
		s.log.Errorw("Cron run failed", logger.FieldOperation, "fetch-analytics", logger.FieldError, err)
		writeErrorDetail(w, http.StatusInternalServerError, "Failed to load tweets", err.Error())
		return
	}

	s.hub.publishAnalytics("cron", report)
	writeJSON(w, http.StatusOK, report)
}
