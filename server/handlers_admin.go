package server

import (
	"net/http"
	"strings"

	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/internal/util"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/pulse/posting"
)

const (
	defaultJobListLimit = 50
	maxJobListLimit     = 500
)

func (s *Server) stores(w http.ResponseWriter) bool {
	if s.deps.Content == nil || s.deps.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "Storage is not configured.")
		return false
	}
	return true
}

type postingJobRequest struct {
	TweetID interface{} `json:"tweetId"`
	RunAt   interface{} `json:"runAt"`
}

// HandleCreatePostingJob schedules an existing content item.
func (s *Server) HandleCreatePostingJob(w http.ResponseWriter, r *http.Request) {
	if !s.stores(w) {
		return
	}
	var payload postingJobRequest
	if !decodeObject(r, &payload) {
		writeError(w, http.StatusBadRequest, "Invalid payload.")
		return
	}
	contentID, _ := payload.TweetID.(string)
	if contentID == "" {
		writeError(w, http.StatusBadRequest, "tweetId is required.")
		return
	}
	rawRunAt, _ := payload.RunAt.(string)
	if rawRunAt == "" {
		writeError(w, http.StatusBadRequest, "runAt is required.")
		return
	}
	runAt, ok := parseTime(rawRunAt)
	if !ok {
		writeError(w, http.StatusBadRequest, "runAt must be a valid datetime string.")
		return
	}

	item, err := s.deps.Content.GetItem(r.Context(), contentID)
	if errors.IsNotFoundError(err) {
		writeError(w, http.StatusNotFound, "Tweet not found.")
		return
	}
	if err != nil {
		s.writeFailure(w, r, err, "Failed to load tweet.")
		return
	}

	job := &posting.Job{ContentID: item.ID, AccountID: item.AccountID, RunAt: runAt}
	if err := s.deps.Jobs.CreateJob(r.Context(), job); err != nil {
		s.writeFailure(w, r, err, "Failed to create posting job.")
		return
	}
	s.log.Infow("Posting job scheduled",
		logger.FieldJobID, util.ShortID(job.ID),
		logger.FieldContentID, util.ShortID(item.ID),
		logger.FieldRunAt, job.RunAt)
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobId": job.ID, "status": job.Status})
}

type accountRequest struct {
	PlatformUserID string `json:"x_user_id"`
	Handle         string `json:"username"`
	DisplayName    string `json:"display_name"`
	AccountType    string `json:"account_type"`
	Status         string `json:"status"`
}

// HandleAdminCreateAccount inserts an account.
func (s *Server) HandleAdminCreateAccount(w http.ResponseWriter, r *http.Request) {
	if !s.stores(w) {
		return
	}
	var payload accountRequest
	if !decodeObject(r, &payload) || strings.TrimSpace(payload.Handle) == "" {
		writeError(w, http.StatusBadRequest, "username is required.")
		return
	}

	account := &content.Account{
		Handle:         payload.Handle,
		PlatformUserID: payload.PlatformUserID,
		DisplayName:    payload.DisplayName,
		AccountType:    payload.AccountType,
		Status:         payload.Status,
	}
	if err := s.deps.Content.CreateAccount(r.Context(), account); err != nil {
		s.writeFailure(w, r, err, "Failed to create account")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"account": account})
}

type itemRequest struct {
	AccountID   string `json:"account_id"`
	Body        string `json:"content"`
	Category    string `json:"tweet_type"`
	ScheduledAt string `json:"scheduled_at"`
}

// HandleAdminCreateItem inserts a content item as written, without rules
// or validation. scheduled_at only sets the status; it does not enqueue a job.
func (s *Server) HandleAdminCreateItem(w http.ResponseWriter, r *http.Request) {
	if !s.stores(w) {
		return
	}
	var payload itemRequest
	if !decodeObject(r, &payload) || payload.AccountID == "" || payload.Body == "" {
		writeError(w, http.StatusBadRequest, "account_id and content are required.")
		return
	}

	item := &content.Item{
		AccountID: payload.AccountID,
		Body:      payload.Body,
		Category:  payload.Category,
	}
	if payload.ScheduledAt != "" {
		at, ok := parseTime(payload.ScheduledAt)
		if !ok {
			writeError(w, http.StatusBadRequest, "scheduled_at must be a valid datetime string.")
			return
		}
		item.ScheduledAt = &at
	}
	if err := s.deps.Content.CreateItem(r.Context(), item); err != nil {
		s.writeFailure(w, r, err, "Failed to create tweet")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"tweet": item})
}

type adminJobRequest struct {
	ContentID string `json:"tweet_id"`
	AccountID string `json:"account_id"`
	RunAt     string `json:"run_at"`
}

// HandleAdminCreateJob inserts a pending job for explicit ids.
func (s *Server) HandleAdminCreateJob(w http.ResponseWriter, r *http.Request) {
	if !s.stores(w) {
		return
	}
	var payload adminJobRequest
	if !decodeObject(r, &payload) || payload.ContentID == "" || payload.AccountID == "" || payload.RunAt == "" {
		writeError(w, http.StatusBadRequest, "tweet_id, account_id, and run_at are required.")
		return
	}
	runAt, ok := parseTime(payload.RunAt)
	if !ok {
		writeError(w, http.StatusBadRequest, "run_at must be a valid datetime string.")
		return
	}

	job := &posting.Job{ContentID: payload.ContentID, AccountID: payload.AccountID, RunAt: runAt}
	if err := s.deps.Jobs.CreateJob(r.Context(), job); err != nil {
		s.writeFailure(w, r, err, "Failed to create posting job")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"posting_job": job})
}

// HandleAdminListJobs lists jobs, newest first, optionally filtered
// by ?status= and bounded by ?limit=.
func (s *Server) HandleAdminListJobs(w http.ResponseWriter, r *http.Request) {
	if !s.stores(w) {
		return
	}
	var status *posting.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		if !posting.IsValidStatus(raw) {
			writeError(w, http.StatusBadRequest, "status must be one of pending, running, success, failed.")
			return
		}
		st := posting.JobStatus(raw)
		status = &st
	}
	limit, present, ok := queryInt(r, "limit", 1)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer.")
		return
	}
	if !present {
		limit = defaultJobListLimit
	}
	if limit > maxJobListLimit {
		limit = maxJobListLimit
	}

	jobs, err := s.deps.Jobs.ListJobs(r.Context(), status, limit)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to list posting jobs")
		return
	}
	if jobs == nil {
		jobs = []posting.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"posting_jobs": jobs})
}
