// Package posting turns a durable queue of pending posting jobs into
// exactly-once-effective posts.
//
// Invocations may overlap and repeat. Correctness rests on conditional
// updates in the Gateway: a job is claimed only if it is still pending,
// and finalized only while the claim that started it still holds.
package posting

import (
	"time"
)

// JobStatus represents the current state of a posting job
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success" // terminal
	JobStatusFailed  JobStatus = "failed"  // terminal
)

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusRunning, JobStatusSuccess, JobStatusFailed:
		return true
	}
	return false
}

// Job schedules one content item for delivery. Retries reuse the row.
// LockedAt is non-nil only while Status is running.
type Job struct {
	ID        string     `json:"id"`
	ContentID string     `json:"content_id"`
	AccountID string     `json:"account_id"`
	RunAt     time.Time  `json:"run_at"`
	Status    JobStatus  `json:"status"`
	Attempts  int        `json:"attempts"`
	LockedAt  *time.Time `json:"locked_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// JobUpdate is the state written when a claimed job is finalized.
// The lock is always released.
type JobUpdate struct {
	Status    JobStatus
	Attempts  int
	RunAt     time.Time
	LastError *string // nil keeps the stored value
	UpdatedAt time.Time
}

// Outcome is what an invocation did with a claimed job.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePending Outcome = "pending" // released for retry
	OutcomeFailed  Outcome = "failed"
)

// Result reports one claimed job.
type Result struct {
	JobID   string  `json:"jobId"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

// Report summarizes one scheduler invocation. ProcessedCount counts
// claimed jobs; claim races are not reported.
type Report struct {
	ProcessedCount int       `json:"processedCount"`
	Results        []Result  `json:"results"`
	Recovered      int64     `json:"recovered,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	DurationMS     int64     `json:"durationMs"`
}

// Counts tallies results by outcome.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, 3)
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	return counts
}

// Options bound one invocation.
type Options struct {
	MaxJobsPerRun  int
	MaxRetries     int
	LockTTL        time.Duration
	RetryDelay     time.Duration // added to run_at of a retried job; 0 = next invocation
	RecoverStale   bool
	AdapterTimeout time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxJobsPerRun:  10,
		MaxRetries:     3,
		LockTTL:        600 * time.Second,
		RecoverStale:   true,
		AdapterTimeout: 15 * time.Second,
	}
}
