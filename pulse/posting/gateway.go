package posting

import (
	"context"
	"time"

	"github.com/teranos/postpulse/content"
)

// Gateway is the storage contract of the scheduler. Every write that
// guards job state is a conditional update reporting whether it applied.
type Gateway interface {
	// SelectEligibleJobs returns pending jobs with run_at <= now whose lock
	// is absent or older than staleBefore, oldest run_at first.
	SelectEligibleJobs(ctx context.Context, now, staleBefore time.Time, limit int) ([]Job, error)

	// ClaimJob moves a job to running with locked_at = now if it is still
	// pending and unlocked (or stale-locked). False means another invoker won.
	ClaimJob(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)

	// GetJob reloads a job, used after claiming to read current attempts.
	GetJob(ctx context.Context, id string) (*Job, error)

	// FinalizeJob applies update only while the job is running under the
	// claim taken at claimedAt. False means the claim was lost.
	FinalizeJob(ctx context.Context, id string, claimedAt time.Time, update JobUpdate) (bool, error)

	GetContentItem(ctx context.Context, id string) (*content.Item, error)

	// MarkContentPosted reports false when the item was already posted.
	MarkContentPosted(ctx context.Context, id string, postedAt time.Time, externalID string) (bool, error)

	// RecoverStale returns running jobs locked before staleBefore to pending.
	RecoverStale(ctx context.Context, staleBefore time.Time) (int64, error)
}
