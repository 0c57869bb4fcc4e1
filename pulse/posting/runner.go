package posting

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/internal/util"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/outbound"
)

// ErrClaimLost is reported when a finalize write found the job no longer
// running under this invocation's claim, typically after stale recovery
// handed it to another invoker.
var ErrClaimLost = errors.New("posting job claim lost")

// detailAlreadyPosted is recorded when the content was delivered by an
// earlier attempt whose job write did not land.
const detailAlreadyPosted = "already posted"

// Runner executes one scheduler invocation at a time against a Gateway.
// It holds no job state between invocations; overlapping Runners (in this
// or another process) are safe because every transition is conditional.
type Runner struct {
	gw       Gateway
	adapter  outbound.Adapter
	notifier Notifier
	log      *zap.SugaredLogger
	pulseLog *zap.SugaredLogger
	now      func() time.Time
}

// NewRunner creates a runner. A nil log uses the global logger.
func NewRunner(gw Gateway, adapter outbound.Adapter, log *zap.SugaredLogger) *Runner {
	if log == nil {
		log = logger.ComponentLogger("posting")
	}
	return &Runner{
		gw:       gw,
		adapter:  adapter,
		log:      log,
		pulseLog: logger.AddPulseSymbol(log),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// SetNotifier installs an outcome event sink.
func (r *Runner) SetNotifier(n Notifier) {
	r.notifier = n
}

// SetClock overrides the time source (tests).
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Run claims up to opts.MaxJobsPerRun eligible jobs and executes them in
// run_at order. Only a failure to read the eligible set is returned as an
// error; everything after that is reported per job.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	start := r.now()
	staleBefore := start.Add(-opts.LockTTL)

	report := &Report{Results: []Result{}, StartedAt: start}

	if opts.RecoverStale {
		n, err := r.gw.RecoverStale(ctx, staleBefore)
		if err != nil {
			r.pulseLog.Warnw("Stale job recovery failed", logger.FieldError, err)
		} else if n > 0 {
			report.Recovered = n
			r.pulseLog.Infow("Recovered stale jobs", logger.FieldCount, n)
		}
	}

	jobs, err := r.gw.SelectEligibleJobs(ctx, start, staleBefore, opts.MaxJobsPerRun)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch eligible posting jobs")
	}

	for _, candidate := range jobs {
		// Each lock carries its own claim time so a job claimed late in a
		// slow batch does not already look stale to an overlapping run.
		claimedAt := r.now()
		claimed, err := r.gw.ClaimJob(ctx, candidate.ID, claimedAt, claimedAt.Add(-opts.LockTTL))
		if err != nil {
			r.pulseLog.Errorw("Failed to claim job", logger.FieldJobID, candidate.ID, logger.FieldError, err)
			report.Results = append(report.Results, Result{JobID: candidate.ID, Outcome: OutcomeFailed, Detail: err.Error()})
			continue
		}
		if !claimed {
			r.log.Debugw("Job claimed elsewhere, skipping", logger.FieldJobID, candidate.ID)
			continue
		}
		report.ProcessedCount++

		job := candidate
		if fresh, err := r.gw.GetJob(ctx, candidate.ID); err == nil {
			job = *fresh
		} else {
			r.log.Warnw("Failed to reload claimed job, using selected row", logger.FieldJobID, candidate.ID, logger.FieldError, err)
		}

		res, attempts := r.process(logger.WithJobID(ctx, job.ID), job, claimedAt, opts)
		report.Results = append(report.Results, res)
		r.notify(ctx, job, res, attempts)
	}

	report.DurationMS = r.now().Sub(start).Milliseconds()
	counts := report.Counts()
	r.pulseLog.Infow("Posting run complete",
		"processed", report.ProcessedCount,
		"succeeded", counts[OutcomeSuccess],
		"retrying", counts[OutcomePending],
		"failed", counts[OutcomeFailed],
		logger.FieldDurationMS, report.DurationMS,
	)
	return report, nil
}

// process executes one claimed job and returns its result together with
// the attempt count written.
func (r *Runner) process(ctx context.Context, job Job, claimedAt time.Time, opts Options) (Result, int) {
	log := logger.LoggerFromContext(ctx, r.log).With(logger.FieldContentID, job.ContentID)

	item, err := r.gw.GetContentItem(ctx, job.ContentID)
	if err != nil {
		log.Warnw("Content item unavailable, failing job", logger.FieldError, err)
		return r.finalize(ctx, job, claimedAt, JobUpdate{
			Status:    JobStatusFailed,
			Attempts:  job.Attempts,
			RunAt:     job.RunAt,
			LastError: util.Ptr(err.Error()),
		}, OutcomeFailed, err.Error())
	}

	if item.Status == content.StatusPosted {
		log.Infow("Content already posted, closing job")
		return r.finalize(ctx, job, claimedAt, JobUpdate{
			Status:   JobStatusSuccess,
			Attempts: job.Attempts,
			RunAt:    job.RunAt,
		}, OutcomeSuccess, detailAlreadyPosted)
	}

	result, err := outbound.Deliver(ctx, r.adapter, item.Body, opts.AdapterTimeout)
	if err != nil {
		// Refused locally before any request; the attempt does not count.
		log.Infow("Post throttled, releasing job", logger.FieldError, err)
		return r.finalize(ctx, job, claimedAt, JobUpdate{
			Status:    JobStatusPending,
			Attempts:  job.Attempts,
			RunAt:     job.RunAt,
			LastError: util.Ptr(err.Error()),
		}, OutcomePending, err.Error())
	}

	if result.OK {
		return r.succeed(ctx, log, job, claimedAt, result)
	}
	return r.fail(ctx, log, job, claimedAt, result, opts)
}

func (r *Runner) succeed(ctx context.Context, log *zap.SugaredLogger, job Job, claimedAt time.Time, result outbound.Result) (Result, int) {
	postedAt := r.now()

	var contentErr error
	updated, err := r.gw.MarkContentPosted(ctx, job.ContentID, postedAt, result.ExternalID)
	if err != nil {
		contentErr = err
		log.Errorw("Failed to mark content posted", logger.FieldError, err)
	} else if !updated {
		log.Warnw("Content item was already marked posted")
	}

	res, attempts := r.finalize(ctx, job, claimedAt, JobUpdate{
		Status:   JobStatusSuccess,
		Attempts: job.Attempts,
		RunAt:    job.RunAt,
	}, OutcomeSuccess, result.ExternalID)

	if contentErr != nil && res.Outcome == OutcomeSuccess {
		res = Result{JobID: job.ID, Outcome: OutcomeFailed, Detail: contentErr.Error()}
	}
	if res.Outcome == OutcomeSuccess {
		log.Infow("Posted", logger.FieldStatusCode, result.StatusCode)
	}
	return res, attempts
}

func (r *Runner) fail(ctx context.Context, log *zap.SugaredLogger, job Job, claimedAt time.Time, result outbound.Result, opts Options) (Result, int) {
	detail := outbound.FailureDetail(result)
	attempts := job.Attempts + 1
	retryable := outbound.IsRetryableStatus(result.StatusCode)

	update := JobUpdate{
		Status:    JobStatusFailed,
		Attempts:  attempts,
		RunAt:     job.RunAt,
		LastError: util.Ptr(detail),
	}
	outcome := OutcomeFailed
	if retryable && attempts <= opts.MaxRetries {
		update.Status = JobStatusPending
		update.RunAt = r.now().Add(opts.RetryDelay)
		outcome = OutcomePending
	}

	log.Warnw("Post failed",
		logger.FieldStatusCode, result.StatusCode,
		logger.FieldRetryable, retryable,
		logger.FieldAttempts, attempts,
		logger.FieldOutcome, outcome,
		logger.FieldError, detail,
	)
	return r.finalize(ctx, job, claimedAt, update, outcome, detail)
}

// finalize writes update under the claim guard. Write errors and lost
// claims are reported as failed results; the loop continues either way.
func (r *Runner) finalize(ctx context.Context, job Job, claimedAt time.Time, update JobUpdate, outcome Outcome, detail string) (Result, int) {
	update.UpdatedAt = r.now()

	ok, err := r.gw.FinalizeJob(ctx, job.ID, claimedAt, update)
	if err == nil && !ok {
		err = errors.WithDetailf(ErrClaimLost, "Job ID: %s", job.ID)
	}
	if err != nil {
		r.log.Errorw("Failed to finalize job",
			logger.FieldJobID, job.ID,
			logger.FieldStatus, update.Status,
			logger.FieldError, err,
		)
		return Result{JobID: job.ID, Outcome: OutcomeFailed, Detail: err.Error()}, update.Attempts
	}
	return Result{JobID: job.ID, Outcome: outcome, Detail: detail}, update.Attempts
}

func (r *Runner) notify(ctx context.Context, job Job, res Result, attempts int) {
	if r.notifier == nil {
		return
	}
	ev := Event{
		JobID:     job.ID,
		ContentID: job.ContentID,
		AccountID: job.AccountID,
		Outcome:   res.Outcome,
		Detail:    res.Detail,
		Attempts:  attempts,
		At:        r.now(),
	}
	if err := r.notifier.Notify(ctx, ev); err != nil {
		r.log.Warnw("Failed to publish posting event", logger.FieldJobID, job.ID, logger.FieldError, err)
	}
}

// RecoverStale returns running jobs whose lock is older than ttl to
// pending. Attempts are unchanged.
func (r *Runner) RecoverStale(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := r.gw.RecoverStale(ctx, r.now().Add(-ttl))
	if err != nil {
		return 0, errors.Wrap(err, "failed to recover stale posting jobs")
	}
	return n, nil
}
