package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/pulse/posting"
	"github.com/teranos/postpulse/sym"
)

// RunPostingCmd runs one scheduler invocation
var RunPostingCmd = &cobra.Command{
	Use:   "run-posting",
	Short: sym.Pulse + " Run one posting scheduler invocation",
	Long: `Claim due posting jobs, deliver them through the configured adapter and
record the outcome. Safe to run from cron while serve is up.

Examples:
  postpulse run-posting
  postpulse run-posting --max-jobs 5 --max-retries 1
  postpulse run-posting --json`,
	RunE: runPosting,
}

// FetchAnalyticsCmd runs one analytics snapshot pass
var FetchAnalyticsCmd = &cobra.Command{
	Use:   "fetch-analytics",
	Short: "Snapshot metrics for posts in the analytics window",
	RunE:  runFetchAnalytics,
}

var (
	runMaxJobs    int
	runMaxRetries int
	runLockTTL    int
	runJSON       bool
	analyticsJSON bool
)

func init() {
	RunPostingCmd.Flags().IntVar(&runMaxJobs, "max-jobs", 0, "Jobs to claim this run (overrides scheduler.max_jobs_per_run)")
	RunPostingCmd.Flags().IntVar(&runMaxRetries, "max-retries", -1, "Retry bound (overrides scheduler.max_retries)")
	RunPostingCmd.Flags().IntVar(&runLockTTL, "lock-ttl", 0, "Stale lock TTL in seconds (overrides scheduler.lock_ttl_seconds)")
	RunPostingCmd.Flags().BoolVar(&runJSON, "json", false, "Print the report as JSON")

	FetchAnalyticsCmd.Flags().BoolVar(&analyticsJSON, "json", false, "Print the report as JSON")
}

// applyRunFlags overlays the command-line overrides on configured options.
func applyRunFlags(opts posting.Options, maxJobs, maxRetries, lockTTL int) posting.Options {
	if maxJobs > 0 {
		opts.MaxJobsPerRun = maxJobs
	}
	if maxRetries >= 0 {
		opts.MaxRetries = maxRetries
	}
	if lockTTL > 0 {
		opts.LockTTL = time.Duration(lockTTL) * time.Second
	}
	return opts
}

func runPosting(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runner, err := a.runner(ctx)
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx, applyRunFlags(a.options(), runMaxJobs, runMaxRetries, runLockTTL))
	if err != nil {
		return errors.Wrap(err, "posting run failed")
	}
	if runJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	return renderPostingReport(cmd.OutOrStdout(), report)
}

func runFetchAnalytics(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	collector, err := a.collector(ctx)
	if err != nil {
		return err
	}

	report, err := collector.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "analytics run failed")
	}
	if analyticsJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	return renderAnalyticsReport(cmd.OutOrStdout(), report)
}
