package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/internal/util"
	"github.com/teranos/postpulse/pulse/posting"
	"github.com/teranos/postpulse/sym"
)

// JobsCmd inspects and enqueues posting jobs
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: sym.Pulse + " List and create posting jobs",
	Long: `Inspect the posting job queue and enqueue content items.

Examples:
  postpulse jobs ls
  postpulse jobs ls --status failed --limit 20
  postpulse jobs create <content-id> --at "2026-05-01 09:00"`,
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List posting jobs, newest first",
	RunE:  runJobsLs,
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create <content-id>",
	Short: "Enqueue a pending job for a content item",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCreate,
}

var (
	jobsStatus string
	jobsLimit  int
	jobsJSON   bool
	jobsAt     string
)

func init() {
	jobsLsCmd.Flags().StringVar(&jobsStatus, "status", "", "Filter by status (pending, running, success, failed)")
	jobsLsCmd.Flags().IntVar(&jobsLimit, "limit", 50, "Maximum jobs to show")
	jobsLsCmd.Flags().BoolVar(&jobsJSON, "json", false, "Print jobs as JSON")

	jobsCreateCmd.Flags().StringVar(&jobsAt, "at", "", "Run time (default now)")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsCreateCmd)
}

func runJobsLs(cmd *cobra.Command, args []string) error {
	var status *posting.JobStatus
	if jobsStatus != "" {
		if !posting.IsValidStatus(jobsStatus) {
			return errors.NewInvalidRequestError("unknown status %q", jobsStatus)
		}
		st := posting.JobStatus(jobsStatus)
		status = &st
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.jobs.ListJobs(context.Background(), status, jobsLimit)
	if err != nil {
		return err
	}
	if jobsJSON {
		if jobs == nil {
			jobs = []posting.Job{}
		}
		return writeJSON(cmd.OutOrStdout(), jobs)
	}
	if len(jobs) == 0 {
		pterm.Info.Println("No posting jobs")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(jobsTable(jobs)).Render()
}

func runJobsCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := enqueue(context.Background(), a, args[0], jobsAt)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Job %s pending for content %s\n", job.ID, util.ShortID(job.ContentID))
	return nil
}

// enqueue creates a pending job for an existing content item. An empty
// at means now.
func enqueue(ctx context.Context, a *app, contentID, at string) (*posting.Job, error) {
	item, err := a.content.GetItem(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if item.Posted() {
		return nil, errors.WithHintf(errors.NewInvalidRequestError("content %s is already posted", util.ShortID(item.ID)),
			"external id %s", item.ExternalID)
	}

	job := &posting.Job{ContentID: item.ID, AccountID: item.AccountID, RunAt: time.Now().UTC()}
	if at != "" {
		runAt, err := parseWhen(at)
		if err != nil {
			return nil, err
		}
		job.RunAt = runAt
	}
	if err := a.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
