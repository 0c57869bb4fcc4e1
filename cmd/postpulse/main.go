package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/postpulse/cmd/postpulse/commands"
	"github.com/teranos/postpulse/logger"
)

var rootCmd = &cobra.Command{
	Use:   "postpulse",
	Short: "postpulse - scheduled posting, analytics snapshots and drafts",
	Long: `postpulse - claims and executes scheduled posting jobs, snapshots post
analytics, and composes drafts from the post-type knowledge base.

Available commands:
  serve            - Start the HTTP trigger surface and the in-process ticker
  run-posting      - Run one posting scheduler invocation
  fetch-analytics  - Run one analytics snapshot pass
  draft            - Compose (and optionally save) a draft
  jobs             - List and create posting jobs
  db               - Migrate and seed the database
  am               - Show and validate configuration

Examples:
  postpulse serve                     # HTTP on server.port, ticker every scheduler.interval_seconds
  postpulse run-posting --max-jobs 5  # one invocation from cron or a shell
  postpulse jobs ls --status failed   # inspect failed jobs
  postpulse am show                   # effective configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.RunPostingCmd)
	rootCmd.AddCommand(commands.FetchAnalyticsCmd)
	rootCmd.AddCommand(commands.DraftCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
