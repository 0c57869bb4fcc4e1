package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/generation"
	"github.com/teranos/postpulse/sym"
)

// DraftCmd composes a draft from the knowledge base
var DraftCmd = &cobra.Command{
	Use:   "draft",
	Short: sym.IX + " Compose a draft, optionally saving and scheduling it",
	Long: `Compose a draft for an account and post type. Without --content the body
is generated (or stubbed when no model is configured). The draft passes the
account-type rules and validation, with at most one rewrite.

--save stores it as a content item; --at additionally schedules a posting job.

Examples:
  postpulse draft --account <id> --type awareness --theme mornings
  postpulse draft --account <id> --type fan --content "..." --save --at 2026-05-01T09:00:00Z`,
	RunE: runDraft,
}

var (
	draftAccount  string
	draftType     string
	draftContent  string
	draftTheme    string
	draftKeywords []string
	draftHashtags bool
	draftSave     bool
	draftAt       string
	draftJSON     bool
)

func init() {
	DraftCmd.Flags().StringVar(&draftAccount, "account", "", "Account id (required)")
	DraftCmd.Flags().StringVar(&draftType, "type", "", "Post type id (required)")
	DraftCmd.Flags().StringVar(&draftContent, "content", "", "Supplied body; empty generates one")
	DraftCmd.Flags().StringVar(&draftTheme, "theme", "", "Theme for generation")
	DraftCmd.Flags().StringSliceVar(&draftKeywords, "keyword", nil, "Keyword for generation (repeatable)")
	DraftCmd.Flags().BoolVar(&draftHashtags, "hashtags", false, "Ask the model for hashtags")
	DraftCmd.Flags().BoolVar(&draftSave, "save", false, "Store the draft as a content item")
	DraftCmd.Flags().StringVar(&draftAt, "at", "", "Schedule a posting job at this time (implies --save)")
	DraftCmd.Flags().BoolVar(&draftJSON, "json", false, "Print the result as JSON")
	_ = DraftCmd.MarkFlagRequired("account")
	_ = DraftCmd.MarkFlagRequired("type")
}

// parseWhen accepts RFC 3339 or a local "2006-01-02 15:04".
func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.NewInvalidRequestError("invalid time %q (use RFC 3339 or \"2006-01-02 15:04\")", s)
}

func runDraft(cmd *cobra.Command, args []string) error {
	req := generation.DraftRequest{
		AccountID:       draftAccount,
		TypeID:          draftType,
		Content:         draftContent,
		Theme:           draftTheme,
		Keywords:        draftKeywords,
		IncludeHashtags: draftHashtags,
	}
	if draftAt != "" {
		at, err := parseWhen(draftAt)
		if err != nil {
			return err
		}
		req.ScheduledAt = &at
		draftSave = true
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	p, err := a.pipeline()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if !draftSave {
		draft, err := p.Compose(ctx, req)
		if err != nil {
			return describeDraftError(err)
		}
		if draftJSON {
			return writeJSON(out, draft)
		}
		fmt.Fprintln(out, draft.Body)
		if draft.Rewritten {
			pterm.Info.Println("Rewritten to fit validation limits")
		}
		return nil
	}

	result, err := p.Save(ctx, req)
	if err != nil {
		return describeDraftError(err)
	}
	if draftJSON {
		return writeJSON(out, result)
	}
	pterm.Success.Printf("Saved content %s (%s)\n", result.ContentID, result.Status)
	if result.JobID != "" {
		pterm.Info.Printf("Posting job %s runs at %s\n", result.JobID, req.ScheduledAt.Local().Format(time.RFC1123))
	}
	return nil
}

// describeDraftError lists validation reasons one per line.
func describeDraftError(err error) error {
	var verr *generation.ValidationError
	if errors.As(err, &verr) {
		for _, reason := range verr.Reasons {
			pterm.Error.Println(reason)
		}
		return errors.New("draft failed validation")
	}
	return err
}
