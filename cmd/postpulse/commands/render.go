package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/postpulse/internal/util"
	"github.com/teranos/postpulse/pulse/analytics"
	"github.com/teranos/postpulse/pulse/posting"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// postingReportTable is the result table of one scheduler invocation.
func postingReportTable(r *posting.Report) pterm.TableData {
	data := pterm.TableData{{"Job", "Outcome", "Detail"}}
	for _, res := range r.Results {
		data = append(data, []string{util.ShortID(res.JobID), string(res.Outcome), res.Detail})
	}
	return data
}

func renderPostingReport(w io.Writer, r *posting.Report) error {
	counts := r.Counts()
	fmt.Fprintf(w, "Processed %d job(s) in %dms: %d success, %d pending, %d failed",
		r.ProcessedCount, r.DurationMS,
		counts[posting.OutcomeSuccess], counts[posting.OutcomePending], counts[posting.OutcomeFailed])
	if r.Recovered > 0 {
		fmt.Fprintf(w, ", %d stale lock(s) recovered", r.Recovered)
	}
	fmt.Fprintln(w)
	if len(r.Results) == 0 {
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(postingReportTable(r)).Render()
}

func analyticsReportTable(r *analytics.Report) pterm.TableData {
	data := pterm.TableData{{"Content", "Status", "Detail"}}
	for _, res := range r.Results {
		data = append(data, []string{util.ShortID(res.ContentID), res.Status, res.Detail})
	}
	return data
}

func renderAnalyticsReport(w io.Writer, r *analytics.Report) error {
	fmt.Fprintf(w, "Stored %d snapshot(s) for posts between %s and %s\n",
		r.Processed, r.Window.Start.Format(time.RFC3339), r.Window.End.Format(time.RFC3339))
	if len(r.Results) == 0 {
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(analyticsReportTable(r)).Render()
}

func jobsTable(jobs []posting.Job) pterm.TableData {
	data := pterm.TableData{{"ID", "Content", "Status", "Attempts", "Run at", "Last error"}}
	for _, j := range jobs {
		data = append(data, []string{
			util.ShortID(j.ID),
			util.ShortID(j.ContentID),
			string(j.Status),
			strconv.Itoa(j.Attempts),
			j.RunAt.Local().Format("2006-01-02 15:04"),
			j.LastError,
		})
	}
	return data
}
