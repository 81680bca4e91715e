package printer

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/slok/glexport/internal/model"
)

// TablePrinter prints export information in a table format.
type TablePrinter struct {
	writer io.Writer
	now    func() time.Time
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w, now: time.Now}
}

// PrintProjects prints projects in a table format.
func (t *TablePrinter) PrintProjects(projects []model.Project) error {
	if len(projects) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tPATH\tNAME")
	for _, p := range projects {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.PathNamespaced, p.Name)
	}

	return nil
}

// PrintRuns prints export runs in a table format.
func (t *TablePrinter) PrintRuns(runs []model.Run) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "ID\tSTATUS\tINSTANCE\tEXPORTED\tFAILED\tDURATION\tSTARTED")

	// Print rows.
	now := t.now()
	for _, r := range runs {
		status := string(r.Status)
		if r.DryRun {
			status += " (dry run)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			r.ID,
			status,
			r.Instance,
			r.Exported,
			r.Enumerated,
			r.ScheduleFailed,
			FormatRunDuration(r.StartedAt, r.FinishedAt),
			TimeAgo(r.StartedAt, now),
		)
	}

	return nil
}

// PrintRun prints a detailed export run with the outcome of its projects.
func (t *TablePrinter) PrintRun(run model.Run, results []model.ProjectResult) error {
	fmt.Fprintf(t.writer, "ID:          %s\n", run.ID)
	fmt.Fprintf(t.writer, "Status:      %s\n", run.Status)
	fmt.Fprintf(t.writer, "Instance:    %s\n", run.Instance)
	if run.DryRun {
		fmt.Fprintf(t.writer, "Dry run:     yes\n")
	}
	if run.Dir != "" {
		fmt.Fprintf(t.writer, "Directory:   %s\n", run.Dir)
	}
	fmt.Fprintf(t.writer, "Projects:    %d enumerated, %d scheduled, %d failed, %d exported\n",
		run.Enumerated, run.Scheduled, run.ScheduleFailed, run.Exported)
	fmt.Fprintf(t.writer, "Sweeps:      %d\n", run.Sweeps)
	fmt.Fprintf(t.writer, "Started:     %s\n", FormatTimestamp(run.StartedAt))
	if run.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:    %s\n", FormatTimestamp(*run.FinishedAt))
	}
	if run.Error != "" {
		fmt.Fprintf(t.writer, "Error:       %s\n", run.Error)
	}

	if len(results) == 0 {
		return nil
	}

	fmt.Fprintln(t.writer)
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "PROJECT\tPATH\tOUTCOME\tSIZE\tDETAIL")
	for _, r := range results {
		size, detail := "-", r.Reason
		if r.Outcome == model.ProjectOutcomeExported {
			size, detail = FormatBytes(r.SizeBytes), r.ArtifactPath
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ProjectID, r.PathNamespaced, r.Outcome, size, detail)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
