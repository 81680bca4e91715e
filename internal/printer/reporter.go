package printer

import (
	"fmt"
	"io"
	"time"

	"github.com/slok/glexport/internal/export"
	"github.com/slok/glexport/internal/model"
)

// ExportReporter prints the progress of an export run for the operator.
type ExportReporter struct {
	writer io.Writer
}

var _ export.Reporter = &ExportReporter{}

// NewExportReporter creates a new export reporter.
func NewExportReporter(w io.Writer) *ExportReporter {
	return &ExportReporter{writer: w}
}

func (r *ExportReporter) ProjectsEnumerated(projects []model.Project) {
	fmt.Fprintf(r.writer, "Trying to export the following (%d) projects:\n", len(projects))
	for _, p := range projects {
		fmt.Fprintf(r.writer, "%d: %s\n", p.ID, p.PathNamespaced)
	}
}

func (r *ExportReporter) ExportsScheduled(report model.ScheduleReport) {
	fmt.Fprintf(r.writer, "Scheduled exports for %d projects\n", len(report.Scheduled))
	if len(report.Failed) == 0 {
		return
	}

	fmt.Fprintln(r.writer, "WARNING: Export for following projects could not be scheduled:")
	for _, f := range report.Failed {
		fmt.Fprintf(r.writer, "%s (%d): %s\n", f.Project.Name, f.Project.ID, f.Reason)
	}
}

func (r *ExportReporter) SweepFinished(sweep, pending int, wait time.Duration) {
	if pending == 0 {
		return
	}
	fmt.Fprintf(r.writer, "Waiting for %d exports to finish (sweep %d), next check in %s\n", pending, sweep, wait)
}

func (r *ExportReporter) ArtifactWritten(a model.Artifact, done, total int) {
	fmt.Fprintf(r.writer, "[%d/%d] %s -> %s (%s)\n", done, total, a.PathNamespaced, a.Path, FormatBytes(a.SizeBytes))
}
