package export

import (
	"time"

	"github.com/slok/glexport/internal/model"
)

// Reporter receives the export phase events, used to give feedback to the operator.
type Reporter interface {
	ProjectsEnumerated(projects []model.Project)
	ExportsScheduled(report model.ScheduleReport)
	// SweepFinished is called after every completion sweep, wait is the time that
	// will be waited before the next sweep (0 when nothing is pending).
	SweepFinished(sweep, pending int, wait time.Duration)
	// ArtifactWritten is called when an archive has been placed on disk.
	ArtifactWritten(artifact model.Artifact, done, total int)
}

// NoopReporter ignores all the events.
const NoopReporter = noopReporter(0)

type noopReporter int

var _ Reporter = NoopReporter

func (noopReporter) ProjectsEnumerated([]model.Project)       {}
func (noopReporter) ExportsScheduled(model.ScheduleReport)    {}
func (noopReporter) SweepFinished(int, int, time.Duration)    {}
func (noopReporter) ArtifactWritten(model.Artifact, int, int) {}
