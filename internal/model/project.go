package model

import "fmt"

// Project is a GitLab project visible to the caller's credential.
// Projects are immutable once enumerated.
type Project struct {
	ID   int64
	Name string
	// Path is the short path segment of the project (e.g. `api`).
	Path string
	// PathNamespaced is the full hierarchical path (e.g. `acme/backend/api`).
	PathNamespaced string
}

// FallbackArchiveName is the archive filename used when the server doesn't advertise one.
func (p Project) FallbackArchiveName() string {
	return fmt.Sprintf("%s_%d.tar.gz", p.Path, p.ID)
}

// ScheduleStatus is the outcome of requesting an export job for a project.
type ScheduleStatus string

const (
	// ScheduleStatusScheduled means the server accepted the export request.
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	// ScheduleStatusFailed means the server rejected the export request.
	ScheduleStatusFailed ScheduleStatus = "failed"
)

// ScheduleResult is the scheduling outcome of a single project.
type ScheduleResult struct {
	Project Project
	Status  ScheduleStatus
	// Reason is the server reported message when Status is failed.
	Reason string
}

// ScheduleReport is the result of the scheduling phase.
type ScheduleReport struct {
	Scheduled []Project
	Failed    []ScheduleResult
}

// ExportState is the export job state as reported by the server.
type ExportState string

const (
	ExportStateNone                   ExportState = "none"
	ExportStateQueued                 ExportState = "queued"
	ExportStateStarted                ExportState = "started"
	ExportStateRegenerationInProgress ExportState = "regeneration_in_progress"
	ExportStateFinished               ExportState = "finished"
)

// ExportStatus is the state of the export job of a project at a point in time.
type ExportStatus struct {
	ProjectID int64
	State     ExportState
}

// Finished returns true when the export is ready to be downloaded. This is the only
// terminal state we know about.
func (e ExportStatus) Finished() bool { return e.State == ExportStateFinished }

// Artifact is a downloaded export archive placed on disk.
type Artifact struct {
	ProjectID      int64
	PathNamespaced string
	Filename       string
	// Path is the full path of the archive on disk.
	Path      string
	SizeBytes int64
	// Sweep is the completion wait sweep where the export was found finished.
	Sweep int
}
