package model

import "time"

// RunStatus is the status of an export run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the record of a single export invocation.
type Run struct {
	ID        string
	Instance  string
	OutputDir string
	// Dir is the timestamped run directory, empty when nothing was downloaded.
	Dir    string
	DryRun bool
	Status RunStatus
	Error  string

	Enumerated     int
	Scheduled      int
	ScheduleFailed int
	Exported       int
	Sweeps         int

	StartedAt  time.Time
	FinishedAt *time.Time
}

// ProjectOutcome is the final outcome of a project in a run.
type ProjectOutcome string

const (
	ProjectOutcomeExported       ProjectOutcome = "exported"
	ProjectOutcomeScheduleFailed ProjectOutcome = "schedule_failed"
	// ProjectOutcomePending is used for scheduled projects that didn't finish because the run stopped.
	ProjectOutcomePending ProjectOutcome = "pending"
)

// ProjectResult is the outcome of a project in a specific run.
type ProjectResult struct {
	RunID          string
	ProjectID      int64
	PathNamespaced string
	Outcome        ProjectOutcome
	Reason         string
	ArtifactPath   string
	SizeBytes      int64
}
