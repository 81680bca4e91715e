package lib

import (
	"io"
	"time"

	"github.com/slok/glexport/internal/model"
)

// GitLabConfig is how the SDK connects to a GitLab instance.
type GitLabConfig struct {
	// Instance is the GitLab base URL (e.g. https://gitlab.com). Required.
	Instance string
	// AccessToken is the personal access token sent on every request. Required.
	AccessToken string
	// AllProjects lists every project visible to the token instead of only
	// the ones where the token owner is a member.
	AllProjects bool
	// PerPage is the project listing page size (1-100).
	// Default: 100.
	PerPage int
	// Retries is the number of retries of a failed request.
	// Default: 10.
	Retries int
	// NoRetries disables the retries.
	NoRetries bool
	// BackoffFactor is the base of the exponential backoff between retries.
	// Default: 3s.
	BackoffFactor time.Duration
	// RequestsPerSecond limits the request rate. 0 means unlimited.
	RequestsPerSecond float64
}

// --- Export types ---

// ExportOpts configures an export run.
type ExportOpts struct {
	GitLab GitLabConfig
	// OutputDir is where the timestamped run directory is created.
	// Required unless DryRun is set.
	OutputDir string
	// DryRun only enumerates the projects, nothing is scheduled nor downloaded.
	DryRun bool
	// PollUnit is the time unit of the completion wait, the wait after sweep k
	// is 3*k units.
	// Default: 1s.
	PollUnit time.Duration
	// MaxSweeps gives up waiting after this number of sweeps. 0 means unbounded.
	MaxSweeps int
	// MaxWait gives up waiting after this accumulated wait. 0 means unbounded.
	MaxWait time.Duration
	// Output receives the human readable progress of the run (the same the CLI
	// prints). Nil disables it.
	Output io.Writer
}

// ExportResult is the result of an export run.
type ExportResult struct {
	// Run is the recorded run, also available later with [Client.GetRun].
	Run Run
	// Projects are all the enumerated projects.
	Projects []Project
	// ScheduleFailed are the projects whose export request was rejected.
	ScheduleFailed []ScheduleFailure
	// Artifacts are the downloaded archives in completion order.
	Artifacts []Artifact
}

// Project is a GitLab project visible to the access token.
type Project struct {
	ID   int64
	Name string
	// Path is the short path of the project (e.g. `api`).
	Path string
	// PathNamespaced is the full path including namespaces (e.g. `acme/backend/api`).
	PathNamespaced string
}

// ScheduleFailure is a project whose export couldn't be scheduled.
type ScheduleFailure struct {
	Project Project
	// Reason is the message returned by the server.
	Reason string
}

// Artifact is a downloaded project export archive.
type Artifact struct {
	ProjectID      int64
	PathNamespaced string
	Filename       string
	// Path is the full path of the archive on disk.
	Path      string
	SizeBytes int64
}

// ListProjectsOpts configures the project listing.
type ListProjectsOpts struct {
	GitLab GitLabConfig
	// Namespace only lists the projects under this namespace (e.g. `acme/backend`).
	Namespace string
}

// --- History types ---

// RunStatus is the status of an export run.
type RunStatus string

const (
	// RunStatusRunning is a run in progress (or one whose process died).
	RunStatusRunning RunStatus = "running"
	// RunStatusSucceeded is a run that finished.
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed is a run that stopped because of an error.
	RunStatusFailed RunStatus = "failed"
)

// Run is a recorded export run.
type Run struct {
	// ID is the unique identifier (ULID) of the run.
	ID       string
	Instance string
	// OutputDir is the requested output directory.
	OutputDir string
	// Dir is the run directory with the archives. Empty when nothing was downloaded.
	Dir    string
	DryRun bool
	Status RunStatus
	// Error is the error that stopped the run, if any.
	Error string

	Enumerated     int
	Scheduled      int
	ScheduleFailed int
	Exported       int
	Sweeps         int

	StartedAt time.Time
	// FinishedAt is nil while the run is in progress.
	FinishedAt *time.Time
}

// ListRunsOpts configures the run history listing.
type ListRunsOpts struct {
	// Limit is the max number of runs returned, 0 means all.
	Limit int
	// Status only lists the runs with this status.
	Status *RunStatus
}

// ProjectOutcome is the final outcome of a project in a run.
type ProjectOutcome string

const (
	// ProjectOutcomeExported is a project whose archive was downloaded.
	ProjectOutcomeExported ProjectOutcome = "exported"
	// ProjectOutcomeScheduleFailed is a project whose export was rejected.
	ProjectOutcomeScheduleFailed ProjectOutcome = "schedule_failed"
	// ProjectOutcomePending is a project that didn't finish before the run stopped.
	ProjectOutcomePending ProjectOutcome = "pending"
)

// ProjectResult is the outcome of a project in a run.
type ProjectResult struct {
	ProjectID      int64
	PathNamespaced string
	Outcome        ProjectOutcome
	Reason         string
	ArtifactPath   string
	SizeBytes      int64
}

// RunDetails is a run with the outcome of every project in it.
type RunDetails struct {
	Run     Run
	Results []ProjectResult
}

// --- Internal conversion helpers ---

func toInternalExportConfig(g GitLabConfig, outputDir string, dryRun bool) model.ExportConfig {
	return model.ExportConfig{
		Instance:          g.Instance,
		AccessToken:       g.AccessToken,
		OutputDir:         outputDir,
		DryRun:            dryRun,
		AllProjects:       g.AllProjects,
		PerPage:           g.PerPage,
		Retries:           g.Retries,
		BackoffFactor:     g.BackoffFactor,
		RequestsPerSecond: g.RequestsPerSecond,
	}
}

func fromInternalProject(p model.Project) Project {
	return Project{
		ID:             p.ID,
		Name:           p.Name,
		Path:           p.Path,
		PathNamespaced: p.PathNamespaced,
	}
}

func fromInternalProjectList(ps []model.Project) []Project {
	result := make([]Project, len(ps))
	for i, p := range ps {
		result[i] = fromInternalProject(p)
	}
	return result
}

func fromInternalRun(r model.Run) Run {
	return Run{
		ID:             r.ID,
		Instance:       r.Instance,
		OutputDir:      r.OutputDir,
		Dir:            r.Dir,
		DryRun:         r.DryRun,
		Status:         RunStatus(r.Status),
		Error:          r.Error,
		Enumerated:     r.Enumerated,
		Scheduled:      r.Scheduled,
		ScheduleFailed: r.ScheduleFailed,
		Exported:       r.Exported,
		Sweeps:         r.Sweeps,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}

func fromInternalRunList(rs []model.Run) []Run {
	result := make([]Run, len(rs))
	for i, r := range rs {
		result[i] = fromInternalRun(r)
	}
	return result
}

func fromInternalProjectResults(rs []model.ProjectResult) []ProjectResult {
	result := make([]ProjectResult, len(rs))
	for i, r := range rs {
		result[i] = ProjectResult{
			ProjectID:      r.ProjectID,
			PathNamespaced: r.PathNamespaced,
			Outcome:        ProjectOutcome(r.Outcome),
			Reason:         r.Reason,
			ArtifactPath:   r.ArtifactPath,
			SizeBytes:      r.SizeBytes,
		}
	}
	return result
}

func fromInternalScheduleFailures(rs []model.ScheduleResult) []ScheduleFailure {
	result := make([]ScheduleFailure, len(rs))
	for i, r := range rs {
		result[i] = ScheduleFailure{
			Project: fromInternalProject(r.Project),
			Reason:  r.Reason,
		}
	}
	return result
}

func fromInternalArtifacts(as []model.Artifact) []Artifact {
	result := make([]Artifact, len(as))
	for i, a := range as {
		result[i] = Artifact{
			ProjectID:      a.ProjectID,
			PathNamespaced: a.PathNamespaced,
			Filename:       a.Filename,
			Path:           a.Path,
			SizeBytes:      a.SizeBytes,
		}
	}
	return result
}

func toInternalStatusFilter(opts *ListRunsOpts) *model.RunStatus {
	if opts == nil || opts.Status == nil {
		return nil
	}
	s := model.RunStatus(*opts.Status)
	return &s
}
