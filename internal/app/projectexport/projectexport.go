package projectexport

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/glexport/internal/clock"
	"github.com/slok/glexport/internal/export"
	"github.com/slok/glexport/internal/gitlab"
	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
	"github.com/slok/glexport/internal/storage"
)

// ServiceConfig is the configuration for the project export service.
type ServiceConfig struct {
	API        gitlab.API
	Repository storage.Repository
	Clock      clock.Clock
	// Reporter receives the progress of the export phases.
	Reporter export.Reporter
	// StatusWriter receives the download progress, nil disables it.
	StatusWriter io.Writer
	PollUnit     time.Duration
	MaxSweeps    int
	MaxWait      time.Duration
	MaxPages     int
	Logger       log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.API == nil {
		return fmt.Errorf("gitlab API is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Clock == nil {
		c.Clock = clock.Real
	}
	if c.Reporter == nil {
		c.Reporter = export.NoopReporter
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.ProjectExport"})
	return nil
}

// Service exports all the projects of a GitLab instance and records the run in the history.
type Service struct {
	enumerator *export.Enumerator
	scheduler  *export.Scheduler
	poller     *export.Poller
	repo       storage.Repository
	clock      clock.Clock
	reporter   export.Reporter
	logger     log.Logger
}

// NewService creates a new project export service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	enumerator, err := export.NewEnumerator(export.EnumeratorConfig{
		API:      cfg.API,
		MaxPages: cfg.MaxPages,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create enumerator: %w", err)
	}

	scheduler, err := export.NewScheduler(export.SchedulerConfig{
		API:    cfg.API,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create scheduler: %w", err)
	}

	fetcher, err := export.NewFetcher(export.FetcherConfig{
		API:          cfg.API,
		StatusWriter: cfg.StatusWriter,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create fetcher: %w", err)
	}

	poller, err := export.NewPoller(export.PollerConfig{
		API:       cfg.API,
		Fetcher:   fetcher,
		Clock:     cfg.Clock,
		Unit:      cfg.PollUnit,
		MaxSweeps: cfg.MaxSweeps,
		MaxWait:   cfg.MaxWait,
		Reporter:  cfg.Reporter,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create poller: %w", err)
	}

	return &Service{
		enumerator: enumerator,
		scheduler:  scheduler,
		poller:     poller,
		repo:       cfg.Repository,
		clock:      cfg.Clock,
		reporter:   cfg.Reporter,
		logger:     cfg.Logger,
	}, nil
}

// Request is the project export request.
type Request struct {
	// Instance is the GitLab base URL, only used to record the run.
	Instance  string
	OutputDir string
	// DryRun only enumerates the projects, nothing is scheduled nor written.
	DryRun bool
}

// Response is the project export result.
type Response struct {
	Run       model.Run
	Projects  []model.Project
	Schedule  *model.ScheduleReport
	Artifacts []model.Artifact
}

// Run executes an export run: enumerate, schedule, wait and download. The run and the
// outcome of every project are recorded in the history, also when the run fails.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.OutputDir == "" && !req.DryRun {
		return nil, fmt.Errorf("output dir is required: %w", model.ErrNotValid)
	}

	startedAt := s.clock.Now()
	run := model.Run{
		ID:        ulid.MustNew(ulid.Timestamp(startedAt), rand.Reader).String(),
		Instance:  req.Instance,
		OutputDir: req.OutputDir,
		DryRun:    req.DryRun,
		Status:    model.RunStatusRunning,
		StartedAt: startedAt.UTC(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("could not record run: %w", err)
	}
	s.logger.Debugf("Started export run %s", run.ID)

	resp := &Response{}
	var pending []model.Project
	fail := func(err error) (*Response, error) {
		s.recordPending(ctx, run.ID, pending)
		run = s.finishRun(ctx, run, err)
		resp.Run = run
		return resp, err
	}

	// Enumerate.
	projects, err := s.enumerator.Enumerate(ctx)
	if err != nil {
		return fail(fmt.Errorf("could not enumerate projects: %w", err))
	}
	resp.Projects = projects
	run.Enumerated = len(projects)
	s.reporter.ProjectsEnumerated(projects)

	if req.DryRun {
		s.logger.Infof("Dry run, %d projects enumerated, nothing exported", len(projects))
		run = s.finishRun(ctx, run, nil)
		resp.Run = run
		return resp, nil
	}

	// Schedule.
	schedule, err := s.scheduler.Schedule(ctx, projects)
	if err != nil {
		return fail(fmt.Errorf("could not schedule exports: %w", err))
	}
	resp.Schedule = schedule
	run.Scheduled = len(schedule.Scheduled)
	run.ScheduleFailed = len(schedule.Failed)
	s.reporter.ExportsScheduled(*schedule)
	for _, f := range schedule.Failed {
		res := model.ProjectResult{
			RunID:          run.ID,
			ProjectID:      f.Project.ID,
			PathNamespaced: f.Project.PathNamespaced,
			Outcome:        model.ProjectOutcomeScheduleFailed,
			Reason:         f.Reason,
		}
		if err := s.repo.AddProjectResult(ctx, res); err != nil {
			return fail(fmt.Errorf("could not record project result: %w", err))
		}
	}

	if len(schedule.Scheduled) == 0 {
		s.logger.Warningf("No project export was scheduled")
		run = s.finishRun(ctx, run, nil)
		resp.Run = run
		return resp, nil
	}
	pending = schedule.Scheduled

	// Wait and download.
	runDir, err := export.CreateRunDir(req.OutputDir, startedAt)
	if err != nil {
		return fail(err)
	}
	run.Dir = runDir

	report, err := s.poller.Poll(ctx, export.PollRequest{
		RunDir:   runDir,
		Projects: schedule.Scheduled,
		OnArtifact: func(ctx context.Context, a model.Artifact) error {
			return s.repo.AddProjectResult(ctx, model.ProjectResult{
				RunID:          run.ID,
				ProjectID:      a.ProjectID,
				PathNamespaced: a.PathNamespaced,
				Outcome:        model.ProjectOutcomeExported,
				ArtifactPath:   a.Path,
				SizeBytes:      a.SizeBytes,
			})
		},
	})
	resp.Artifacts = report.Artifacts
	run.Exported = len(report.Artifacts)
	run.Sweeps = report.Sweeps
	if err != nil {
		pending = report.Pending
		return fail(fmt.Errorf("could not wait for exports: %w", err))
	}

	run = s.finishRun(ctx, run, nil)
	resp.Run = run
	s.logger.Infof("Exported %d projects into %s", run.Exported, runDir)

	return resp, nil
}

// finishRun records the final state of the run. The record is written even when ctx
// is cancelled, a failure to write it is only logged.
func (s *Service) finishRun(ctx context.Context, run model.Run, runErr error) model.Run {
	finishedAt := s.clock.Now().UTC()
	run.FinishedAt = &finishedAt
	run.Status = model.RunStatusSucceeded
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	}

	if err := s.repo.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Errorf("Could not record run %s final state: %s", run.ID, err)
	}

	return run
}

func (s *Service) recordPending(ctx context.Context, runID string, projects []model.Project) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range projects {
		res := model.ProjectResult{
			RunID:          runID,
			ProjectID:      p.ID,
			PathNamespaced: p.PathNamespaced,
			Outcome:        model.ProjectOutcomePending,
		}
		if err := s.repo.AddProjectResult(ctx, res); err != nil {
			s.logger.Errorf("Could not record pending project %d: %s", p.ID, err)
		}
	}
}
