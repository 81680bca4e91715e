package export

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/glexport/internal/clock"
	"github.com/slok/glexport/internal/gitlab"
	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
)

const (
	// DefaultPollUnit is the default time unit of the completion wait.
	DefaultPollUnit = time.Second
	// DefaultPollStep is the number of units added to the wait after every sweep.
	DefaultPollStep = 3
)

// ArtifactFetcher places a finished export archive on disk.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, runDir string, p model.Project, sweep int) (*model.Artifact, error)
}

var _ ArtifactFetcher = &Fetcher{}

// PollerConfig is the configuration of the completion poller.
type PollerConfig struct {
	API     gitlab.API
	Fetcher ArtifactFetcher
	Clock   clock.Clock
	// Unit and Step make the wait after sweep k be k*Step*Unit.
	Unit time.Duration
	Step int
	// MaxSweeps stops waiting after this number of sweeps, 0 means unbounded.
	MaxSweeps int
	// MaxWait stops waiting when the accumulated wait would exceed it, 0 means unbounded.
	MaxWait  time.Duration
	Reporter Reporter
	Logger   log.Logger
}

func (c *PollerConfig) defaults() error {
	if c.API == nil {
		return fmt.Errorf("gitlab API is required")
	}
	if c.Fetcher == nil {
		return fmt.Errorf("artifact fetcher is required")
	}
	if c.Clock == nil {
		c.Clock = clock.Real
	}
	if c.Unit == 0 {
		c.Unit = DefaultPollUnit
	}
	if c.Step == 0 {
		c.Step = DefaultPollStep
	}
	if c.Unit < 0 || c.Step < 0 || c.MaxSweeps < 0 || c.MaxWait < 0 {
		return fmt.Errorf("wait settings can't be negative")
	}
	if c.Reporter == nil {
		c.Reporter = NoopReporter
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "export.Poller"})

	return nil
}

// Poller waits for the scheduled exports to finish, sweeping all the pending projects
// and downloading each archive as soon as its export is finished.
type Poller struct {
	api       gitlab.API
	fetcher   ArtifactFetcher
	clock     clock.Clock
	unit      time.Duration
	step      int
	maxSweeps int
	maxWait   time.Duration
	reporter  Reporter
	logger    log.Logger
}

// NewPoller returns a new completion poller.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Poller{
		api:       cfg.API,
		fetcher:   cfg.Fetcher,
		clock:     cfg.Clock,
		unit:      cfg.Unit,
		step:      cfg.Step,
		maxSweeps: cfg.MaxSweeps,
		maxWait:   cfg.MaxWait,
		reporter:  cfg.Reporter,
		logger:    cfg.Logger,
	}, nil
}

// PollRequest is the completion wait request.
type PollRequest struct {
	// RunDir is the directory where the archives are placed.
	RunDir   string
	Projects []model.Project
	// OnArtifact is called after every archive is placed on disk, an error stops the wait.
	OnArtifact func(ctx context.Context, a model.Artifact) error
}

// PollReport is the result of the completion wait.
type PollReport struct {
	Artifacts []model.Artifact
	Sweeps    int
	Waited    time.Duration
	// Pending are the projects that didn't finish, only set when the wait stopped with an error.
	Pending []model.Project
}

// Poll waits until all the projects are finished and downloaded. On error the returned
// report has the work done until the failure.
func (p *Poller) Poll(ctx context.Context, req PollRequest) (*PollReport, error) {
	tr := newTracker(req.Projects)
	report := &PollReport{}
	fail := func(err error) (*PollReport, error) {
		report.Pending = tr.pending()
		return report, err
	}

	for tr.pendingCount() > 0 {
		report.Sweeps++
		sweep := report.Sweeps

		for _, proj := range tr.pending() {
			st, err := p.api.ExportStatus(ctx, proj.ID)
			if err != nil {
				return fail(fmt.Errorf("could not get export status of project %d (%s): %w", proj.ID, proj.PathNamespaced, err))
			}
			if !st.Finished() {
				p.logger.Debugf("Export of project %d is %s", proj.ID, st.State)
				continue
			}

			a, err := p.fetcher.Fetch(ctx, req.RunDir, proj, sweep)
			if err != nil {
				return fail(err)
			}
			if err := tr.markFinished(proj.ID); err != nil {
				return fail(err)
			}
			report.Artifacts = append(report.Artifacts, *a)
			p.reporter.ArtifactWritten(*a, tr.finishedCount(), tr.total())

			if req.OnArtifact != nil {
				if err := req.OnArtifact(ctx, *a); err != nil {
					return fail(fmt.Errorf("artifact handler failed for project %d: %w", proj.ID, err))
				}
			}
		}

		pending := tr.pendingCount()
		if pending == 0 {
			p.reporter.SweepFinished(sweep, 0, 0)
			break
		}

		wait := time.Duration(sweep*p.step) * p.unit
		if (p.maxSweeps > 0 && sweep >= p.maxSweeps) || (p.maxWait > 0 && report.Waited+wait > p.maxWait) {
			report.Pending = tr.pending()
			ids := make([]int64, 0, len(report.Pending))
			for _, proj := range report.Pending {
				ids = append(ids, proj.ID)
			}
			return report, &model.WaitLimitError{Sweeps: sweep, Waited: report.Waited, Pending: ids}
		}

		p.reporter.SweepFinished(sweep, pending, wait)
		p.logger.Infof("%d exports pending after sweep %d, waiting %s", pending, sweep, wait)
		if err := p.clock.Sleep(ctx, wait); err != nil {
			return fail(err)
		}
		report.Waited += wait
	}

	return report, nil
}

// tracker is the state of every scheduled project in the completion wait,
// projects only go from pending to finished.
type tracker struct {
	projects []model.Project
	finished map[int64]bool
}

func newTracker(projects []model.Project) *tracker {
	return &tracker{
		projects: projects,
		finished: make(map[int64]bool, len(projects)),
	}
}

func (t *tracker) markFinished(id int64) error {
	if t.finished[id] {
		return fmt.Errorf("project %d was already finished: %w", id, model.ErrAlreadyExists)
	}
	t.finished[id] = true
	return nil
}

func (t *tracker) pending() []model.Project {
	var res []model.Project
	for _, p := range t.projects {
		if !t.finished[p.ID] {
			res = append(res, p)
		}
	}
	return res
}

func (t *tracker) pendingCount() int  { return len(t.projects) - len(t.finished) }
func (t *tracker) finishedCount() int { return len(t.finished) }
func (t *tracker) total() int         { return len(t.projects) }
