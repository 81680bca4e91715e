package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository, used when
// the run history is not kept.
type Repository struct {
	runs    map[string]model.Run
	results map[string][]model.ProjectResult
	mu      sync.RWMutex
	logger  log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		runs:    make(map[string]model.Run),
		results: make(map[string][]model.ProjectResult),
		logger:  cfg.Logger,
	}, nil
}

// CreateRun creates a new run in the repository.
func (r *Repository) CreateRun(ctx context.Context, run model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrAlreadyExists)
	}

	r.runs[run.ID] = copyRun(run)
	r.logger.Debugf("Created run in repository: %s", run.ID)

	return nil
}

// GetRun retrieves a run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	runCopy := copyRun(run)
	return &runCopy, nil
}

// ListRuns returns all runs, most recent first.
func (r *Repository) ListRuns(ctx context.Context) ([]model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]model.Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, copyRun(run))
	}

	// ULIDs sort by creation time.
	slices.SortFunc(runs, func(a, b model.Run) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	return runs, nil
}

// UpdateRun updates an existing run.
func (r *Repository) UpdateRun(ctx context.Context, run model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrNotFound)
	}

	r.runs[run.ID] = copyRun(run)
	r.logger.Debugf("Updated run in repository: %s", run.ID)

	return nil
}

// AddProjectResult records the outcome of a project in a run.
func (r *Repository) AddProjectResult(ctx context.Context, res model.ProjectResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[res.RunID]; !ok {
		return fmt.Errorf("run %s: %w", res.RunID, model.ErrNotFound)
	}

	for _, existing := range r.results[res.RunID] {
		if existing.ProjectID == res.ProjectID {
			return fmt.Errorf("result of project %d in run %s: %w", res.ProjectID, res.RunID, model.ErrAlreadyExists)
		}
	}

	r.results[res.RunID] = append(r.results[res.RunID], res)
	return nil
}

// ListProjectResults returns the project results of a run in insertion order.
func (r *Repository) ListProjectResults(ctx context.Context, runID string) ([]model.ProjectResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.runs[runID]; !ok {
		return nil, fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}

	return slices.Clone(r.results[runID]), nil
}

func copyRun(run model.Run) model.Run {
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		run.FinishedAt = &t
	}
	return run
}
