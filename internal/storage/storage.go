package storage

import (
	"context"

	"github.com/slok/glexport/internal/model"
)

// Repository is the interface for the export run history persistence.
type Repository interface {
	CreateRun(ctx context.Context, r model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns the runs, most recent first.
	ListRuns(ctx context.Context) ([]model.Run, error)
	UpdateRun(ctx context.Context, r model.Run) error
	// AddProjectResult records the outcome of a project in a run, a project has
	// a single result per run.
	AddProjectResult(ctx context.Context, res model.ProjectResult) error
	ListProjectResults(ctx context.Context, runID string) ([]model.ProjectResult, error)
}

//go:generate mockery --name Repository --output storagemock --outpkg storagemock --structname MockRepository --filename repository.go
