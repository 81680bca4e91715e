package historylist

import (
	"context"
	"fmt"

	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
	"github.com/slok/glexport/internal/storage"
)

// ServiceConfig is the configuration for the history list service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	return nil
}

// Service lists the past export runs.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new history list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history list request parameters.
type Request struct {
	// Limit is the max number of runs returned, 0 means all.
	Limit int
	// StatusFilter is an optional filter to only show runs with this status.
	StatusFilter *model.RunStatus
}

// Run lists the export runs, most recent first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Run, error) {
	runs, err := s.repo.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}

	if req.StatusFilter != nil {
		filtered := make([]model.Run, 0, len(runs))
		for _, r := range runs {
			if r.Status == *req.StatusFilter {
				filtered = append(filtered, r)
			}
		}
		runs = filtered
	}

	if req.Limit > 0 && len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	s.logger.Debugf("found %d runs", len(runs))
	return runs, nil
}
