package historyshow

import (
	"context"
	"fmt"

	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
	"github.com/slok/glexport/internal/storage"
)

// ServiceConfig is the configuration for the history show service.
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

// Service gets the details of a past export run.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new history show service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history show request parameters.
type Request struct {
	RunID string
}

// Response is a run with the outcome of its projects.
type Response struct {
	Run     model.Run
	Results []model.ProjectResult
}

// Run gets a run and the outcome of every project of it.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.RunID == "" {
		return nil, fmt.Errorf("run id is required: %w", model.ErrNotValid)
	}

	run, err := s.repo.GetRun(ctx, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("could not get run: %w", err)
	}

	results, err := s.repo.ListProjectResults(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("could not list project results: %w", err)
	}

	return &Response{Run: *run, Results: results}, nil
}
