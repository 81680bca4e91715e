package projectlist

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/glexport/internal/export"
	"github.com/slok/glexport/internal/gitlab"
	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
)

// ServiceConfig is the configuration for the project list service.
type ServiceConfig struct {
	API      gitlab.API
	MaxPages int
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.API == nil {
		return fmt.Errorf("gitlab API is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.ProjectList"})
	return nil
}

// Service lists the projects that an export would include.
type Service struct {
	enumerator *export.Enumerator
	logger     log.Logger
}

// NewService creates a new project list service.
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

	return &Service{
		enumerator: enumerator,
		logger:     cfg.Logger,
	}, nil
}

// Request represents the project list request parameters.
type Request struct {
	// Namespace is an optional filter to only show the projects under this namespace (e.g. `acme/backend`).
	Namespace string
}

// Run enumerates all the visible projects, optionally filtered by namespace.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Project, error) {
	projects, err := s.enumerator.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not enumerate projects: %w", err)
	}

	ns := strings.Trim(req.Namespace, "/")
	if ns != "" {
		filtered := make([]model.Project, 0, len(projects))
		for _, p := range projects {
			if strings.HasPrefix(p.PathNamespaced, ns+"/") {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	}

	s.logger.Debugf("found %d projects", len(projects))
	return projects, nil
}
