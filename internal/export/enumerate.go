// Package export has the project export phases: enumeration, scheduling and the
// completion wait that downloads the archives as they finish.
package export

import (
	"context"
	"fmt"

	"github.com/slok/glexport/internal/gitlab"
	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
)

// DefaultMaxPages is the max number of pages walked before giving up.
const DefaultMaxPages = 10000

// EnumeratorConfig is the configuration of the project enumerator.
type EnumeratorConfig struct {
	API gitlab.API
	// MaxPages guards against servers that never signal the last page.
	MaxPages int
	Logger   log.Logger
}

func (c *EnumeratorConfig) defaults() error {
	if c.API == nil {
		return fmt.Errorf("gitlab API is required")
	}
	if c.MaxPages == 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "export.Enumerator"})

	return nil
}

// Enumerator discovers all the projects visible to the credential walking the
// paginated project listing.
type Enumerator struct {
	api      gitlab.API
	maxPages int
	logger   log.Logger
}

// NewEnumerator returns a new project enumerator.
func NewEnumerator(cfg EnumeratorConfig) (*Enumerator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Enumerator{
		api:      cfg.API,
		maxPages: cfg.MaxPages,
		logger:   cfg.Logger,
	}, nil
}

// Enumerate returns all the projects in server order, pages are requested one at a time.
func (e *Enumerator) Enumerate(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	for page := 1; ; page++ {
		if page > e.maxPages {
			return nil, &model.EnumerationError{Page: page, Reason: fmt.Sprintf("last page not reached after %d pages", e.maxPages)}
		}

		pp, err := e.api.ListProjects(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("could not list projects page %d: %w", page, err)
		}
		projects = append(projects, pp.Projects...)
		e.logger.Debugf("Listed page %d with %d projects", page, len(pp.Projects))

		done, err := lastPage(page, pp)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	e.logger.Infof("Enumerated %d projects", len(projects))
	return projects, nil
}

// lastPage decides if the requested page is the last one using the pagination
// headers, if the server didn't send them an empty page marks the end.
func lastPage(requested int, pp *gitlab.ProjectPage) (bool, error) {
	if pp.Page != nil && *pp.Page != requested {
		return false, &model.EnumerationError{Page: requested, Reason: fmt.Sprintf("server answered page %d", *pp.Page)}
	}

	if pp.TotalPages != nil {
		total := *pp.TotalPages
		switch {
		case total == 0:
			return true, nil
		case requested > total:
			return false, &model.EnumerationError{Page: requested, Reason: fmt.Sprintf("page is beyond the %d total pages", total)}
		default:
			return requested == total, nil
		}
	}

	if pp.NextPage != nil {
		next := *pp.NextPage
		switch {
		case next == 0:
			return true, nil
		case next != requested+1:
			return false, &model.EnumerationError{Page: requested, Reason: fmt.Sprintf("server announced page %d as next", next)}
		}
	}

	return len(pp.Projects) == 0, nil
}
