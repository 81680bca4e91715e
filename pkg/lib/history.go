package lib

import (
	"context"
	"fmt"

	"github.com/slok/glexport/internal/app/historylist"
	"github.com/slok/glexport/internal/app/historyshow"
)

// ListRuns lists the recorded export runs, most recent first. Pass nil opts for all runs.
func (c *Client) ListRuns(ctx context.Context, opts *ListRunsOpts) ([]Run, error) {
	svc, err := historylist.NewService(historylist.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	req := historylist.Request{StatusFilter: toInternalStatusFilter(opts)}
	if opts != nil {
		req.Limit = opts.Limit
	}

	runs, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalRunList(runs), nil
}

// GetRun gets a recorded run with the outcome of every project in it.
//
// Returns [ErrNotFound] if the run does not exist.
func (c *Client) GetRun(ctx context.Context, runID string) (*RunDetails, error) {
	svc, err := historyshow.NewService(historyshow.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, historyshow.Request{RunID: runID})
	if err != nil {
		return nil, mapError(err)
	}

	return &RunDetails{
		Run:     fromInternalRun(resp.Run),
		Results: fromInternalProjectResults(resp.Results),
	}, nil
}
