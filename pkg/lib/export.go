package lib

import (
	"context"
	"fmt"

	"github.com/slok/glexport/internal/app/projectexport"
	"github.com/slok/glexport/internal/app/projectlist"
	"github.com/slok/glexport/internal/export"
	"github.com/slok/glexport/internal/printer"
)

// Export exports all the projects visible to the access token: the exports
// are scheduled, waited for and the archives downloaded under a new run
// directory in [ExportOpts].OutputDir.
//
// The run is recorded in the history. When the run fails after being recorded,
// the returned result is not nil and holds the partial outcome.
//
// Returns [ErrNotValid] on invalid options and a [*WaitLimitError] when the
// completion wait limits are reached.
func (c *Client) Export(ctx context.Context, opts ExportOpts) (*ExportResult, error) {
	cfg := toInternalExportConfig(opts.GitLab, opts.OutputDir, opts.DryRun)
	cfg.PollUnit = opts.PollUnit
	cfg.MaxSweeps = opts.MaxSweeps
	cfg.MaxWait = opts.MaxWait
	if err := cfg.Validate(); err != nil {
		return nil, mapError(err)
	}

	api, err := c.newGitLabClient(opts.GitLab)
	if err != nil {
		return nil, err
	}

	var reporter export.Reporter
	if opts.Output != nil {
		reporter = printer.NewExportReporter(opts.Output)
	}

	svc, err := projectexport.NewService(projectexport.ServiceConfig{
		API:          api,
		Repository:   c.repo,
		Reporter:     reporter,
		StatusWriter: opts.Output,
		PollUnit:     cfg.PollUnit,
		MaxSweeps:    cfg.MaxSweeps,
		MaxWait:      cfg.MaxWait,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, projectexport.Request{
		Instance:  cfg.Instance,
		OutputDir: cfg.OutputDir,
		DryRun:    cfg.DryRun,
	})
	if resp == nil {
		return nil, mapError(err)
	}

	result := &ExportResult{
		Run:       fromInternalRun(resp.Run),
		Projects:  fromInternalProjectList(resp.Projects),
		Artifacts: fromInternalArtifacts(resp.Artifacts),
	}
	if resp.Schedule != nil {
		result.ScheduleFailed = fromInternalScheduleFailures(resp.Schedule.Failed)
	}

	return result, mapError(err)
}

// ListProjects lists the projects that an export with the same GitLab
// configuration would export. Nothing is recorded in the history.
func (c *Client) ListProjects(ctx context.Context, opts ListProjectsOpts) ([]Project, error) {
	cfg := toInternalExportConfig(opts.GitLab, "", true)
	if err := cfg.Validate(); err != nil {
		return nil, mapError(err)
	}

	api, err := c.newGitLabClient(opts.GitLab)
	if err != nil {
		return nil, err
	}

	svc, err := projectlist.NewService(projectlist.ServiceConfig{
		API:    api,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	projects, err := svc.Run(ctx, projectlist.Request{Namespace: opts.Namespace})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalProjectList(projects), nil
}
