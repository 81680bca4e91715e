package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/glexport/internal/app/projectexport"
	"github.com/slok/glexport/internal/conventions"
	"github.com/slok/glexport/internal/gitlab"
	"github.com/slok/glexport/internal/model"
	"github.com/slok/glexport/internal/printer"
)

type ExportCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	gitlab *gitlabFlags
}

// NewExportCommand returns the export command.
func NewExportCommand(rootCmd *RootCommand, app *kingpin.Application) *ExportCommand {
	c := &ExportCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("export", "Export all the projects of a GitLab instance.").Default()
	c.gitlab = registerGitLabFlags(c.Cmd)
	c.Cmd.Flag("output-dir", "Directory where the run directory with the archives is created.").Short('o').Envar(conventions.EnvOutputDir).StringVar(&c.gitlab.cfg.OutputDir)
	c.Cmd.Flag("dry-run", "Only list the projects that would be exported.").BoolVar(&c.gitlab.cfg.DryRun)
	c.Cmd.Flag("poll-unit", "Time unit of the export completion wait, the wait after sweep k is 3*k units (default 1s).").DurationVar(&c.gitlab.cfg.PollUnit)
	c.Cmd.Flag("max-sweeps", "Give up after this number of completion sweeps, 0 is unbounded.").IntVar(&c.gitlab.cfg.MaxSweeps)
	c.Cmd.Flag("max-wait", "Give up after waiting this long for the exports, 0 is unbounded.").DurationVar(&c.gitlab.cfg.MaxWait)

	return c
}

func (c ExportCommand) Name() string { return c.Cmd.FullCommand() }

func (c ExportCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	resolver := configResolver{envFile: c.rootCmd.EnvFile, configFile: c.gitlab.configFile}
	if c.rootCmd.interactive() {
		resolver.prompter = newTerminalPrompter(c.rootCmd.Stdin.(*os.File), c.rootCmd.Stderr)
	}
	cfg, err := resolver.resolve(ctx, c.gitlab.cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize storage.
	repo, closeRepo, err := c.rootCmd.repository(ctx, !cfg.DryRun)
	if err != nil {
		return err
	}
	defer closeRepo()

	// Initialize GitLab client.
	api, err := newGitLabClient(cfg, c.gitlab.noRetries, c.rootCmd)
	if err != nil {
		return err
	}

	// Create service.
	svc, err := projectexport.NewService(projectexport.ServiceConfig{
		API:          api,
		Repository:   repo,
		Reporter:     printer.NewExportReporter(c.rootCmd.Stdout),
		StatusWriter: c.rootCmd.Stderr,
		PollUnit:     cfg.PollUnit,
		MaxSweeps:    cfg.MaxSweeps,
		MaxWait:      cfg.MaxWait,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute export.
	fmt.Fprintln(c.rootCmd.Stdout, "Fetching projects to export...")
	resp, err := svc.Run(ctx, projectexport.Request{
		Instance:  cfg.Instance,
		OutputDir: cfg.OutputDir,
		DryRun:    cfg.DryRun,
	})
	if err != nil {
		if resp != nil {
			logger.Warningf("Run %s failed after exporting %d projects", resp.Run.ID, resp.Run.Exported)
		}
		return fmt.Errorf("could not export projects: %w", err)
	}

	if cfg.DryRun {
		fmt.Fprintln(c.rootCmd.Stdout, "Dry Run: Quit! Nothing was exported.")
		return nil
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Exported %d projects!\n", resp.Run.Exported)
	if resp.Run.Dir != "" {
		fmt.Fprintf(c.rootCmd.Stdout, "Archives: %s\n", resp.Run.Dir)
	}

	return nil
}

func newGitLabClient(cfg model.ExportConfig, noRetries bool, rootCmd *RootCommand) (*gitlab.Client, error) {
	api, err := gitlab.NewClient(gitlab.ClientConfig{
		BaseURL:     cfg.Instance,
		Token:       cfg.AccessToken,
		AllProjects: cfg.AllProjects,
		PerPage:     cfg.PerPage,
		Retry: gitlab.RetryConfig{
			MaxRetries:    cfg.Retries,
			BackoffFactor: cfg.BackoffFactor,
			Disabled:      noRetries,
		},
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create gitlab client: %w", err)
	}
	return api, nil
}
