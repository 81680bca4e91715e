package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/glexport/internal/app/historylist"
	"github.com/slok/glexport/internal/app/historyshow"
	"github.com/slok/glexport/internal/model"
)

// NewHistoryCommand returns the history parent command.
func NewHistoryCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("history", "Inspect the past export runs.")
}

type HistoryListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	limit        int
	statusFilter string
	format       string
}

// NewHistoryListCommand returns the history list command.
func NewHistoryListCommand(rootCmd *RootCommand, historyCmd *kingpin.CmdClause) *HistoryListCommand {
	c := &HistoryListCommand{rootCmd: rootCmd}

	c.Cmd = historyCmd.Command("list", "List the past export runs, most recent first.").Default()
	c.Cmd.Flag("limit", "Max number of runs listed, 0 lists all.").Short('n').IntVar(&c.limit)
	c.Cmd.Flag("status", "Filter by status (running, succeeded, failed).").StringVar(&c.statusFilter)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryListCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryListCommand) Run(ctx context.Context) error {
	// Parse status filter if provided.
	var statusFilter *model.RunStatus
	if c.statusFilter != "" {
		status := model.RunStatus(strings.ToLower(c.statusFilter))
		switch status {
		case model.RunStatusRunning, model.RunStatusSucceeded, model.RunStatusFailed:
			statusFilter = &status
		default:
			return fmt.Errorf("invalid status filter: %s (must be: running, succeeded, failed)", c.statusFilter)
		}
	}

	repo, closeRepo, err := c.rootCmd.repository(ctx, true)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := historylist.NewService(historylist.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	runs, err := svc.Run(ctx, historylist.Request{
		Limit:        c.limit,
		StatusFilter: statusFilter,
	})
	if err != nil {
		return fmt.Errorf("could not list runs: %w", err)
	}

	if err := c.rootCmd.printer(c.format).PrintRuns(runs); err != nil {
		return fmt.Errorf("could not print runs: %w", err)
	}

	return nil
}

type HistoryShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runID  string
	format string
}

// NewHistoryShowCommand returns the history show command.
func NewHistoryShowCommand(rootCmd *RootCommand, historyCmd *kingpin.CmdClause) *HistoryShowCommand {
	c := &HistoryShowCommand{rootCmd: rootCmd}

	c.Cmd = historyCmd.Command("show", "Show an export run with the outcome of its projects.")
	c.Cmd.Arg("run-id", "ID of the run.").Required().StringVar(&c.runID)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryShowCommand) Run(ctx context.Context) error {
	repo, closeRepo, err := c.rootCmd.repository(ctx, true)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := historyshow.NewService(historyshow.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, historyshow.Request{RunID: c.runID})
	if err != nil {
		return fmt.Errorf("could not get run: %w", err)
	}

	if err := c.rootCmd.printer(c.format).PrintRun(resp.Run, resp.Results); err != nil {
		return fmt.Errorf("could not print run: %w", err)
	}

	return nil
}
