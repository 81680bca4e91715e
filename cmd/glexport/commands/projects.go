package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/glexport/internal/app/projectlist"
)

type ProjectsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	gitlab    *gitlabFlags
	namespace string
	format    string
}

// NewProjectsCommand returns the projects command.
func NewProjectsCommand(rootCmd *RootCommand, app *kingpin.Application) *ProjectsCommand {
	c := &ProjectsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("projects", "List the projects an export would include.")
	c.gitlab = registerGitLabFlags(c.Cmd)
	c.Cmd.Flag("namespace", "Only list the projects under this namespace.").StringVar(&c.namespace)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c ProjectsCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProjectsCommand) Run(ctx context.Context) error {
	// Listing doesn't need an output directory.
	flags := c.gitlab.cfg
	flags.DryRun = true

	resolver := configResolver{envFile: c.rootCmd.EnvFile, configFile: c.gitlab.configFile}
	if c.rootCmd.interactive() {
		resolver.prompter = newTerminalPrompter(c.rootCmd.Stdin.(*os.File), c.rootCmd.Stderr)
	}
	cfg, err := resolver.resolve(ctx, flags)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	api, err := newGitLabClient(cfg, c.gitlab.noRetries, c.rootCmd)
	if err != nil {
		return err
	}

	svc, err := projectlist.NewService(projectlist.ServiceConfig{
		API:    api,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	projects, err := svc.Run(ctx, projectlist.Request{Namespace: c.namespace})
	if err != nil {
		return fmt.Errorf("could not list projects: %w", err)
	}

	if err := c.rootCmd.printer(c.format).PrintProjects(projects); err != nil {
		return fmt.Errorf("could not print projects: %w", err)
	}

	return nil
}
