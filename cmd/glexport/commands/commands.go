package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"golang.org/x/term"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/glexport/internal/conventions"
	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/printer"
	"github.com/slok/glexport/internal/storage"
	"github.com/slok/glexport/internal/storage/memory"
	"github.com/slok/glexport/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DBPath     string
	NoHistory  bool
	EnvFile    string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("db-path", "Path to the run history SQLite database file.").Default(conventions.HistoryDBPath(homedir.HomeDir())).StringVar(&c.DBPath)
	app.Flag("no-history", "Don't persist the run history.").BoolVar(&c.NoHistory)
	app.Flag("env-file", "Dotenv file with the GitLab settings, ignored when missing.").Default(conventions.DefaultEnvFile).StringVar(&c.EnvFile)

	return c
}

// repository returns the run history repository, in memory when the history is disabled.
// Without create a missing database is not created and the history is kept in memory.
func (r *RootCommand) repository(ctx context.Context, create bool) (storage.Repository, func() error, error) {
	noDB := false
	if !create && !r.NoHistory {
		if _, err := os.Stat(r.DBPath); errors.Is(err, fs.ErrNotExist) {
			r.Logger.Debugf("Run history database %s missing, history not persisted", r.DBPath)
			noDB = true
		}
	}

	if r.NoHistory || noDB {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: r.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create repository: %w", err)
		}
		return repo, func() error { return nil }, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.DBPath,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, repo.Close, nil
}

// printer returns the printer for the output format.
func (r *RootCommand) printer(format string) printer.Printer {
	switch format {
	case formatJSON:
		return printer.NewJSONPrinter(r.Stdout)
	default:
		return printer.NewTablePrinter(r.Stdout)
	}
}

// interactive returns true when the standard input is a terminal.
func (r *RootCommand) interactive() bool {
	f, ok := r.Stdin.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
