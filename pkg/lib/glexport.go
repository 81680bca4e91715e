package lib

import (
	"context"
	"fmt"
	"os"

	"github.com/slok/glexport/internal/conventions"
	"github.com/slok/glexport/internal/gitlab"
	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/storage"
	"github.com/slok/glexport/internal/storage/memory"
	"github.com/slok/glexport/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. At minimum, an empty
// Config{} will record the run history in ~/.glexport/glexport.db.
type Config struct {
	// DBPath is the SQLite run history database path.
	// Default: ~/.glexport/glexport.db.
	DBPath string

	// NoHistory keeps the run history in memory, nothing is written to disk
	// apart from the exported archives.
	NoHistory bool

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DBPath == "" && !c.NoHistory {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DBPath = conventions.HistoryDBPath(home)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for exporting GitLab projects programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	repo    storage.Repository
	logger  log.Logger
	closeFn func() error
}

// New creates a new SDK client backed by the run history database.
//
// The caller must call [Client.Close] when done to release the database
// connection. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.NoHistory {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		return &Client{repo: repo, logger: cfg.Logger}, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	return &Client{
		repo:    repo,
		logger:  cfg.Logger,
		closeFn: repo.Close,
	}, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// newGitLabClient creates the GitLab API client for a single operation.
func (c *Client) newGitLabClient(cfg GitLabConfig) (*gitlab.Client, error) {
	api, err := gitlab.NewClient(gitlab.ClientConfig{
		BaseURL:     cfg.Instance,
		Token:       cfg.AccessToken,
		AllProjects: cfg.AllProjects,
		PerPage:     cfg.PerPage,
		Retry: gitlab.RetryConfig{
			MaxRetries:    cfg.Retries,
			BackoffFactor: cfg.BackoffFactor,
			Disabled:      cfg.NoRetries,
		},
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            c.logger,
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create gitlab client: %w", err))
	}
	return api, nil
}
