package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
	"github.com/slok/glexport/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository, the schema is migrated on creation.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}
	version, _, err := migrator.Version(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s (schema v%d)", cfg.DBPath, version)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateRun creates a new run in the repository.
func (r *Repository) CreateRun(ctx context.Context, run model.Run) error {
	query := `
		INSERT INTO runs (
			id, instance, output_dir, dir, dry_run,
			status, error,
			enumerated, scheduled, schedule_failed, exported, sweeps,
			started_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.Instance,
		run.OutputDir,
		run.Dir,
		run.DryRun,
		run.Status,
		run.Error,
		run.Enumerated,
		run.Scheduled,
		run.ScheduleFailed,
		run.Exported,
		run.Sweeps,
		run.StartedAt.Unix(),
		unixOrNil(run.FinishedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.") {
			return fmt.Errorf("run %s: %w", run.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert run: %w", err)
	}

	r.logger.Debugf("Created run in repository: %s", run.ID)
	return nil
}

// GetRun retrieves a run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*model.Run, error) {
	query := `
		SELECT
			id, instance, output_dir, dir, dry_run,
			status, error,
			enumerated, scheduled, schedule_failed, exported, sweeps,
			started_at, finished_at
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query run: %w", err)
	}

	return &run, nil
}

// ListRuns returns all runs, most recent first.
func (r *Repository) ListRuns(ctx context.Context) ([]model.Run, error) {
	query := `
		SELECT
			id, instance, output_dir, dir, dry_run,
			status, error,
			enumerated, scheduled, schedule_failed, exported, sweeps,
			started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

// UpdateRun updates an existing run.
func (r *Repository) UpdateRun(ctx context.Context, run model.Run) error {
	query := `
		UPDATE runs
		SET
			instance = ?,
			output_dir = ?,
			dir = ?,
			dry_run = ?,
			status = ?,
			error = ?,
			enumerated = ?,
			scheduled = ?,
			schedule_failed = ?,
			exported = ?,
			sweeps = ?,
			started_at = ?,
			finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		run.Instance,
		run.OutputDir,
		run.Dir,
		run.DryRun,
		run.Status,
		run.Error,
		run.Enumerated,
		run.Scheduled,
		run.ScheduleFailed,
		run.Exported,
		run.Sweeps,
		run.StartedAt.Unix(),
		unixOrNil(run.FinishedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated run in repository: %s", run.ID)
	return nil
}

// AddProjectResult records the outcome of a project in a run.
func (r *Repository) AddProjectResult(ctx context.Context, res model.ProjectResult) error {
	query := `
		INSERT INTO project_results (
			run_id, project_id, path_namespaced,
			outcome, reason,
			artifact_path, size_bytes
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		res.RunID,
		res.ProjectID,
		res.PathNamespaced,
		res.Outcome,
		res.Reason,
		res.ArtifactPath,
		res.SizeBytes,
	)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "UNIQUE constraint failed: project_results."):
			return fmt.Errorf("result of project %d in run %s: %w", res.ProjectID, res.RunID, model.ErrAlreadyExists)
		case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
			return fmt.Errorf("run %s: %w", res.RunID, model.ErrNotFound)
		}
		return fmt.Errorf("could not insert project result: %w", err)
	}

	return nil
}

// ListProjectResults returns the project results of a run in insertion order.
func (r *Repository) ListProjectResults(ctx context.Context, runID string) ([]model.ProjectResult, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM runs WHERE id = ?)`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("could not query run: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}

	query := `
		SELECT
			run_id, project_id, path_namespaced,
			outcome, reason,
			artifact_path, size_bytes
		FROM project_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query project results: %w", err)
	}
	defer rows.Close()

	var results []model.ProjectResult
	for rows.Next() {
		var res model.ProjectResult
		err := rows.Scan(
			&res.RunID,
			&res.ProjectID,
			&res.PathNamespaced,
			&res.Outcome,
			&res.Reason,
			&res.ArtifactPath,
			&res.SizeBytes,
		)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.Run, error) {
	var run model.Run
	var startedAt int64
	var finishedAt sql.NullInt64

	err := s.Scan(
		&run.ID,
		&run.Instance,
		&run.OutputDir,
		&run.Dir,
		&run.DryRun,
		&run.Status,
		&run.Error,
		&run.Enumerated,
		&run.Scheduled,
		&run.ScheduleFailed,
		&run.Exported,
		&run.Sweeps,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return model.Run{}, err
	}

	run.StartedAt = timeFromUnix(startedAt)
	if finishedAt.Valid {
		t := timeFromUnix(finishedAt.Int64)
		run.FinishedAt = &t
	}

	return run, nil
}

func unixOrNil(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	u := t.Unix()
	return &u
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
