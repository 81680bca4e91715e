// Package migrations has the run history database schema and applies it with
// golang-migrate from the embedded SQL files.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/glexport/internal/log"
)

//go:embed sql/*.sql
var schemaFS embed.FS

const (
	schemaDir       = "sql"
	migrationsTable = "schema_migrations"
)

// Migrator applies the run history schema on a SQLite database.
type Migrator struct {
	db     *sql.DB
	logger log.Logger
}

// NewMigrator creates a new migrator instance.
func NewMigrator(db *sql.DB, logger log.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}

	return &Migrator{
		db:     db,
		logger: logger.WithValues(log.Kv{"svc": "sqlite.Migrator"}),
	}, nil
}

// Up migrates the schema to the latest version, an up to date schema is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	return m.withMigrate(ctx, func(mg *migrate.Migrate) error {
		if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("could not run migrations: %w", err)
		}
		m.logger.Debugf("Run history schema is up to date")
		return nil
	})
}

// Down drops the whole schema, the history is lost.
func (m *Migrator) Down(ctx context.Context) error {
	return m.withMigrate(ctx, func(mg *migrate.Migrate) error {
		if err := mg.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("could not revert migrations: %w", err)
		}
		m.logger.Debugf("Run history schema dropped")
		return nil
	})
}

// Version returns the current schema version, 0 when no migration was applied.
func (m *Migrator) Version(ctx context.Context) (version uint, dirty bool, err error) {
	err = m.withMigrate(ctx, func(mg *migrate.Migrate) error {
		version, dirty, err = mg.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not get schema version: %w", err)
		}
		return nil
	})
	return version, dirty, err
}

// withMigrate runs fn with a migrate instance over the embedded schema. The
// database connection is shared with the repository so it's never closed here.
func (m *Migrator) withMigrate(ctx context.Context, fn func(mg *migrate.Migrate) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	driver, err := sqlite3.WithInstance(m.db, &sqlite3.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("could not create driver: %w", err)
	}

	src, err := iofs.New(schemaFS, schemaDir)
	if err != nil {
		return fmt.Errorf("could not read embedded schema: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			m.logger.Errorf("could not close embedded schema: %s", err)
		}
	}()

	mg, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	return fn(mg)
}
