package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Migrator applies SQL migrations from a directory against the pool's
// database. It borrows a database/sql handle from the pgx pool for the
// duration of its life; Close returns it.
type Migrator struct {
	m      *migrate.Migrate
	handle *sql.DB
	logger zerolog.Logger
}

func NewMigrator(db *DB, dir string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil || db.pool == nil {
		return nil, errors.New("migrator needs an open database")
	}
	if dir == "" {
		return nil, errors.New("migrations directory not set")
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("migrations directory: %w", err)
	}

	handle := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(handle, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	return &Migrator{m: m, handle: handle, logger: logger}, nil
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	mg.logger.Info().Msg("applying pending migrations")
	return mg.finish(mg.m.Up(), "apply migrations")
}

// Down rolls the schema all the way back.
func (mg *Migrator) Down() error {
	mg.logger.Warn().Msg("rolling back all migrations")
	return mg.finish(mg.m.Down(), "roll back migrations")
}

// Steps applies n migrations; negative n rolls back.
func (mg *Migrator) Steps(n int) error {
	mg.logger.Info().Int("steps", n).Msg("applying migration steps")
	err := mg.m.Steps(n)
	if errors.Is(err, os.ErrNotExist) {
		// Stepping past the newest (or oldest) migration.
		mg.logger.Info().Msg("no further migrations in that direction")
		return nil
	}
	return mg.finish(err, "apply migration steps")
}

func (mg *Migrator) finish(err error, op string) error {
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.Info().Msg("schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	mg.logger.Info().Msg("migrations done")
	return nil
}

// Version reports the current schema version and whether it is dirty.
func (mg *Migrator) Version() (uint, bool, error) {
	return mg.m.Version()
}

// Force overwrites the recorded version without running anything.
// Recovery tool for a dirty schema, nothing else.
func (mg *Migrator) Force(version int) error {
	mg.logger.Warn().Int("version", version).Msg("forcing schema version")
	return mg.m.Force(version)
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if mg.handle != nil {
		if err := mg.handle.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	if srcErr != nil {
		return fmt.Errorf("close migration source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database handle: %w", dbErr)
	}
	return nil
}
