package postgres

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // register postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // register file source driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// RunMigrations runs all pending database migrations from the given source
// URL (e.g. "file://./migrations"). If there are no new migrations to apply
// the function returns nil.
func RunMigrations(dsn string, sourceURL string) error {
	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return fmt.Errorf("postgres: create migrator: %w", err)
	}
	return up(m)
}

// RunMigrationsFS applies migrations embedded in fsys under dir.
func RunMigrationsFS(dsn string, fsys fs.FS, dir string) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("postgres: open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("postgres: create migrator: %w", err)
	}
	return up(m)
}

// RunMigrationsDown rolls back all database migrations.
// If there are no migrations to roll back the function returns nil.
func RunMigrationsDown(dsn string, sourceURL string) error {
	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return fmt.Errorf("postgres: create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: run migrations down: %w", err)
	}

	return nil
}

func up(m *migrate.Migrate) error {
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: run migrations up: %w", err)
	}
	return nil
}
