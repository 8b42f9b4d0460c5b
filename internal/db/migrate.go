package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/phrasebook-app/apiserver/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrateUp applies all pending migrations.
func MigrateUp(cfg config.DatabaseConfig) error {
	return runMigrations(cfg, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back steps migrations.
func MigrateDown(cfg config.DatabaseConfig, steps int) error {
	if steps < 1 {
		return errors.New("steps must be positive")
	}
	return runMigrations(cfg, func(m *migrate.Migrate) error { return m.Steps(-steps) })
}

func runMigrations(cfg config.DatabaseConfig, apply func(*migrate.Migrate) error) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations failed: %w", err)
	}
	migrator, err := migrate.NewWithSourceInstance("iofs", source, DSN(cfg))
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := apply(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate failed: %w", err)
	}
	return nil
}
