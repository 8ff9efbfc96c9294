package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mfeltenmark/freelance-crm/platform/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations brings the schema up to the newest file in migrationsDir.
// An empty migrationsDir is a no-op. A database left dirty by an earlier failed
// run is reported instead of retried, since replaying a half-applied file is unsafe.
func RunMigrations(_ context.Context, cfg config.DatabaseConfig, migrationsDir string) error {
	dir := strings.TrimSpace(migrationsDir)
	if dir == "" {
		return nil
	}

	m, err := migrate.New("file://"+dir, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("migrations: open %s: %w", dir, err)
	}
	defer m.Close()

	if version, dirty, err := m.Version(); err == nil && dirty {
		return fmt.Errorf("migrations: schema is dirty at version %d, fix it by hand and force the version", version)
	} else if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrations: read version: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}
