// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"academia-identity/backend/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

var supportedSchemes = []string{"postgres://", "postgresql://", "sqlite://"}

// Run applies migrations in the given direction using the provided database URL.
// url is a postgres:// URL or a sqlite:// file URL (see db.MigrateURL).
// direction must be "up" or "down". Returns nil on success, including when there is nothing to do.
func Run(url string, direction string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("DATABASE_URL is not set; set DATABASE_URL or SQLITE_PATH")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	if !hasSupportedScheme(url) {
		return fmt.Errorf("unsupported migration url %q", url)
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, url)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	}
	return nil
}

func hasSupportedScheme(url string) bool {
	for _, s := range supportedSchemes {
		if strings.HasPrefix(url, s) {
			return true
		}
	}
	return false
}
