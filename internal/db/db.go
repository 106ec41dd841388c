package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// MigrationFS embeds SQL migration files from internal/db/migrations.
// The same files serve Postgres and SQLite; cmd/migrate and the store tests apply them.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqlitePragmas are applied to every SQLite connection.
const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Open opens a database for driver. For postgres dsn is a connection URL; for sqlite it is a
// file path. Caller must call Close when done.
func Open(driver, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn is required")
	}
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
	case DriverSQLite:
		db, err = sql.Open("sqlite", filepath.Clean(dsn)+sqlitePragmas)
		if err == nil {
			// SQLite allows a single writer.
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// MigrateURL returns the golang-migrate database URL for driver and dsn.
func MigrateURL(driver, dsn string) (string, error) {
	switch driver {
	case DriverPostgres:
		return dsn, nil
	case DriverSQLite:
		abs, err := filepath.Abs(dsn)
		if err != nil {
			return "", err
		}
		return "sqlite://" + filepath.ToSlash(abs), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}
