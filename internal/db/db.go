package db

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	defaultDBName = "jobledger.db"

	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

type Config struct {
	Workspace string
	// Driver is DriverSQLite (default) or DriverPostgres.
	Driver string
	// DSN is required for DriverPostgres and ignored for SQLite, whose file
	// lives inside the workspace.
	DSN string
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".jobledger", defaultDBName)
}

// EnsureWorkspace creates workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, ".jobledger")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the ledger database for the configured driver.
func Open(cfg Config) (*sqlx.DB, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return openSQLite(cfg.Workspace)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for driver %s", DriverPostgres)
		}
		return sqlx.Open(DriverPostgres, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// openSQLite opens the workspace SQLite file with foreign keys on. SQLite
// allows a single writer, so the pool is pinned to one connection and every
// transaction queues behind the previous one instead of failing with
// SQLITE_BUSY.
func openSQLite(workspace string) (*sqlx.DB, error) {
	if _, err := EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath(workspace))
	conn, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
