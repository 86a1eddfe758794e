// Package app wires a workspace into a ready engine: .env, marketplace.yml,
// database and migrations.
package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"

	"jobledger/internal/config"
	"jobledger/internal/db"
	"jobledger/internal/engine"
	"jobledger/internal/migrate"
)

type Options struct {
	Workspace string
	Driver    string
	DSN       string
	Logger    *slog.Logger
}

// Env is an opened workspace. Close releases the database.
type Env struct {
	Engine engine.Engine
	Config *config.Config
	close  func() error
}

func (e *Env) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

// EnvPath returns the workspace .env file.
func EnvPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".env")
}

// LoadEnv exports the workspace .env into the process environment. Variables
// already set win. A missing file is not an error.
func LoadEnv(workspace string) error {
	err := godotenv.Load(EnvPath(workspace))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", EnvPath(workspace), err)
	}
	return nil
}

// SetEnvValue writes key=value into the .env file at path, keeping the other
// entries.
func SetEnvValue(path, key, value string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		values = map[string]string{}
	}
	values[key] = value
	return godotenv.Write(values, path)
}

// Open loads the workspace config (defaults when marketplace.yml is absent),
// opens and migrates the database and builds the engine.
func Open(opts Options) (*Env, error) {
	cfg, err := config.LoadOrDefault(opts.Workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Driver: opts.Driver, DSN: opts.DSN})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, cfg)
	if opts.Logger != nil {
		e.Log = opts.Logger
	}
	return &Env{Engine: e, Config: cfg, close: conn.Close}, nil
}
