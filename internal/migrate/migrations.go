package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var migrationsFS embed.FS

// step is one NNNN_name.sql file.
type step struct {
	version int
	file    string
	body    string
}

func dialectDir(driver string) (string, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return "sql/sqlite", nil
	case "pgx", "postgres":
		return "sql/postgres", nil
	}
	return "", fmt.Errorf("no migrations for driver %q", driver)
}

func steps(dir string) ([]step, error) {
	names, err := fs.Glob(migrationsFS, dir+"/*.sql")
	if err != nil {
		return nil, err
	}
	out := make([]step, 0, len(names))
	for _, name := range names {
		file := path.Base(name)
		prefix, _, ok := strings.Cut(file, "_")
		v, convErr := strconv.Atoi(prefix)
		if !ok || convErr != nil || v <= 0 {
			return nil, fmt.Errorf("migration %s: file name must start with a positive version", file)
		}
		body, err := migrationsFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		out = append(out, step{version: v, file: file, body: string(body)})
	}
	slices.SortFunc(out, func(a, b step) int { return a.version - b.version })
	for i := 1; i < len(out); i++ {
		if out[i].version == out[i-1].version {
			return nil, fmt.Errorf("migrations %s and %s share version %d", out[i-1].file, out[i].file, out[i].version)
		}
	}
	return out, nil
}

// Migrate applies the embedded migrations for the connection's driver that
// schema_migrations does not list yet, all in one transaction.
func Migrate(db *sqlx.DB) error {
	dir, err := dialectDir(db.DriverName())
	if err != nil {
		return err
	}
	pending, err := steps(dir)
	if err != nil {
		return err
	}
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, file TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	var applied []int
	if err := tx.Select(&applied, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for _, s := range pending {
		if slices.Contains(applied, s.version) {
			continue
		}
		if _, err := tx.Exec(s.body); err != nil {
			return fmt.Errorf("migration %s: %w", s.file, err)
		}
		if _, err := tx.Exec(tx.Rebind(`INSERT INTO schema_migrations(version, file) VALUES (?, ?)`), s.version, s.file); err != nil {
			return fmt.Errorf("record migration %s: %w", s.file, err)
		}
	}
	return tx.Commit()
}
