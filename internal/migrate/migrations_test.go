package migrate

import (
	"testing"

	"jobledger/internal/db"
)

func TestStepsAreOrderedPerDialect(t *testing.T) {
	for _, driver := range []string{db.DriverSQLite, db.DriverPostgres} {
		dir, err := dialectDir(driver)
		if err != nil {
			t.Fatal(err)
		}
		got, err := steps(dir)
		if err != nil {
			t.Fatalf("%s: %v", driver, err)
		}
		if len(got) == 0 || got[0].version != 1 {
			t.Fatalf("%s: expected migrations starting at 1, got %+v", driver, got)
		}
	}
	if _, err := dialectDir("mysql"); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	for i := 0; i < 2; i++ {
		if err := Migrate(conn); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
	var n int
	if err := conn.Get(&n, `SELECT COUNT(*) FROM schema_migrations`); err != nil {
		t.Fatal(err)
	}
	want, _ := steps("sql/sqlite")
	if n != len(want) {
		t.Fatalf("recorded %d migrations, want %d", n, len(want))
	}
	if err := conn.Get(&n, `SELECT COUNT(*) FROM job_requests`); err != nil {
		t.Fatalf("schema not applied: %v", err)
	}
}
