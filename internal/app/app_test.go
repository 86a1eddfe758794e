package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"jobledger/internal/config"
	"jobledger/internal/engine"
	"jobledger/internal/logger"
)

func TestOpenUsesWorkspaceConfig(t *testing.T) {
	workspace := t.TempDir()
	yml := "payments:\n  max_amount: 500\n  methods: [Cash]\nratings:\n  precision: 1\n"
	if err := os.WriteFile(config.Path(workspace), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	env, err := Open(Options{Workspace: workspace, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()
	if env.Config.Payments.MaxAmount != 500 || env.Config.Ratings.Precision != 1 {
		t.Fatalf("workspace config not applied: %+v", env.Config)
	}
	j, err := env.Engine.CreateJob(context.Background(), engine.CreateJobOptions{ClientID: "c1", ServiceLabel: "Painting"})
	if err != nil {
		t.Fatalf("engine not usable after open: %v", err)
	}
	if j.ID == "" {
		t.Fatalf("expected generated job id")
	}
}

func TestOpenDefaultsWithoutConfig(t *testing.T) {
	env, err := Open(Options{Workspace: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()
	if env.Config.Payments.MaxAmount != config.Default().Payments.MaxAmount {
		t.Fatalf("expected default config, got %+v", env.Config)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Options{Workspace: t.TempDir(), Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestSetEnvValueAndLoad(t *testing.T) {
	workspace := t.TempDir()
	path := EnvPath(workspace)
	if err := SetEnvValue(path, "JL_TEST_FIRST", "one"); err != nil {
		t.Fatal(err)
	}
	if err := SetEnvValue(path, "JL_TEST_SECOND", "two"); err != nil {
		t.Fatal(err)
	}
	if err := SetEnvValue(path, "JL_TEST_FIRST", "uno"); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JL_TEST_SECOND", "preset")
	os.Unsetenv("JL_TEST_FIRST")
	t.Cleanup(func() { os.Unsetenv("JL_TEST_FIRST") })
	if err := LoadEnv(workspace); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("JL_TEST_FIRST"); got != "uno" {
		t.Fatalf("JL_TEST_FIRST = %q", got)
	}
	if got := os.Getenv("JL_TEST_SECOND"); got != "preset" {
		t.Fatalf("existing variable overridden: %q", got)
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "nowhere")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}
