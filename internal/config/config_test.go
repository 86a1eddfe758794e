package config

import (
	"os"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Payments.MaxAmount != 100000 || cfg.Ratings.Precision != 2 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	for _, m := range []string{"Credit Card", "Debit Card", "PayPal", "Cash", "Check"} {
		if !cfg.AllowsMethod(m) {
			t.Fatalf("default methods missing %q", m)
		}
	}
	if cfg.Payments.CompletionMethod != "Cash" {
		t.Fatalf("completion method = %q", cfg.Payments.CompletionMethod)
	}
	if cfg.AllowsMethod("Bitcoin") {
		t.Fatalf("unexpected method allowed")
	}
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("payments:\n  reject_oversized: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Payments.RejectOversized {
		t.Fatalf("override not applied")
	}
	if cfg.Payments.MaxAmount != 100000 || len(cfg.Payments.Methods) != 5 {
		t.Fatalf("defaults lost: %+v", cfg.Payments)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want string
	}{
		{"zero ceiling", "payments:\n  max_amount: 0\n", "max_amount"},
		{"no methods", "payments:\n  methods: []\n", "methods"},
		{"duplicate method", "payments:\n  methods: [Cash, Cash]\n", "twice"},
		{"completion method not listed", "payments:\n  completion_method: Barter\n", "completion_method"},
		{"methods without completion method", "payments:\n  methods: [PayPal]\n", "completion_method"},
		{"precision too high", "ratings:\n  precision: 9\n", "precision"},
		{"bad yaml", "payments: [", "invalid config yaml"},
		{"webhook without scheme", "webhooks:\n  - url: example.com/hook\n", "webhooks[0].url"},
		{"webhook negative timeout", "webhooks:\n  - url: http://example.com\n    timeout_seconds: -1\n", "timeout_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tt.yml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "jl config init") {
		t.Fatalf("missing file: %v", err)
	}
	cfg, err := LoadOrDefault(dir)
	if err != nil || cfg.Payments.MaxAmount != 100000 {
		t.Fatalf("LoadOrDefault without file: %+v %v", cfg, err)
	}
	if err := os.WriteFile(Path(dir), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("generated default does not load: %v", err)
	}
}

func TestWebhookActive(t *testing.T) {
	cfg, err := FromYAML([]byte("webhooks:\n  - url: http://a.test/h\n  - url: http://b.test/h\n    enabled: false\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Webhooks) != 2 {
		t.Fatalf("expected 2 webhooks, got %d", len(cfg.Webhooks))
	}
	if !cfg.Webhooks[0].Active() || cfg.Webhooks[1].Active() {
		t.Fatalf("unexpected active flags %+v", cfg.Webhooks)
	}
}
