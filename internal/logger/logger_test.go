package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		debugOut bool
		warnOut  bool
	}{
		{"debug text", &Config{Level: "debug", Format: "text"}, true, true},
		{"info json", &Config{Level: "info", Format: "json"}, false, true},
		{"error text", &Config{Level: "error", Format: "text"}, false, false},
		{"unknown falls back to info", &Config{Level: "loud"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(tt.config, &buf)
			l.Debug("debug line")
			if got := strings.Contains(buf.String(), "debug line"); got != tt.debugOut {
				t.Fatalf("debug emitted=%v, want %v", got, tt.debugOut)
			}
			l.Warn("warn line")
			if got := strings.Contains(buf.String(), "warn line"); got != tt.warnOut {
				t.Fatalf("warn emitted=%v, want %v", got, tt.warnOut)
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&Config{Level: "info", Format: "json"}, &buf).Info("hello", "k", "v")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Fatalf("expected json line, got %q", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: "info", Format: "text"}, &buf)
	ctx := WithRequest(context.Background(), "req-1")
	ctx = WithActor(ctx, "client-1", "client")

	WithContext(ctx, base).Info("scoped")
	out := buf.String()
	for _, want := range []string{"request_id=req-1", "actor_id=client-1", "role=client"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestWithContextEmpty(t *testing.T) {
	if WithContext(context.Background(), nil) == nil {
		t.Fatal("expected default logger")
	}
}
