package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	ActorKey     ContextKey = "actor_id"
	RoleKey      ContextKey = "role"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// New builds a logger writing to w.
func New(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init installs the process-wide logger. Output goes to stderr so CLI
// results on stdout stay parseable.
func Init(cfg *Config) *slog.Logger {
	l := New(cfg, os.Stderr)
	slog.SetDefault(l)
	return l
}

// WithRequest stores request-scoped values for WithContext.
func WithRequest(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithActor stores the authenticated actor for WithContext.
func WithActor(ctx context.Context, actorID, role string) context.Context {
	ctx = context.WithValue(ctx, ActorKey, actorID)
	return context.WithValue(ctx, RoleKey, role)
}

// WithContext returns base (or the default logger) annotated with the
// request id and actor carried by ctx.
func WithContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	l := base
	if l == nil {
		l = slog.Default()
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		l = l.With("request_id", requestID)
	}
	if actor, ok := ctx.Value(ActorKey).(string); ok && actor != "" {
		l = l.With("actor_id", actor)
	}
	if role, ok := ctx.Value(RoleKey).(string); ok && role != "" {
		l = l.With("role", role)
	}
	return l
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
