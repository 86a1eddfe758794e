package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"jobledger/internal/config"
	"jobledger/internal/domain"
	"jobledger/internal/events"
	"jobledger/internal/logger"
	"jobledger/internal/repo"
)

// Engine is the job lifecycle core. Every public method runs as one database
// transaction; mutations lock the job row first so callers racing on the same
// job serialize.
type Engine struct {
	DB        *sqlx.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Directory CompanyDirectory
	Log       *slog.Logger
	Now       func() time.Time
}

func New(db *sqlx.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:        db,
		Repo:      r,
		Events:    events.Writer{Now: time.Now},
		Config:    cfg,
		Directory: RepoDirectory{Repo: r},
		Log:       slog.Default(),
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, e.Log)
}

func (e Engine) begin(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (e Engine) appendEvent(ctx context.Context, tx *sqlx.Tx, evtType, kind, id, actorID string, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, kind, id, actorID, payload)
}

// lockJob locks and loads a job inside tx.
func (e Engine) lockJob(ctx context.Context, tx *sqlx.Tx, jobID string) (domain.JobRequest, error) {
	if err := e.Repo.LockJob(ctx, tx, jobID); err != nil {
		return domain.JobRequest{}, notFound("job", jobID, err)
	}
	j, err := e.Repo.GetJob(ctx, tx, jobID)
	if err != nil {
		return domain.JobRequest{}, notFound("job", jobID, err)
	}
	return j, nil
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return err
}

func newID() string {
	return uuid.NewString()
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
