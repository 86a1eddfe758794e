package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"jobledger/internal/config"
	"jobledger/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultGapGrace     = 30 * time.Second
	defaultHookTimeout  = 5 * time.Second
	deliveryBatch       = 100
)

// Source is the read side of the event log the dispatcher polls.
type Source interface {
	EventsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error)
	LatestEventID(ctx context.Context) (int64, error)
}

// Dispatcher forwards new events to the configured webhooks. Each hook keeps
// its own cursor; a failed delivery stops that hook's batch and is retried on
// the next poll. Hooks start at the end of the log, so history is not replayed.
//
// PostgreSQL hands out event ids before commit, so a missing id may belong to
// a transaction still in flight. The cursor waits at such a gap for GapGrace
// before treating the id as rolled back.
type Dispatcher struct {
	src      Source
	hooks    []config.Webhook
	log      *slog.Logger
	Interval time.Duration
	GapGrace time.Duration
	Now      func() time.Time

	mu      sync.Mutex
	cursors map[int]int64
	gaps    map[int]gap
}

type gap struct {
	id    int64
	since time.Time
}

func NewDispatcher(src Source, hooks []config.Webhook, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		src:      src,
		hooks:    hooks,
		log:      log.With("component", "webhooks"),
		Interval: defaultPollInterval,
		GapGrace: defaultGapGrace,
		Now:      time.Now,
		cursors:  make(map[int]int64),
		gaps:     make(map[int]gap),
	}
}

// Run polls until ctx is cancelled. It returns immediately when no hook is
// active.
func (d *Dispatcher) Run(ctx context.Context) {
	active := 0
	for _, h := range d.hooks {
		if h.Active() {
			active++
		}
	}
	if active == 0 {
		return
	}
	d.log.Info("webhook dispatcher started", "hooks", active, "interval", d.Interval)
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce runs a single delivery pass over every active hook.
func (d *Dispatcher) DispatchOnce(ctx context.Context) {
	for i, hook := range d.hooks {
		if !hook.Active() {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		d.deliver(ctx, i, hook)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, idx int, hook config.Webhook) {
	cursor, err := d.cursor(ctx, idx)
	if err != nil {
		d.log.Warn("webhook cursor init failed", "url", hook.URL, "error", err)
		return
	}
	batch, err := d.src.EventsAfter(ctx, cursor, deliveryBatch)
	if err != nil {
		d.log.Warn("webhook fetch failed", "url", hook.URL, "error", err)
		return
	}
	want := typeSet(hook.Events)
	next := cursor + 1
	for _, evt := range batch {
		if evt.ID != next {
			if !d.gapExpired(idx, next) {
				return
			}
			d.log.Warn("webhook skipping missing event ids", "url", hook.URL, "from", next, "to", evt.ID-1)
		}
		next = evt.ID + 1
		if want != nil && !want[evt.Type] {
			d.setCursor(idx, evt.ID)
			continue
		}
		if err := post(ctx, hook, evt); err != nil {
			d.log.Warn("webhook delivery failed", "url", hook.URL, "event_id", evt.ID, "type", evt.Type, "error", err)
			return
		}
		d.log.Debug("webhook delivered", "url", hook.URL, "event_id", evt.ID, "type", evt.Type)
		d.setCursor(idx, evt.ID)
	}
}

func (d *Dispatcher) cursor(ctx context.Context, idx int) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur, nil
	}
	cur, err := d.src.LatestEventID(ctx)
	if err != nil {
		return 0, err
	}
	d.cursors[idx] = cur
	return cur, nil
}

func (d *Dispatcher) setCursor(idx int, id int64) {
	d.mu.Lock()
	d.cursors[idx] = id
	delete(d.gaps, idx)
	d.mu.Unlock()
}

// gapExpired reports whether the hook has waited GapGrace for event id.
func (d *Dispatcher) gapExpired(idx int, id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.Now()
	g, ok := d.gaps[idx]
	if !ok || g.id != id {
		d.gaps[idx] = gap{id: id, since: now}
		return d.GapGrace <= 0
	}
	return now.Sub(g.since) >= d.GapGrace
}

// typeSet returns nil when every type matches.
func typeSet(types []string) map[string]bool {
	set := map[string]bool{}
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

type delivery struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

// Sign returns the X-JobLedger-Signature value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func post(ctx context.Context, hook config.Webhook, evt domain.Event) error {
	body := delivery{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    json.RawMessage("{}"),
	}
	if evt.EntityID != nil {
		body.EntityID = *evt.EntityID
	}
	if evt.Payload != nil && json.Valid([]byte(*evt.Payload)) {
		body.Payload = json.RawMessage(*evt.Payload)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	timeout := defaultHookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-JobLedger-Event", evt.Type)
	req.Header.Set("X-JobLedger-Delivery", strconv.FormatInt(evt.ID, 10))
	if hook.Secret != "" {
		req.Header.Set("X-JobLedger-Signature", Sign(hook.Secret, data))
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
