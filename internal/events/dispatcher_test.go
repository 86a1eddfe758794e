package events_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"jobledger/internal/config"
	"jobledger/internal/db"
	"jobledger/internal/domain"
	"jobledger/internal/engine"
	"jobledger/internal/events"
	"jobledger/internal/logger"
	"jobledger/internal/migrate"
)

type received struct {
	Type      string
	Delivery  string
	Signature string
	Body      []byte
}

type receiver struct {
	mu     sync.Mutex
	got    []received
	status int
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != 0 {
		w.WriteHeader(r.status)
		return
	}
	r.got = append(r.got, received{
		Type:      req.Header.Get("X-JobLedger-Event"),
		Delivery:  req.Header.Get("X-JobLedger-Delivery"),
		Signature: req.Header.Get("X-JobLedger-Signature"),
		Body:      body,
	})
}

func (r *receiver) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, g := range r.got {
		out = append(out, g.Type)
	}
	return out
}

func (r *receiver) fail(status int) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

func newEngine(t *testing.T) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Log = logger.Discard()
	return e
}

func TestDispatcherDeliversNewEvents(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	if _, err := e.CreateJob(ctx, engine.CreateJobOptions{ClientID: "c1", ServiceLabel: "Before start"}); err != nil {
		t.Fatal(err)
	}

	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()
	d := events.NewDispatcher(e.Repo, []config.Webhook{{URL: srv.URL, Secret: "s3cret"}}, logger.Discard())

	d.DispatchOnce(ctx)
	if got := rcv.types(); len(got) != 0 {
		t.Fatalf("history must not be replayed, got %v", got)
	}

	j, err := e.CreateJob(ctx, engine.CreateJobOptions{ClientID: "c1", ServiceLabel: "Plumbing"})
	if err != nil {
		t.Fatal(err)
	}
	d.DispatchOnce(ctx)
	got := rcv.types()
	if len(got) != 1 || got[0] != events.JobCreated {
		t.Fatalf("expected one job.created delivery, got %v", got)
	}

	first := rcv.got[0]
	if first.Signature != events.Sign("s3cret", first.Body) {
		t.Fatalf("bad signature %q", first.Signature)
	}
	var body struct {
		ID       int64          `json:"id"`
		EntityID string         `json:"entity_id"`
		ActorID  string         `json:"actor_id"`
		Payload  map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(first.Body, &body); err != nil {
		t.Fatal(err)
	}
	if body.EntityID != j.ID || body.ActorID != "c1" || body.Payload == nil {
		t.Fatalf("unexpected body %+v", body)
	}

	d.DispatchOnce(ctx)
	if n := len(rcv.types()); n != 1 {
		t.Fatalf("event delivered twice, got %d deliveries", n)
	}
}

func TestDispatcherFiltersAndRetries(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()
	disabled := false
	d := events.NewDispatcher(e.Repo, []config.Webhook{
		{URL: srv.URL, Events: []string{events.CompanyAdded}},
		{URL: srv.URL, Enabled: &disabled},
	}, logger.Discard())
	d.DispatchOnce(ctx)

	rcv.fail(http.StatusServiceUnavailable)
	if _, err := e.CreateJob(ctx, engine.CreateJobOptions{ClientID: "c1", ServiceLabel: "Plumbing"}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddCompany(ctx, engine.AddCompanyOptions{ActorID: "c1", Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	d.DispatchOnce(ctx)
	if got := rcv.types(); len(got) != 0 {
		t.Fatalf("failed deliveries must not be recorded, got %v", got)
	}

	rcv.fail(0)
	d.DispatchOnce(ctx)
	got := rcv.types()
	if len(got) != 1 || got[0] != events.CompanyAdded {
		t.Fatalf("expected retried company.added only, got %v", got)
	}
}

func TestRunReturnsWithoutActiveHooks(t *testing.T) {
	e := newEngine(t)
	off := false
	d := events.NewDispatcher(e.Repo, []config.Webhook{{URL: "http://unused.test", Enabled: &off}}, logger.Discard())
	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()
	<-done
}

// fakeLog is an event log whose rows become visible out of id order, the way
// PostgreSQL commits can.
type fakeLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeLog) commit(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, domain.Event{ID: id, Type: events.JobCreated, EntityKind: events.KindJob, ActorID: "c1"})
}

func (f *fakeLog) EventsAfter(_ context.Context, afterID int64, limit int) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, e := range f.events {
		if e.ID > afterID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b domain.Event) int { return int(a.ID - b.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLog) LatestEventID(context.Context) (int64, error) { return 0, nil }

func (r *receiver) deliveries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, g := range r.got {
		out = append(out, g.Delivery)
	}
	return out
}

func TestDispatcherWaitsForInFlightIDs(t *testing.T) {
	ctx := context.Background()
	src := &fakeLog{}
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := events.NewDispatcher(src, []config.Webhook{{URL: srv.URL}}, logger.Discard())
	d.GapGrace = 10 * time.Second
	d.Now = func() time.Time { return now }

	src.commit(1)
	src.commit(3)
	d.DispatchOnce(ctx)
	if got := rcv.deliveries(); len(got) != 1 || got[0] != "1" {
		t.Fatalf("expected only event 1 before the gap, got %v", got)
	}

	src.commit(2)
	now = now.Add(time.Second)
	d.DispatchOnce(ctx)
	got := rcv.deliveries()
	if len(got) != 3 || got[1] != "2" || got[2] != "3" {
		t.Fatalf("late commit must be delivered in order, got %v", got)
	}
}

func TestDispatcherSkipsExpiredGap(t *testing.T) {
	ctx := context.Background()
	src := &fakeLog{}
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := events.NewDispatcher(src, []config.Webhook{{URL: srv.URL}}, logger.Discard())
	d.GapGrace = 10 * time.Second
	d.Now = func() time.Time { return now }

	src.commit(2)
	d.DispatchOnce(ctx)
	if got := rcv.deliveries(); len(got) != 0 {
		t.Fatalf("event after a fresh gap delivered early: %v", got)
	}
	now = now.Add(5 * time.Second)
	d.DispatchOnce(ctx)
	if got := rcv.deliveries(); len(got) != 0 {
		t.Fatalf("gap released before grace: %v", got)
	}
	now = now.Add(5 * time.Second)
	d.DispatchOnce(ctx)
	if got := rcv.deliveries(); len(got) != 1 || got[0] != "2" {
		t.Fatalf("expected event 2 once the grace passed, got %v", got)
	}
}
