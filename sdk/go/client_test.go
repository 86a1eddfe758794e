package jobledgersdk

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"jobledger/internal/config"
	"jobledger/internal/db"
	"jobledger/internal/domain"
	"jobledger/internal/engine"
	"jobledger/internal/logger"
	"jobledger/internal/migrate"
	"jobledger/internal/server"
)

const secret = "sdk-secret"

func newServer(t *testing.T) string {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatal(err)
	}
	e := engine.New(conn, config.Default())
	e.Log = logger.Discard()
	h, err := server.New(server.Config{Engine: e, Auth: server.AuthConfig{JWTSecret: secret}, Logger: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

func clientFor(t *testing.T, base, actorID string, role domain.Role) *Client {
	t.Helper()
	tok, err := server.SignToken(secret, actorID, role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return New(base, tok)
}

func TestClientJobLifecycle(t *testing.T) {
	ctx := context.Background()
	base := newServer(t)
	owner := clientFor(t, base, "c1", domain.RoleClient)
	worker := clientFor(t, base, "k1", domain.RoleContractor)
	rival := clientFor(t, base, "k2", domain.RoleContractor)

	if err := worker.RegisterContractor(ctx, "Kim One"); err != nil {
		t.Fatal(err)
	}
	if err := rival.RegisterContractor(ctx, "Kim Two"); err != nil {
		t.Fatal(err)
	}
	job, err := owner.PostJob(ctx, "Gardening")
	if err != nil {
		t.Fatal(err)
	}
	open, err := worker.OpenJobs(ctx)
	if err != nil || len(open) != 1 {
		t.Fatalf("open jobs: %v %v", open, err)
	}
	if _, err := worker.Claim(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	_, err = rival.Claim(ctx, job.ID)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 409 || apiErr.Code != "job_unavailable" {
		t.Fatalf("expected job_unavailable, got %v", err)
	}

	if _, err := owner.Approve(ctx, job.ID, "Approved"); err != nil {
		t.Fatal(err)
	}
	pay, err := owner.Pay(ctx, job.ID, 80, "PayPal")
	if err != nil {
		t.Fatal(err)
	}
	if pay.ContractorID != "k1" {
		t.Fatalf("paid %s", pay.ContractorID)
	}
	if _, err := owner.Review(ctx, job.ID, 4, "tidy"); err != nil {
		t.Fatal(err)
	}
	prof, err := owner.ContractorProfile(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if prof.Contractor.Earnings != 80 || prof.Contractor.Rating == nil || *prof.Contractor.Rating != 4 {
		t.Fatalf("unexpected profile %+v", prof.Contractor)
	}

	page, err := owner.EventsPage(ctx, 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 3 || page.NextCursor == "" {
		t.Fatalf("expected a full first page, got %d items cursor=%q", len(page.Items), page.NextCursor)
	}
}

func TestClientAcceptClaim(t *testing.T) {
	ctx := context.Background()
	base := newServer(t)
	owner := clientFor(t, base, "c1", domain.RoleClient)
	worker := clientFor(t, base, "k1", domain.RoleContractor)
	if err := worker.RegisterContractor(ctx, "Kim One"); err != nil {
		t.Fatal(err)
	}
	job, err := owner.PostJob(ctx, "Tiling")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := worker.SubmitClaim(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	res, err := owner.AcceptClaim(ctx, job.ID, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Job.Status != "InProgress" || res.Accepted.Status != "Accepted" {
		t.Fatalf("unexpected arbitration %+v", res)
	}
	got, err := worker.GetJob(ctx, job.ID)
	if err != nil || got.ContractorID == nil || *got.ContractorID != "k1" {
		t.Fatalf("job not assigned: %+v %v", got, err)
	}
}

func TestClientUnauthorized(t *testing.T) {
	base := newServer(t)
	c := New(base, "")
	_, err := c.OpenJobs(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 || apiErr.Code != "unauthorized" {
		t.Fatalf("expected 401 unauthorized, got %v", err)
	}
}
