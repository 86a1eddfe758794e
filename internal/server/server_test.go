package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"jobledger/internal/config"
	"jobledger/internal/db"
	"jobledger/internal/domain"
	"jobledger/internal/engine"
	"jobledger/internal/logger"
	"jobledger/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	t      *testing.T
}

func newTestServer(t *testing.T, auth AuthConfig) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Log = logger.Discard()
	if auth.JWTSecret == "" {
		auth.JWTSecret = testSecret
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String() + "/v0", client: &http.Client{}, t: t}
}

func bearer(t *testing.T, actorID string, role domain.Role) map[string]string {
	t.Helper()
	tok, err := SignToken(testSecret, actorID, role, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

// call performs a request and decodes the body into out when the status
// matches want.
func (s *testServer) call(method, path string, body any, headers map[string]string, want int, out any) []byte {
	s.t.Helper()
	res, data := doJSON(s.t, s.client, method, s.URL+path, body, headers)
	if res.StatusCode != want {
		s.t.Fatalf("%s %s: status %d, want %d: %s", method, path, res.StatusCode, want, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			s.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) expectError(method, path string, body any, headers map[string]string, status int, code string) errorEnvelope {
	s.t.Helper()
	var env errorEnvelope
	s.call(method, path, body, headers, status, &env)
	if env.Error.Code != code {
		s.t.Fatalf("%s %s: error code %q, want %q", method, path, env.Error.Code, code)
	}
	return env
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	var body map[string]string
	srv.call(http.MethodGet, "/health", nil, nil, http.StatusOK, &body)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body %v", body)
	}
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	srv.expectError(http.MethodGet, "/jobs/open", nil, nil, http.StatusUnauthorized, "unauthorized")
	srv.expectError(http.MethodGet, "/jobs/open", nil, map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, "invalid_credentials")

	other, err := SignToken("other-secret", "c1", domain.RoleClient, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	srv.expectError(http.MethodGet, "/jobs/open", nil, map[string]string{"Authorization": "Bearer " + other}, http.StatusUnauthorized, "invalid_credentials")

	legacy := map[string]string{"X-Actor-Id": "c1", "X-Actor-Role": "client"}
	srv.expectError(http.MethodGet, "/jobs/open", nil, legacy, http.StatusUnauthorized, "unauthorized")

	srv.call(http.MethodGet, "/jobs/open", nil, bearer(t, "c1", domain.RoleClient), http.StatusOK, nil)
}

func TestLegacyActorHeaders(t *testing.T) {
	srv := newTestServer(t, AuthConfig{AllowLegacyActorHeader: true})
	var j domain.JobRequest
	srv.call(http.MethodPost, "/jobs", map[string]any{"service_label": "Roofing"},
		map[string]string{"X-Actor-Id": "c1", "X-Actor-Role": "client"}, http.StatusCreated, &j)
	if j.ClientID != "c1" {
		t.Fatalf("job posted for %s", j.ClientID)
	}
	srv.expectError(http.MethodGet, "/jobs/open", nil, map[string]string{"X-Actor-Id": "c1", "X-Actor-Role": "admin"},
		http.StatusUnauthorized, "invalid_credentials")
}

func TestSignTokenRejectsUnknownRole(t *testing.T) {
	if _, err := SignToken(testSecret, "a", domain.Role("admin"), 0); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if _, err := SignToken("", "a", domain.RoleClient, 0); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestJobFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	client := bearer(t, "c1", domain.RoleClient)
	k1 := bearer(t, "k1", domain.RoleContractor)
	k2 := bearer(t, "k2", domain.RoleContractor)

	srv.call(http.MethodPost, "/contractors", map[string]any{"full_name": "Kim One", "service": "Plumbing"}, k1, http.StatusCreated, nil)
	srv.call(http.MethodPost, "/contractors", map[string]any{"full_name": "Kim Two"}, k2, http.StatusCreated, nil)

	var job domain.JobRequest
	srv.call(http.MethodPost, "/jobs", map[string]any{"service_label": "Plumbing"}, client, http.StatusCreated, &job)
	if job.Status != domain.JobPending || job.ClientID != "c1" {
		t.Fatalf("unexpected job %+v", job)
	}
	srv.expectError(http.MethodPost, "/jobs", map[string]any{"service_label": "Plumbing"}, k1, http.StatusForbidden, "forbidden")

	var open []domain.JobRequest
	srv.call(http.MethodGet, "/jobs/open", nil, k1, http.StatusOK, &open)
	if len(open) != 1 || open[0].ID != job.ID {
		t.Fatalf("open jobs %+v", open)
	}

	srv.call(http.MethodPost, "/jobs/"+job.ID+"/claims", nil, k1, http.StatusCreated, nil)
	srv.call(http.MethodPost, "/jobs/"+job.ID+"/claims", nil, k2, http.StatusCreated, nil)
	var claims []domain.ClaimRequest
	srv.call(http.MethodGet, "/jobs/"+job.ID+"/claims", nil, client, http.StatusOK, &claims)
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(claims))
	}

	var arb engine.Arbitration
	srv.call(http.MethodPost, "/jobs/"+job.ID+"/claims/k1/accept", nil, client, http.StatusOK, &arb)
	if arb.Job.Status != domain.JobInProgress || len(arb.Declined) != 1 {
		t.Fatalf("unexpected arbitration %+v", arb)
	}
	srv.expectError(http.MethodPost, "/jobs/"+job.ID+"/claim", nil, k2, http.StatusConflict, "job_unavailable")

	srv.expectError(http.MethodPost, "/jobs/"+job.ID+"/payments", map[string]any{"amount": 150, "method": "Cash"}, client,
		http.StatusConflict, "approval_required")
	srv.call(http.MethodPut, "/jobs/"+job.ID+"/approval", map[string]any{"decision": "Approved"}, client, http.StatusOK, nil)

	var tx domain.Transaction
	srv.call(http.MethodPost, "/jobs/"+job.ID+"/payments", map[string]any{"amount": 150, "method": "Cash"}, client, http.StatusCreated, &tx)
	if tx.ContractorID != "k1" || tx.Amount != 150 {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	srv.call(http.MethodGet, "/jobs/"+job.ID, nil, client, http.StatusOK, &job)
	if job.Status != domain.JobCompleted {
		t.Fatalf("payment should complete the job, got %s", job.Status)
	}

	srv.call(http.MethodPost, "/jobs/"+job.ID+"/reviews", map[string]any{"rating": 5, "comment": "great"}, client, http.StatusCreated, nil)

	var profile domain.ContractorProfile
	srv.call(http.MethodGet, "/contractors/k1", nil, client, http.StatusOK, &profile)
	if profile.Contractor.Rating == nil || *profile.Contractor.Rating != 5 {
		t.Fatalf("rating = %v", profile.Contractor.Rating)
	}
	if profile.Contractor.Earnings != 150 || len(profile.Reviews) != 1 {
		t.Fatalf("unexpected profile %+v", profile)
	}

	var mine []domain.JobRequest
	srv.call(http.MethodGet, "/contractors/k1/jobs", nil, k1, http.StatusOK, &mine)
	if len(mine) != 1 {
		t.Fatalf("contractor jobs %+v", mine)
	}
	srv.expectError(http.MethodGet, "/contractors/k1/jobs", nil, k2, http.StatusForbidden, "forbidden")
	srv.expectError(http.MethodGet, "/clients/c2/jobs", nil, client, http.StatusForbidden, "forbidden")
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	client := bearer(t, "c1", domain.RoleClient)
	k1 := bearer(t, "k1", domain.RoleContractor)
	srv.call(http.MethodPost, "/contractors", map[string]any{"full_name": "Kim One"}, k1, http.StatusCreated, nil)

	srv.expectError(http.MethodGet, "/jobs/missing", nil, client, http.StatusNotFound, "not_found")
	srv.expectError(http.MethodPost, "/jobs", map[string]any{}, client, http.StatusBadRequest, "validation_error")

	var job domain.JobRequest
	srv.call(http.MethodPost, "/jobs", map[string]any{"service_label": "Electrical"}, client, http.StatusCreated, &job)
	srv.expectError(http.MethodPost, "/jobs/"+job.ID+"/complete", nil, k1, http.StatusUnprocessableEntity, "contractor_missing")
	srv.expectError(http.MethodPost, "/jobs/"+job.ID+"/cancel", nil, bearer(t, "c2", domain.RoleClient), http.StatusForbidden, "forbidden")

	srv.call(http.MethodPost, "/jobs/"+job.ID+"/claim", nil, k1, http.StatusOK, nil)
	env := srv.expectError(http.MethodPost, "/jobs/"+job.ID+"/completion", map[string]any{"rating": 9, "amount": 10}, client,
		http.StatusBadRequest, "validation_error")
	if env.Error.Details["field"] != "rating" {
		t.Fatalf("expected field detail, got %v", env.Error.Details)
	}

	var done engine.Completion
	srv.call(http.MethodPost, "/jobs/"+job.ID+"/completion", map[string]any{"rating": 4, "amount": 10}, k1, http.StatusOK, &done)
	if done.Job.Status != domain.JobCompleted || done.Rating != 4 || done.Payment.Amount != 10 {
		t.Fatalf("unexpected completion %+v", done)
	}
	srv.expectError(http.MethodPost, "/jobs/"+job.ID+"/cancel", nil, client, http.StatusConflict, "invalid_transition")
	srv.call(http.MethodPut, "/jobs/"+job.ID+"/approval", map[string]any{"decision": "Approved"}, client, http.StatusOK, nil)
	srv.expectError(http.MethodPost, "/jobs/"+job.ID+"/payments", map[string]any{"amount": 10, "method": "Cash"}, client,
		http.StatusConflict, "invalid_transition")
}

func TestEventsPagination(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	client := bearer(t, "c1", domain.RoleClient)
	for _, label := range []string{"a", "b", "c"} {
		srv.call(http.MethodPost, "/jobs", map[string]any{"service_label": label}, client, http.StatusCreated, nil)
	}

	var page paginatedEvents
	srv.call(http.MethodGet, "/events?entity_kind=job&limit=2", nil, client, http.StatusOK, &page)
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("first page %+v", page)
	}
	if page.Items[0].Type != "job.created" || page.Items[0].Payload["service_label"] != "c" {
		t.Fatalf("expected newest first, got %+v", page.Items[0])
	}
	var rest paginatedEvents
	srv.call(http.MethodGet, "/events?entity_kind=job&limit=2&cursor="+page.NextCursor, nil, client, http.StatusOK, &rest)
	if len(rest.Items) != 1 || rest.NextCursor != "" {
		t.Fatalf("second page %+v", rest)
	}
	srv.expectError(http.MethodGet, "/events?cursor=abc", nil, client, http.StatusBadRequest, "bad_request")
}

func TestCompaniesDirectory(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	client := bearer(t, "c1", domain.RoleClient)
	var co domain.Company
	srv.call(http.MethodPost, "/companies", map[string]any{"id": "acme", "name": "Acme Plumbing"}, client, http.StatusCreated, &co)
	if co.ID != "acme" {
		t.Fatalf("company id %s", co.ID)
	}
	srv.call(http.MethodPost, "/jobs", map[string]any{"service_label": "Plumbing", "company_id": "acme"}, client, http.StatusCreated, nil)
	srv.expectError(http.MethodPost, "/jobs", map[string]any{"service_label": "Plumbing", "company_id": "nobody"}, client,
		http.StatusNotFound, "not_found")

	var list []domain.Company
	srv.call(http.MethodGet, "/companies", nil, bearer(t, "k1", domain.RoleContractor), http.StatusOK, &list)
	if len(list) != 1 || list[0].Name != "Acme Plumbing" {
		t.Fatalf("companies %+v", list)
	}

	srv.expectError(http.MethodDelete, "/companies/acme", nil, client, http.StatusConflict, "invalid_transition")
	srv.expectError(http.MethodDelete, "/companies/acme", nil, bearer(t, "k1", domain.RoleContractor), http.StatusForbidden, "forbidden")
	srv.call(http.MethodPost, "/companies", map[string]any{"id": "idle", "name": "Idle Co"}, client, http.StatusCreated, nil)
	srv.call(http.MethodDelete, "/companies/idle", nil, client, http.StatusNoContent, nil)
	srv.expectError(http.MethodDelete, "/companies/idle", nil, client, http.StatusNotFound, "not_found")
}

func TestUpdateJobOverHTTP(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	client := bearer(t, "c1", domain.RoleClient)
	k1 := bearer(t, "k1", domain.RoleContractor)
	srv.call(http.MethodPost, "/contractors", map[string]any{"full_name": "Kim One"}, k1, http.StatusCreated, nil)

	var job domain.JobRequest
	srv.call(http.MethodPost, "/jobs", map[string]any{"service_label": "Cleaning"}, client, http.StatusCreated, &job)
	var edited domain.JobRequest
	srv.call(http.MethodPatch, "/jobs/"+job.ID, map[string]any{"service_label": "Painting"}, client, http.StatusOK, &edited)
	if edited.ServiceLabel != "Painting" {
		t.Fatalf("label = %q", edited.ServiceLabel)
	}
	srv.expectError(http.MethodPatch, "/jobs/"+job.ID, map[string]any{"service_label": "Roofing"}, bearer(t, "c2", domain.RoleClient),
		http.StatusForbidden, "forbidden")
	srv.expectError(http.MethodPatch, "/jobs/"+job.ID, map[string]any{"service_label": ""}, client, http.StatusBadRequest, "validation_error")

	srv.call(http.MethodPost, "/jobs/"+job.ID+"/claim", nil, k1, http.StatusOK, nil)
	srv.expectError(http.MethodPatch, "/jobs/"+job.ID, map[string]any{"service_label": "Roofing"}, client, http.StatusConflict, "invalid_transition")
}

func TestOpenAPISpec(t *testing.T) {
	srv := newTestServer(t, AuthConfig{})
	var spec struct {
		Paths map[string]map[string]struct {
			Security []map[string][]string `json:"security"`
		} `json:"paths"`
	}
	srv.call(http.MethodGet, "/openapi.json", nil, nil, http.StatusOK, &spec)
	if _, ok := spec.Paths["/v0/jobs/{job_id}/claims/{contractor_id}/accept"]; !ok {
		t.Fatalf("accept route missing from spec")
	}
	if sec := spec.Paths["/v0/health"]["get"].Security; len(sec) != 0 {
		t.Fatalf("health must not require auth, got %v", sec)
	}
	if sec := spec.Paths["/v0/jobs"]["post"].Security; len(sec) != 1 {
		t.Fatalf("create job must require bearer auth, got %v", sec)
	}
}
