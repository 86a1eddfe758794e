package jobledgersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal job ledger HTTP API client. One client acts as one
// principal: set BearerToken to a token issued for a client or contractor.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Job represents the API job request model.
type Job struct {
	ID             string  `json:"id"`
	ClientID       string  `json:"client_id"`
	ContractorID   *string `json:"contractor_id,omitempty"`
	CompanyID      *string `json:"company_id,omitempty"`
	ServiceLabel   string  `json:"service_label"`
	Status         string  `json:"status"`
	ClientApproval string  `json:"client_approval"`
	PostedAt       string  `json:"posted_at"`
	FulfilledAt    *string `json:"fulfilled_at,omitempty"`
}

type Claim struct {
	ID           string `json:"id"`
	JobID        string `json:"job_id"`
	ContractorID string `json:"contractor_id"`
	Status       string `json:"status"`
	RequestedAt  string `json:"requested_at"`
}

// Arbitration is the outcome of accepting a claim.
type Arbitration struct {
	Job      Job      `json:"job"`
	Accepted Claim    `json:"accepted"`
	Declined []string `json:"declined_claim_ids"`
}

type Payment struct {
	ID           string  `json:"id"`
	JobID        string  `json:"job_id"`
	ContractorID string  `json:"contractor_id"`
	Amount       float64 `json:"amount"`
	Method       string  `json:"method"`
	Date         string  `json:"date"`
}

type Review struct {
	ID           string  `json:"id"`
	JobID        string  `json:"job_id"`
	ContractorID string  `json:"contractor_id"`
	Rating       int     `json:"rating"`
	Comment      *string `json:"comment,omitempty"`
	Date         string  `json:"date"`
}

// Profile is a contractor with its aggregate rating and earnings.
type Profile struct {
	Contractor struct {
		ID       string   `json:"id"`
		FullName string   `json:"full_name"`
		Rating   *float64 `json:"rating,omitempty"`
		Earnings float64  `json:"earnings"`
	} `json:"contractor"`
	Reviews []Review `json:"reviews"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code carries the envelope's error code
// when the body had one.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

// PostJob posts a job request as the token's client.
func (c *Client) PostJob(ctx context.Context, serviceLabel string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodPost, "jobs", map[string]any{"service_label": serviceLabel}, &resp)
	return resp, err
}

func (c *Client) GetJob(ctx context.Context, jobID string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodGet, jobPath(jobID, ""), nil, &resp)
	return resp, err
}

// OpenJobs lists unclaimed jobs, oldest first.
func (c *Client) OpenJobs(ctx context.Context) ([]Job, error) {
	var resp []Job
	err := c.do(ctx, http.MethodGet, "jobs/open", nil, &resp)
	return resp, err
}

// Claim claims a job directly. A lost race returns an APIError with code
// job_unavailable.
func (c *Client) Claim(ctx context.Context, jobID string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodPost, jobPath(jobID, "claim"), nil, &resp)
	return resp, err
}

func (c *Client) SubmitClaim(ctx context.Context, jobID string) (Claim, error) {
	var resp Claim
	err := c.do(ctx, http.MethodPost, jobPath(jobID, "claims"), nil, &resp)
	return resp, err
}

func (c *Client) AcceptClaim(ctx context.Context, jobID, contractorID string) (Arbitration, error) {
	var resp Arbitration
	err := c.do(ctx, http.MethodPost, jobPath(jobID, "claims/"+url.PathEscape(contractorID)+"/accept"), nil, &resp)
	return resp, err
}

// Approve records the client's decision, Approved or Denied.
func (c *Client) Approve(ctx context.Context, jobID, decision string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodPut, jobPath(jobID, "approval"), map[string]any{"decision": decision}, &resp)
	return resp, err
}

func (c *Client) Pay(ctx context.Context, jobID string, amount float64, method string) (Payment, error) {
	var resp Payment
	err := c.do(ctx, http.MethodPost, jobPath(jobID, "payments"), map[string]any{"amount": amount, "method": method}, &resp)
	return resp, err
}

func (c *Client) Review(ctx context.Context, jobID string, rating int, comment string) (Review, error) {
	body := map[string]any{"rating": rating}
	if comment != "" {
		body["comment"] = comment
	}
	var resp Review
	err := c.do(ctx, http.MethodPost, jobPath(jobID, "reviews"), body, &resp)
	return resp, err
}

// RegisterContractor registers the token's contractor.
func (c *Client) RegisterContractor(ctx context.Context, fullName string) error {
	return c.do(ctx, http.MethodPost, "contractors", map[string]any{"full_name": fullName}, nil)
}

func (c *Client) ContractorProfile(ctx context.Context, contractorID string) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodGet, "contractors/"+url.PathEscape(contractorID), nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func jobPath(jobID, rest string) string {
	p := "jobs/" + url.PathEscape(jobID)
	if rest != "" {
		p += "/" + rest
	}
	return p
}

// base accepts either the server root or the /v0 base path.
func (c *Client) base() string {
	b := strings.TrimRight(c.BaseURL, "/")
	if !strings.HasSuffix(b, "/v0") {
		b += "/v0"
	}
	return b
}
