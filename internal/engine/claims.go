package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"jobledger/internal/domain"
	"jobledger/internal/events"
	"jobledger/internal/repo"
)

// Arbitration is the outcome of accepting a claim.
type Arbitration struct {
	Job      domain.JobRequest   `json:"job"`
	Accepted domain.ClaimRequest `json:"accepted"`
	Declined []string            `json:"declined_claim_ids"`
}

// SubmitClaimRequest records a contractor's bid on a Pending job. Submitting
// twice returns the existing claim unchanged, whatever its status.
func (e Engine) SubmitClaimRequest(ctx context.Context, jobID, contractorID string) (domain.ClaimRequest, error) {
	if strings.TrimSpace(contractorID) == "" {
		return domain.ClaimRequest{}, domain.Invalid("contractor_id", "is required")
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.ClaimRequest{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, jobID)
	if err != nil {
		return domain.ClaimRequest{}, err
	}
	if _, err := e.Repo.GetContractor(ctx, tx, contractorID); err != nil {
		return domain.ClaimRequest{}, notFound("contractor", contractorID, err)
	}
	existing, err := e.Repo.GetClaim(ctx, tx, jobID, contractorID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.ClaimRequest{}, err
	}
	if j.Status != domain.JobPending || j.HasContractor() {
		return domain.ClaimRequest{}, fmt.Errorf("%w: job %s is %s", domain.ErrJobUnavailable, jobID, j.Status)
	}
	c := domain.ClaimRequest{
		ID:           newID(),
		JobID:        jobID,
		ContractorID: contractorID,
		Status:       domain.ClaimPending,
		RequestedAt:  e.stamp(),
	}
	if err := e.Repo.InsertClaim(ctx, tx, c); err != nil {
		return domain.ClaimRequest{}, err
	}
	if err := e.appendEvent(ctx, tx, events.ClaimSubmitted, events.KindClaim, c.ID, contractorID, events.EventPayload{
		"job_id": jobID,
	}); err != nil {
		return domain.ClaimRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ClaimRequest{}, err
	}
	return c, nil
}

// AcceptClaim picks the winning claim. Acceptance, the decline fan-out and the
// Pending -> InProgress assignment commit together or not at all.
func (e Engine) AcceptClaim(ctx context.Context, jobID, contractorID, actingClientID string) (Arbitration, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return Arbitration{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, jobID)
	if err != nil {
		return Arbitration{}, err
	}
	if j.ClientID != actingClientID {
		return Arbitration{}, fmt.Errorf("%w: job %s belongs to another client", domain.ErrForbidden, jobID)
	}
	if j.Status != domain.JobPending || j.HasContractor() {
		return Arbitration{}, fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, jobID, j.Status)
	}
	c, err := e.pendingClaim(ctx, tx, jobID, contractorID)
	if err != nil {
		return Arbitration{}, err
	}
	if err := ensureJobTransition(j.Status, domain.JobInProgress); err != nil {
		return Arbitration{}, err
	}
	ok, err := e.Repo.SetClaimStatus(ctx, tx, c.ID, domain.ClaimAccepted)
	if err != nil {
		return Arbitration{}, err
	}
	if !ok {
		return Arbitration{}, fmt.Errorf("%w: claim %s is no longer pending", domain.ErrNotFound, c.ID)
	}
	declined, err := e.Repo.DeclinePendingClaims(ctx, tx, jobID, contractorID)
	if err != nil {
		return Arbitration{}, err
	}
	assigned, err := e.Repo.AssignContractor(ctx, tx, jobID, contractorID)
	if err != nil {
		return Arbitration{}, err
	}
	if !assigned {
		return Arbitration{}, fmt.Errorf("%w: job %s already assigned", domain.ErrInvalidTransition, jobID)
	}
	if err := e.appendEvent(ctx, tx, events.ClaimAccepted, events.KindClaim, c.ID, actingClientID, events.EventPayload{
		"job_id":        jobID,
		"contractor_id": contractorID,
		"declined":      declined,
	}); err != nil {
		return Arbitration{}, err
	}
	if err := e.appendEvent(ctx, tx, events.JobClaimed, events.KindJob, jobID, actingClientID, events.EventPayload{
		"contractor_id": contractorID,
		"via":           "arbitration",
	}); err != nil {
		return Arbitration{}, err
	}
	if err := tx.Commit(); err != nil {
		return Arbitration{}, err
	}
	e.log(ctx).Debug("claim accepted", "job_id", jobID, "contractor_id", contractorID, "declined", len(declined))

	j.Status = domain.JobInProgress
	j.ContractorID = &contractorID
	c.Status = domain.ClaimAccepted
	if declined == nil {
		declined = []string{}
	}
	return Arbitration{Job: j, Accepted: c, Declined: declined}, nil
}

// RejectClaim declines one pending claim and leaves the job alone.
func (e Engine) RejectClaim(ctx context.Context, jobID, contractorID, actingClientID string) (domain.ClaimRequest, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.ClaimRequest{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, jobID)
	if err != nil {
		return domain.ClaimRequest{}, err
	}
	if j.ClientID != actingClientID {
		return domain.ClaimRequest{}, fmt.Errorf("%w: job %s belongs to another client", domain.ErrForbidden, jobID)
	}
	c, err := e.pendingClaim(ctx, tx, jobID, contractorID)
	if err != nil {
		return domain.ClaimRequest{}, err
	}
	if _, err := e.Repo.SetClaimStatus(ctx, tx, c.ID, domain.ClaimDeclined); err != nil {
		return domain.ClaimRequest{}, err
	}
	if err := e.appendEvent(ctx, tx, events.ClaimDeclined, events.KindClaim, c.ID, actingClientID, events.EventPayload{
		"job_id":        jobID,
		"contractor_id": contractorID,
	}); err != nil {
		return domain.ClaimRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ClaimRequest{}, err
	}
	c.Status = domain.ClaimDeclined
	return c, nil
}

// ListClaims returns every claim on a job to its owning client.
func (e Engine) ListClaims(ctx context.Context, jobID, actingClientID string) ([]domain.ClaimRequest, error) {
	j, err := e.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.ClientID != actingClientID {
		return nil, fmt.Errorf("%w: job %s belongs to another client", domain.ErrForbidden, jobID)
	}
	return e.Repo.ListClaims(ctx, e.DB, jobID)
}

func (e Engine) pendingClaim(ctx context.Context, tx *sqlx.Tx, jobID, contractorID string) (domain.ClaimRequest, error) {
	c, err := e.Repo.GetClaim(ctx, tx, jobID, contractorID)
	if err != nil {
		return domain.ClaimRequest{}, notFound("claim by", contractorID, err)
	}
	if c.Status != domain.ClaimPending {
		return domain.ClaimRequest{}, fmt.Errorf("%w: no pending claim by %s on job %s", domain.ErrNotFound, contractorID, jobID)
	}
	return c, nil
}
