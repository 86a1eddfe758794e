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

// CreateJobOptions are parameters for posting a job.
type CreateJobOptions struct {
	// ID is optional; a UUID is generated when empty.
	ID           string `json:"id"`
	ClientID     string `json:"client_id" validate:"required,max=128"`
	ServiceLabel string `json:"service_label" validate:"required,max=200"`
	CompanyID    string `json:"company_id" validate:"max=128"`
}

func (e Engine) CreateJob(ctx context.Context, opts CreateJobOptions) (domain.JobRequest, error) {
	opts.ClientID = strings.TrimSpace(opts.ClientID)
	opts.ServiceLabel = strings.TrimSpace(opts.ServiceLabel)
	opts.CompanyID = strings.TrimSpace(opts.CompanyID)
	if err := validateStruct(opts); err != nil {
		return domain.JobRequest{}, err
	}
	// The directory is consulted before the transaction opens: it may share
	// the single SQLite connection.
	if opts.CompanyID != "" {
		ok, err := e.Directory.CompanyExists(ctx, opts.CompanyID)
		if err != nil {
			return domain.JobRequest{}, fmt.Errorf("company lookup: %w", err)
		}
		if !ok {
			return domain.JobRequest{}, fmt.Errorf("%w: company %s", domain.ErrNotFound, opts.CompanyID)
		}
	}
	if opts.ID == "" {
		opts.ID = newID()
	}
	j := domain.JobRequest{
		ID:             opts.ID,
		ClientID:       opts.ClientID,
		CompanyID:      optionalString(opts.CompanyID),
		ServiceLabel:   opts.ServiceLabel,
		Status:         domain.JobPending,
		ClientApproval: domain.ApprovalPending,
		PostedAt:       e.stamp(),
	}

	tx, err := e.begin(ctx)
	if err != nil {
		return domain.JobRequest{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertJob(ctx, tx, j); err != nil {
		return domain.JobRequest{}, err
	}
	if err := e.appendEvent(ctx, tx, events.JobCreated, events.KindJob, j.ID, j.ClientID, events.EventPayload{
		"service_label": j.ServiceLabel,
		"company_id":    opts.CompanyID,
	}); err != nil {
		return domain.JobRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobRequest{}, err
	}
	e.log(ctx).Debug("job created", "job_id", j.ID, "client_id", j.ClientID)
	return j, nil
}

func (e Engine) GetJob(ctx context.Context, jobID string) (domain.JobRequest, error) {
	j, err := e.Repo.GetJob(ctx, e.DB, jobID)
	if err != nil {
		return domain.JobRequest{}, notFound("job", jobID, err)
	}
	return j, nil
}

// ListOpenJobs returns Pending jobs nobody has claimed, oldest first.
func (e Engine) ListOpenJobs(ctx context.Context) ([]domain.JobRequest, error) {
	return e.Repo.ListOpenJobs(ctx, e.DB)
}

func (e Engine) ListJobsForClient(ctx context.Context, clientID string) ([]domain.JobRequest, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, domain.Invalid("client_id", "is required")
	}
	return e.Repo.ListJobsByClient(ctx, e.DB, clientID)
}

func (e Engine) ListJobsForContractor(ctx context.Context, contractorID string) ([]domain.JobRequest, error) {
	if strings.TrimSpace(contractorID) == "" {
		return nil, domain.Invalid("contractor_id", "is required")
	}
	return e.Repo.ListJobsByContractor(ctx, e.DB, contractorID)
}

// CancelJob moves a non-terminal job to Cancelled. The contractor assignment
// is kept; pending claims are declined with it.
func (e Engine) CancelJob(ctx context.Context, jobID, actingClientID string) (domain.JobRequest, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.JobRequest{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, jobID)
	if err != nil {
		return domain.JobRequest{}, err
	}
	if j.ClientID != actingClientID {
		return domain.JobRequest{}, fmt.Errorf("%w: job %s belongs to another client", domain.ErrForbidden, jobID)
	}
	if err := ensureJobTransition(j.Status, domain.JobCancelled); err != nil {
		return domain.JobRequest{}, err
	}
	if err := e.Repo.SetJobStatus(ctx, tx, jobID, domain.JobCancelled, nil); err != nil {
		return domain.JobRequest{}, err
	}
	declined, err := e.Repo.DeclinePendingClaims(ctx, tx, jobID, "")
	if err != nil {
		return domain.JobRequest{}, err
	}
	if err := e.appendEvent(ctx, tx, events.JobCancelled, events.KindJob, jobID, actingClientID, events.EventPayload{
		"from":            string(j.Status),
		"declined_claims": len(declined),
	}); err != nil {
		return domain.JobRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobRequest{}, err
	}
	e.log(ctx).Debug("job cancelled", "job_id", jobID, "from", j.Status)
	j.Status = domain.JobCancelled
	return j, nil
}

// UpdateJobService relabels a job while it is still Pending.
func (e Engine) UpdateJobService(ctx context.Context, jobID, label, actingClientID string) (domain.JobRequest, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return domain.JobRequest{}, domain.Invalid("service_label", "is required")
	}
	if len(label) > 200 {
		return domain.JobRequest{}, domain.Invalid("service_label", "must be at most 200 characters")
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.JobRequest{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, jobID)
	if err != nil {
		return domain.JobRequest{}, err
	}
	if j.ClientID != actingClientID {
		return domain.JobRequest{}, fmt.Errorf("%w: job %s belongs to another client", domain.ErrForbidden, jobID)
	}
	if j.Status != domain.JobPending {
		return domain.JobRequest{}, fmt.Errorf("%w: cannot edit a %s job", domain.ErrInvalidTransition, j.Status)
	}
	if err := e.Repo.SetJobService(ctx, tx, jobID, label); err != nil {
		return domain.JobRequest{}, err
	}
	if err := e.appendEvent(ctx, tx, events.JobUpdated, events.KindJob, jobID, actingClientID, events.EventPayload{
		"from": j.ServiceLabel,
		"to":   label,
	}); err != nil {
		return domain.JobRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobRequest{}, err
	}
	j.ServiceLabel = label
	return j, nil
}

// DirectClaim assigns the job to the first contractor who claims it. Losers of
// a race observe ErrJobUnavailable.
func (e Engine) DirectClaim(ctx context.Context, jobID, contractorID string) (domain.JobRequest, error) {
	if strings.TrimSpace(contractorID) == "" {
		return domain.JobRequest{}, domain.Invalid("contractor_id", "is required")
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.JobRequest{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, jobID)
	if err != nil {
		return domain.JobRequest{}, err
	}
	if _, err := e.Repo.GetContractor(ctx, tx, contractorID); err != nil {
		return domain.JobRequest{}, notFound("contractor", contractorID, err)
	}
	if j.Status != domain.JobPending || j.HasContractor() {
		return domain.JobRequest{}, fmt.Errorf("%w: job %s is %s", domain.ErrJobUnavailable, jobID, j.Status)
	}
	if err := ensureJobTransition(j.Status, domain.JobInProgress); err != nil {
		return domain.JobRequest{}, err
	}
	ok, err := e.Repo.AssignContractor(ctx, tx, jobID, contractorID)
	if err != nil {
		return domain.JobRequest{}, err
	}
	if !ok {
		return domain.JobRequest{}, fmt.Errorf("%w: job %s already assigned", domain.ErrJobUnavailable, jobID)
	}
	accepted, declined, err := e.settleClaims(ctx, tx, jobID, contractorID)
	if err != nil {
		return domain.JobRequest{}, err
	}
	if err := e.appendEvent(ctx, tx, events.JobClaimed, events.KindJob, jobID, contractorID, events.EventPayload{
		"contractor_id":   contractorID,
		"via":             "direct",
		"claim_accepted":  accepted,
		"declined_claims": len(declined),
	}); err != nil {
		return domain.JobRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobRequest{}, err
	}
	e.log(ctx).Debug("job claimed", "job_id", jobID, "contractor_id", contractorID)
	j.Status = domain.JobInProgress
	j.ContractorID = &contractorID
	return j, nil
}

// settleClaims accepts the winner's own pending claim, if any, and declines
// every other pending claim on the job.
func (e Engine) settleClaims(ctx context.Context, tx *sqlx.Tx, jobID, winnerID string) (bool, []string, error) {
	accepted := false
	c, err := e.Repo.GetClaim(ctx, tx, jobID, winnerID)
	switch {
	case err == nil && c.Status == domain.ClaimPending:
		if accepted, err = e.Repo.SetClaimStatus(ctx, tx, c.ID, domain.ClaimAccepted); err != nil {
			return false, nil, err
		}
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return false, nil, err
	}
	declined, err := e.Repo.DeclinePendingClaims(ctx, tx, jobID, winnerID)
	if err != nil {
		return false, nil, err
	}
	return accepted, declined, nil
}
