package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"jobledger/internal/domain"
)

const claimColumns = `id,job_id,contractor_id,status,requested_at`

func (r Repo) InsertClaim(ctx context.Context, q sqlx.ExtContext, c domain.ClaimRequest) error {
	_, err := exec(ctx, q, `INSERT INTO claim_requests(`+claimColumns+`) VALUES (?,?,?,?,?)`,
		c.ID, c.JobID, c.ContractorID, c.Status, c.RequestedAt)
	if err != nil {
		return fmt.Errorf("insert claim %s: %w", c.ID, err)
	}
	return nil
}

// GetClaim returns the claim a contractor holds on a job, whatever its status.
func (r Repo) GetClaim(ctx context.Context, q sqlx.ExtContext, jobID, contractorID string) (domain.ClaimRequest, error) {
	var c domain.ClaimRequest
	err := get(ctx, q, &c, `SELECT `+claimColumns+` FROM claim_requests WHERE job_id=? AND contractor_id=?`, jobID, contractorID)
	return c, err
}

func (r Repo) ListClaims(ctx context.Context, q sqlx.ExtContext, jobID string) ([]domain.ClaimRequest, error) {
	claims := []domain.ClaimRequest{}
	err := sel(ctx, q, &claims, `SELECT `+claimColumns+` FROM claim_requests WHERE job_id=? ORDER BY requested_at ASC, id ASC`, jobID)
	return claims, err
}

// SetClaimStatus moves a Pending claim to status. It reports false when the
// claim was not Pending.
func (r Repo) SetClaimStatus(ctx context.Context, q sqlx.ExtContext, claimID string, status domain.ClaimStatus) (bool, error) {
	n, err := exec(ctx, q, `UPDATE claim_requests SET status=? WHERE id=? AND status=?`, status, claimID, domain.ClaimPending)
	if err != nil {
		return false, fmt.Errorf("set claim %s status: %w", claimID, err)
	}
	return n == 1, nil
}

// DeclinePendingClaims declines every Pending claim on a job except the one
// held by keepContractorID (empty declines all) and returns the declined ids.
func (r Repo) DeclinePendingClaims(ctx context.Context, q sqlx.ExtContext, jobID, keepContractorID string) ([]string, error) {
	var ids []string
	if err := sel(ctx, q, &ids, `SELECT id FROM claim_requests WHERE job_id=? AND status=? AND contractor_id<>? ORDER BY id`,
		jobID, domain.ClaimPending, keepContractorID); err != nil {
		return nil, fmt.Errorf("list pending claims on %s: %w", jobID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := exec(ctx, q, `UPDATE claim_requests SET status=? WHERE job_id=? AND status=? AND contractor_id<>?`,
		domain.ClaimDeclined, jobID, domain.ClaimPending, keepContractorID); err != nil {
		return nil, fmt.Errorf("decline claims on %s: %w", jobID, err)
	}
	return ids, nil
}
