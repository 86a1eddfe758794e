package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"jobledger/internal/domain"
)

// Repo holds the ledger queries. Methods taking a sqlx.ExtContext run on
// either the pool or an open transaction; engine mutations always pass the
// transaction.
type Repo struct {
	DB *sqlx.DB
}

var ErrNotFound = domain.ErrNotFound

const jobColumns = `id,client_id,contractor_id,company_id,service_label,status,client_approval,posted_at,fulfilled_at`

func get(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func sel(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func (r Repo) InsertJob(ctx context.Context, q sqlx.ExtContext, j domain.JobRequest) error {
	_, err := exec(ctx, q, `INSERT INTO job_requests(`+jobColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		j.ID, j.ClientID, nullableStringPtr(j.ContractorID), nullableStringPtr(j.CompanyID), j.ServiceLabel,
		j.Status, j.ClientApproval, j.PostedAt, nullableStringPtr(j.FulfilledAt))
	if err != nil {
		return fmt.Errorf("insert job %s: %w", j.ID, err)
	}
	return nil
}

func (r Repo) GetJob(ctx context.Context, q sqlx.ExtContext, id string) (domain.JobRequest, error) {
	var j domain.JobRequest
	err := get(ctx, q, &j, `SELECT `+jobColumns+` FROM job_requests WHERE id=?`, id)
	return j, err
}

// LockJob takes the row lock on a job for the rest of the transaction so
// concurrent mutations of the same job serialize.
func (r Repo) LockJob(ctx context.Context, q sqlx.ExtContext, id string) error {
	n, err := exec(ctx, q, `UPDATE job_requests SET id=id WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("lock job %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignContractor performs the guarded Pending -> InProgress step. It
// reports false when the job was already taken or is no longer Pending.
func (r Repo) AssignContractor(ctx context.Context, q sqlx.ExtContext, jobID, contractorID string) (bool, error) {
	n, err := exec(ctx, q, `UPDATE job_requests SET contractor_id=?, status=?
WHERE id=? AND status=? AND contractor_id IS NULL`,
		contractorID, domain.JobInProgress, jobID, domain.JobPending)
	if err != nil {
		return false, fmt.Errorf("assign contractor on %s: %w", jobID, err)
	}
	return n == 1, nil
}

func (r Repo) SetJobStatus(ctx context.Context, q sqlx.ExtContext, jobID string, status domain.JobStatus, fulfilledAt *string) error {
	_, err := exec(ctx, q, `UPDATE job_requests SET status=?, fulfilled_at=COALESCE(?, fulfilled_at) WHERE id=?`,
		status, nullableStringPtr(fulfilledAt), jobID)
	if err != nil {
		return fmt.Errorf("set job %s status: %w", jobID, err)
	}
	return nil
}

func (r Repo) SetJobService(ctx context.Context, q sqlx.ExtContext, jobID, label string) error {
	_, err := exec(ctx, q, `UPDATE job_requests SET service_label=? WHERE id=?`, label, jobID)
	if err != nil {
		return fmt.Errorf("set job %s service: %w", jobID, err)
	}
	return nil
}

func (r Repo) SetClientApproval(ctx context.Context, q sqlx.ExtContext, jobID string, decision domain.Approval) error {
	_, err := exec(ctx, q, `UPDATE job_requests SET client_approval=? WHERE id=?`, decision, jobID)
	if err != nil {
		return fmt.Errorf("set approval on %s: %w", jobID, err)
	}
	return nil
}

// ListOpenJobs returns claimable jobs, oldest first.
func (r Repo) ListOpenJobs(ctx context.Context, q sqlx.ExtContext) ([]domain.JobRequest, error) {
	jobs := []domain.JobRequest{}
	err := sel(ctx, q, &jobs, `SELECT `+jobColumns+` FROM job_requests
WHERE contractor_id IS NULL AND status=? ORDER BY posted_at ASC, id ASC`, domain.JobPending)
	return jobs, err
}

func (r Repo) ListJobsByClient(ctx context.Context, q sqlx.ExtContext, clientID string) ([]domain.JobRequest, error) {
	jobs := []domain.JobRequest{}
	err := sel(ctx, q, &jobs, `SELECT `+jobColumns+` FROM job_requests WHERE client_id=? ORDER BY posted_at DESC, id ASC`, clientID)
	return jobs, err
}

func (r Repo) ListJobsByContractor(ctx context.Context, q sqlx.ExtContext, contractorID string) ([]domain.JobRequest, error) {
	jobs := []domain.JobRequest{}
	err := sel(ctx, q, &jobs, `SELECT `+jobColumns+` FROM job_requests WHERE contractor_id=? ORDER BY posted_at DESC, id ASC`, contractorID)
	return jobs, err
}
