package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"jobledger/internal/domain"
)

const (
	transactionColumns = `id,job_id,client_id,contractor_id,amount,method,date`
	reviewColumns      = `id,job_id,client_id,contractor_id,rating,comment,date`
)

func (r Repo) InsertTransaction(ctx context.Context, q sqlx.ExtContext, t domain.Transaction) error {
	_, err := exec(ctx, q, `INSERT INTO transactions(`+transactionColumns+`) VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.JobID, t.ClientID, t.ContractorID, t.Amount, t.Method, t.Date)
	if err != nil {
		return fmt.Errorf("insert transaction for job %s: %w", t.JobID, err)
	}
	return nil
}

func (r Repo) GetTransactionByJob(ctx context.Context, q sqlx.ExtContext, jobID string) (domain.Transaction, error) {
	var t domain.Transaction
	err := get(ctx, q, &t, `SELECT `+transactionColumns+` FROM transactions WHERE job_id=?`, jobID)
	return t, err
}

func (r Repo) InsertReview(ctx context.Context, q sqlx.ExtContext, rv domain.Review) error {
	_, err := exec(ctx, q, `INSERT INTO reviews(`+reviewColumns+`) VALUES (?,?,?,?,?,?,?)`,
		rv.ID, rv.JobID, rv.ClientID, rv.ContractorID, rv.Rating, nullableStringPtr(rv.Comment), rv.Date)
	if err != nil {
		return fmt.Errorf("insert review for job %s: %w", rv.JobID, err)
	}
	return nil
}

func (r Repo) GetReviewByJob(ctx context.Context, q sqlx.ExtContext, jobID string) (domain.Review, error) {
	var rv domain.Review
	err := get(ctx, q, &rv, `SELECT `+reviewColumns+` FROM reviews WHERE job_id=?`, jobID)
	return rv, err
}

func (r Repo) ListReviewsByContractor(ctx context.Context, q sqlx.ExtContext, contractorID string) ([]domain.Review, error) {
	reviews := []domain.Review{}
	err := sel(ctx, q, &reviews, `SELECT `+reviewColumns+` FROM reviews WHERE contractor_id=? ORDER BY date DESC, id ASC`, contractorID)
	return reviews, err
}

// ReviewStats returns the number of reviews and the sum of their ratings for
// a contractor. Integer aggregates keep the mean exact across drivers.
func (r Repo) ReviewStats(ctx context.Context, q sqlx.ExtContext, contractorID string) (count int64, sum int64, err error) {
	var row struct {
		Count int64 `db:"n"`
		Sum   int64 `db:"total"`
	}
	if err := get(ctx, q, &row, `SELECT COUNT(*) AS n, COALESCE(SUM(rating),0) AS total FROM reviews WHERE contractor_id=?`, contractorID); err != nil {
		return 0, 0, fmt.Errorf("review stats for %s: %w", contractorID, err)
	}
	return row.Count, row.Sum, nil
}
