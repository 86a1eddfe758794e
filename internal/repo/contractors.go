package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"jobledger/internal/domain"
)

const contractorColumns = `id,full_name,service,company_id,rating,earnings,created_at`

func (r Repo) InsertContractor(ctx context.Context, q sqlx.ExtContext, c domain.Contractor) error {
	_, err := exec(ctx, q, `INSERT INTO contractors(`+contractorColumns+`) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.FullName, nullableStringPtr(c.Service), nullableStringPtr(c.CompanyID), c.Rating, c.Earnings, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contractor %s: %w", c.ID, err)
	}
	return nil
}

func (r Repo) GetContractor(ctx context.Context, q sqlx.ExtContext, id string) (domain.Contractor, error) {
	var c domain.Contractor
	err := get(ctx, q, &c, `SELECT `+contractorColumns+` FROM contractors WHERE id=?`, id)
	return c, err
}

// LockContractor takes the row lock on the contractor aggregate.
func (r Repo) LockContractor(ctx context.Context, q sqlx.ExtContext, id string) error {
	n, err := exec(ctx, q, `UPDATE contractors SET id=id WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("lock contractor %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddEarnings increments earnings in place; the read never leaves the database.
func (r Repo) AddEarnings(ctx context.Context, q sqlx.ExtContext, id string, amount float64) error {
	n, err := exec(ctx, q, `UPDATE contractors SET earnings = earnings + ? WHERE id=?`, amount, id)
	if err != nil {
		return fmt.Errorf("add earnings to %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetRating(ctx context.Context, q sqlx.ExtContext, id string, rating *float64) error {
	if _, err := exec(ctx, q, `UPDATE contractors SET rating=? WHERE id=?`, rating, id); err != nil {
		return fmt.Errorf("set rating on %s: %w", id, err)
	}
	return nil
}
