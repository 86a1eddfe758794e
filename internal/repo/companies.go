package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"jobledger/internal/domain"
)

const companyColumns = `id,name,service_type,location,created_at`

func (r Repo) InsertCompany(ctx context.Context, q sqlx.ExtContext, c domain.Company) error {
	_, err := exec(ctx, q, `INSERT INTO companies(`+companyColumns+`) VALUES (?,?,?,?,?)`,
		c.ID, c.Name, nullableStringPtr(c.ServiceType), nullableStringPtr(c.Location), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert company %s: %w", c.ID, err)
	}
	return nil
}

func (r Repo) GetCompany(ctx context.Context, q sqlx.ExtContext, id string) (domain.Company, error) {
	var c domain.Company
	err := get(ctx, q, &c, `SELECT `+companyColumns+` FROM companies WHERE id=?`, id)
	return c, err
}

func (r Repo) ListCompanies(ctx context.Context, q sqlx.ExtContext) ([]domain.Company, error) {
	companies := []domain.Company{}
	err := sel(ctx, q, &companies, `SELECT `+companyColumns+` FROM companies ORDER BY name ASC, id ASC`)
	return companies, err
}

// CompanyReferences counts the jobs and contractors pointing at a company.
func (r Repo) CompanyReferences(ctx context.Context, q sqlx.ExtContext, id string) (jobs, contractors int, err error) {
	if err = get(ctx, q, &jobs, `SELECT COUNT(*) FROM job_requests WHERE company_id=?`, id); err != nil {
		return 0, 0, fmt.Errorf("count company %s jobs: %w", id, err)
	}
	if err = get(ctx, q, &contractors, `SELECT COUNT(*) FROM contractors WHERE company_id=?`, id); err != nil {
		return 0, 0, fmt.Errorf("count company %s contractors: %w", id, err)
	}
	return jobs, contractors, nil
}

func (r Repo) DeleteCompany(ctx context.Context, q sqlx.ExtContext, id string) error {
	n, err := exec(ctx, q, `DELETE FROM companies WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete company %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
