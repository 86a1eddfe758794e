package engine

//go:generate mockgen -source=directory.go -destination=mocks/directory_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobledger/internal/domain"
	"jobledger/internal/events"
	"jobledger/internal/repo"
)

// CompanyDirectory answers whether a company id is known. Jobs only carry the
// id; nothing else about the company is read.
type CompanyDirectory interface {
	CompanyExists(ctx context.Context, companyID string) (bool, error)
}

// RepoDirectory serves the directory from the ledger's companies table.
type RepoDirectory struct {
	Repo repo.Repo
}

func (d RepoDirectory) CompanyExists(ctx context.Context, companyID string) (bool, error) {
	_, err := d.Repo.GetCompany(ctx, d.Repo.DB, companyID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type AddCompanyOptions struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required,max=200"`
	ServiceType string `json:"service_type" validate:"max=100"`
	Location    string `json:"location" validate:"max=200"`
	ActorID     string `json:"actor_id" validate:"required"`
}

func (e Engine) AddCompany(ctx context.Context, opts AddCompanyOptions) (domain.Company, error) {
	opts.Name = strings.TrimSpace(opts.Name)
	if err := validateStruct(opts); err != nil {
		return domain.Company{}, err
	}
	if opts.ID == "" {
		opts.ID = newID()
	}
	c := domain.Company{
		ID:          opts.ID,
		Name:        opts.Name,
		ServiceType: optionalString(strings.TrimSpace(opts.ServiceType)),
		Location:    optionalString(strings.TrimSpace(opts.Location)),
		CreatedAt:   e.stamp(),
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Company{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetCompany(ctx, tx, c.ID); err == nil {
		return domain.Company{}, domain.Invalid("id", fmt.Sprintf("company %s already exists", c.ID))
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Company{}, err
	}
	if err := e.Repo.InsertCompany(ctx, tx, c); err != nil {
		return domain.Company{}, err
	}
	if err := e.appendEvent(ctx, tx, events.CompanyAdded, events.KindCompany, c.ID, opts.ActorID, events.EventPayload{
		"name": c.Name,
	}); err != nil {
		return domain.Company{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

func (e Engine) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	return e.Repo.ListCompanies(ctx, e.DB)
}

// DeleteCompany removes a company no job or contractor refers to.
func (e Engine) DeleteCompany(ctx context.Context, companyID, actorID string) error {
	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	c, err := e.Repo.GetCompany(ctx, tx, companyID)
	if err != nil {
		return notFound("company", companyID, err)
	}
	jobs, contractors, err := e.Repo.CompanyReferences(ctx, tx, companyID)
	if err != nil {
		return err
	}
	if jobs > 0 || contractors > 0 {
		return fmt.Errorf("%w: company %s is referenced by %d jobs and %d contractors", domain.ErrInvalidTransition, companyID, jobs, contractors)
	}
	if err := e.Repo.DeleteCompany(ctx, tx, companyID); err != nil {
		return notFound("company", companyID, err)
	}
	if err := e.appendEvent(ctx, tx, events.CompanyDeleted, events.KindCompany, companyID, actorID, events.EventPayload{
		"name": c.Name,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
