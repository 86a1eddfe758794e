package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobledger/internal/domain"
	"jobledger/internal/events"
	"jobledger/internal/repo"
)

type RegisterContractorOptions struct {
	ID        string `json:"id" validate:"required,max=128"`
	FullName  string `json:"full_name" validate:"required,max=200"`
	Service   string `json:"service" validate:"max=100"`
	CompanyID string `json:"company_id" validate:"max=128"`
}

// RegisterContractor creates the contractor aggregate with no rating and zero
// earnings.
func (e Engine) RegisterContractor(ctx context.Context, opts RegisterContractorOptions) (domain.Contractor, error) {
	opts.ID = strings.TrimSpace(opts.ID)
	opts.FullName = strings.TrimSpace(opts.FullName)
	opts.CompanyID = strings.TrimSpace(opts.CompanyID)
	if err := validateStruct(opts); err != nil {
		return domain.Contractor{}, err
	}
	if opts.CompanyID != "" {
		ok, err := e.Directory.CompanyExists(ctx, opts.CompanyID)
		if err != nil {
			return domain.Contractor{}, fmt.Errorf("company lookup: %w", err)
		}
		if !ok {
			return domain.Contractor{}, fmt.Errorf("%w: company %s", domain.ErrNotFound, opts.CompanyID)
		}
	}
	c := domain.Contractor{
		ID:        opts.ID,
		FullName:  opts.FullName,
		Service:   optionalString(strings.TrimSpace(opts.Service)),
		CompanyID: optionalString(opts.CompanyID),
		CreatedAt: e.stamp(),
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Contractor{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetContractor(ctx, tx, c.ID); err == nil {
		return domain.Contractor{}, domain.Invalid("id", fmt.Sprintf("contractor %s already registered", c.ID))
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Contractor{}, err
	}
	if err := e.Repo.InsertContractor(ctx, tx, c); err != nil {
		return domain.Contractor{}, err
	}
	if err := e.appendEvent(ctx, tx, events.ContractorAdded, events.KindContractor, c.ID, c.ID, events.EventPayload{
		"full_name": c.FullName,
	}); err != nil {
		return domain.Contractor{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Contractor{}, err
	}
	return c, nil
}

// GetContractorProfile returns the aggregate with its reviews, newest first.
func (e Engine) GetContractorProfile(ctx context.Context, contractorID string) (domain.ContractorProfile, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.ContractorProfile{}, err
	}
	defer tx.Rollback()
	c, err := e.Repo.GetContractor(ctx, tx, contractorID)
	if err != nil {
		return domain.ContractorProfile{}, notFound("contractor", contractorID, err)
	}
	reviews, err := e.Repo.ListReviewsByContractor(ctx, tx, contractorID)
	if err != nil {
		return domain.ContractorProfile{}, err
	}
	return domain.ContractorProfile{Contractor: c, Reviews: reviews}, nil
}

// LatestEvents exposes the audit trail, newest first.
func (e Engine) LatestEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, f)
}
