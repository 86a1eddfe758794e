package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"jobledger/internal/domain"
	"jobledger/internal/engine"
	"jobledger/internal/repo"
)

func registerContractors(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-contractor",
		Method:        http.MethodPost,
		Path:          "/contractors",
		Summary:       "Register the calling contractor",
		Tags:          []string{"contractors"},
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body RegisterContractorRequest
	}) (*output[domain.Contractor], error) {
		p, authErr := requireRole(ctx, domain.RoleContractor)
		if authErr != nil {
			return nil, authErr
		}
		c, err := h.e.RegisterContractor(ctx, engine.RegisterContractorOptions{
			ID:        p.ActorID,
			FullName:  input.Body.FullName,
			Service:   input.Body.Service,
			CompanyID: input.Body.CompanyID,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.Contractor]{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-contractor",
		Method:      http.MethodGet,
		Path:        "/contractors/{contractor_id}",
		Summary:     "Contractor profile with rating, earnings and reviews",
		Tags:        []string{"contractors"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ContractorID string `path:"contractor_id"`
	}) (*output[domain.ContractorProfile], error) {
		if _, authErr := requireRole(ctx); authErr != nil {
			return nil, authErr
		}
		p, err := h.e.GetContractorProfile(ctx, input.ContractorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		p.Reviews = nonNilSlice(p.Reviews)
		return &output[domain.ContractorProfile]{Body: p}, nil
	})
}

func registerCompanies(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-company",
		Method:        http.MethodPost,
		Path:          "/companies",
		Summary:       "Add a company to the directory",
		Tags:          []string{"companies"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body AddCompanyRequest
	}) (*output[domain.Company], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		c, err := h.e.AddCompany(ctx, engine.AddCompanyOptions{
			ID:          input.Body.ID,
			Name:        input.Body.Name,
			ServiceType: input.Body.ServiceType,
			Location:    input.Body.Location,
			ActorID:     p.ActorID,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.Company]{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-companies",
		Method:      http.MethodGet,
		Path:        "/companies",
		Summary:     "List companies",
		Tags:        []string{"companies"},
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[[]domain.Company], error) {
		if _, authErr := requireRole(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := h.e.ListCompanies(ctx)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[[]domain.Company]{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-company",
		Method:        http.MethodDelete,
		Path:          "/companies/{company_id}",
		Summary:       "Remove a company no job or contractor refers to",
		Tags:          []string{"companies"},
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CompanyID string `path:"company_id"`
	}) (*struct{}, error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.e.DeleteCompany(ctx, input.CompanyID, p.ActorID); err != nil {
			return nil, h.fail(ctx, err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Tags:        []string{"events"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"job,claim,contractor,company"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*output[paginatedEvents], error) {
		if _, authErr := requireRole(ctx); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := h.e.LatestEvents(ctx, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &output[paginatedEvents]{Body: resp}, nil
	})
}
