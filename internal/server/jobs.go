package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"jobledger/internal/domain"
	"jobledger/internal/engine"
)

type jobPath struct {
	JobID string `path:"job_id"`
}

func registerJobs(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Post a job request",
		Tags:          []string{"jobs"},
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateJobRequest
	}) (*output[domain.JobRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		j, err := h.e.CreateJob(ctx, engine.CreateJobOptions{
			ID:           input.Body.ID,
			ClientID:     p.ActorID,
			ServiceLabel: input.Body.ServiceLabel,
			CompanyID:    input.Body.CompanyID,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.JobRequest]{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-open-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs/open",
		Summary:     "List unclaimed jobs, oldest first",
		Tags:        []string{"jobs"},
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[[]domain.JobRequest], error) {
		if _, authErr := requireRole(ctx); authErr != nil {
			return nil, authErr
		}
		jobs, err := h.e.ListOpenJobs(ctx)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[[]domain.JobRequest]{Body: nonNilSlice(jobs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{job_id}",
		Summary:     "Get job",
		Tags:        []string{"jobs"},
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *jobPath) (*output[domain.JobRequest], error) {
		if _, authErr := requireRole(ctx); authErr != nil {
			return nil, authErr
		}
		j, err := h.e.GetJob(ctx, input.JobID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.JobRequest]{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-job",
		Method:      http.MethodPatch,
		Path:        "/jobs/{job_id}",
		Summary:     "Change the service label of a pending job",
		Tags:        []string{"jobs"},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
		Body  UpdateJobRequest
	}) (*output[domain.JobRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		j, err := h.e.UpdateJobService(ctx, input.JobID, input.Body.ServiceLabel, p.ActorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.JobRequest]{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-client-jobs",
		Method:      http.MethodGet,
		Path:        "/clients/{client_id}/jobs",
		Summary:     "List jobs posted by a client",
		Tags:        []string{"jobs"},
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ClientID string `path:"client_id"`
	}) (*output[[]domain.JobRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		if p.ActorID != input.ClientID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "clients may only list their own jobs", nil)
		}
		jobs, err := h.e.ListJobsForClient(ctx, input.ClientID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[[]domain.JobRequest]{Body: nonNilSlice(jobs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contractor-jobs",
		Method:      http.MethodGet,
		Path:        "/contractors/{contractor_id}/jobs",
		Summary:     "List jobs assigned to a contractor",
		Tags:        []string{"jobs"},
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ContractorID string `path:"contractor_id"`
	}) (*output[[]domain.JobRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleContractor)
		if authErr != nil {
			return nil, authErr
		}
		if p.ActorID != input.ContractorID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "contractors may only list their own jobs", nil)
		}
		jobs, err := h.e.ListJobsForContractor(ctx, input.ContractorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[[]domain.JobRequest]{Body: nonNilSlice(jobs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{job_id}/cancel",
		Summary:     "Cancel a job",
		Tags:        []string{"jobs"},
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *jobPath) (*output[domain.JobRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		j, err := h.e.CancelJob(ctx, input.JobID, p.ActorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.JobRequest]{Body: j}, nil
	})
}
