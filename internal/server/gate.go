package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"jobledger/internal/domain"
	"jobledger/internal/engine"
)

var gateErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
}

func registerGate(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "set-approval",
		Method:      http.MethodPut,
		Path:        "/jobs/{job_id}/approval",
		Summary:     "Approve or deny the work",
		Tags:        []string{"settlement"},
		Errors:      gateErrors,
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
		Body  ApprovalRequest
	}) (*output[domain.JobRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		j, err := h.e.SetClientApproval(ctx, input.JobID, input.Body.Decision, p.ActorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.JobRequest]{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-payment",
		Method:        http.MethodPost,
		Path:          "/jobs/{job_id}/payments",
		Summary:       "Pay the assigned contractor",
		Description:   "Requires an approved job. Amounts above payments.max_amount are clamped or rejected per configuration.",
		Tags:          []string{"settlement"},
		DefaultStatus: http.StatusCreated,
		Errors:        gateErrors,
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
		Body  PaymentRequest
	}) (*output[domain.Transaction], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		t, err := h.e.RecordPayment(ctx, engine.RecordPaymentOptions{
			JobID:    input.JobID,
			ClientID: p.ActorID,
			Amount:   input.Body.Amount,
			Method:   input.Body.Method,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.Transaction]{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-review",
		Method:        http.MethodPost,
		Path:          "/jobs/{job_id}/reviews",
		Summary:       "Review a completed job",
		Tags:          []string{"settlement"},
		DefaultStatus: http.StatusCreated,
		Errors:        gateErrors,
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
		Body  ReviewRequest
	}) (*output[domain.Review], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		rv, err := h.e.RecordReview(ctx, engine.RecordReviewOptions{
			JobID:    input.JobID,
			ClientID: p.ActorID,
			Rating:   input.Body.Rating,
			Comment:  input.Body.Comment,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.Review]{Body: rv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-completion",
		Method:      http.MethodPost,
		Path:        "/jobs/{job_id}/completion",
		Summary:     "Complete a job with rating and payment in one step",
		Tags:        []string{"settlement"},
		Errors:      gateErrors,
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
		Body  CompletionRequest
	}) (*output[engine.Completion], error) {
		p, authErr := requireRole(ctx, domain.RoleClient, domain.RoleContractor)
		if authErr != nil {
			return nil, authErr
		}
		res, err := h.e.RecordCompletion(ctx, engine.RecordCompletionOptions{
			JobID:   input.JobID,
			ActorID: p.ActorID,
			Rating:  input.Body.Rating,
			Comment: input.Body.Comment,
			Amount:  input.Body.Amount,
			Method:  input.Body.Method,
		})
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[engine.Completion]{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{job_id}/complete",
		Summary:     "Mark assigned work as done",
		Tags:        []string{"settlement"},
		Errors:      gateErrors,
	}, func(ctx context.Context, input *jobPath) (*output[domain.JobRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleContractor)
		if authErr != nil {
			return nil, authErr
		}
		j, err := h.e.CompleteJob(ctx, input.JobID, p.ActorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.JobRequest]{Body: j}, nil
	})
}
