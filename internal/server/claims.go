package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"jobledger/internal/domain"
	"jobledger/internal/engine"
)

type claimPath struct {
	JobID        string `path:"job_id"`
	ContractorID string `path:"contractor_id"`
}

var claimErrors = []int{
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
}

func registerClaims(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "claim-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{job_id}/claim",
		Summary:     "Claim an open job directly",
		Description: "First claimant wins. Losers get 409 job_unavailable.",
		Tags:        []string{"claims"},
		Errors:      claimErrors,
	}, func(ctx context.Context, input *jobPath) (*output[domain.JobRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleContractor)
		if authErr != nil {
			return nil, authErr
		}
		j, err := h.e.DirectClaim(ctx, input.JobID, p.ActorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.JobRequest]{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-claim",
		Method:        http.MethodPost,
		Path:          "/jobs/{job_id}/claims",
		Summary:       "Ask the client to assign the job",
		Tags:          []string{"claims"},
		DefaultStatus: http.StatusCreated,
		Errors:        claimErrors,
	}, func(ctx context.Context, input *jobPath) (*output[domain.ClaimRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleContractor)
		if authErr != nil {
			return nil, authErr
		}
		c, err := h.e.SubmitClaimRequest(ctx, input.JobID, p.ActorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.ClaimRequest]{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-claims",
		Method:      http.MethodGet,
		Path:        "/jobs/{job_id}/claims",
		Summary:     "List claim requests for a job",
		Tags:        []string{"claims"},
		Errors:      claimErrors,
	}, func(ctx context.Context, input *jobPath) (*output[[]domain.ClaimRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		claims, err := h.e.ListClaims(ctx, input.JobID, p.ActorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[[]domain.ClaimRequest]{Body: nonNilSlice(claims)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-claim",
		Method:      http.MethodPost,
		Path:        "/jobs/{job_id}/claims/{contractor_id}/accept",
		Summary:     "Accept one claim and decline the rest",
		Tags:        []string{"claims"},
		Errors:      claimErrors,
	}, func(ctx context.Context, input *claimPath) (*output[engine.Arbitration], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		res, err := h.e.AcceptClaim(ctx, input.JobID, input.ContractorID, p.ActorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		res.Declined = nonNilSlice(res.Declined)
		return &output[engine.Arbitration]{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-claim",
		Method:      http.MethodPost,
		Path:        "/jobs/{job_id}/claims/{contractor_id}/reject",
		Summary:     "Decline a pending claim",
		Tags:        []string{"claims"},
		Errors:      claimErrors,
	}, func(ctx context.Context, input *claimPath) (*output[domain.ClaimRequest], error) {
		p, authErr := requireRole(ctx, domain.RoleClient)
		if authErr != nil {
			return nil, authErr
		}
		c, err := h.e.RejectClaim(ctx, input.JobID, input.ContractorID, p.ActorID)
		if err != nil {
			return nil, h.fail(ctx, err)
		}
		return &output[domain.ClaimRequest]{Body: c}, nil
	})
}
