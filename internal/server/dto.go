package server

import (
	"encoding/json"

	"jobledger/internal/domain"
)

type CreateJobRequest struct {
	ID           string `json:"id,omitempty" doc:"Optional caller-chosen id; generated when empty"`
	ServiceLabel string `json:"service_label" minLength:"1" maxLength:"200"`
	CompanyID    string `json:"company_id,omitempty"`
}

type UpdateJobRequest struct {
	ServiceLabel string `json:"service_label" minLength:"1" maxLength:"200"`
}

type ApprovalRequest struct {
	Decision domain.Approval `json:"decision" enum:"Approved,Denied"`
}

type PaymentRequest struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
}

type ReviewRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
}

// CompletionRequest records review and payment in one step.
type CompletionRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
	Amount  float64 `json:"amount"`
	Method  string  `json:"method,omitempty" doc:"Defaults to payments.completion_method"`
}

type RegisterContractorRequest struct {
	FullName  string `json:"full_name"`
	Service   string `json:"service,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
}

type AddCompanyRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	ServiceType string `json:"service_type,omitempty"`
	Location    string `json:"location,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(e domain.Event) EventResponse {
	res := EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
	if e.EntityID != nil {
		res.EntityID = *e.EntityID
	}
	return res
}

func decodeJSONMap(raw *string) map[string]any {
	if raw == nil || *raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(*raw), &obj); err != nil {
		return nil
	}
	return obj
}
