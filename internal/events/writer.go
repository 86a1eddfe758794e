package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	JobCreated      = "job.created"
	JobClaimed      = "job.claimed"
	JobCompleted    = "job.completed"
	JobCancelled    = "job.cancelled"
	JobUpdated      = "job.updated"
	ClaimSubmitted  = "claim.submitted"
	ClaimAccepted   = "claim.accepted"
	ClaimDeclined   = "claim.declined"
	ApprovalSet     = "approval.set"
	PaymentRecorded = "payment.recorded"
	ReviewRecorded  = "review.recorded"
	RatingUpdated   = "contractor.rating_updated"
	ContractorAdded = "contractor.registered"
	CompanyAdded    = "company.added"
	CompanyDeleted  = "company.deleted"
)

const (
	KindJob        = "job"
	KindClaim      = "claim"
	KindContractor = "contractor"
	KindCompany    = "company"
)

// Writer appends audit events inside the caller's transaction so the trail
// commits or rolls back with the mutation it records.
type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, tx sqlx.ExtContext, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`),
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
