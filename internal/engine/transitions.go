package engine

import (
	"fmt"

	"jobledger/internal/domain"
)

func ensureJobTransition(oldStatus, newStatus domain.JobStatus) error {
	switch oldStatus {
	case domain.JobPending:
		if newStatus == domain.JobInProgress || newStatus == domain.JobCancelled {
			return nil
		}
	case domain.JobInProgress:
		if newStatus == domain.JobCompleted || newStatus == domain.JobCancelled {
			return nil
		}
	}
	return fmt.Errorf("%w: job status %s -> %s", domain.ErrInvalidTransition, oldStatus, newStatus)
}

// ensureApprovalTransition guards client_approval. A denial may be revisited;
// an approval is final.
func ensureApprovalTransition(oldDecision, newDecision domain.Approval) error {
	switch oldDecision {
	case domain.ApprovalPending, domain.ApprovalDenied:
		if newDecision == domain.ApprovalApproved || newDecision == domain.ApprovalDenied {
			return nil
		}
	}
	return fmt.Errorf("%w: approval %s -> %s", domain.ErrInvalidTransition, oldDecision, newDecision)
}
