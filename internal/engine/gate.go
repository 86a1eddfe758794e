package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"jobledger/internal/domain"
	"jobledger/internal/events"
	"jobledger/internal/repo"
)

type RecordPaymentOptions struct {
	JobID    string  `json:"job_id" validate:"required"`
	ClientID string  `json:"client_id" validate:"required"`
	Amount   float64 `json:"amount" validate:"gte=0"`
	Method   string  `json:"method" validate:"required"`
}

type RecordReviewOptions struct {
	JobID    string  `json:"job_id" validate:"required"`
	ClientID string  `json:"client_id" validate:"required"`
	Rating   int     `json:"rating" validate:"min=1,max=5"`
	Comment  *string `json:"comment"`
}

// RecordCompletionOptions drive the single-step gated completion: review,
// the job's Transaction and the status change land together. An empty Method
// falls back to payments.completion_method.
type RecordCompletionOptions struct {
	JobID   string  `json:"job_id" validate:"required"`
	ActorID string  `json:"actor_id" validate:"required"`
	Rating  int     `json:"rating" validate:"min=1,max=5"`
	Comment *string `json:"comment"`
	Amount  float64 `json:"amount" validate:"gte=0"`
	Method  string  `json:"method"`
}

type Completion struct {
	Job     domain.JobRequest  `json:"job"`
	Review  domain.Review      `json:"review"`
	Payment domain.Transaction `json:"payment"`
	Rating  float64            `json:"rating"`
}

// SetClientApproval records the client's decision on finished work. Denied may
// later become Approved; Approved is final.
func (e Engine) SetClientApproval(ctx context.Context, jobID string, decision domain.Approval, actingClientID string) (domain.JobRequest, error) {
	if decision != domain.ApprovalApproved && decision != domain.ApprovalDenied {
		return domain.JobRequest{}, domain.Invalid("decision", "must be Approved or Denied")
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.JobRequest{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, jobID)
	if err != nil {
		return domain.JobRequest{}, err
	}
	if j.ClientID != actingClientID {
		return domain.JobRequest{}, fmt.Errorf("%w: job %s belongs to another client", domain.ErrForbidden, jobID)
	}
	if j.Status != domain.JobInProgress && j.Status != domain.JobCompleted {
		return domain.JobRequest{}, fmt.Errorf("%w: cannot approve a %s job", domain.ErrInvalidTransition, j.Status)
	}
	if err := ensureApprovalTransition(j.ClientApproval, decision); err != nil {
		return domain.JobRequest{}, err
	}
	if err := e.Repo.SetClientApproval(ctx, tx, jobID, decision); err != nil {
		return domain.JobRequest{}, err
	}
	if err := e.appendEvent(ctx, tx, events.ApprovalSet, events.KindJob, jobID, actingClientID, events.EventPayload{
		"from": string(j.ClientApproval),
		"to":   string(decision),
	}); err != nil {
		return domain.JobRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobRequest{}, err
	}
	j.ClientApproval = decision
	return j, nil
}

// RecordPayment appends the job's Transaction once the client has approved.
// An InProgress job completes with it.
func (e Engine) RecordPayment(ctx context.Context, opts RecordPaymentOptions) (domain.Transaction, error) {
	opts.Method = strings.TrimSpace(opts.Method)
	if err := validateStruct(opts); err != nil {
		return domain.Transaction{}, err
	}
	if !e.Config.AllowsMethod(opts.Method) {
		return domain.Transaction{}, domain.Invalid("method", fmt.Sprintf("unsupported payment method %q", opts.Method))
	}
	amount, err := e.capAmount(ctx, opts.Amount)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, opts.JobID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if j.ClientID != opts.ClientID {
		return domain.Transaction{}, fmt.Errorf("%w: job %s belongs to another client", domain.ErrForbidden, j.ID)
	}
	if !j.HasContractor() {
		return domain.Transaction{}, fmt.Errorf("%w: job %s", domain.ErrContractorMissing, j.ID)
	}
	if j.ClientApproval != domain.ApprovalApproved {
		return domain.Transaction{}, fmt.Errorf("%w: job %s approval is %s", domain.ErrApprovalRequired, j.ID, j.ClientApproval)
	}
	if j.Status != domain.JobInProgress && j.Status != domain.JobCompleted {
		return domain.Transaction{}, fmt.Errorf("%w: cannot pay for a %s job", domain.ErrInvalidTransition, j.Status)
	}
	t, err := e.payTx(ctx, tx, j, amount, opts.Amount, opts.Method, opts.ClientID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if j.Status == domain.JobInProgress {
		if err := e.completeTx(ctx, tx, j, opts.ClientID, "payment"); err != nil {
			return domain.Transaction{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

// RecordReview attaches the client's review to a completed job and refreshes
// the contractor's rating.
func (e Engine) RecordReview(ctx context.Context, opts RecordReviewOptions) (domain.Review, error) {
	if err := validateStruct(opts); err != nil {
		return domain.Review{}, err
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Review{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, opts.JobID)
	if err != nil {
		return domain.Review{}, err
	}
	if j.ClientID != opts.ClientID {
		return domain.Review{}, fmt.Errorf("%w: job %s belongs to another client", domain.ErrForbidden, j.ID)
	}
	if !j.HasContractor() {
		return domain.Review{}, fmt.Errorf("%w: job %s", domain.ErrContractorMissing, j.ID)
	}
	if j.Status != domain.JobCompleted {
		return domain.Review{}, fmt.Errorf("%w: cannot review a %s job", domain.ErrInvalidTransition, j.Status)
	}
	if _, err := e.Repo.GetReviewByJob(ctx, tx, j.ID); err == nil {
		return domain.Review{}, fmt.Errorf("%w: job %s is already reviewed", domain.ErrInvalidTransition, j.ID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Review{}, err
	}
	rv := e.newReview(j, opts.Rating, opts.Comment)
	if _, err := e.addReview(ctx, tx, rv, opts.ClientID); err != nil {
		return domain.Review{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

// RecordCompletion is the single-step gated completion, callable by either
// party of the job.
func (e Engine) RecordCompletion(ctx context.Context, opts RecordCompletionOptions) (Completion, error) {
	if err := validateStruct(opts); err != nil {
		return Completion{}, err
	}
	method := strings.TrimSpace(opts.Method)
	if method == "" {
		method = e.Config.Payments.CompletionMethod
	}
	if !e.Config.AllowsMethod(method) {
		return Completion{}, domain.Invalid("method", fmt.Sprintf("unsupported payment method %q", method))
	}
	amount, err := e.capAmount(ctx, opts.Amount)
	if err != nil {
		return Completion{}, err
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return Completion{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, opts.JobID)
	if err != nil {
		return Completion{}, err
	}
	isContractor := j.HasContractor() && *j.ContractorID == opts.ActorID
	if j.ClientID != opts.ActorID && !isContractor {
		return Completion{}, fmt.Errorf("%w: %s is not a party to job %s", domain.ErrForbidden, opts.ActorID, j.ID)
	}
	if !j.HasContractor() {
		return Completion{}, fmt.Errorf("%w: job %s", domain.ErrContractorMissing, j.ID)
	}
	if err := ensureJobTransition(j.Status, domain.JobCompleted); err != nil {
		return Completion{}, err
	}
	t, err := e.payTx(ctx, tx, j, amount, opts.Amount, method, opts.ActorID)
	if err != nil {
		return Completion{}, err
	}
	rv := e.newReview(j, opts.Rating, opts.Comment)
	rating, err := e.addReview(ctx, tx, rv, opts.ActorID)
	if err != nil {
		return Completion{}, err
	}
	if err := e.completeTx(ctx, tx, j, opts.ActorID, "completion"); err != nil {
		return Completion{}, err
	}
	if err := tx.Commit(); err != nil {
		return Completion{}, err
	}
	j.Status = domain.JobCompleted
	j.FulfilledAt = optionalString(rv.Date)
	return Completion{Job: j, Review: rv, Payment: t, Rating: rating}, nil
}

// CompleteJob is direct completion by the assigned contractor, with no
// monetary step.
func (e Engine) CompleteJob(ctx context.Context, jobID, actingContractorID string) (domain.JobRequest, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.JobRequest{}, err
	}
	defer tx.Rollback()

	j, err := e.lockJob(ctx, tx, jobID)
	if err != nil {
		return domain.JobRequest{}, err
	}
	if !j.HasContractor() {
		return domain.JobRequest{}, fmt.Errorf("%w: job %s", domain.ErrContractorMissing, jobID)
	}
	if *j.ContractorID != actingContractorID {
		return domain.JobRequest{}, fmt.Errorf("%w: job %s is assigned to another contractor", domain.ErrForbidden, jobID)
	}
	if err := ensureJobTransition(j.Status, domain.JobCompleted); err != nil {
		return domain.JobRequest{}, err
	}
	if err := e.completeTx(ctx, tx, j, actingContractorID, "direct"); err != nil {
		return domain.JobRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobRequest{}, err
	}
	j.Status = domain.JobCompleted
	j.FulfilledAt = optionalString(e.stamp())
	return j, nil
}

// payTx writes the job's single Transaction and credits the contractor.
func (e Engine) payTx(ctx context.Context, tx *sqlx.Tx, j domain.JobRequest, amount, requested float64, method, actorID string) (domain.Transaction, error) {
	if _, err := e.Repo.GetTransactionByJob(ctx, tx, j.ID); err == nil {
		return domain.Transaction{}, fmt.Errorf("%w: job %s is already paid", domain.ErrInvalidTransition, j.ID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Transaction{}, err
	}
	t := domain.Transaction{
		ID:           newID(),
		JobID:        j.ID,
		ClientID:     j.ClientID,
		ContractorID: *j.ContractorID,
		Amount:       amount,
		Method:       method,
		Date:         e.stamp(),
	}
	if err := e.Repo.InsertTransaction(ctx, tx, t); err != nil {
		return domain.Transaction{}, err
	}
	if err := e.Repo.AddEarnings(ctx, tx, t.ContractorID, amount); err != nil {
		return domain.Transaction{}, notFound("contractor", t.ContractorID, err)
	}
	if err := e.appendEvent(ctx, tx, events.PaymentRecorded, events.KindJob, j.ID, actorID, events.EventPayload{
		"transaction_id": t.ID,
		"amount":         amount,
		"requested":      requested,
		"method":         t.Method,
	}); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

func (e Engine) completeTx(ctx context.Context, tx *sqlx.Tx, j domain.JobRequest, actorID, via string) error {
	if err := ensureJobTransition(j.Status, domain.JobCompleted); err != nil {
		return err
	}
	now := e.stamp()
	if err := e.Repo.SetJobStatus(ctx, tx, j.ID, domain.JobCompleted, &now); err != nil {
		return err
	}
	if err := e.appendEvent(ctx, tx, events.JobCompleted, events.KindJob, j.ID, actorID, events.EventPayload{
		"via": via,
	}); err != nil {
		return err
	}
	e.log(ctx).Debug("job completed", "job_id", j.ID, "via", via)
	return nil
}

// capAmount applies the configured payment ceiling.
func (e Engine) capAmount(ctx context.Context, amount float64) (float64, error) {
	ceiling := e.Config.Payments.MaxAmount
	if amount <= ceiling {
		return amount, nil
	}
	if e.Config.Payments.RejectOversized {
		return 0, domain.Invalid("amount", fmt.Sprintf("must be at most %.2f", ceiling))
	}
	e.log(ctx).Info("payment amount clamped", "requested", amount, "max", ceiling)
	return ceiling, nil
}

func (e Engine) newReview(j domain.JobRequest, rating int, comment *string) domain.Review {
	if comment != nil && strings.TrimSpace(*comment) == "" {
		comment = nil
	}
	return domain.Review{
		ID:           newID(),
		JobID:        j.ID,
		ClientID:     j.ClientID,
		ContractorID: *j.ContractorID,
		Rating:       rating,
		Comment:      comment,
		Date:         e.stamp(),
	}
}
