package engine

import (
	"context"
	"math"

	"github.com/jmoiron/sqlx"

	"jobledger/internal/domain"
	"jobledger/internal/events"
)

// addReview inserts rv and recomputes the contractor's rating inside tx. The
// contractor row is locked before the insert so two reviews for the same
// contractor cannot both compute from a stale set.
func (e Engine) addReview(ctx context.Context, tx *sqlx.Tx, rv domain.Review, actorID string) (float64, error) {
	if err := e.Repo.LockContractor(ctx, tx, rv.ContractorID); err != nil {
		return 0, notFound("contractor", rv.ContractorID, err)
	}
	if err := e.Repo.InsertReview(ctx, tx, rv); err != nil {
		return 0, err
	}
	if err := e.appendEvent(ctx, tx, events.ReviewRecorded, events.KindJob, rv.JobID, actorID, events.EventPayload{
		"review_id":     rv.ID,
		"contractor_id": rv.ContractorID,
		"rating":        rv.Rating,
	}); err != nil {
		return 0, err
	}
	rating, err := e.recomputeRating(ctx, tx, rv.ContractorID)
	if err != nil {
		return 0, err
	}
	if rating == nil {
		return 0, nil
	}
	if err := e.appendEvent(ctx, tx, events.RatingUpdated, events.KindContractor, rv.ContractorID, actorID, events.EventPayload{
		"rating": *rating,
	}); err != nil {
		return 0, err
	}
	return *rating, nil
}

// recomputeRating rebuilds the mean from every review the contractor has. A
// contractor without reviews keeps a NULL rating.
func (e Engine) recomputeRating(ctx context.Context, tx *sqlx.Tx, contractorID string) (*float64, error) {
	count, sum, err := e.Repo.ReviewStats(ctx, tx, contractorID)
	if err != nil {
		return nil, err
	}
	var rating *float64
	if count > 0 {
		r := roundTo(float64(sum)/float64(count), e.Config.Ratings.Precision)
		rating = &r
	}
	if err := e.Repo.SetRating(ctx, tx, contractorID, rating); err != nil {
		return nil, err
	}
	return rating, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
