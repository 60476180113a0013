package review

import "context"

// Store persists indicator reviews. SaveAll exists for project creation,
// which materializes one pending review per catalog indicator in one shot.
type Store interface {
	Save(ctx context.Context, r IndicatorReview) error
	SaveAll(ctx context.Context, reviews []IndicatorReview) error
	Find(ctx context.Context, projectID, indicatorID string) (IndicatorReview, error)
	ListByProject(ctx context.Context, projectID string) ([]IndicatorReview, error)
}
