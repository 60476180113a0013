package evidence

import "context"

// Store is interface-driven so the review service can run against the
// in-memory implementation in tests and PostgreSQL in production without
// rewiring.
type Store interface {
	Save(ctx context.Context, doc Document) error
	FindByID(ctx context.Context, projectID, docID string) (Document, error)
	ListByProject(ctx context.Context, projectID string) ([]Document, error)
	ListByIndicator(ctx context.Context, projectID, indicatorID string) ([]Document, error)
	SetStatus(ctx context.Context, projectID, docID string, status Status, comment string) error
}
