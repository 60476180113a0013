package project

import "context"

// Store persists project aggregates. Save overwrites the full aggregate
// (project row plus stage records); the aggregate is small and always
// mutated under the project lock.
type Store interface {
	Save(ctx context.Context, p Project) error
	FindByID(ctx context.Context, id string) (Project, error)
	List(ctx context.Context, providerID string) ([]Project, error)
}
