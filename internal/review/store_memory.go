package review

import (
	"context"
	"sync"

	"certtrust/pkg/platform/sentinel"
)

// InMemoryStore keeps reviews per project behind an RWMutex. List order
// follows insertion order, which is catalog order at project creation.
type InMemoryStore struct {
	mu      sync.RWMutex
	reviews map[string][]IndicatorReview
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reviews: make(map[string][]IndicatorReview)}
}

func (s *InMemoryStore) Save(_ context.Context, r IndicatorReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.reviews[r.ProjectID]
	for i := range list {
		if list[i].IndicatorID == r.IndicatorID {
			list[i] = cloneReview(r)
			return nil
		}
	}
	s.reviews[r.ProjectID] = append(list, cloneReview(r))
	return nil
}

func (s *InMemoryStore) SaveAll(ctx context.Context, reviews []IndicatorReview) error {
	for _, r := range reviews {
		if err := s.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, projectID, indicatorID string) (IndicatorReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reviews[projectID] {
		if r.IndicatorID == indicatorID {
			return cloneReview(r), nil
		}
	}
	return IndicatorReview{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByProject(_ context.Context, projectID string) ([]IndicatorReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]IndicatorReview, 0, len(s.reviews[projectID]))
	for _, r := range s.reviews[projectID] {
		out = append(out, cloneReview(r))
	}
	return out, nil
}

func cloneReview(r IndicatorReview) IndicatorReview {
	r.EvidenceIDs = append([]string{}, r.EvidenceIDs...)
	return r
}
