package evidence

import (
	"context"
	"sync"

	"certtrust/pkg/platform/sentinel"
)

// InMemoryStore keeps documents per project behind an RWMutex. Reads return
// copies so callers can render snapshots without holding the lock.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string][]Document)}
}

func (s *InMemoryStore) Save(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ProjectID] = append(s.docs[doc.ProjectID], doc)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, projectID, docID string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.docs[projectID] {
		if d.ID == docID {
			return d, nil
		}
	}
	return Document{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByProject(_ context.Context, projectID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Document{}, s.docs[projectID]...), nil
}

func (s *InMemoryStore) ListByIndicator(_ context.Context, projectID, indicatorID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Document
	for _, d := range s.docs[projectID] {
		if d.IndicatorID == indicatorID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, projectID, docID string, status Status, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.docs[projectID]
	for i := range docs {
		if docs[i].ID == docID {
			docs[i].OwnStatus = status
			docs[i].Comment = comment
			return nil
		}
	}
	return sentinel.ErrNotFound
}
