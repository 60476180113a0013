package certificate

import (
	"context"
	"sync"

	"certtrust/pkg/platform/sentinel"
)

// Store persists certificates.
type Store interface {
	Save(ctx context.Context, c Certificate) error
	FindByProject(ctx context.Context, projectID string) (Certificate, error)
	FindByNumber(ctx context.Context, number string) (Certificate, error)
	NumberExists(ctx context.Context, number string) (bool, error)
}

// InMemoryStore keeps certificates behind an RWMutex.
type InMemoryStore struct {
	mu        sync.RWMutex
	byProject map[string]Certificate
	byNumber  map[string]Certificate
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byProject: make(map[string]Certificate),
		byNumber:  make(map[string]Certificate),
	}
}

func (s *InMemoryStore) Save(_ context.Context, c Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byNumber[c.Number]; ok && existing.ProjectID != c.ProjectID {
		return sentinel.ErrConflict
	}
	s.byProject[c.ProjectID] = c
	s.byNumber[c.Number] = c
	return nil
}

func (s *InMemoryStore) FindByProject(_ context.Context, projectID string) (Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byProject[projectID]
	if !ok {
		return Certificate{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *InMemoryStore) FindByNumber(_ context.Context, number string) (Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byNumber[number]
	if !ok {
		return Certificate{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *InMemoryStore) NumberExists(_ context.Context, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byNumber[number]
	return ok, nil
}
