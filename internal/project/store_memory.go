package project

import (
	"context"
	"sort"
	"sync"

	"certtrust/pkg/platform/sentinel"
)

// InMemoryStore keeps project aggregates behind an RWMutex. Reads return
// deep copies so status displays can be served without the project lock.
type InMemoryStore struct {
	mu       sync.RWMutex
	projects map[string]Project
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{projects: make(map[string]Project)}
}

func (s *InMemoryStore) Save(_ context.Context, p Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = clone(p)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, sentinel.ErrNotFound
	}
	return clone(p), nil
}

func (s *InMemoryStore) List(_ context.Context, providerID string) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Project
	for _, p := range s.projects {
		if providerID != "" && p.ProviderID != providerID {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func clone(p Project) Project {
	p.Stages = append([]StageRecord{}, p.Stages...)
	return p
}
