package workflow

import (
	"context"
	"sync"
	"time"

	"certtrust/internal/rbac"
	"certtrust/pkg/platform/sentinel"
)

// Decision is the auditor's certification verdict. It gates the audit and
// certification stages: approve and conditional let the project proceed to
// issuance, reject archives it.
type Decision string

const (
	DecisionApprove     Decision = "approve"
	DecisionConditional Decision = "conditional"
	DecisionReject      Decision = "reject"
)

// ValidDecision reports whether d names a known verdict.
func ValidDecision(d Decision) bool {
	switch d {
	case DecisionApprove, DecisionConditional, DecisionReject:
		return true
	}
	return false
}

// AuditDecision records the verdict. At most one per project; re-recording
// overwrites, which supports a conditional verdict being upgraded before
// issuance.
type AuditDecision struct {
	ProjectID string    `json:"project_id"`
	Decision  Decision  `json:"decision"`
	Note      string    `json:"note,omitempty"`
	DecidedBy rbac.Role `json:"decided_by"`
	DecidedAt time.Time `json:"decided_at"`
}

// DecisionStore persists audit decisions.
type DecisionStore interface {
	Save(ctx context.Context, d AuditDecision) error
	FindByProject(ctx context.Context, projectID string) (AuditDecision, error)
}

// InMemoryDecisionStore keeps decisions behind an RWMutex.
type InMemoryDecisionStore struct {
	mu        sync.RWMutex
	decisions map[string]AuditDecision
}

func NewInMemoryDecisionStore() *InMemoryDecisionStore {
	return &InMemoryDecisionStore{decisions: make(map[string]AuditDecision)}
}

func (s *InMemoryDecisionStore) Save(_ context.Context, d AuditDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[d.ProjectID] = d
	return nil
}

func (s *InMemoryDecisionStore) FindByProject(_ context.Context, projectID string) (AuditDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[projectID]
	if !ok {
		return AuditDecision{}, sentinel.ErrNotFound
	}
	return d, nil
}
