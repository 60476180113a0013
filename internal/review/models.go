// Package review implements the per-indicator review state machine. Each
// project gets one IndicatorReview per catalog indicator, created when the
// project is created and mutated only through the transition table below.
package review

import (
	"time"

	"certtrust/internal/rbac"
)

// Status is the review position in the state machine.
type Status string

const (
	StatusPending               Status = "pending"
	StatusInProgress            Status = "in-progress"
	StatusApproved              Status = "approved"
	StatusRejected              Status = "rejected"
	StatusRequiresClarification Status = "requires-clarification"
)

// ValidStatus reports whether s names a known review status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusApproved, StatusRejected, StatusRequiresClarification:
		return true
	}
	return false
}

// transitions is the state table. requires-clarification -> in-progress is
// the only back-edge; approved and rejected are terminal per review cycle
// and leave only via the explicit reopen action, which resets to pending.
var transitions = map[Status][]Status{
	StatusPending:               {StatusInProgress},
	StatusInProgress:            {StatusApproved, StatusRejected, StatusRequiresClarification},
	StatusRequiresClarification: {StatusInProgress},
}

// CanTransition reports whether the edge from -> to exists in the table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a review cycle.
func Terminal(s Status) bool {
	return s == StatusApproved || s == StatusRejected
}

// IndicatorReview is the (project, indicator) review record. EvidenceIDs are
// weak references into the evidence store; the review never owns documents.
type IndicatorReview struct {
	ProjectID    string    `json:"project_id"`
	IndicatorID  string    `json:"indicator_id"`
	Status       Status    `json:"status"`
	EvidenceIDs  []string  `json:"evidence_ids"`
	Comment      string    `json:"comment,omitempty"`
	ReviewerRole rbac.Role `json:"reviewer_role,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
