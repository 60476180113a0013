// Package events defines the domain events the certification core emits and
// the publishers that fan them out. Consumers (notification and reporting
// collaborators) live outside this repository; the core only guarantees the
// event shape and best-effort delivery.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	TypeProjectCreated         Type = "project.created"
	TypeEvidenceSubmitted      Type = "evidence.submitted"
	TypeIndicatorReviewed      Type = "indicator.reviewed"
	TypeClarificationRequested Type = "clarification.requested"
	TypeStageAdvanced          Type = "stage.advanced"
	TypeAuditDecisionRecorded  Type = "audit.decision.recorded"
	TypeCertificateIssued      Type = "certificate.issued"
)

// Event is emitted after a committed state transition. Keep it
// transport-agnostic so channel and Kafka publishers carry the same shape.
type Event struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	ProjectID   string            `json:"project_id"`
	IndicatorID string            `json:"indicator_id,omitempty"`
	Actor       string            `json:"actor,omitempty"`
	Role        string            `json:"role,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Payload     map[string]string `json:"payload,omitempty"`
}

// New builds an event with id and timestamp filled in.
func New(t Type, projectID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		ProjectID:  projectID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher fans a committed event out to external consumers. Emit must not
// participate in the emitting transaction: events describe transitions that
// already happened.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}

// Nop discards events; used in tests and when no sink is configured.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
func (Nop) Close() error                      { return nil }
