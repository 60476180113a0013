// Package project owns the certification project aggregate: the provider's
// application, its fixed stage pipeline, and the per-project serialization
// point every mutating service goes through.
package project

import (
	"time"

	"github.com/google/uuid"

	"certtrust/internal/rbac"
)

// StageID identifies one phase of the certification pipeline.
type StageID string

const (
	StageApplication    StageID = "application"
	StageDocumentReview StageID = "document-review"
	StageAssessment     StageID = "assessment"
	StageAudit          StageID = "audit"
	StageCertification  StageID = "certification"
)

// Sequence is the fixed, ordered stage pipeline. Projects only ever move
// forward through it.
var Sequence = []StageID{
	StageApplication,
	StageDocumentReview,
	StageAssessment,
	StageAudit,
	StageCertification,
}

// stageOperators maps each stage to the role that operates it. Admin may
// always operate any stage.
var stageOperators = map[StageID]rbac.Role{
	StageApplication:    rbac.RoleMMP,
	StageDocumentReview: rbac.RoleAssessor,
	StageAssessment:     rbac.RoleAssessor,
	StageAudit:          rbac.RoleAuditor,
	StageCertification:  rbac.RoleAdmin,
}

// OperatorFor returns the role assigned to operate a stage.
func OperatorFor(stage StageID) rbac.Role { return stageOperators[stage] }

// StageStatus describes one stage record's position in the pipeline.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
	StageBlocked   StageStatus = "blocked"
)

// State is the project's archive state. Projects are never deleted; terminal
// outcomes archive them.
type State string

const (
	StateActive    State = "active"
	StateCertified State = "certified"
	StateRejected  State = "rejected"
)

// StageRecord tracks one stage of one project. Exactly one record exists per
// stage id per project: stages before CurrentStageIndex are completed, the
// stage at it is active or blocked, later stages are pending.
type StageRecord struct {
	StageID      StageID     `json:"stage_id"`
	Status       StageStatus `json:"status"`
	AssignedRole rbac.Role   `json:"assigned_role"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// Project is the aggregate root. CurrentStageIndex is monotonically
// non-decreasing over the project's life; only the workflow service mutates
// it.
type Project struct {
	ID                string        `json:"id"`
	ProviderID        string        `json:"provider_id"`
	Provider          string        `json:"provider"`
	Name              string        `json:"name"`
	CreatedAt         time.Time     `json:"created_at"`
	CurrentStageIndex int           `json:"current_stage_index"`
	State             State         `json:"state"`
	Stages            []StageRecord `json:"stages"`
}

// New creates a project positioned at the application stage.
func New(providerID, provider, name string) Project {
	now := time.Now().UTC()
	stages := make([]StageRecord, len(Sequence))
	for i, id := range Sequence {
		stages[i] = StageRecord{
			StageID:      id,
			Status:       StagePending,
			AssignedRole: stageOperators[id],
		}
	}
	stages[0].Status = StageActive
	stages[0].StartedAt = &now

	return Project{
		ID:                uuid.NewString(),
		ProviderID:        providerID,
		Provider:          provider,
		Name:              name,
		CreatedAt:         now,
		CurrentStageIndex: 0,
		State:             StateActive,
		Stages:            stages,
	}
}

// CurrentStage returns the stage record at CurrentStageIndex.
func (p *Project) CurrentStage() *StageRecord {
	return &p.Stages[p.CurrentStageIndex]
}

// AtFinalStage reports whether the project sits at the certification stage.
func (p *Project) AtFinalStage() bool {
	return p.CurrentStageIndex == len(Sequence)-1
}

// Archived reports whether the project reached a terminal state.
func (p *Project) Archived() bool {
	return p.State != StateActive
}
