package workflow

import (
	"certtrust/internal/catalog"
	"certtrust/internal/evidence"
	"certtrust/internal/project"
	"certtrust/internal/review"
	dErrors "certtrust/pkg/domain-errors"
	pstrings "certtrust/pkg/platform/strings"
)

// gateInput gathers everything a gate predicate may read. The workflow
// service assembles it under the project lock so the predicate sees a
// consistent aggregate.
type gateInput struct {
	project   project.Project
	reviews   []review.IndicatorReview
	documents []evidence.Document
	decision  *AuditDecision
}

// evaluateGate checks the gate predicate for the project's current stage.
// A nil return means the stage may complete. Gate failures carry the ids of
// the offending indicators so callers can render actionable detail.
//
// Progress percentage deliberately plays no part here: display progress and
// gating are separate concerns, and a project can read 92% complete while
// still blocked on clarifications.
func evaluateGate(cat *catalog.Catalog, in gateInput) error {
	switch in.project.CurrentStage().StageID {
	case project.StageApplication:
		return applicationGate(in)
	case project.StageDocumentReview:
		return documentReviewGate(cat, in)
	case project.StageAssessment:
		return assessmentGate(in)
	case project.StageAudit:
		return auditGate(in)
	case project.StageCertification:
		return certificationGate(in)
	default:
		return dErrors.Newf(dErrors.CodeInternal, "no gate for stage %s", in.project.CurrentStage().StageID)
	}
}

// applicationGate requires the intake fields and an initial document set.
func applicationGate(in gateInput) error {
	if in.project.Provider == "" || in.project.Name == "" {
		return dErrors.New(dErrors.CodeGateNotSatisfied, "application intake fields incomplete")
	}
	if len(in.documents) == 0 {
		return dErrors.New(dErrors.CodeGateNotSatisfied, "no initial documents submitted")
	}
	return nil
}

// documentReviewGate requires every mandatory-at-intake indicator to have
// left pending.
func documentReviewGate(cat *catalog.Catalog, in gateInput) error {
	statusByID := make(map[string]review.Status, len(in.reviews))
	for _, r := range in.reviews {
		statusByID[r.IndicatorID] = r.Status
	}

	var unmet []string
	for _, ind := range cat.MandatoryIndicators() {
		if statusByID[ind.ID] == review.StatusPending {
			unmet = append(unmet, ind.ID)
		}
	}
	if len(unmet) > 0 {
		return dErrors.New(dErrors.CodeGateNotSatisfied, "mandatory indicators still pending").
			WithDetails(pstrings.DedupeAndTrim(unmet)...)
	}
	return nil
}

// assessmentGate requires a terminal status on every indicator. Outstanding
// clarifications block the stage rather than merely failing the gate.
func assessmentGate(in gateInput) error {
	var unmet []string
	for _, r := range in.reviews {
		if !review.Terminal(r.Status) {
			unmet = append(unmet, r.IndicatorID)
		}
	}
	if len(unmet) > 0 {
		return dErrors.New(dErrors.CodeGateNotSatisfied, "indicators without a terminal status remain").
			WithDetails(pstrings.DedupeAndTrim(unmet)...)
	}
	return nil
}

// hasOutstandingClarifications reports whether any review sits in
// requires-clarification; the assessment stage shows blocked while true.
func hasOutstandingClarifications(reviews []review.IndicatorReview) bool {
	for _, r := range reviews {
		if r.Status == review.StatusRequiresClarification {
			return true
		}
	}
	return false
}

// auditGate requires a recorded certification decision.
func auditGate(in gateInput) error {
	if in.decision == nil {
		return dErrors.New(dErrors.CodeGateNotSatisfied, "no certification decision recorded")
	}
	return nil
}

// certificationGate requires an approving decision; a reject verdict can
// never reach issuance.
func certificationGate(in gateInput) error {
	if in.decision == nil {
		return dErrors.New(dErrors.CodeGateNotSatisfied, "no certification decision recorded")
	}
	if in.decision.Decision == DecisionReject {
		return dErrors.New(dErrors.CodeGateNotSatisfied, "certification was rejected by the auditor")
	}
	return nil
}
