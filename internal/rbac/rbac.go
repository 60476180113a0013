// Package rbac is the single source of truth for which role may invoke
// which certification operation. Can is a pure function over a static
// capability table; every mutating service calls it before touching state,
// and the transport layer reuses it for client-side hints so the rules
// never diverge.
package rbac

import (
	"strings"

	dErrors "certtrust/pkg/domain-errors"
)

// Role identifies a party in the certification process. Role resolution and
// authentication are external concerns; the core receives the role as an
// opaque string and parses it here.
type Role string

const (
	RoleMMP        Role = "mmp"
	RoleConsultant Role = "consultant"
	RoleAssessor   Role = "assessor"
	RoleAuditor    Role = "auditor"
	RoleAdmin      Role = "admin"
)

// Operation names a mutating entry point of the certification core.
type Operation string

const (
	OpCreateProject       Operation = "create_project"
	OpSubmitEvidence      Operation = "submit_evidence"
	OpSetReviewStatus     Operation = "set_review_status"
	OpReopenReview        Operation = "reopen_review"
	OpSetDocumentStatus   Operation = "set_document_status"
	OpRecordAuditDecision Operation = "record_audit_decision"
	OpAdvanceStage        Operation = "advance_stage"
	OpIssueCertificate    Operation = "issue_certificate"
	OpView                Operation = "view"
)

// Actor is the opaque identity a call runs as. Subject is whatever the
// external authenticator put there; the core only branches on Role.
type Actor struct {
	Role    Role
	Subject string
}

// ParseRole validates an incoming role string.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleMMP:
		return RoleMMP, nil
	case RoleConsultant:
		return RoleConsultant, nil
	case RoleAssessor:
		return RoleAssessor, nil
	case RoleAuditor:
		return RoleAuditor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown role %q", s)
	}
}

// capabilities is the static role -> operations table. Admin is a superuser
// and bypasses the table entirely.
var capabilities = map[Role]map[Operation]struct{}{
	RoleMMP: {
		OpCreateProject: {},
		// MMPs operate the application stage, so they can advance out of it
		// once their application is complete. Later stages reject them on
		// the stage-operator check.
		OpAdvanceStage:   {},
		OpSubmitEvidence: {},
		OpView:           {},
	},
	RoleConsultant: {
		// Consultants advise and may submit evidence on behalf of the MMP,
		// but never change review statuses to a terminal verdict.
		OpSubmitEvidence:  {},
		OpSetReviewStatus: {},
		OpView:            {},
	},
	RoleAssessor: {
		OpSetReviewStatus:   {},
		OpSetDocumentStatus: {},
		OpAdvanceStage:      {},
		OpView:              {},
	},
	RoleAuditor: {
		OpSetReviewStatus:     {},
		OpSetDocumentStatus:   {},
		OpRecordAuditDecision: {},
		OpAdvanceStage:        {},
		OpIssueCertificate:    {},
		OpView:                {},
	},
	RoleAdmin: nil, // superuser, checked before the table lookup
}

// Can reports whether role may invoke op.
func Can(role Role, op Operation) bool {
	if role == RoleAdmin {
		return true
	}
	ops, ok := capabilities[role]
	if !ok {
		return false
	}
	_, allowed := ops[op]
	return allowed
}

// reviewEdges lists the review statuses each role may set. Consultants move
// reviews into working state from provider-side notes; only assessors and
// auditors hand down verdicts.
var reviewEdges = map[Role][]string{
	RoleConsultant: {"in-progress"},
	RoleAssessor:   {"in-progress", "approved", "rejected", "requires-clarification"},
	RoleAuditor:    {"in-progress", "approved", "rejected", "requires-clarification"},
}

// CanSetReviewStatus reports whether role may set an indicator review to
// the given target status.
func CanSetReviewStatus(role Role, target string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, s := range reviewEdges[role] {
		if s == target {
			return true
		}
	}
	return false
}

// Require returns a forbidden error when role lacks op; nil otherwise.
// Services call this at the top of every mutation.
func Require(role Role, op Operation) error {
	if !Can(role, op) {
		return dErrors.Newf(dErrors.CodeForbidden, "role %q may not perform %s", role, op)
	}
	return nil
}
