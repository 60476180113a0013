package review

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"certtrust/internal/catalog"
	"certtrust/internal/evidence"
	"certtrust/internal/events"
	"certtrust/internal/platform/metrics"
	"certtrust/internal/project"
	"certtrust/internal/rbac"
	dErrors "certtrust/pkg/domain-errors"
	"certtrust/pkg/platform/sentinel"
	pstrings "certtrust/pkg/platform/strings"
)

// Service applies review transitions. Every mutation authorizes the actor
// first, then runs under the project lock so concurrent reviewers cannot
// race the workflow engine's aggregate gate checks.
type Service struct {
	catalog   *catalog.Catalog
	projects  project.Store
	reviews   Store
	documents evidence.Store
	locks     *project.Locks
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewService(
	cat *catalog.Catalog,
	projects project.Store,
	reviews Store,
	documents evidence.Store,
	locks *project.Locks,
	publisher events.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		catalog:   cat,
		projects:  projects,
		reviews:   reviews,
		documents: documents,
		locks:     locks,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("certtrust/review"),
	}
}

// SubmitEvidence attaches a document to an indicator review. The document
// content lives with the external upload collaborator; only metadata enters
// the core. A pending or requires-clarification review moves to in-progress
// on submission; an approved review must be reopened first.
func (s *Service) SubmitEvidence(ctx context.Context, projectID, indicatorID, filename string, actor rbac.Actor) (evidence.Document, error) {
	ctx, span := s.tracer.Start(ctx, "review.SubmitEvidence")
	defer span.End()

	if err := rbac.Require(actor.Role, rbac.OpSubmitEvidence); err != nil {
		return evidence.Document{}, err
	}
	if filename == "" {
		return evidence.Document{}, dErrors.New(dErrors.CodeValidation, "filename is required")
	}

	var doc evidence.Document
	err := s.locks.Do(projectID, func() error {
		if _, err := s.activeProject(ctx, projectID); err != nil {
			return err
		}
		if _, ok := s.catalog.Lookup(indicatorID); !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "unknown indicator %q", indicatorID)
		}
		rev, err := s.findReview(ctx, projectID, indicatorID)
		if err != nil {
			return err
		}
		if rev.Status == StatusApproved {
			return dErrors.Newf(dErrors.CodeInvalidState,
				"indicator %s is approved; reopen the review before submitting new evidence", indicatorID)
		}

		existing, err := s.documents.ListByIndicator(ctx, projectID, indicatorID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "list existing documents")
		}
		version := 1
		for _, d := range existing {
			if d.Version >= version {
				version = d.Version + 1
			}
		}

		doc = evidence.Document{
			ID:          uuid.NewString(),
			ProjectID:   projectID,
			IndicatorID: indicatorID,
			Filename:    filename,
			Version:     version,
			UploadedBy:  actor.Subject,
			UploadedAt:  time.Now().UTC(),
			OwnStatus:   evidence.StatusPending,
		}
		if err := s.documents.Save(ctx, doc); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save document")
		}

		rev.EvidenceIDs = pstrings.DedupeAndTrim(append(rev.EvidenceIDs, doc.ID))
		if rev.Status == StatusPending || rev.Status == StatusRequiresClarification {
			rev.Status = StatusInProgress
		}
		rev.UpdatedAt = time.Now().UTC()
		if err := s.reviews.Save(ctx, rev); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save review")
		}
		return nil
	})
	if err != nil {
		return evidence.Document{}, err
	}

	s.metrics.IncEvidenceSubmitted()
	s.emit(ctx, events.TypeEvidenceSubmitted, projectID, indicatorID, actor, map[string]string{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"version":     strconv.Itoa(doc.Version),
	})
	return doc, nil
}

// SetStatus moves an indicator review along the state table. Approval with
// an empty evidence set fails with a missing-evidence error; evidence-backed
// approval is a hard invariant, not a UI nicety.
func (s *Service) SetStatus(ctx context.Context, projectID, indicatorID string, newStatus Status, actor rbac.Actor, comment string) (IndicatorReview, error) {
	ctx, span := s.tracer.Start(ctx, "review.SetStatus")
	defer span.End()

	if !ValidStatus(newStatus) {
		return IndicatorReview{}, dErrors.Newf(dErrors.CodeValidation, "unknown review status %q", newStatus)
	}
	if err := rbac.Require(actor.Role, rbac.OpSetReviewStatus); err != nil {
		return IndicatorReview{}, err
	}
	if !rbac.CanSetReviewStatus(actor.Role, string(newStatus)) {
		return IndicatorReview{}, dErrors.Newf(dErrors.CodeForbidden,
			"role %q may not set review status %q", actor.Role, newStatus)
	}

	var rev IndicatorReview
	err := s.locks.Do(projectID, func() error {
		if _, err := s.activeProject(ctx, projectID); err != nil {
			return err
		}
		var err error
		rev, err = s.findReview(ctx, projectID, indicatorID)
		if err != nil {
			return err
		}
		if !CanTransition(rev.Status, newStatus) {
			return dErrors.Newf(dErrors.CodeInvalidState,
				"review %s cannot move from %s to %s", indicatorID, rev.Status, newStatus)
		}
		if newStatus == StatusApproved && len(rev.EvidenceIDs) == 0 {
			return dErrors.Newf(dErrors.CodeMissingEvidence,
				"indicator %s cannot be approved without evidence", indicatorID).
				WithDetails(indicatorID)
		}

		rev.Status = newStatus
		rev.Comment = comment
		rev.ReviewerRole = actor.Role
		rev.UpdatedAt = time.Now().UTC()
		if err := s.reviews.Save(ctx, rev); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save review")
		}
		return nil
	})
	if err != nil {
		return IndicatorReview{}, err
	}

	s.metrics.IncReviewTransition(string(newStatus))
	s.emit(ctx, events.TypeIndicatorReviewed, projectID, indicatorID, actor, map[string]string{
		"status": string(newStatus),
	})
	if newStatus == StatusRequiresClarification {
		s.emit(ctx, events.TypeClarificationRequested, projectID, indicatorID, actor, map[string]string{
			"comment": comment,
		})
	}
	return rev, nil
}

// Reopen is the explicit re-certification action: it resets a terminal
// review to pending and clears its evidence references, so a subsequent
// approval demands fresh evidence. There is no in-place rollback anywhere
// in the core; this compensating action is the only way back.
func (s *Service) Reopen(ctx context.Context, projectID, indicatorID string, actor rbac.Actor) (IndicatorReview, error) {
	ctx, span := s.tracer.Start(ctx, "review.Reopen")
	defer span.End()

	if err := rbac.Require(actor.Role, rbac.OpReopenReview); err != nil {
		return IndicatorReview{}, err
	}

	var rev IndicatorReview
	err := s.locks.Do(projectID, func() error {
		if _, err := s.activeProject(ctx, projectID); err != nil {
			return err
		}
		var err error
		rev, err = s.findReview(ctx, projectID, indicatorID)
		if err != nil {
			return err
		}
		if !Terminal(rev.Status) {
			return dErrors.Newf(dErrors.CodeInvalidState,
				"review %s is %s; only approved or rejected reviews can be reopened", indicatorID, rev.Status)
		}

		rev.Status = StatusPending
		rev.EvidenceIDs = nil
		rev.Comment = ""
		rev.ReviewerRole = actor.Role
		rev.UpdatedAt = time.Now().UTC()
		if err := s.reviews.Save(ctx, rev); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save review")
		}
		return nil
	})
	if err != nil {
		return IndicatorReview{}, err
	}

	s.logger.InfoContext(ctx, "review reopened",
		"project_id", projectID,
		"indicator_id", indicatorID,
		"role", string(actor.Role),
	)
	return rev, nil
}

// SetDocumentStatus records a reviewer's verdict on a single document,
// independent of the indicator review it supports.
func (s *Service) SetDocumentStatus(ctx context.Context, projectID, docID string, status evidence.Status, actor rbac.Actor, comment string) error {
	ctx, span := s.tracer.Start(ctx, "review.SetDocumentStatus")
	defer span.End()

	if !evidence.ValidStatus(status) {
		return dErrors.Newf(dErrors.CodeValidation, "unknown document status %q", status)
	}
	if err := rbac.Require(actor.Role, rbac.OpSetDocumentStatus); err != nil {
		return err
	}

	return s.locks.Do(projectID, func() error {
		if _, err := s.activeProject(ctx, projectID); err != nil {
			return err
		}
		if err := s.documents.SetStatus(ctx, projectID, docID, status, comment); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeNotFound, "document %s not found", docID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "set document status")
		}
		return nil
	})
}

// List returns the project's reviews in catalog order. Read-only; served
// without the project lock.
func (s *Service) List(ctx context.Context, projectID string) ([]IndicatorReview, error) {
	if _, err := s.projects.FindByID(ctx, projectID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "project %s not found", projectID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load project")
	}

	reviews, err := s.reviews.ListByProject(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list reviews")
	}

	byID := make(map[string]IndicatorReview, len(reviews))
	for _, r := range reviews {
		byID[r.IndicatorID] = r
	}
	ordered := make([]IndicatorReview, 0, len(reviews))
	for _, ind := range s.catalog.Indicators() {
		if r, ok := byID[ind.ID]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

// ListDocuments returns a project's documents, optionally filtered by
// indicator.
func (s *Service) ListDocuments(ctx context.Context, projectID, indicatorID string) ([]evidence.Document, error) {
	if _, err := s.projects.FindByID(ctx, projectID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "project %s not found", projectID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load project")
	}
	if indicatorID != "" {
		docs, err := s.documents.ListByIndicator(ctx, projectID, indicatorID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list documents")
		}
		return docs, nil
	}
	docs, err := s.documents.ListByProject(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list documents")
	}
	return docs, nil
}

func (s *Service) activeProject(ctx context.Context, projectID string) (project.Project, error) {
	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return project.Project{}, dErrors.Newf(dErrors.CodeNotFound, "project %s not found", projectID)
		}
		return project.Project{}, dErrors.Wrap(err, dErrors.CodeInternal, "load project")
	}
	if p.Archived() {
		return project.Project{}, dErrors.Newf(dErrors.CodeInvalidState,
			"project %s is archived (%s)", projectID, p.State)
	}
	return p, nil
}

func (s *Service) findReview(ctx context.Context, projectID, indicatorID string) (IndicatorReview, error) {
	rev, err := s.reviews.Find(ctx, projectID, indicatorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return IndicatorReview{}, dErrors.Newf(dErrors.CodeNotFound,
				"no review for indicator %s on project %s", indicatorID, projectID)
		}
		return IndicatorReview{}, dErrors.Wrap(err, dErrors.CodeInternal, "load review")
	}
	return rev, nil
}

func (s *Service) emit(ctx context.Context, t events.Type, projectID, indicatorID string, actor rbac.Actor, payload map[string]string) {
	event := events.New(t, projectID)
	event.IndicatorID = indicatorID
	event.Actor = actor.Subject
	event.Role = string(actor.Role)
	event.Payload = payload
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event emit failed",
			"type", t,
			"project_id", projectID,
			"error", err,
		)
	}
}
