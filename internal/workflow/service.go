// Package workflow drives projects through the certification pipeline: it
// creates projects, evaluates stage gates, advances stages, and records the
// auditor's verdict. It is the only writer of Project.CurrentStageIndex.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"certtrust/internal/catalog"
	"certtrust/internal/evidence"
	"certtrust/internal/events"
	"certtrust/internal/platform/metrics"
	"certtrust/internal/platform/redis"
	"certtrust/internal/project"
	"certtrust/internal/rbac"
	"certtrust/internal/review"
	dErrors "certtrust/pkg/domain-errors"
	"certtrust/pkg/platform/sentinel"
)

const progressCachePrefix = "certtrust:progress:"

// Service is the stage progression engine.
type Service struct {
	catalog   *catalog.Catalog
	projects  project.Store
	reviews   review.Store
	documents evidence.Store
	decisions DecisionStore
	locks     *project.Locks
	publisher events.Publisher
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewService(
	cat *catalog.Catalog,
	projects project.Store,
	reviews review.Store,
	documents evidence.Store,
	decisions DecisionStore,
	locks *project.Locks,
	publisher events.Publisher,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		catalog:   cat,
		projects:  projects,
		reviews:   reviews,
		documents: documents,
		decisions: decisions,
		locks:     locks,
		publisher: publisher,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("certtrust/workflow"),
	}
}

// CreateProject opens a certification project at the application stage and
// materializes one pending review per catalog indicator. The review set is
// fixed at creation; catalog changes never retrofit existing projects.
func (s *Service) CreateProject(ctx context.Context, providerID, provider, name string, actor rbac.Actor) (project.Project, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.CreateProject")
	defer span.End()

	if err := rbac.Require(actor.Role, rbac.OpCreateProject); err != nil {
		return project.Project{}, err
	}
	if providerID == "" || provider == "" || name == "" {
		return project.Project{}, dErrors.New(dErrors.CodeValidation,
			"provider_id, provider and name are required")
	}

	p := project.New(providerID, provider, name)
	if err := s.projects.Save(ctx, p); err != nil {
		return project.Project{}, dErrors.Wrap(err, dErrors.CodeInternal, "save project")
	}

	now := time.Now().UTC()
	reviews := make([]review.IndicatorReview, 0, s.catalog.Size())
	for _, ind := range s.catalog.Indicators() {
		reviews = append(reviews, review.IndicatorReview{
			ProjectID:   p.ID,
			IndicatorID: ind.ID,
			Status:      review.StatusPending,
			UpdatedAt:   now,
		})
	}
	if err := s.reviews.SaveAll(ctx, reviews); err != nil {
		return project.Project{}, dErrors.Wrap(err, dErrors.CodeInternal, "seed indicator reviews")
	}

	s.metrics.IncProjectsCreated()
	s.emit(ctx, events.TypeProjectCreated, p.ID, actor, map[string]string{
		"provider": provider,
		"name":     name,
	})
	s.logger.InfoContext(ctx, "project created",
		"project_id", p.ID,
		"provider_id", providerID,
		"indicators", s.catalog.Size(),
	)
	return p, nil
}

// Advance completes the current stage and activates the next one, provided
// the current stage's gate is satisfied. The stage index only ever grows;
// there is no stage rollback, only the review-level reopen action.
func (s *Service) Advance(ctx context.Context, projectID string, actor rbac.Actor) (project.Project, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Advance")
	defer span.End()

	if err := rbac.Require(actor.Role, rbac.OpAdvanceStage); err != nil {
		return project.Project{}, err
	}

	var p project.Project
	err := s.locks.Do(projectID, func() error {
		var err error
		p, err = s.activeProject(ctx, projectID)
		if err != nil {
			return err
		}

		stage := p.CurrentStage()
		if !stageOperableBy(stage.StageID, actor.Role) {
			return dErrors.Newf(dErrors.CodeForbidden,
				"role %q does not operate the %s stage", actor.Role, stage.StageID)
		}
		if p.AtFinalStage() {
			return dErrors.New(dErrors.CodeInvalidState,
				"project is at the certification stage; issue the certificate to complete it")
		}

		in, err := s.gatherGateInput(ctx, p)
		if err != nil {
			return err
		}
		if err := evaluateGate(s.catalog, in); err != nil {
			s.metrics.IncGateFailure(string(stage.StageID))
			// Outstanding clarifications block the assessment stage
			// visibly rather than leaving it active.
			if stage.StageID == project.StageAssessment && hasOutstandingClarifications(in.reviews) {
				if stage.Status != project.StageBlocked {
					stage.Status = project.StageBlocked
					if saveErr := s.projects.Save(ctx, p); saveErr != nil {
						return dErrors.Wrap(saveErr, dErrors.CodeInternal, "save blocked stage")
					}
				}
			}
			return err
		}

		now := time.Now().UTC()
		stage.Status = project.StageCompleted
		stage.CompletedAt = &now
		p.CurrentStageIndex++
		next := p.CurrentStage()
		next.Status = project.StageActive
		next.StartedAt = &now
		if err := s.projects.Save(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save project")
		}
		return nil
	})
	if err != nil {
		return project.Project{}, err
	}

	s.metrics.IncStageAdvance(string(p.CurrentStage().StageID))
	s.invalidateProgress(ctx, projectID)
	s.emit(ctx, events.TypeStageAdvanced, projectID, actor, map[string]string{
		"stage": string(p.CurrentStage().StageID),
	})
	s.logger.InfoContext(ctx, "stage advanced",
		"project_id", projectID,
		"stage", string(p.CurrentStage().StageID),
		"role", string(actor.Role),
	)
	return p, nil
}

// RecordAuditDecision records the auditor's verdict on a project at the
// audit stage. A reject verdict archives the project immediately; approve
// and conditional leave it active for issuance. Re-recording overwrites the
// previous verdict as long as the project is still active.
func (s *Service) RecordAuditDecision(ctx context.Context, projectID string, decision Decision, note string, actor rbac.Actor) (AuditDecision, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.RecordAuditDecision")
	defer span.End()

	if !ValidDecision(decision) {
		return AuditDecision{}, dErrors.Newf(dErrors.CodeValidation, "unknown decision %q", decision)
	}
	if err := rbac.Require(actor.Role, rbac.OpRecordAuditDecision); err != nil {
		return AuditDecision{}, err
	}

	var d AuditDecision
	err := s.locks.Do(projectID, func() error {
		p, err := s.activeProject(ctx, projectID)
		if err != nil {
			return err
		}
		if stage := p.CurrentStage().StageID; stage != project.StageAudit {
			return dErrors.Newf(dErrors.CodeInvalidState,
				"decisions are recorded at the audit stage; project is at %s", stage)
		}

		d = AuditDecision{
			ProjectID: projectID,
			Decision:  decision,
			Note:      note,
			DecidedBy: actor.Role,
			DecidedAt: time.Now().UTC(),
		}
		if err := s.decisions.Save(ctx, d); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save decision")
		}

		if decision == DecisionReject {
			now := time.Now().UTC()
			stage := p.CurrentStage()
			stage.Status = project.StageCompleted
			stage.CompletedAt = &now
			p.State = project.StateRejected
			if err := s.projects.Save(ctx, p); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "archive rejected project")
			}
		}
		return nil
	})
	if err != nil {
		return AuditDecision{}, err
	}

	s.invalidateProgress(ctx, projectID)
	s.emit(ctx, events.TypeAuditDecisionRecorded, projectID, actor, map[string]string{
		"decision": string(decision),
	})
	return d, nil
}

// Progress is the display-only completion snapshot. It never feeds gate
// decisions: a project can read near-complete and still be blocked.
type Progress struct {
	ProjectID   string              `json:"project_id"`
	Stage       project.StageID     `json:"stage"`
	StageStatus project.StageStatus `json:"stage_status"`
	Approved    int                 `json:"approved"`
	Total       int                 `json:"total"`
	Percent     int                 `json:"percent"`
}

// GetProgress computes the project's approved-indicator percentage, served
// from the Redis cache when one is configured. Cache failures degrade to a
// live computation.
func (s *Service) GetProgress(ctx context.Context, projectID string) (Progress, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.GetProgress")
	defer span.End()

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, progressCachePrefix+projectID).Bytes()
		if err == nil {
			var cached Progress
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Progress{}, dErrors.Newf(dErrors.CodeNotFound, "project %s not found", projectID)
		}
		return Progress{}, dErrors.Wrap(err, dErrors.CodeInternal, "load project")
	}
	reviews, err := s.reviews.ListByProject(ctx, projectID)
	if err != nil {
		return Progress{}, dErrors.Wrap(err, dErrors.CodeInternal, "list reviews")
	}

	approved := 0
	for _, r := range reviews {
		if r.Status == review.StatusApproved {
			approved++
		}
	}
	total := s.catalog.Size()
	prog := Progress{
		ProjectID:   projectID,
		Stage:       p.CurrentStage().StageID,
		StageStatus: p.CurrentStage().Status,
		Approved:    approved,
		Total:       total,
	}
	if total > 0 {
		prog.Percent = approved * 100 / total
	}

	if s.cache != nil {
		if raw, err := json.Marshal(prog); err == nil {
			if err := s.cache.Set(ctx, progressCachePrefix+projectID, raw, s.cacheTTL).Err(); err != nil {
				s.logger.WarnContext(ctx, "progress cache write failed",
					"project_id", projectID, "error", err)
			}
		}
	}
	return prog, nil
}

// GetProject returns the full project aggregate.
func (s *Service) GetProject(ctx context.Context, projectID string) (project.Project, error) {
	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return project.Project{}, dErrors.Newf(dErrors.CodeNotFound, "project %s not found", projectID)
		}
		return project.Project{}, dErrors.Wrap(err, dErrors.CodeInternal, "load project")
	}
	return p, nil
}

// ListProjects returns projects, optionally filtered to one provider.
func (s *Service) ListProjects(ctx context.Context, providerID string) ([]project.Project, error) {
	projects, err := s.projects.List(ctx, providerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list projects")
	}
	return projects, nil
}

// StageHistory returns the project's stage records in pipeline order.
func (s *Service) StageHistory(ctx context.Context, projectID string) ([]project.StageRecord, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return p.Stages, nil
}

// GetDecision returns the recorded audit decision, if any.
func (s *Service) GetDecision(ctx context.Context, projectID string) (AuditDecision, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return AuditDecision{}, err
	}
	d, err := s.decisions.FindByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return AuditDecision{}, dErrors.Newf(dErrors.CodeNotFound,
				"no decision recorded for project %s", projectID)
		}
		return AuditDecision{}, dErrors.Wrap(err, dErrors.CodeInternal, "load decision")
	}
	return d, nil
}

// stageOperableBy reports whether role may operate the stage. Admin operates
// every stage.
func stageOperableBy(stage project.StageID, role rbac.Role) bool {
	return role == rbac.RoleAdmin || project.OperatorFor(stage) == role
}

func (s *Service) gatherGateInput(ctx context.Context, p project.Project) (gateInput, error) {
	reviews, err := s.reviews.ListByProject(ctx, p.ID)
	if err != nil {
		return gateInput{}, dErrors.Wrap(err, dErrors.CodeInternal, "list reviews")
	}
	docs, err := s.documents.ListByProject(ctx, p.ID)
	if err != nil {
		return gateInput{}, dErrors.Wrap(err, dErrors.CodeInternal, "list documents")
	}
	in := gateInput{project: p, reviews: reviews, documents: docs}

	d, err := s.decisions.FindByProject(ctx, p.ID)
	switch {
	case err == nil:
		in.decision = &d
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return gateInput{}, dErrors.Wrap(err, dErrors.CodeInternal, "load decision")
	}
	return in, nil
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

func (s *Service) invalidateProgress(ctx context.Context, projectID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, progressCachePrefix+projectID).Err(); err != nil {
		s.logger.WarnContext(ctx, "progress cache invalidation failed",
			"project_id", projectID, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, t events.Type, projectID string, actor rbac.Actor, payload map[string]string) {
	event := events.New(t, projectID)
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
