package certificate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"certtrust/internal/events"
	"certtrust/internal/platform/metrics"
	"certtrust/internal/project"
	"certtrust/internal/rbac"
	"certtrust/internal/workflow"
	dErrors "certtrust/pkg/domain-errors"
	"certtrust/pkg/platform/sentinel"
)

// Service issues certificates. Issuance is idempotent at the operation
// level: once a project holds a certificate, Issue returns it unchanged no
// matter how often it is called.
type Service struct {
	projects       project.Store
	decisions      workflow.DecisionStore
	certs          Store
	locks          *project.Locks
	publisher      events.Publisher
	validityMonths int
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

func NewService(
	projects project.Store,
	decisions workflow.DecisionStore,
	certs Store,
	locks *project.Locks,
	publisher events.Publisher,
	validityMonths int,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		projects:       projects,
		decisions:      decisions,
		certs:          certs,
		locks:          locks,
		publisher:      publisher,
		validityMonths: validityMonths,
		logger:         logger,
		metrics:        m,
		tracer:         otel.Tracer("certtrust/certificate"),
	}
}

// Issue creates the project's certificate, completes the certification
// stage, and archives the project as certified. Expiry is a calendar offset
// from the issue date, so a certificate issued on the 29th of February lands
// on the calendar-correct anniversary.
func (s *Service) Issue(ctx context.Context, projectID string, actor rbac.Actor) (Certificate, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Issue")
	defer span.End()

	if err := rbac.Require(actor.Role, rbac.OpIssueCertificate); err != nil {
		return Certificate{}, err
	}

	var (
		cert   Certificate
		reused bool
	)
	err := s.locks.Do(projectID, func() error {
		p, err := s.projects.FindByID(ctx, projectID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeNotFound, "project %s not found", projectID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load project")
		}

		// Idempotent replay: the certificate, once issued, is the answer.
		existing, err := s.certs.FindByProject(ctx, projectID)
		switch {
		case err == nil:
			cert = existing
			reused = true
			return nil
		case errors.Is(err, sentinel.ErrNotFound):
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "load certificate")
		}

		if p.State == project.StateRejected {
			return dErrors.New(dErrors.CodeInvalidState, "project was rejected; no certificate can be issued")
		}
		if stage := p.CurrentStage().StageID; stage != project.StageCertification {
			return dErrors.Newf(dErrors.CodeInvalidState,
				"certificates are issued at the certification stage; project is at %s", stage)
		}

		d, err := s.decisions.FindByProject(ctx, projectID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeGateNotSatisfied, "no certification decision recorded")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load decision")
		}
		if d.Decision == workflow.DecisionReject {
			return dErrors.New(dErrors.CodeGateNotSatisfied, "certification was rejected by the auditor")
		}

		now := time.Now().UTC()
		number, err := nextNumber(ctx, s.certs, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "allocate certificate number")
		}
		cert = Certificate{
			ProjectID:  projectID,
			Number:     number,
			IssueDate:  now,
			ExpiryDate: now.AddDate(0, s.validityMonths, 0),
			IssuedBy:   actor.Subject,
		}
		if err := s.certs.Save(ctx, cert); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save certificate")
		}

		stage := p.CurrentStage()
		stage.Status = project.StageCompleted
		stage.CompletedAt = &now
		p.State = project.StateCertified
		if err := s.projects.Save(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "save project")
		}
		return nil
	})
	if err != nil {
		return Certificate{}, err
	}
	if reused {
		return cert, nil
	}

	s.metrics.IncCertificatesIssued()
	event := events.New(events.TypeCertificateIssued, projectID)
	event.Actor = actor.Subject
	event.Role = string(actor.Role)
	event.Payload = map[string]string{
		"number":      cert.Number,
		"expiry_date": cert.ExpiryDate.Format(time.RFC3339),
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event emit failed",
			"type", events.TypeCertificateIssued,
			"project_id", projectID,
			"error", err,
		)
	}
	s.logger.InfoContext(ctx, "certificate issued",
		"project_id", projectID,
		"number", cert.Number,
		"expiry", cert.ExpiryDate,
	)
	return cert, nil
}

// Get returns the project's certificate.
func (s *Service) Get(ctx context.Context, projectID string) (Certificate, error) {
	cert, err := s.certs.FindByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Certificate{}, dErrors.Newf(dErrors.CodeNotFound,
				"no certificate issued for project %s", projectID)
		}
		return Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "load certificate")
	}
	return cert, nil
}

// GetByNumber looks a certificate up by its public number, for verification
// by third parties.
func (s *Service) GetByNumber(ctx context.Context, number string) (Certificate, error) {
	cert, err := s.certs.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Certificate{}, dErrors.Newf(dErrors.CodeNotFound, "certificate %s not found", number)
		}
		return Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "load certificate")
	}
	return cert, nil
}
