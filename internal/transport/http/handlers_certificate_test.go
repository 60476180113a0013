package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certtrust/internal/catalog"
	"certtrust/internal/certificate"
	"certtrust/internal/events"
	"certtrust/internal/project"
	"certtrust/internal/rbac"
	"certtrust/internal/workflow"
	"certtrust/pkg/testutil"
)

// newCertificateHandler builds the handler over in-memory stores, with the
// given project pre-positioned at the certification stage and an approving
// decision on file.
func newCertificateHandler(t *testing.T) (*CertificateHandler, string) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projects := project.NewInMemoryStore()
	decisions := workflow.NewInMemoryDecisionStore()
	certs := certificate.NewInMemoryStore()

	p := project.New("prov-1", "Acme Mobile Money", "Acme MMC 2026")
	now := time.Now().UTC()
	for i := 0; i < len(project.Sequence)-1; i++ {
		p.Stages[i].Status = project.StageCompleted
		p.Stages[i].CompletedAt = &now
	}
	p.CurrentStageIndex = len(project.Sequence) - 1
	p.CurrentStage().Status = project.StageActive
	p.CurrentStage().StartedAt = &now
	require.NoError(t, projects.Save(context.Background(), p))
	require.NoError(t, decisions.Save(context.Background(), workflow.AuditDecision{
		ProjectID: p.ID,
		Decision:  workflow.DecisionApprove,
		DecidedBy: rbac.RoleAuditor,
		DecidedAt: now,
	}))

	svc := certificate.NewService(projects, decisions, certs, project.NewLocks(), events.Nop{}, 24, logger, nil)
	return NewCertificateHandler(svc, catalog.Default(), logger), p.ID
}

func TestCertificateHandler(t *testing.T) {
	handler, projectID := newCertificateHandler(t)
	router := chi.NewRouter()
	handler.Register(router)

	testutil.Given(t, "a project at the certification stage with an approving decision", func(t *testing.T) {
		testutil.When(t, "the auditor issues the certificate", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPost, "/projects/"+projectID+"/certificate")
			req = testutil.AsActor(req, rbac.RoleAuditor, "auditor-1")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the certificate is created with a dated number", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusCreated)
				cert := testutil.UnmarshalResponse[certificate.Certificate](t, rr)
				assert.Regexp(t, `^MMC\d{11}$`, cert.Number)
				assert.Equal(t, cert.IssueDate.AddDate(0, 24, 0), cert.ExpiryDate)
			})
		})

		testutil.When(t, "an assessor tries to issue", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPost, "/projects/"+projectID+"/certificate")
			req = testutil.AsActor(req, rbac.RoleAssessor, "assessor-1")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the request is forbidden", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusForbidden)
				testutil.AssertErrorCode(t, rr, "forbidden")
			})
		})

		testutil.When(t, "fetching the certificate back", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, "/projects/"+projectID+"/certificate")
			req = testutil.AsActor(req, rbac.RoleMMP, "provider-1")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the stored certificate is returned", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				cert := testutil.UnmarshalResponse[certificate.Certificate](t, rr)
				assert.Equal(t, projectID, cert.ProjectID)
			})
		})
	})
}
