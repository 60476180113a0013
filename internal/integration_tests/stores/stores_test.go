//go:build integration

package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certtrust/internal/certificate"
	"certtrust/internal/evidence"
	"certtrust/internal/project"
	"certtrust/internal/rbac"
	"certtrust/internal/review"
	"certtrust/internal/workflow"
	"certtrust/pkg/platform/sentinel"
	"certtrust/pkg/testutil/containers"
)

func TestPostgresStores(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	projects := project.NewPostgresStore(pg.Pool)
	reviews := review.NewPostgresStore(pg.Pool)
	documents := evidence.NewPostgresStore(pg.Pool)
	decisions := workflow.NewPostgresDecisionStore(pg.Pool)
	certs := certificate.NewPostgresStore(pg.Pool)

	t.Run("project aggregate round trip", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		p := project.New("prov-1", "Acme Mobile Money", "Acme MMC 2026")
		require.NoError(t, projects.Save(ctx, p))

		got, err := projects.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, project.StateActive, got.State)
		require.Len(t, got.Stages, len(project.Sequence))
		assert.Equal(t, project.StageActive, got.Stages[0].Status)
		assert.Equal(t, rbac.RoleMMP, got.Stages[0].AssignedRole)

		// Advancing state persists through the full-aggregate upsert.
		now := time.Now().UTC()
		got.Stages[0].Status = project.StageCompleted
		got.Stages[0].CompletedAt = &now
		got.CurrentStageIndex = 1
		got.Stages[1].Status = project.StageActive
		got.Stages[1].StartedAt = &now
		require.NoError(t, projects.Save(ctx, got))

		again, err := projects.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, again.CurrentStageIndex)
		assert.Equal(t, project.StageCompleted, again.Stages[0].Status)

		_, err = projects.FindByID(ctx, uuid.NewString())
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	})

	t.Run("list filters by provider", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		require.NoError(t, projects.Save(ctx, project.New("prov-a", "A", "a")))
		require.NoError(t, projects.Save(ctx, project.New("prov-a", "A", "a2")))
		require.NoError(t, projects.Save(ctx, project.New("prov-b", "B", "b")))

		all, err := projects.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		onlyA, err := projects.List(ctx, "prov-a")
		require.NoError(t, err)
		assert.Len(t, onlyA, 2)
	})

	t.Run("review round trip with evidence ids", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		p := project.New("prov-1", "Acme", "a")
		require.NoError(t, projects.Save(ctx, p))
		require.NoError(t, reviews.SaveAll(ctx, []review.IndicatorReview{
			{ProjectID: p.ID, IndicatorID: "FIN-001", Status: review.StatusPending, UpdatedAt: time.Now().UTC()},
			{ProjectID: p.ID, IndicatorID: "FIN-002", Status: review.StatusPending, UpdatedAt: time.Now().UTC()},
		}))

		r, err := reviews.Find(ctx, p.ID, "FIN-001")
		require.NoError(t, err)
		r.Status = review.StatusInProgress
		r.EvidenceIDs = []string{"doc-1", "doc-2"}
		r.ReviewerRole = rbac.RoleAssessor
		require.NoError(t, reviews.Save(ctx, r))

		got, err := reviews.Find(ctx, p.ID, "FIN-001")
		require.NoError(t, err)
		assert.Equal(t, review.StatusInProgress, got.Status)
		assert.Equal(t, []string{"doc-1", "doc-2"}, got.EvidenceIDs)

		list, err := reviews.ListByProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("document round trip and status", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		p := project.New("prov-1", "Acme", "a")
		require.NoError(t, projects.Save(ctx, p))

		doc := evidence.Document{
			ID:          uuid.NewString(),
			ProjectID:   p.ID,
			IndicatorID: "FIN-001",
			Filename:    "report.pdf",
			Version:     1,
			UploadedBy:  "provider-1",
			UploadedAt:  time.Now().UTC(),
			OwnStatus:   evidence.StatusPending,
		}
		require.NoError(t, documents.Save(ctx, doc))
		require.NoError(t, documents.SetStatus(ctx, p.ID, doc.ID, evidence.StatusApproved, "looks complete"))

		got, err := documents.FindByID(ctx, p.ID, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, evidence.StatusApproved, got.OwnStatus)
		assert.Equal(t, "looks complete", got.Comment)

		byIndicator, err := documents.ListByIndicator(ctx, p.ID, "FIN-001")
		require.NoError(t, err)
		assert.Len(t, byIndicator, 1)

		err = documents.SetStatus(ctx, p.ID, uuid.NewString(), evidence.StatusApproved, "")
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	})

	t.Run("decision upsert overwrites", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		p := project.New("prov-1", "Acme", "a")
		require.NoError(t, projects.Save(ctx, p))

		require.NoError(t, decisions.Save(ctx, workflow.AuditDecision{
			ProjectID: p.ID, Decision: workflow.DecisionConditional,
			DecidedBy: rbac.RoleAuditor, DecidedAt: time.Now().UTC(),
		}))
		require.NoError(t, decisions.Save(ctx, workflow.AuditDecision{
			ProjectID: p.ID, Decision: workflow.DecisionApprove, Note: "conditions met",
			DecidedBy: rbac.RoleAuditor, DecidedAt: time.Now().UTC(),
		}))

		d, err := decisions.FindByProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.DecisionApprove, d.Decision)
	})

	t.Run("certificate number uniqueness", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		p := project.New("prov-1", "Acme", "a")
		require.NoError(t, projects.Save(ctx, p))

		now := time.Now().UTC()
		cert := certificate.Certificate{
			ProjectID:  p.ID,
			Number:     "MMC20260901001",
			IssueDate:  now,
			ExpiryDate: now.AddDate(0, 24, 0),
			IssuedBy:   "auditor-1",
		}
		require.NoError(t, certs.Save(ctx, cert))

		taken, err := certs.NumberExists(ctx, cert.Number)
		require.NoError(t, err)
		assert.True(t, taken)

		got, err := certs.FindByNumber(ctx, cert.Number)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ProjectID)

		_, err = certs.FindByProject(ctx, uuid.NewString())
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	})
}
