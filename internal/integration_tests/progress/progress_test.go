//go:build integration

package progress

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certtrust/internal/catalog"
	"certtrust/internal/events"
	"certtrust/internal/evidence"
	platformredis "certtrust/internal/platform/redis"
	"certtrust/internal/project"
	"certtrust/internal/rbac"
	"certtrust/internal/review"
	"certtrust/internal/workflow"
	"certtrust/pkg/testutil/containers"
)

func TestProgressCache(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	cache, err := platformredis.New(rc.URL)
	require.NoError(t, err)

	cat := catalog.Default()
	projects := project.NewInMemoryStore()
	reviews := review.NewInMemoryStore()
	svc := workflow.NewService(
		cat,
		projects,
		reviews,
		evidence.NewInMemoryStore(),
		workflow.NewInMemoryDecisionStore(),
		project.NewLocks(),
		events.Nop{},
		cache,
		time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		nil,
	)

	mmp := rbac.Actor{Role: rbac.RoleMMP, Subject: "provider-1"}
	p, err := svc.CreateProject(ctx, "prov-1", "Acme Mobile Money", "Acme MMC 2026", mmp)
	require.NoError(t, err)

	// First read computes and caches the snapshot.
	prog, err := svc.GetProgress(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, prog.Percent)

	keys, err := rc.Client.Keys(ctx, "certtrust:progress:*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	// A stale snapshot is served until invalidation; the cache never feeds
	// gate decisions, only this display read.
	rs, err := reviews.ListByProject(ctx, p.ID)
	require.NoError(t, err)
	r := rs[0]
	r.Status = review.StatusApproved
	r.EvidenceIDs = []string{"doc-1"}
	require.NoError(t, reviews.Save(ctx, r))

	cached, err := svc.GetProgress(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cached.Approved)

	require.NoError(t, rc.FlushAll(ctx))
	fresh, err := svc.GetProgress(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Approved)
}
