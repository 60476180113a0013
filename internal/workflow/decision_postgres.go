package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"certtrust/internal/rbac"
	"certtrust/pkg/platform/sentinel"
)

// PostgresDecisionStore persists audit decisions.
type PostgresDecisionStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDecisionStore(pool *pgxpool.Pool) *PostgresDecisionStore {
	return &PostgresDecisionStore{pool: pool}
}

func (s *PostgresDecisionStore) Save(ctx context.Context, d AuditDecision) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_decisions (project_id, decision, note, decided_by, decided_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id) DO UPDATE SET
			decision = EXCLUDED.decision,
			note = EXCLUDED.note,
			decided_by = EXCLUDED.decided_by,
			decided_at = EXCLUDED.decided_at`,
		d.ProjectID, string(d.Decision), d.Note, string(d.DecidedBy), d.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert audit decision: %w", err)
	}
	return nil
}

func (s *PostgresDecisionStore) FindByProject(ctx context.Context, projectID string) (AuditDecision, error) {
	var d AuditDecision
	var decision, decidedBy string
	err := s.pool.QueryRow(ctx, `
		SELECT project_id, decision, note, decided_by, decided_at
		FROM audit_decisions WHERE project_id = $1`, projectID,
	).Scan(&d.ProjectID, &decision, &d.Note, &decidedBy, &d.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuditDecision{}, sentinel.ErrNotFound
		}
		return AuditDecision{}, fmt.Errorf("find audit decision: %w", err)
	}
	d.Decision = Decision(decision)
	d.DecidedBy = rbac.Role(decidedBy)
	return d, nil
}
