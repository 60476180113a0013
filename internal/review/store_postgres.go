package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"certtrust/internal/rbac"
	"certtrust/pkg/platform/sentinel"
)

// PostgresStore persists indicator reviews.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, r IndicatorReview) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indicator_reviews (project_id, indicator_id, status, evidence_ids, comment, reviewer_role, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (project_id, indicator_id) DO UPDATE SET
			status = EXCLUDED.status,
			evidence_ids = EXCLUDED.evidence_ids,
			comment = EXCLUDED.comment,
			reviewer_role = EXCLUDED.reviewer_role,
			updated_at = EXCLUDED.updated_at`,
		r.ProjectID, r.IndicatorID, string(r.Status), r.EvidenceIDs, r.Comment, string(r.ReviewerRole), r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert indicator review: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveAll(ctx context.Context, reviews []IndicatorReview) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save reviews: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range reviews {
		_, err := tx.Exec(ctx, `
			INSERT INTO indicator_reviews (project_id, indicator_id, status, evidence_ids, comment, reviewer_role, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ProjectID, r.IndicatorID, string(r.Status), r.EvidenceIDs, r.Comment, string(r.ReviewerRole), r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert review %s: %w", r.IndicatorID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Find(ctx context.Context, projectID, indicatorID string) (IndicatorReview, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT project_id, indicator_id, status, evidence_ids, comment, reviewer_role, updated_at
		FROM indicator_reviews WHERE project_id = $1 AND indicator_id = $2`,
		projectID, indicatorID,
	)
	r, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IndicatorReview{}, sentinel.ErrNotFound
		}
		return IndicatorReview{}, fmt.Errorf("find review: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByProject(ctx context.Context, projectID string) ([]IndicatorReview, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT project_id, indicator_id, status, evidence_ids, comment, reviewer_role, updated_at
		FROM indicator_reviews WHERE project_id = $1 ORDER BY indicator_id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []IndicatorReview
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReview(row pgx.Row) (IndicatorReview, error) {
	var r IndicatorReview
	var status, role string
	err := row.Scan(&r.ProjectID, &r.IndicatorID, &status, &r.EvidenceIDs, &r.Comment, &role, &r.UpdatedAt)
	if err != nil {
		return IndicatorReview{}, err
	}
	r.Status = Status(status)
	r.ReviewerRole = rbac.Role(role)
	return r, nil
}
