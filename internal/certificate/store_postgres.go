package certificate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"certtrust/pkg/platform/sentinel"
)

// PostgresStore persists certificates. The UNIQUE constraint on number is
// the last line of defence against sequence races across processes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, c Certificate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO certificates (project_id, number, issue_date, expiry_date, issued_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id) DO NOTHING`,
		c.ProjectID, c.Number, c.IssueDate, c.ExpiryDate, c.IssuedBy,
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByProject(ctx context.Context, projectID string) (Certificate, error) {
	return s.findOne(ctx, `
		SELECT project_id, number, issue_date, expiry_date, issued_by
		FROM certificates WHERE project_id = $1`, projectID)
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (Certificate, error) {
	return s.findOne(ctx, `
		SELECT project_id, number, issue_date, expiry_date, issued_by
		FROM certificates WHERE number = $1`, number)
}

func (s *PostgresStore) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM certificates WHERE number = $1)`, number,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check certificate number: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) findOne(ctx context.Context, query, arg string) (Certificate, error) {
	var c Certificate
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&c.ProjectID, &c.Number, &c.IssueDate, &c.ExpiryDate, &c.IssuedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Certificate{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Certificate{}, fmt.Errorf("find certificate: %w", err)
	}
	return c, nil
}
