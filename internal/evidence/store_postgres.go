package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"certtrust/pkg/platform/sentinel"
)

// PostgresStore persists documents in the documents table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, doc Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, project_id, indicator_id, filename, version, uploaded_by, uploaded_at, own_status, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.ProjectID, doc.IndicatorID, doc.Filename, doc.Version,
		doc.UploadedBy, doc.UploadedAt, string(doc.OwnStatus), doc.Comment,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, projectID, docID string) (Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, project_id, indicator_id, filename, version, uploaded_by, uploaded_at, own_status, comment
		FROM documents WHERE project_id = $1 AND id = $2`,
		projectID, docID,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, sentinel.ErrNotFound
		}
		return Document{}, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListByProject(ctx context.Context, projectID string) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, indicator_id, filename, version, uploaded_by, uploaded_at, own_status, comment
		FROM documents WHERE project_id = $1 ORDER BY uploaded_at`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (s *PostgresStore) ListByIndicator(ctx context.Context, projectID, indicatorID string) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, indicator_id, filename, version, uploaded_by, uploaded_at, own_status, comment
		FROM documents WHERE project_id = $1 AND indicator_id = $2 ORDER BY version`,
		projectID, indicatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents by indicator: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (s *PostgresStore) SetStatus(ctx context.Context, projectID, docID string, status Status, comment string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET own_status = $3, comment = $4
		WHERE project_id = $1 AND id = $2`,
		projectID, docID, string(status), comment,
	)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	var status string
	err := row.Scan(&doc.ID, &doc.ProjectID, &doc.IndicatorID, &doc.Filename,
		&doc.Version, &doc.UploadedBy, &doc.UploadedAt, &status, &doc.Comment)
	if err != nil {
		return Document{}, err
	}
	doc.OwnStatus = Status(status)
	return doc, nil
}

func collectDocuments(rows pgx.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
