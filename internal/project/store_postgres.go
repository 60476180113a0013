package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"certtrust/internal/rbac"
	"certtrust/pkg/platform/sentinel"
)

// PostgresStore persists projects and their stage records. Save replaces
// the stage records wholesale inside one transaction; the aggregate is only
// written under the project lock so last-write-wins is safe.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, p Project) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save project: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO projects (id, provider_id, provider, name, created_at, current_stage_index, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET current_stage_index = EXCLUDED.current_stage_index, state = EXCLUDED.state`,
		p.ID, p.ProviderID, p.Provider, p.Name, p.CreatedAt, p.CurrentStageIndex, string(p.State),
	)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM stage_records WHERE project_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clear stage records: %w", err)
	}
	for i, st := range p.Stages {
		_, err := tx.Exec(ctx, `
			INSERT INTO stage_records (project_id, position, stage_id, status, assigned_role, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, i, string(st.StageID), string(st.Status), string(st.AssignedRole), st.StartedAt, st.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("insert stage record %s: %w", st.StageID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Project, error) {
	var p Project
	var state string
	err := s.pool.QueryRow(ctx, `
		SELECT id, provider_id, provider, name, created_at, current_stage_index, state
		FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.ProviderID, &p.Provider, &p.Name, &p.CreatedAt, &p.CurrentStageIndex, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, sentinel.ErrNotFound
		}
		return Project{}, fmt.Errorf("find project: %w", err)
	}
	p.State = State(state)

	p.Stages, err = s.loadStages(ctx, id)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context, providerID string) ([]Project, error) {
	query := `SELECT id, provider_id, provider, name, created_at, current_stage_index, state
		FROM projects`
	args := []any{}
	if providerID != "" {
		query += ` WHERE provider_id = $1`
		args = append(args, providerID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		var state string
		if err := rows.Scan(&p.ID, &p.ProviderID, &p.Provider, &p.Name, &p.CreatedAt, &p.CurrentStageIndex, &state); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.State = State(state)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Stages, err = s.loadStages(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) loadStages(ctx context.Context, projectID string) ([]StageRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stage_id, status, assigned_role, started_at, completed_at
		FROM stage_records WHERE project_id = $1 ORDER BY position`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("load stage records: %w", err)
	}
	defer rows.Close()

	var stages []StageRecord
	for rows.Next() {
		var st StageRecord
		var stageID, status, role string
		if err := rows.Scan(&stageID, &status, &role, &st.StartedAt, &st.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan stage record: %w", err)
		}
		st.StageID = StageID(stageID)
		st.Status = StageStatus(status)
		st.AssignedRole = rbac.Role(role)
		stages = append(stages, st)
	}
	return stages, rows.Err()
}
