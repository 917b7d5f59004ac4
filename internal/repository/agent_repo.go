package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawjob/backend/internal/models"
)

type AgentRepo struct {
	pool *pgxpool.Pool
}

func NewAgentRepo(pool *pgxpool.Pool) *AgentRepo {
	return &AgentRepo{pool: pool}
}

func (r *AgentRepo) Create(ctx context.Context, a *models.Agent) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO agents (owner_id, name, description, agent_type, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, a.OwnerID, a.Name, a.Description, a.AgentType, a.IsActive).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AgentRepo) GetByID(ctx context.Context, id int64) (*models.Agent, error) {
	var a models.Agent
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, agent_type, is_active, created_at, updated_at
		FROM agents WHERE id = $1
	`, id).Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.AgentType, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepo) ListByOwnerID(ctx context.Context, ownerID int64) ([]*models.Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, description, agent_type, is_active, created_at, updated_at
		FROM agents WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.AgentType, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}

// ListActive is the public candidate directory.
func (r *AgentRepo) ListActive(ctx context.Context) ([]*models.Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, description, agent_type, is_active, created_at, updated_at
		FROM agents WHERE is_active ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.AgentType, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}
