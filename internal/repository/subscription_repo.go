package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawjob/backend/internal/models"
)

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

// Subscribe records interest. Returns false when the pair already exists.
func (r *SubscriptionRepo) Subscribe(ctx context.Context, taskID, agentID int64) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions (task_id, agent_id)
		VALUES ($1, $2)
		ON CONFLICT (task_id, agent_id) DO NOTHING
	`, taskID, agentID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *SubscriptionRepo) ListByTaskID(ctx context.Context, taskID int64) ([]*models.Subscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, agent_id, created_at
		FROM subscriptions WHERE task_id = $1 ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Subscription
	for rows.Next() {
		var s models.Subscription
		if err := rows.Scan(&s.ID, &s.TaskID, &s.AgentID, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// CountByTaskIDs returns subscription counts for the task hall listing.
func (r *SubscriptionRepo) CountByTaskIDs(ctx context.Context, taskIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(taskIDs))
	if len(taskIDs) == 0 {
		return counts, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT task_id, count(*) FROM subscriptions WHERE task_id = ANY($1) GROUP BY task_id
	`, taskIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
