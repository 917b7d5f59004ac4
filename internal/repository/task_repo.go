package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawjob/backend/internal/models"
)

const taskCols = `id, title, description, task_type, priority, status, owner_id, agent_id, creator_agent_id, reward_points, completion_webhook_url, invited_agent_ids, result_summary, evidence, location, duration_estimate, skills, submitted_at, verification_deadline_at, completed_at, timeout_job_id, version, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.TaskType, &t.Priority, &t.Status, &t.OwnerID, &t.AgentID, &t.CreatorAgentID, &t.RewardPoints, &t.CompletionWebhookURL, &t.InvitedAgentIDs, &t.ResultSummary, &t.Evidence, &t.Location, &t.DurationEstimate, &t.Skills, &t.SubmittedAt, &t.VerificationDeadlineAt, &t.CompletedAt, &t.TimeoutJobID, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, task_type, priority, status, owner_id, agent_id, creator_agent_id, reward_points, completion_webhook_url, invited_agent_ids, location, duration_estimate, skills)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, version, created_at, updated_at
	`, t.Title, t.Description, t.TaskType, t.Priority, t.Status, t.OwnerID, t.AgentID, t.CreatorAgentID, t.RewardPoints, t.CompletionWebhookURL, t.InvitedAgentIDs, t.Location, t.DurationEstimate, t.Skills).Scan(&t.ID, &t.Version, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = $1`, id))
}

// List returns a page of tasks plus the unpaged total. An empty status
// matches every status.
func (r *TaskRepo) List(ctx context.Context, status string, skip, limit int) ([]*models.Task, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM tasks WHERE ($1 = '' OR status = $1)
	`, status).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskCols+` FROM tasks
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC OFFSET $2 LIMIT $3
	`, status, skip, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, t)
	}
	return list, total, rows.Err()
}

func (r *TaskRepo) ListByOwnerID(ctx context.Context, ownerID int64) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskCols+` FROM tasks WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *TaskRepo) ListByAgentID(ctx context.Context, agentID int64) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskCols+` FROM tasks WHERE agent_id = $1 OR creator_agent_id = $1 ORDER BY created_at DESC
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// ClaimCompletion moves a task into pending_verification and binds the agent
// in one statement. The guard admits open and rejected tasks only, and an
// already-bound agent must match. Returns (nil, nil) when the guard misses,
// meaning someone else got there first or the task moved on.
func (r *TaskRepo) ClaimCompletion(ctx context.Context, taskID, agentID int64, submittedAt, deadline time.Time, summary string, evidence []byte) (*models.Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks SET agent_id = COALESCE(agent_id, $2), status = 'pending_verification', submitted_at = $3, verification_deadline_at = $4, result_summary = $5, evidence = $6, version = version + 1, updated_at = now()
		WHERE id = $1 AND status IN ('open', 'rejected') AND (agent_id IS NULL OR agent_id = $2)
		RETURNING `+taskCols+`
	`, taskID, agentID, submittedAt, deadline, summary, evidence))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// MarkSettled finalizes a pending_verification task as confirmed or
// auto_confirmed inside the given transaction. Returns false when the task
// is no longer pending.
func (r *TaskRepo) MarkSettled(ctx context.Context, tx pgx.Tx, taskID int64, status string, completedAt time.Time) (bool, error) {
	ct, err := tx.Exec(ctx, `
		UPDATE tasks SET status = $2, completed_at = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = 'pending_verification'
	`, taskID, status, completedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MarkRejected sends a pending_verification task back for rework. The agent
// binding survives so the same agent can resubmit.
func (r *TaskRepo) MarkRejected(ctx context.Context, taskID int64) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = 'rejected', verification_deadline_at = NULL, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = 'pending_verification'
	`, taskID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *TaskRepo) MarkCancelled(ctx context.Context, taskID int64) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = 'cancelled', version = version + 1, updated_at = now()
		WHERE id = $1 AND status = 'open'
	`, taskID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *TaskRepo) GetTimeoutJobID(ctx context.Context, taskID int64) (*int64, error) {
	var jobID *int64
	err := r.pool.QueryRow(ctx, `SELECT timeout_job_id FROM tasks WHERE id = $1`, taskID).Scan(&jobID)
	if err != nil {
		return nil, err
	}
	return jobID, nil
}

// SetTimeoutJobID records (or clears, with nil) the queue job armed to
// auto-confirm this task.
func (r *TaskRepo) SetTimeoutJobID(ctx context.Context, taskID int64, jobID *int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET timeout_job_id = $2, updated_at = now() WHERE id = $1
	`, taskID, jobID)
	return err
}
