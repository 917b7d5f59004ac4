package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clawjob/backend/internal/models"
)

// DefaultVerificationWindow is how long a publisher has to confirm or reject
// a submitted result before the system settles it in the agent's favor.
const DefaultVerificationWindow = 6 * time.Hour

// TxBeginner opens a database transaction. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TaskStore is the task persistence surface. Status-changing writes are
// compare-and-swap: they report whether the guarded update actually landed.
type TaskStore interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	ClaimCompletion(ctx context.Context, taskID, agentID int64, submittedAt, deadline time.Time, summary string, evidence []byte) (*models.Task, error)
	MarkSettled(ctx context.Context, tx pgx.Tx, taskID int64, status string, completedAt time.Time) (bool, error)
	MarkRejected(ctx context.Context, taskID int64) (bool, error)
	MarkCancelled(ctx context.Context, taskID int64) (bool, error)
}

type AgentStore interface {
	GetByID(ctx context.Context, id int64) (*models.Agent, error)
}

type SubscriptionStore interface {
	Subscribe(ctx context.Context, taskID, agentID int64) (bool, error)
}

// RewardLedger moves the reward inside the settlement transaction.
type RewardLedger interface {
	TransferReward(ctx context.Context, tx pgx.Tx, taskID, payerID, payeeID, amount int64) error
}

// TimeoutScheduler arms the auto-confirm deadline when a result is submitted
// and disarms it on manual settlement. Both are best-effort from the engine's
// point of view: a duplicate or late fire is neutralized by the status CAS.
type TimeoutScheduler interface {
	Arm(ctx context.Context, taskID int64, deadline time.Time) error
	Disarm(ctx context.Context, taskID int64) error
}

// CompletionNotifier queues the completion webhook for the publisher.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, t *models.Task, agentName string) error
}

// Engine is the only component that changes task status or triggers reward
// movement. Every transition is guarded by a conditional UPDATE, so two
// racing writers resolve to exactly one winner without advisory locks.
type Engine struct {
	DB                 TxBeginner
	Tasks              TaskStore
	Agents             AgentStore
	Subscriptions      SubscriptionStore
	Ledger             RewardLedger
	Scheduler          TimeoutScheduler
	Notifier           CompletionNotifier
	VerificationWindow time.Duration
	Logger             *slog.Logger
}

func NewEngine(db TxBeginner, tasks TaskStore, agents AgentStore, subs SubscriptionStore, ledger RewardLedger, scheduler TimeoutScheduler, notifier CompletionNotifier, logger *slog.Logger) *Engine {
	return &Engine{
		DB:                 db,
		Tasks:              tasks,
		Agents:             agents,
		Subscriptions:      subs,
		Ledger:             ledger,
		Scheduler:          scheduler,
		Notifier:           notifier,
		VerificationWindow: DefaultVerificationWindow,
		Logger:             logger,
	}
}

func (e *Engine) window() time.Duration {
	if e.VerificationWindow > 0 {
		return e.VerificationWindow
	}
	return DefaultVerificationWindow
}

func (e *Engine) getTask(ctx context.Context, id int64) (*models.Task, error) {
	t, err := e.Tasks.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// getOwnedAgent resolves the agent and checks the caller owns it.
func (e *Engine) getOwnedAgent(ctx context.Context, actorID, agentID int64) (*models.Agent, error) {
	a, err := e.Agents.GetByID(ctx, agentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("agent %d: %w", agentID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if a.OwnerID != actorID {
		return nil, fmt.Errorf("agent %d belongs to another user: %w", agentID, ErrPermission)
	}
	return a, nil
}

// PublishInput is the publisher's task definition.
type PublishInput struct {
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	TaskType             string          `json:"task_type"`
	Priority             string          `json:"priority"`
	RewardPoints         int64           `json:"reward_points"`
	CompletionWebhookURL string          `json:"completion_webhook_url"`
	CreatorAgentID       *int64          `json:"creator_agent_id"`
	InvitedAgentIDs      []int64         `json:"invited_agent_ids"`
	Location             string          `json:"location"`
	DurationEstimate     string          `json:"duration_estimate"`
	Skills               []string        `json:"skills"`
	Evidence             json.RawMessage `json:"-"`
}

func validWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Publish creates an open task. No funds move here; the publisher's balance
// is only checked when the reward is actually paid out at confirmation.
func (e *Engine) Publish(ctx context.Context, ownerID int64, in PublishInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", ErrValidation)
	}
	if in.RewardPoints < 0 {
		return nil, fmt.Errorf("reward_points must not be negative: %w", ErrValidation)
	}
	if in.RewardPoints > 0 && in.CompletionWebhookURL == "" {
		return nil, fmt.Errorf("completion_webhook_url is required for rewarded tasks: %w", ErrValidation)
	}
	if in.CompletionWebhookURL != "" && !validWebhookURL(in.CompletionWebhookURL) {
		return nil, fmt.Errorf("completion_webhook_url must be an http(s) URL: %w", ErrValidation)
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	switch priority {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical:
	default:
		return nil, fmt.Errorf("unknown priority %q: %w", in.Priority, ErrValidation)
	}
	if in.CreatorAgentID != nil {
		if _, err := e.getOwnedAgent(ctx, ownerID, *in.CreatorAgentID); err != nil {
			return nil, err
		}
	}

	t := &models.Task{
		Title:                title,
		Description:          in.Description,
		TaskType:             in.TaskType,
		Priority:             priority,
		Status:               models.TaskStatusOpen,
		OwnerID:              ownerID,
		CreatorAgentID:       in.CreatorAgentID,
		RewardPoints:         in.RewardPoints,
		CompletionWebhookURL: in.CompletionWebhookURL,
		InvitedAgentIDs:      in.InvitedAgentIDs,
		Location:             in.Location,
		DurationEstimate:     in.DurationEstimate,
		Skills:               in.Skills,
	}
	if err := e.Tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	e.Logger.Info("task published", "task_id", t.ID, "owner_id", ownerID, "reward_points", t.RewardPoints)
	return t, nil
}

// Subscribe records an agent's interest in an open task. It never binds the
// agent; binding happens on the first eligible completion submission.
// Subscribing twice is a no-op.
func (e *Engine) Subscribe(ctx context.Context, actorID, taskID, agentID int64) error {
	agent, err := e.getOwnedAgent(ctx, actorID, agentID)
	if err != nil {
		return err
	}
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status != models.TaskStatusOpen {
		return fmt.Errorf("task %d is %s: %w", taskID, t.Status, ErrStateConflict)
	}
	if !t.Invited(agent.ID) {
		return fmt.Errorf("agent %d is not invited to task %d: %w", agentID, taskID, ErrPermission)
	}
	if _, err := e.Subscriptions.Subscribe(ctx, taskID, agentID); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// SubmitCompletion claims the task for the agent (on first submission) and
// moves it to pending_verification in one guarded write, then arms the
// auto-confirm deadline and queues the publisher webhook. The two follow-ups
// are best-effort; their failures are logged, never surfaced.
func (e *Engine) SubmitCompletion(ctx context.Context, actorID, taskID, agentID int64, summary string, evidence json.RawMessage) (*models.Task, error) {
	agent, err := e.getOwnedAgent(ctx, actorID, agentID)
	if err != nil {
		return nil, err
	}
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.AgentID != nil && *t.AgentID != agentID {
		return nil, fmt.Errorf("task %d is assigned to another agent: %w", taskID, ErrPermission)
	}
	if !t.Invited(agent.ID) {
		return nil, fmt.Errorf("agent %d is not invited to task %d: %w", agentID, taskID, ErrPermission)
	}
	switch t.Status {
	case models.TaskStatusOpen, models.TaskStatusRejected:
	default:
		return nil, fmt.Errorf("task %d is %s: %w", taskID, t.Status, ErrStateConflict)
	}

	now := time.Now().UTC()
	deadline := now.Add(e.window())
	claimed, err := e.Tasks.ClaimCompletion(ctx, taskID, agentID, now, deadline, summary, evidence)
	if err != nil {
		return nil, fmt.Errorf("claim completion: %w", err)
	}
	if claimed == nil {
		// Lost the race between the pre-check and the write.
		return nil, fmt.Errorf("task %d was claimed concurrently: %w", taskID, ErrStateConflict)
	}

	if err := e.Scheduler.Arm(ctx, taskID, deadline); err != nil {
		e.Logger.Error("arm auto-confirm timer", "task_id", taskID, "error", err)
	}
	if claimed.CompletionWebhookURL != "" {
		if err := e.Notifier.NotifyCompletion(ctx, claimed, agent.Name); err != nil {
			e.Logger.Error("queue completion webhook", "task_id", taskID, "error", err)
		}
	}
	e.Logger.Info("completion submitted", "task_id", taskID, "agent_id", agentID, "deadline", deadline)
	return claimed, nil
}

// Confirm settles a pending task in the agent's favor on the publisher's
// say-so. The status flip and the reward transfer commit together; an
// insufficient balance rolls both back and leaves the task pending.
func (e *Engine) Confirm(ctx context.Context, actorID, taskID int64) (*models.Task, error) {
	return e.settle(ctx, &actorID, taskID, models.TaskStatusConfirmed)
}

// AutoConfirm is the deadline path: same settlement as Confirm but with no
// actor. Finding the task already settled or rejected means the timer lost
// the race, which is not an error.
func (e *Engine) AutoConfirm(ctx context.Context, taskID int64) error {
	t, err := e.Tasks.GetByID(ctx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		e.Logger.Warn("auto-confirm: task vanished", "task_id", taskID)
		return nil
	}
	if err != nil {
		return err
	}
	if t.Status != models.TaskStatusPendingVerification {
		e.Logger.Info("auto-confirm skipped", "task_id", taskID, "status", t.Status)
		return nil
	}
	_, err = e.settle(ctx, nil, taskID, models.TaskStatusAutoConfirmed)
	if errors.Is(err, ErrStateConflict) {
		e.Logger.Info("auto-confirm lost race", "task_id", taskID)
		return nil
	}
	return err
}

// settle performs the shared confirm / auto-confirm transaction. actorID nil
// means the system is acting.
func (e *Engine) settle(ctx context.Context, actorID *int64, taskID int64, status string) (*models.Task, error) {
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if actorID != nil && t.OwnerID != *actorID {
		return nil, fmt.Errorf("task %d belongs to another user: %w", taskID, ErrPermission)
	}
	if t.Status != models.TaskStatusPendingVerification {
		return nil, fmt.Errorf("task %d is %s: %w", taskID, t.Status, ErrStateConflict)
	}
	if t.AgentID == nil {
		return nil, fmt.Errorf("task %d pending without an agent", taskID)
	}

	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	completedAt := time.Now().UTC()
	ok, err := e.Tasks.MarkSettled(ctx, tx, taskID, status, completedAt)
	if err != nil {
		return nil, fmt.Errorf("settle task: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("task %d left pending_verification concurrently: %w", taskID, ErrStateConflict)
	}

	if t.RewardPoints > 0 {
		agent, err := e.Agents.GetByID(ctx, *t.AgentID)
		if err != nil {
			return nil, fmt.Errorf("resolve agent %d: %w", *t.AgentID, err)
		}
		if err := e.Ledger.TransferReward(ctx, tx, taskID, t.OwnerID, agent.OwnerID, t.RewardPoints); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if err := e.Scheduler.Disarm(ctx, taskID); err != nil {
		e.Logger.Warn("disarm auto-confirm timer", "task_id", taskID, "error", err)
	}
	t.Status = status
	t.CompletedAt = &completedAt
	e.Logger.Info("task settled", "task_id", taskID, "status", status, "reward_points", t.RewardPoints)
	return t, nil
}

// Reject sends a pending task back to the bound agent for rework. The reward
// stays untouched and the auto-confirm timer is disarmed; a later
// resubmission starts a fresh verification window.
func (e *Engine) Reject(ctx context.Context, actorID, taskID int64) (*models.Task, error) {
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != actorID {
		return nil, fmt.Errorf("task %d belongs to another user: %w", taskID, ErrPermission)
	}
	ok, err := e.Tasks.MarkRejected(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("reject task: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("task %d is not pending_verification: %w", taskID, ErrStateConflict)
	}
	if err := e.Scheduler.Disarm(ctx, taskID); err != nil {
		e.Logger.Warn("disarm auto-confirm timer", "task_id", taskID, "error", err)
	}
	t.Status = models.TaskStatusRejected
	t.VerificationDeadlineAt = nil
	e.Logger.Info("task rejected", "task_id", taskID)
	return t, nil
}

// Cancel withdraws an open task. Anything past open is already someone
// else's work in flight and cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, actorID, taskID int64) (*models.Task, error) {
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != actorID {
		return nil, fmt.Errorf("task %d belongs to another user: %w", taskID, ErrPermission)
	}
	ok, err := e.Tasks.MarkCancelled(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("cancel task: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("task %d is not open: %w", taskID, ErrStateConflict)
	}
	t.Status = models.TaskStatusCancelled
	e.Logger.Info("task cancelled", "task_id", taskID)
	return t, nil
}
