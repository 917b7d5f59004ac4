package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/clawjob/backend/internal/lifecycle"
	"github.com/clawjob/backend/internal/middleware"
	"github.com/clawjob/backend/internal/models"
)

// Engine is the lifecycle surface the task handler drives.
type Engine interface {
	Publish(ctx context.Context, ownerID int64, in lifecycle.PublishInput) (*models.Task, error)
	Subscribe(ctx context.Context, actorID, taskID, agentID int64) error
	SubmitCompletion(ctx context.Context, actorID, taskID, agentID int64, summary string, evidence json.RawMessage) (*models.Task, error)
	Confirm(ctx context.Context, actorID, taskID int64) (*models.Task, error)
	Reject(ctx context.Context, actorID, taskID int64) (*models.Task, error)
	Cancel(ctx context.Context, actorID, taskID int64) (*models.Task, error)
}

// TaskReader is the read-only task surface for listings.
type TaskReader interface {
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	List(ctx context.Context, status string, skip, limit int) ([]*models.Task, int64, error)
	ListByOwnerID(ctx context.Context, ownerID int64) ([]*models.Task, error)
	ListByAgentID(ctx context.Context, agentID int64) ([]*models.Task, error)
}

// SubscriptionCounter provides hall listing counts.
type SubscriptionCounter interface {
	CountByTaskIDs(ctx context.Context, taskIDs []int64) (map[int64]int64, error)
}

// AccountNameReader resolves publisher display names.
type AccountNameReader interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
}

// TaskHandler serves the task hall and lifecycle endpoints.
type TaskHandler struct {
	Engine   Engine
	Tasks    TaskReader
	Subs     SubscriptionCounter
	Accounts AccountNameReader
	Logger   *slog.Logger
}

// taskListing is a hall entry: the task plus publisher and demand context.
type taskListing struct {
	*models.Task
	PublisherName     string `json:"publisher_name"`
	SubscriptionCount int64  `json:"subscription_count"`
}

// Create handles POST /tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in lifecycle.PublishInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	task, err := h.Engine.Publish(r.Context(), userID, in)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// List handles GET /tasks, the public task hall.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	status := r.URL.Query().Get("status_filter")

	tasks, total, err := h.Tasks.List(r.Context(), status, skip, limit)
	if err != nil {
		h.Logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ids := make([]int64, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	counts, err := h.Subs.CountByTaskIDs(r.Context(), ids)
	if err != nil {
		h.Logger.Error("count subscriptions", "error", err)
		counts = map[int64]int64{}
	}

	names := map[int64]string{}
	listings := make([]taskListing, 0, len(tasks))
	for _, t := range tasks {
		name, cached := names[t.OwnerID]
		if !cached {
			if acc, err := h.Accounts.GetByID(r.Context(), t.OwnerID); err == nil {
				name = acc.Username
			}
			names[t.OwnerID] = name
		}
		listings = append(listings, taskListing{Task: t, PublisherName: name, SubscriptionCount: counts[t.ID]})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": listings, "total": total})
}

// Get handles GET /tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r, "/tasks/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, err := h.Tasks.GetByID(r.Context(), taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.Logger.Error("get task", "task_id", taskID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Mine handles GET /tasks/mine, the caller's published tasks.
func (h *TaskHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tasks, err := h.Tasks.ListByOwnerID(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list own tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type subscribeRequest struct {
	AgentID int64 `json:"agent_id"`
}

// Subscribe handles POST /tasks/{id}/subscribe.
func (h *TaskHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	taskID, ok := pathID(r, "/tasks/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID <= 0 {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	if err := h.Engine.Subscribe(r.Context(), userID, taskID, req.AgentID); err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}

type submitCompletionRequest struct {
	AgentID       int64           `json:"agent_id"`
	ResultSummary string          `json:"result_summary"`
	Evidence      json.RawMessage `json:"evidence"`
}

// SubmitCompletion handles POST /tasks/{id}/submit-completion.
func (h *TaskHandler) SubmitCompletion(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	taskID, ok := pathID(r, "/tasks/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req submitCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID <= 0 {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	task, err := h.Engine.SubmitCompletion(r.Context(), userID, taskID, req.AgentID, req.ResultSummary, req.Evidence)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Confirm handles POST /tasks/{id}/confirm.
func (h *TaskHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.settleAction(w, r, h.Engine.Confirm)
}

// Reject handles POST /tasks/{id}/reject.
func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.settleAction(w, r, h.Engine.Reject)
}

// Cancel handles POST /tasks/{id}/cancel.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.settleAction(w, r, h.Engine.Cancel)
}

func (h *TaskHandler) settleAction(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, int64) (*models.Task, error)) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	taskID, ok := pathID(r, "/tasks/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	task, err := op(r.Context(), userID, taskID)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
