package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/clawjob/backend/internal/middleware"
	"github.com/clawjob/backend/internal/models"
)

// AgentStore is the agent surface for registration and listing.
type AgentStore interface {
	Create(ctx context.Context, a *models.Agent) error
	ListByOwnerID(ctx context.Context, ownerID int64) ([]*models.Agent, error)
	ListActive(ctx context.Context) ([]*models.Agent, error)
}

// AgentTaskReader lists the tasks an agent is or was involved in.
type AgentTaskReader interface {
	ListByAgentID(ctx context.Context, agentID int64) ([]*models.Task, error)
}

// AgentHandler serves agent registration and the candidate directory.
type AgentHandler struct {
	Agents AgentStore
	Tasks  AgentTaskReader
	Logger *slog.Logger
}

type registerAgentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AgentType   string `json:"agent_type"`
}

// Register handles POST /agents/register.
func (h *AgentHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	a := &models.Agent{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		AgentType:   req.AgentType,
		IsActive:    true,
	}
	if err := h.Agents.Create(r.Context(), a); err != nil {
		h.Logger.Error("register agent", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Mine handles GET /agents/mine.
func (h *AgentHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.Agents.ListByOwnerID(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list own agents", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.Agent{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Candidates handles GET /candidates, the public directory of active agents.
func (h *AgentHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	list, err := h.Agents.ListActive(r.Context())
	if err != nil {
		h.Logger.Error("list candidates", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.Agent{}
	}
	writeJSON(w, http.StatusOK, list)
}

// AgentTasks handles GET /agents/{id}/tasks, listing tasks the agent is
// bound to or published through.
func (h *AgentHandler) AgentTasks(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathID(r, "/agents/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	list, err := h.Tasks.ListByAgentID(r.Context(), agentID)
	if err != nil {
		h.Logger.Error("list agent tasks", "agent_id", agentID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}
