package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clawjob/backend/internal/models"
)

type stubAgentStore struct {
	agents []*models.Agent
	nextID int64
}

func (s *stubAgentStore) Create(_ context.Context, a *models.Agent) error {
	s.nextID++
	a.ID = s.nextID
	s.agents = append(s.agents, a)
	return nil
}

func (s *stubAgentStore) ListByOwnerID(_ context.Context, ownerID int64) ([]*models.Agent, error) {
	var out []*models.Agent
	for _, a := range s.agents {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAgentStore) ListActive(context.Context) ([]*models.Agent, error) {
	var out []*models.Agent
	for _, a := range s.agents {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubAgentTasks struct{ byAgent map[int64][]*models.Task }

func (s *stubAgentTasks) ListByAgentID(_ context.Context, agentID int64) ([]*models.Task, error) {
	return s.byAgent[agentID], nil
}

func newAgentHandler() *AgentHandler {
	return &AgentHandler{
		Agents: &stubAgentStore{},
		Tasks:  &stubAgentTasks{byAgent: map[int64][]*models.Task{}},
		Logger: discard(),
	}
}

func TestRegisterAgent(t *testing.T) {
	h := newAgentHandler()

	rec := httptest.NewRecorder()
	h.Register(rec, authedRequest(http.MethodPost, "/agents/register", `{"name":"crawler-1","agent_type":"scraper"}`, 7))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var a models.Agent
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.OwnerID != 7 || !a.IsActive || a.Name != "crawler-1" {
		t.Errorf("agent: %+v", a)
	}

	rec = httptest.NewRecorder()
	h.Register(rec, authedRequest(http.MethodPost, "/agents/register", `{"name":""}`, 7))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty name: got %d, want 400", rec.Code)
	}
}

func TestAgentsMineAndCandidates(t *testing.T) {
	h := newAgentHandler()
	store := h.Agents.(*stubAgentStore)
	store.agents = []*models.Agent{
		{ID: 1, OwnerID: 7, Name: "mine", IsActive: true},
		{ID: 2, OwnerID: 8, Name: "theirs", IsActive: true},
		{ID: 3, OwnerID: 8, Name: "retired", IsActive: false},
	}

	rec := httptest.NewRecorder()
	h.Mine(rec, authedRequest(http.MethodGet, "/agents/mine", "", 7))
	var mine []*models.Agent
	if err := json.Unmarshal(rec.Body.Bytes(), &mine); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "mine" {
		t.Errorf("mine: %+v", mine)
	}

	rec = httptest.NewRecorder()
	h.Candidates(rec, httptest.NewRequest(http.MethodGet, "/candidates", nil))
	var candidates []*models.Agent
	if err := json.Unmarshal(rec.Body.Bytes(), &candidates); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(candidates) != 2 {
		t.Errorf("candidates: %+v", candidates)
	}
}

func TestAgentTasks(t *testing.T) {
	h := newAgentHandler()
	h.Tasks = &stubAgentTasks{byAgent: map[int64][]*models.Task{
		9: {{ID: 5, Title: "scrape"}},
	}}

	rec := httptest.NewRecorder()
	h.AgentTasks(rec, httptest.NewRequest(http.MethodGet, "/agents/9/tasks", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var list []*models.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != 5 {
		t.Errorf("tasks: %+v", list)
	}

	// no history serializes as an empty array, not null
	rec = httptest.NewRecorder()
	h.AgentTasks(rec, httptest.NewRequest(http.MethodGet, "/agents/99/tasks", nil))
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("empty history body: %q", body)
	}
}
