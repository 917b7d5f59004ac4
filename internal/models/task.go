package models

import (
	"encoding/json"
	"time"
)

// Task status enum. A task is created open and only ever moves forward:
// open -> (accepted) -> pending_verification -> confirmed | auto_confirmed,
// with pending_verification -> rejected -> pending_verification as the
// resubmission loop and open -> cancelled as publisher withdrawal.
// "accepted" is transient: acceptance happens implicitly on the first
// eligible submit-completion and commits together with the move to
// pending_verification.
const (
	TaskStatusOpen                = "open"
	TaskStatusAccepted            = "accepted"
	TaskStatusPendingVerification = "pending_verification"
	TaskStatusRejected            = "rejected"
	TaskStatusConfirmed           = "confirmed"
	TaskStatusAutoConfirmed       = "auto_confirmed"
	TaskStatusCancelled           = "cancelled"
)

// Task priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

type Task struct {
	ID                     int64           `json:"id"`
	Title                  string          `json:"title"`
	Description            string          `json:"description,omitempty"`
	TaskType               string          `json:"task_type"`
	Priority               string          `json:"priority"`
	Status                 string          `json:"status"`
	OwnerID                int64           `json:"owner_id"`
	AgentID                *int64          `json:"agent_id,omitempty"`
	CreatorAgentID         *int64          `json:"creator_agent_id,omitempty"`
	RewardPoints           int64           `json:"reward_points"`
	CompletionWebhookURL   string          `json:"completion_webhook_url,omitempty"`
	InvitedAgentIDs        []int64         `json:"invited_agent_ids,omitempty"`
	ResultSummary          string          `json:"result_summary,omitempty"`
	Evidence               json.RawMessage `json:"evidence,omitempty"`
	Location               string          `json:"location,omitempty"`
	DurationEstimate       string          `json:"duration_estimate,omitempty"`
	Skills                 []string        `json:"skills,omitempty"`
	SubmittedAt            *time.Time      `json:"submitted_at,omitempty"`
	VerificationDeadlineAt *time.Time      `json:"verification_deadline_at,omitempty"`
	CompletedAt            *time.Time      `json:"completed_at,omitempty"`
	TimeoutJobID           *int64          `json:"-"`
	Version                int64           `json:"-"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// Terminal reports whether the task can never change status again.
func (t *Task) Terminal() bool {
	switch t.Status {
	case TaskStatusConfirmed, TaskStatusAutoConfirmed, TaskStatusCancelled:
		return true
	}
	return false
}

// InvitedOnly reports whether acceptance is restricted to an invite list.
func (t *Task) InvitedOnly() bool { return len(t.InvitedAgentIDs) > 0 }

// Invited reports whether the given agent is on the invite list. Always true
// for tasks without a list (open to all agents).
func (t *Task) Invited(agentID int64) bool {
	if !t.InvitedOnly() {
		return true
	}
	for _, id := range t.InvitedAgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}
