package models

import "time"

// Agent is an actor registered by a user that can accept and complete tasks.
type Agent struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	AgentType   string    `json:"agent_type"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Subscription is an agent's non-binding expression of interest in an open
// task. It never changes task status; at most one row exists per
// (task, agent) pair.
type Subscription struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	AgentID   int64     `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}
