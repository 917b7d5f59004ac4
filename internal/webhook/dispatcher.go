package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/riverqueue/river"

	"github.com/clawjob/backend/internal/models"
)

// MaxDeliveryAttempts bounds the retry budget for one completion webhook.
// After the last failure the job lands in the queue's discarded set; the
// verification deadline settles the task regardless.
const MaxDeliveryAttempts = 5

// CompletionArgs is the queued notification that an agent submitted a result.
type CompletionArgs struct {
	TaskID        int64           `json:"task_id"`
	Title         string          `json:"title"`
	AgentID       int64           `json:"agent_id"`
	AgentName     string          `json:"agent_name"`
	URL           string          `json:"url"`
	ResultSummary string          `json:"result_summary"`
	Evidence      json.RawMessage `json:"evidence,omitempty"`
	SubmittedAt   time.Time       `json:"submitted_at"`
}

func (CompletionArgs) Kind() string { return "completion_webhook" }

func (CompletionArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: MaxDeliveryAttempts}
}

// payload is the body POSTed to the publisher. The delivery URL itself is
// not echoed back.
type payload struct {
	Event         string          `json:"event"`
	TaskID        int64           `json:"task_id"`
	Title         string          `json:"title"`
	AgentID       int64           `json:"agent_id"`
	AgentName     string          `json:"agent_name"`
	ResultSummary string          `json:"result_summary"`
	Evidence      json.RawMessage `json:"evidence,omitempty"`
	SubmittedAt   time.Time       `json:"submitted_at"`
}

// Dispatcher delivers completion webhooks from the queue.
type Dispatcher struct {
	river.WorkerDefaults[CompletionArgs]
	Client *http.Client
	Logger *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		Client: &http.Client{Timeout: 30 * time.Second},
		Logger: logger,
	}
}

func (d *Dispatcher) Work(ctx context.Context, job *river.Job[CompletionArgs]) error {
	if err := d.Deliver(ctx, job.Args); err != nil {
		d.Logger.Warn("webhook delivery failed",
			"task_id", job.Args.TaskID, "attempt", job.Attempt, "error", err)
		return err
	}
	d.Logger.Info("webhook delivered", "task_id", job.Args.TaskID, "url", job.Args.URL)
	return nil
}

// Deliver POSTs the completion payload. A non-2xx response counts as a
// failed delivery.
func (d *Dispatcher) Deliver(ctx context.Context, args CompletionArgs) error {
	body, err := json.Marshal(payload{
		Event:         "task.completion_submitted",
		TaskID:        args.TaskID,
		Title:         args.Title,
		AgentID:       args.AgentID,
		AgentName:     args.AgentName,
		ResultSummary: args.ResultSummary,
		Evidence:      args.Evidence,
		SubmittedAt:   args.SubmittedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, args.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("call webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Enqueuer hands completion notifications to the queue. The insert function
// is bound late in main, after the queue client exists.
type Enqueuer struct {
	mu         sync.Mutex
	insertFunc func(ctx context.Context, args CompletionArgs) error
}

func NewEnqueuer() *Enqueuer { return &Enqueuer{} }

func (e *Enqueuer) SetInsertFunc(f func(ctx context.Context, args CompletionArgs) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.insertFunc = f
}

// NotifyCompletion queues one webhook for a submitted result.
func (e *Enqueuer) NotifyCompletion(ctx context.Context, t *models.Task, agentName string) error {
	e.mu.Lock()
	f := e.insertFunc
	e.mu.Unlock()
	if f == nil {
		return fmt.Errorf("webhook enqueuer not wired")
	}
	var agentID int64
	if t.AgentID != nil {
		agentID = *t.AgentID
	}
	var submittedAt time.Time
	if t.SubmittedAt != nil {
		submittedAt = *t.SubmittedAt
	}
	return f(ctx, CompletionArgs{
		TaskID:        t.ID,
		Title:         t.Title,
		AgentID:       agentID,
		AgentName:     agentName,
		URL:           t.CompletionWebhookURL,
		ResultSummary: t.ResultSummary,
		Evidence:      t.Evidence,
		SubmittedAt:   submittedAt,
	})
}
