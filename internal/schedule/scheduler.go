package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// AutoConfirmArgs is the one-shot job queued at submission time and due at
// the verification deadline.
type AutoConfirmArgs struct {
	TaskID int64 `json:"task_id"`
}

func (AutoConfirmArgs) Kind() string { return "auto_confirm" }

// AutoConfirmer settles a task whose verification window expired.
type AutoConfirmer interface {
	AutoConfirm(ctx context.Context, taskID int64) error
}

// AutoConfirmWorker runs the deadline job. A returned error (publisher
// balance too low, database trouble) makes the queue retry with backoff.
type AutoConfirmWorker struct {
	river.WorkerDefaults[AutoConfirmArgs]
	Engine AutoConfirmer
}

func NewAutoConfirmWorker(engine AutoConfirmer) *AutoConfirmWorker {
	return &AutoConfirmWorker{Engine: engine}
}

func (w *AutoConfirmWorker) Work(ctx context.Context, job *river.Job[AutoConfirmArgs]) error {
	return w.Engine.AutoConfirm(ctx, job.Args.TaskID)
}

// TimeoutJobStore persists which queue job is armed for a task.
type TimeoutJobStore interface {
	GetTimeoutJobID(ctx context.Context, taskID int64) (*int64, error)
	SetTimeoutJobID(ctx context.Context, taskID int64, jobID *int64) error
}

// Scheduler arms and disarms verification-deadline jobs. The queue insert
// and cancel functions are bound late in main, once the queue client exists.
type Scheduler struct {
	mu         sync.Mutex
	insertFunc func(ctx context.Context, args AutoConfirmArgs, at time.Time) (int64, error)
	cancelFunc func(ctx context.Context, jobID int64) error

	Tasks  TimeoutJobStore
	Logger *slog.Logger
}

func NewScheduler(tasks TimeoutJobStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{Tasks: tasks, Logger: logger}
}

func (s *Scheduler) SetQueueFuncs(
	insert func(ctx context.Context, args AutoConfirmArgs, at time.Time) (int64, error),
	cancel func(ctx context.Context, jobID int64) error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertFunc = insert
	s.cancelFunc = cancel
}

func (s *Scheduler) funcs() (func(context.Context, AutoConfirmArgs, time.Time) (int64, error), func(context.Context, int64) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertFunc, s.cancelFunc
}

// Arm schedules the auto-confirm job for the deadline and records its id on
// the task. Rearming after a rejection simply stores the new job id; a stale
// fire of the old one is neutralized by the engine's status check.
func (s *Scheduler) Arm(ctx context.Context, taskID int64, deadline time.Time) error {
	insert, _ := s.funcs()
	if insert == nil {
		return fmt.Errorf("timeout scheduler not wired")
	}
	jobID, err := insert(ctx, AutoConfirmArgs{TaskID: taskID}, deadline)
	if err != nil {
		return fmt.Errorf("schedule auto-confirm: %w", err)
	}
	if err := s.Tasks.SetTimeoutJobID(ctx, taskID, &jobID); err != nil {
		return fmt.Errorf("record timeout job: %w", err)
	}
	s.Logger.Info("auto-confirm armed", "task_id", taskID, "job_id", jobID, "deadline", deadline)
	return nil
}

// Disarm cancels the armed job, if any. A job that already ran or was
// removed is not an error.
func (s *Scheduler) Disarm(ctx context.Context, taskID int64) error {
	_, cancel := s.funcs()
	if cancel == nil {
		return fmt.Errorf("timeout scheduler not wired")
	}
	jobID, err := s.Tasks.GetTimeoutJobID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("read timeout job: %w", err)
	}
	if jobID == nil {
		return nil
	}
	if err := cancel(ctx, *jobID); err != nil && !errors.Is(err, rivertype.ErrNotFound) {
		return fmt.Errorf("cancel timeout job %d: %w", *jobID, err)
	}
	if err := s.Tasks.SetTimeoutJobID(ctx, taskID, nil); err != nil {
		return fmt.Errorf("clear timeout job: %w", err)
	}
	s.Logger.Info("auto-confirm disarmed", "task_id", taskID, "job_id", *jobID)
	return nil
}
