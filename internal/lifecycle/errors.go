package lifecycle

import "errors"

// Error taxonomy surfaced by every engine operation. Handlers map these to
// HTTP statuses; callers test them with errors.Is.
var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("invalid request")
	// ErrPermission marks an actor touching a task or agent that is not theirs.
	ErrPermission = errors.New("permission denied")
	// ErrNotFound marks a missing task, agent, or account.
	ErrNotFound = errors.New("not found")
	// ErrStateConflict marks an operation arriving in the wrong task state,
	// including losing a race to a concurrent writer.
	ErrStateConflict = errors.New("conflicting task state")
)
