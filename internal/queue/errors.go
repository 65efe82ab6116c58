package queue

import (
	"errors"
	"fmt"
)

// Common queue errors. Callers match these with errors.Is; the typed errors
// below carry the offending category or task ID for error responses.
var (
	// ErrTaskNotFound indicates the requested task ID is not in the table,
	// either because it never existed or because cleanup already removed it.
	ErrTaskNotFound = errors.New("task not found")

	// ErrQuotaExceeded indicates the daily quota for a category is exhausted.
	// Submissions are rejected until the quota resets at local midnight.
	ErrQuotaExceeded = errors.New("daily quota exceeded")

	// ErrNoHandler indicates a submission for a category the manager has no
	// handler for.
	ErrNoHandler = errors.New("no handler registered for category")

	// ErrInvalidTransition indicates an attempt to move a task into a state
	// its current state does not allow.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// TaskNotFoundError reports a lookup for an unknown task ID.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.TaskID)
}

func (e *TaskNotFoundError) Unwrap() error {
	return ErrTaskNotFound
}

// QuotaExceededError reports a submission rejected by the daily quota.
type QuotaExceededError struct {
	Category TaskCategory
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded for category %q", e.Category)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// UnknownCategoryError reports a submission for a category with no registered
// handler.
type UnknownCategoryError struct {
	Category TaskCategory
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("no handler registered for category %q", e.Category)
}

func (e *UnknownCategoryError) Unwrap() error {
	return ErrNoHandler
}
