package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskCategory identifies the kind of work a task carries and selects the
// worker pool, rate limiter and daily quota that govern it.
type TaskCategory string

// Task categories served by this application. The manager itself is not
// limited to these; it processes whatever categories its handler table names.
const (
	CategoryGammaPDF      TaskCategory = "gamma_pdf"
	CategoryGammaPPTX     TaskCategory = "gamma_pptx"
	CategoryOFDataCompany TaskCategory = "ofdata_company"
	CategoryOFDataPerson  TaskCategory = "ofdata_person"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether a task in this status can never change again.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// TaskSnapshot is an immutable copy of a task's state, safe to hand out
// while workers keep mutating the underlying record.
type TaskSnapshot struct {
	ID          string          `json:"id"`
	Category    TaskCategory    `json:"category"`
	Status      TaskStatus      `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      any             `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// task is the mutable task record. All reads and writes happen under the
// manager mutex; the outside world only ever sees snapshots.
type task struct {
	id          string
	category    TaskCategory
	payload     json.RawMessage
	callback    Callback
	status      TaskStatus
	result      any
	errMsg      string
	retryCount  int
	maxRetries  int
	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
}

func newTask(category TaskCategory, payload json.RawMessage, cb Callback, maxRetries int, now time.Time) *task {
	return &task{
		id:         fmt.Sprintf("%s_%s", category, uuid.NewString()),
		category:   category,
		payload:    payload,
		callback:   cb,
		status:     StatusPending,
		maxRetries: maxRetries,
		createdAt:  now,
	}
}

func (t *task) snapshot() *TaskSnapshot {
	snap := &TaskSnapshot{
		ID:         t.id,
		Category:   t.category,
		Status:     t.status,
		Payload:    t.payload,
		Result:     t.result,
		Error:      t.errMsg,
		RetryCount: t.retryCount,
		MaxRetries: t.maxRetries,
		CreatedAt:  t.createdAt,
	}
	if t.startedAt != nil {
		started := *t.startedAt
		snap.StartedAt = &started
	}
	if t.completedAt != nil {
		completed := *t.completedAt
		snap.CompletedAt = &completed
	}
	return snap
}

// markProcessing transitions Pending -> Processing when a worker claims the
// task.
func (t *task) markProcessing(now time.Time) error {
	if t.status != StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, StatusProcessing)
	}
	t.status = StatusProcessing
	t.startedAt = &now
	return nil
}

// complete transitions Processing -> Completed and records the result.
func (t *task) complete(result any, now time.Time) error {
	if t.status != StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, StatusCompleted)
	}
	t.status = StatusCompleted
	t.result = result
	t.completedAt = &now
	return nil
}

// fail transitions Processing -> Failed once retries are exhausted.
func (t *task) fail(errMsg string, now time.Time) error {
	if t.status != StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, StatusFailed)
	}
	t.status = StatusFailed
	t.errMsg = errMsg
	t.completedAt = &now
	return nil
}

// requeue transitions Processing -> Pending after a failed attempt, consuming
// one retry slot. The retry check happens before the increment, so a task
// admits maxRetries+1 attempts in total.
func (t *task) requeue(errMsg string) error {
	if t.status != StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, StatusPending)
	}
	if t.retryCount >= t.maxRetries {
		return fmt.Errorf("%w: retries exhausted (%d/%d)", ErrInvalidTransition, t.retryCount, t.maxRetries)
	}
	t.retryCount++
	t.status = StatusPending
	t.errMsg = errMsg
	return nil
}

// cancel moves a Pending or Processing task to Cancelled and reports whether
// it did anything. Terminal tasks are left untouched. The completion
// timestamp is stamped so cleanup can age cancelled tasks out like any other
// terminal task.
func (t *task) cancel(now time.Time) bool {
	if t.status.IsTerminal() {
		return false
	}
	t.status = StatusCancelled
	t.completedAt = &now
	return true
}
