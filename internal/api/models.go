package api

import (
	"encoding/json"
	"time"

	"github.com/bizscan/bizscan-api/internal/domain"
	"github.com/bizscan/bizscan-api/internal/queue"
)

// Common request/response structures

// SubmitTaskRequest defines the payload for the task submission endpoint.
// The payload is opaque to the API layer; each category's handler decodes
// and validates it.
type SubmitTaskRequest struct {
	Category string          `json:"category" validate:"required"`
	Payload  json.RawMessage `json:"payload"  validate:"required"`
}

// SubmitTaskResponse acknowledges an accepted task. Processing happens
// asynchronously; clients poll GET /api/tasks/{id} with the returned ID.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskResponse is the client-facing view of a task snapshot.
type TaskResponse struct {
	TaskID      string          `json:"task_id"`
	Category    string          `json:"category"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      any             `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// taskToResponse converts a queue.TaskSnapshot to a TaskResponse.
func taskToResponse(snap *queue.TaskSnapshot) TaskResponse {
	return TaskResponse{
		TaskID:      snap.ID,
		Category:    string(snap.Category),
		Status:      string(snap.Status),
		Payload:     snap.Payload,
		Result:      snap.Result,
		Error:       snap.Error,
		RetryCount:  snap.RetryCount,
		MaxRetries:  snap.MaxRetries,
		CreatedAt:   snap.CreatedAt,
		StartedAt:   snap.StartedAt,
		CompletedAt: snap.CompletedAt,
	}
}

// CancelTaskResponse reports the outcome of a cancellation request.
// Cancelled is false when the task had already reached a terminal state.
type CancelTaskResponse struct {
	TaskID    string `json:"task_id"`
	Cancelled bool   `json:"cancelled"`
}

// CategoryQuota is the live quota state for one task category.
type CategoryQuota struct {
	Category  string `json:"category"`
	Remaining int    `json:"remaining"`
	Limited   bool   `json:"limited"`
}

// StatsResponse is the admin usage report: event counts from the store for
// the requested window plus the live quota and task-table state.
type StatsResponse struct {
	Since      time.Time           `json:"since"`
	Days       int                 `json:"days"`
	Usage      []domain.UsageCount `json:"usage"`
	Quota      []CategoryQuota     `json:"quota"`
	TaskCounts map[string]int      `json:"task_counts"`
}
