package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bizscan/bizscan-api/internal/api/shared"
	"github.com/bizscan/bizscan-api/internal/domain"
	"github.com/bizscan/bizscan-api/internal/platform/logger"
	"github.com/bizscan/bizscan-api/internal/queue"
	"github.com/bizscan/bizscan-api/internal/redact"
	"github.com/bizscan/bizscan-api/internal/store"
)

// eventRecordTimeout bounds usage-event writes triggered from completion
// callbacks, which run on worker goroutines with no request context.
const eventRecordTimeout = 5 * time.Second

// TaskQueue is the queue surface the task endpoints need. *queue.Manager
// satisfies it.
type TaskQueue interface {
	Submit(category queue.TaskCategory, payload json.RawMessage, cb queue.Callback) (string, error)
	Status(taskID string) (*queue.TaskSnapshot, error)
	Cancel(taskID string) (bool, error)
}

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	queue     TaskQueue
	events    store.UsageEventStore
	validator *validator.Validate
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskQueue TaskQueue, events store.UsageEventStore) *TaskHandler {
	return &TaskHandler{
		queue:     taskQueue,
		events:    events,
		validator: validator.New(),
	}
}

// SubmitTask handles POST /api/tasks requests. The task is queued and
// executed asynchronously; the response carries the ID to poll.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	// Actor is the authenticated calling service (set by auth middleware)
	actor, ok := shared.GetServiceName(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Service identity not found")
		return
	}

	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	category := queue.TaskCategory(req.Category)
	log := logger.FromContext(r.Context())

	taskID, err := h.queue.Submit(category, req.Payload, h.completionCallback(actor, log))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.recordEvent(r.Context(), log, domain.EventTaskSubmitted, actor, string(category), taskID, nil)

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitTaskResponse{
		TaskID: taskID,
		Status: string(queue.StatusPending),
	})
}

// GetTask handles GET /api/tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task ID required")
		return
	}

	snap, err := h.queue.Status(taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(snap))
}

// CancelTask handles DELETE /api/tasks/{id} requests. Cancelling a task that
// already reached a terminal state is not an error; the response reports
// cancelled=false.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.GetServiceName(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Service identity not found")
		return
	}

	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task ID required")
		return
	}

	// Snapshot first: Cancel alone does not report the category needed for
	// the usage event.
	snap, err := h.queue.Status(taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	cancelled, err := h.queue.Cancel(taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if cancelled {
		h.recordEvent(r.Context(), logger.FromContext(r.Context()),
			domain.EventTaskCancelled, actor, string(snap.Category), taskID, nil)
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CancelTaskResponse{
		TaskID:    taskID,
		Cancelled: cancelled,
	})
}

// completionCallback builds the callback recording the task's terminal
// outcome as a usage event. It runs on a worker goroutine after the
// submitting request is gone, so it uses a background context.
func (h *TaskHandler) completionCallback(actor string, log *slog.Logger) queue.Callback {
	return func(snap *queue.TaskSnapshot) {
		eventType := domain.EventTaskCompleted
		if snap.Status == queue.StatusFailed {
			eventType = domain.EventTaskFailed
		}

		metadata, err := json.Marshal(map[string]int{"retry_count": snap.RetryCount})
		if err != nil {
			metadata = nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventRecordTimeout)
		defer cancel()

		h.recordEvent(ctx, log, eventType, actor, string(snap.Category), snap.ID, metadata)
	}
}

// recordEvent persists a usage event, logging failures instead of
// propagating them: usage accounting never blocks task flow.
func (h *TaskHandler) recordEvent(
	ctx context.Context,
	log *slog.Logger,
	eventType domain.UsageEventType,
	actor, category, taskID string,
	metadata json.RawMessage,
) {
	event, err := domain.NewUsageEvent(eventType, actor, category, taskID, metadata)
	if err != nil {
		log.Error("failed to build usage event",
			"event_type", eventType,
			"task_id", taskID,
			"error", err)
		return
	}

	if err := h.events.Create(ctx, event); err != nil {
		log.Error("failed to record usage event",
			"event_type", eventType,
			"task_id", taskID,
			"error", redact.Error(err))
	}
}
