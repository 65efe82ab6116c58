package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// UsageEventType classifies what happened to a piece of billable work.
type UsageEventType string

// Possible usage event types
const (
	EventTaskSubmitted UsageEventType = "task_submitted"
	EventTaskCompleted UsageEventType = "task_completed"
	EventTaskFailed    UsageEventType = "task_failed"
	EventTaskCancelled UsageEventType = "task_cancelled"
	EventLookupCached  UsageEventType = "lookup_cached"
)

// Common validation errors for UsageEvent
var (
	ErrEmptyEventID       = errors.New("usage event ID cannot be empty")
	ErrInvalidEventType   = errors.New("invalid usage event type")
	ErrEmptyEventActor    = errors.New("usage event actor cannot be empty")
	ErrEmptyEventCategory = errors.New("usage event category cannot be empty")
	ErrInvalidEventMeta   = errors.New("usage event metadata must be valid JSON")
)

// UsageEvent records a single accountable action against an external
// provider: a task submitted to the queue, its terminal outcome, or a
// lookup answered from cache without spending provider quota. Events
// are append-only and feed the admin usage summary.
type UsageEvent struct {
	ID           uuid.UUID       `json:"id"`
	EventType    UsageEventType  `json:"event_type"`
	Actor        string          `json:"actor"`
	TaskCategory string          `json:"task_category"`
	TaskID       string          `json:"task_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewUsageEvent creates a new UsageEvent for the given actor and category.
// It generates a new UUID for the event ID and sets the creation timestamp.
// taskID may be empty for events that never produced a task, such as
// cache-served lookups. metadata may be nil.
// Returns an error if validation fails.
func NewUsageEvent(
	eventType UsageEventType,
	actor string,
	category string,
	taskID string,
	metadata json.RawMessage,
) (*UsageEvent, error) {
	event := &UsageEvent{
		ID:           uuid.New(),
		EventType:    eventType,
		Actor:        actor,
		TaskCategory: category,
		TaskID:       taskID,
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	return event, nil
}

// Validate checks if the UsageEvent has valid data.
// Returns an error if any field fails validation.
func (e *UsageEvent) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyEventID
	}

	if !isValidEventType(e.EventType) {
		return ErrInvalidEventType
	}

	if e.Actor == "" {
		return ErrEmptyEventActor
	}

	if e.TaskCategory == "" {
		return ErrEmptyEventCategory
	}

	if len(e.Metadata) > 0 && !json.Valid(e.Metadata) {
		return ErrInvalidEventMeta
	}

	return nil
}

// isValidEventType checks if the given type is a valid UsageEventType.
func isValidEventType(eventType UsageEventType) bool {
	switch eventType {
	case EventTaskSubmitted, EventTaskCompleted, EventTaskFailed,
		EventTaskCancelled, EventLookupCached:
		return true
	default:
		return false
	}
}

// UsageCount is one row of the usage summary: how many events of one
// type were recorded for one task category.
type UsageCount struct {
	EventType    UsageEventType `json:"event_type"`
	TaskCategory string         `json:"task_category"`
	Count        int64          `json:"count"`
}
