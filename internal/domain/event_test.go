package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewUsageEvent(t *testing.T) {
	t.Parallel() // Enable parallel execution
	metadata := json.RawMessage(`{"inn":"7707083893"}`)

	event, err := NewUsageEvent(EventTaskSubmitted, "chatbot", "ofdata_company", "ofdata_company_abc", metadata)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if event.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if event.EventType != EventTaskSubmitted {
		t.Errorf("Expected event type %s, got %s", EventTaskSubmitted, event.EventType)
	}

	if event.Actor != "chatbot" {
		t.Errorf("Expected actor chatbot, got %s", event.Actor)
	}

	if event.TaskCategory != "ofdata_company" {
		t.Errorf("Expected category ofdata_company, got %s", event.TaskCategory)
	}

	if event.TaskID != "ofdata_company_abc" {
		t.Errorf("Expected task ID ofdata_company_abc, got %s", event.TaskID)
	}

	if event.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}

	// Task ID and metadata are optional
	event, err = NewUsageEvent(EventLookupCached, "chatbot", "ofdata_company", "", nil)
	if err != nil {
		t.Fatalf("Expected no error for empty task ID, got %v", err)
	}
	if event.TaskID != "" {
		t.Errorf("Expected empty task ID, got %s", event.TaskID)
	}

	// Invalid event type
	_, err = NewUsageEvent("unknown", "chatbot", "ofdata_company", "", nil)
	if !errors.Is(err, ErrInvalidEventType) {
		t.Errorf("Expected error %v, got %v", ErrInvalidEventType, err)
	}

	// Empty actor
	_, err = NewUsageEvent(EventTaskSubmitted, "", "ofdata_company", "", nil)
	if !errors.Is(err, ErrEmptyEventActor) {
		t.Errorf("Expected error %v, got %v", ErrEmptyEventActor, err)
	}
}

func TestUsageEventValidate(t *testing.T) {
	t.Parallel() // Enable parallel execution
	validEvent := UsageEvent{
		ID:           uuid.New(),
		EventType:    EventTaskCompleted,
		Actor:        "chatbot",
		TaskCategory: "gamma_pdf",
		TaskID:       "gamma_pdf_xyz",
	}

	if err := validEvent.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(e *UsageEvent)
		wantErr error
	}{
		{
			name:    "nil ID",
			mutate:  func(e *UsageEvent) { e.ID = uuid.Nil },
			wantErr: ErrEmptyEventID,
		},
		{
			name:    "invalid type",
			mutate:  func(e *UsageEvent) { e.EventType = "bogus" },
			wantErr: ErrInvalidEventType,
		},
		{
			name:    "empty actor",
			mutate:  func(e *UsageEvent) { e.Actor = "" },
			wantErr: ErrEmptyEventActor,
		},
		{
			name:    "empty category",
			mutate:  func(e *UsageEvent) { e.TaskCategory = "" },
			wantErr: ErrEmptyEventCategory,
		},
		{
			name:    "malformed metadata",
			mutate:  func(e *UsageEvent) { e.Metadata = json.RawMessage(`{"open`) },
			wantErr: ErrInvalidEventMeta,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			event := validEvent
			tt.mutate(&event)
			if err := event.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUsageEventTypeCoverage(t *testing.T) {
	t.Parallel() // Enable parallel execution
	valid := []UsageEventType{
		EventTaskSubmitted,
		EventTaskCompleted,
		EventTaskFailed,
		EventTaskCancelled,
		EventLookupCached,
	}

	for _, eventType := range valid {
		if !isValidEventType(eventType) {
			t.Errorf("Expected %s to be a valid event type", eventType)
		}
	}

	if isValidEventType("") {
		t.Error("Expected empty event type to be invalid")
	}
}
