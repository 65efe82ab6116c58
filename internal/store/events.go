package store

import (
	"context"
	"time"

	"github.com/bizscan/bizscan-api/internal/domain"
)

// UsageEventStore defines the interface for usage event persistence.
// Events are append-only; there are no update or delete operations.
type UsageEventStore interface {
	// Create saves a new usage event.
	// Returns validation errors from the domain UsageEvent if the event is invalid,
	// or ErrDuplicate if an event with the same ID already exists.
	Create(ctx context.Context, event *domain.UsageEvent) error

	// Summary returns per-type, per-category event counts for events
	// created at or after the given time, ordered by event type and
	// then category. A period with no events yields an empty slice.
	Summary(ctx context.Context, since time.Time) ([]domain.UsageCount, error)

	// CountForActor returns the number of events of the given type
	// recorded for one actor since the given time. Used to answer
	// per-client usage questions without fetching full summaries.
	CountForActor(
		ctx context.Context,
		actor string,
		eventType domain.UsageEventType,
		since time.Time,
	) (int64, error)
}
