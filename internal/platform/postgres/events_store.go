package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bizscan/bizscan-api/internal/domain"
	"github.com/bizscan/bizscan-api/internal/platform/logger"
	"github.com/bizscan/bizscan-api/internal/store"
)

// PostgresUsageEventStore implements the store.UsageEventStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUsageEventStore struct {
	db store.DBTX
}

// NewPostgresUsageEventStore creates a new PostgresUsageEventStore.
// It accepts a database connection or transaction that should be
// initialized and managed by the caller.
func NewPostgresUsageEventStore(db store.DBTX) *PostgresUsageEventStore {
	return &PostgresUsageEventStore{
		db: db,
	}
}

// Ensure PostgresUsageEventStore implements store.UsageEventStore interface
var _ store.UsageEventStore = (*PostgresUsageEventStore)(nil)

// Create implements store.UsageEventStore.Create
func (s *PostgresUsageEventStore) Create(ctx context.Context, event *domain.UsageEvent) error {
	log := logger.FromContext(ctx)

	if err := event.Validate(); err != nil {
		log.Warn("rejected invalid usage event",
			"event_type", event.EventType,
			"error", err)
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO usage_events (id, event_type, actor, task_category, task_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`

	// Metadata is nullable; an empty RawMessage would fail the column's
	// JSON validity check, so store NULL instead.
	var metadata interface{}
	if len(event.Metadata) > 0 {
		metadata = []byte(event.Metadata)
	}

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Actor,
		event.TaskCategory,
		event.TaskID,
		metadata,
		event.CreatedAt,
	)

	if err != nil {
		log.Error("failed to save usage event",
			"event_id", event.ID,
			"event_type", event.EventType,
			"error", err)
		return MapError(fmt.Errorf("failed to save usage event: %w", err))
	}

	return nil
}

// Summary implements store.UsageEventStore.Summary
func (s *PostgresUsageEventStore) Summary(ctx context.Context, since time.Time) ([]domain.UsageCount, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT event_type, task_category, COUNT(*)
		FROM usage_events
		WHERE created_at >= $1
		GROUP BY event_type, task_category
		ORDER BY event_type, task_category
	`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		log.Error("failed to query usage summary",
			"since", since,
			"error", err)
		return nil, MapError(fmt.Errorf("failed to query usage summary: %w", err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", "error", closeErr)
		}
	}()

	var counts []domain.UsageCount
	for rows.Next() {
		var row domain.UsageCount
		if err := rows.Scan(&row.EventType, &row.TaskCategory, &row.Count); err != nil {
			log.Error("failed to scan usage count row", "error", err)
			return nil, fmt.Errorf("failed to scan usage count row: %w", err)
		}
		counts = append(counts, row)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating usage count rows", "error", err)
		return nil, fmt.Errorf("error iterating usage count rows: %w", err)
	}

	return counts, nil
}

// CountForActor implements store.UsageEventStore.CountForActor
func (s *PostgresUsageEventStore) CountForActor(
	ctx context.Context,
	actor string,
	eventType domain.UsageEventType,
	since time.Time,
) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT COUNT(*)
		FROM usage_events
		WHERE actor = $1 AND event_type = $2 AND created_at >= $3
	`

	var count int64
	err := s.db.QueryRowContext(ctx, query, actor, eventType, since).Scan(&count)
	if err != nil {
		log.Error("failed to count usage events for actor",
			"actor", actor,
			"event_type", eventType,
			"error", err)
		return 0, MapError(fmt.Errorf("failed to count usage events: %w", err))
	}

	return count, nil
}
