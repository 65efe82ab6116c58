package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bizscan/bizscan-api/internal/domain"
	"github.com/bizscan/bizscan-api/internal/platform/ofdata"
	"github.com/bizscan/bizscan-api/internal/redact"
	"github.com/bizscan/bizscan-api/internal/store"
)

// cacheEventActor is recorded as the actor on lookup_cached usage events.
// Cache hits happen on worker goroutines long after the submitting service's
// request has returned, so they are attributed to the system itself.
const cacheEventActor = "system"

// RegistryClient is the slice of the OFData client the registry service
// needs. Satisfied by *ofdata.Client.
type RegistryClient interface {
	// Company looks up a legal entity by INN.
	Company(ctx context.Context, inn string) (*ofdata.Record, error)
	// Entrepreneur looks up an individual entrepreneur by INN.
	Entrepreneur(ctx context.Context, inn string) (*ofdata.Record, error)
}

// RecordCache stores serialized registry records keyed by kind and INN.
// Satisfied by *cache.LookupCache.
type RecordCache interface {
	// Get returns the cached payload and whether it was present.
	Get(ctx context.Context, kind, inn string) ([]byte, bool, error)
	// Set stores a payload under the cache's TTL.
	Set(ctx context.Context, kind, inn string, payload []byte) error
}

// LookupRequest identifies one registry lookup. TaskID and Category tie the
// lookup back to the queue task that triggered it so usage events can be
// attributed; both may be empty for ad-hoc lookups.
type LookupRequest struct {
	// Kind is ofdata.KindCompany or ofdata.KindEntrepreneur.
	Kind string
	// INN is the taxpayer number to look up.
	INN string
	// TaskID is the queue task driving this lookup, if any.
	TaskID string
	// Category is the task category recorded on usage events.
	Category string
}

// RegistryLookup is the result of a registry lookup. It is stored verbatim
// as the queue task result, so every field carries a JSON tag.
type RegistryLookup struct {
	Kind string `json:"kind"`
	INN  string `json:"inn"`
	// Name is the decoded display name, empty when the payload carries none.
	Name string `json:"name,omitempty"`
	// Data is the raw registry payload as returned by the provider.
	Data json.RawMessage `json:"data"`
	// Cached reports whether the lookup was served from the cache.
	Cached bool `json:"cached"`
}

// RegistryService performs business-registry lookups with a read-through
// cache in front of the OFData API.
type RegistryService interface {
	// Lookup returns the registry record for the requested kind and INN,
	// consulting the cache before the provider. Returns ErrRegistryNotFound
	// when the registry has no such record and ErrInvalidPayload for
	// unusable input.
	Lookup(ctx context.Context, req LookupRequest) (*RegistryLookup, error)
}

// RegistryServiceError wraps errors from the registry service with context.
type RegistryServiceError struct {
	// Operation is the operation that failed (e.g., "lookup")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for RegistryServiceError.
func (e *RegistryServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("registry service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *RegistryServiceError) Unwrap() error {
	return e.Err
}

// NewRegistryServiceError creates a new RegistryServiceError.
// It returns known sentinel errors directly without wrapping.
func NewRegistryServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	// Payload problems keep their own sentinel so handlers can tell
	// unusable input apart from provider failures.
	if errors.Is(err, ErrInvalidPayload) {
		return err
	}

	// Provider-level misses map to the service-level sentinel.
	if errors.Is(err, ofdata.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrRegistryNotFound, message)
	}

	return &RegistryServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// registryServiceImpl implements the RegistryService interface.
type registryServiceImpl struct {
	client RegistryClient
	cache  RecordCache
	events store.UsageEventStore
	logger *slog.Logger
}

// NewRegistryService creates a new RegistryService.
// It returns an error if any of the required dependencies are nil.
func NewRegistryService(
	client RegistryClient,
	recordCache RecordCache,
	events store.UsageEventStore,
	logger *slog.Logger,
) (RegistryService, error) {
	if client == nil {
		return nil, &RegistryServiceError{
			Operation: "create_service",
			Message:   "client cannot be nil",
		}
	}
	if recordCache == nil {
		return nil, &RegistryServiceError{
			Operation: "create_service",
			Message:   "recordCache cannot be nil",
		}
	}
	if events == nil {
		return nil, &RegistryServiceError{
			Operation: "create_service",
			Message:   "events cannot be nil",
		}
	}
	if logger == nil {
		return nil, &RegistryServiceError{
			Operation: "create_service",
			Message:   "logger cannot be nil",
		}
	}

	return &registryServiceImpl{
		client: client,
		cache:  recordCache,
		events: events,
		logger: logger.With(slog.String("component", "registry_service")),
	}, nil
}

// Lookup consults the cache first and falls back to the provider. Cache
// failures on either path are logged and ignored; the provider remains the
// source of truth.
func (s *registryServiceImpl) Lookup(ctx context.Context, req LookupRequest) (*RegistryLookup, error) {
	kind := strings.TrimSpace(req.Kind)
	inn := strings.TrimSpace(req.INN)
	if kind != ofdata.KindCompany && kind != ofdata.KindEntrepreneur {
		return nil, fmt.Errorf("%w: unknown registry kind %q", ErrInvalidPayload, req.Kind)
	}
	if inn == "" {
		return nil, fmt.Errorf("%w: inn cannot be empty", ErrInvalidPayload)
	}

	log := s.logger.With(slog.String("kind", kind), slog.String("inn", inn))

	if record, ok := s.fromCache(ctx, log, kind, inn); ok {
		log.DebugContext(ctx, "registry lookup served from cache",
			slog.String("task_id", req.TaskID))
		s.recordCacheHit(ctx, log, req, record)
		return &RegistryLookup{
			Kind:   record.Kind,
			INN:    record.INN,
			Name:   record.Name,
			Data:   record.Data,
			Cached: true,
		}, nil
	}

	record, err := s.fetch(ctx, kind, inn)
	if err != nil {
		return nil, NewRegistryServiceError("lookup",
			fmt.Sprintf("%s lookup for inn %s", kind, inn), err)
	}
	log.DebugContext(ctx, "registry lookup served by provider",
		slog.String("name", record.Name))

	s.toCache(ctx, log, kind, inn, record)

	return &RegistryLookup{
		Kind: record.Kind,
		INN:  record.INN,
		Name: record.Name,
		Data: record.Data,
	}, nil
}

// fetch dispatches to the provider endpoint for the given kind. Kind is
// validated by the caller.
func (s *registryServiceImpl) fetch(ctx context.Context, kind, inn string) (*ofdata.Record, error) {
	if kind == ofdata.KindEntrepreneur {
		return s.client.Entrepreneur(ctx, inn)
	}
	return s.client.Company(ctx, inn)
}

// fromCache returns the cached record for kind/inn, or ok=false on a miss.
// Cache errors and undecodable entries count as misses.
func (s *registryServiceImpl) fromCache(ctx context.Context, log *slog.Logger, kind, inn string) (*ofdata.Record, bool) {
	payload, found, err := s.cache.Get(ctx, kind, inn)
	if err != nil {
		log.WarnContext(ctx, "cache read failed, falling back to provider",
			slog.String("error", redact.Error(err)))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var record ofdata.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		log.WarnContext(ctx, "cached registry record is undecodable, refetching",
			slog.String("error", err.Error()))
		return nil, false
	}
	return &record, true
}

// toCache stores the record best-effort. A failed write never fails the
// lookup.
func (s *registryServiceImpl) toCache(ctx context.Context, log *slog.Logger, kind, inn string, record *ofdata.Record) {
	payload, err := json.Marshal(record)
	if err != nil {
		log.WarnContext(ctx, "failed to serialize registry record for cache",
			slog.String("error", err.Error()))
		return
	}
	if err := s.cache.Set(ctx, kind, inn, payload); err != nil {
		log.WarnContext(ctx, "cache write failed",
			slog.String("error", redact.Error(err)))
	}
}

// recordCacheHit writes a lookup_cached usage event. Accounting is
// best-effort and never affects the lookup outcome.
func (s *registryServiceImpl) recordCacheHit(ctx context.Context, log *slog.Logger, req LookupRequest, record *ofdata.Record) {
	metadata, err := json.Marshal(map[string]string{
		"kind": record.Kind,
		"inn":  record.INN,
		"name": record.Name,
	})
	if err != nil {
		log.WarnContext(ctx, "failed to serialize cache hit metadata",
			slog.String("error", err.Error()))
		metadata = nil
	}

	category := req.Category
	if category == "" {
		category = record.Kind
	}

	event, err := domain.NewUsageEvent(domain.EventLookupCached, cacheEventActor, category, req.TaskID, metadata)
	if err != nil {
		log.WarnContext(ctx, "failed to build cache hit event",
			slog.String("error", err.Error()))
		return
	}
	if err := s.events.Create(ctx, event); err != nil {
		log.WarnContext(ctx, "failed to record cache hit event",
			slog.String("error", redact.Error(err)))
	}
}
