// Package service implements the worker-side business logic behind the task
// queue: registry lookups against OFData with a Redis read-through cache, and
// Gamma document exports with optional Gemini enrichment.
package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in service-specific error types
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. Queue handlers surface these messages verbatim in the task error field
var (
	// ErrInvalidPayload indicates a task payload that cannot be parsed or is
	// missing required fields. Retrying such a task can never succeed, so
	// callers should treat it as a permanent failure.
	ErrInvalidPayload = errors.New("task payload is invalid")

	// ErrRegistryNotFound indicates the registry has no record for the
	// requested INN. This covers both genuine misses and the provider's
	// "wrong input" responses for malformed numbers.
	ErrRegistryNotFound = errors.New("registry record not found")
)
