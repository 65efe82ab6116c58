// Package domain contains the core business entities of the application.
// Task state lives in memory inside the queue and is deliberately not an
// entity here; the only persisted concept is the usage event, the
// append-only record of accountable work done against external providers.
package domain
