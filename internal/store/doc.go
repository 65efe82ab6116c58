// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying storage mechanism from the
// application's core logic: the API and queue callbacks depend on the
// UsageEventStore interface, never on a concrete database.
package store
