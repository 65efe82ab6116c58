// Package postgres provides the PostgreSQL implementation of the storage
// interfaces defined in internal/store. It handles query execution, error
// mapping and data conversion between domain entities and database rows.
// Only usage accounting is persisted here; task state never touches the
// database.
package postgres
