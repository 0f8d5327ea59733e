// Package store defines the persistence contract for record collections.
//
// A Collection holds the complete set of records of one kind (threads or
// messages). Callers read a snapshot with LoadAll and change it through
// Mutate, which every backend implements as an atomic read-modify-write:
// the callback sees the current snapshot and its result is persisted only
// when it returns nil. Concurrent writers therefore never lose updates, and
// a failed callback leaves the stored collection untouched.
//
// Backends:
//   - gormstore:  SQL via GORM (SQLite by default)
//   - pgstore:    PostgreSQL via pgx
//   - filestore:  one JSON file per collection
//   - rediscache: read-through snapshot cache wrapping any of the above
package store

import (
	"context"

	"github.com/tbourn/go-messages-api/internal/query"
)

// MutateFunc receives the current snapshot and returns the collection that
// should be persisted. Returning an error aborts the mutation.
type MutateFunc[T query.Record] func(current []T) ([]T, error)

// Collection is a persisted collection of records.
//
// Implementations must be safe for concurrent use.
type Collection[T query.Record] interface {
	// LoadAll returns every record in storage order. The returned slice is
	// owned by the caller.
	LoadAll(ctx context.Context) ([]T, error)

	// SaveAll replaces the stored collection with records.
	SaveAll(ctx context.Context, records []T) error

	// Mutate atomically loads the collection, applies fn, and persists the
	// result. Errors from fn are returned unchanged.
	Mutate(ctx context.Context, fn MutateFunc[T]) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
