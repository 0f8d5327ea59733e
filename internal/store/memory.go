package store

import (
	"context"
	"slices"
	"sync"

	"github.com/tbourn/go-messages-api/internal/query"
)

// Memory is a process-local Collection backed by a slice. It is used for
// tests and for the "memory" backend in development.
type Memory[T query.Record] struct {
	mu      sync.RWMutex
	records []T
}

// NewMemory returns a Memory collection seeded with a copy of records.
func NewMemory[T query.Record](records ...T) *Memory[T] {
	return &Memory[T]{records: slices.Clone(records)}
}

// LoadAll returns a copy of the current records.
func (m *Memory[T]) LoadAll(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records), nil
}

// SaveAll replaces the stored records with a copy of records.
func (m *Memory[T]) SaveAll(ctx context.Context, records []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = slices.Clone(records)
	return nil
}

// Mutate applies fn under the write lock.
func (m *Memory[T]) Mutate(ctx context.Context, fn MutateFunc[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(slices.Clone(m.records))
	if err != nil {
		return err
	}
	m.records = slices.Clone(next)
	return nil
}

// Ping always succeeds.
func (m *Memory[T]) Ping(context.Context) error { return nil }
