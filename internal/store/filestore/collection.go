// Package filestore implements store.Collection as a single JSON array on
// disk. Every write rewrites the whole file through a temporary file and an
// atomic rename, so readers never observe a half-written collection. Writers
// that share a path inside one process are serialized by a per-path lock;
// the backend is not meant to be shared between processes.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/tbourn/go-messages-api/internal/query"
	"github.com/tbourn/go-messages-api/internal/store"
)

var (
	locksMu sync.Mutex
	locks   = map[string]*sync.RWMutex{}
)

// lockFor returns the process-wide lock for an absolute path.
func lockFor(path string) *sync.RWMutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	l, ok := locks[path]
	if !ok {
		l = &sync.RWMutex{}
		locks[path] = l
	}
	return l
}

// Collection persists records of type T as a JSON array in one file.
type Collection[T query.Record] struct {
	path string
	mu   *sync.RWMutex
}

// New returns a Collection stored at path. The parent directory must exist;
// the file itself is created on first write. A missing file reads as an
// empty collection.
func New[T query.Record](path string) (*Collection[T], error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Dir(abs)); err != nil {
		return nil, err
	}
	return &Collection[T]{path: abs, mu: lockFor(abs)}, nil
}

// Path returns the absolute file path.
func (c *Collection[T]) Path() string { return c.path }

// LoadAll decodes the file. Storage order is the order of the JSON array.
func (c *Collection[T]) LoadAll(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.read()
}

// SaveAll rewrites the file with records.
func (c *Collection[T]) SaveAll(ctx context.Context, records []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(records)
}

// Mutate reads, applies fn, and rewrites the file while holding the write lock.
func (c *Collection[T]) Mutate(ctx context.Context, fn store.MutateFunc[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.read()
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(next)
}

// Ping verifies the directory is still reachable and the file, if present,
// is readable.
func (c *Collection[T]) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Dir(c.path)); err != nil {
		return err
	}
	if _, err := os.Stat(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (c *Collection[T]) read() ([]T, error) {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []T{}, nil
	}
	out := []T{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(c.path), err)
	}
	return out, nil
}

func (c *Collection[T]) write(records []T) error {
	if records == nil {
		records = []T{}
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(c.path), err)
	}
	raw = append(raw, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(c.path), "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		cleanup()
		return err
	}
	return nil
}
