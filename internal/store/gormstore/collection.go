package gormstore

import (
	"context"
	"reflect"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-messages-api/internal/domain"
	"github.com/tbourn/go-messages-api/internal/query"
	"github.com/tbourn/go-messages-api/internal/store"
)

// Collection is a store.Collection persisted as rows of T's table. T must be
// a GORM model with an "id" primary key and a "created_at" column.
//
// Mutate runs inside one transaction and only writes the difference between
// the loaded snapshot and the callback's result: rows that disappeared are
// deleted, new or changed rows are upserted. An in-process mutex serializes
// writers so SQLite never has to upgrade concurrent read transactions.
type Collection[T query.Record] struct {
	db *gorm.DB
	mu sync.Mutex
}

var _ store.Collection[domain.Message] = (*Collection[domain.Message])(nil)

// New returns a Collection bound to db.
func New[T query.Record](db *gorm.DB) *Collection[T] {
	return &Collection[T]{db: db}
}

// LoadAll returns all rows ordered deterministically (created_at ASC, id ASC).
func (c *Collection[T]) LoadAll(ctx context.Context) ([]T, error) {
	return load[T](c.db.WithContext(ctx))
}

// SaveAll replaces every stored row with records.
func (c *Collection[T]) SaveAll(ctx context.Context, records []T) error {
	return c.Mutate(ctx, func([]T) ([]T, error) { return records, nil })
}

// Mutate loads the rows, applies fn, and writes the diff in one transaction.
func (c *Collection[T]) Mutate(ctx context.Context, fn store.MutateFunc[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := load[T](tx)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return applyDiff(tx, current, next)
	})
}

// Ping checks the underlying connection.
func (c *Collection[T]) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func load[T query.Record](db *gorm.DB) ([]T, error) {
	out := []T{}
	err := db.Model(new(T)).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// applyDiff deletes rows missing from next and upserts rows that are new or
// differ from their stored version.
func applyDiff[T query.Record](tx *gorm.DB, current, next []T) error {
	before := make(map[string]T, len(current))
	for _, r := range current {
		before[r.RecordID()] = r
	}

	keep := make(map[string]struct{}, len(next))
	changed := make([]T, 0, len(next))
	for _, r := range next {
		id := r.RecordID()
		keep[id] = struct{}{}
		if old, ok := before[id]; ok && reflect.DeepEqual(old, r) {
			continue
		}
		changed = append(changed, r)
	}

	var removed []string
	for id := range before {
		if _, ok := keep[id]; !ok {
			removed = append(removed, id)
		}
	}

	if len(removed) > 0 {
		if err := tx.Where("id IN ?", removed).Delete(new(T)).Error; err != nil {
			return err
		}
	}
	if len(changed) > 0 {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&changed).Error; err != nil {
			return err
		}
	}
	return nil
}
