// Package rediscache wraps a store.Collection with a read-through Redis cache
// of the whole collection snapshot. Reads are served from Redis when the key
// is present; every write goes to the wrapped collection first and then bumps
// a generation counter. Snapshots are keyed by generation, so a reader that
// loaded before a write can only fill a generation nobody reads any more.
// Cache failures are logged and fall back to the wrapped collection, so Redis
// is never a source of truth.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-messages-api/internal/query"
	"github.com/tbourn/go-messages-api/internal/store"
)

// Connect creates a Redis client for address and verifies connectivity.
func Connect(ctx context.Context, address string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        address,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Collection caches the snapshot of an inner collection, one key per
// generation.
type Collection[T query.Record] struct {
	inner  store.Collection[T]
	client *redis.Client
	prefix string
	genKey string
	ttl    time.Duration
}

// New wraps inner. Snapshots are stored under "snapshot:<name>:<gen>" for
// ttl; the current generation lives in "snapshot:<name>:gen".
func New[T query.Record](inner store.Collection[T], client *redis.Client, name string, ttl time.Duration) *Collection[T] {
	prefix := "snapshot:" + name
	return &Collection[T]{
		inner:  inner,
		client: client,
		prefix: prefix,
		genKey: prefix + ":gen",
		ttl:    ttl,
	}
}

// LoadAll returns the cached snapshot, loading and caching it on a miss.
// The generation is read before the inner load; a write that lands in
// between bumps it, and the snapshot cached here is never read.
func (c *Collection[T]) LoadAll(ctx context.Context) ([]T, error) {
	key, ok := c.snapshotKey(ctx)
	if !ok {
		return c.inner.LoadAll(ctx)
	}
	if recs, ok := c.get(ctx, key); ok {
		return recs, nil
	}
	recs, err := c.inner.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, recs)
	return recs, nil
}

// SaveAll writes through and invalidates the snapshot.
func (c *Collection[T]) SaveAll(ctx context.Context, records []T) error {
	if err := c.inner.SaveAll(ctx, records); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// Mutate delegates to the inner collection and invalidates the snapshot
// after a successful write.
func (c *Collection[T]) Mutate(ctx context.Context, fn store.MutateFunc[T]) error {
	if err := c.inner.Mutate(ctx, fn); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// Ping checks both Redis and the inner collection.
func (c *Collection[T]) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return c.inner.Ping(ctx)
}

// snapshotKey returns the key of the current generation's snapshot. A
// missing counter is generation 0. ok is false when Redis is unavailable.
func (c *Collection[T]) snapshotKey(ctx context.Context) (string, bool) {
	gen, err := c.client.Get(ctx, c.genKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("key", c.genKey).Msg("cache generation read failed")
		return "", false
	}
	return c.prefix + ":" + strconv.FormatInt(gen, 10), true
}

func (c *Collection[T]) get(ctx context.Context, key string) ([]T, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}
	out := []T{}
	if err := json.Unmarshal(data, &out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache decode failed")
		return nil, false
	}
	return out, true
}

func (c *Collection[T]) set(ctx context.Context, key string, recs []T) {
	data, err := json.Marshal(recs)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// invalidate moves readers to a new generation. Older snapshots expire on
// their own.
func (c *Collection[T]) invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, c.genKey).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.genKey).Msg("cache invalidate failed")
	}
}
