package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-messages-api/internal/config"
	"github.com/tbourn/go-messages-api/internal/domain"
	"github.com/tbourn/go-messages-api/internal/http/handlers"
	"github.com/tbourn/go-messages-api/internal/observability"
	"github.com/tbourn/go-messages-api/internal/store"
	"github.com/tbourn/go-messages-api/internal/store/filestore"
	"github.com/tbourn/go-messages-api/internal/store/gormstore"
	"github.com/tbourn/go-messages-api/internal/store/pgstore"
	"github.com/tbourn/go-messages-api/internal/store/rediscache"
)

// stores holds the two collections plus the resources that back them.
type stores struct {
	threads  store.Collection[domain.Thread]
	messages store.Collection[domain.Message]
	closers  []func()
}

func (s *stores) pingers() []handlers.Pinger {
	return []handlers.Pinger{s.threads, s.messages}
}

// Close releases connections in reverse order of acquisition.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores builds the collections selected by cfg.Store.Backend, wraps
// them with the Redis cache when REDIS_ADDR is set, and instruments them.
func openStores(ctx context.Context, cfg config.Config) (_ *stores, err error) {
	s := &stores{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := gormstore.OpenSQLite(cfg.Store.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Store.DBPath, err)
		}
		if sqlDB, err := db.DB(); err == nil {
			s.closers = append(s.closers, func() { _ = sqlDB.Close() })
		}
		if cfg.OTEL.Enabled {
			if err := observability.TraceGORM(db); err != nil {
				return nil, fmt.Errorf("gorm tracing: %w", err)
			}
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		s.threads = gormstore.New[domain.Thread](db)
		s.messages = gormstore.New[domain.Message](db)

	case config.BackendPostgres:
		pool, err := pgstore.Connect(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		prefix := pgstore.WithTablePrefix(cfg.Store.TablePrefix)
		threads := pgstore.New[domain.Thread](pool, "threads", prefix)
		messages := pgstore.New[domain.Message](pool, "messages", prefix)
		if err := threads.Migrate(ctx); err != nil {
			return nil, err
		}
		if err := messages.Migrate(ctx); err != nil {
			return nil, err
		}
		s.threads, s.messages = threads, messages

	case config.BackendFile:
		if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		threads, err := filestore.New[domain.Thread](filepath.Join(cfg.Store.DataDir, "threads.json"))
		if err != nil {
			return nil, err
		}
		messages, err := filestore.New[domain.Message](filepath.Join(cfg.Store.DataDir, "messages.json"))
		if err != nil {
			return nil, err
		}
		s.threads, s.messages = threads, messages

	case config.BackendMemory:
		s.threads = store.NewMemory[domain.Thread]()
		s.messages = store.NewMemory[domain.Message]()

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Store.RedisAddr != "" {
		client, err := rediscache.Connect(ctx, cfg.Store.RedisAddr)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.threads = rediscache.New(s.threads, client, "threads", cfg.Store.CacheTTL)
		s.messages = rediscache.New(s.messages, client, "messages", cfg.Store.CacheTTL)
		log.Info().Str("addr", cfg.Store.RedisAddr).Dur("ttl", cfg.Store.CacheTTL).Msg("redis snapshot cache enabled")
	}

	s.threads = store.Instrument(s.threads, cfg.Store.Backend, "threads")
	s.messages = store.Instrument(s.messages, cfg.Store.Backend, "messages")
	return s, nil
}
