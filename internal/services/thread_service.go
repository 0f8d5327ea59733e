// Package services – ThreadService
//
// This file implements ThreadService, which manages the lifecycle of threads:
// listing through the collection query engine, lookup by id, creation, title
// updates, and deletion. Deleting a thread also removes every message that
// belongs to it.
//
// Titles are whitespace-normalized and capped by rune length; over-length or
// empty titles are reported as *ValidationError.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-messages-api/internal/domain"
	"github.com/tbourn/go-messages-api/internal/query"
	"github.com/tbourn/go-messages-api/internal/store"
)

// ThreadService provides thread-level operations.
type ThreadService struct {
	// Threads is the persisted thread collection.
	Threads store.Collection[domain.Thread]
	// Messages is consulted only to cascade deletes.
	Messages store.Collection[domain.Message]

	// TitleMaxLen caps titles by rune length.
	TitleMaxLen int

	now func() time.Time
}

// NewThreadService constructs a ThreadService with default limits.
func NewThreadService(threads store.Collection[domain.Thread], messages store.Collection[domain.Message]) *ThreadService {
	return &ThreadService{
		Threads:     threads,
		Messages:    messages,
		TitleMaxLen: defaultTitleMaxLen,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List runs the query engine over all threads. Without an explicit sort,
// threads are listed newest first. Sort is expected to be normalized by
// query.ParseParams already.
func (s *ThreadService) List(ctx context.Context, p query.Params) (query.Result[domain.Thread], error) {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("query.search", p.Search),
			attribute.Int("query.page", p.Page),
			attribute.Int("query.limit", p.Limit),
		),
	)
	defer span.End()

	if p.Sort == "" {
		p.Sort = query.SortDesc
	}
	all, err := s.Threads.LoadAll(ctx)
	if err != nil {
		span.RecordError(err)
		return query.Result[domain.Thread]{}, storageErr("list threads", err)
	}
	return query.Run(all, p), nil
}

// Get returns the thread with the given id or ErrThreadNotFound.
func (s *ThreadService) Get(ctx context.Context, id string) (*domain.Thread, error) {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "Get",
		trace.WithAttributes(attribute.String("thread.id", id)))
	defer span.End()

	all, err := s.Threads.LoadAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, storageErr("get thread", err)
	}
	t, ok := query.FindByID(all, id)
	if !ok {
		return nil, ErrThreadNotFound
	}
	return &t, nil
}

// Create validates title and appends a new thread.
func (s *ThreadService) Create(ctx context.Context, title string) (*domain.Thread, error) {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "Create")
	defer span.End()

	title = normalizeTitle(title)
	if err := requireText("title", title, s.TitleMaxLen); err != nil {
		return nil, err
	}

	now := s.now()
	t := domain.Thread{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
	err := s.Threads.Mutate(ctx, func(cur []domain.Thread) ([]domain.Thread, error) {
		return query.Insert(cur, t)
	})
	if err != nil {
		span.RecordError(err)
		return nil, storageErr("create thread", err)
	}
	span.SetAttributes(attribute.String("thread.id", t.ID))
	return &t, nil
}

// Update replaces the title of an existing thread. The id and creation time
// never change.
func (s *ThreadService) Update(ctx context.Context, id, title string) (*domain.Thread, error) {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "Update",
		trace.WithAttributes(attribute.String("thread.id", id)))
	defer span.End()

	title = normalizeTitle(title)
	if err := requireText("title", title, s.TitleMaxLen); err != nil {
		return nil, err
	}

	var updated domain.Thread
	err := s.Threads.Mutate(ctx, func(cur []domain.Thread) ([]domain.Thread, error) {
		next, t, err := query.Replace(cur, id, func(t domain.Thread) (domain.Thread, error) {
			t.Title = title
			t.UpdatedAt = s.now()
			return t, nil
		})
		if errors.Is(err, query.ErrNotFound) {
			return nil, ErrThreadNotFound
		}
		updated = t
		return next, err
	})
	if err != nil {
		span.RecordError(err)
		return nil, storageErr("update thread", err)
	}
	return &updated, nil
}

// Delete removes a thread and then its messages. The two collections are
// written separately; a failure in the second step is returned after the
// thread itself is gone.
func (s *ThreadService) Delete(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("services/ThreadService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("thread.id", id)))
	defer span.End()

	err := s.Threads.Mutate(ctx, func(cur []domain.Thread) ([]domain.Thread, error) {
		next, _, err := query.Remove(cur, id)
		if errors.Is(err, query.ErrNotFound) {
			return nil, ErrThreadNotFound
		}
		return next, err
	})
	if err != nil {
		span.RecordError(err)
		return storageErr("delete thread", err)
	}

	if s.Messages == nil {
		return nil
	}
	var removed int
	err = s.Messages.Mutate(ctx, func(cur []domain.Message) ([]domain.Message, error) {
		next, n := query.RemoveWhere(cur, func(m domain.Message) bool { return m.ThreadID == id })
		removed = n
		return next, nil
	})
	if err != nil {
		span.RecordError(err)
		return storageErr("delete thread messages", err)
	}
	log.Ctx(ctx).Debug().Str("thread_id", id).Int("messages", removed).Msg("thread deleted")
	return nil
}
