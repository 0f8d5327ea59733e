// Package services – MessageService
//
// This file implements MessageService, which owns the lifecycle of messages.
// Messages of every thread live in one collection; per-thread listings filter
// by thread id before handing the snapshot to the query engine.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include thread/message identifiers and query parameters where applicable.

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-messages-api/internal/domain"
	"github.com/tbourn/go-messages-api/internal/query"
	"github.com/tbourn/go-messages-api/internal/store"
)

// MessageService coordinates message persistence and querying.
type MessageService struct {
	Messages store.Collection[domain.Message]
	Threads  store.Collection[domain.Thread]

	// MaxTextRunes caps message text by rune length.
	MaxTextRunes int

	now func() time.Time
}

// NewMessageService constructs a MessageService with default limits.
func NewMessageService(messages store.Collection[domain.Message], threads store.Collection[domain.Thread]) *MessageService {
	return &MessageService{
		Messages:     messages,
		Threads:      threads,
		MaxTextRunes: defaultMaxTextRunes,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// MessagePatch lists the mutable message fields. Both are required.
type MessagePatch struct {
	Sender string
	Text   string
}

// ListInThread runs the query engine over the messages of one thread.
func (s *MessageService) ListInThread(ctx context.Context, threadID string, p query.Params) (query.Result[domain.Message], error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "ListInThread",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
			attribute.String("query.search", p.Search),
			attribute.Int("query.page", p.Page),
			attribute.Int("query.limit", p.Limit),
		),
	)
	defer span.End()

	if err := s.requireThread(ctx, threadID); err != nil {
		return query.Result[domain.Message]{}, err
	}
	all, err := s.Messages.LoadAll(ctx)
	if err != nil {
		span.RecordError(err)
		return query.Result[domain.Message]{}, storageErr("list messages", err)
	}
	inThread := make([]domain.Message, 0, len(all))
	for _, m := range all {
		if m.ThreadID == threadID {
			inThread = append(inThread, m)
		}
	}
	return query.Run(inThread, p), nil
}

// ListAll runs the query engine over every message.
func (s *MessageService) ListAll(ctx context.Context, p query.Params) (query.Result[domain.Message], error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "ListAll",
		trace.WithAttributes(
			attribute.String("query.search", p.Search),
			attribute.Int("query.page", p.Page),
			attribute.Int("query.limit", p.Limit),
		),
	)
	defer span.End()

	all, err := s.Messages.LoadAll(ctx)
	if err != nil {
		span.RecordError(err)
		return query.Result[domain.Message]{}, storageErr("list messages", err)
	}
	return query.Run(all, p), nil
}

// Get returns the message with the given id or ErrMessageNotFound.
func (s *MessageService) Get(ctx context.Context, id string) (*domain.Message, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Get",
		trace.WithAttributes(attribute.String("message.id", id)))
	defer span.End()

	all, err := s.Messages.LoadAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, storageErr("get message", err)
	}
	m, ok := query.FindByID(all, id)
	if !ok {
		return nil, ErrMessageNotFound
	}
	return &m, nil
}

// Create validates the input, checks that the thread exists, and appends a
// new message. The thread is checked again inside the write.
func (s *MessageService) Create(ctx context.Context, threadID, sender, text string) (*domain.Message, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Create",
		trace.WithAttributes(attribute.String("thread.id", threadID)))
	defer span.End()

	sender = strings.TrimSpace(sender)
	text = strings.TrimSpace(text)
	if sender == "" {
		return nil, invalid("sender", "must not be empty")
	}
	if !domain.ValidSender(sender) {
		return nil, invalid("sender", "must be 'user' or 'bot'")
	}
	if err := requireText("text", text, s.MaxTextRunes); err != nil {
		return nil, err
	}
	if err := s.requireThread(ctx, threadID); err != nil {
		return nil, err
	}

	now := s.now()
	m := domain.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Sender:    sender,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Re-check under the messages write lock. A thread delete removes the
	// thread before it cascades into messages.
	err := s.Messages.Mutate(ctx, func(cur []domain.Message) ([]domain.Message, error) {
		if err := s.requireThread(ctx, threadID); err != nil {
			return nil, err
		}
		return query.Insert(cur, m)
	})
	if err != nil {
		span.RecordError(err)
		return nil, storageErr("create message", err)
	}
	span.SetAttributes(attribute.String("message.id", m.ID))
	return &m, nil
}

// Update replaces the sender and text of an existing message. Both fields
// must be present and valid. The id, thread and creation time never change.
func (s *MessageService) Update(ctx context.Context, id string, patch MessagePatch) (*domain.Message, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Update",
		trace.WithAttributes(attribute.String("message.id", id)))
	defer span.End()

	sender := strings.TrimSpace(patch.Sender)
	text := strings.TrimSpace(patch.Text)
	if sender == "" {
		return nil, invalid("sender", "must not be empty")
	}
	if !domain.ValidSender(sender) {
		return nil, invalid("sender", "must be 'user' or 'bot'")
	}
	if err := requireText("text", text, s.MaxTextRunes); err != nil {
		return nil, err
	}

	var updated domain.Message
	err := s.Messages.Mutate(ctx, func(cur []domain.Message) ([]domain.Message, error) {
		next, m, err := query.Replace(cur, id, func(m domain.Message) (domain.Message, error) {
			m.Sender = sender
			m.Text = text
			m.UpdatedAt = s.now()
			return m, nil
		})
		if errors.Is(err, query.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		updated = m
		return next, err
	})
	if err != nil {
		span.RecordError(err)
		return nil, storageErr("update message", err)
	}
	return &updated, nil
}

// Delete removes one message.
func (s *MessageService) Delete(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("message.id", id)))
	defer span.End()

	err := s.Messages.Mutate(ctx, func(cur []domain.Message) ([]domain.Message, error) {
		next, _, err := query.Remove(cur, id)
		if errors.Is(err, query.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return next, err
	})
	if err != nil {
		span.RecordError(err)
		return storageErr("delete message", err)
	}
	return nil
}

func (s *MessageService) requireThread(ctx context.Context, id string) error {
	all, err := s.Threads.LoadAll(ctx)
	if err != nil {
		return storageErr("get thread", err)
	}
	if _, ok := query.FindByID(all, id); !ok {
		return ErrThreadNotFound
	}
	return nil
}
