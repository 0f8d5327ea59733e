package handlers

import (
	"context"

	"github.com/tbourn/go-messages-api/internal/auth"
	"github.com/tbourn/go-messages-api/internal/domain"
	"github.com/tbourn/go-messages-api/internal/query"
	"github.com/tbourn/go-messages-api/internal/services"
)

// ThreadService defines the thread operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and honor ctx.
type ThreadService interface {
	List(ctx context.Context, p query.Params) (query.Result[domain.Thread], error)
	Get(ctx context.Context, id string) (*domain.Thread, error)
	Create(ctx context.Context, title string) (*domain.Thread, error)
	Update(ctx context.Context, id, title string) (*domain.Thread, error)
	Delete(ctx context.Context, id string) error
}

// MessageService defines the message operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and honor ctx.
type MessageService interface {
	ListInThread(ctx context.Context, threadID string, p query.Params) (query.Result[domain.Message], error)
	ListAll(ctx context.Context, p query.Params) (query.Result[domain.Message], error)
	Get(ctx context.Context, id string) (*domain.Message, error)
	Create(ctx context.Context, threadID, sender, text string) (*domain.Message, error)
	Update(ctx context.Context, id string, patch services.MessagePatch) (*domain.Message, error)
	Delete(ctx context.Context, id string) error
}

// Authenticator issues bearer tokens. *auth.Service satisfies it.
type Authenticator interface {
	Login(username, password string) (auth.Token, error)
}

// Handlers groups the HTTP endpoints. It depends only on the service
// interfaces above.
type Handlers struct {
	threadSvc ThreadService
	msgSvc    MessageService
	authSvc   Authenticator
}

// New constructs Handlers. authSvc may be nil when authentication is
// disabled; Login then answers 404.
func New(threadSvc ThreadService, msgSvc MessageService, authSvc Authenticator) *Handlers {
	return &Handlers{threadSvc: threadSvc, msgSvc: msgSvc, authSvc: authSvc}
}
