// Package resolvers implements the query, mutation and subscription
// operations of the phrasebook API on top of the record store.
package resolvers

import (
	"context"
	"io"
	"time"

	"github.com/phrasebook-app/apiserver/internal/auth"
	"github.com/phrasebook-app/apiserver/internal/logging"
	"github.com/phrasebook-app/apiserver/internal/pubsub"
	"github.com/phrasebook-app/apiserver/types"
)

// MessageStore defines persistence operations for messages.
type MessageStore interface {
	Get(ctx context.Context, id int) (types.Message, error)
	Page(ctx context.Context, before *time.Time, limit int) ([]types.Message, error)
	Random(ctx context.Context, limit int) ([]types.Message, error)
	ListByUserIDs(ctx context.Context, userIDs []int) (map[int][]types.Message, error)
	Create(ctx context.Context, input types.MessageInput) (types.Message, error)
	Update(ctx context.Context, id int, patch types.MessagePatch) (bool, error)
	Delete(ctx context.Context, id int) (bool, error)
	IncrementLikes(ctx context.Context, id int) (bool, error)
}

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByIDs(ctx context.Context, ids []int) (map[int]types.User, error)
	GetByLogin(ctx context.Context, login string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, input types.NewUser) (types.User, error)
	UpdateAvatar(ctx context.Context, id int, avatarURL string) error
	DeleteWithMessages(ctx context.Context, id int) (bool, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

// EventSource yields live messageCreated subscriptions.
type EventSource interface {
	Subscribe(ctx context.Context, event pubsub.Event) *pubsub.Subscription[types.MessageCreated]
}

// AvatarStore persists avatar images.
type AvatarStore interface {
	PutAvatar(ctx context.Context, userID int, r io.Reader, size int64, contentType string) (string, error)
	DeleteByURL(ctx context.Context, url string) error
}

// Deps are the collaborators of a Resolver. Avatars may be nil.
type Deps struct {
	Messages  MessageStore
	Users     UserStore
	Tokens    TokenIssuer
	Publisher pubsub.Publisher[types.MessageCreated]
	Feed      EventSource
	Avatars   AvatarStore
	Logger    logging.Logger
}

// Resolver is the set of API operations. It is safe for concurrent use;
// per-operation state lives in the context (see WithLoaders).
type Resolver struct {
	messages MessageStore
	users    UserStore
	tokens   TokenIssuer
	events   pubsub.Publisher[types.MessageCreated]
	feed     EventSource
	avatars  AvatarStore
	logger   logging.Logger
}

func New(d Deps) *Resolver {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Resolver{
		messages: d.Messages,
		users:    d.Users,
		tokens:   d.Tokens,
		events:   d.Publisher,
		feed:     d.Feed,
		avatars:  d.Avatars,
		logger:   logger.With("module", "resolvers"),
	}
}
