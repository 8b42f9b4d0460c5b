package resolvers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/phrasebook-app/apiserver/internal/apperr"
	"github.com/phrasebook-app/apiserver/internal/auth"
	"github.com/phrasebook-app/apiserver/internal/cursor"
	"github.com/phrasebook-app/apiserver/internal/guard"
	"github.com/phrasebook-app/apiserver/internal/pubsub"
	"github.com/phrasebook-app/apiserver/internal/store"
	"github.com/phrasebook-app/apiserver/types"
)

const (
	DefaultPageSize    = 100
	DefaultRandomCount = 5
	MaxRandomCount     = 10
)

// Message returns the message with id, or nil when it does not exist.
func (r *Resolver) Message(ctx context.Context, id int) (*types.Message, error) {
	message, err := r.messages.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// Messages returns one page of messages, newest first. An empty cursor
// starts at the newest message; limit < 1 uses the default page size.
func (r *Resolver) Messages(ctx context.Context, after string, limit int) (types.MessageConnection, error) {
	if limit < 1 {
		limit = DefaultPageSize
	}

	var before *time.Time
	if strings.TrimSpace(after) != "" {
		t, err := cursor.Decode(after)
		if err != nil {
			return types.MessageConnection{}, err
		}
		before = &t
	}

	rows, err := r.messages.Page(ctx, before, limit+1)
	if err != nil {
		return types.MessageConnection{}, err
	}

	hasNextPage := len(rows) > limit
	if hasNextPage {
		rows = rows[:limit]
	}
	return connection(rows, hasNextPage), nil
}

// RandomOne returns a random message, or nil when the store is empty.
func (r *Resolver) RandomOne(ctx context.Context) (*types.Message, error) {
	rows, err := r.messages.Random(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// RandomX returns up to limit random messages. Out-of-range limits are
// clamped rather than rejected.
func (r *Resolver) RandomX(ctx context.Context, limit int) (types.MessageConnection, error) {
	if limit < 1 {
		limit = DefaultRandomCount
	}
	if limit > MaxRandomCount {
		limit = MaxRandomCount
	}
	rows, err := r.messages.Random(ctx, limit)
	if err != nil {
		return types.MessageConnection{}, err
	}
	return connection(rows, false), nil
}

// CreateMessage stores a message authored by the caller and announces it
// to messageCreated subscribers.
func (r *Resolver) CreateMessage(ctx context.Context, input types.MessageInput) (types.Message, error) {
	return guard.Run(ctx, guard.Authenticated(), func(ctx context.Context) (types.Message, error) {
		caller, _ := auth.IdentityFrom(ctx)
		input.From = caller.Username
		input.UserID = caller.ID

		message, err := r.messages.Create(ctx, input)
		if err != nil {
			// The account behind a still-valid token is gone.
			if errors.Is(err, store.ErrNotFound) {
				return types.Message{}, apperr.ErrUnauthenticated
			}
			return types.Message{}, err
		}
		if r.events != nil {
			r.events.Publish(ctx, pubsub.MessageCreated, types.MessageCreated{Message: message})
		}
		r.logger.Info(ctx, "message created", "message_id", message.ID, "user_id", message.UserID)
		return message, nil
	})
}

// UpdateMessage applies patch to a message owned by the caller. It reports
// false when the message does not exist.
func (r *Resolver) UpdateMessage(ctx context.Context, id int, patch types.MessagePatch) (bool, error) {
	chain := guard.Chain(guard.Authenticated(), guard.MessageOwner(r.messages, id))
	return guard.Run(ctx, chain, func(ctx context.Context) (bool, error) {
		return r.messages.Update(ctx, id, patch)
	})
}

// DeleteMessage removes a message owned by the caller. It reports false
// when the message does not exist.
func (r *Resolver) DeleteMessage(ctx context.Context, id int) (bool, error) {
	chain := guard.Chain(guard.Authenticated(), guard.MessageOwner(r.messages, id))
	return guard.Run(ctx, chain, func(ctx context.Context) (bool, error) {
		ok, err := r.messages.Delete(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			r.logger.Info(ctx, "message deleted", "message_id", id)
		}
		return ok, nil
	})
}

// LikeMessage adds one like. It reports false when the message does not exist.
func (r *Resolver) LikeMessage(ctx context.Context, id int) (bool, error) {
	return guard.Run(ctx, guard.Authenticated(), func(ctx context.Context) (bool, error) {
		return r.messages.IncrementLikes(ctx, id)
	})
}

// MessageCreated subscribes to newly created messages until ctx ends.
func (r *Resolver) MessageCreated(ctx context.Context) *pubsub.Subscription[types.MessageCreated] {
	return r.feed.Subscribe(ctx, pubsub.MessageCreated)
}

// MessageUser resolves the author of m through the operation's loader.
func (r *Resolver) MessageUser(ctx context.Context, m types.Message) (*types.User, error) {
	user, ok, err := r.loaders(ctx).User.Load(ctx, m.UserID)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

// MessageUsers resolves the authors of messages in one loader batch, keyed
// by user id. Authors that no longer exist are absent from the map.
func (r *Resolver) MessageUsers(ctx context.Context, messages []types.Message) (map[int]types.User, error) {
	ids := make([]int, len(messages))
	for i, m := range messages {
		ids[i] = m.UserID
	}
	return r.loaders(ctx).User.LoadMany(ctx, ids)
}

func connection(rows []types.Message, hasNextPage bool) types.MessageConnection {
	if rows == nil {
		rows = []types.Message{}
	}
	info := types.PageInfo{HasNextPage: hasNextPage}
	if len(rows) > 0 {
		end := cursor.Encode(rows[len(rows)-1].CreatedAt)
		info.EndCursor = &end
	}
	return types.MessageConnection{Edges: rows, PageInfo: info}
}
