// Package guard composes authorization checks that run before an operation.
package guard

import (
	"context"
	"errors"

	"github.com/phrasebook-app/apiserver/internal/apperr"
	"github.com/phrasebook-app/apiserver/internal/auth"
	"github.com/phrasebook-app/apiserver/internal/store"
	"github.com/phrasebook-app/apiserver/types"
)

// Guard inspects the caller and returns nil to let the operation proceed.
type Guard func(ctx context.Context) error

// Chain runs guards in order and stops at the first failure.
func Chain(guards ...Guard) Guard {
	return func(ctx context.Context) error {
		for _, g := range guards {
			if err := g(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Run executes op only when g passes.
func Run[T any](ctx context.Context, g Guard, op func(ctx context.Context) (T, error)) (T, error) {
	if err := g(ctx); err != nil {
		var zero T
		return zero, err
	}
	return op(ctx)
}

// Authenticated requires a caller identity.
func Authenticated() Guard {
	return func(ctx context.Context) error {
		if _, ok := auth.IdentityFrom(ctx); !ok {
			return apperr.ErrUnauthenticated
		}
		return nil
	}
}

// MessageFinder loads a single message.
type MessageFinder interface {
	Get(ctx context.Context, id int) (types.Message, error)
}

// MessageOwner requires the caller to own message id. The message is read
// fresh on every check. A missing message passes so the operation can
// report it as not found.
func MessageOwner(messages MessageFinder, id int) Guard {
	return func(ctx context.Context) error {
		caller, ok := auth.IdentityFrom(ctx)
		if !ok {
			return apperr.ErrUnauthenticated
		}
		message, err := messages.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if message.UserID != caller.ID {
			return apperr.ErrNotAuthorized
		}
		return nil
	}
}

// UserFinder loads a single user.
type UserFinder interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// Admin requires the caller's stored role to be admin.
func Admin(users UserFinder) Guard {
	return func(ctx context.Context) error {
		caller, ok := auth.IdentityFrom(ctx)
		if !ok {
			return apperr.ErrUnauthenticated
		}
		user, err := users.GetByID(ctx, caller.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.ErrUnauthenticated
			}
			return err
		}
		if !user.IsAdmin() {
			return apperr.ErrNotAuthorized
		}
		return nil
	}
}
