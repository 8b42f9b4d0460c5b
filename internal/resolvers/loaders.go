package resolvers

import (
	"context"

	"github.com/phrasebook-app/apiserver/internal/loader"
	"github.com/phrasebook-app/apiserver/types"
)

// Loaders holds the batch loaders of one inbound operation.
type Loaders struct {
	User         *loader.Loader[int, types.User]
	UserMessages *loader.Loader[int, []types.Message]
}

type loadersKey struct{}

// NewLoaders builds a fresh loader set. Call it once per operation or
// subscription connection, never once per process.
func (r *Resolver) NewLoaders() *Loaders {
	return &Loaders{
		User:         loader.New[int, types.User](r.users.GetByIDs),
		UserMessages: loader.New[int, []types.Message](r.messages.ListByUserIDs),
	}
}

// WithLoaders attaches l to ctx.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey{}, l)
}

// loaders returns the operation's loader set, or a private one when the
// caller did not attach any.
func (r *Resolver) loaders(ctx context.Context) *Loaders {
	if l, ok := ctx.Value(loadersKey{}).(*Loaders); ok && l != nil {
		return l
	}
	return r.NewLoaders()
}
