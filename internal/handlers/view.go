package handlers

import (
	"context"

	"github.com/phrasebook-app/apiserver/internal/resolvers"
	"github.com/phrasebook-app/apiserver/types"
	"golang.org/x/sync/errgroup"
)

// MessageView is a message with its author embedded.
type MessageView struct {
	types.Message
	User *types.User `json:"user"`
}

// UserView is a user with the ids of their messages.
type UserView struct {
	types.User
	MessageIDs []int `json:"messageIds"`
}

// ConnectionView is one page of message views.
type ConnectionView struct {
	Edges    []MessageView  `json:"edges"`
	PageInfo types.PageInfo `json:"pageInfo"`
}

func messageViews(ctx context.Context, res *resolvers.Resolver, messages []types.Message) ([]MessageView, error) {
	users, err := res.MessageUsers(ctx, messages)
	if err != nil {
		return nil, err
	}
	views := make([]MessageView, len(messages))
	for i, m := range messages {
		views[i].Message = m
		if user, ok := users[m.UserID]; ok {
			views[i].User = &user
		}
	}
	return views, nil
}

func messageView(ctx context.Context, res *resolvers.Resolver, m types.Message) (MessageView, error) {
	user, err := res.MessageUser(ctx, m)
	if err != nil {
		return MessageView{}, err
	}
	return MessageView{Message: m, User: user}, nil
}

func connectionView(ctx context.Context, res *resolvers.Resolver, c types.MessageConnection) (ConnectionView, error) {
	edges, err := messageViews(ctx, res, c.Edges)
	if err != nil {
		return ConnectionView{}, err
	}
	return ConnectionView{Edges: edges, PageInfo: c.PageInfo}, nil
}

func userViews(ctx context.Context, res *resolvers.Resolver, users []types.User) ([]UserView, error) {
	views := make([]UserView, len(users))
	g, ctx := errgroup.WithContext(ctx)
	for i := range users {
		views[i].User = users[i]
		g.Go(func() error {
			ids, err := res.MessageIDs(ctx, users[i])
			if err != nil {
				return err
			}
			views[i].MessageIDs = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func userView(ctx context.Context, res *resolvers.Resolver, u types.User) (UserView, error) {
	views, err := userViews(ctx, res, []types.User{u})
	if err != nil {
		return UserView{}, err
	}
	return views[0], nil
}
