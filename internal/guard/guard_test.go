package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/phrasebook-app/apiserver/internal/apperr"
	"github.com/phrasebook-app/apiserver/internal/auth"
	"github.com/phrasebook-app/apiserver/internal/store"
	"github.com/phrasebook-app/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessages struct {
	byID  map[int]types.Message
	err   error
	calls int
}

func (f *fakeMessages) Get(_ context.Context, id int) (types.Message, error) {
	f.calls++
	if f.err != nil {
		return types.Message{}, f.err
	}
	m, ok := f.byID[id]
	if !ok {
		return types.Message{}, store.ErrNotFound
	}
	return m, nil
}

type fakeUsers map[int]types.User

func (f fakeUsers) GetByID(_ context.Context, id int) (types.User, error) {
	u, ok := f[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func as(id int) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{ID: id, Username: "u"})
}

func TestAuthenticated(t *testing.T) {
	assert.ErrorIs(t, Authenticated()(context.Background()), apperr.ErrUnauthenticated)
	assert.NoError(t, Authenticated()(as(1)))
}

func TestChain_ShortCircuits(t *testing.T) {
	messages := &fakeMessages{byID: map[int]types.Message{1: {ID: 1, UserID: 2}}}
	chain := Chain(Authenticated(), MessageOwner(messages, 1))

	err := chain(context.Background())
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Zero(t, messages.calls, "owner lookup must not run after authentication failed")
}

func TestRun_OperationSkippedOnFailure(t *testing.T) {
	ran := false
	_, err := Run(context.Background(), Authenticated(), func(context.Context) (bool, error) {
		ran = true
		return true, nil
	})

	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.False(t, ran)
}

func TestRun_OperationRunsWhenAllowed(t *testing.T) {
	got, err := Run(as(2), Authenticated(), func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestMessageOwner(t *testing.T) {
	messages := &fakeMessages{byID: map[int]types.Message{1: {ID: 1, UserID: 2}}}

	assert.NoError(t, MessageOwner(messages, 1)(as(2)))
	assert.ErrorIs(t, MessageOwner(messages, 1)(as(3)), apperr.ErrNotAuthorized)
	assert.NoError(t, MessageOwner(messages, 99)(as(3)), "missing message passes")
	assert.Equal(t, 3, messages.calls, "every check reads the message fresh")
}

func TestMessageOwner_LookupError(t *testing.T) {
	boom := errors.New("db down")
	err := MessageOwner(&fakeMessages{err: boom}, 1)(as(2))
	assert.ErrorIs(t, err, boom)
}

func TestAdmin(t *testing.T) {
	users := fakeUsers{
		1: {ID: 1, Role: types.RoleAdmin},
		2: {ID: 2, Role: types.RoleNormal},
	}

	assert.NoError(t, Admin(users)(as(1)))
	assert.ErrorIs(t, Admin(users)(as(2)), apperr.ErrNotAuthorized)
	assert.ErrorIs(t, Admin(users)(as(3)), apperr.ErrUnauthenticated)
	assert.ErrorIs(t, Admin(users)(context.Background()), apperr.ErrUnauthenticated)
}
