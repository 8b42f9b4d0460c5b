package resolvers

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/phrasebook-app/apiserver/internal/apperr"
	"github.com/phrasebook-app/apiserver/internal/auth"
	"github.com/phrasebook-app/apiserver/internal/guard"
	"github.com/phrasebook-app/apiserver/internal/store"
	"github.com/phrasebook-app/apiserver/types"
)

// MaxAvatarSize is the largest accepted avatar upload in bytes.
const MaxAvatarSize = 2 << 20

// bcrypt ignores input past 72 bytes.
const maxPasswordLen = 72

var avatarTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Token is the result of signUp and signIn.
type Token struct {
	Token string `json:"token"`
}

func (r *Resolver) Users(ctx context.Context) ([]types.User, error) {
	users, err := r.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []types.User{}
	}
	return users, nil
}

// User returns the user with id, or nil when it does not exist.
func (r *Resolver) User(ctx context.Context, id int) (*types.User, error) {
	user, err := r.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Me returns the caller, or nil for anonymous requests.
func (r *Resolver) Me(ctx context.Context) (*types.User, error) {
	caller, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, nil
	}
	return r.User(ctx, caller.ID)
}

// SignUp creates a normal account and returns a session token for it.
func (r *Resolver) SignUp(ctx context.Context, username, email, password string) (Token, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return Token{}, apperr.Validation("username", "username is required")
	}
	if !strings.Contains(email, "@") {
		return Token{}, apperr.Validation("email", "email is not valid")
	}
	if password == "" {
		return Token{}, apperr.Validation("password", "password is required")
	}
	if len(password) > maxPasswordLen {
		return Token{}, apperr.Validation("password", "password is too long")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Token{}, err
	}
	user, err := r.users.Create(ctx, types.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         types.RoleNormal,
	})
	if err != nil {
		var conflict *store.ConflictError
		if errors.As(err, &conflict) {
			return Token{}, apperr.AlreadyExists(conflict.Field, conflict.Field+" is already taken")
		}
		return Token{}, err
	}

	r.logger.Info(ctx, "user signed up", "user_id", user.ID)
	return r.issue(user)
}

// SignIn authenticates by username or email. Every failure, including an
// unknown login, is reported as Unauthenticated.
func (r *Resolver) SignIn(ctx context.Context, login, password string) (Token, error) {
	user, err := r.users.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Token{}, apperr.ErrUnauthenticated
		}
		return Token{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return Token{}, apperr.ErrUnauthenticated
	}
	return r.issue(user)
}

// DeleteUser removes a user together with their messages. Only admins may
// call it.
func (r *Resolver) DeleteUser(ctx context.Context, id int) (bool, error) {
	chain := guard.Chain(guard.Authenticated(), guard.Admin(r.users))
	return guard.Run(ctx, chain, func(ctx context.Context) (bool, error) {
		ok, err := r.users.DeleteWithMessages(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			r.logger.Info(ctx, "user deleted", "user_id", id)
		}
		return ok, nil
	})
}

// UploadAvatar stores an image as the caller's avatar and returns the
// updated user.
func (r *Resolver) UploadAvatar(ctx context.Context, body io.Reader, size int64, contentType string) (*types.User, error) {
	return guard.Run(ctx, guard.Authenticated(), func(ctx context.Context) (*types.User, error) {
		if r.avatars == nil {
			return nil, apperr.Unavailable("avatar storage is not configured")
		}
		contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
		if !avatarTypes[contentType] {
			return nil, apperr.Validation("avatar", "avatar must be a png, jpeg, gif or webp image")
		}
		if size <= 0 || size > MaxAvatarSize {
			return nil, apperr.Validation("avatar", "avatar must be at most 2 MiB")
		}

		caller, _ := auth.IdentityFrom(ctx)
		user, err := r.users.GetByID(ctx, caller.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.ErrUnauthenticated
			}
			return nil, err
		}

		url, err := r.avatars.PutAvatar(ctx, user.ID, body, size, contentType)
		if err != nil {
			return nil, err
		}
		if err := r.users.UpdateAvatar(ctx, user.ID, url); err != nil {
			return nil, err
		}
		previous := user.AvatarURL
		user.AvatarURL = url

		// Later author lookups in this operation must see the new avatar.
		users := r.loaders(ctx).User
		users.Clear(user.ID)
		users.Prime(user.ID, user)

		if previous != "" {
			if err := r.avatars.DeleteByURL(ctx, previous); err != nil {
				r.logger.Warn(ctx, "failed to delete previous avatar", "user_id", user.ID, "error", err)
			}
		}
		return &user, nil
	})
}

// UserMessages resolves the messages of u through the operation's loader.
func (r *Resolver) UserMessages(ctx context.Context, u types.User) ([]types.Message, error) {
	messages, _, err := r.loaders(ctx).UserMessages.Load(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []types.Message{}
	}
	return messages, nil
}

// MessageIDs resolves the ids of the messages of u.
func (r *Resolver) MessageIDs(ctx context.Context, u types.User) ([]int, error) {
	messages, err := r.UserMessages(ctx, u)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return ids, nil
}

func (r *Resolver) issue(user types.User) (Token, error) {
	token, err := r.tokens.Issue(auth.IdentityOf(user))
	if err != nil {
		return Token{}, err
	}
	return Token{Token: token}, nil
}
