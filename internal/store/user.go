package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/phrasebook-app/apiserver/types"
)

const userColumns = `id, username, email, password_hash, role, point, avatar_url, description, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByLogin finds a user by username or email.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (types.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR email = $1
		LIMIT 1`
	return r.getOne(ctx, query, login)
}

// GetByIDs returns the users that exist among ids, keyed by id.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int) (map[int]types.User, error) {
	users := make(map[int]types.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ANY($1)`
	list, err := r.query(ctx, query, pq.Array(toInt64s(ids)))
	if err != nil {
		return nil, err
	}
	for _, user := range list {
		users[user.ID] = user
	}
	return users, nil
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY id`
	return r.query(ctx, query)
}

func (r *UserRepository) Create(ctx context.Context, input types.NewUser) (types.User, error) {
	if err := input.Validate(); err != nil {
		return types.User{}, err
	}
	role := input.Role
	if role == "" {
		role = types.RoleNormal
	}

	ts := now()
	user := types.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         role,
		Point:        input.Point,
		AvatarURL:    input.AvatarURL,
		Description:  input.Description,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	const query = `
		INSERT INTO users (username, email, password_hash, role, point, avatar_url, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Point,
		user.AvatarURL,
		user.Description,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, asConflict(err)
	}
	return user, nil
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id int, avatarURL string) error {
	const query = `
		UPDATE users
		SET avatar_url = $1,
			updated_at = $2
		WHERE id = $3`
	ok, err := execAffected(ctx, r.db, query, avatarURL, now(), id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteWithMessages removes the user's messages and then the user in one
// transaction. It reports false when the user does not exist.
func (r *UserRepository) DeleteWithMessages(ctx context.Context, id int) (bool, error) {
	var deleted bool
	err := withTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		ok, err := execAffected(ctx, tx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		deleted = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) query(ctx context.Context, query string, args ...any) ([]types.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Point,
		&user.AvatarURL,
		&user.Description,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}
