package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/phrasebook-app/apiserver/types"
)

const messageColumns = `id, sentence_lang, category, keyword, org_author, from_user,
		key_phrase, key_phrase_meaning, sentence, sentence_meaning,
		likes, favored, difficulty, created_at, user_id`

// MessageRepository handles persistence for messages.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Get(ctx context.Context, id int) (types.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE id = $1`
	message, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, ErrNotFound
		}
		return types.Message{}, err
	}
	return message, nil
}

// Page returns up to limit messages strictly older than before, newest
// first. A nil before starts from the newest message.
func (r *MessageRepository) Page(ctx context.Context, before *time.Time, limit int) ([]types.Message, error) {
	if before == nil {
		query := `
			SELECT ` + messageColumns + `
			FROM messages
			ORDER BY created_at DESC
			LIMIT $1`
		return r.queryMessages(ctx, query, limit)
	}
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE created_at < $1
		ORDER BY created_at DESC
		LIMIT $2`
	return r.queryMessages(ctx, query, *before, limit)
}

// Random returns up to limit messages in no particular order.
func (r *MessageRepository) Random(ctx context.Context, limit int) ([]types.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		ORDER BY random()
		LIMIT $1`
	return r.queryMessages(ctx, query, limit)
}

// ListByUserIDs groups the messages of the given users by owner, newest first.
func (r *MessageRepository) ListByUserIDs(ctx context.Context, userIDs []int) (map[int][]types.Message, error) {
	result := make(map[int][]types.Message, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE user_id = ANY($1)
		ORDER BY created_at DESC`
	messages, err := r.queryMessages(ctx, query, pq.Array(toInt64s(userIDs)))
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		result[m.UserID] = append(result[m.UserID], m)
	}
	return result, nil
}

func (r *MessageRepository) Create(ctx context.Context, input types.MessageInput) (types.Message, error) {
	if err := input.Validate(); err != nil {
		return types.Message{}, err
	}

	message := types.Message{
		SentenceLang:     input.SentenceLang,
		Category:         input.Category,
		Keyword:          input.Keyword,
		OrgAuthor:        input.OrgAuthor,
		From:             input.From,
		KeyPhrase:        input.KeyPhrase,
		KeyPhraseMeaning: input.KeyPhraseMeaning,
		Sentence:         input.Sentence,
		SentenceMeaning:  input.SentenceMeaning,
		Difficulty:       input.Difficulty,
		CreatedAt:        now(),
		UserID:           input.UserID,
	}

	const query = `
		INSERT INTO messages (sentence_lang, category, keyword, org_author, from_user,
			key_phrase, key_phrase_meaning, sentence, sentence_meaning,
			likes, difficulty, created_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, $12)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		message.SentenceLang,
		message.Category,
		message.Keyword,
		message.OrgAuthor,
		message.From,
		message.KeyPhrase,
		message.KeyPhraseMeaning,
		message.Sentence,
		message.SentenceMeaning,
		nullableInt(message.Difficulty),
		message.CreatedAt,
		message.UserID,
	).Scan(&message.ID); err != nil {
		if errors.Is(asMissingParent(err), ErrNotFound) {
			return types.Message{}, ErrNotFound
		}
		return types.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

// Update writes the non-nil fields of patch. It reports false when the
// message does not exist.
func (r *MessageRepository) Update(ctx context.Context, id int, patch types.MessagePatch) (bool, error) {
	if err := patch.Validate(); err != nil {
		return false, err
	}
	if patch.Empty() {
		const query = `SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)`
		var exists bool
		if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
			return false, err
		}
		return exists, nil
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addString := func(column string, value *string) {
		if value != nil {
			add(column, *value)
		}
	}
	addString("sentence_lang", patch.SentenceLang)
	addString("category", patch.Category)
	addString("keyword", patch.Keyword)
	addString("org_author", patch.OrgAuthor)
	addString("key_phrase", patch.KeyPhrase)
	addString("key_phrase_meaning", patch.KeyPhraseMeaning)
	addString("sentence", patch.Sentence)
	addString("sentence_meaning", patch.SentenceMeaning)
	if patch.Difficulty != nil {
		add("difficulty", *patch.Difficulty)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE messages SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	return execAffected(ctx, r.db, query, args...)
}

// Delete removes a message. Deleting a missing message is not an error.
func (r *MessageRepository) Delete(ctx context.Context, id int) (bool, error) {
	const query = `DELETE FROM messages WHERE id = $1`
	return execAffected(ctx, r.db, query, id)
}

// IncrementLikes adds one like in a single statement so concurrent likes
// are never lost.
func (r *MessageRepository) IncrementLikes(ctx context.Context, id int) (bool, error) {
	const query = `UPDATE messages SET likes = likes + 1 WHERE id = $1`
	return execAffected(ctx, r.db, query, id)
}

func (r *MessageRepository) queryMessages(ctx context.Context, query string, args ...any) ([]types.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []types.Message{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (types.Message, error) {
	var (
		message    types.Message
		favored    sql.NullInt64
		difficulty sql.NullInt64
	)
	err := row.Scan(
		&message.ID,
		&message.SentenceLang,
		&message.Category,
		&message.Keyword,
		&message.OrgAuthor,
		&message.From,
		&message.KeyPhrase,
		&message.KeyPhraseMeaning,
		&message.Sentence,
		&message.SentenceMeaning,
		&message.Likes,
		&favored,
		&difficulty,
		&message.CreatedAt,
		&message.UserID,
	)
	if err != nil {
		return types.Message{}, err
	}
	message.Favored = intPtr(favored)
	message.Difficulty = intPtr(difficulty)
	message.CreatedAt = message.CreatedAt.UTC()
	return message, nil
}

func execAffected(ctx context.Context, db DBTX, query string, args ...any) (bool, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// now is truncated to the database's microsecond precision so the value
// returned from Create equals the stored one.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
