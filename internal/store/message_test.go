package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/phrasebook-app/apiserver/internal/apperr"
	"github.com/phrasebook-app/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var messageCols = []string{
	"id", "sentence_lang", "category", "keyword", "org_author", "from_user",
	"key_phrase", "key_phrase_meaning", "sentence", "sentence_meaning",
	"likes", "favored", "difficulty", "created_at", "user_id",
}

func newMessageRepoWithMock(t *testing.T) (*MessageRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMessageRepository(db), mock
}

func messageRow(id int, createdAt time.Time, difficulty driver.Value) []driver.Value {
	return []driver.Value{
		id, "en", "idiom", "", "", "kevin",
		"break the ice", "start a conversation", "He broke the ice.", "He started talking.",
		0, nil, difficulty, createdAt, 1,
	}
}

func TestMessageGet_Found(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)
	created := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM messages\s+WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(messageRow(7, created, int64(2))...))

	got, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, got.ID)
	assert.Equal(t, "kevin", got.From)
	assert.Nil(t, got.Favored)
	require.NotNil(t, got.Difficulty)
	assert.Equal(t, 2, *got.Difficulty)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageGet_NotFound(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)

	mock.ExpectQuery(`FROM messages\s+WHERE id = \$1`).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMessagePage_FirstPage(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)
	t0 := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)FROM messages\s+ORDER BY created_at DESC\s+LIMIT \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow(messageRow(3, t0.Add(2*time.Minute), nil)...).
			AddRow(messageRow(2, t0.Add(time.Minute), nil)...))

	got, err := repo.Page(context.Background(), nil, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].ID)
	assert.Equal(t, 2, got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessagePage_BeforeCursor(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)
	before := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)WHERE created_at < \$1\s+ORDER BY created_at DESC\s+LIMIT \$2`).
		WithArgs(before, 101).
		WillReturnRows(sqlmock.NewRows(messageCols))

	got, err := repo.Page(context.Background(), &before, 101)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRandom(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)

	mock.ExpectQuery(`(?s)ORDER BY random\(\)\s+LIMIT \$1`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(messageRow(1, time.Now(), nil)...))

	got, err := repo.Random(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMessageCreate(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)
	input := types.MessageInput{
		SentenceLang:     "en",
		Category:         "idiom",
		KeyPhrase:        "under the weather",
		KeyPhraseMeaning: "feeling ill",
		Sentence:         "I'm a bit under the weather.",
		SentenceMeaning:  "I feel slightly sick.",
		From:             "aaron",
		UserID:           2,
	}

	mock.ExpectQuery(`(?s)INSERT INTO messages .*RETURNING id`).
		WithArgs("en", "idiom", "", "", "aaron",
			"under the weather", "feeling ill", "I'm a bit under the weather.", "I feel slightly sick.",
			nil, sqlmock.AnyArg(), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	got, err := repo.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 11, got.ID)
	assert.Equal(t, 0, got.Likes)
	assert.Equal(t, 2, got.UserID)
	assert.Equal(t, got.CreatedAt, got.CreatedAt.Truncate(time.Microsecond))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageCreate_MissingAuthor(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)
	input := types.MessageInput{
		Category:         "idiom",
		KeyPhrase:        "under the weather",
		KeyPhraseMeaning: "feeling ill",
		Sentence:         "I'm a bit under the weather.",
		SentenceMeaning:  "I feel slightly sick.",
		From:             "aaron",
		UserID:           2,
	}

	mock.ExpectQuery(`(?s)INSERT INTO messages .*RETURNING id`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "messages_user_id_fkey"})

	_, err := repo.Create(context.Background(), input)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageCreate_ValidationFailsBeforeQuery(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)

	_, err := repo.Create(context.Background(), types.MessageInput{Category: "idiom", From: "aaron", UserID: 2})
	assert.ErrorIs(t, err, apperr.ErrValidationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageUpdate_OnlyGivenFields(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)
	sentence := "New sentence."
	difficulty := 4

	mock.ExpectExec(`^UPDATE messages SET sentence = \$1, difficulty = \$2 WHERE id = \$3$`).
		WithArgs("New sentence.", 4, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Update(context.Background(), 5, types.MessagePatch{Sentence: &sentence, Difficulty: &difficulty})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageUpdate_Missing(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)
	category := "proverb"

	mock.ExpectExec(`UPDATE messages SET category = \$1 WHERE id = \$2`).
		WithArgs("proverb", 404).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Update(context.Background(), 404, types.MessagePatch{Category: &category})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessageUpdate_EmptyPatchChecksExistence(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM messages WHERE id = \$1\)`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.Update(context.Background(), 5, types.MessagePatch{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMessageDelete_Idempotent(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM messages WHERE id = \$1`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM messages WHERE id = \$1`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Delete(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageIncrementLikes_IsAtomicStatement(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)

	mock.ExpectExec(`UPDATE messages SET likes = likes \+ 1 WHERE id = \$1`).
		WithArgs(8).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.IncrementLikes(context.Background(), 8)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMessageIncrementLikes_DBError(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)

	mock.ExpectExec(`UPDATE messages SET likes`).
		WithArgs(8).
		WillReturnError(errors.New("db down"))

	_, err := repo.IncrementLikes(context.Background(), 8)
	assert.EqualError(t, err, "db down")
}

func TestMessageListByUserIDs(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)
	now := time.Now().UTC()

	rowA := messageRow(1, now, nil)
	rowB := messageRow(2, now, nil)
	rowB[14] = 2
	mock.ExpectQuery(`(?s)WHERE user_id = ANY\(\$1\)`).
		WithArgs(pq.Array([]int64{1, 2, 3})).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(rowA...).AddRow(rowB...))

	got, err := repo.ListByUserIDs(context.Background(), []int{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, got[1], 1)
	assert.Len(t, got[2], 1)
	assert.Empty(t, got[3])
}

func TestMessageListByUserIDs_NoKeysNoQuery(t *testing.T) {
	repo, mock := newMessageRepoWithMock(t)

	got, err := repo.ListByUserIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
