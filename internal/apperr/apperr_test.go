package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByCode(t *testing.T) {
	err := Validation("sentence", "sentence is required")

	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.NotErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, "sentence", err.Field)
}

func TestIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create message: %w", ErrUnauthenticated)

	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, CodeUnauthenticated, CodeOf(err))
}

func TestInvalidCursor_KeepsCause(t *testing.T) {
	cause := errors.New("illegal base64 data")
	err := InvalidCursor(cause)

	assert.ErrorIs(t, err, ErrInvalidCursor)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "illegal base64 data")
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
}
