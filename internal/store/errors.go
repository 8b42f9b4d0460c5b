package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint is violated.
var ErrConflict = errors.New("conflict")

// ConflictError names the column whose uniqueness was violated.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " already exists"
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// asMissingParent reports a foreign key violation as ErrNotFound.
func asMissingParent(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return ErrNotFound
	}
	return err
}

// asConflict converts a unique violation into a *ConflictError and passes
// every other error through unchanged.
func asConflict(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	field := "record"
	switch {
	case strings.Contains(pqErr.Constraint, "email"):
		field = "email"
	case strings.Contains(pqErr.Constraint, "username"):
		field = "username"
	}
	return &ConflictError{Field: field}
}
