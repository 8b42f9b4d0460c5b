// Package apperr defines the error taxonomy surfaced to API clients.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an Error. Transports map codes to their own status values.
type Code string

const (
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeNotAuthorized    Code = "NOT_AUTHORIZED"
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeInvalidCursor    Code = "INVALID_CURSOR"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodeUnavailable      Code = "UNAVAILABLE"
)

// Sentinels for errors.Is checks. Any *Error with the same code matches.
var (
	ErrUnauthenticated  = &Error{Code: CodeUnauthenticated, Message: "Not authenticated as user."}
	ErrNotAuthorized    = &Error{Code: CodeNotAuthorized, Message: "Not authorized."}
	ErrValidationFailed = &Error{Code: CodeValidationFailed, Message: "validation failed"}
	ErrInvalidCursor    = &Error{Code: CodeInvalidCursor, Message: "invalid cursor"}
	ErrAlreadyExists    = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrUnavailable      = &Error{Code: CodeUnavailable, Message: "service unavailable"}
)

// Error is a client-facing failure with a stable code.
type Error struct {
	Code    Code
	Message string
	// Field names the offending input field for validation failures.
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Validation builds a ValidationFailed error for a single field.
func Validation(field, message string) *Error {
	return &Error{Code: CodeValidationFailed, Message: message, Field: field}
}

// InvalidCursor wraps a decoding failure.
func InvalidCursor(err error) *Error {
	return &Error{Code: CodeInvalidCursor, Message: "invalid cursor", Err: err}
}

// AlreadyExists reports a uniqueness conflict on the named field.
func AlreadyExists(field, message string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: message, Field: field}
}

// Unavailable reports a disabled or unreachable collaborator.
func Unavailable(message string) *Error {
	return &Error{Code: CodeUnavailable, Message: message}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
