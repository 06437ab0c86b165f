// Package apperr defines the error taxonomy shared by the session and
// chat-sync layers. Callers switch on the code to decide whether the whole
// operation is worth retrying.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers.
type Code string

const (
	// CodeNotFound — unknown connection or chat.
	CodeNotFound Code = "NOT_FOUND"
	// CodeUpstream — provider HTTP failure, timeout or malformed response.
	CodeUpstream Code = "UPSTREAM_ERROR"
	// CodeAuthFailure — the provider rejected pairing.
	CodeAuthFailure Code = "AUTHENTICATION_FAILURE"
	// CodeValidation — missing or malformed caller input.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeInternal — everything else.
	CodeInternal Code = "INTERNAL"
)

// Error carries a code, a caller-facing message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates an Error wrapping a cause.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// NotFound is shorthand for New(CodeNotFound, msg).
func NotFound(msg string) *Error { return New(CodeNotFound, msg) }

// Validation is shorthand for New(CodeValidation, msg).
func Validation(msg string) *Error { return New(CodeValidation, msg) }

// Upstream wraps err as a provider failure.
func Upstream(msg string, err error) *Error { return Wrap(CodeUpstream, msg, err) }

// AuthFailure wraps err as a pairing rejection.
func AuthFailure(msg string, err error) *Error { return Wrap(CodeAuthFailure, msg, err) }

// CodeOf extracts the code from err, walking the wrap chain.
// Returns CodeInternal for errors that carry no code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
