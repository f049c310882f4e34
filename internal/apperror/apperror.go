// Package apperror defines the error kinds shared by every layer.
//
// Services and repositories return these; only the HTTP layer
// (handler/response.go) decides what status code or redirect each kind becomes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("Validation Error")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrAuth          = errors.New("authentication failed")
	ErrInvalidUpload = errors.New("invalid upload")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// The HTTP layer turns this into a redirect to the listing with a warning.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Auth wraps a failure anywhere in the OAuth callback (state mismatch, code
// exchange, id_token verification, missing claims, user creation).
// The cause is kept for logging; Message is safe to show.
func Auth(cause error) *AppError {
	if cause == nil {
		return &AppError{Err: ErrAuth, Message: ErrAuth.Error()}
	}
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrAuth, cause),
		Message: "authentication failed: " + cause.Error(),
	}
}

// InvalidUpload reports a rejected image file. The filename is kept in the
// wrapped error for logs only.
func InvalidUpload(filename string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %q", ErrInvalidUpload, filename),
		Message: "Invalid image file type.",
		Field:   "image",
	}
}
