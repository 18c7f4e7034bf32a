package domain

import "errors"

var (
	ErrNotFound   = errors.New("project not found")
	ErrValidation = errors.New("invalid project input")
)

// ValidationError is a client input problem with a message safe to show users.
type ValidationError struct {
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }
