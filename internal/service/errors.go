package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when input validation fails. Every
	// *ValidationError matches it with errors.Is.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExternalService is returned when the embedder or vector store fails.
	ErrExternalService = errors.New("external service error")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation errors.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalidField(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// externalError marks err as a backend failure during op.
func externalError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrExternalService, err)
}
