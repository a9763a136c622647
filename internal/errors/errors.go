// Package errors defines the error taxonomy shared by the cart service layers.
package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = stderrors.New("not found")

	// ErrProductNotFound is returned when a product is missing from the catalog.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)

	// ErrBadRequest is returned for malformed input.
	ErrBadRequest = stderrors.New("bad request")

	// ErrUnavailable is returned when the session or storage backend fails.
	ErrUnavailable = stderrors.New("backend unavailable")

	// ErrUnreachable is returned by clients when the network call itself fails.
	ErrUnreachable = stderrors.New("service unreachable")

	// ErrUnauthorized is returned when no client identity accompanies the request.
	ErrUnauthorized = stderrors.New("unauthorized")
)

// ValidationError describes invalid input on a single field.
type ValidationError struct {
	Field   string            `json:"field"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap makes validation errors match ErrBadRequest.
func (e *ValidationError) Unwrap() error {
	return ErrBadRequest
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Details: map[string]string{field: message},
	}
}

// Unavailable wraps a backend failure so that it matches ErrUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Unreachable wraps a transport failure so that it matches ErrUnreachable.
func Unreachable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnreachable, err)
}

// BadRequest builds an error matching ErrBadRequest with a message.
func BadRequest(message string) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, message)
}

// Is reports whether err matches target. It mirrors the standard library so
// callers importing this package do not need both.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As mirrors errors.As from the standard library.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
