package edr

import (
	"fmt"

	"sqledr/internal/db"
)

// ConnectionError means the store could not be reached during
// initialization or a request.
type ConnectionError = db.ConnectionError

// ConfigurationError means the provider configuration does not match the
// reflected store. It is fatal: the provider is never built.
type ConfigurationError struct {
	Table string
	Role  string
	Err   error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Role != "":
		return fmt.Sprintf("provider %s: %s: %v", e.Table, e.Role, e.Err)
	default:
		return fmt.Sprintf("provider %s: %v", e.Table, e.Err)
	}
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError indicates invalid request input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates that the requested location has no rows.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}
