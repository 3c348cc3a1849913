package backends

import (
	"context"
	"fmt"

	"github.com/procurement-forge/reqflow/pkg/notifications"
)

// Backend defines the interface for notification delivery backends.
type Backend interface {
	// Name returns the backend identifier
	Name() string

	// Handle processes a notification message
	Handle(ctx context.Context, msg *notifications.NotificationMessage) error

	// SupportsBackend checks if this backend should process the message
	SupportsBackend(backend string) bool
}

// BackendError represents an error from a specific backend.
type BackendError struct {
	Backend   string // Backend name (e.g., "mail", "audit")
	Operation string // Operation that failed (e.g., "send", "connect")
	Retryable bool   // Whether the error is retryable
	Err       error  // Underlying error
}

func (e *BackendError) Error() string {
	retryability := "permanent"
	if e.Retryable {
		retryability = "retryable"
	}
	return fmt.Sprintf("%s backend error (%s, %s): %v", e.Backend, e.Operation, retryability, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable.
func (e *BackendError) IsRetryable() bool {
	return e.Retryable
}

// NewBackendError creates a new backend error.
func NewBackendError(backend, operation string, retryable bool, err error) *BackendError {
	return &BackendError{
		Backend:   backend,
		Operation: operation,
		Retryable: retryable,
		Err:       err,
	}
}
