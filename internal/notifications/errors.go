package notifications

import (
	"fmt"
)

// NotFoundError indicates a record the dispatch cannot proceed without.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// UnregisteredTransitionError indicates no handler exists for a
// transition. This is always fatal to the dispatch: defaulting a handler
// would let missing notifications mask a configuration gap.
type UnregisteredTransitionError struct {
	Transition Transition
}

func (e *UnregisteredTransitionError) Error() string {
	return fmt.Sprintf("no handler registered for transition %s", e.Transition)
}

// SendError indicates the mail-send operation failed on every attempt.
type SendError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
