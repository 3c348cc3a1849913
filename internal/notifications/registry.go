package notifications

import (
	"context"
)

// Handler is the stateless strategy object for one status transition.
// Handlers resolve who gets notified and what the email says; the
// Dispatcher owns everything else (loading, retry, logging).
type Handler interface {
	// Type returns the notification type tag recorded in the log.
	Type() string

	// Recipients resolves the to/cc addresses for this transition.
	Recipients(ctx context.Context, nc *Context) (Recipients, error)

	// Content renders the subject/text/HTML for this transition.
	Content(ctx context.Context, nc *Context) (*Content, error)
}

// BeforeTransitioner is implemented by handlers that need to run before
// recipient resolution (e.g., consistency repairs).
type BeforeTransitioner interface {
	BeforeTransition(ctx context.Context, nc *Context) error
}

// AfterTransitioner is implemented by handlers that need to run after a
// successful send (e.g., approval history appends).
type AfterTransitioner interface {
	AfterTransition(ctx context.Context, nc *Context) error
}

// Registry maps transitions to handlers. Built once at process start;
// read-only afterwards.
type Registry struct {
	handlers map[Transition]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Transition]Handler),
	}
}

// Register binds a handler to a transition. Later registrations for the
// same transition win; this only happens in tests.
func (r *Registry) Register(t Transition, h Handler) {
	r.handlers[t] = h
}

// Lookup returns the handler for a transition, or
// UnregisteredTransitionError when none is registered. There is no
// default handler: every transition that notifies must be registered
// explicitly.
func (r *Registry) Lookup(t Transition) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, &UnregisteredTransitionError{Transition: t}
	}
	return h, nil
}

// Transitions returns all registered transitions.
func (r *Registry) Transitions() []Transition {
	transitions := make([]Transition, 0, len(r.handlers))
	for t := range r.handlers {
		transitions = append(transitions, t)
	}
	return transitions
}
