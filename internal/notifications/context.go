package notifications

import (
	"strings"

	"github.com/procurement-forge/reqflow/pkg/models"
)

// Actor is the user whose action triggered the transition.
type Actor struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// DisplayName returns the actor's name, falling back to the email
// address when no name fields are set.
func (a *Actor) DisplayName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name != "" {
		return name
	}
	return a.Email
}

// Context carries everything a handler needs to resolve one
// notification. It is built per dispatch and discarded afterwards; it is
// never persisted.
type Context struct {
	PRID     string
	PR       *models.PurchaseRequest
	PRNumber string

	Old models.Status
	New models.Status

	Actor *Actor
	Notes string

	Metadata map[string]any

	// BaseURL for building links into the web application.
	BaseURL string
}

// Transition returns the (old, new) pair for this context.
func (nc *Context) Transition() Transition {
	return Transition{Old: nc.Old, New: nc.New}
}

// RequestURL returns the web application link for this purchase request.
func (nc *Context) RequestURL() string {
	if nc.BaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(nc.BaseURL, "/") + "/requests/" + nc.PRID
}
