package notifications

import (
	"github.com/procurement-forge/reqflow/pkg/models"
)

// Transition is an (oldStatus, newStatus) pair representing a purchase
// request lifecycle event. An empty Old means the request was just
// created (the NEW -> SUBMITTED path).
type Transition struct {
	Old models.Status
	New models.Status
}

// String renders the transition for logs and error messages.
func (t Transition) String() string {
	old := string(t.Old)
	if old == "" {
		old = "NEW"
	}
	return old + "->" + string(t.New)
}
