package models

// Status is the lifecycle status of a purchase request.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusSubmitted         Status = "SUBMITTED"
	StatusInQueue           Status = "IN_QUEUE"
	StatusPendingApproval   Status = "PENDING_APPROVAL"
	StatusApproved          Status = "APPROVED"
	StatusOrdered           Status = "ORDERED"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusCompleted         Status = "COMPLETED"
	StatusRevisionRequired  Status = "REVISION_REQUIRED"
	StatusCanceled          Status = "CANCELED"
	StatusRejected          Status = "REJECTED"
)

var validStatuses = map[Status]bool{
	StatusDraft:             true,
	StatusSubmitted:         true,
	StatusInQueue:           true,
	StatusPendingApproval:   true,
	StatusApproved:          true,
	StatusOrdered:           true,
	StatusPartiallyReceived: true,
	StatusCompleted:         true,
	StatusRevisionRequired:  true,
	StatusCanceled:          true,
	StatusRejected:          true,
}

// Valid reports whether s is a known purchase request status.
func (s Status) Valid() bool {
	return validStatuses[s]
}
