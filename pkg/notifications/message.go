package notifications

import (
	"time"
)

// NotificationType identifies which purchase request transition (or
// relay template) produced a notification.
type NotificationType string

const (
	NotificationTypeEmail             NotificationType = "email"
	NotificationTypePRSubmitted       NotificationType = "pr_submitted"
	NotificationTypeRevisionRequested NotificationType = "pr_revision_requested"
	NotificationTypePRResubmitted     NotificationType = "pr_resubmitted"
	NotificationTypePendingApproval   NotificationType = "pr_pending_approval"
	NotificationTypePRApproved        NotificationType = "pr_approved"
	NotificationTypePRRejected        NotificationType = "pr_rejected"
)

// NotificationMessage is the envelope for all notifications. The engine
// publishes fully resolved messages; consumers never re-render content.
type NotificationMessage struct {
	// Message metadata
	ID        string           `json:"id"`        // Unique message ID (UUID)
	Type      NotificationType `json:"type"`      // Notification type
	Operation string           `json:"operation"` // Bound mail-send operation
	Timestamp time.Time        `json:"timestamp"` // When published

	// Purchase request context
	PRID     string `json:"pr_id,omitempty"`
	PRNumber string `json:"pr_number,omitempty"`

	// Acting user (who triggered the transition), if known
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`

	Notes    string         `json:"notes,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Notification targets
	Recipients []Recipient `json:"recipients"`
	CC         []Recipient `json:"cc,omitempty"`

	// Resolved content (populated by the engine before publishing)
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	BodyHTML string `json:"body_html"`

	// Backend routing (which backends should process this)
	Backends []string `json:"backends"` // ["mail", "audit"]

	// Retry tracking (set by consumers)
	RetryCount  int       `json:"retry_count,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastRetryAt time.Time `json:"last_retry_at,omitempty"`
	NextRetryAt time.Time `json:"next_retry_at,omitempty"`
}

// Recipient defines a notification recipient.
type Recipient struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}
