package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/procurement-forge/reqflow/pkg/notifications"
)

// AuditBackend logs all notifications for compliance and debugging. It
// is the delivery trail on the worker side, independent of the engine's
// database log.
type AuditBackend struct {
	logger *log.Logger
}

// NewAuditBackend creates a new audit backend.
func NewAuditBackend() *AuditBackend {
	return &AuditBackend{
		logger: log.New(os.Stdout, "[AUDIT] ", log.LstdFlags|log.Lmsgprefix),
	}
}

// Name returns the backend identifier.
func (b *AuditBackend) Name() string {
	return "audit"
}

// SupportsBackend checks if this backend should process the message.
func (b *AuditBackend) SupportsBackend(backend string) bool {
	return backend == "audit"
}

// Handle processes a notification message.
func (b *AuditBackend) Handle(ctx context.Context, msg *notifications.NotificationMessage) error {
	b.logger.Printf("Notification ID: %s", msg.ID)
	b.logger.Printf("  Type: %s", msg.Type)
	if msg.Operation != "" {
		b.logger.Printf("  Operation: %s", msg.Operation)
	}
	b.logger.Printf("  Timestamp: %s", msg.Timestamp.Format(time.RFC3339))

	if msg.PRID != "" {
		b.logger.Printf("  PR ID: %s", msg.PRID)
	}
	if msg.PRNumber != "" {
		b.logger.Printf("  PR Number: %s", msg.PRNumber)
	}
	if msg.UserEmail != "" {
		b.logger.Printf("  Acting User: %s", msg.UserEmail)
	}

	b.logger.Printf("  Recipients: %s", formatRecipients(msg.Recipients))
	if len(msg.CC) > 0 {
		b.logger.Printf("  Cc: %s", formatRecipients(msg.CC))
	}

	if msg.Subject != "" {
		b.logger.Printf("  Subject: %s", msg.Subject)
	}
	if msg.Body != "" {
		b.logger.Printf("  Body:\n%s", indent(msg.Body, "    "))
	}

	if len(msg.Metadata) > 0 {
		metadataJSON, _ := json.MarshalIndent(msg.Metadata, "    ", "  ")
		b.logger.Printf("  Metadata:\n    %s", string(metadataJSON))
	}

	b.logger.Printf("  ✓ Acknowledged at %s", time.Now().Format(time.RFC3339))

	return nil
}

// indent adds prefix to each line of text.
func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func formatRecipients(recipients []notifications.Recipient) string {
	var parts []string
	for _, r := range recipients {
		if r.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", r.Name, r.Email))
		} else if r.Email != "" {
			parts = append(parts, r.Email)
		}
	}
	return strings.Join(parts, ", ")
}
