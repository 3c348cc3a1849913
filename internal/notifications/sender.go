package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/procurement-forge/reqflow/pkg/models"
	pubsub "github.com/procurement-forge/reqflow/pkg/notifications"
	"github.com/procurement-forge/reqflow/pkg/notifications/backends"
)

// SendRequest is a fully resolved notification ready for delivery.
type SendRequest struct {
	Type     string
	PRID     string
	PRNumber string

	ActorEmail string
	ActorName  string
	Notes      string
	Metadata   map[string]any

	To []string
	CC []string

	Content *Content
}

// Sender delivers one resolved notification, returning a message ID for
// the delivery log. The operation name records which mail-send entry
// point handled the message.
type Sender interface {
	Send(ctx context.Context, operation string, req *SendRequest) (string, error)
}

// sendOperations binds each registered transition to the mail-send
// operation that historically handled it.
var sendOperations = map[Transition]string{
	{Old: "", New: models.StatusSubmitted}:                                          "sendNewPrNotification",
	{Old: models.StatusSubmitted, New: models.StatusRevisionRequired}:               "sendRevisionRequiredNotification",
	{Old: models.StatusRevisionRequired, New: models.StatusSubmitted}:               "sendResubmittedNotification",
	{Old: models.StatusSubmitted, New: models.StatusPendingApproval}:                "sendPendingApprovalNotification",
	{Old: models.StatusInQueue, New: models.StatusPendingApproval}:                  "sendPendingApprovalNotification",
	{Old: models.StatusPendingApproval, New: models.StatusApproved}:                 "sendApprovalResultNotification",
	{Old: models.StatusPendingApproval, New: models.StatusRejected}:                 "sendApprovalResultNotification",
}

// genericSendOperation handles transitions with no dedicated binding.
const genericSendOperation = "sendPrNotification"

// operationFor returns the operation name bound to a transition.
func operationFor(t Transition) string {
	if op, ok := sendOperations[t]; ok {
		return op
	}
	return genericSendOperation
}

// defaultBackends routes engine notifications through mail delivery
// plus the audit trail.
var defaultBackends = []string{"mail", "audit"}

// QueueSender publishes resolved notifications to the message queue;
// the notifier worker performs delivery.
type QueueSender struct {
	publisher *pubsub.Publisher
}

// NewQueueSender creates a queue-backed Sender.
func NewQueueSender(publisher *pubsub.Publisher) *QueueSender {
	return &QueueSender{publisher: publisher}
}

// Send publishes the notification envelope and returns its message ID.
func (s *QueueSender) Send(ctx context.Context, operation string, req *SendRequest) (string, error) {
	msg := buildMessage(operation, req)
	if err := s.publisher.PublishMessage(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// DirectSender delivers over SMTP in-process. Used when no queue is
// deployed; retry behavior is the dispatcher's, not the broker's.
type DirectSender struct {
	mail *backends.MailBackend
}

// NewDirectSender creates an SMTP-backed Sender.
func NewDirectSender(mail *backends.MailBackend) *DirectSender {
	return &DirectSender{mail: mail}
}

// Send delivers the notification immediately and returns its message ID.
func (s *DirectSender) Send(ctx context.Context, operation string, req *SendRequest) (string, error) {
	msg := buildMessage(operation, req)
	if err := s.mail.Handle(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func buildMessage(operation string, req *SendRequest) *pubsub.NotificationMessage {
	msg := &pubsub.NotificationMessage{
		ID:        uuid.New().String(),
		Type:      pubsub.NotificationType(req.Type),
		Operation: operation,
		Timestamp: time.Now().UTC(),
		PRID:      req.PRID,
		PRNumber:  req.PRNumber,
		UserEmail: req.ActorEmail,
		UserName:  req.ActorName,
		Notes:     req.Notes,
		Metadata:  req.Metadata,
		Backends:  defaultBackends,
	}

	for _, addr := range req.To {
		msg.Recipients = append(msg.Recipients, pubsub.Recipient{Email: addr})
	}
	for _, addr := range req.CC {
		msg.CC = append(msg.CC, pubsub.Recipient{Email: addr})
	}

	if req.Content != nil {
		msg.Subject = req.Content.Subject
		msg.Body = req.Content.Text
		msg.BodyHTML = req.Content.HTML
	}

	return msg
}
