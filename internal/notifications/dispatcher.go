package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/procurement-forge/reqflow/pkg/models"
)

const (
	// sendAttempts is the total number of delivery attempts per
	// notification, including the first.
	sendAttempts = 3

	// defaultRetryInterval is the fixed pause between attempts.
	defaultRetryInterval = 1 * time.Second
)

// StatusChange is one observed purchase request status transition.
type StatusChange struct {
	PRID string
	Old  models.Status
	New  models.Status

	Actor *Actor
	Notes string

	// Snapshot is the caller's copy of the purchase request, used as a
	// fallback when the submission event outruns the record becoming
	// readable.
	Snapshot *models.PurchaseRequest
}

// Dispatcher drives one notification per status change: look up the
// handler, load the request, resolve recipients and content, then send
// with retry while keeping the notification log honest about what
// happened.
type Dispatcher struct {
	db       *gorm.DB
	registry *Registry
	guard    *DuplicateSendGuard
	sender   Sender
	log      hclog.Logger
	baseURL  string

	// retryInterval is overridable in tests.
	retryInterval time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	db *gorm.DB,
	registry *Registry,
	guard *DuplicateSendGuard,
	sender Sender,
	log hclog.Logger,
	baseURL string,
) *Dispatcher {
	return &Dispatcher{
		db:            db,
		registry:      registry,
		guard:         guard,
		sender:        sender,
		log:           log,
		baseURL:       baseURL,
		retryInterval: defaultRetryInterval,
	}
}

// HandleStatusChange dispatches the notification for one transition.
//
// A nil return means either the notification was sent or it was
// deliberately skipped (duplicate submission, no resolvable recipients).
// Errors are typed: *UnregisteredTransitionError for an unknown
// transition, *NotFoundError when the request cannot be loaded, and
// *SendError when delivery failed on every attempt.
func (d *Dispatcher) HandleStatusChange(ctx context.Context, change *StatusChange) error {
	transition := Transition{Old: change.Old, New: change.New}

	// Handler lookup comes first: an unregistered transition must fail
	// before any I/O happens.
	handler, err := d.registry.Lookup(transition)
	if err != nil {
		return err
	}

	pr, err := d.loadRequest(ctx, change)
	if err != nil {
		return err
	}

	nc := &Context{
		PRID:     change.PRID,
		PR:       pr,
		PRNumber: pr.Number(),
		Old:      change.Old,
		New:      change.New,
		Actor:    change.Actor,
		Notes:    change.Notes,
		BaseURL:  d.baseURL,
	}

	// The submission path is the one transition reachable from two
	// producers at once, so it alone gets the duplicate-send guard.
	if change.Old == "" {
		sent, err := d.guard.AlreadySent(ctx, change.PRID, handler.Type(), SubmissionDedupWindow)
		if err != nil {
			d.log.Warn("duplicate-send guard check failed, proceeding with send",
				"pr_id", change.PRID, "error", err)
		} else if sent {
			d.log.Info("skipping duplicate submission notification",
				"pr_id", change.PRID, "type", handler.Type())
			return nil
		}
	}

	if bt, ok := handler.(BeforeTransitioner); ok {
		if err := bt.BeforeTransition(ctx, nc); err != nil {
			d.log.Warn("pre-transition hook failed, continuing dispatch",
				"pr_id", change.PRID, "transition", transition.String(), "error", err)
		}
	}

	recipients, err := handler.Recipients(ctx, nc)
	if err != nil {
		return err
	}
	if len(recipients.To) == 0 {
		d.log.Warn("no resolvable recipients, skipping notification",
			"pr_id", change.PRID,
			"transition", transition.String(),
			"type", handler.Type(),
		)
		return nil
	}

	content, err := handler.Content(ctx, nc)
	if err != nil {
		return err
	}

	logEntry := d.createLogEntry(ctx, change, handler.Type(), recipients)

	operation := operationFor(transition)
	req := &SendRequest{
		Type:     handler.Type(),
		PRID:     change.PRID,
		PRNumber: nc.PRNumber,
		Notes:    change.Notes,
		To:       recipients.To,
		CC:       recipients.CC,
		Content:  content,
	}
	if change.Actor != nil {
		req.ActorEmail = change.Actor.Email
		req.ActorName = change.Actor.DisplayName()
	}

	messageID, sendErr := d.sendWithRetry(ctx, operation, req)
	if sendErr != nil {
		d.log.Error("notification delivery failed",
			"pr_id", change.PRID,
			"transition", transition.String(),
			"operation", operation,
			"error", sendErr,
		)
		if logEntry != nil {
			if err := logEntry.MarkFailed(d.db.WithContext(ctx), sendErr.Error()); err != nil {
				sendErr = multierror.Append(sendErr, err)
			}
		}
		return sendErr
	}

	if logEntry != nil {
		metadata := map[string]any{
			"oldStatus": string(change.Old),
			"newStatus": string(change.New),
			"operation": operation,
			"messageId": messageID,
			"subject":   content.Subject,
		}
		if change.Actor != nil {
			metadata["actor"] = change.Actor.Email
		}
		if change.Notes != "" {
			metadata["notes"] = change.Notes
		}
		if err := logEntry.SetMetadata(metadata); err == nil {
			if err := logEntry.MarkSent(d.db.WithContext(ctx)); err != nil {
				d.log.Warn("failed to mark notification log sent",
					"pr_id", change.PRID, "log_id", logEntry.ID, "error", err)
			}
		}
	}

	d.log.Info("notification sent",
		"pr_id", change.PRID,
		"transition", transition.String(),
		"type", handler.Type(),
		"operation", operation,
		"message_id", messageID,
		"to", recipients.To,
		"cc", recipients.CC,
	)

	if at, ok := handler.(AfterTransitioner); ok {
		if err := at.AfterTransition(ctx, nc); err != nil {
			d.log.Warn("post-transition hook failed",
				"pr_id", change.PRID, "transition", transition.String(), "error", err)
		}
	}

	return nil
}

// loadRequest loads the purchase request, falling back to the caller's
// snapshot on the submission path. A freshly submitted request may not
// be readable yet when the event arrives; only then is the snapshot
// trusted.
func (d *Dispatcher) loadRequest(ctx context.Context, change *StatusChange) (*models.PurchaseRequest, error) {
	pr, err := models.GetPurchaseRequest(d.db.WithContext(ctx), change.PRID)
	if err == nil {
		return pr, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if change.Old == "" && change.Snapshot != nil {
			d.log.Warn("purchase request not yet readable, using event snapshot",
				"pr_id", change.PRID)
			snapshot := *change.Snapshot
			snapshot.ID = change.PRID
			return &snapshot, nil
		}
		return nil, &NotFoundError{Resource: "purchase request", ID: change.PRID}
	}

	return nil, err
}

// createLogEntry records the pending delivery attempt. A log write
// failure is not a reason to withhold the notification; the dispatch
// proceeds unlogged with a warning.
func (d *Dispatcher) createLogEntry(ctx context.Context, change *StatusChange, notifType string, recipients Recipients) *models.NotificationLog {
	entry := &models.NotificationLog{
		Type:   notifType,
		PRID:   change.PRID,
		Status: models.NotificationStatusPending,
		Source: models.NotificationSourceEngine,
	}
	if err := entry.SetRecipients(recipients.All()); err != nil {
		d.log.Warn("failed to encode recipients for notification log",
			"pr_id", change.PRID, "error", err)
		return nil
	}
	if err := d.db.WithContext(ctx).Create(entry).Error; err != nil {
		d.log.Warn("failed to create notification log entry, proceeding unlogged",
			"pr_id", change.PRID, "error", err)
		return nil
	}
	return entry
}

// sendWithRetry drives the fixed-interval retry policy around the
// sender. Only when every attempt fails does it return a *SendError
// wrapping the last failure.
func (d *Dispatcher) sendWithRetry(ctx context.Context, operation string, req *SendRequest) (string, error) {
	var messageID string
	attempt := 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.retryInterval), sendAttempts-1),
		ctx,
	)

	err := backoff.RetryNotify(
		func() error {
			attempt++
			id, err := d.sender.Send(ctx, operation, req)
			if err != nil {
				return err
			}
			messageID = id
			return nil
		},
		policy,
		func(err error, wait time.Duration) {
			d.log.Warn("notification send attempt failed",
				"operation", operation,
				"pr_id", req.PRID,
				"attempt", attempt,
				"max_attempts", sendAttempts,
				"retry_in", wait,
				"error", err,
			)
		},
	)
	if err != nil {
		return "", &SendError{Operation: operation, Attempts: attempt, Err: err}
	}

	return messageID, nil
}
