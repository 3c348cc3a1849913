package notifications

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/procurement-forge/reqflow/pkg/models"
)

// SubmissionDedupWindow bounds how far back the duplicate-send guard
// looks on the submission path. Form retries and the legacy path can
// both fire for the same submission within minutes of each other;
// anything older is a genuine resubmission.
const SubmissionDedupWindow = 60 * time.Minute

// DuplicateSendGuard suppresses repeat sends of the same notification
// for the same purchase request. It reads the shared notification log,
// so sends recorded by any producer count.
type DuplicateSendGuard struct {
	db  *gorm.DB
	log hclog.Logger
}

// NewDuplicateSendGuard creates a guard over the notification log.
func NewDuplicateSendGuard(db *gorm.DB, log hclog.Logger) *DuplicateSendGuard {
	return &DuplicateSendGuard{db: db, log: log}
}

// AlreadySent reports whether a notification of the given type was
// already sent for this purchase request within the window. A zero
// window means any prior send counts.
//
// The guard fails open: a log read error is reported to the caller, who
// should log it and proceed with the send. A duplicate email is a
// nuisance; a silently dropped one is a lost approval.
func (g *DuplicateSendGuard) AlreadySent(ctx context.Context, prID, notifType string, window time.Duration) (bool, error) {
	var since time.Time
	if window > 0 {
		since = time.Now().Add(-window)
	}

	existing, err := models.FindSentNotification(g.db.WithContext(ctx), prID, notifType, since)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	g.log.Debug("duplicate notification suppressed",
		"pr_id", prID,
		"type", notifType,
		"prior_log_id", existing.ID,
	)
	return true, nil
}
