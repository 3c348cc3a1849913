package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurement-forge/reqflow/pkg/models"
)

func TestDuplicateSendGuard(t *testing.T) {
	db := newTestDB(t)
	guard := NewDuplicateSendGuard(db, newTestLogger())
	ctx := context.Background()

	sent, err := guard.AlreadySent(ctx, "pr-1", "pr_submitted", SubmissionDedupWindow)
	require.NoError(t, err)
	assert.False(t, sent)

	now := time.Now()
	require.NoError(t, db.Create(&models.NotificationLog{
		Type:   "pr_submitted",
		PRID:   "pr-1",
		Status: models.NotificationStatusSent,
		Source: models.NotificationSourceLegacy,
		SentAt: &now,
	}).Error)

	sent, err = guard.AlreadySent(ctx, "pr-1", "pr_submitted", SubmissionDedupWindow)
	require.NoError(t, err)
	assert.True(t, sent, "a send recorded by any producer counts")

	sent, err = guard.AlreadySent(ctx, "pr-1", "pr_approved", SubmissionDedupWindow)
	require.NoError(t, err)
	assert.False(t, sent, "different notification type is not a duplicate")

	sent, err = guard.AlreadySent(ctx, "pr-2", "pr_submitted", SubmissionDedupWindow)
	require.NoError(t, err)
	assert.False(t, sent, "different purchase request is not a duplicate")
}

func TestDuplicateSendGuardIgnoresFailedAttempts(t *testing.T) {
	db := newTestDB(t)
	guard := NewDuplicateSendGuard(db, newTestLogger())

	require.NoError(t, db.Create(&models.NotificationLog{
		Type:   "pr_submitted",
		PRID:   "pr-1",
		Status: models.NotificationStatusFailed,
		Source: models.NotificationSourceEngine,
	}).Error)

	sent, err := guard.AlreadySent(context.Background(), "pr-1", "pr_submitted", SubmissionDedupWindow)
	require.NoError(t, err)
	assert.False(t, sent, "failed attempts must not suppress a retry")
}

func TestDuplicateSendGuardWindow(t *testing.T) {
	db := newTestDB(t)
	guard := NewDuplicateSendGuard(db, newTestLogger())

	old := time.Now().Add(-2 * time.Hour)
	entry := &models.NotificationLog{
		Type:   "pr_submitted",
		PRID:   "pr-1",
		Status: models.NotificationStatusSent,
		Source: models.NotificationSourceEngine,
	}
	require.NoError(t, db.Create(entry).Error)
	require.NoError(t, db.Model(entry).Update("created_at", old).Error)

	sent, err := guard.AlreadySent(context.Background(), "pr-1", "pr_submitted", SubmissionDedupWindow)
	require.NoError(t, err)
	assert.False(t, sent, "sends outside the window are genuine resubmissions")

	sent, err = guard.AlreadySent(context.Background(), "pr-1", "pr_submitted", 0)
	require.NoError(t, err)
	assert.True(t, sent, "zero window disables the cutoff")
}
