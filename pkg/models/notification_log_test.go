package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(ModelsToAutoMigrate()...))
	return db
}

func TestNotificationLogMarkSent(t *testing.T) {
	db := newTestDB(t)

	entry := &NotificationLog{
		Type:   "pr_submitted",
		PRID:   "pr-1",
		Status: NotificationStatusPending,
		Source: NotificationSourceEngine,
	}
	require.NoError(t, entry.SetRecipients([]string{"jane@example.com"}))
	require.NoError(t, db.Create(entry).Error)

	require.NoError(t, entry.SetMetadata(map[string]any{"messageId": "m1"}))
	require.NoError(t, entry.MarkSent(db))

	var reloaded NotificationLog
	require.NoError(t, db.First(&reloaded, entry.ID).Error)
	assert.Equal(t, NotificationStatusSent, reloaded.Status)
	assert.NotNil(t, reloaded.SentAt)

	recipients, err := reloaded.RecipientList()
	require.NoError(t, err)
	assert.Equal(t, []string{"jane@example.com"}, recipients)
}

func TestNotificationLogMarkFailedMergesError(t *testing.T) {
	db := newTestDB(t)

	entry := &NotificationLog{
		Type:   "pr_submitted",
		PRID:   "pr-1",
		Status: NotificationStatusPending,
		Source: NotificationSourceEngine,
	}
	require.NoError(t, entry.SetMetadata(map[string]any{"operation": "sendNewPrNotification"}))
	require.NoError(t, db.Create(entry).Error)

	require.NoError(t, entry.MarkFailed(db, "smtp unavailable"))

	var reloaded NotificationLog
	require.NoError(t, db.First(&reloaded, entry.ID).Error)
	assert.Equal(t, NotificationStatusFailed, reloaded.Status)
	assert.Nil(t, reloaded.SentAt)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(reloaded.Metadata, &metadata))
	assert.Equal(t, "smtp unavailable", metadata["lastError"])
	assert.Equal(t, "sendNewPrNotification", metadata["operation"],
		"existing metadata survives the failure update")
}
