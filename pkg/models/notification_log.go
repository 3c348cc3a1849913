package models

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Notification log status values.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

// Notification log source tags. Earlier revisions of the system kept
// three overlapping log collections; they are collapsed into this one
// table and the origin is recorded in Source instead.
const (
	NotificationSourceEngine = "engine"
	NotificationSourceLegacy = "legacy"
	NotificationSourceRelay  = "relay"
)

// NotificationLog is the audit trail of one notification attempt.
// A row is created with status pending before the send and updated to
// sent or failed afterwards. The duplicate-send guard queries this table
// by (pr_id, type, status).
type NotificationLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Type string `gorm:"type:varchar(64);not null;index:idx_notification_logs_dedup,priority:2" json:"type"`
	PRID string `gorm:"column:pr_id;type:varchar(128);not null;index:idx_notification_logs_dedup,priority:1" json:"prId"`

	Recipients JSON `gorm:"type:jsonb" json:"recipients"`

	SentAt *time.Time `json:"sentAt,omitempty"`
	Status string     `gorm:"type:varchar(16);not null;index:idx_notification_logs_dedup,priority:3" json:"status"`
	Source string     `gorm:"type:varchar(16);not null;default:'engine'" json:"source"`

	Metadata JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
}

// TableName specifies the table name.
func (NotificationLog) TableName() string {
	return "notification_logs"
}

// SetRecipients encodes the recipient list onto the row.
func (n *NotificationLog) SetRecipients(recipients []string) error {
	b, err := json.Marshal(recipients)
	if err != nil {
		return err
	}
	n.Recipients = JSON(b)
	return nil
}

// RecipientList decodes the recipient list.
func (n *NotificationLog) RecipientList() ([]string, error) {
	var recipients []string
	if n.Recipients.IsNull() {
		return recipients, nil
	}
	if err := json.Unmarshal(n.Recipients, &recipients); err != nil {
		return nil, err
	}
	return recipients, nil
}

// SetMetadata encodes free-form metadata onto the row.
func (n *NotificationLog) SetMetadata(metadata map[string]any) error {
	b, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	n.Metadata = JSON(b)
	return nil
}

// MarkSent updates the row to sent with the delivery timestamp.
func (n *NotificationLog) MarkSent(db *gorm.DB) error {
	now := time.Now()
	n.Status = NotificationStatusSent
	n.SentAt = &now
	return db.Model(n).Updates(map[string]interface{}{
		"status":   NotificationStatusSent,
		"sent_at":  now,
		"metadata": n.Metadata,
	}).Error
}

// MarkFailed updates the row to failed, recording the terminal error in
// the metadata.
func (n *NotificationLog) MarkFailed(db *gorm.DB, lastError string) error {
	metadata := map[string]any{}
	if !n.Metadata.IsNull() {
		// Best effort; a corrupt metadata column should not block the update.
		_ = json.Unmarshal(n.Metadata, &metadata)
	}
	metadata["lastError"] = lastError
	if err := n.SetMetadata(metadata); err != nil {
		return err
	}
	n.Status = NotificationStatusFailed
	return db.Model(n).Updates(map[string]interface{}{
		"status":   NotificationStatusFailed,
		"metadata": n.Metadata,
	}).Error
}

// FindSentNotification returns the most recent sent log entry for the
// given PR and notification type, or nil when none exists. A zero since
// time disables the window filter.
func FindSentNotification(db *gorm.DB, prID, notifType string, since time.Time) (*NotificationLog, error) {
	var entry NotificationLog
	query := db.Where("pr_id = ? AND type = ? AND status = ?",
		prID, notifType, NotificationStatusSent)
	if !since.IsZero() {
		query = query.Where("created_at > ?", since)
	}
	err := query.Order("created_at DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
