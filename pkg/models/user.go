package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// User is a reference-data user record maintained by the admin console.
// The notification engine only reads these to resolve approver/requestor
// IDs to addresses and display names.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// ExternalID is the auth-provider subject that PR records reference.
	ExternalID string `gorm:"type:varchar(128);uniqueIndex" json:"externalId"`

	EmailAddress string `gorm:"type:varchar(320);index" json:"email"`

	// Name fields are populated inconsistently depending on which admin
	// screen or import created the record.
	FirstName   string `gorm:"type:varchar(128)" json:"firstName,omitempty"`
	LastName    string `gorm:"type:varchar(128)" json:"lastName,omitempty"`
	Name        string `gorm:"type:varchar(256)" json:"name,omitempty"`
	DisplayName string `gorm:"type:varchar(256)" json:"displayName,omitempty"`
}

// TableName specifies the table name.
func (User) TableName() string {
	return "users"
}

// GetUserByExternalID retrieves a user by the auth-provider subject ID.
// Returns (nil, nil) when no record exists: a missing user is an expected
// condition for the resolution fallback chain, not an error.
func GetUserByExternalID(db *gorm.DB, externalID string) (*User, error) {
	var user User
	err := db.Where("external_id = ?", externalID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email address (case-insensitive).
// Returns (nil, nil) when no record exists.
func GetUserByEmail(db *gorm.DB, email string) (*User, error) {
	var user User
	err := db.Where("LOWER(email_address) = LOWER(?)", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
