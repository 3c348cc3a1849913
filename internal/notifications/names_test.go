package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/procurement-forge/reqflow/pkg/models"
)

func TestRequestorNameFromUserRecord(t *testing.T) {
	db := newTestDB(t)
	createUser := &models.User{
		ExternalID:   "usr_1",
		EmailAddress: "jane.doe@example.com",
		FirstName:    "Jane",
		LastName:     "Doe",
	}
	assert.NoError(t, db.Create(createUser).Error)

	resolver := NewResolver(NewDirectory(db), newTestLogger())

	pr := &models.PurchaseRequest{RequestorID: "usr_1"}
	assert.Equal(t, "Jane Doe", resolver.RequestorName(context.Background(), pr))
}

func TestRequestorNameDerivedFromEmail(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(NewDirectory(db), newTestLogger())

	pr := &models.PurchaseRequest{
		Requestor: models.JSON(`"jane.doe@example.com"`),
	}
	assert.Equal(t, "Jane Doe", resolver.RequestorName(context.Background(), pr))
}

func TestRequestorNameBareStringTreatedAsName(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(NewDirectory(db), newTestLogger())

	pr := &models.PurchaseRequest{
		Requestor: models.JSON(`"Palesa Khumalo"`),
	}
	assert.Equal(t, "Palesa Khumalo", resolver.RequestorName(context.Background(), pr))
}

func TestRequestorNameBareStringWinsOverFlatID(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(NewDirectory(db), newTestLogger())

	// The form writes a flat requestorId alongside the typed name; the
	// unresolvable ID must not shadow the name.
	pr := &models.PurchaseRequest{
		Requestor:   models.JSON(`"John Smith"`),
		RequestorID: "usr_gone",
	}
	assert.Equal(t, "John Smith", resolver.RequestorName(context.Background(), pr))
}

func TestRequestorNameFallback(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(NewDirectory(db), newTestLogger())

	pr := &models.PurchaseRequest{}
	name := resolver.RequestorName(context.Background(), pr)
	assert.Equal(t, RequestorFallbackName, name)
	assert.NotEqual(t, "Unknown", name)
}

func TestRequestorNameSkipsUnknownPlaceholder(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(NewDirectory(db), newTestLogger())

	pr := &models.PurchaseRequest{
		Requestor: models.JSON(`{"name":"Unknown","email":"sam_smith@example.com"}`),
	}
	assert.Equal(t, "Sam Smith", resolver.RequestorName(context.Background(), pr))
}

func TestApproverNamePlaceholderForOpaqueID(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(NewDirectory(db), newTestLogger())

	pr := &models.PurchaseRequest{
		Approver: models.JSON(`"usr_missing"`),
	}
	assert.Equal(t, "Approver (ID: usr_missing)", resolver.ApproverName(context.Background(), pr))
}

func TestApproverEmailPriority(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Create(&models.User{
		ExternalID:   "usr_7",
		EmailAddress: "lerato@example.com",
	}).Error)

	resolver := NewResolver(NewDirectory(db), newTestLogger())

	tests := []struct {
		name     string
		pr       *models.PurchaseRequest
		expected string
	}{
		{
			name: "embedded email wins",
			pr: &models.PurchaseRequest{
				Approver: models.JSON(`{"id":"usr_7","email":"Other@Example.com"}`),
			},
			expected: "other@example.com",
		},
		{
			name: "ID resolved via directory",
			pr: &models.PurchaseRequest{
				Approver: models.JSON(`"usr_7"`),
			},
			expected: "lerato@example.com",
		},
		{
			name: "workflow mirror used when approver absent",
			pr: &models.PurchaseRequest{
				ApprovalWorkflow: models.JSON(`{"currentApprover":"usr_7"}`),
			},
			expected: "lerato@example.com",
		},
		{
			name:     "nothing resolves",
			pr:       &models.PurchaseRequest{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolver.ApproverEmail(context.Background(), tt.pr))
		})
	}
}

func TestDeriveNameFromEmail(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"jane.doe@example.com", "Jane Doe"},
		{"bob_mokoena@example.com", "Bob Mokoena"},
		{"thabo-n@example.com", "Thabo N"},
		{"single@example.com", "Single"},
		{"@example.com", ""},
		{"not-an-email", ""},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.expected, deriveNameFromEmail(tt.email))
		})
	}
}
