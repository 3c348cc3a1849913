package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

// PurchaseRequest is the core workflow document. The notification engine
// only reads these records, with two narrow exceptions: the
// currentApprover reconciliation write and the approval history append.
//
// Approver and Requestor are stored as raw JSON because the upstream form
// has written several shapes over time: a bare user ID string, a bare
// email string, or an embedded object with name/email fields. Approver is
// the authoritative source of truth for who approves this request.
type PurchaseRequest struct {
	ID        string    `gorm:"type:varchar(128);primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// PRNumber is the human-readable sequential number ("PR-0001").
	// May be absent on drafts; see Number() for the synthetic fallback.
	PRNumber string `gorm:"type:varchar(32);index" json:"prNumber,omitempty"`

	Status Status `gorm:"type:varchar(32);not null;index" json:"status"`

	Requestor      JSON   `gorm:"type:jsonb" json:"requestor,omitempty"`
	RequestorID    string `gorm:"type:varchar(128);index" json:"requestorId,omitempty"`
	RequestorEmail string `gorm:"type:varchar(320)" json:"requestorEmail,omitempty"`

	Approver JSON `gorm:"type:jsonb" json:"approver,omitempty"`

	// ApprovalWorkflow holds the workflow sub-record; see Workflow().
	// Its currentApprover field mirrors Approver and may drift.
	ApprovalWorkflow JSON `gorm:"type:jsonb" json:"approvalWorkflow,omitempty"`

	EstimatedAmount float64 `json:"estimatedAmount,omitempty"`
	Currency        string  `gorm:"type:varchar(8)" json:"currency,omitempty"`
	Department      string  `gorm:"type:varchar(128)" json:"department,omitempty"`
	Site            string  `gorm:"type:varchar(128)" json:"site,omitempty"`
	Description     string  `json:"description,omitempty"`
	IsUrgent        bool    `json:"isUrgent,omitempty"`

	// RequiredDate arrives as free-form text from the form.
	RequiredDate string `gorm:"type:varchar(64)" json:"requiredDate,omitempty"`

	LineItems JSON `gorm:"type:jsonb" json:"lineItems,omitempty"`
}

// TableName specifies the table name.
func (PurchaseRequest) TableName() string {
	return "purchase_requests"
}

// ApprovalWorkflowRecord is the workflow sub-record stored in the
// ApprovalWorkflow JSON column.
type ApprovalWorkflowRecord struct {
	CurrentApprover string           `json:"currentApprover,omitempty"`
	History         []ApprovalAction `json:"history,omitempty"`
}

// ApprovalAction is one append-only approval history entry.
type ApprovalAction struct {
	ApproverID string    `json:"approverId"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
}

// LineItem is one requested item on a purchase request.
type LineItem struct {
	Description   string   `json:"description"`
	Quantity      float64  `json:"quantity"`
	UnitOfMeasure string   `json:"unitOfMeasure,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	Attachments   []string `json:"attachments,omitempty"`
}

// Number returns the human-readable PR number, or a synthetic number
// derived from the ID prefix when the sequential number is absent.
func (pr *PurchaseRequest) Number() string {
	if pr.PRNumber != "" {
		return pr.PRNumber
	}
	id := pr.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "PR-" + strings.ToUpper(id)
}

// Workflow decodes the approval workflow sub-record. An absent column
// decodes to the zero record.
func (pr *PurchaseRequest) Workflow() (ApprovalWorkflowRecord, error) {
	var wf ApprovalWorkflowRecord
	if pr.ApprovalWorkflow.IsNull() {
		return wf, nil
	}
	if err := json.Unmarshal(pr.ApprovalWorkflow, &wf); err != nil {
		return wf, err
	}
	return wf, nil
}

// SetWorkflow re-encodes the approval workflow sub-record onto the model.
func (pr *PurchaseRequest) SetWorkflow(wf ApprovalWorkflowRecord) error {
	b, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	pr.ApprovalWorkflow = JSON(b)
	return nil
}

// SaveWorkflow persists only the approval workflow column. This is the
// narrow field-path update used by the currentApprover reconciliation and
// the history append; the engine never rewrites the whole record.
func (pr *PurchaseRequest) SaveWorkflow(db *gorm.DB) error {
	return db.Model(pr).Update("approval_workflow", pr.ApprovalWorkflow).Error
}

// Items decodes the line items list.
func (pr *PurchaseRequest) Items() ([]LineItem, error) {
	var items []LineItem
	if pr.LineItems.IsNull() {
		return items, nil
	}
	if err := json.Unmarshal(pr.LineItems, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetPurchaseRequest retrieves a purchase request by ID.
func GetPurchaseRequest(db *gorm.DB, id string) (*PurchaseRequest, error) {
	var pr PurchaseRequest
	if err := db.Where("id = ?", id).First(&pr).Error; err != nil {
		return nil, err
	}
	return &pr, nil
}
