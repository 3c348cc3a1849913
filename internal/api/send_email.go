package api

import (
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/procurement-forge/reqflow/internal/notifications"
	"github.com/procurement-forge/reqflow/internal/server"
	"github.com/procurement-forge/reqflow/pkg/models"
)

// SendEmailRequest is the legacy relay request body. Everything except
// the recipient is optional; missing display fields fall back to
// placeholder defaults rather than failing the send.
type SendEmailRequest struct {
	To string   `json:"to"`
	CC []string `json:"cc,omitempty"`

	// TemplateType selects which notification template renders the
	// email. Defaults to the submission template.
	TemplateType string `json:"templateType,omitempty"`

	// Subject overrides the template-rendered subject when set.
	Subject string `json:"subject,omitempty"`

	PRID         string  `json:"prId,omitempty"`
	PRNumber     string  `json:"prNumber,omitempty"`
	Requestor    string  `json:"requestor,omitempty"`
	ApproverName string  `json:"approverName,omitempty"`
	Department   string  `json:"department,omitempty"`
	Site         string  `json:"site,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	Description  string  `json:"description,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	IsUrgent     bool    `json:"isUrgent,omitempty"`
	RequiredDate string  `json:"requiredDate,omitempty"`
}

var relayTemplateTypes = []any{
	"pr_submitted",
	"pr_revision_requested",
	"pr_resubmitted",
	"pr_pending_approval",
	"pr_approved",
	"pr_rejected",
}

// Validate checks the relay request.
func (req *SendEmailRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.To, validation.Required),
		validation.Field(&req.CC,
			validation.Each(validation.Required, is.EmailFormat),
		),
		validation.Field(&req.TemplateType, validation.In(relayTemplateTypes...)),
	)
}

// applyDefaults fills the documented relay defaults.
func (req *SendEmailRequest) applyDefaults() {
	if req.TemplateType == "" {
		req.TemplateType = "pr_submitted"
	}
	if req.PRNumber == "" {
		req.PRNumber = "DRAFT"
	}
	if req.Currency == "" {
		req.Currency = notifications.DefaultCurrency
	}
	if req.Requestor == "" {
		req.Requestor = notifications.RequestorFallbackName
	}
	if req.ApproverName == "" {
		req.ApproverName = "Approver"
	}
}

// SendEmailHandler serves the legacy email relay. Callers supply
// already-resolved recipients and display fields; the handler renders
// the selected template and delivers directly, with no transition
// semantics involved.
func SendEmailHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		req := &SendEmailRequest{}
		if err := decodeRequest(r, req); err != nil {
			srv.Logger.Error("error decoding send-email request", "error", err)
			http.Error(w, fmt.Sprintf("Bad request: %q", err),
				http.StatusBadRequest)
			return
		}

		if err := req.Validate(); err != nil {
			srv.Logger.Warn("invalid send-email request", "error", err)
			http.Error(w, fmt.Sprintf("Bad request: %q", err),
				http.StatusBadRequest)
			return
		}

		req.applyDefaults()

		data := notifications.TemplateData{
			PRNumber:      req.PRNumber,
			RequestorName: req.Requestor,
			ApproverName:  req.ApproverName,
			Department:    req.Department,
			Site:          req.Site,
			Description:   req.Description,
			Notes:         req.Notes,
			IsUrgent:      req.IsUrgent,
		}
		// Unlike the engine path the amount line always renders here, so
		// the defaulted currency is visible even when the caller supplied
		// no amount.
		data.Amount = fmt.Sprintf("%s %.2f", req.Currency, req.Amount)
		if req.RequiredDate != "" {
			data.RequiredBy = req.RequiredDate
		}

		content, err := srv.Templates.Resolve(req.TemplateType, data)
		if err != nil {
			srv.Logger.Error("error rendering relay email",
				"template_type", req.TemplateType, "error", err)
			respondSendEmailError(srv, w)
			return
		}
		if req.Subject != "" {
			content.Subject = req.Subject
		}

		logEntry := createRelayLogEntry(srv, req)

		messageID, err := srv.Sender.Send(r.Context(), "sendEmail", &notifications.SendRequest{
			Type:     req.TemplateType,
			PRID:     req.PRID,
			PRNumber: req.PRNumber,
			Notes:    req.Notes,
			To:       []string{req.To},
			CC:       req.CC,
			Content:  content,
		})
		if err != nil {
			srv.Logger.Error("relay email delivery failed",
				"to", req.To, "template_type", req.TemplateType, "error", err)
			if logEntry != nil {
				if err := logEntry.MarkFailed(srv.DB, err.Error()); err != nil {
					srv.Logger.Warn("failed to mark relay log failed",
						"log_id", logEntry.ID, "error", err)
				}
			}
			respondSendEmailError(srv, w)
			return
		}

		if logEntry != nil {
			if err := logEntry.SetMetadata(map[string]any{
				"messageId":    messageID,
				"templateType": req.TemplateType,
				"subject":      content.Subject,
			}); err == nil {
				if err := logEntry.MarkSent(srv.DB); err != nil {
					srv.Logger.Warn("failed to mark relay log sent",
						"log_id", logEntry.ID, "error", err)
				}
			}
		}

		srv.Logger.Info("relay email sent",
			"to", req.To,
			"cc", req.CC,
			"template_type", req.TemplateType,
			"pr_number", req.PRNumber,
			"message_id", messageID,
		)

		if err := respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
		}); err != nil {
			srv.Logger.Error("error encoding send-email response", "error", err)
		}
	})
}

// respondSendEmailError writes the relay's fixed failure body. Internal
// error detail stays in the logs; callers only learn that the send
// failed.
func respondSendEmailError(srv server.Server, w http.ResponseWriter) {
	if err := respondJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"error":   "Failed to send email",
	}); err != nil {
		srv.Logger.Error("error encoding send-email error response", "error", err)
	}
}

func createRelayLogEntry(srv server.Server, req *SendEmailRequest) *models.NotificationLog {
	entry := &models.NotificationLog{
		Type:   req.TemplateType,
		PRID:   req.PRID,
		Status: models.NotificationStatusPending,
		Source: models.NotificationSourceRelay,
	}
	recipients := append([]string{req.To}, req.CC...)
	if err := entry.SetRecipients(recipients); err != nil {
		srv.Logger.Warn("failed to encode relay recipients", "error", err)
		return nil
	}
	if err := srv.DB.Create(entry).Error; err != nil {
		srv.Logger.Warn("failed to create relay log entry, proceeding unlogged",
			"error", err)
		return nil
	}
	return entry
}
