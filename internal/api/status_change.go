package api

import (
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/procurement-forge/reqflow/internal/notifications"
	"github.com/procurement-forge/reqflow/internal/server"
	"github.com/procurement-forge/reqflow/pkg/models"
)

// StatusChangeRequest reports one purchase request status transition.
// An empty oldStatus means the request is newly submitted. The optional
// snapshot lets the submission path proceed when the record is not yet
// readable.
type StatusChangeRequest struct {
	PRID      string `json:"prId"`
	OldStatus string `json:"oldStatus,omitempty"`
	NewStatus string `json:"newStatus"`

	Actor *notifications.Actor `json:"actor,omitempty"`
	Notes string               `json:"notes,omitempty"`

	Snapshot *models.PurchaseRequest `json:"snapshot,omitempty"`
}

// Validate checks the status change request.
func (req *StatusChangeRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.PRID, validation.Required),
		validation.Field(&req.NewStatus, validation.Required,
			validation.By(validStatus)),
		validation.Field(&req.OldStatus, validation.By(validStatus)),
	)
}

func validStatus(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if !models.Status(s).Valid() {
		return fmt.Errorf("unknown status %q", s)
	}
	return nil
}

// StatusChangeHandler receives purchase request status transitions and
// dispatches the corresponding notification.
func StatusChangeHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		req := &StatusChangeRequest{}
		if err := decodeRequest(r, req); err != nil {
			srv.Logger.Error("error decoding status-change request", "error", err)
			http.Error(w, fmt.Sprintf("Bad request: %q", err),
				http.StatusBadRequest)
			return
		}

		if err := req.Validate(); err != nil {
			srv.Logger.Warn("invalid status-change request", "error", err)
			http.Error(w, fmt.Sprintf("Bad request: %q", err),
				http.StatusBadRequest)
			return
		}

		change := &notifications.StatusChange{
			PRID:     req.PRID,
			Old:      models.Status(req.OldStatus),
			New:      models.Status(req.NewStatus),
			Actor:    req.Actor,
			Notes:    req.Notes,
			Snapshot: req.Snapshot,
		}

		err := srv.Dispatcher.HandleStatusChange(r.Context(), change)
		if err != nil {
			var unregistered *notifications.UnregisteredTransitionError
			var notFound *notifications.NotFoundError

			switch {
			case errors.As(err, &unregistered):
				srv.Logger.Warn("unregistered status transition",
					"pr_id", req.PRID,
					"old_status", req.OldStatus,
					"new_status", req.NewStatus,
				)
				http.Error(w, fmt.Sprintf("Unprocessable request: %q", err),
					http.StatusUnprocessableEntity)
			case errors.As(err, &notFound):
				srv.Logger.Warn("purchase request not found",
					"pr_id", req.PRID)
				http.Error(w, fmt.Sprintf("Not found: %q", err),
					http.StatusNotFound)
			default:
				srv.Logger.Error("error dispatching status-change notification",
					"pr_id", req.PRID,
					"old_status", req.OldStatus,
					"new_status", req.NewStatus,
					"error", err,
				)
				http.Error(w, "Error processing status change",
					http.StatusInternalServerError)
			}
			return
		}

		if err := respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
		}); err != nil {
			srv.Logger.Error("error encoding status-change response", "error", err)
		}
	})
}
