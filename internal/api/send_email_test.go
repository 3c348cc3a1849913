package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/procurement-forge/reqflow/internal/notifications"
	"github.com/procurement-forge/reqflow/internal/server"
	"github.com/procurement-forge/reqflow/pkg/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.ModelsToAutoMigrate()...))
	return db
}

// recordingSender captures sends; fails when failing is set.
type recordingSender struct {
	failing    bool
	operations []string
	requests   []*notifications.SendRequest
}

func (s *recordingSender) Send(_ context.Context, operation string, req *notifications.SendRequest) (string, error) {
	if s.failing {
		return "", errors.New("smtp unavailable")
	}
	s.operations = append(s.operations, operation)
	s.requests = append(s.requests, req)
	return "msg-123", nil
}

func newTestServer(t *testing.T, sender notifications.Sender) server.Server {
	t.Helper()

	templates, err := notifications.NewTemplateResolver()
	require.NoError(t, err)

	return server.Server{
		DB:        newTestDB(t),
		Logger:    hclog.NewNullLogger(),
		Templates: templates,
		Sender:    sender,
	}
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestSendEmailMinimalRequest(t *testing.T) {
	sender := &recordingSender{}
	srv := newTestServer(t, sender)
	handler := SendEmailHandler(srv)

	w := postJSON(t, handler, "/api/send-email", `{"to":"x@y.com"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	require.Len(t, sender.requests, 1)
	sent := sender.requests[0]
	assert.Equal(t, []string{"x@y.com"}, sent.To)
	assert.Contains(t, sent.Content.Subject, "DRAFT")
	assert.Contains(t, sent.Content.Text, "LSL", "defaulted currency renders without an amount")
	assert.Equal(t, []string{"sendEmail"}, sender.operations)
}

func TestSendEmailDefaults(t *testing.T) {
	sender := &recordingSender{}
	srv := newTestServer(t, sender)
	handler := SendEmailHandler(srv)

	w := postJSON(t, handler, "/api/send-email",
		`{"to":"x@y.com","amount":125.5}`)
	require.Equal(t, http.StatusOK, w.Code)

	sent := sender.requests[0]
	assert.Contains(t, sent.Content.Text, "LSL 125.50", "currency defaults to LSL")
	assert.NotContains(t, sent.Content.Text, "Unknown")
}

func TestSendEmailSubjectOverride(t *testing.T) {
	sender := &recordingSender{}
	srv := newTestServer(t, sender)
	handler := SendEmailHandler(srv)

	w := postJSON(t, handler, "/api/send-email",
		`{"to":"x@y.com","subject":"Manual follow-up","requestor":"Jane Doe"}`)
	require.Equal(t, http.StatusOK, w.Code)

	sent := sender.requests[0]
	assert.Equal(t, "Manual follow-up", sent.Content.Subject)
	assert.Contains(t, sent.Content.Text, "Jane Doe")
}

func TestSendEmailMissingRecipient(t *testing.T) {
	sender := &recordingSender{}
	srv := newTestServer(t, sender)
	handler := SendEmailHandler(srv)

	w := postJSON(t, handler, "/api/send-email", `{"subject":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, sender.requests)
}

func TestSendEmailNonAddressRecipientAccepted(t *testing.T) {
	// Presence of "to" is the only hard requirement; malformed values
	// pass through and fail at delivery time, not at validation.
	sender := &recordingSender{}
	srv := newTestServer(t, sender)
	handler := SendEmailHandler(srv)

	w := postJSON(t, handler, "/api/send-email", `{"to":"not-an-address"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, sender.requests, 1)
	assert.Equal(t, []string{"not-an-address"}, sender.requests[0].To)
}

func TestSendEmailDeliveryFailure(t *testing.T) {
	sender := &recordingSender{failing: true}
	srv := newTestServer(t, sender)
	handler := SendEmailHandler(srv)

	w := postJSON(t, handler, "/api/send-email", `{"to":"x@y.com","prId":"pr-1"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Failed to send email", resp["error"])

	var entry models.NotificationLog
	require.NoError(t, srv.DB.Where("pr_id = ?", "pr-1").First(&entry).Error)
	assert.Equal(t, models.NotificationStatusFailed, entry.Status)
	assert.Equal(t, models.NotificationSourceRelay, entry.Source)
}

func TestSendEmailRecordsRelayLog(t *testing.T) {
	sender := &recordingSender{}
	srv := newTestServer(t, sender)
	handler := SendEmailHandler(srv)

	w := postJSON(t, handler, "/api/send-email",
		`{"to":"x@y.com","cc":["cc@y.com"],"prId":"pr-2","templateType":"pr_pending_approval"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var entry models.NotificationLog
	require.NoError(t, srv.DB.Where("pr_id = ?", "pr-2").First(&entry).Error)
	assert.Equal(t, models.NotificationStatusSent, entry.Status)
	assert.Equal(t, models.NotificationSourceRelay, entry.Source)
	assert.Equal(t, "pr_pending_approval", entry.Type)

	recipients, err := entry.RecipientList()
	require.NoError(t, err)
	assert.Equal(t, []string{"x@y.com", "cc@y.com"}, recipients)
}

func TestSendEmailMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &recordingSender{})
	handler := SendEmailHandler(srv)

	req := httptest.NewRequest(http.MethodGet, "/api/send-email", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
