package api

import (
	"net/http"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurement-forge/reqflow/internal/notifications"
	"github.com/procurement-forge/reqflow/internal/server"
	"github.com/procurement-forge/reqflow/pkg/models"
)

func newDispatchTestServer(t *testing.T, sender notifications.Sender) server.Server {
	t.Helper()

	srv := newTestServer(t, sender)
	log := hclog.NewNullLogger()

	deps := notifications.HandlerDeps{
		DB:               srv.DB,
		Resolver:         notifications.NewResolver(notifications.NewDirectory(srv.DB), log),
		Templates:        srv.Templates,
		ProcurementEmail: "procurement@example.com",
		Logger:           log,
	}
	srv.Dispatcher = notifications.NewDispatcher(
		srv.DB,
		notifications.DefaultRegistry(deps),
		notifications.NewDuplicateSendGuard(srv.DB, log),
		sender,
		log,
		"https://requests.example.com",
	)
	return srv
}

func TestStatusChangeDispatchesNotification(t *testing.T) {
	sender := &recordingSender{}
	srv := newDispatchTestServer(t, sender)
	handler := StatusChangeHandler(srv)

	require.NoError(t, srv.DB.Create(&models.PurchaseRequest{
		ID:        "pr-1",
		PRNumber:  "PR-0001",
		Status:    models.StatusSubmitted,
		Requestor: models.JSON(`"req@example.com"`),
	}).Error)

	w := postJSON(t, handler, "/api/status-change",
		`{"prId":"pr-1","newStatus":"SUBMITTED"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sender.requests, 1)
	assert.Equal(t, []string{"procurement@example.com"}, sender.requests[0].To)
}

func TestStatusChangeUnregisteredTransition(t *testing.T) {
	sender := &recordingSender{}
	srv := newDispatchTestServer(t, sender)
	handler := StatusChangeHandler(srv)

	require.NoError(t, srv.DB.Create(&models.PurchaseRequest{
		ID:     "pr-1",
		Status: models.StatusOrdered,
	}).Error)

	w := postJSON(t, handler, "/api/status-change",
		`{"prId":"pr-1","oldStatus":"APPROVED","newStatus":"ORDERED"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, sender.requests)
}

func TestStatusChangeMissingRequest(t *testing.T) {
	sender := &recordingSender{}
	srv := newDispatchTestServer(t, sender)
	handler := StatusChangeHandler(srv)

	w := postJSON(t, handler, "/api/status-change",
		`{"prId":"pr-ghost","oldStatus":"SUBMITTED","newStatus":"PENDING_APPROVAL"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusChangeValidation(t *testing.T) {
	sender := &recordingSender{}
	srv := newDispatchTestServer(t, sender)
	handler := StatusChangeHandler(srv)

	tests := []struct {
		name string
		body string
	}{
		{"missing prId", `{"newStatus":"SUBMITTED"}`},
		{"missing newStatus", `{"prId":"pr-1"}`},
		{"unknown newStatus", `{"prId":"pr-1","newStatus":"TELEPORTED"}`},
		{"unknown oldStatus", `{"prId":"pr-1","oldStatus":"NOPE","newStatus":"SUBMITTED"}`},
		{"malformed body", `{"prId":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, handler, "/api/status-change", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestStatusChangeSnapshotFallback(t *testing.T) {
	sender := &recordingSender{}
	srv := newDispatchTestServer(t, sender)
	handler := StatusChangeHandler(srv)

	w := postJSON(t, handler, "/api/status-change",
		`{"prId":"pr-new","newStatus":"SUBMITTED","snapshot":{"prNumber":"PR-0099","requestor":"req@example.com"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sender.requests, 1)
	assert.Contains(t, sender.requests[0].Content.Subject, "PR-0099")
}
