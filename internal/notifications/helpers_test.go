package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

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

func newTestLogger() hclog.Logger {
	return hclog.NewNullLogger()
}

func newTestDeps(t *testing.T, db *gorm.DB) HandlerDeps {
	t.Helper()

	templates, err := NewTemplateResolver()
	require.NoError(t, err)

	log := newTestLogger()
	return HandlerDeps{
		DB:               db,
		Resolver:         NewResolver(NewDirectory(db), log),
		Templates:        templates,
		ProcurementEmail: "procurement@example.com",
		Logger:           log,
	}
}

// fakeSender records sends and fails the first failUntil attempts.
type fakeSender struct {
	mu        sync.Mutex
	calls     []fakeSendCall
	failUntil int
}

type fakeSendCall struct {
	operation string
	req       *SendRequest
}

func (s *fakeSender) Send(_ context.Context, operation string, req *SendRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, fakeSendCall{operation: operation, req: req})
	if len(s.calls) <= s.failUntil {
		return "", errors.New("smtp unavailable")
	}
	return "msg-123", nil
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSender) lastCall() fakeSendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

func newTestDispatcher(t *testing.T, db *gorm.DB, sender Sender) *Dispatcher {
	t.Helper()

	deps := newTestDeps(t, db)
	d := NewDispatcher(
		db,
		DefaultRegistry(deps),
		NewDuplicateSendGuard(db, newTestLogger()),
		sender,
		newTestLogger(),
		"https://requests.example.com",
	)
	d.retryInterval = 0
	return d
}

func createPR(t *testing.T, db *gorm.DB, pr *models.PurchaseRequest) *models.PurchaseRequest {
	t.Helper()
	require.NoError(t, db.Create(pr).Error)
	return pr
}
