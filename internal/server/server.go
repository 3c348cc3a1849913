package server

import (
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/procurement-forge/reqflow/internal/config"
	"github.com/procurement-forge/reqflow/internal/notifications"
)

// Server contains the shared dependencies for the HTTP handlers.
type Server struct {
	// Config is the application configuration.
	Config *config.Config

	// DB is the database for the server.
	DB *gorm.DB

	// Logger is the logger for the server.
	Logger hclog.Logger

	// Dispatcher drives status-change notifications.
	Dispatcher *notifications.Dispatcher

	// Templates renders notification content for the relay endpoint.
	Templates *notifications.TemplateResolver

	// Sender delivers relay email.
	Sender notifications.Sender
}
