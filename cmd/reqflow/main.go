package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/procurement-forge/reqflow/internal/api"
	"github.com/procurement-forge/reqflow/internal/config"
	"github.com/procurement-forge/reqflow/internal/notifications"
	"github.com/procurement-forge/reqflow/internal/server"
	"github.com/procurement-forge/reqflow/pkg/database"
	"github.com/procurement-forge/reqflow/pkg/models"
	pubsub "github.com/procurement-forge/reqflow/pkg/notifications"
	"github.com/procurement-forge/reqflow/pkg/notifications/backends"
)

func main() {
	os.Exit(run())
}

func run() int {
	configFile := flag.String("config", "", "Path to HCL configuration file")
	flag.Parse()

	log := hclog.New(&hclog.LoggerOptions{
		Name:       "reqflow",
		Level:      hclog.LevelFromString(os.Getenv("REQFLOW_LOG_LEVEL")),
		JSONFormat: os.Getenv("REQFLOW_LOG_FORMAT") == "json",
	})

	if *configFile == "" {
		log.Error("missing required -config flag")
		return 1
	}

	cfg, err := config.NewConfig(*configFile)
	if err != nil {
		log.Error("error loading configuration", "path", *configFile, "error", err)
		return 1
	}

	db, err := database.Connect(cfg.DatabaseConfig(), log)
	if err != nil {
		log.Error("error connecting to database", "error", err)
		return 1
	}

	if err := db.AutoMigrate(models.ModelsToAutoMigrate()...); err != nil {
		log.Error("error migrating database", "error", err)
		return 1
	}

	templates, err := notifications.NewTemplateResolver()
	if err != nil {
		log.Error("error loading notification templates", "error", err)
		return 1
	}

	sender, cleanup, err := buildSender(cfg, log)
	if err != nil {
		log.Error("error initializing notification sender", "error", err)
		return 1
	}
	defer cleanup()

	resolver := notifications.NewResolver(notifications.NewDirectory(db), log.Named("resolver"))
	registry := notifications.DefaultRegistry(notifications.HandlerDeps{
		DB:               db,
		Resolver:         resolver,
		Templates:        templates,
		ProcurementEmail: cfg.Notifications.ProcurementEmail,
		Logger:           log.Named("handlers"),
	})
	guard := notifications.NewDuplicateSendGuard(db, log.Named("guard"))
	dispatcher := notifications.NewDispatcher(
		db, registry, guard, sender, log.Named("dispatcher"), cfg.BaseURL)

	srv := server.Server{
		Config:     cfg,
		DB:         db,
		Logger:     log,
		Dispatcher: dispatcher,
		Templates:  templates,
		Sender:     sender,
	}

	mux := http.NewServeMux()
	mux.Handle("/api/status-change", api.StatusChangeHandler(srv))
	mux.Handle("/api/send-email", api.SendEmailHandler(srv))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			"addr", cfg.Server.Addr,
			"sender", cfg.Notifications.Sender,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return 1
		}
	case <-ctx.Done():
		log.Info("shutdown signal received, draining connections")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("error shutting down server", "error", err)
			return 1
		}
	}

	log.Info("server stopped")
	return 0
}

// buildSender wires the configured delivery path. The cleanup function
// releases any held connections and is safe to call unconditionally.
func buildSender(cfg *config.Config, log hclog.Logger) (notifications.Sender, func(), error) {
	noop := func() {}

	switch cfg.Notifications.Sender {
	case "kafka":
		publisher, err := pubsub.NewPublisher(pubsub.PublisherConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create publisher: %w", err)
		}
		log.Info("using queue sender",
			"brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		return notifications.NewQueueSender(publisher), publisher.Close, nil

	case "smtp":
		if cfg.Backends == nil || cfg.Backends.Mail == nil {
			return nil, noop, fmt.Errorf("smtp sender requires a backends mail block")
		}
		mail := backends.NewMailBackend(backends.MailBackendConfig{
			SMTPHost:     cfg.Backends.Mail.SMTPHost,
			SMTPPort:     cfg.Backends.Mail.SMTPPort,
			SMTPUsername: cfg.Backends.Mail.SMTPUsername,
			SMTPPassword: cfg.Backends.Mail.SMTPPassword,
			FromAddress:  cfg.Backends.Mail.FromAddress,
			FromName:     cfg.Backends.Mail.FromName,
			UseTLS:       cfg.Backends.Mail.UseTLS,
		})
		log.Info("using direct SMTP sender",
			"host", cfg.Backends.Mail.SMTPHost, "port", cfg.Backends.Mail.SMTPPort)
		return notifications.NewDirectSender(mail), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown sender %q", cfg.Notifications.Sender)
	}
}
