package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/procurement-forge/reqflow/pkg/database"
	"github.com/procurement-forge/reqflow/pkg/notifications/backends"
)

// Config is the application configuration, decoded from HCL.
type Config struct {
	// BaseURL is the public URL of the web application, used for links
	// in notification email.
	BaseURL string `hcl:"base_url,optional"`

	Server        *Server        `hcl:"server,block"`
	Postgres      *Postgres      `hcl:"postgres,block"`
	Notifications *Notifications `hcl:"notifications,block"`
	Kafka         *Kafka         `hcl:"kafka,block"`

	// Backends configures the delivery backends used by the notifier
	// worker and the direct sender.
	Backends *backends.Config `hcl:"backends,block"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr string `hcl:"addr,optional"`
}

// Postgres configures the database connection.
type Postgres struct {
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	DBName   string `hcl:"dbname,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	SSLMode  string `hcl:"sslmode,optional"`
}

// Notifications configures the dispatch engine.
type Notifications struct {
	// ProcurementEmail is the shared procurement team mailbox copied on
	// every purchase request notification.
	ProcurementEmail string `hcl:"procurement_email"`

	// Sender selects the delivery path: "kafka" publishes to the queue
	// for the notifier worker, "smtp" delivers in-process.
	Sender string `hcl:"sender,optional"`
}

// Kafka configures the notification queue.
type Kafka struct {
	Brokers       []string `hcl:"brokers,optional"`
	Topic         string   `hcl:"topic,optional"`
	ConsumerGroup string   `hcl:"consumer_group,optional"`
}

// NewConfig parses the HCL configuration file at path.
func NewConfig(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing configuration file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server == nil {
		cfg.Server = &Server{}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8000"
	}

	if cfg.Notifications == nil {
		cfg.Notifications = &Notifications{}
	}
	if cfg.Notifications.Sender == "" {
		cfg.Notifications.Sender = "kafka"
	}

	if cfg.Kafka == nil {
		cfg.Kafka = &Kafka{}
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "reqflow.notifications"
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "reqflow-notifiers"
	}
}

// Validate checks the configuration for errors that would only surface
// at dispatch time.
func (c *Config) Validate() error {
	if c.Notifications.ProcurementEmail == "" {
		return fmt.Errorf("notifications block: procurement_email is required")
	}
	switch c.Notifications.Sender {
	case "kafka", "smtp":
	default:
		return fmt.Errorf("notifications block: sender must be %q or %q, got %q",
			"kafka", "smtp", c.Notifications.Sender)
	}
	return nil
}

// DatabaseConfig converts the postgres block into connection settings.
func (c *Config) DatabaseConfig() database.Config {
	pg := c.Postgres
	if pg == nil {
		pg = &Postgres{}
	}
	return database.Config{
		Host:     pg.Host,
		Port:     pg.Port,
		DBName:   pg.DBName,
		User:     pg.User,
		Password: pg.Password,
		SSLMode:  pg.SSLMode,
	}
}
