package backends

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/procurement-forge/reqflow/pkg/notifications"
)

// MailBackend sends notification emails via SMTP. Messages arrive with
// fully resolved subject and body; this backend only handles transport.
type MailBackend struct {
	smtpHost     string
	smtpPort     string
	smtpUsername string
	smtpPassword string
	fromAddress  string
	fromName     string
	useTLS       bool
}

// MailBackendConfig configures the mail backend.
type MailBackendConfig struct {
	SMTPHost     string // SMTP server hostname
	SMTPPort     string // SMTP server port (typically 587 for TLS, 25 for plaintext)
	SMTPUsername string // SMTP username (optional for auth)
	SMTPPassword string // SMTP password (optional for auth)
	FromAddress  string // From email address
	FromName     string // From display name
	UseTLS       bool   // Use STARTTLS (recommended for port 587)
}

// NewMailBackend creates a new mail backend.
func NewMailBackend(cfg MailBackendConfig) *MailBackend {
	return &MailBackend{
		smtpHost:     cfg.SMTPHost,
		smtpPort:     cfg.SMTPPort,
		smtpUsername: cfg.SMTPUsername,
		smtpPassword: cfg.SMTPPassword,
		fromAddress:  cfg.FromAddress,
		fromName:     cfg.FromName,
		useTLS:       cfg.UseTLS,
	}
}

// Name returns the backend identifier.
func (b *MailBackend) Name() string {
	return "mail"
}

// SupportsBackend checks if this backend should process the message.
func (b *MailBackend) SupportsBackend(backend string) bool {
	return backend == "mail" || backend == "email"
}

// Handle delivers a notification message over SMTP. The envelope
// recipient list is to ∪ cc; cc addresses appear in the Cc header.
func (b *MailBackend) Handle(ctx context.Context, msg *notifications.NotificationMessage) error {
	to := emailAddresses(msg.Recipients)
	cc := emailAddresses(msg.CC)

	if len(to) == 0 && len(cc) == 0 {
		return fmt.Errorf("no email recipients found in notification")
	}

	subject := msg.Subject
	if subject == "" {
		subject = "Purchase request notification"
	}

	body := msg.BodyHTML
	if body == "" {
		body = msg.Body
	}

	if err := b.sendEmail(to, cc, subject, body); err != nil {
		return NewBackendError("mail", "send", true, err)
	}

	return nil
}

func emailAddresses(recipients []notifications.Recipient) []string {
	var addrs []string
	for _, r := range recipients {
		if r.Email != "" {
			addrs = append(addrs, r.Email)
		}
	}
	return addrs
}

// sendEmail sends one email via SMTP to all recipients.
func (b *MailBackend) sendEmail(to, cc []string, subject, htmlBody string) error {
	from := b.fromAddress
	if b.fromName != "" {
		from = fmt.Sprintf("%s <%s>", b.fromName, b.fromAddress)
	}

	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", strings.Join(to, ", ")),
	}
	if len(cc) > 0 {
		headers = append(headers, fmt.Sprintf("Cc: %s", strings.Join(cc, ", ")))
	}
	headers = append(headers,
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	)

	msg := []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody)

	envelope := append(append([]string{}, to...), cc...)
	addr := fmt.Sprintf("%s:%s", b.smtpHost, b.smtpPort)

	var auth smtp.Auth
	if b.smtpUsername != "" && b.smtpPassword != "" {
		auth = smtp.PlainAuth("", b.smtpUsername, b.smtpPassword, b.smtpHost)
	}

	if b.useTLS {
		return b.sendMailTLS(addr, auth, b.fromAddress, envelope, msg)
	}

	return smtp.SendMail(addr, auth, b.fromAddress, envelope, msg)
}

// sendMailTLS sends email with STARTTLS support.
func (b *MailBackend) sendMailTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{
		ServerName:         b.smtpHost,
		InsecureSkipVerify: false,
	}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	for _, rcpt := range to {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}

	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}
