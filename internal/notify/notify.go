// Package notify sends outbound email: the daily portfolio digest and any
// other plain-text notification.
package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/rs/zerolog"

	"github.com/seenimoa/ibexai/internal/config"
)

// ErrNoRecipients is returned when a message has no destination.
var ErrNoRecipients = errors.New("notify: no recipients")

// Message is one outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ════════════════════════════════════════════════════════════════════
// Mailgun
// ════════════════════════════════════════════════════════════════════

// MailgunSender sends through the Mailgun HTTP API.
type MailgunSender struct {
	mg      mailgun.Mailgun
	timeout time.Duration
}

// NewMailgunSender creates a sender for domain. apiBase overrides the API
// endpoint when non-empty (EU region, tests).
func NewMailgunSender(domain, apiKey, apiBase string) *MailgunSender {
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &MailgunSender{mg: mg, timeout: 20 * time.Second}
}

// Send delivers msg.
func (s *MailgunSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	m := s.mg.NewMessage(msg.From, msg.Subject, msg.Text, msg.To...)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if resp, _, err := s.mg.Send(ctx, m); err != nil {
		return fmt.Errorf("mailgun send failed: %w (response: %s)", err, resp)
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════
// SMTP
// ════════════════════════════════════════════════════════════════════

// SMTPSender sends through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(host string, port int, user, password string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, User: user, Password: password, sendMail: smtp.SendMail}
}

// Send delivers msg.
func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Password, s.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	if err := s.sendMail(addr, auth, envelopeAddress(msg.From), msg.To, buildMIME(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", strings.Join(msg.To, ","), err)
	}
	return nil
}

// buildMIME renders a UTF-8 plain-text message with a fixed header order.
func buildMIME(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Text, "\n", "\r\n"))
	return []byte(b.String())
}

// envelopeAddress extracts the bare address from "Name <addr>".
func envelopeAddress(from string) string {
	if i := strings.LastIndexByte(from, '<'); i >= 0 {
		if j := strings.IndexByte(from[i:], '>'); j > 0 {
			return from[i+1 : i+j]
		}
	}
	return strings.TrimSpace(from)
}

// ════════════════════════════════════════════════════════════════════
// Log
// ════════════════════════════════════════════════════════════════════

// LogSender only logs messages. It is the default when no transport is
// configured.
type LogSender struct {
	Logger zerolog.Logger
}

// Send logs msg.
func (s LogSender) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	s.Logger.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Int("bytes", len(msg.Text)).
		Msg("email not sent (log transport)")
	s.Logger.Debug().Msg(msg.Text)
	return nil
}

// NewSenderFromConfig picks the configured transport. An incomplete mailgun
// or smtp configuration falls back to the log transport.
func NewSenderFromConfig(cfg config.EmailConfig, logger zerolog.Logger) Sender {
	switch strings.ToLower(cfg.Transport) {
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunKey == "" {
			logger.Warn().Msg("mailgun configuration incomplete, falling back to log transport")
			break
		}
		return NewMailgunSender(cfg.MailgunDomain, cfg.MailgunKey, "")
	case "smtp":
		if cfg.SMTPHost == "" {
			logger.Warn().Msg("smtp host not set, falling back to log transport")
			break
		}
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	}
	return LogSender{Logger: logger}
}
