package notify

import (
	"context"
	"errors"
	"log/slog"
)

var ErrNoRecipient = errors.New("no recipient")

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	SendEmail(ctx context.Context, email Email) error
}

type Texter interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSender writes outgoing messages to the log instead of delivering them.
// It stands in for unconfigured providers.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendEmail(ctx context.Context, email Email) error {
	if email.To == "" {
		return ErrNoRecipient
	}
	s.log.InfoContext(ctx, "email not delivered, no smtp configured",
		"to", email.To, "subject", email.Subject, "text", email.Text)
	return nil
}

func (s *LogSender) SendSMS(ctx context.Context, to, body string) error {
	if to == "" {
		return ErrNoRecipient
	}
	s.log.InfoContext(ctx, "sms not delivered, no twilio configured", "to", to, "body", body)
	return nil
}
