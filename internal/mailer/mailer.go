package mailer

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

//go:generate mockgen -destination=../mocks/mock_mailer.go -package=mocks campus-relay/internal/mailer Mailer

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("mailer: recipient address is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("mailer: subject is required")
	}
	return nil
}

// Mailer sends one email. Any error is treated as retryable by callers.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes emails to the log instead of sending them. Used in
// development and when MAIL_PROVIDER=log.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.log.Info("email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
