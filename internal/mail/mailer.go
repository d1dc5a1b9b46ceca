// Package mail delivers digest emails through the Resend API.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/reviewloop/reviewloop/internal/core"
)

// Message is one outbound email.
type Message struct {
	To      string
	CC      []string
	Subject string
	HTML    string
}

// Sender delivers a single email. Failures wrap core.ErrSendFailed so
// callers can aggregate them per recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type resendSender struct {
	client *resend.Client
	from   string
	logger *slog.Logger
}

// NewResendSender creates a Sender backed by Resend.
func NewResendSender(apiKey, from string, logger *slog.Logger) Sender {
	return &resendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}
}

func (s *resendSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("%w: no recipient", core.ErrSendFailed)
	}

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Cc:      msg.CC,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrSendFailed, msg.To, err)
	}

	s.logger.Info("email sent", "to", msg.To, "id", sent.Id)
	return nil
}
