// Package notifier delivers extracted deals by email.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"

	"github.com/pauljones0/fly4deals/internal/config"
	"github.com/pauljones0/fly4deals/internal/models"
)

var ErrMissingCredentials = errors.New("SENDER_EMAIL, SENDER_PASSWORD and RECEIVER_EMAIL must be set")

// sender is the part of *mail.Client used here.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type EmailClient struct {
	from        string
	to          string
	sender      sender
	rateLimiter *rate.Limiter
}

// New builds an SMTP client with implicit TLS and PLAIN auth.
func New(cfg *config.Config) (*EmailClient, error) {
	if cfg.SenderEmail == "" || cfg.SenderPassword == "" || cfg.ReceiverEmail == "" {
		return nil, ErrMissingCredentials
	}

	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SenderEmail),
		mail.WithPassword(cfg.SenderPassword),
		mail.WithTimeout(cfg.HTTPTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}

	return &EmailClient{
		from:        cfg.SenderEmail,
		to:          cfg.ReceiverEmail,
		sender:      client,
		rateLimiter: newLimiter(cfg.MailInterval),
	}, nil
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Notify sends one message for the deal. It does not retry.
func (c *EmailClient) Notify(ctx context.Context, deal models.Deal) error {
	msg, err := c.message(deal)
	if err != nil {
		return err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for mail slot: %w", err)
	}
	if err := c.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", c.to, err)
	}
	slog.Info("Deal notification sent", "to", c.to, "from", deal.From, "destination", deal.To)
	return nil
}

func (c *EmailClient) message(deal models.Deal) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(c.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(c.to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(subject(deal))
	m.SetBodyString(mail.TypeTextPlain, FormatDeal(deal))
	return m, nil
}
