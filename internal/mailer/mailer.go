// Package mailer sends transactional and broadcast email through Resend.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrDisabled is returned when no usable API key is configured
var ErrDisabled = errors.New("mailer disabled: no API key configured")

// Email is one outbound message
type Email struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
}

// Mailer sends email
type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, e *Email) (string, error)
	SendBatch(ctx context.Context, emails []*Email) ([]string, error)
}

// resendMailer is the Resend-backed Mailer
type resendMailer struct {
	client  *resend.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewResend creates a Resend mailer throttled to sendsPerSecond API calls
func NewResend(apiKey string, sendsPerSecond float64, log zerolog.Logger) Mailer {
	if sendsPerSecond <= 0 {
		sendsPerSecond = 2
	}
	return &resendMailer{
		client:  resend.NewClient(apiKey),
		limiter: rate.NewLimiter(rate.Limit(sendsPerSecond), 1),
		log:     log.With().Str("component", "mailer").Logger(),
	}
}

func (m *resendMailer) Enabled() bool { return true }

// Send delivers one message and returns the provider message ID
func (m *resendMailer) Send(ctx context.Context, e *Email) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", err
	}

	sent, err := m.client.Emails.SendWithContext(ctx, toRequest(e))
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}

	m.log.Debug().Strs("to", e.To).Str("email_id", sent.Id).Msg("Email sent")
	return sent.Id, nil
}

// SendBatch delivers up to 100 messages in one API call
func (m *resendMailer) SendBatch(ctx context.Context, emails []*Email) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqs := make([]*resend.SendEmailRequest, len(emails))
	for i, e := range emails {
		reqs[i] = toRequest(e)
	}

	resp, err := m.client.Batch.SendWithContext(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("resend batch failed: %w", err)
	}

	ids := make([]string, len(resp.Data))
	for i, d := range resp.Data {
		ids[i] = d.Id
	}
	m.log.Debug().Int("count", len(emails)).Msg("Email batch sent")
	return ids, nil
}

func toRequest(e *Email) *resend.SendEmailRequest {
	return &resend.SendEmailRequest{
		From:    e.From,
		To:      e.To,
		ReplyTo: e.ReplyTo,
		Subject: e.Subject,
		Html:    e.HTML,
	}
}

// disabledMailer is used when no API key is configured
type disabledMailer struct{}

// NewDisabled returns a Mailer that refuses to send
func NewDisabled() Mailer { return disabledMailer{} }

func (disabledMailer) Enabled() bool { return false }

func (disabledMailer) Send(context.Context, *Email) (string, error) { return "", ErrDisabled }

func (disabledMailer) SendBatch(context.Context, []*Email) ([]string, error) { return nil, ErrDisabled }
