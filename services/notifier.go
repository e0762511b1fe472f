package services

import (
	"context"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender delivers a short text message and returns the provider message id.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
	// Timeout bounds each API request, including ones abandoned after ctx ends.
	Timeout time.Duration
}

type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender returns nil when credentials are missing so callers can
// treat SMS as an optional channel.
func NewTwilioSender(cfg TwilioConfig) *TwilioSender {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.PhoneNumber == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	client.SetTimeout(cfg.Timeout)
	return &TwilioSender{client: client, from: cfg.PhoneNumber}
}

func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	// The Twilio client has no context support; the request is abandoned
	// rather than cancelled when ctx ends and runs out on the client timeout.
	go func() {
		resp, err := s.client.Api.CreateMessage(params)
		if err != nil {
			done <- result{err: err}
			return
		}
		sid := ""
		if resp.Sid != nil {
			sid = *resp.Sid
		}
		done <- result{sid: sid}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("%w: twilio: %v", ErrSend, r.err)
		}
		return r.sid, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: twilio: %v", ErrSend, ctx.Err())
	}
}
