package sms

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioComposer struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewTwilioComposer(accountSID, authToken, fromNumber string) *TwilioComposer {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioComposer{
		client:     client,
		fromNumber: fromNumber,
	}
}

func (t *TwilioComposer) IsAvailable(ctx context.Context) bool {
	return t.fromNumber != ""
}

// Compose sends the body to each recipient. One accepted message counts
// as sent; only a total failure reports unavailable.
func (t *TwilioComposer) Compose(ctx context.Context, recipients []string, body string) (Outcome, error) {
	if !t.IsAvailable(ctx) {
		return OutcomeUnavailable, nil
	}

	var lastErr error
	sent := 0
	for _, to := range recipients {
		params := &api.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(t.fromNumber)
		params.SetBody(body)

		if _, err := t.client.Api.CreateMessage(params); err != nil {
			lastErr = fmt.Errorf("failed to send SMS to %s: %w", to, err)
			continue
		}
		sent++
	}

	if sent == 0 {
		return OutcomeUnavailable, lastErr
	}

	return OutcomeSent, lastErr
}
