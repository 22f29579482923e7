package sms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type AWSSNSComposer struct {
	client *sns.Client
	region string
}

func NewAWSSNSComposer(region string) (*AWSSNSComposer, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSNSComposer{
		client: sns.NewFromConfig(cfg),
		region: region,
	}, nil
}

func (a *AWSSNSComposer) IsAvailable(ctx context.Context) bool {
	return a.client != nil
}

func (a *AWSSNSComposer) Compose(ctx context.Context, recipients []string, body string) (Outcome, error) {
	var lastErr error
	sent := 0
	for _, to := range recipients {
		input := &sns.PublishInput{
			PhoneNumber: aws.String(to),
			Message:     aws.String(body),
			MessageAttributes: map[string]snsTypes.MessageAttributeValue{
				"AWS.SNS.SMS.SMSType": {
					DataType:    aws.String("String"),
					StringValue: aws.String("Transactional"),
				},
			},
		}

		if _, err := a.client.Publish(ctx, input); err != nil {
			lastErr = fmt.Errorf("failed to publish SMS to %s: %w", to, err)
			continue
		}
		sent++
	}

	if sent == 0 {
		return OutcomeUnavailable, lastErr
	}

	return OutcomeSent, lastErr
}
