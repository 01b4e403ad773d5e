package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSLeadPublisher sends lead.created envelopes to a queue for downstream
// CRM sync.
type SQSLeadPublisher struct {
	client   sqsAPI
	queueURL string
}

func NewSQSLeadPublisher(client *sqs.Client, queueURL string) *SQSLeadPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	return newSQSLeadPublisher(client, queueURL)
}

func newSQSLeadPublisher(client sqsAPI, queueURL string) *SQSLeadPublisher {
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSLeadPublisher{client: client, queueURL: queueURL}
}

// PublishLeadCreated implements leads.Publisher.
func (p *SQSLeadPublisher) PublishLeadCreated(ctx context.Context, lead *leads.LeadRecord) error {
	evt := NewLeadCreated(lead)
	env, err := NewEnvelope(lead.CallID, evt, WithTimestamp(lead.CreatedAt))
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(env.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}

var _ leads.Publisher = (*SQSLeadPublisher)(nil)
