// Package sns forwards delegation notifications to AWS SNS topics.
package sns

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/AshkanYarmoradi/go-herald"
	"github.com/AshkanYarmoradi/go-herald/adapters"
)

var _ herald.Publisher = (*Publisher)(nil)

// SNSClient defines the subset of the SNS API used by the publisher.
type SNSClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher publishes notifications to AWS SNS topics.
// Destination format: "sns:arn:aws:sns:region:account:topic"
//
// For FIFO topics (ARN ending in ".fifo") without a fixed message group,
// the notification key is used as group so one request's delegations
// stay ordered, and the notification ID deduplicates retries.
type Publisher struct {
	client         SNSClient
	messageGroupID string
}

// Option configures an SNS Publisher.
type Option func(*Publisher)

// WithSNSClient sets the SNS client, usually an *sns.Client.
func WithSNSClient(client SNSClient) Option {
	return func(p *Publisher) {
		p.client = client
	}
}

// WithMessageGroupID sets a fixed message group ID for FIFO topics.
func WithMessageGroupID(groupID string) Option {
	return func(p *Publisher) {
		p.messageGroupID = groupID
	}
}

// New creates a new SNS Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Destination returns the destination prefix this publisher handles.
func (p *Publisher) Destination() string {
	return "sns"
}

// Publish sends each notification to the topic in its destination.
// All notifications are attempted even if some fail; errors are joined.
func (p *Publisher) Publish(ctx context.Context, notifications []*herald.Notification) error {
	if p.client == nil {
		return fmt.Errorf("sns: client not configured")
	}

	var errs []error
	for _, n := range notifications {
		topicARN := adapters.DestinationTarget(n.Destination, "sns")
		if topicARN == "" {
			errs = append(errs, fmt.Errorf("sns: invalid destination %q: missing topic ARN", n.Destination))
			continue
		}

		if _, err := p.client.Publish(ctx, p.input(topicARN, n)); err != nil {
			errs = append(errs, fmt.Errorf("sns: failed to publish to %s: %w", topicARN, err))
		}
	}

	return errors.Join(errs...)
}

// input builds the PublishInput for one notification.
func (p *Publisher) input(topicARN string, n *herald.Notification) *sns.PublishInput {
	input := &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(string(n.Payload)),
		Subject:  aws.String(n.EventName),
	}

	if len(n.Headers) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(n.Headers))
		for k, v := range n.Headers {
			if v == "" {
				continue
			}
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}

	switch {
	case p.messageGroupID != "":
		input.MessageGroupId = aws.String(p.messageGroupID)
	case strings.HasSuffix(topicARN, ".fifo"):
		input.MessageGroupId = aws.String(n.Key())
		input.MessageDeduplicationId = aws.String(n.ID)
	}

	return input
}
