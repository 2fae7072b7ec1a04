package commands

import (
	"context"
	"fmt"

	"github.com/AshkanYarmoradi/go-herald"
)

// SendEmail is the child command of the demo newsletter.
type SendEmail struct {
	herald.CommandBase
	To      string `json:"to"`
	Subject string `json:"subject"`
	Fail    bool   `json:"fail,omitempty"`
	Panic   bool   `json:"panic,omitempty"`
}

// Execute pretends to deliver the email.
func (c *SendEmail) Execute(ctx context.Context) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Panic {
		panic(fmt.Sprintf("mail transport crashed for %s", c.To))
	}
	if c.Fail {
		return nil, fmt.Errorf("mailbox %s unavailable", c.To)
	}
	return fmt.Sprintf("delivered %q to %s", c.Subject, c.To), nil
}

// Delivery is the outcome of one SendEmail delegation.
type Delivery struct {
	Recipient string
	Result    interface{}
	Err       error
}

// PublishNewsletter delegates one SendEmail per recipient.
type PublishNewsletter struct {
	herald.AggregateCommandBase
	Subject    string   `json:"subject"`
	Recipients []string `json:"recipients"`
	Failing    []string `json:"failing,omitempty"`
	Panicking  []string `json:"panicking,omitempty"`
}

// Execute sends to every recipient and reports each delivery. A failed
// delivery does not stop the others; a cancelled context does.
func (c *PublishNewsletter) Execute(ctx context.Context) (interface{}, error) {
	deliveries := make([]Delivery, 0, len(c.Recipients))
	for _, to := range c.Recipients {
		child := &SendEmail{
			To:      to,
			Subject: c.Subject,
			Fail:    contains(c.Failing, to),
			Panic:   contains(c.Panicking, to),
		}
		child.CorrelationID = c.CorrelationID
		child.CausationID = c.CommandID
		child.CommandID = herald.NewCommandID()

		result, err := c.ExecuteChild(ctx, child, "")
		deliveries = append(deliveries, Delivery{Recipient: to, Result: result, Err: err})

		if ctxErr := ctx.Err(); ctxErr != nil {
			return deliveries, ctxErr
		}
	}
	return deliveries, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
