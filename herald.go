// Package herald provides a small command-execution toolkit for Go applications.
//
// A Command is anything that can be executed and that exposes a Hydrator
// (its attribute mapper) and an EventManager (its event registry). An
// aggregate command delegates part of its work to child commands and wraps
// every delegation in a named CommandEvent.
//
// # Defining Commands
//
// Embed CommandBase to get the default hydrator and event manager:
//
//	type SendEmail struct {
//	    herald.CommandBase
//	    To      string `json:"to"`
//	    Subject string `json:"subject"`
//	}
//
//	func (c *SendEmail) Execute(ctx context.Context) (interface{}, error) {
//	    return mailer.Send(ctx, c.To, c.Subject)
//	}
//
// # Aggregate Commands
//
// Embed AggregateCommandBase and delegate with ExecuteChild:
//
//	type PublishNewsletter struct {
//	    herald.AggregateCommandBase
//	    Recipients []string `json:"recipients"`
//	}
//
//	func (c *PublishNewsletter) Execute(ctx context.Context) (interface{}, error) {
//	    for _, to := range c.Recipients {
//	        if _, err := c.ExecuteChild(ctx, &SendEmail{To: to}, ""); err != nil {
//	            return nil, err
//	        }
//	    }
//	    return len(c.Recipients), nil
//	}
//
// An empty event name is derived from the child's type name, so the call
// above triggers "-send-email" on the aggregate's event manager. Listeners
// attached to that name observe every delegation:
//
//	cmd.EventManager().Attach("-send-email", func(ctx context.Context, e herald.Event) error {
//	    log.Printf("delegating to %T", e.Target())
//	    return nil
//	}, herald.WithPriority(10))
//
// # Hydration
//
// Commands can be converted to and from plain maps through their Hydrator:
//
//	data, err := cmd.Hydrator().Extract(cmd)
//	err = other.Hydrator().Hydrate(data, other)
//
// # Forwarding and Audit
//
// A Forwarder publishes delegations to Kafka, SNS or webhooks (see the
// forward subpackages) through a listener, and AuditMiddleware records every
// child execution in an AuditStore (adapters/memory, adapters/postgres):
//
//	f := herald.NewForwarder([]herald.ForwardRoute{{Destination: "kafka:delegations"}})
//	f.Register(kafka.New(kafka.WithBrokers("localhost:9092")))
//	cmd.EventManager().Attach(herald.WildcardEvent, f.Listener(), herald.WithPriority(0))
//	cmd.Configure(herald.WithDelegationMiddleware(herald.AuditMiddleware(memory.NewAuditStore())))
package herald

// Version returns the library version string.
func Version() string {
	return "0.1.0"
}

// Logger defines the logging interface used across herald.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// noopLogger is a no-op logger implementation.
type noopLogger struct{}

func (l *noopLogger) Debug(msg string, args ...interface{}) {}
func (l *noopLogger) Info(msg string, args ...interface{})  {}
func (l *noopLogger) Warn(msg string, args ...interface{})  {}
func (l *noopLogger) Error(msg string, args ...interface{}) {}
