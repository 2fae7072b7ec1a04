package herald

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AshkanYarmoradi/go-herald/adapters"
)

// Notification is a delegation event prepared for an external system.
type Notification = adapters.Notification

// Publisher publishes notifications to an external system.
type Publisher interface {
	// Publish sends one or more notifications to the external system.
	Publish(ctx context.Context, notifications []*Notification) error

	// Destination returns the destination prefix this publisher handles (e.g., "webhook", "kafka", "sns").
	Destination() string
}

// Notification header keys set by the Forwarder.
const (
	HeaderEventName     = "event-name"
	HeaderCommandType   = "command-type"
	HeaderCommandID     = "command-id"
	HeaderCorrelationID = "correlation-id"
	HeaderCausationID   = "causation-id"
)

// ForwardRoute defines which delegations go to which destination.
type ForwardRoute struct {
	// EventNames is the list of event names this route matches. Empty matches all.
	EventNames []string

	// Destination is the target (e.g., "webhook:https://example.com/hooks", "kafka:delegations").
	Destination string

	// Filter optionally filters events. Return true to forward the event.
	Filter func(e *CommandEvent) bool
}

// matches returns true if the route accepts the event.
func (r *ForwardRoute) matches(e *CommandEvent) bool {
	if len(r.EventNames) > 0 {
		found := false
		for _, name := range r.EventNames {
			if name == e.Name() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return r.Filter == nil || r.Filter(e)
}

// Forwarder sends delegation events to external publishers.
//
// Attach its Listener to an aggregate's event manager. With a priority above
// DefaultListenerPriority it forwards before the child runs; below, it only
// sees delegations whose child succeeded.
type Forwarder struct {
	mu         sync.RWMutex
	publishers map[string]Publisher
	routes     []ForwardRoute
	codec      Codec
	logger     Logger
	strict     bool
	idGen      func() string
	clock      func() time.Time
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithForwardCodec sets the codec that encodes the child command into the payload.
func WithForwardCodec(codec Codec) ForwarderOption {
	return func(f *Forwarder) {
		f.codec = codec
	}
}

// WithForwardLogger sets a logger for the forwarder.
func WithForwardLogger(l Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = l
	}
}

// WithStrictForwarding makes the listener return forwarding errors, which
// stops the trigger. By default errors are logged and the delegation continues.
func WithStrictForwarding(strict bool) ForwarderOption {
	return func(f *Forwarder) {
		f.strict = strict
	}
}

// WithForwardIDGenerator sets the generator for notification IDs.
func WithForwardIDGenerator(gen func() string) ForwarderOption {
	return func(f *Forwarder) {
		f.idGen = gen
	}
}

// WithForwardClock sets the clock used for OccurredAt.
func WithForwardClock(clock func() time.Time) ForwarderOption {
	return func(f *Forwarder) {
		f.clock = clock
	}
}

// NewForwarder creates a Forwarder for the given routes.
func NewForwarder(routes []ForwardRoute, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		publishers: make(map[string]Publisher),
		routes:     routes,
		codec:      NewJSONCodec(nil),
		logger:     &noopLogger{},
		idGen:      NewCommandID,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds publishers, replacing any with the same destination prefix.
func (f *Forwarder) Register(publishers ...Publisher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range publishers {
		f.publishers[p.Destination()] = p
	}
}

// Listener returns a listener that forwards every CommandEvent it sees.
// Other event types are ignored.
func (f *Forwarder) Listener() Listener {
	return func(ctx context.Context, e Event) error {
		ce, ok := e.(*CommandEvent)
		if !ok {
			return nil
		}

		err := f.Forward(ctx, ce)
		if err == nil {
			return nil
		}
		if f.strict {
			return err
		}

		f.logger.Error("Failed to forward delegation",
			"event", ce.Name(),
			"error", err,
		)
		return nil
	}
}

// Forward builds one notification per matching route and publishes them,
// grouped by publisher. Every publisher is attempted; errors are joined.
func (f *Forwarder) Forward(ctx context.Context, e *CommandEvent) error {
	notifications, err := f.build(ctx, e)
	if err != nil {
		return err
	}
	if len(notifications) == 0 {
		return nil
	}

	grouped := make(map[string][]*Notification)
	var order []string
	for _, n := range notifications {
		prefix := adapters.DestinationPrefix(n.Destination)
		if _, seen := grouped[prefix]; !seen {
			order = append(order, prefix)
		}
		grouped[prefix] = append(grouped[prefix], n)
	}

	var errs []error
	for _, prefix := range order {
		f.mu.RLock()
		publisher, ok := f.publishers[prefix]
		f.mu.RUnlock()

		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrPublisherNotRegistered, prefix))
			continue
		}

		if err := publisher.Publish(ctx, grouped[prefix]); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrForwardingFailed, prefix, err))
			continue
		}

		f.logger.Debug("Forwarded delegation",
			"event", e.Name(),
			"destination", prefix,
			"count", len(grouped[prefix]),
		)
	}

	return errors.Join(errs...)
}

// build creates the notifications for the routes that accept e.
func (f *Forwarder) build(ctx context.Context, e *CommandEvent) ([]*Notification, error) {
	var (
		notifications []*Notification
		payload       []byte
	)

	cmd := e.Command()
	commandID, correlationID, causationID := commandIdentity(cmd)
	if id := CorrelationIDFromContext(ctx); id != "" {
		correlationID = id
	}
	cmdType := GetCommandType(cmd)
	now := f.clock()

	for i := range f.routes {
		route := &f.routes[i]
		if !route.matches(e) {
			continue
		}

		if payload == nil {
			data, err := f.codec.Encode(cmd)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrForwardingFailed, err)
			}
			payload = data
		}

		headers := map[string]string{
			HeaderEventName:   e.Name(),
			HeaderCommandType: cmdType,
		}
		if commandID != "" {
			headers[HeaderCommandID] = commandID
		}
		if correlationID != "" {
			headers[HeaderCorrelationID] = correlationID
		}
		if causationID != "" {
			headers[HeaderCausationID] = causationID
		}

		notifications = append(notifications, &Notification{
			ID:            f.idGen(),
			EventName:     e.Name(),
			CommandType:   cmdType,
			CommandID:     commandID,
			CorrelationID: correlationID,
			CausationID:   causationID,
			Destination:   route.Destination,
			Payload:       payload,
			Headers:       headers,
			OccurredAt:    now,
		})
	}

	return notifications, nil
}
