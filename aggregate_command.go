package herald

import (
	"context"
	"fmt"
	"sync/atomic"
)

// SubscriptionMode controls how ExecuteChild subscribes the listener that
// runs the child command.
type SubscriptionMode int

const (
	// SubscribeOnce registers a listener that runs only the delegation it
	// was registered for, at most once, and is detached when the delegation
	// returns. The event manager does not grow across delegations.
	SubscribeOnce SubscriptionMode = iota

	// SubscribePersistent registers a listener that stays attached.
	// Listeners accumulate: delegating twice under the same event name runs
	// the second child once per accumulated listener.
	SubscribePersistent
)

// String returns the mode name.
func (m SubscriptionMode) String() string {
	switch m {
	case SubscribeOnce:
		return "once"
	case SubscribePersistent:
		return "persistent"
	default:
		return fmt.Sprintf("SubscriptionMode(%d)", int(m))
	}
}

// ParseSubscriptionMode parses the name returned by SubscriptionMode.String.
func ParseSubscriptionMode(s string) (SubscriptionMode, error) {
	switch s {
	case "", "once":
		return SubscribeOnce, nil
	case "persistent":
		return SubscribePersistent, nil
	default:
		return SubscribeOnce, fmt.Errorf("herald: unknown subscription mode %q", s)
	}
}

// AggregateOption configures an AggregateCommandBase.
type AggregateOption func(*AggregateCommandBase)

// WithEventNameSeparator sets the separator used to derive event names.
func WithEventNameSeparator(separator string) AggregateOption {
	return func(a *AggregateCommandBase) {
		a.separator = separator
	}
}

// WithChildSubscription sets the subscription mode for child listeners.
func WithChildSubscription(mode SubscriptionMode) AggregateOption {
	return func(a *AggregateCommandBase) {
		a.mode = mode
	}
}

// WithDelegationMiddleware adds middleware around child execution.
// Middleware is executed in the order it was added.
func WithDelegationMiddleware(middleware ...Middleware) AggregateOption {
	return func(a *AggregateCommandBase) {
		a.middleware = append(a.middleware, middleware...)
	}
}

// WithAggregateLogger sets the logger.
func WithAggregateLogger(logger Logger) AggregateOption {
	return func(a *AggregateCommandBase) {
		a.logger = logger
	}
}

// AggregateCommandBase is embedded by commands that delegate part of their
// work to child commands. Each delegation is wrapped in a CommandEvent
// triggered on the aggregate's EventManager.
//
// The zero value is ready to use.
type AggregateCommandBase struct {
	CommandBase

	separator  string
	mode       SubscriptionMode
	middleware []Middleware
	logger     Logger
}

// NewAggregateCommandBase creates an AggregateCommandBase with the given options.
func NewAggregateCommandBase(opts ...AggregateOption) AggregateCommandBase {
	var a AggregateCommandBase
	a.Configure(opts...)
	return a
}

// Configure applies options.
func (a *AggregateCommandBase) Configure(opts ...AggregateOption) {
	for _, opt := range opts {
		opt(a)
	}
}

// SubscriptionMode returns the configured subscription mode.
func (a *AggregateCommandBase) SubscriptionMode() SubscriptionMode {
	return a.mode
}

// ExecuteChild executes child inside a CommandEvent named name and returns
// the child's result. An empty name is derived from the child's type with
// GuessEventName. The wildcard name is rejected with ErrWildcardDelegation.
//
// Every listener attached to the name runs, in priority order, on the
// calling goroutine. Errors from the child or any listener are returned
// unchanged and no result is produced. If a listener stops propagation
// before the child runs, the result is nil.
func (a *AggregateCommandBase) ExecuteChild(ctx context.Context, child Command, name string) (interface{}, error) {
	if isNil(child) {
		return nil, ErrNilCommand
	}

	if name == "" {
		name = GuessEventName(child, a.separator)
	}
	if name == WildcardEvent {
		return nil, ErrWildcardDelegation
	}

	event := NewCommandEvent(name, child)
	events := a.EventManager()
	logger := a.getLogger()

	switch a.mode {
	case SubscribePersistent:
		events.Attach(name, a.runChild)
	default:
		handle := events.Attach(name, a.childListener(event))
		defer events.Detach(handle)
	}

	logger.Debug("Delegating to child command",
		"event", name,
		"type", GetCommandType(child),
	)

	if err := events.Trigger(ctx, event); err != nil {
		logger.Debug("Child command failed",
			"event", name,
			"type", GetCommandType(child),
			"error", err,
		)
		return nil, err
	}

	result, _ := event.Result()
	return result, nil
}

// childListener returns a listener that runs the child of event alone and at
// most once. Concurrent delegations under the same name each see the other's
// listener and must leave it for its own event.
func (a *AggregateCommandBase) childListener(event *CommandEvent) Listener {
	var ran atomic.Bool
	return func(ctx context.Context, e Event) error {
		if e != Event(event) || !ran.CompareAndSwap(false, true) {
			return nil
		}
		return a.runChild(ctx, e)
	}
}

// runChild is the listener that executes the event's command and stores
// the result on the event.
func (a *AggregateCommandBase) runChild(ctx context.Context, e Event) error {
	ce, ok := e.(*CommandEvent)
	if !ok {
		return fmt.Errorf("herald: expected *CommandEvent for %q, got %T", e.Name(), e)
	}

	execute := ChainMiddleware(a.middleware...)(executeCommand)
	result, err := execute(WithCommandEvent(ctx, ce), ce.Command())
	if err != nil {
		return err
	}

	ce.SetResult(result)
	return nil
}

func (a *AggregateCommandBase) getLogger() Logger {
	if a.logger == nil {
		return &noopLogger{}
	}
	return a.logger
}

func executeCommand(ctx context.Context, cmd Command) (interface{}, error) {
	return cmd.Execute(ctx)
}
