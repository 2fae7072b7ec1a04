package herald

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Executor is anything that can be asked to produce a result.
type Executor interface {
	// Execute runs the command and returns its result.
	Execute(ctx context.Context) (interface{}, error)
}

// HydratorAware exposes the attribute mapper of an object.
type HydratorAware interface {
	Hydrator() Hydrator
	SetHydrator(h Hydrator)
}

// EventManagerAware exposes the event registry of an object.
type EventManagerAware interface {
	EventManager() *EventManager
	SetEventManager(m *EventManager)
}

// Command is an executable object that can supply its Hydrator and EventManager.
type Command interface {
	Executor
	HydratorAware
	EventManagerAware
}

// CommandBase provides the default HydratorAware and EventManagerAware
// behavior, plus command metadata. Embed it in command types and use the
// command through a pointer.
type CommandBase struct {
	// CommandID is an optional unique identifier for this command instance.
	CommandID string `json:"commandId,omitempty"`

	// CorrelationID links related commands and events for distributed tracing.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID identifies the command that caused this command.
	CausationID string `json:"causationId,omitempty"`

	// Metadata contains arbitrary key-value pairs for application-specific data.
	Metadata map[string]string `json:"metadata,omitempty"`

	hydrator Hydrator
	events   *EventManager
}

// NewCommandID returns a new random command identifier.
func NewCommandID() string {
	return uuid.NewString()
}

// lazyInit guards the hydrator and event manager of every CommandBase.
// It is package level so commands stay safe to copy before first use.
var lazyInit sync.Mutex

// Hydrator returns the command's hydrator.
// On first access it creates one that excludes the hydrator and event
// manager accessors; later calls return the same instance. Concurrent first
// accesses share one instance.
func (c *CommandBase) Hydrator() Hydrator {
	lazyInit.Lock()
	defer lazyInit.Unlock()
	if c.hydrator == nil {
		c.hydrator = NewCommandHydrator()
	}
	return c.hydrator
}

// SetHydrator replaces the command's hydrator.
func (c *CommandBase) SetHydrator(h Hydrator) {
	lazyInit.Lock()
	defer lazyInit.Unlock()
	c.hydrator = h
}

// EventManager returns the command's event manager, creating it on first
// access. Concurrent first accesses share one instance.
func (c *CommandBase) EventManager() *EventManager {
	lazyInit.Lock()
	defer lazyInit.Unlock()
	if c.events == nil {
		c.events = NewEventManager()
	}
	return c.events
}

// SetEventManager replaces the command's event manager.
func (c *CommandBase) SetEventManager(m *EventManager) {
	lazyInit.Lock()
	defer lazyInit.Unlock()
	c.events = m
}

// SetMetadata sets a metadata key-value pair.
func (c *CommandBase) SetMetadata(key, value string) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata[key] = value
}

// GetMetadata returns the value for a metadata key, or empty string if not found.
func (c *CommandBase) GetMetadata(key string) string {
	return c.Metadata[key]
}

// GetCommandID returns the command ID.
func (c *CommandBase) GetCommandID() string {
	return c.CommandID
}

// GetCorrelationID returns the correlation ID.
func (c *CommandBase) GetCorrelationID() string {
	return c.CorrelationID
}

// GetCausationID returns the causation ID.
func (c *CommandBase) GetCausationID() string {
	return c.CausationID
}
