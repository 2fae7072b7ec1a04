package herald

import (
	"context"
	"sort"
	"sync"
)

// WildcardEvent is the event name whose listeners run for every event.
const WildcardEvent = "*"

// Listener handles a triggered event.
// Returning an error stops the trigger and the error is returned to the caller.
type Listener func(ctx context.Context, e Event) error

// ListenerHandle identifies an attached listener so it can be detached.
type ListenerHandle struct {
	name string
	id   uint64
}

// EventName returns the event name the listener was attached to.
func (h ListenerHandle) EventName() string {
	return h.name
}

// IsZero reports whether the handle refers to no listener.
func (h ListenerHandle) IsZero() bool {
	return h.id == 0
}

// AttachOption configures an attached listener.
type AttachOption func(*attachConfig)

type attachConfig struct {
	priority int
}

// WithPriority sets the listener priority.
// Listeners with a higher priority run first; equal priorities run in
// attachment order. The default priority is 1.
func WithPriority(priority int) AttachOption {
	return func(c *attachConfig) {
		c.priority = priority
	}
}

// DefaultListenerPriority is the priority used when none is given.
const DefaultListenerPriority = 1

type registeredListener struct {
	id       uint64
	name     string
	priority int
	once     bool
	listener Listener
}

// EventManager is a synchronous named publish/subscribe registry.
// Triggering an event invokes its listeners on the caller's goroutine.
type EventManager struct {
	mu        sync.RWMutex
	listeners map[string][]*registeredListener
	nextID    uint64
}

// NewEventManager creates an empty EventManager.
func NewEventManager() *EventManager {
	return &EventManager{
		listeners: make(map[string][]*registeredListener),
	}
}

// Attach registers a listener for the named event.
// Attach panics if name is empty or listener is nil.
func (m *EventManager) Attach(name string, listener Listener, opts ...AttachOption) ListenerHandle {
	return m.attach(name, listener, false, opts)
}

// Once registers a listener that is detached before its first invocation.
func (m *EventManager) Once(name string, listener Listener, opts ...AttachOption) ListenerHandle {
	return m.attach(name, listener, true, opts)
}

func (m *EventManager) attach(name string, listener Listener, once bool, opts []AttachOption) ListenerHandle {
	if name == "" {
		panic("herald: empty event name")
	}
	if listener == nil {
		panic("herald: nil listener")
	}

	cfg := attachConfig{priority: DefaultListenerPriority}
	for _, opt := range opts {
		opt(&cfg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.listeners[name] = append(m.listeners[name], &registeredListener{
		id:       m.nextID,
		name:     name,
		priority: cfg.priority,
		once:     once,
		listener: listener,
	})

	return ListenerHandle{name: name, id: m.nextID}
}

// Detach removes a listener. It returns false if the listener was not attached.
func (m *EventManager) Detach(handle ListenerHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detachLocked(handle.name, handle.id)
}

func (m *EventManager) detachLocked(name string, id uint64) bool {
	list := m.listeners[name]
	for i, l := range list {
		if l.id != id {
			continue
		}
		updated := make([]*registeredListener, 0, len(list)-1)
		updated = append(updated, list[:i]...)
		updated = append(updated, list[i+1:]...)
		if len(updated) == 0 {
			delete(m.listeners, name)
		} else {
			m.listeners[name] = updated
		}
		return true
	}
	return false
}

// ClearListeners removes every listener attached to the named event.
func (m *EventManager) ClearListeners(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, name)
}

// ListenerCount returns the number of listeners attached to the named event.
func (m *EventManager) ListenerCount(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners[name])
}

// EventNames returns the names that have at least one listener, sorted.
func (m *EventManager) EventNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.listeners))
	for name := range m.listeners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Trigger invokes every listener attached to the event's name, followed by
// wildcard listeners of equal priority, synchronously and in order.
//
// Trigger stops at the first listener error and returns it unchanged, and
// stops early once a listener calls StopPropagation(true).
func (m *EventManager) Trigger(ctx context.Context, e Event) error {
	if e == nil {
		return ErrNilEvent
	}

	for _, l := range m.snapshot(e.Name()) {
		if l.once && !m.claimOnce(l) {
			// Already consumed by a concurrent trigger.
			continue
		}
		if err := l.listener(ctx, e); err != nil {
			return err
		}
		if e.PropagationIsStopped() {
			return nil
		}
	}
	return nil
}

// snapshot returns the listeners for name ordered by priority.
// Listeners may attach or detach during a trigger without affecting it.
func (m *EventManager) snapshot(name string) []*registeredListener {
	m.mu.RLock()
	defer m.mu.RUnlock()

	named := m.listeners[name]
	var wildcard []*registeredListener
	if name != WildcardEvent {
		wildcard = m.listeners[WildcardEvent]
	}

	list := make([]*registeredListener, 0, len(named)+len(wildcard))
	list = append(list, named...)
	list = append(list, wildcard...)

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].priority > list[j].priority
	})
	return list
}

// claimOnce detaches a one-shot listener and reports whether this caller owns it.
func (m *EventManager) claimOnce(l *registeredListener) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detachLocked(l.name, l.id)
}
