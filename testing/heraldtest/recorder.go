// Package heraldtest provides helpers for testing aggregate commands: a
// recorder for the delegations they trigger, assertions over the recorded
// delegations and a Given-When-Then fixture.
package heraldtest

import (
	"context"
	"sync"

	"github.com/AshkanYarmoradi/go-herald"
)

// RecorderPriority runs the recorder ahead of the child listener, so
// delegations whose child fails are recorded too.
const RecorderPriority = 100

// Delegation is one recorded child execution request.
type Delegation struct {
	Name        string
	CommandType string
	Command     herald.Command
}

// Recorder captures every CommandEvent triggered on the event managers it
// is attached to.
type Recorder struct {
	mu          sync.Mutex
	delegations []Delegation
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record attaches the recorder to every event of cmd's event manager.
func Record(cmd herald.EventManagerAware) *Recorder {
	r := NewRecorder()
	r.Attach(cmd.EventManager())
	return r
}

// Attach subscribes the recorder to all events of m.
func (r *Recorder) Attach(m *herald.EventManager) herald.ListenerHandle {
	return m.Attach(herald.WildcardEvent, r.Listener(), herald.WithPriority(RecorderPriority))
}

// Listener returns the recording listener. Non-command events are ignored.
func (r *Recorder) Listener() herald.Listener {
	return func(ctx context.Context, e herald.Event) error {
		ce, ok := e.(*herald.CommandEvent)
		if !ok {
			return nil
		}

		r.mu.Lock()
		r.delegations = append(r.delegations, Delegation{
			Name:        ce.Name(),
			CommandType: herald.GetCommandType(ce.Command()),
			Command:     ce.Command(),
		})
		r.mu.Unlock()
		return nil
	}
}

// Delegations returns a copy of the recorded delegations in trigger order.
func (r *Recorder) Delegations() []Delegation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delegation(nil), r.delegations...)
}

// Names returns the recorded event names in trigger order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.delegations))
	for i, d := range r.delegations {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of recorded delegations.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delegations)
}

// Reset forgets all recorded delegations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delegations = nil
}
