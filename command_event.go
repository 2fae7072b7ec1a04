package herald

// Event is a named occurrence delivered to the listeners of an EventManager.
// Events are passed by reference so listeners can mutate them.
type Event interface {
	// Name returns the event identifier listeners are attached to.
	Name() string

	// Target returns the object the event concerns.
	Target() interface{}

	// Params returns the event parameters.
	Params() map[string]interface{}

	// Param returns a single parameter, or nil if it is not set.
	Param(key string) interface{}

	// SetParam sets a single parameter.
	SetParam(key string, value interface{})

	// StopPropagation prevents (or re-allows) further listeners from running.
	StopPropagation(stop bool)

	// PropagationIsStopped reports whether propagation was stopped.
	PropagationIsStopped() bool
}

// EventBase provides a default implementation of Event.
// Embed it in custom event types.
type EventBase struct {
	name    string
	target  interface{}
	params  map[string]interface{}
	stopped bool
}

// NewEventBase creates a new EventBase.
func NewEventBase(name string, target interface{}) EventBase {
	return EventBase{
		name:   name,
		target: target,
	}
}

// Name returns the event name.
func (e *EventBase) Name() string {
	return e.name
}

// Target returns the event target.
func (e *EventBase) Target() interface{} {
	return e.target
}

// Params returns a copy of the event parameters.
func (e *EventBase) Params() map[string]interface{} {
	params := make(map[string]interface{}, len(e.params))
	for k, v := range e.params {
		params[k] = v
	}
	return params
}

// Param returns a single parameter, or nil if it is not set.
func (e *EventBase) Param(key string) interface{} {
	return e.params[key]
}

// SetParam sets a single parameter.
func (e *EventBase) SetParam(key string, value interface{}) {
	if e.params == nil {
		e.params = make(map[string]interface{})
	}
	e.params[key] = value
}

// StopPropagation prevents further listeners from running when stop is true.
func (e *EventBase) StopPropagation(stop bool) {
	e.stopped = stop
}

// PropagationIsStopped reports whether propagation was stopped.
func (e *EventBase) PropagationIsStopped() bool {
	return e.stopped
}

// CommandEvent is the event triggered around the execution of a child command.
// Its target is the command being executed; its result is set by the listener
// that runs the command.
type CommandEvent struct {
	EventBase
	command   Command
	result    interface{}
	hasResult bool
}

// NewCommandEvent creates a CommandEvent for the given command.
func NewCommandEvent(name string, cmd Command) *CommandEvent {
	return &CommandEvent{
		EventBase: NewEventBase(name, cmd),
		command:   cmd,
	}
}

// Command returns the command the event concerns.
func (e *CommandEvent) Command() Command {
	return e.command
}

// Result returns the execution result.
// ok is false until a listener has set a result.
func (e *CommandEvent) Result() (result interface{}, ok bool) {
	return e.result, e.hasResult
}

// SetResult stores the execution result.
func (e *CommandEvent) SetResult(result interface{}) {
	e.result = result
	e.hasResult = true
}

// HasResult reports whether a listener has set a result.
func (e *CommandEvent) HasResult() bool {
	return e.hasResult
}
