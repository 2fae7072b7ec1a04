package herald

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these errors.
var (
	// ErrNilCommand indicates a nil command was passed.
	ErrNilCommand = errors.New("herald: nil command")

	// ErrNilEvent indicates a nil event was triggered.
	ErrNilEvent = errors.New("herald: nil event")

	// ErrWildcardDelegation indicates a delegation was named after the wildcard event.
	ErrWildcardDelegation = errors.New("herald: cannot delegate under the wildcard event name")

	// ErrNilTarget indicates an object passed to a hydrator was nil.
	ErrNilTarget = errors.New("herald: nil target")

	// ErrCommandPanicked indicates a command panicked during execution.
	ErrCommandPanicked = errors.New("herald: command panicked")

	// ErrHydrationFailed indicates extraction or hydration of attributes failed.
	ErrHydrationFailed = errors.New("herald: hydration failed")

	// ErrSerializationFailed indicates command encoding/decoding failed.
	ErrSerializationFailed = errors.New("herald: serialization failed")

	// ErrCommandTypeNotRegistered indicates an unknown command type was encountered.
	ErrCommandTypeNotRegistered = errors.New("herald: command type not registered")

	// ErrPublisherNotRegistered indicates a forward route names a destination no publisher handles.
	ErrPublisherNotRegistered = errors.New("herald: publisher not registered")

	// ErrForwardingFailed indicates a delegation could not be forwarded.
	ErrForwardingFailed = errors.New("herald: forwarding failed")
)

// PanicError provides detailed information about a command panic.
type PanicError struct {
	CommandType string
	EventName   string
	Value       interface{}
	Stack       string
}

// Error returns the error message.
func (e *PanicError) Error() string {
	if e.EventName != "" {
		return fmt.Sprintf("herald: command %q panicked during %q: %v", e.CommandType, e.EventName, e.Value)
	}
	return fmt.Sprintf("herald: command %q panicked: %v", e.CommandType, e.Value)
}

// Is reports whether this error matches the target error.
func (e *PanicError) Is(target error) bool {
	return target == ErrCommandPanicked
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *PanicError) Unwrap() error {
	return ErrCommandPanicked
}

// NewPanicError creates a new PanicError.
func NewPanicError(cmdType, eventName string, value interface{}, stack string) *PanicError {
	return &PanicError{
		CommandType: cmdType,
		EventName:   eventName,
		Value:       value,
		Stack:       stack,
	}
}

// HydrationError provides detailed information about an attribute mapping failure.
type HydrationError struct {
	Type      string
	Operation string // "extract" or "hydrate"
	Cause     error
}

// Error returns the error message.
func (e *HydrationError) Error() string {
	return fmt.Sprintf("herald: failed to %s %q: %v", e.Operation, e.Type, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *HydrationError) Is(target error) bool {
	return target == ErrHydrationFailed
}

// Unwrap returns the underlying cause for errors.Unwrap().
func (e *HydrationError) Unwrap() error {
	return e.Cause
}

// NewHydrationError creates a new HydrationError.
func NewHydrationError(typeName, operation string, cause error) *HydrationError {
	return &HydrationError{
		Type:      typeName,
		Operation: operation,
		Cause:     cause,
	}
}

// SerializationError provides detailed information about a codec failure.
type SerializationError struct {
	CommandType string
	Operation   string // "encode" or "decode"
	Cause       error
}

// Error returns the error message.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("herald: failed to %s command type %q: %v",
		e.Operation, e.CommandType, e.Cause)
}

// Is reports whether this error matches the target error.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerializationFailed
}

// Unwrap returns the underlying cause for errors.Unwrap().
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// NewSerializationError creates a new SerializationError.
func NewSerializationError(cmdType, operation string, cause error) *SerializationError {
	return &SerializationError{
		CommandType: cmdType,
		Operation:   operation,
		Cause:       cause,
	}
}

// CommandTypeNotRegisteredError provides detailed information about an unregistered command type.
type CommandTypeNotRegisteredError struct {
	CommandType string
}

// Error returns the error message.
func (e *CommandTypeNotRegisteredError) Error() string {
	return fmt.Sprintf("herald: command type %q not registered", e.CommandType)
}

// Is reports whether this error matches the target error.
func (e *CommandTypeNotRegisteredError) Is(target error) bool {
	return target == ErrCommandTypeNotRegistered
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *CommandTypeNotRegisteredError) Unwrap() error {
	return ErrCommandTypeNotRegistered
}

// NewCommandTypeNotRegisteredError creates a new CommandTypeNotRegisteredError.
func NewCommandTypeNotRegisteredError(cmdType string) *CommandTypeNotRegisteredError {
	return &CommandTypeNotRegisteredError{CommandType: cmdType}
}
