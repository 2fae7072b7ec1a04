// Package adapters provides interfaces and shared types for delegation
// audit stores and forwarding publishers.
package adapters

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Sentinel errors for adapter implementations.
// Adapters should return these (or errors that match via errors.Is)
// to enable consistent error handling across different backends.
var (
	// ErrNilRecord is returned when a nil audit record is passed.
	ErrNilRecord = errors.New("herald: nil audit record")

	// ErrEmptyEventName is returned when an audit record has no event name.
	ErrEmptyEventName = errors.New("herald: audit record requires an event name")

	// ErrAdapterClosed is returned when operations are attempted on a closed adapter.
	ErrAdapterClosed = errors.New("herald: adapter is closed")
)

// AuditRecord describes one child command execution.
type AuditRecord struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// EventName is the event the delegation was wrapped in.
	EventName string `json:"eventName"`

	// CommandType is the type name of the child command.
	CommandType string `json:"commandType"`

	// CommandID is the child command's ID, if it has one.
	CommandID string `json:"commandId,omitempty"`

	// CorrelationID links the delegation to the originating request.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID is the ID of the command that caused this delegation.
	CausationID string `json:"causationId,omitempty"`

	// Success reports whether the child returned without error.
	Success bool `json:"success"`

	// Error is the child's error message when Success is false.
	Error string `json:"error,omitempty"`

	// Duration is how long the child took to execute.
	Duration time.Duration `json:"duration"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"startedAt"`
}

// Copy returns a copy of the record.
func (r *AuditRecord) Copy() *AuditRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Validate checks the fields every store requires.
func (r *AuditRecord) Validate() error {
	if r == nil {
		return ErrNilRecord
	}
	if r.EventName == "" {
		return ErrEmptyEventName
	}
	return nil
}

// AuditFilter selects audit records. Zero fields match everything.
type AuditFilter struct {
	// CorrelationID restricts results to one correlation.
	CorrelationID string

	// EventName restricts results to one event.
	EventName string

	// FailedOnly returns only unsuccessful executions.
	FailedOnly bool

	// Limit caps the number of results. Zero or negative means DefaultAuditLimit.
	Limit int
}

// Matches reports whether the record satisfies the filter, ignoring Limit.
func (f AuditFilter) Matches(r *AuditRecord) bool {
	if f.CorrelationID != "" && r.CorrelationID != f.CorrelationID {
		return false
	}
	if f.EventName != "" && r.EventName != f.EventName {
		return false
	}
	if f.FailedOnly && r.Success {
		return false
	}
	return true
}

// DefaultAuditLimit is the number of records a query returns when no limit is set.
const DefaultAuditLimit = 100

// DefaultLimit returns a default limit value if the provided limit is invalid.
func DefaultLimit(limit, defaultValue int) int {
	if limit <= 0 {
		return defaultValue
	}
	return limit
}

// AuditStore persists audit records.
type AuditStore interface {
	// Record stores one audit record.
	Record(ctx context.Context, record *AuditRecord) error

	// Query returns matching records ordered by StartedAt, oldest first.
	Query(ctx context.Context, filter AuditFilter) ([]*AuditRecord, error)

	// Count returns the number of matching records, ignoring Limit.
	Count(ctx context.Context, filter AuditFilter) (int64, error)
}

// HealthChecker is implemented by adapters that can report connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Notification is a delegation event prepared for an external system.
type Notification struct {
	// ID uniquely identifies the notification.
	ID string `json:"id"`

	// EventName is the event the delegation was wrapped in.
	EventName string `json:"eventName"`

	// CommandType is the type name of the child command.
	CommandType string `json:"commandType"`

	// CommandID is the child command's ID, if it has one.
	CommandID string `json:"commandId,omitempty"`

	// CorrelationID links the delegation to the originating request.
	CorrelationID string `json:"correlationId,omitempty"`

	// CausationID is the ID of the command that caused this delegation.
	CausationID string `json:"causationId,omitempty"`

	// Destination is the target, e.g. "kafka:orders" or "webhook:https://example.com/hook".
	Destination string `json:"destination"`

	// Payload is the encoded child command.
	Payload []byte `json:"payload"`

	// Headers carries string metadata for the transport.
	Headers map[string]string `json:"headers,omitempty"`

	// OccurredAt is when the delegation was triggered.
	OccurredAt time.Time `json:"occurredAt"`
}

// Key returns the partitioning key of the notification: its correlation ID,
// then its command ID, then its own ID.
func (n *Notification) Key() string {
	switch {
	case n.CorrelationID != "":
		return n.CorrelationID
	case n.CommandID != "":
		return n.CommandID
	default:
		return n.ID
	}
}

// DestinationTarget strips "prefix:" from destination. It returns "" when
// the destination has a different prefix or nothing after it.
func DestinationTarget(destination, prefix string) string {
	target, ok := strings.CutPrefix(destination, prefix+":")
	if !ok {
		return ""
	}
	return target
}

// DestinationPrefix returns the part of destination before the first colon.
func DestinationPrefix(destination string) string {
	prefix, _, _ := strings.Cut(destination, ":")
	return prefix
}
