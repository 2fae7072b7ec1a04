// Package metrics provides Prometheus metrics integration for herald.
//
// Basic usage:
//
//	m := metrics.New()
//	prometheus.MustRegister(m.Collectors()...)
//
//	// Use with an aggregate command
//	cmd.Configure(herald.WithDelegationMiddleware(m.DelegationMiddleware()))
//
//	// Count listener invocations
//	cmd.EventManager().Attach("-send-email", m.WrapListener(audit))
//
// The metrics collected include:
//   - Child command executions by event name, command type and status
//   - Child command durations and in-flight counts
//   - Event listener invocations
//   - Error counts by type
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AshkanYarmoradi/go-herald"
)

// Default metric labels.
const (
	LabelEventName   = "event_name"
	LabelCommandType = "command_type"
	LabelStatus      = "status"
	LabelErrorType   = "error_type"
	LabelService     = "service"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds all Prometheus metrics for herald.
type Metrics struct {
	namespace   string
	subsystem   string
	serviceName string

	executionsTotal    *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	executionsInFlight *prometheus.GaugeVec

	listenerInvocationsTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

var _ herald.MetricsCollector = (*Metrics)(nil)

// MetricsOption configures Metrics.
type MetricsOption func(*Metrics)

// WithNamespace sets the Prometheus namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(m *Metrics) {
		m.namespace = namespace
	}
}

// WithSubsystem sets the Prometheus subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(m *Metrics) {
		m.subsystem = subsystem
	}
}

// WithMetricsServiceName sets the service name label.
func WithMetricsServiceName(name string) MetricsOption {
	return func(m *Metrics) {
		m.serviceName = name
	}
}

// New creates a new Metrics instance with default settings.
func New(opts ...MetricsOption) *Metrics {
	m := &Metrics{
		namespace:   "herald",
		subsystem:   "",
		serviceName: "unknown",
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initMetrics()
	return m
}

func (m *Metrics) initMetrics() {
	m.executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "child_executions_total",
			Help:      "Total number of child command executions.",
		},
		[]string{LabelService, LabelEventName, LabelCommandType, LabelStatus},
	)

	m.executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "child_execution_duration_seconds",
			Help:      "Duration of child command executions in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelService, LabelEventName, LabelCommandType},
	)

	m.executionsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "child_executions_in_flight",
			Help:      "Number of child commands currently executing.",
		},
		[]string{LabelService, LabelEventName, LabelCommandType},
	)

	m.listenerInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "listener_invocations_total",
			Help:      "Total number of event listener invocations.",
		},
		[]string{LabelService, LabelEventName, LabelStatus},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors by type.",
		},
		[]string{LabelService, LabelErrorType},
	)
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.executionsTotal,
		m.executionDuration,
		m.executionsInFlight,
		m.listenerInvocationsTotal,
		m.errorsTotal,
	}
}

// MustRegister registers all collectors with the default registry.
func (m *Metrics) MustRegister() {
	prometheus.MustRegister(m.Collectors()...)
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	for _, collector := range m.Collectors() {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// DelegationMiddleware returns middleware that records child command executions.
func (m *Metrics) DelegationMiddleware() herald.Middleware {
	return func(next herald.ExecuteFunc) herald.ExecuteFunc {
		return func(ctx context.Context, cmd herald.Command) (interface{}, error) {
			eventName := herald.EventNameFromContext(ctx)
			cmdType := herald.GetCommandType(cmd)

			m.executionsInFlight.WithLabelValues(m.serviceName, eventName, cmdType).Inc()
			defer m.executionsInFlight.WithLabelValues(m.serviceName, eventName, cmdType).Dec()

			start := time.Now()
			result, err := next(ctx, cmd)
			m.RecordExecution(eventName, cmdType, time.Since(start), err)

			return result, err
		}
	}
}

// RecordExecution implements herald.MetricsCollector.
func (m *Metrics) RecordExecution(eventName, cmdType string, duration time.Duration, err error) {
	m.executionDuration.WithLabelValues(m.serviceName, eventName, cmdType).Observe(duration.Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
		m.RecordError(errorTypeName(err))
	}
	m.executionsTotal.WithLabelValues(m.serviceName, eventName, cmdType, status).Inc()
}

// WrapListener returns a listener that counts invocations of l.
func (m *Metrics) WrapListener(l herald.Listener) herald.Listener {
	return func(ctx context.Context, e herald.Event) error {
		err := l(ctx, e)

		status := StatusSuccess
		if err != nil {
			status = StatusError
			m.RecordError(errorTypeName(err))
		}
		m.listenerInvocationsTotal.WithLabelValues(m.serviceName, e.Name(), status).Inc()

		return err
	}
}

// RecordError increments the error counter for the given type.
func (m *Metrics) RecordError(errorType string) {
	m.errorsTotal.WithLabelValues(m.serviceName, errorType).Inc()
}

func errorTypeName(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, herald.ErrCommandPanicked):
		return "command_panicked"
	case errors.Is(err, herald.ErrNilCommand):
		return "nil_command"
	case errors.Is(err, herald.ErrHydrationFailed):
		return "hydration_failed"
	case errors.Is(err, herald.ErrSerializationFailed):
		return "serialization_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}

// ExecutionsTotal returns the child executions counter.
func (m *Metrics) ExecutionsTotal() *prometheus.CounterVec {
	return m.executionsTotal
}

// ExecutionDuration returns the child execution duration histogram.
func (m *Metrics) ExecutionDuration() *prometheus.HistogramVec {
	return m.executionDuration
}

// ExecutionsInFlight returns the in-flight gauge.
func (m *Metrics) ExecutionsInFlight() *prometheus.GaugeVec {
	return m.executionsInFlight
}

// ListenerInvocationsTotal returns the listener invocations counter.
func (m *Metrics) ListenerInvocationsTotal() *prometheus.CounterVec {
	return m.listenerInvocationsTotal
}

// ErrorsTotal returns the errors counter.
func (m *Metrics) ErrorsTotal() *prometheus.CounterVec {
	return m.errorsTotal
}
