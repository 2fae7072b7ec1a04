// Package tracing provides OpenTelemetry integration for herald.
//
// Basic usage with an aggregate command:
//
//	tp := sdktrace.NewTracerProvider(...)
//	otel.SetTracerProvider(tp)
//
//	tracer := tracing.NewTracer()
//	cmd.Configure(herald.WithDelegationMiddleware(tracing.DelegationMiddleware(tracer)))
//
// The delegation middleware captures:
//   - Event name and child command type
//   - Success/failure status
//   - Error details when the child fails
//   - Correlation ID when present
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AshkanYarmoradi/go-herald"
)

const (
	// TracerName is the name of the herald tracer.
	TracerName = "github.com/AshkanYarmoradi/go-herald"

	// DefaultServiceName is the default service name for spans.
	DefaultServiceName = "herald"
)

// Tracer wraps OpenTelemetry tracer for herald operations.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithTracerProvider sets a custom TracerProvider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(t *Tracer) {
		t.tracer = tp.Tracer(TracerName)
	}
}

// WithServiceName sets the service name for spans.
func WithServiceName(name string) TracerOption {
	return func(t *Tracer) {
		t.serviceName = name
	}
}

// NewTracer creates a new Tracer with the global TracerProvider.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		tracer:      otel.Tracer(TracerName),
		serviceName: DefaultServiceName,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Tracer returns the underlying OpenTelemetry tracer.
func (t *Tracer) Tracer() trace.Tracer {
	return t.tracer
}

// ServiceName returns the configured service name.
func (t *Tracer) ServiceName() string {
	return t.serviceName
}

// DelegationMiddleware creates middleware that traces child command execution.
// Spans are named "delegation.<event name>".
func DelegationMiddleware(tracer *Tracer) herald.Middleware {
	return func(next herald.ExecuteFunc) herald.ExecuteFunc {
		return func(ctx context.Context, cmd herald.Command) (interface{}, error) {
			eventName := herald.EventNameFromContext(ctx)

			ctx, span := tracer.StartSpan(ctx, "delegation."+eventName,
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			span.SetAttributes(
				attribute.String("herald.service", tracer.serviceName),
				attribute.String("herald.event.name", eventName),
				attribute.String("herald.command.type", herald.GetCommandType(cmd)),
			)

			if correlationID := herald.CorrelationIDFromContext(ctx); correlationID != "" {
				span.SetAttributes(attribute.String("herald.correlation_id", correlationID))
			}

			result, err := next(ctx, cmd)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}

			return result, err
		}
	}
}

// WrapListener returns a listener that runs l inside a span named
// "listener.<event name>".
func WrapListener(tracer *Tracer, l herald.Listener) herald.Listener {
	return func(ctx context.Context, e herald.Event) error {
		ctx, span := tracer.StartSpan(ctx, "listener."+e.Name(),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		span.SetAttributes(
			attribute.String("herald.service", tracer.serviceName),
			attribute.String("herald.event.name", e.Name()),
		)

		if err := l(ctx, e); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		span.SetStatus(codes.Ok, "")
		return nil
	}
}

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, opts ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, opts...)
}

// SetError sets an error on the current span.
func SetError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
