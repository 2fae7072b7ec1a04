package herald

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// ExecuteFunc executes a command on behalf of a delegation.
type ExecuteFunc func(ctx context.Context, cmd Command) (interface{}, error)

// Middleware wraps an ExecuteFunc with additional functionality.
type Middleware func(next ExecuteFunc) ExecuteFunc

// ChainMiddleware creates a single middleware from multiple middleware.
// The first middleware is the outermost.
func ChainMiddleware(middleware ...Middleware) Middleware {
	return func(next ExecuteFunc) ExecuteFunc {
		for i := len(middleware) - 1; i >= 0; i-- {
			next = middleware[i](next)
		}
		return next
	}
}

type commandEventKey struct{}

// WithCommandEvent returns a context carrying the event of the current delegation.
func WithCommandEvent(ctx context.Context, e *CommandEvent) context.Context {
	return context.WithValue(ctx, commandEventKey{}, e)
}

// CommandEventFromContext returns the event of the current delegation.
func CommandEventFromContext(ctx context.Context) (*CommandEvent, bool) {
	e, ok := ctx.Value(commandEventKey{}).(*CommandEvent)
	return e, ok
}

// EventNameFromContext returns the event name of the current delegation,
// or empty string outside a delegation.
func EventNameFromContext(ctx context.Context) string {
	if e, ok := CommandEventFromContext(ctx); ok {
		return e.Name()
	}
	return ""
}

// RecoveryMiddleware recovers from panics in commands and returns them as errors.
func RecoveryMiddleware() Middleware {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, cmd Command) (result interface{}, err error) {
			defer func() {
				if r := recover(); r != nil {
					result = nil
					err = NewPanicError(GetCommandType(cmd), EventNameFromContext(ctx), r, string(debug.Stack()))
				}
			}()
			return next(ctx, cmd)
		}
	}
}

// LoggingMiddleware logs child command execution.
type LoggingMiddleware struct {
	logger Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger Logger) *LoggingMiddleware {
	if logger == nil {
		logger = &noopLogger{}
	}
	return &LoggingMiddleware{logger: logger}
}

// Middleware returns the middleware function.
func (m *LoggingMiddleware) Middleware() Middleware {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, cmd Command) (interface{}, error) {
			start := time.Now()
			cmdType := GetCommandType(cmd)
			eventName := EventNameFromContext(ctx)

			m.logger.Info("Executing command",
				"type", cmdType,
				"event", eventName,
			)

			result, err := next(ctx, cmd)
			duration := time.Since(start)

			if err != nil {
				m.logger.Error("Command failed",
					"type", cmdType,
					"event", eventName,
					"duration", duration,
					"error", err,
				)
			} else {
				m.logger.Info("Command completed",
					"type", cmdType,
					"event", eventName,
					"duration", duration,
				)
			}

			return result, err
		}
	}
}

// TimeoutMiddleware adds a timeout to command execution.
// Commands observe it through ctx.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, cmd Command) (interface{}, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, cmd)
		}
	}
}

// MetricsCollector records child command executions.
type MetricsCollector interface {
	// RecordExecution records one execution of a command under an event name.
	RecordExecution(eventName, cmdType string, duration time.Duration, err error)
}

// MetricsMiddleware creates middleware that records metrics.
func MetricsMiddleware(collector MetricsCollector) Middleware {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, cmd Command) (interface{}, error) {
			start := time.Now()
			result, err := next(ctx, cmd)
			collector.RecordExecution(EventNameFromContext(ctx), GetCommandType(cmd), time.Since(start), err)
			return result, err
		}
	}
}

type correlationIDKey struct{}

// CorrelationIDFromContext returns the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID returns a context with the correlation ID set.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDMiddleware ensures child executions carry a correlation ID.
// An existing ID in the context wins, then the command's own ID, then a
// generated one. A nil generator produces UUIDs.
func CorrelationIDMiddleware(generator func() string) Middleware {
	if generator == nil {
		generator = uuid.NewString
	}

	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, cmd Command) (interface{}, error) {
			if CorrelationIDFromContext(ctx) != "" {
				return next(ctx, cmd)
			}

			var correlationID string
			if base, ok := cmd.(interface{ GetCorrelationID() string }); ok {
				correlationID = base.GetCorrelationID()
			}
			if correlationID == "" {
				correlationID = generator()
			}

			return next(WithCorrelationID(ctx, correlationID), cmd)
		}
	}
}

// ConditionalMiddleware applies middleware only if the condition is true.
func ConditionalMiddleware(condition func(Command) bool, middleware Middleware) Middleware {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, cmd Command) (interface{}, error) {
			if condition(cmd) {
				return middleware(next)(ctx, cmd)
			}
			return next(ctx, cmd)
		}
	}
}
