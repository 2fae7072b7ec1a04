package herald

import (
	"context"
	"time"

	"github.com/AshkanYarmoradi/go-herald/adapters"
)

// AuditRecord describes one child command execution.
type AuditRecord = adapters.AuditRecord

// AuditFilter selects audit records.
type AuditFilter = adapters.AuditFilter

// AuditStore persists audit records.
type AuditStore = adapters.AuditStore

// commandIdentity returns the IDs a command carries through CommandBase.
func commandIdentity(cmd Command) (commandID, correlationID, causationID string) {
	if c, ok := cmd.(interface{ GetCommandID() string }); ok {
		commandID = c.GetCommandID()
	}
	if c, ok := cmd.(interface{ GetCorrelationID() string }); ok {
		correlationID = c.GetCorrelationID()
	}
	if c, ok := cmd.(interface{ GetCausationID() string }); ok {
		causationID = c.GetCausationID()
	}
	return commandID, correlationID, causationID
}

// AuditOption configures AuditMiddleware.
type AuditOption func(*auditConfig)

type auditConfig struct {
	logger Logger
	idGen  func() string
	clock  func() time.Time
}

// WithAuditLogger sets the logger that reports recording failures.
func WithAuditLogger(l Logger) AuditOption {
	return func(c *auditConfig) {
		c.logger = l
	}
}

// WithAuditIDGenerator sets the generator for record IDs.
func WithAuditIDGenerator(gen func() string) AuditOption {
	return func(c *auditConfig) {
		c.idGen = gen
	}
}

// WithAuditClock sets the clock used for StartedAt and Duration.
func WithAuditClock(clock func() time.Time) AuditOption {
	return func(c *auditConfig) {
		c.clock = clock
	}
}

// AuditMiddleware records every child execution in store once it returns.
// A failure to record is logged and does not change the child's outcome.
// A panicking child is recorded as failed and the panic continues.
// The correlation ID in the context wins over the one on the command.
func AuditMiddleware(store AuditStore, opts ...AuditOption) Middleware {
	cfg := &auditConfig{
		logger: &noopLogger{},
		idGen:  NewCommandID,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, cmd Command) (result interface{}, err error) {
			start := cfg.clock()
			commandID, correlationID, causationID := commandIdentity(cmd)
			if id := CorrelationIDFromContext(ctx); id != "" {
				correlationID = id
			}

			defer func() {
				r := recover()
				if r != nil {
					err = NewPanicError(GetCommandType(cmd), EventNameFromContext(ctx), r, "")
				}

				record := &AuditRecord{
					ID:            cfg.idGen(),
					EventName:     EventNameFromContext(ctx),
					CommandType:   GetCommandType(cmd),
					CommandID:     commandID,
					CorrelationID: correlationID,
					CausationID:   causationID,
					Success:       err == nil,
					Duration:      cfg.clock().Sub(start),
					StartedAt:     start,
				}
				if err != nil {
					record.Error = err.Error()
				}

				if recErr := store.Record(ctx, record); recErr != nil {
					cfg.logger.Error("Failed to record delegation",
						"event", record.EventName,
						"commandType", record.CommandType,
						"error", recErr,
					)
				}

				if r != nil {
					panic(r)
				}
			}()

			return next(ctx, cmd)
		}
	}
}
