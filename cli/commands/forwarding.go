package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/AshkanYarmoradi/go-herald"
	"github.com/AshkanYarmoradi/go-herald/adapters/memory"
	"github.com/AshkanYarmoradi/go-herald/adapters/postgres"
	"github.com/AshkanYarmoradi/go-herald/cli/config"
	"github.com/AshkanYarmoradi/go-herald/cli/styles"
	"github.com/AshkanYarmoradi/go-herald/cli/ui"
	"github.com/AshkanYarmoradi/go-herald/forward/kafka"
	"github.com/AshkanYarmoradi/go-herald/forward/webhook"
)

// forwardPriority places the forwarder after the child listener, so only
// delegations whose child succeeded are forwarded.
const forwardPriority = herald.DefaultListenerPriority - 1

// closer releases a publisher or store opened for one run.
type closer func() error

// buildForwarder returns a forwarder for the configured destinations, or
// nil when there are none. webhookURL overrides forwarding.webhook.
func buildForwarder(cfg *config.Config, webhookURL string, logger herald.Logger) (*herald.Forwarder, []closer) {
	fwd := cfg.Forwarding
	if webhookURL != "" {
		fwd.Webhook = webhookURL
	}

	var (
		routes     []herald.ForwardRoute
		publishers []herald.Publisher
		closers    []closer
	)

	if fwd.Webhook != "" {
		routes = append(routes, herald.ForwardRoute{Destination: "webhook:" + fwd.Webhook})
		publishers = append(publishers, webhook.New())
	}
	if fwd.Kafka.Enabled() {
		routes = append(routes, herald.ForwardRoute{Destination: "kafka:" + fwd.Kafka.Topic})
		pub := kafka.New(kafka.WithBrokers(fwd.Kafka.Brokers...))
		publishers = append(publishers, pub)
		closers = append(closers, pub.Close)
	}

	if len(routes) == 0 {
		return nil, nil
	}

	f := herald.NewForwarder(routes,
		herald.WithForwardLogger(logger),
		herald.WithStrictForwarding(fwd.Strict),
	)
	f.Register(publishers...)
	return f, closers
}

// openAuditStore opens the configured audit store. A postgres store gets
// its table created when missing.
func openAuditStore(ctx context.Context, cfg config.AuditConfig) (herald.AuditStore, closer, error) {
	switch cfg.Driver {
	case "", "memory":
		store := memory.NewAuditStore()
		return store, store.Close, nil
	case "postgres":
		var opts []postgres.AuditStoreOption
		if cfg.Table != "" {
			opts = append(opts, postgres.WithTable(cfg.Table))
		}
		store, err := postgres.Open(cfg.DSN, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit store: %w", err)
		}
		if err := store.Initialize(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("initialize audit store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}

// printAudit renders the audit records of one correlation ID.
func printAudit(ctx context.Context, out io.Writer, store herald.AuditStore, correlationID string) error {
	records, err := store.Query(ctx, herald.AuditFilter{CorrelationID: correlationID})
	if err != nil {
		return fmt.Errorf("query audit store: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, styles.FormatInfo("No delegations recorded"))
		return nil
	}

	table := ui.NewTable("Event", "Command", "Status", "Duration")
	for _, r := range records {
		status := ui.StatusBadge("ok")
		if !r.Success {
			status = ui.StatusBadge("failed")
		}
		table.AddRow(r.EventName, r.CommandType, status, r.Duration.String())
	}
	fmt.Fprintln(out, table.Render())
	return nil
}

// progressMiddleware renders a progress line for every finished delegation.
func progressMiddleware(out io.Writer, total int) herald.Middleware {
	model := ui.NewProgress(total)
	return func(next herald.ExecuteFunc) herald.ExecuteFunc {
		return func(ctx context.Context, cmd herald.Command) (interface{}, error) {
			result, err := next(ctx, cmd)

			updated, _ := model.Update(ui.DelegationMsg{Event: herald.EventNameFromContext(ctx), Err: err})
			model = updated.(ui.ProgressModel)
			fmt.Fprint(out, model.View())

			return result, err
		}
	}
}
