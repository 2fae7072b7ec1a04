package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AshkanYarmoradi/go-herald"
	"github.com/AshkanYarmoradi/go-herald/cli/config"
	"github.com/AshkanYarmoradi/go-herald/cli/styles"
	"github.com/AshkanYarmoradi/go-herald/cli/ui"
	"github.com/AshkanYarmoradi/go-herald/middleware/metrics"
	"github.com/AshkanYarmoradi/go-herald/middleware/tracing"
	"github.com/AshkanYarmoradi/go-herald/serializer/msgpack"
	"github.com/AshkanYarmoradi/go-herald/serializer/protobuf"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	configPath string
	recipients []string
	subject    string
	failing    []string
	panicking  []string
	codec      string
	trace      bool
	metrics    bool
	webhook    string
	audit      bool
	progress   bool
}

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo newsletter through the delegation pipeline",
		Long: `Run a PublishNewsletter aggregate that delegates one SendEmail child per
recipient. The delegation middleware, subscription mode and logging follow
herald.yaml (searched from the current directory upwards) or --config.

The newsletter is first encoded with the selected codec and decoded again,
as a worker receiving it from a queue would.

Examples:
  herald run
  herald run --recipient a@example.com --fail a@example.com
  herald run --codec protobuf --trace --metrics
  herald run --webhook https://example.com/delegations --audit --progress`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(opts.configPath)
			if err != nil {
				return err
			}
			return runNewsletter(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to herald.yaml")
	cmd.Flags().StringSliceVarP(&opts.recipients, "recipient", "r", []string{"ada@example.com", "grace@example.com"}, "Newsletter recipients")
	cmd.Flags().StringVar(&opts.subject, "subject", "Release notes", "Newsletter subject")
	cmd.Flags().StringSliceVar(&opts.failing, "fail", nil, "Recipients whose delivery fails")
	cmd.Flags().StringSliceVar(&opts.panicking, "panic", nil, "Recipients whose delivery panics")
	cmd.Flags().StringVar(&opts.codec, "codec", "json", "Codec used to transport the command (json, msgpack, protobuf)")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Export delegation spans to stdout")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print collected Prometheus metrics")
	cmd.Flags().StringVar(&opts.webhook, "webhook", "", "Forward completed delegations to this URL")
	cmd.Flags().BoolVar(&opts.audit, "audit", false, "Record delegations and print the audit trail")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Show a progress bar while delegating")

	return cmd
}

func loadRunConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case path != "":
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	default:
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if _, found, err := config.FindConfig(wd); err == nil {
			cfg = found
		} else {
			cfg = config.DefaultConfig()
		}
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

func newCodec(name string, registry *herald.CommandRegistry) (herald.Codec, error) {
	switch name {
	case "", "json":
		return herald.NewJSONCodec(registry), nil
	case "msgpack":
		return msgpack.NewCodec(registry), nil
	case "protobuf":
		return protobuf.NewCodec(registry), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler).With("service", cfg.Service.Name), nil
}

// pipeline is the instrumentation assembled for one run.
type pipeline struct {
	middleware []herald.Middleware
	metrics    *metrics.Metrics
	registry   *prometheus.Registry
	tracer     *tracing.Tracer
	shutdown   func(context.Context) error
}

// buildPipeline assembles the delegation middleware in the order the
// configuration documents.
func buildPipeline(out io.Writer, cfg *config.Config, logger herald.Logger, withMetrics, withTrace bool) (*pipeline, error) {
	p := &pipeline{shutdown: func(context.Context) error { return nil }}
	mw := cfg.Middleware

	if mw.Recovery {
		p.middleware = append(p.middleware, herald.RecoveryMiddleware())
	}
	if mw.CorrelationID {
		p.middleware = append(p.middleware, herald.CorrelationIDMiddleware(nil))
	}
	if mw.Logging {
		p.middleware = append(p.middleware, herald.NewLoggingMiddleware(logger).Middleware())
	}
	if mw.Metrics || withMetrics {
		p.registry = prometheus.NewRegistry()
		p.metrics = metrics.New(metrics.WithMetricsServiceName(cfg.Service.Name))
		if err := p.metrics.Register(p.registry); err != nil {
			return nil, err
		}
		p.middleware = append(p.middleware, p.metrics.DelegationMiddleware())
	}
	if mw.Tracing || withTrace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		p.shutdown = tp.Shutdown
		p.tracer = tracing.NewTracer(
			tracing.WithTracerProvider(tp),
			tracing.WithServiceName(cfg.Service.Name),
		)
		p.middleware = append(p.middleware, tracing.DelegationMiddleware(p.tracer))
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		p.middleware = append(p.middleware, herald.TimeoutMiddleware(timeout))
	}

	return p, nil
}

// auditListener observes every delegation of the newsletter.
func (p *pipeline) auditListener(logger herald.Logger) herald.Listener {
	var listener herald.Listener = func(ctx context.Context, e herald.Event) error {
		logger.Debug("Delegation observed",
			"event", e.Name(),
			"target", herald.GetCommandType(e.Target()),
		)
		return nil
	}

	if p.metrics != nil {
		listener = p.metrics.WrapListener(listener)
	}
	if p.tracer != nil {
		listener = tracing.WrapListener(p.tracer, listener)
	}
	return listener
}

func runNewsletter(ctx context.Context, out, errOut io.Writer, cfg *config.Config, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger(errOut, cfg)
	if err != nil {
		return err
	}

	mode, err := cfg.SubscriptionMode()
	if err != nil {
		return err
	}

	p, err := buildPipeline(out, cfg, logger, opts.metrics, opts.trace)
	if err != nil {
		return err
	}
	defer func() { _ = p.shutdown(context.Background()) }()

	registry := herald.NewCommandRegistry()
	registry.RegisterAll(&PublishNewsletter{}, &SendEmail{})
	codec, err := newCodec(opts.codec, registry)
	if err != nil {
		return err
	}

	outgoing := &PublishNewsletter{
		Subject:    opts.subject,
		Recipients: opts.recipients,
		Failing:    opts.failing,
		Panicking:  opts.panicking,
	}
	outgoing.CommandID = herald.NewCommandID()
	outgoing.CorrelationID = herald.NewCommandID()

	envelope, err := herald.EncodeEnvelope(codec, outgoing)
	if err != nil {
		return err
	}
	decoded, err := herald.DecodeEnvelope(codec, envelope)
	if err != nil {
		return err
	}
	newsletter, ok := decoded.(*PublishNewsletter)
	if !ok {
		return fmt.Errorf("decoded %T, want *PublishNewsletter", decoded)
	}

	var middleware []herald.Middleware
	if opts.progress {
		middleware = append(middleware, progressMiddleware(out, len(newsletter.Recipients)))
	}

	var auditStore herald.AuditStore
	if opts.audit || cfg.Audit.Enabled {
		store, closeStore, err := openAuditStore(ctx, cfg.Audit)
		if err != nil {
			return err
		}
		defer func() { _ = closeStore() }()
		auditStore = store
		middleware = append(middleware, herald.AuditMiddleware(store, herald.WithAuditLogger(logger)))
	}

	newsletter.Configure(
		herald.WithEventNameSeparator(cfg.Delegation.Separator),
		herald.WithChildSubscription(mode),
		herald.WithDelegationMiddleware(append(middleware, p.middleware...)...),
		herald.WithAggregateLogger(logger),
	)
	newsletter.EventManager().Attach(herald.WildcardEvent, p.auditListener(logger), herald.WithPriority(10))

	forwarder, closers := buildForwarder(cfg, opts.webhook, logger)
	for _, c := range closers {
		defer func(c closer) { _ = c() }(c)
	}
	if forwarder != nil {
		newsletter.EventManager().Attach(herald.WildcardEvent, forwarder.Listener(), herald.WithPriority(forwardPriority))
	}

	fmt.Fprintln(out, styles.FormatKeyValue("Codec", fmt.Sprintf("%s (%d bytes)", opts.codec, len(envelope.Data))))
	fmt.Fprintln(out, styles.FormatKeyValue("Subscription", mode.String()))
	fmt.Fprintln(out, styles.FormatKeyValue("Correlation ID", newsletter.GetCorrelationID()))
	fmt.Fprintln(out)

	result, runErr := newsletter.Execute(herald.WithCorrelationID(ctx, newsletter.GetCorrelationID()))
	deliveries, _ := result.([]Delivery)

	table := ui.NewTable("Recipient", "Status", "Result")
	var failed int
	for _, d := range deliveries {
		if d.Err != nil {
			failed++
			table.AddRow(d.Recipient, ui.StatusBadge("failed"), d.Err.Error())
			continue
		}
		table.AddRow(d.Recipient, ui.StatusBadge("ok"), fmt.Sprint(d.Result))
	}
	fmt.Fprintln(out, table.Render())

	if auditStore != nil {
		if err := printAudit(ctx, out, auditStore, newsletter.GetCorrelationID()); err != nil {
			return err
		}
	}

	if p.registry != nil {
		if err := printMetrics(out, p.registry); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		fmt.Fprintln(out, styles.FormatWarning(fmt.Sprintf("%d of %d deliveries failed", failed, len(deliveries))))
		return nil
	}
	fmt.Fprintln(out, styles.FormatSuccess(fmt.Sprintf("%d deliveries completed", len(deliveries))))
	return nil
}

// printMetrics renders the gathered metric families as a table.
func printMetrics(out io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	table := ui.NewTable("Metric", "Labels", "Value")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			sort.Strings(labels)

			var value string
			switch {
			case m.GetCounter() != nil:
				value = fmt.Sprintf("%g", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				value = fmt.Sprintf("%g", m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%.6fs", h.GetSampleCount(), h.GetSampleSum())
			default:
				value = "-"
			}
			table.AddRow(mf.GetName(), strings.Join(labels, ","), value)
		}
	}

	if table.Len() == 0 {
		fmt.Fprintln(out, styles.FormatInfo("No metrics recorded"))
		return nil
	}
	fmt.Fprintln(out, table.Render())
	return nil
}
