package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AshkanYarmoradi/go-herald/cli/config"
	"github.com/AshkanYarmoradi/go-herald/cli/styles"
	"github.com/AshkanYarmoradi/go-herald/cli/ui"
)

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage herald.yaml",
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigValidateCommand())

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		force       bool
		serviceName string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a default herald.yaml",
		Long: `Write a commented herald.yaml with the default settings.

Examples:
  herald config init
  herald config init ./services/mailer --service mailer
  herald config init --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}

			if config.Exists(absDir) && !force {
				fmt.Fprintln(out, styles.FormatWarning(config.ConfigFileName+" already exists (use --force to overwrite)"))
				return nil
			}

			if err := os.MkdirAll(absDir, 0755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			cfg := config.DefaultConfig()
			if serviceName != "" {
				cfg.Service.Name = serviceName
			}

			if interactive {
				form, answers := newConfigForm(cfg)
				if err := form.Run(); err != nil {
					return err
				}
				answers.apply(cfg)
			}

			path := filepath.Join(absDir, config.ConfigFileName)
			if err := os.WriteFile(path, []byte(config.GenerateYAML(cfg)), 0644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			fmt.Fprintln(out, styles.FormatSuccess("Created "+path))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing herald.yaml")
	cmd.Flags().StringVar(&serviceName, "service", "", "Service name")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Answer questions instead of using defaults")

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, source, err := resolveConfig(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styles.FormatKeyValue("Source", source))
			fmt.Fprintln(out)

			table := ui.NewTable("Setting", "Value")
			table.AddRow("service.name", cfg.Service.Name)
			table.AddRow("delegation.separator", fmt.Sprintf("%q", cfg.Delegation.Separator))
			table.AddRow("delegation.subscription", cfg.Delegation.Subscription)
			table.AddRow("middleware.recovery", enabled(cfg.Middleware.Recovery))
			table.AddRow("middleware.correlation_id", enabled(cfg.Middleware.CorrelationID))
			table.AddRow("middleware.logging", enabled(cfg.Middleware.Logging))
			table.AddRow("middleware.metrics", enabled(cfg.Middleware.Metrics))
			table.AddRow("middleware.tracing", enabled(cfg.Middleware.Tracing))
			if cfg.Middleware.Timeout != "" {
				table.AddRow("middleware.timeout", cfg.Middleware.Timeout)
			}
			table.AddRow("forwarding.strict", enabled(cfg.Forwarding.Strict))
			if cfg.Forwarding.Webhook != "" {
				table.AddRow("forwarding.webhook", cfg.Forwarding.Webhook)
			}
			if cfg.Forwarding.Kafka.Enabled() {
				table.AddRow("forwarding.kafka", fmt.Sprintf("%s @ %s", cfg.Forwarding.Kafka.Topic, strings.Join(cfg.Forwarding.Kafka.Brokers, ",")))
			}
			table.AddRow("audit.enabled", enabled(cfg.Audit.Enabled))
			table.AddRow("audit.driver", cfg.Audit.Driver)
			table.AddRow("logging.level", cfg.Logging.Level)
			table.AddRow("logging.format", cfg.Logging.Format)
			fmt.Fprintln(out, table.Render())

			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "Path to herald.yaml")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate herald.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, source, err := resolveConfig(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			problems := cfg.Validate()
			if len(problems) == 0 {
				fmt.Fprintln(out, styles.FormatSuccess(source+" is valid"))
				return nil
			}

			fmt.Fprint(out, ui.ListItems(problems))
			return fmt.Errorf("%s has %d problem(s)", source, len(problems))
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "Path to herald.yaml")
	return cmd
}

// resolveConfig loads the file at path, or the nearest herald.yaml, or the
// defaults. It also returns a description of where the settings came from.
func resolveConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("load config: %w", err)
		}
		return cfg, path, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	dir, cfg, err := config.FindConfig(wd)
	if err != nil {
		return config.DefaultConfig(), "defaults", nil
	}
	return cfg, filepath.Join(dir, config.ConfigFileName), nil
}

func enabled(b bool) string {
	if b {
		return ui.StatusBadge("enabled")
	}
	return ui.StatusBadge("disabled")
}

// Middleware names offered by the interactive form.
const (
	mwRecovery      = "recovery"
	mwCorrelationID = "correlation_id"
	mwLogging       = "logging"
	mwMetrics       = "metrics"
	mwTracing       = "tracing"
)

// configAnswers holds form values that do not map directly onto Config fields.
type configAnswers struct {
	middleware []string
}

func (a *configAnswers) apply(cfg *config.Config) {
	on := func(name string) bool { return contains(a.middleware, name) }
	cfg.Middleware.Recovery = on(mwRecovery)
	cfg.Middleware.CorrelationID = on(mwCorrelationID)
	cfg.Middleware.Logging = on(mwLogging)
	cfg.Middleware.Metrics = on(mwMetrics)
	cfg.Middleware.Tracing = on(mwTracing)
}

// newConfigForm builds the interactive form for config init. Plain fields
// are written straight into cfg; the rest is collected in the answers.
func newConfigForm(cfg *config.Config) (*huh.Form, *configAnswers) {
	answers := &configAnswers{}
	for name, on := range map[string]bool{
		mwRecovery:      cfg.Middleware.Recovery,
		mwCorrelationID: cfg.Middleware.CorrelationID,
		mwLogging:       cfg.Middleware.Logging,
		mwMetrics:       cfg.Middleware.Metrics,
		mwTracing:       cfg.Middleware.Tracing,
	} {
		if on {
			answers.middleware = append(answers.middleware, name)
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Service Name").
				Description("Reported in logs, metrics and spans").
				Value(&cfg.Service.Name),

			huh.NewInput().
				Title("Event Name Separator").
				Description("Used when deriving event names from type names").
				Value(&cfg.Delegation.Separator),

			huh.NewSelect[string]().
				Title("Child Subscription").
				Options(
					huh.NewOption("Once (one-shot listener per delegation)", "once"),
					huh.NewOption("Persistent (listeners accumulate)", "persistent"),
				).
				Value(&cfg.Delegation.Subscription),
		).Title("Delegation"),

		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Delegation Middleware").
				Options(
					huh.NewOption("Panic recovery", mwRecovery),
					huh.NewOption("Correlation IDs", mwCorrelationID),
					huh.NewOption("Logging", mwLogging),
					huh.NewOption("Prometheus metrics", mwMetrics),
					huh.NewOption("OpenTelemetry tracing", mwTracing),
				).
				Value(&answers.middleware),
		).Title("Middleware"),

		huh.NewGroup(
			huh.NewInput().
				Title("Webhook URL").
				Description("Leave empty to disable forwarding").
				Value(&cfg.Forwarding.Webhook),

			huh.NewConfirm().
				Title("Record an audit trail?").
				Value(&cfg.Audit.Enabled),

			huh.NewSelect[string]().
				Title("Audit Store").
				Options(
					huh.NewOption("In-Memory", "memory"),
					huh.NewOption("PostgreSQL", "postgres"),
				).
				Value(&cfg.Audit.Driver),
		).Title("Forwarding and Audit"),
	).WithTheme(huh.ThemeDracula())

	return form, answers
}
