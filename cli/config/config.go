// Package config provides configuration management for the herald CLI.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AshkanYarmoradi/go-herald"
)

// Config represents the herald CLI configuration
type Config struct {
	// Version of the config file format
	Version string `yaml:"version"`

	// Service configuration
	Service ServiceConfig `yaml:"service"`

	// Delegation configures how aggregate commands run their children
	Delegation DelegationConfig `yaml:"delegation"`

	// Middleware toggles the delegation middleware chain
	Middleware MiddlewareConfig `yaml:"middleware"`

	// Forwarding sends delegations to external systems
	Forwarding ForwardingConfig `yaml:"forwarding"`

	// Audit records every delegation
	Audit AuditConfig `yaml:"audit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// ServiceConfig identifies the service in logs, metrics and spans
type ServiceConfig struct {
	Name string `yaml:"name"`
}

// DelegationConfig contains child execution settings
type DelegationConfig struct {
	// Separator used when deriving event names from type names
	Separator string `yaml:"separator"`

	// Subscription is "once" or "persistent"
	Subscription string `yaml:"subscription"`
}

// MiddlewareConfig enables delegation middleware.
// Enabled middleware runs in the order of the fields below.
type MiddlewareConfig struct {
	Recovery      bool   `yaml:"recovery"`
	CorrelationID bool   `yaml:"correlation_id"`
	Logging       bool   `yaml:"logging"`
	Metrics       bool   `yaml:"metrics"`
	Tracing       bool   `yaml:"tracing"`
	Timeout       string `yaml:"timeout,omitempty"`
}

// ForwardingConfig lists the destinations delegations are forwarded to.
// Nothing is forwarded when no destination is set.
type ForwardingConfig struct {
	// Strict makes a forwarding failure fail the delegation
	Strict bool `yaml:"strict"`

	// Webhook is an HTTP endpoint receiving one POST per delegation
	Webhook string `yaml:"webhook,omitempty"`

	Kafka KafkaConfig `yaml:"kafka,omitempty"`
}

// KafkaConfig configures the Kafka destination
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// Enabled reports whether a Kafka destination is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 || k.Topic != ""
}

// AuditConfig configures the delegation audit trail
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`

	// Driver is memory or postgres
	Driver string `yaml:"driver"`

	// DSN is the PostgreSQL connection string
	DSN string `yaml:"dsn,omitempty"`

	// Table defaults to herald_delegations
	Table string `yaml:"table,omitempty"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`

	// Format is text or json
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Service: ServiceConfig{
			Name: "herald",
		},
		Delegation: DelegationConfig{
			Separator:    herald.DefaultEventNameSeparator,
			Subscription: herald.SubscribeOnce.String(),
		},
		Middleware: MiddlewareConfig{
			Recovery:      true,
			CorrelationID: true,
			Logging:       true,
		},
		Audit: AuditConfig{
			Driver: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigFileName is the default config file name
const ConfigFileName = "herald.yaml"

// Load loads configuration from the specified directory
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile loads configuration from a specific file path.
// Fields missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save saves the configuration to the specified directory
func (c *Config) Save(dir string) error {
	return c.SaveFile(filepath.Join(dir, ConfigFileName))
}

// SaveFile saves the configuration to a specific file path
func (c *Config) SaveFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Exists checks if a config file exists in the directory
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindConfig searches for a config file starting from dir and going up
func FindConfig(dir string) (string, *Config, error) {
	current := dir
	for {
		configPath := filepath.Join(current, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			cfg, err := LoadFile(configPath)
			if err != nil {
				return "", nil, err
			}
			return current, cfg, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", nil, os.ErrNotExist
		}
		current = parent
	}
}

// Validate validates the configuration
func (c *Config) Validate() []string {
	var errors []string

	if c.Service.Name == "" {
		errors = append(errors, "service.name is required")
	}

	if _, err := herald.ParseSubscriptionMode(c.Delegation.Subscription); err != nil {
		errors = append(errors, "delegation.subscription must be 'once' or 'persistent'")
	}

	if c.Middleware.Timeout != "" {
		if d, err := time.ParseDuration(c.Middleware.Timeout); err != nil || d <= 0 {
			errors = append(errors, "middleware.timeout must be a positive duration")
		}
	}

	if c.Forwarding.Webhook != "" {
		if u, err := url.Parse(c.Forwarding.Webhook); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, "forwarding.webhook must be an http or https URL")
		}
	}

	if k := c.Forwarding.Kafka; k.Enabled() {
		if len(k.Brokers) == 0 {
			errors = append(errors, "forwarding.kafka.brokers is required when kafka is configured")
		}
		if k.Topic == "" {
			errors = append(errors, "forwarding.kafka.topic is required when kafka is configured")
		}
	}

	switch c.Audit.Driver {
	case "", "memory":
	case "postgres":
		if c.Audit.Enabled && c.Audit.DSN == "" {
			errors = append(errors, "audit.dsn is required for the postgres driver")
		}
	default:
		errors = append(errors, "audit.driver must be 'memory' or 'postgres'")
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		errors = append(errors, "logging.level must be debug, info, warn or error")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errors = append(errors, "logging.format must be 'text' or 'json'")
	}

	return errors
}

// SubscriptionMode returns the configured child subscription mode.
func (c *Config) SubscriptionMode() (herald.SubscriptionMode, error) {
	return herald.ParseSubscriptionMode(c.Delegation.Subscription)
}

// Timeout returns the configured middleware timeout, or zero when unset.
func (c *Config) Timeout() (time.Duration, error) {
	if c.Middleware.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Middleware.Timeout)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	return parseLevel(c.Logging.Level)
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// GenerateYAML generates YAML content with comments
func GenerateYAML(cfg *Config) string {
	return `# Herald Configuration File
# This file configures the herald CLI

version: "` + cfg.Version + `"

service:
  # Reported in logs, metrics and spans
  name: "` + cfg.Service.Name + `"

delegation:
  # Separator for event names derived from type names
  separator: "` + cfg.Delegation.Separator + `"

  # once: each delegation subscribes a one-shot listener
  # persistent: listeners accumulate across delegations
  subscription: "` + cfg.Delegation.Subscription + `"

# Delegation middleware, applied in this order
middleware:
  recovery: ` + formatBool(cfg.Middleware.Recovery) + `
  correlation_id: ` + formatBool(cfg.Middleware.CorrelationID) + `
  logging: ` + formatBool(cfg.Middleware.Logging) + `
  metrics: ` + formatBool(cfg.Middleware.Metrics) + `
  tracing: ` + formatBool(cfg.Middleware.Tracing) + `
  # timeout: "5s"

forwarding:
  # Return forwarding failures instead of logging them
  strict: ` + formatBool(cfg.Forwarding.Strict) + `
` + formatForwarding(cfg.Forwarding) + `
audit:
  enabled: ` + formatBool(cfg.Audit.Enabled) + `

  # memory or postgres
  driver: "` + cfg.Audit.Driver + `"
` + formatAuditDSN(cfg.Audit) + `
logging:
  # debug, info, warn or error
  level: "` + cfg.Logging.Level + `"

  # text or json
  format: "` + cfg.Logging.Format + `"
`
}

func formatForwarding(f ForwardingConfig) string {
	var sb strings.Builder
	if f.Webhook != "" {
		sb.WriteString("  webhook: \"" + f.Webhook + "\"\n")
	} else {
		sb.WriteString("  # webhook: \"https://example.com/delegations\"\n")
	}

	if f.Kafka.Enabled() {
		sb.WriteString("  kafka:\n    brokers:\n")
		for _, b := range f.Kafka.Brokers {
			sb.WriteString("      - \"" + b + "\"\n")
		}
		sb.WriteString("    topic: \"" + f.Kafka.Topic + "\"\n")
	} else {
		sb.WriteString("  # kafka:\n  #   brokers: [\"localhost:9092\"]\n  #   topic: \"delegations\"\n")
	}
	return sb.String()
}

func formatAuditDSN(a AuditConfig) string {
	if a.DSN != "" {
		return "  dsn: \"" + a.DSN + "\"\n"
	}
	return "  # dsn: \"postgres://localhost:5432/herald?sslmode=disable\"\n"
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
