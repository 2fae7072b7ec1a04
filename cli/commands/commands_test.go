package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshkanYarmoradi/go-herald"
	"github.com/AshkanYarmoradi/go-herald/cli/config"
)

// ============================================================================
// Test Helpers
// ============================================================================

// testEnv holds common test environment state
type testEnv struct {
	t      *testing.T
	tmpDir string
	origWd string
}

// setupTestEnv creates a temporary directory and changes to it.
// The original working directory is restored on cleanup.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tmpDir := t.TempDir()

	origWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))

	env := &testEnv{t: t, tmpDir: tmpDir, origWd: origWd}
	t.Cleanup(func() { _ = os.Chdir(env.origWd) })
	return env
}

// createConfig writes a herald.yaml into the test directory
func (e *testEnv) createConfig(mutate func(*config.Config)) string {
	e.t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(e.tmpDir, config.ConfigFileName)
	require.NoError(e.t, cfg.SaveFile(path))
	return path
}

// execute runs cmd with args and returns stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func getSubcommandNames(cmd *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	return names
}

// ============================================================================
// Root
// ============================================================================

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "herald", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("no-color"))

	names := getSubcommandNames(cmd)
	for _, expected := range []string{"name", "run", "config", "version"} {
		assert.True(t, names[expected], "missing subcommand %s", expected)
	}
}

func TestNewRootCommand_NoColorFlag(t *testing.T) {
	stdout, _, err := execute(NewRootCommand(), "--no-color", "name", "--plain", "SendEmailCommand")

	require.NoError(t, err)
	assert.Equal(t, "-send-email-command\n", stdout)
}

func TestNewRootCommand_UnknownSubcommand(t *testing.T) {
	_, _, err := execute(NewRootCommand(), "deploy")
	assert.Error(t, err)
}

// ============================================================================
// name
// ============================================================================

func TestNameCommand(t *testing.T) {
	t.Run("plain output", func(t *testing.T) {
		stdout, _, err := execute(NewNameCommand(), "--plain", "SendEmailCommand", "notify.SendEmail", "Box[int]")

		require.NoError(t, err)
		assert.Equal(t, "-send-email-command\n-send-email\n-box\n", stdout)
	})

	t.Run("custom separator", func(t *testing.T) {
		stdout, _, err := execute(NewNameCommand(), "--plain", "-s", "_", "SendEmailCommand")

		require.NoError(t, err)
		assert.Equal(t, "_send_email_command\n", stdout)
	})

	t.Run("table output", func(t *testing.T) {
		stdout, _, err := execute(NewNameCommand(), "SendEmailCommand")

		require.NoError(t, err)
		assert.Contains(t, stdout, "Type")
		assert.Contains(t, stdout, "Event")
		assert.Contains(t, stdout, "SendEmailCommand")
		assert.Contains(t, stdout, "-send-email-command")
		assert.NotContains(t, stdout, "no uppercase")
	})

	t.Run("lowercase names derive nothing", func(t *testing.T) {
		stdout, _, err := execute(NewNameCommand(), "lowercase")

		require.NoError(t, err)
		assert.Contains(t, stdout, "(none)")
		assert.Contains(t, stdout, "1 type name(s) have no uppercase letters")
	})

	t.Run("requires an argument", func(t *testing.T) {
		_, _, err := execute(NewNameCommand())
		assert.Error(t, err)
	})
}

// ============================================================================
// config
// ============================================================================

func TestConfigCommand(t *testing.T) {
	names := getSubcommandNames(NewConfigCommand())
	assert.True(t, names["init"])
	assert.True(t, names["show"])
	assert.True(t, names["validate"])
}

func TestConfigInit(t *testing.T) {
	t.Run("writes default file", func(t *testing.T) {
		env := setupTestEnv(t)

		stdout, _, err := execute(NewConfigCommand(), "init", "--service", "mailer")

		require.NoError(t, err)
		assert.Contains(t, stdout, "Created")

		cfg, err := config.Load(env.tmpDir)
		require.NoError(t, err)
		assert.Equal(t, "mailer", cfg.Service.Name)
		assert.Equal(t, "-", cfg.Delegation.Separator)
		assert.Equal(t, "once", cfg.Delegation.Subscription)
		assert.Empty(t, cfg.Validate())
	})

	t.Run("creates target directory", func(t *testing.T) {
		env := setupTestEnv(t)
		target := filepath.Join(env.tmpDir, "services", "mailer")

		_, _, err := execute(NewConfigCommand(), "init", target)

		require.NoError(t, err)
		assert.True(t, config.Exists(target))
	})

	t.Run("keeps existing file without force", func(t *testing.T) {
		env := setupTestEnv(t)
		env.createConfig(func(c *config.Config) { c.Service.Name = "existing" })

		stdout, _, err := execute(NewConfigCommand(), "init")

		require.NoError(t, err)
		assert.Contains(t, stdout, "already exists")

		cfg, err := config.Load(env.tmpDir)
		require.NoError(t, err)
		assert.Equal(t, "existing", cfg.Service.Name)
	})

	t.Run("overwrites with force", func(t *testing.T) {
		env := setupTestEnv(t)
		env.createConfig(func(c *config.Config) { c.Service.Name = "existing" })

		_, _, err := execute(NewConfigCommand(), "init", "--force")

		require.NoError(t, err)
		cfg, err := config.Load(env.tmpDir)
		require.NoError(t, err)
		assert.Equal(t, "herald", cfg.Service.Name)
	})
}

func TestConfigShow(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		setupTestEnv(t)

		stdout, _, err := execute(NewConfigCommand(), "show")

		require.NoError(t, err)
		assert.Contains(t, stdout, "defaults")
		assert.Contains(t, stdout, "delegation.subscription")
		assert.NotContains(t, stdout, "middleware.timeout")
	})

	t.Run("found file", func(t *testing.T) {
		env := setupTestEnv(t)
		env.createConfig(func(c *config.Config) {
			c.Service.Name = "billing"
			c.Middleware.Timeout = "2s"
		})

		stdout, _, err := execute(NewConfigCommand(), "show")

		require.NoError(t, err)
		assert.Contains(t, stdout, config.ConfigFileName)
		assert.Contains(t, stdout, "billing")
		assert.Contains(t, stdout, "2s")
	})

	t.Run("missing explicit file", func(t *testing.T) {
		env := setupTestEnv(t)

		_, _, err := execute(NewConfigCommand(), "show", "--config", filepath.Join(env.tmpDir, "nope.yaml"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "load config")
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		env := setupTestEnv(t)
		env.createConfig(nil)

		stdout, _, err := execute(NewConfigCommand(), "validate")

		require.NoError(t, err)
		assert.Contains(t, stdout, "is valid")
	})

	t.Run("invalid file", func(t *testing.T) {
		env := setupTestEnv(t)
		path := env.createConfig(func(c *config.Config) {
			c.Delegation.Subscription = "forever"
			c.Logging.Format = "xml"
		})

		stdout, _, err := execute(NewConfigCommand(), "validate", "-c", path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 problem(s)")
		assert.Contains(t, stdout, "delegation.subscription")
		assert.Contains(t, stdout, "logging.format")
	})
}

// ============================================================================
// run
// ============================================================================

func TestRunCommand(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setupTestEnv(t)

		stdout, stderr, err := execute(NewRunCommand())

		require.NoError(t, err)
		assert.Contains(t, stdout, "json")
		assert.Contains(t, stdout, "once")
		assert.Contains(t, stdout, "ada@example.com")
		assert.Contains(t, stdout, "grace@example.com")
		assert.Contains(t, stdout, `delivered "Release notes" to ada@example.com`)
		assert.Contains(t, stdout, "2 deliveries completed")
		assert.Contains(t, stderr, "Command completed")
		assert.Contains(t, stderr, "event=-send-email")
	})

	for _, codec := range []string{"msgpack", "protobuf"} {
		t.Run("codec "+codec, func(t *testing.T) {
			setupTestEnv(t)

			stdout, _, err := execute(NewRunCommand(), "--codec", codec, "-r", "lin@example.com", "--subject", "Hi")

			require.NoError(t, err)
			assert.Contains(t, stdout, codec)
			assert.Contains(t, stdout, `delivered "Hi" to lin@example.com`)
			assert.Contains(t, stdout, "1 deliveries completed")
		})
	}

	t.Run("unknown codec", func(t *testing.T) {
		setupTestEnv(t)

		_, _, err := execute(NewRunCommand(), "--codec", "xml")

		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown codec "xml"`)
	})

	t.Run("failing delivery", func(t *testing.T) {
		setupTestEnv(t)

		stdout, stderr, err := execute(NewRunCommand(), "--fail", "ada@example.com")

		require.NoError(t, err)
		assert.Contains(t, stdout, "mailbox ada@example.com unavailable")
		assert.Contains(t, stdout, "1 of 2 deliveries failed")
		assert.Contains(t, stderr, "Command failed")
	})

	t.Run("panicking delivery is recovered", func(t *testing.T) {
		setupTestEnv(t)

		stdout, _, err := execute(NewRunCommand(), "--panic", "grace@example.com")

		require.NoError(t, err)
		assert.Contains(t, stdout, "panicked")
		assert.Contains(t, stdout, "1 of 2 deliveries failed")
	})

	t.Run("metrics", func(t *testing.T) {
		setupTestEnv(t)

		stdout, _, err := execute(NewRunCommand(), "--metrics")

		require.NoError(t, err)
		assert.Contains(t, stdout, "herald_child_executions_total")
		assert.Contains(t, stdout, "herald_listener_invocations_total")
		assert.Contains(t, stdout, "event_name=-send-email")
	})

	t.Run("trace", func(t *testing.T) {
		setupTestEnv(t)

		stdout, _, err := execute(NewRunCommand(), "--trace", "-r", "ada@example.com")

		require.NoError(t, err)
		assert.Contains(t, stdout, "delegation.-send-email")
		assert.Contains(t, stdout, "herald.event.name")
	})

	t.Run("config from file", func(t *testing.T) {
		env := setupTestEnv(t)
		path := env.createConfig(func(c *config.Config) {
			c.Service.Name = "mailer"
			c.Delegation.Separator = "_"
			c.Delegation.Subscription = "persistent"
			c.Logging.Format = "json"
		})

		stdout, stderr, err := execute(NewRunCommand(), "-c", path)

		require.NoError(t, err)
		assert.Contains(t, stdout, "persistent")
		assert.Contains(t, stderr, `"event":"_send_email"`)
		assert.Contains(t, stderr, `"service":"mailer"`)
	})

	t.Run("invalid config", func(t *testing.T) {
		env := setupTestEnv(t)
		env.createConfig(func(c *config.Config) { c.Middleware.Timeout = "soon" })

		_, _, err := execute(NewRunCommand())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestBuildPipeline(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := buildPipeline(&bytes.Buffer{}, config.DefaultConfig(), discardLogger(), false, false)

		require.NoError(t, err)
		assert.Len(t, p.middleware, 3)
		assert.Nil(t, p.metrics)
		assert.Nil(t, p.tracer)
		assert.NoError(t, p.shutdown(context.Background()))
	})

	t.Run("everything enabled", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Middleware.Timeout = "1s"

		p, err := buildPipeline(&bytes.Buffer{}, cfg, discardLogger(), true, true)

		require.NoError(t, err)
		assert.Len(t, p.middleware, 6)
		assert.NotNil(t, p.metrics)
		assert.NotNil(t, p.registry)
		assert.NotNil(t, p.tracer)
		assert.NoError(t, p.shutdown(context.Background()))
	})

	t.Run("nothing enabled", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Middleware = config.MiddlewareConfig{}

		p, err := buildPipeline(&bytes.Buffer{}, cfg, discardLogger(), false, false)

		require.NoError(t, err)
		assert.Empty(t, p.middleware)
	})
}

// ============================================================================
// demo commands
// ============================================================================

func TestSendEmail_Execute(t *testing.T) {
	t.Run("delivers", func(t *testing.T) {
		result, err := (&SendEmail{To: "a@example.com", Subject: "Hi"}).Execute(context.Background())

		require.NoError(t, err)
		assert.Equal(t, `delivered "Hi" to a@example.com`, result)
	})

	t.Run("fails", func(t *testing.T) {
		_, err := (&SendEmail{To: "a@example.com", Fail: true}).Execute(context.Background())
		assert.EqualError(t, err, "mailbox a@example.com unavailable")
	})

	t.Run("panics", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = (&SendEmail{To: "a@example.com", Panic: true}).Execute(context.Background())
		})
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := (&SendEmail{To: "a@example.com"}).Execute(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPublishNewsletter_Execute(t *testing.T) {
	t.Run("delegates per recipient", func(t *testing.T) {
		newsletter := &PublishNewsletter{
			Subject:    "Hi",
			Recipients: []string{"a@example.com", "b@example.com"},
			Failing:    []string{"b@example.com"},
		}
		newsletter.CommandID = "parent"
		newsletter.CorrelationID = "corr"

		var seen []*SendEmail
		newsletter.EventManager().Attach(herald.WildcardEvent, func(ctx context.Context, e herald.Event) error {
			if email, ok := e.Target().(*SendEmail); ok {
				seen = append(seen, email)
			}
			return nil
		})

		result, err := newsletter.Execute(context.Background())

		require.NoError(t, err)
		deliveries := result.([]Delivery)
		require.Len(t, deliveries, 2)
		assert.NoError(t, deliveries[0].Err)
		assert.Error(t, deliveries[1].Err)

		require.Len(t, seen, 2)
		for _, email := range seen {
			assert.Equal(t, "corr", email.GetCorrelationID())
			assert.Equal(t, "parent", email.GetCausationID())
			assert.NotEmpty(t, email.GetCommandID())
		}
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		newsletter := &PublishNewsletter{Recipients: []string{"a@example.com", "b@example.com"}}
		result, err := newsletter.Execute(ctx)

		assert.True(t, errors.Is(err, context.Canceled))
		assert.Len(t, result.([]Delivery), 1)
	})
}

func TestContains(t *testing.T) {
	assert.True(t, contains([]string{"a", "b"}, "b"))
	assert.False(t, contains([]string{"a", "b"}, "c"))
	assert.False(t, contains(nil, "a"))
}

// ============================================================================
// version
// ============================================================================

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(NewVersionCommand("1.2.3", "abc123", "2026-01-01"))

	require.NoError(t, err)
	assert.Contains(t, stdout, "herald")
	assert.Contains(t, stdout, "1.2.3")
	assert.Contains(t, stdout, "abc123")
	assert.Contains(t, stdout, "2026-01-01")
	assert.Contains(t, stdout, herald.Version())
	assert.True(t, strings.Contains(stdout, "OS/Arch"))
}
