// Package commands provides the CLI command implementations for herald.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AshkanYarmoradi/go-herald/cli/styles"
	"github.com/AshkanYarmoradi/go-herald/cli/ui"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// NewRootCommand creates the root command for the herald CLI
func NewRootCommand() *cobra.Command {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "herald",
		Short: "Command delegation toolkit for Go",
		Long: ui.SimpleBanner() + `

Herald runs commands that delegate work to child commands, wrapping
every delegation in a named event that listeners can observe.

` + styles.Title.Render("Quick Start:") + `

  ` + styles.Code.Render("herald name SendEmailCommand") + `   Show the derived event name
  ` + styles.Code.Render("herald config init") + `             Write a herald.yaml
  ` + styles.Code.Render("herald run --trace --metrics") + `   Run the demo newsletter`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				styles.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewNameCommand())
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand(Version, Commit, BuildDate))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.FormatError(err.Error()))
		return err
	}

	return nil
}
