// herald is the command-line interface for the go-herald library.
//
// Usage:
//
//	herald <command> [flags]
//
// Commands:
//
//	name        Show the event names derived from type names
//	run         Run the demo newsletter through the delegation pipeline
//	config      Manage herald.yaml
//	version     Show version information
//
// Examples:
//
//	# Derive an event name
//	herald name SendEmailCommand
//
//	# Write a default configuration
//	herald config init
//
//	# Run the demo with tracing and metrics
//	herald run --trace --metrics
package main

import (
	"os"

	"github.com/AshkanYarmoradi/go-herald/cli/commands"
)

// Build information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.BuildDate = buildDate

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
