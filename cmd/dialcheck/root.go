package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dialcheck",
		Short: "dialcheck - evaluate AI call-center agents over real phone calls",
		Long: `dialcheck dispatches simulated phone calls to an AI call-center agent,
records the conversation, and has an LLM judge score each call for accuracy,
empathy, and response time.

Suites are YAML files describing caller personas, behaviors, and questions.
Results land in object storage as JSON reports and are served by a local
dashboard.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newNewCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newCacheCommand())
	cmd.AddCommand(newSessionCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
