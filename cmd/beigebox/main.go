// Package main provides the CLI entry point for BeigeBox, an OpenAI-
// compatible LLM proxy with hybrid routing, multi-backend dispatch, and a
// hook/tool pipeline sitting in front of local and hosted model providers.
//
// # Basic Usage
//
// Start the server:
//
//	beigebox serve --config beigebox.yaml
//
// Check wiring without starting the HTTP server:
//
//	beigebox status --config beigebox.yaml
//
// # Environment Variables
//
// Backend API keys are resolved through config.yaml's ${NAME} expansion,
// not read directly by this binary:
//
//   - BEIGEBOX_CONFIG: path to the config file (default: ./beigebox.yaml)
//   - OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY: provider credentials
//     referenced from config.yaml's backends: list
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() so tests can exercise it without os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "beigebox",
		Short: "BeigeBox - hybrid-routing LLM proxy",
		Long: `BeigeBox is an OpenAI-compatible chat-completion proxy that routes each
request to a local or hosted model backend based on a hybrid classifier,
applies a hook/tool pipeline, and persists every turn to a durable log.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildStatusCmd(),
		buildMigrateCmd(),
	)

	return rootCmd
}
