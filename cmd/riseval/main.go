// Package main provides the CLI entry point for riseval, the Startup
// Rise batch evaluation pipeline.
//
// riseval scores startup records against a set of strategic fit
// categories using an LLM, checkpointing every result so interrupted
// runs resume where they stopped.
//
// # Basic Usage
//
// Evaluate a catalog:
//
//	riseval evaluate --config riseval.yaml
//
// Resume an interrupted run:
//
//	riseval evaluate --config riseval.yaml --resume
//
// Regenerate the report from an existing checkpoint:
//
//	riseval report --checkpoint riseval-checkpoint.db
//
// # Environment Variables
//
// API keys can be provided via environment variables instead of the
// config file:
//
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//   - GEMINI_API_KEY: Google API key for Gemini models
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Exit codes: 1 means the run finished but exceeded the failure
// threshold, 2 means the configuration was rejected before any entity
// was processed.
const (
	exitFailThreshold = 1
	exitConfig        = 2
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "riseval",
		Short: "riseval - batch LLM evaluation of startups against fit categories",
		Long: `riseval evaluates startup records against strategic fit categories
using an LLM, with bounded concurrency, retries and durable checkpoints.

Supported providers: Anthropic (Claude), OpenAI (GPT), Google (Gemini)
Supported sources: PostgreSQL, SQLite, JSON exports`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildEvaluateCmd(),
		buildReportCmd(),
		buildCategoriesCmd(),
	)

	return rootCmd
}
