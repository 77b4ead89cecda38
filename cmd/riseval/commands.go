package main

import (
	"github.com/spf13/cobra"
)

// evaluateFlags collects the evaluate command's flag values. Flags that
// were set explicitly override the config file.
type evaluateFlags struct {
	configPath    string
	input         string
	categories    []string
	catalogPath   string
	workers       int
	batchSize     int
	maxAttempts   int
	failThreshold int
	prefilter     bool
	resume        bool
	retryFailures bool
	checkpoint    string
	output        string
	schedule      string
	debug         bool
}

func buildEvaluateCmd() *cobra.Command {
	var flags evaluateFlags

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate startups against the fit categories",
		Long: `Evaluate every startup from the configured source against the fit
categories, checkpointing each result. Re-running with --resume skips
startups that already reached a terminal state.

Exit codes:
  0  run completed within the failure threshold
  1  run completed but permanently failed startups exceed --fail-threshold
  2  configuration was rejected before the run started`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, &flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")
	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "JSON file of startups (overrides the configured source)")
	cmd.Flags().StringSliceVar(&flags.categories, "categories", nil, "Restrict the run to the named categories")
	cmd.Flags().StringVar(&flags.catalogPath, "catalog", "", "YAML category catalog (overrides the built-in set)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Worker pool size")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "Startups per LLM prompt (1 disables batching)")
	cmd.Flags().IntVar(&flags.maxAttempts, "max-attempts", 0, "LLM attempts per startup, including the first")
	cmd.Flags().IntVar(&flags.failThreshold, "fail-threshold", 0, "Permanently failed startups tolerated before exit code 1")
	cmd.Flags().BoolVar(&flags.prefilter, "prefilter", false, "Skip categories with no keyword overlap (trades recall for cost)")
	cmd.Flags().BoolVar(&flags.resume, "resume", false, "Skip startups already terminal in the checkpoint")
	cmd.Flags().BoolVar(&flags.retryFailures, "retry-failures", false, "With --resume, re-attempt permanently failed startups")
	cmd.Flags().StringVar(&flags.checkpoint, "checkpoint", "", "SQLite checkpoint file")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the JSON report to this file")
	cmd.Flags().StringVar(&flags.schedule, "schedule", "", "Re-run on a cron schedule (e.g. \"@daily\") until interrupted")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	return cmd
}

func buildReportCmd() *cobra.Command {
	var (
		configPath     string
		checkpointPath string
		catalogPath    string
		output         string
		format         string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Regenerate the report from an existing checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, configPath, checkpointPath, catalogPath, output, format)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")
	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "SQLite checkpoint file")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML category catalog (overrides the built-in set)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}

func buildCategoriesCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the fit categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCategories(cmd, catalogPath)
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML category catalog (overrides the built-in set)")

	return cmd
}
