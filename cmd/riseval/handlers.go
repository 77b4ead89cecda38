package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/startuprise/riseval/internal/catalog"
	"github.com/startuprise/riseval/internal/checkpoint"
	"github.com/startuprise/riseval/internal/config"
	"github.com/startuprise/riseval/internal/observability"
	"github.com/startuprise/riseval/internal/orchestrator"
	"github.com/startuprise/riseval/internal/provider"
	"github.com/startuprise/riseval/internal/ratelimit"
	"github.com/startuprise/riseval/internal/report"
	"github.com/startuprise/riseval/internal/schedule"
	"github.com/startuprise/riseval/internal/source"
	"github.com/startuprise/riseval/pkg/models"
)

// loadConfig loads the config file (or defaults) and applies flag
// overrides. Any rejection maps to exit code 2.
func loadConfig(cmd *cobra.Command, flags *evaluateFlags) (*config.Config, error) {
	var cfg *config.Config
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, &exitError{code: exitConfig, err: err}
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	set := cmd.Flags().Changed
	if set("workers") {
		cfg.Run.Workers = flags.workers
	}
	if set("batch-size") {
		cfg.Run.BatchSize = flags.batchSize
	}
	if set("max-attempts") {
		cfg.Run.MaxAttempts = flags.maxAttempts
	}
	if set("fail-threshold") {
		cfg.Run.FailThreshold = flags.failThreshold
	}
	if set("prefilter") {
		cfg.Run.Prefilter = flags.prefilter
	}
	if set("checkpoint") {
		cfg.Checkpoint.Path = flags.checkpoint
	}
	if set("output") {
		cfg.Report.Path = flags.output
	}
	if set("catalog") {
		cfg.Categories.File = flags.catalogPath
	}
	if set("categories") {
		cfg.Categories.Only = flags.categories
	}
	if set("input") {
		cfg.Source = source.Config{Kind: "json", Path: flags.input}
	}
	if flags.debug {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, &exitError{code: exitConfig, err: err}
	}
	return cfg, nil
}

// loadCategories resolves the category set from the catalog and the
// optional selection.
func loadCategories(cfg *config.Config) ([]models.Category, error) {
	categories := catalog.Default()
	if cfg.Categories.File != "" {
		loaded, err := catalog.LoadFile(cfg.Categories.File)
		if err != nil {
			return nil, &exitError{code: exitConfig, err: err}
		}
		categories = loaded
	}
	if len(cfg.Categories.Only) > 0 {
		selected, err := catalog.Select(categories, cfg.Categories.Only)
		if err != nil {
			return nil, &exitError{code: exitConfig, err: err}
		}
		categories = selected
	}
	return categories, nil
}

// serveMetrics exposes the Prometheus endpoint until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics listener failed", "error", err)
	}
}

func runEvaluate(cmd *cobra.Command, flags *evaluateFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logging)

	categories, err := loadCategories(cfg)
	if err != nil {
		return err
	}

	client, err := provider.New(cfg.Provider)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	src, err := source.New(cfg.Source)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	defer src.Close()

	store, err := checkpoint.NewSQLiteStore(cfg.Checkpoint.Path)
	if err != nil {
		return fmt.Errorf("open checkpoint %s: %w", cfg.Checkpoint.Path, err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
		go serveMetrics(ctx, cfg.Metrics.Addr, logger)
	} else {
		metrics = observability.NewMetrics(nil)
	}

	orch, err := orchestrator.New(orchestrator.Params{
		Client:     client,
		Store:      store,
		Categories: categories,
		Limiter:    ratelimit.NewBucket(cfg.RateLimit),
		Logger:     logger,
		Metrics:    metrics,
		Options: orchestrator.Options{
			Workers:       cfg.Run.Workers,
			BatchSize:     cfg.Run.BatchSize,
			MaxAttempts:   cfg.Run.MaxAttempts,
			Prefilter:     cfg.Run.Prefilter,
			Resume:        flags.resume,
			RetryFailures: flags.retryFailures,
		},
	})
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	runOnce := func(ctx context.Context) (*orchestrator.Summary, error) {
		if cfg.Run.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Run.Timeout)
			defer cancel()
		}

		entities, err := src.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch startups: %w", err)
		}
		if len(entities) == 0 {
			logger.Warn("source returned no startups")
		}

		sum, err := orch.Run(ctx, entities)
		if err != nil {
			return sum, err
		}

		if err := writeReport(ctx, cmd, store, categories, cfg.Report.Path); err != nil {
			return sum, err
		}
		return sum, nil
	}

	if flags.schedule != "" {
		job := func(ctx context.Context) error {
			_, err := runOnce(ctx)
			return err
		}
		runner, err := schedule.New(flags.schedule, job, logger)
		if err != nil {
			return &exitError{code: exitConfig, err: err}
		}

		// First run happens immediately; the schedule covers re-runs.
		if err := job(ctx); err != nil {
			logger.Error("initial run failed", "error", err)
		}
		logger.Info("scheduler running", "schedule", flags.schedule)
		runner.Start(ctx)
		return nil
	}

	sum, err := runOnce(ctx)
	if err != nil {
		return err
	}
	if sum.PermanentlyFailed > cfg.Run.FailThreshold {
		return &exitError{
			code: exitFailThreshold,
			err: fmt.Errorf("%d startups permanently failed (threshold %d)",
				sum.PermanentlyFailed, cfg.Run.FailThreshold),
		}
	}
	return nil
}

// writeReport renders the aggregated report: JSON to the configured
// file (when set) and the text summary to stdout.
func writeReport(ctx context.Context, cmd *cobra.Command, store checkpoint.Store, categories []models.Category, path string) error {
	records, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	rep := report.Build(records, categories)

	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		if err := rep.WriteJSON(f); err != nil {
			f.Close()
			return fmt.Errorf("write report: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	return rep.WriteText(cmd.OutOrStdout())
}

func runReport(cmd *cobra.Command, configPath, checkpointPath, catalogPath, output, format string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return &exitError{code: exitConfig, err: err}
		}
		cfg = loaded
	}
	if checkpointPath != "" {
		cfg.Checkpoint.Path = checkpointPath
	}
	if catalogPath != "" {
		cfg.Categories.File = catalogPath
	}

	categories, err := loadCategories(cfg)
	if err != nil {
		return err
	}

	store, err := checkpoint.NewSQLiteStore(cfg.Checkpoint.Path)
	if err != nil {
		return fmt.Errorf("open checkpoint %s: %w", cfg.Checkpoint.Path, err)
	}
	defer store.Close()

	records, err := store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	rep := report.Build(records, categories)

	out := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "json":
		return rep.WriteJSON(out)
	case "text":
		return rep.WriteText(out)
	default:
		return fmt.Errorf("unknown format %q, expected text or json", format)
	}
}

func runCategories(cmd *cobra.Command, catalogPath string) error {
	categories := catalog.Default()
	if catalogPath != "" {
		loaded, err := catalog.LoadFile(catalogPath)
		if err != nil {
			return err
		}
		categories = loaded
	}

	out := cmd.OutOrStdout()
	for _, c := range categories {
		fmt.Fprintf(out, "%s (weight %.2f)\n", c.Name, c.EffectiveWeight())
		if c.Description != "" {
			fmt.Fprintf(out, "  %s\n", c.Description)
		}
		if len(c.Keywords) > 0 {
			fmt.Fprintf(out, "  keywords: %v\n", c.Keywords)
		}
	}
	return nil
}
