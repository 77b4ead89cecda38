// Package schedule re-runs the evaluation pipeline on a cron schedule,
// so catalogs that grow over time are re-scored without manual runs.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Runner triggers a job on a cron schedule. Overlapping executions are
// prevented: a tick that arrives while the job is still running is
// dropped with a warning.
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
}

// New parses spec (standard five-field cron syntax, or descriptors like
// "@hourly") and registers job. Start must be called to begin ticking.
func New(spec string, job Job, logger *slog.Logger) (*Runner, error) {
	if job == nil {
		return nil, fmt.Errorf("schedule requires a job")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		cron:   cron.New(),
		logger: logger,
	}

	_, err := r.cron.AddFunc(spec, func() {
		r.tick(spec, job)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return r, nil
}

func (r *Runner) tick(spec string, job Job) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.logger.Warn("skipping scheduled run, previous run still in progress", "schedule", spec)
		return
	}
	r.running = true
	ctx := r.ctx
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if ctx == nil {
		ctx = context.Background()
	}

	r.logger.Info("scheduled run starting", "schedule", spec)
	if err := job(ctx); err != nil {
		r.logger.Error("scheduled run failed", "schedule", spec, "error", err)
	}
}

// Start begins the schedule and blocks until ctx is cancelled, then
// waits for any in-progress job to observe the cancellation and finish.
// Jobs run under ctx, so an interrupt also cancels an in-flight run.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	r.cron.Start()
	<-ctx.Done()
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
}
