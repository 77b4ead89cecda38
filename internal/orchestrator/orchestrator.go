// Package orchestrator drives an evaluation run: it fans entities out to
// a bounded worker pool, calls the LLM with retries, and checkpoints
// every terminal outcome so interrupted runs resume where they stopped.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/startuprise/riseval/internal/backoff"
	"github.com/startuprise/riseval/internal/checkpoint"
	"github.com/startuprise/riseval/internal/observability"
	"github.com/startuprise/riseval/internal/parse"
	"github.com/startuprise/riseval/internal/prompt"
	"github.com/startuprise/riseval/internal/provider"
	"github.com/startuprise/riseval/internal/ratelimit"
	"github.com/startuprise/riseval/pkg/models"
)

// Options tunes a run.
type Options struct {
	// Workers bounds concurrent evaluations.
	Workers int

	// BatchSize groups entities into one prompt. 1 disables batching.
	BatchSize int

	// MaxAttempts bounds LLM calls per entity, including the first.
	MaxAttempts int

	// Prefilter skips categories with no keyword overlap before
	// prompting, trading recall for cost.
	Prefilter bool

	// Resume skips entities whose checkpoint record is already terminal.
	Resume bool

	// RetryFailures re-attempts permanently failed entities on resume.
	RetryFailures bool
}

// Params wires an Orchestrator.
type Params struct {
	Client     provider.Client
	Store      checkpoint.Store
	Categories []models.Category
	Limiter    *ratelimit.Bucket
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Options    Options
}

// Orchestrator coordinates one or more evaluation runs over a shared
// client, checkpoint store and category set.
type Orchestrator struct {
	client     provider.Client
	store      checkpoint.Store
	categories []models.Category
	parser     *parse.Parser
	builder    *prompt.Builder
	limiter    *ratelimit.Bucket
	logger     *slog.Logger
	metrics    *observability.Metrics
	opts       Options

	// policyFor picks the retry schedule per error. Overridden in tests.
	policyFor func(err error) backoff.Policy
}

// New validates params and builds an Orchestrator.
func New(p Params) (*Orchestrator, error) {
	if p.Client == nil {
		return nil, fmt.Errorf("orchestrator requires a provider client")
	}
	if p.Store == nil {
		return nil, fmt.Errorf("orchestrator requires a checkpoint store")
	}
	if len(p.Categories) == 0 {
		return nil, fmt.Errorf("orchestrator requires at least one category")
	}

	opts := p.Options
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}

	o := &Orchestrator{
		client:     p.Client,
		store:      p.Store,
		categories: p.Categories,
		parser:     parse.NewParser(),
		builder:    prompt.NewBuilder(0),
		limiter:    p.Limiter,
		logger:     logger,
		metrics:    metrics,
		opts:       opts,
	}
	o.policyFor = defaultPolicyFor
	return o, nil
}

// Summary reports the outcome of one run. Counts include entities whose
// terminal checkpoint record was carried over by resume, so they reflect
// the final state of every entity the run was asked about.
type Summary struct {
	RunID             string        `json:"run_id"`
	Total             int           `json:"total"`
	Succeeded         int           `json:"succeeded"`
	PermanentlyFailed int           `json:"permanently_failed"`
	Skipped           int           `json:"skipped"`
	Resumed           int           `json:"resumed"`
	Duration          time.Duration `json:"duration"`
}

// runState is the mutable shared state of one Run call.
type runState struct {
	mu  sync.Mutex
	sum Summary
}

func (s *runState) count(status models.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch status {
	case models.StatusSucceeded:
		s.sum.Succeeded++
	case models.StatusPermanentlyFailed:
		s.sum.PermanentlyFailed++
	case models.StatusSkipped:
		s.sum.Skipped++
	}
}

// Run evaluates entities until all are terminal or ctx is cancelled.
// It returns an error only for infrastructure failures (checkpoint
// writes, cancellation); per-entity failures are checkpointed and
// counted instead.
func (o *Orchestrator) Run(ctx context.Context, entities []models.Entity) (*Summary, error) {
	start := time.Now()
	state := &runState{}
	state.sum.RunID = uuid.NewString()
	state.sum.Total = len(entities)

	work, err := o.planWork(ctx, entities, state)
	if err != nil {
		return nil, err
	}

	o.logger.Info("run starting",
		"run", state.sum.RunID,
		"entities", len(entities),
		"pending", len(work),
		"resumed", state.sum.Resumed,
		"workers", o.opts.Workers,
		"batch_size", o.opts.BatchSize,
		"categories", len(o.categories))

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []models.Entity)

	g.Go(func() error {
		defer close(batches)
		for len(work) > 0 {
			n := o.opts.BatchSize
			if n > len(work) {
				n = len(work)
			}
			select {
			case batches <- work[:n]:
				work = work[n:]
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < o.opts.Workers; i++ {
		g.Go(func() error {
			for batch := range batches {
				if err := o.processBatch(gctx, batch, state); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err = g.Wait()
	state.sum.Duration = time.Since(start)

	sum := state.sum
	o.logger.Info("run finished",
		"run", sum.RunID,
		"succeeded", sum.Succeeded,
		"permanently_failed", sum.PermanentlyFailed,
		"skipped", sum.Skipped,
		"resumed", sum.Resumed,
		"duration", sum.Duration)

	if err != nil {
		return &sum, err
	}
	return &sum, nil
}

// planWork loads prior checkpoint state and decides which entities still
// need processing. Terminal records are carried into the summary;
// duplicates within the input are dropped.
func (o *Orchestrator) planWork(ctx context.Context, entities []models.Entity, state *runState) ([]models.Entity, error) {
	prior := map[string]*checkpoint.Record{}
	if o.opts.Resume {
		loaded, err := o.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		prior = loaded
	}

	seen := make(map[string]bool, len(entities))
	work := make([]models.Entity, 0, len(entities))
	for _, e := range entities {
		if e.ID == "" {
			return nil, fmt.Errorf("entity %q has no id", e.Name)
		}
		if seen[e.ID] {
			o.logger.Warn("duplicate entity id in source, keeping first", "entity", e.ID)
			state.mu.Lock()
			state.sum.Total--
			state.mu.Unlock()
			continue
		}
		seen[e.ID] = true

		rec, ok := prior[e.ID]
		if !ok || !rec.Status.Terminal() {
			work = append(work, e)
			continue
		}
		if rec.Status == models.StatusPermanentlyFailed && o.opts.RetryFailures {
			work = append(work, e)
			continue
		}

		state.mu.Lock()
		state.sum.Resumed++
		state.mu.Unlock()
		state.count(rec.Status)
	}
	return work, nil
}

// appendRecord writes one checkpoint record. A write failure is fatal:
// continuing would break the resume guarantee.
func (o *Orchestrator) appendRecord(ctx context.Context, rec *checkpoint.Record) error {
	rec.UpdatedAt = time.Now().UTC()
	if err := o.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("checkpoint entity %s: %w", rec.EntityID, err)
	}
	o.metrics.CheckpointWritesTotal.Inc()
	return nil
}

// finishEntity checkpoints a terminal record and updates counters.
func (o *Orchestrator) finishEntity(ctx context.Context, rec *checkpoint.Record, state *runState) error {
	if err := o.appendRecord(ctx, rec); err != nil {
		return err
	}
	state.count(rec.Status)
	o.metrics.EvaluationsTotal.WithLabelValues(string(rec.Status)).Inc()
	return nil
}
