package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/startuprise/riseval/internal/backoff"
	"github.com/startuprise/riseval/internal/catalog"
	"github.com/startuprise/riseval/internal/checkpoint"
	"github.com/startuprise/riseval/internal/parse"
	"github.com/startuprise/riseval/internal/provider"
	"github.com/startuprise/riseval/pkg/models"
)

// processBatch evaluates one group of entities. Groups larger than one
// get a single batched prompt first; entities the batch could not cover
// fall back to individual evaluation with the full retry budget.
func (o *Orchestrator) processBatch(ctx context.Context, batch []models.Entity, state *runState) error {
	if len(batch) == 1 {
		return o.processEntity(ctx, &batch[0], state)
	}

	remaining, err := o.tryBatchCall(ctx, batch, state)
	if err != nil {
		return err
	}
	for i := range remaining {
		if err := o.processEntity(ctx, &remaining[i], state); err != nil {
			return err
		}
	}
	return nil
}

// tryBatchCall makes one batched LLM call and checkpoints every entity
// it fully covers. It returns the entities that still need individual
// evaluation; only infrastructure failures return an error.
func (o *Orchestrator) tryBatchCall(ctx context.Context, batch []models.Entity, state *runState) ([]models.Entity, error) {
	// Batching assumes a uniform category set per prompt. Entities the
	// pre-filter would narrow are evaluated individually instead.
	eligible := make([]models.Entity, 0, len(batch))
	var remaining []models.Entity
	for _, e := range batch {
		if o.opts.Prefilter {
			active, _ := catalog.Prefilter(&e, o.categories)
			if len(active) != len(o.categories) {
				remaining = append(remaining, e)
				continue
			}
		}
		eligible = append(eligible, e)
	}
	if len(eligible) < 2 {
		return batch, nil
	}

	ids := make([]string, len(eligible))
	for i := range eligible {
		ids[i] = eligible[i].ID
		if err := o.appendRecord(ctx, &checkpoint.Record{
			EntityID:   eligible[i].ID,
			EntityName: eligible[i].Name,
			Status:     models.StatusInFlight,
		}); err != nil {
			return nil, err
		}
	}

	o.metrics.EntitiesInFlight.Add(float64(len(eligible)))
	defer o.metrics.EntitiesInFlight.Sub(float64(len(eligible)))

	comp, err := o.complete(ctx, o.builder.Batch(eligible, o.categories))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Warn("batch call failed, degrading to individual evaluation",
			"entities", len(eligible), "error", err)
		return batch, nil
	}

	results, err := o.parser.ParseBatch(comp.Text, ids, o.categories)
	if err != nil {
		o.metrics.ParseFailuresTotal.WithLabelValues("failed").Inc()
		o.logger.Warn("batch response unusable, degrading to individual evaluation",
			"entities", len(eligible), "error", err)
		return batch, nil
	}

	for i := range eligible {
		e := &eligible[i]
		res, ok := results[e.ID]
		if !ok {
			remaining = append(remaining, *e)
			continue
		}

		eval := o.assemble(e, res.Matches, nil, comp.Model)
		if err := eval.Validate(o.categories); err != nil {
			o.logger.Warn("batch result incomplete, re-evaluating individually",
				"entity", e.ID, "error", err)
			remaining = append(remaining, *e)
			continue
		}

		if err := o.finishEntity(ctx, &checkpoint.Record{
			EntityID:   e.ID,
			EntityName: e.Name,
			Status:     models.StatusSucceeded,
			Attempts:   1,
			Evaluation: eval,
		}, state); err != nil {
			return nil, err
		}
		o.logger.Info("entity evaluated",
			"entity", e.ID, "name", e.Name, "score", eval.OverallScore, "tier", eval.Tier, "mode", "batch")
	}
	return remaining, nil
}

// processEntity drives one entity to a terminal state.
func (o *Orchestrator) processEntity(ctx context.Context, e *models.Entity, state *runState) error {
	active := o.categories
	var skipped []models.Category
	if o.opts.Prefilter {
		active, skipped = catalog.Prefilter(e, o.categories)
	}

	// Nothing survived the pre-filter: terminal without an LLM call.
	if len(active) == 0 {
		eval := o.assemble(e, nil, skipped, "")
		o.logger.Info("entity skipped by pre-filter", "entity", e.ID, "name", e.Name)
		return o.finishEntity(ctx, &checkpoint.Record{
			EntityID:   e.ID,
			EntityName: e.Name,
			Status:     models.StatusSkipped,
			Evaluation: eval,
		}, state)
	}

	if err := o.appendRecord(ctx, &checkpoint.Record{
		EntityID:   e.ID,
		EntityName: e.Name,
		Status:     models.StatusInFlight,
	}); err != nil {
		return err
	}

	o.metrics.EntitiesInFlight.Inc()
	defer o.metrics.EntitiesInFlight.Dec()

	var lastErr error
	res, err := backoff.Retry(ctx, o.opts.MaxAttempts, o.policyFor,
		func(attempt int) (*models.Evaluation, error) {
			if attempt > 1 {
				o.metrics.RetriesTotal.WithLabelValues(retryReason(lastErr)).Inc()
				o.logger.Warn("retrying entity",
					"entity", e.ID, "attempt", attempt, "error", lastErr)
			}

			eval, err := o.evaluateOnce(ctx, e, active, skipped)
			if err != nil {
				lastErr = err
				// Each failed attempt is durable so a crash mid-retry
				// resumes with the attempt history intact.
				if ctx.Err() == nil {
					if aerr := o.appendRecord(ctx, &checkpoint.Record{
						EntityID:   e.ID,
						EntityName: e.Name,
						Status:     models.StatusFailed,
						Attempts:   attempt,
						LastError:  err.Error(),
					}); aerr != nil {
						return nil, backoff.Permanent(aerr)
					}
				}
			}
			return eval, err
		})

	switch {
	case err == nil:
		eval := res.Value
		if aerr := o.finishEntity(ctx, &checkpoint.Record{
			EntityID:   e.ID,
			EntityName: e.Name,
			Status:     models.StatusSucceeded,
			Attempts:   res.Attempts,
			Evaluation: eval,
		}, state); aerr != nil {
			return aerr
		}
		o.logger.Info("entity evaluated",
			"entity", e.ID, "name", e.Name, "score", eval.OverallScore, "tier", eval.Tier, "attempts", res.Attempts)
		return nil

	case errors.Is(err, backoff.ErrAttemptsExhausted):
		o.logger.Error("entity permanently failed",
			"entity", e.ID, "name", e.Name, "attempts", res.Attempts, "error", res.LastErr)
		return o.finishEntity(ctx, &checkpoint.Record{
			EntityID:   e.ID,
			EntityName: e.Name,
			Status:     models.StatusPermanentlyFailed,
			Attempts:   res.Attempts,
			LastError:  res.LastErr.Error(),
		}, state)

	default:
		// Cancellation. The last failed-attempt record already marks the
		// entity non-terminal, so resume picks it up.
		return err
	}
}

// evaluateOnce performs a single LLM call and converts the response to a
// complete evaluation. Every returned error is retryable unless wrapped
// by backoff.Permanent.
func (o *Orchestrator) evaluateOnce(ctx context.Context, e *models.Entity, active, skipped []models.Category) (*models.Evaluation, error) {
	comp, err := o.complete(ctx, o.builder.Single(e, active))
	if err != nil {
		if !provider.IsRetryable(err) && ctx.Err() == nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	parsed, err := o.parser.Parse(comp.Text, active)
	if err != nil {
		o.metrics.ParseFailuresTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	if parsed.Mode != parse.ModeClean {
		o.metrics.ParseFailuresTotal.WithLabelValues(string(parsed.Mode)).Inc()
	}

	eval := o.assemble(e, parsed.Matches, skipped, comp.Model)
	if err := eval.Validate(o.categories); err != nil {
		return nil, fmt.Errorf("incomplete response: %w", err)
	}
	return eval, nil
}

// complete issues one rate-limited provider call with timing metrics.
func (o *Orchestrator) complete(ctx context.Context, userPrompt string) (*provider.Completion, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	comp, err := o.client.Complete(ctx, &provider.CompletionRequest{
		System: o.builder.System(),
		Prompt: userPrompt,
	})
	elapsed := time.Since(start).Seconds()

	model := ""
	status := "success"
	if comp != nil {
		model = comp.Model
	}
	if err != nil {
		status = "error"
	}
	o.metrics.LLMRequestDuration.WithLabelValues(o.client.Name(), model).Observe(elapsed)
	o.metrics.LLMRequestsTotal.WithLabelValues(o.client.Name(), model, status).Inc()
	return comp, err
}

// assemble builds a finalized evaluation from parsed matches plus
// zero-confidence entries for pre-filtered categories.
func (o *Orchestrator) assemble(e *models.Entity, matches []models.CategoryMatch, skipped []models.Category, model string) *models.Evaluation {
	all := make([]models.CategoryMatch, 0, len(matches)+len(skipped))
	all = append(all, matches...)
	for i := range skipped {
		all = append(all, catalog.SkippedMatch(skipped[i].Name))
	}
	parse.SortMatches(all)

	eval := &models.Evaluation{
		EntityID:    e.ID,
		EntityName:  e.Name,
		Matches:     all,
		Provider:    o.client.Name(),
		Model:       model,
		EvaluatedAt: time.Now().UTC(),
	}
	eval.Finalize(o.categories)
	return eval
}

// defaultPolicyFor picks the retry schedule: rate limits wait on the
// provider's longer window, everything else uses the default schedule.
func defaultPolicyFor(err error) backoff.Policy {
	if provider.IsRateLimited(err) {
		return backoff.RateLimited()
	}
	return backoff.Default()
}

// retryReason labels a retry for metrics.
func retryReason(err error) string {
	if err == nil {
		return "unknown"
	}
	var perr *parse.Error
	if errors.As(err, &perr) {
		return "parse"
	}
	return string(provider.ReasonOf(err))
}
