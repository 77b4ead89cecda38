package models

import (
	"fmt"
	"math"
	"time"
)

// Status tracks an entity through the evaluation state machine.
type Status string

const (
	StatusPending           Status = "pending"
	StatusInFlight          Status = "in_flight"
	StatusSucceeded         Status = "succeeded"
	StatusFailed            Status = "failed"
	StatusPermanentlyFailed Status = "permanently_failed"
	StatusSkipped           Status = "skipped"
)

// Terminal reports whether the status ends an entity's participation in
// a run. Failed is not terminal: it marks an attempt that will be retried.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusPermanentlyFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// CategoryMatch is the parsed result of evaluating one entity against
// one category. Immutable once created.
type CategoryMatch struct {
	// Category is the category name this match refers to.
	Category string `json:"category"`

	// Matches is the model's verdict for the category.
	Matches bool `json:"matches"`

	// Confidence is the model's confidence in the verdict, 0-100.
	Confidence int `json:"confidence"`

	// Reasoning is the model's free-text justification.
	Reasoning string `json:"reasoning,omitempty"`

	// KeyIndicators lists supporting signals extracted by the model.
	KeyIndicators []string `json:"key_indicators,omitempty"`

	// RiskFactors lists caveats extracted by the model.
	RiskFactors []string `json:"risk_factors,omitempty"`
}

// Evaluation aggregates all category matches for one entity.
type Evaluation struct {
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Matches    []CategoryMatch `json:"matches"`

	// OverallScore is the weighted maximum confidence across matched
	// categories, 0-100.
	OverallScore int `json:"overall_score"`

	// Tier is the ordinal priority bucket derived from OverallScore.
	Tier int `json:"tier"`

	// Provider and Model record which LLM produced the result.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Tier thresholds. Scores at or above a threshold land in that tier.
const (
	tierOneMin   = 80
	tierTwoMin   = 60
	tierThreeMin = 40
)

// TierForScore buckets an overall score into a priority tier.
// Tier 1 is the strongest fit.
func TierForScore(score int) int {
	switch {
	case score >= tierOneMin:
		return 1
	case score >= tierTwoMin:
		return 2
	case score >= tierThreeMin:
		return 3
	default:
		return 4
	}
}

// Finalize derives OverallScore and Tier from the category matches.
// The overall score is the maximum of confidence*weight over matched
// categories, clamped to 100. Non-matching categories contribute nothing.
func (e *Evaluation) Finalize(categories []Category) {
	weights := make(map[string]float64, len(categories))
	for i := range categories {
		weights[categories[i].Name] = categories[i].EffectiveWeight()
	}

	best := 0.0
	for _, m := range e.Matches {
		if !m.Matches {
			continue
		}
		w, ok := weights[m.Category]
		if !ok {
			w = 1.0
		}
		if s := float64(m.Confidence) * w; s > best {
			best = s
		}
	}

	e.OverallScore = int(math.Min(math.Round(best), 100))
	e.Tier = TierForScore(e.OverallScore)
}

// Validate checks the one-match-per-category invariant: an evaluation is
// complete only when it carries exactly one CategoryMatch for every
// configured category, and no matches for unknown categories.
func (e *Evaluation) Validate(categories []Category) error {
	if e.EntityID == "" {
		return fmt.Errorf("evaluation missing entity id")
	}

	seen := make(map[string]int, len(e.Matches))
	for _, m := range e.Matches {
		seen[m.Category]++
		if m.Confidence < 0 || m.Confidence > 100 {
			return fmt.Errorf("entity %s: category %q confidence %d out of range", e.EntityID, m.Category, m.Confidence)
		}
	}

	for i := range categories {
		name := categories[i].Name
		switch seen[name] {
		case 1:
			delete(seen, name)
		case 0:
			return fmt.Errorf("entity %s: missing match for category %q", e.EntityID, name)
		default:
			return fmt.Errorf("entity %s: duplicate matches for category %q", e.EntityID, name)
		}
	}

	for name := range seen {
		return fmt.Errorf("entity %s: match for unknown category %q", e.EntityID, name)
	}
	return nil
}
