// Package report aggregates checkpoint records into the final run
// summary: per-category match statistics, tier distribution and the
// failure list. Aggregation is pure so reports can be regenerated from
// any checkpoint at any time.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/startuprise/riseval/internal/checkpoint"
	"github.com/startuprise/riseval/pkg/models"
)

// CategorySummary aggregates one category across all evaluations.
type CategorySummary struct {
	Name string `json:"name"`

	// Matched counts entities the model matched to the category.
	Matched int `json:"matched"`

	// Evaluated counts entities with any verdict for the category.
	Evaluated int `json:"evaluated"`

	// MeanConfidence averages confidence over matched entities only.
	MeanConfidence float64 `json:"mean_confidence"`
}

// EntitySummary is one row of the ranked results table.
type EntitySummary struct {
	EntityID     string    `json:"entity_id"`
	EntityName   string    `json:"entity_name"`
	OverallScore int       `json:"overall_score"`
	Tier         int       `json:"tier"`
	TopCategory  string    `json:"top_category,omitempty"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// Failure records one entity that never produced an evaluation.
type Failure struct {
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name,omitempty"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error"`
}

// Report is the aggregated outcome of a run.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`

	Total             int `json:"total"`
	Succeeded         int `json:"succeeded"`
	PermanentlyFailed int `json:"permanently_failed"`
	Skipped           int `json:"skipped"`
	Incomplete        int `json:"incomplete"`

	Categories []CategorySummary `json:"categories"`
	Tiers      map[int]int       `json:"tiers"`
	Entities   []EntitySummary   `json:"entities"`
	Failures   []Failure         `json:"failures,omitempty"`
}

// Build aggregates records into a report. The categories argument fixes
// the category order; categories absent from every record still appear
// with zero counts.
func Build(records map[string]*checkpoint.Record, categories []models.Category) *Report {
	r := &Report{
		GeneratedAt: time.Now().UTC(),
		Tiers:       map[int]int{1: 0, 2: 0, 3: 0, 4: 0},
	}

	sums := make(map[string]*CategorySummary, len(categories))
	for i := range categories {
		cs := &CategorySummary{Name: categories[i].Name}
		sums[cs.Name] = cs
		r.Categories = append(r.Categories, CategorySummary{}) // placeholder, filled below
	}

	confidenceTotals := make(map[string]int, len(categories))

	for _, rec := range records {
		r.Total++
		switch rec.Status {
		case models.StatusSucceeded:
			r.Succeeded++
		case models.StatusPermanentlyFailed:
			r.PermanentlyFailed++
			r.Failures = append(r.Failures, Failure{
				EntityID:   rec.EntityID,
				EntityName: rec.EntityName,
				Attempts:   rec.Attempts,
				LastError:  rec.LastError,
			})
			continue
		case models.StatusSkipped:
			r.Skipped++
		default:
			// Pending, in-flight or failed: the run was interrupted.
			r.Incomplete++
			continue
		}

		eval := rec.Evaluation
		if eval == nil {
			continue
		}

		r.Tiers[eval.Tier]++
		r.Entities = append(r.Entities, EntitySummary{
			EntityID:     eval.EntityID,
			EntityName:   eval.EntityName,
			OverallScore: eval.OverallScore,
			Tier:         eval.Tier,
			TopCategory:  topCategory(eval),
			EvaluatedAt:  eval.EvaluatedAt,
		})

		for _, m := range eval.Matches {
			cs, ok := sums[m.Category]
			if !ok {
				continue
			}
			cs.Evaluated++
			if m.Matches {
				cs.Matched++
				confidenceTotals[m.Category] += m.Confidence
			}
		}
	}

	for i := range categories {
		cs := sums[categories[i].Name]
		if cs.Matched > 0 {
			mean := float64(confidenceTotals[cs.Name]) / float64(cs.Matched)
			cs.MeanConfidence = math.Round(mean*10) / 10
		}
		r.Categories[i] = *cs
	}

	sort.Slice(r.Entities, func(i, j int) bool {
		if r.Entities[i].OverallScore != r.Entities[j].OverallScore {
			return r.Entities[i].OverallScore > r.Entities[j].OverallScore
		}
		return r.Entities[i].EntityID < r.Entities[j].EntityID
	})
	sort.Slice(r.Failures, func(i, j int) bool {
		return r.Failures[i].EntityID < r.Failures[j].EntityID
	})

	return r
}

// topCategory names the matched category with the highest confidence.
func topCategory(eval *models.Evaluation) string {
	best := ""
	bestConfidence := -1
	for _, m := range eval.Matches {
		if m.Matches && m.Confidence > bestConfidence {
			best = m.Category
			bestConfidence = m.Confidence
		}
	}
	return best
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText renders a human-readable summary table.
func (r *Report) WriteText(w io.Writer) error {
	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	p("Evaluation report (generated %s)\n\n", r.GeneratedAt.Format(time.RFC3339))
	p("Entities: %d total, %d succeeded, %d failed, %d skipped", r.Total, r.Succeeded, r.PermanentlyFailed, r.Skipped)
	if r.Incomplete > 0 {
		p(", %d incomplete", r.Incomplete)
	}
	p("\n\nTiers:\n")
	for tier := 1; tier <= 4; tier++ {
		p("  tier %d: %d\n", tier, r.Tiers[tier])
	}

	p("\nCategories:\n")
	for _, cs := range r.Categories {
		p("  %-40s %4d/%d matched", cs.Name, cs.Matched, cs.Evaluated)
		if cs.Matched > 0 {
			p("  (mean confidence %.1f)", cs.MeanConfidence)
		}
		p("\n")
	}

	if len(r.Entities) > 0 {
		p("\nTop entities:\n")
		limit := len(r.Entities)
		if limit > 20 {
			limit = 20
		}
		for _, e := range r.Entities[:limit] {
			p("  %3d  tier %d  %-30s %s\n", e.OverallScore, e.Tier, e.EntityName, e.TopCategory)
		}
	}

	if len(r.Failures) > 0 {
		p("\nFailures:\n")
		for _, f := range r.Failures {
			p("  %s (%d attempts): %s\n", f.EntityID, f.Attempts, f.LastError)
		}
	}

	return err
}
