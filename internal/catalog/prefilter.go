package catalog

import (
	"strings"

	"github.com/startuprise/riseval/pkg/models"
)

// Prefilter splits the category set for one entity into categories worth
// sending to the model and categories with no keyword overlap at all.
//
// This is a cost/recall trade-off, not a correctness requirement: a
// category can match semantically without sharing any keyword with the
// entity text, and such false negatives are accepted when the filter is
// enabled. Thresholds here are tunable policy, not validated bounds.
func Prefilter(entity *models.Entity, categories []models.Category) (active, skipped []models.Category) {
	text := entity.SearchText()

	for _, c := range categories {
		if len(c.Keywords) == 0 || keywordOverlap(text, c.Keywords) {
			active = append(active, c)
		} else {
			skipped = append(skipped, c)
		}
	}
	return active, skipped
}

func keywordOverlap(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// SkippedMatch records a pre-filtered category as a zero-confidence
// non-match so that completed evaluations still carry exactly one match
// per configured category.
func SkippedMatch(category string) models.CategoryMatch {
	return models.CategoryMatch{
		Category:   category,
		Matches:    false,
		Confidence: 0,
		Reasoning:  "skipped by keyword pre-filter",
	}
}
