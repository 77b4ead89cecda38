package parse

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/startuprise/riseval/pkg/models"
)

// firstBalancedObject returns the first balanced JSON object or array in
// s, honoring string literals and escapes. Returns "" when none exists.
func firstBalancedObject(s string) string {
	start := -1
	for i, r := range s {
		if r == '{' || r == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
			// literal content, brackets inside strings don't count
		case ch == '{' || ch == '[':
			depth++
		case ch == '}' || ch == ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

var (
	confidenceRe = regexp.MustCompile(`(?i)(?:confidence|score)\s*[:=]?\s*(\d{1,3})|(\d{1,3})\s*%`)
	negativeRe   = regexp.MustCompile(`(?i)\b(no match|not a match|does not match|doesn't match|no fit|not relevant|matches?\s*[:=]?\s*(false|no))\b`)
	positiveRe   = regexp.MustCompile(`(?i)\b(strong match|matches?\s*[:=]?\s*(true|yes)|is a match|good fit|relevant)\b`)
)

// fallbackExtract recovers verdicts from fully unstructured text. The
// text is segmented at category mentions so that one category's verdict
// never bleeds into another's.
func fallbackExtract(text string, categories []models.Category) []models.CategoryMatch {
	lower := strings.ToLower(text)

	// Locate every category mention so each segment can end where the
	// next category begins.
	starts := make(map[string]int, len(categories))
	var positions []int
	for _, c := range categories {
		if idx := strings.Index(lower, strings.ToLower(c.Name)); idx >= 0 {
			starts[c.Name] = idx
			positions = append(positions, idx)
		}
	}
	sort.Ints(positions)

	var matches []models.CategoryMatch
	for _, c := range categories {
		idx, ok := starts[c.Name]
		if !ok {
			continue
		}

		window := segmentFrom(text, idx, positions)

		verdict, ok := extractVerdict(window)
		confidence, found := extractConfidence(window)
		if !ok && !found {
			continue
		}
		if !found {
			// Verdict without a number: a conservative midpoint keeps
			// the match usable without inflating scores.
			confidence = 50
		}
		if !ok {
			// Number without an explicit verdict: read a high confidence
			// as a match.
			verdict = confidence >= 60
		}

		matches = append(matches, models.CategoryMatch{
			Category:   c.Name,
			Matches:    verdict,
			Confidence: clampConfidence(confidence),
			Reasoning:  strings.TrimSpace(window),
		})
	}
	return matches
}

// segmentFrom slices text from a category mention at idx up to the next
// category mention (or a bounded distance, whichever is shorter).
func segmentFrom(text string, idx int, positions []int) string {
	const maxSegment = 400

	end := len(text)
	for _, p := range positions {
		if p > idx && p < end {
			end = p
		}
	}
	if end > idx+maxSegment {
		end = idx + maxSegment
	}
	return text[idx:end]
}

// extractVerdict returns (verdict, recognized). Negatives are checked
// first so "does not match" is never read as a positive.
func extractVerdict(window string) (bool, bool) {
	if negativeRe.MatchString(window) {
		return false, true
	}
	if positiveRe.MatchString(window) {
		return true, true
	}
	return false, false
}

func extractConfidence(window string) (int, bool) {
	m := confidenceRe.FindStringSubmatch(window)
	if m == nil {
		return 0, false
	}
	digits := m[1]
	if digits == "" {
		digits = m[2]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
