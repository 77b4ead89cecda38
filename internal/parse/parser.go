// Package parse converts raw LLM output into category matches. It
// tolerates JSON wrapped in prose and falls back to keyword extraction
// for fully unstructured responses, so a sloppy model response degrades
// instead of failing the run.
package parse

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/startuprise/riseval/pkg/models"
)

// Mode records how a response was parsed.
type Mode string

const (
	// ModeClean means the response was a valid JSON document.
	ModeClean Mode = "clean"
	// ModeExtracted means a JSON object was dug out of surrounding prose.
	ModeExtracted Mode = "extracted"
	// ModeFallback means matches were recovered by keyword heuristics.
	ModeFallback Mode = "fallback"
)

// CategoryResult is the wire shape the model is instructed to emit for
// each category.
type CategoryResult struct {
	Matches       bool     `json:"matches"`
	Confidence    int      `json:"confidence" jsonschema:"minimum=0,maximum=100"`
	Reasoning     string   `json:"reasoning,omitempty"`
	KeyIndicators []string `json:"key_indicators,omitempty"`
	RiskFactors   []string `json:"risk_factors,omitempty"`
}

// Result is a successfully parsed response.
type Result struct {
	Matches []models.CategoryMatch
	Mode    Mode
}

// Error reports a response no strategy could extract matches from. The
// offending text is preserved so failures stay diagnosable.
type Error struct {
	Text  string
	Cause error
}

func (e *Error) Error() string {
	excerpt := e.Text
	if len(excerpt) > 200 {
		excerpt = excerpt[:200] + "..."
	}
	if e.Cause != nil {
		return fmt.Sprintf("unparseable response: %v: %q", e.Cause, excerpt)
	}
	return fmt.Sprintf("unparseable response: %q", excerpt)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// responseSchema validates the clean/extracted wire format before it is
// trusted. The model must emit an object keyed by category name.
const responseSchema = `{
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {
    "type": "object",
    "required": ["matches", "confidence"],
    "properties": {
      "matches": {"type": "boolean"},
      "confidence": {"type": "number", "minimum": 0, "maximum": 100},
      "reasoning": {"type": "string"},
      "key_indicators": {"type": "array", "items": {"type": "string"}},
      "risk_factors": {"type": "array", "items": {"type": "string"}}
    }
  }
}`

// Parser converts raw responses to category matches. Parsing is pure:
// the same input always yields the same output.
type Parser struct {
	schema *jsonschema.Schema
}

// NewParser compiles the response schema once.
func NewParser() *Parser {
	return &Parser{
		schema: jsonschema.MustCompileString("response.json", responseSchema),
	}
}

// Parse extracts matches for the requested categories from raw text.
//
// Strategies in order: direct JSON, first balanced JSON object embedded
// in prose, keyword fallback. Categories the response does not address
// are simply absent from the result; only a response yielding nothing at
// all returns a *Error.
func (p *Parser) Parse(raw string, categories []models.Category) (*Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &Error{Text: raw, Cause: fmt.Errorf("empty response")}
	}

	if matches, ok := p.tryJSON(trimmed, categories); ok {
		return &Result{Matches: matches, Mode: ModeClean}, nil
	}

	if obj := firstBalancedObject(trimmed); obj != "" && obj != trimmed {
		if matches, ok := p.tryJSON(obj, categories); ok {
			return &Result{Matches: matches, Mode: ModeExtracted}, nil
		}
	}

	if matches := fallbackExtract(trimmed, categories); len(matches) > 0 {
		return &Result{Matches: matches, Mode: ModeFallback}, nil
	}

	return nil, &Error{Text: raw, Cause: fmt.Errorf("no category information found")}
}

// tryJSON attempts to decode and validate doc as the wire format,
// converting it to matches for the requested categories.
func (p *Parser) tryJSON(doc string, categories []models.Category) ([]models.CategoryMatch, bool) {
	var generic any
	if err := json.Unmarshal([]byte(doc), &generic); err != nil {
		return nil, false
	}
	if err := p.schema.Validate(generic); err != nil {
		return nil, false
	}

	var byCategory map[string]CategoryResult
	if err := json.Unmarshal([]byte(doc), &byCategory); err != nil {
		return nil, false
	}

	matches := convertResults(byCategory, categories)
	return matches, len(matches) > 0
}

// convertResults maps wire results onto the requested category set,
// ignoring hallucinated keys. Category names are matched
// case-insensitively because models drift on capitalization.
func convertResults(byCategory map[string]CategoryResult, categories []models.Category) []models.CategoryMatch {
	lookup := make(map[string]CategoryResult, len(byCategory))
	for name, r := range byCategory {
		lookup[strings.ToLower(strings.TrimSpace(name))] = r
	}

	var matches []models.CategoryMatch
	for _, c := range categories {
		r, ok := lookup[strings.ToLower(c.Name)]
		if !ok {
			continue
		}
		matches = append(matches, models.CategoryMatch{
			Category:      c.Name,
			Matches:       r.Matches,
			Confidence:    clampConfidence(r.Confidence),
			Reasoning:     strings.TrimSpace(r.Reasoning),
			KeyIndicators: r.KeyIndicators,
			RiskFactors:   r.RiskFactors,
		})
	}
	return matches
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// ParseBatch decodes a batched response: an object keyed by entity id,
// each value holding the per-category wire format. Fallback extraction
// is not attempted for batches; the orchestrator degrades a failed batch
// to per-entity calls instead.
func (p *Parser) ParseBatch(raw string, entityIDs []string, categories []models.Category) (map[string]*Result, error) {
	trimmed := strings.TrimSpace(raw)
	doc := trimmed
	if !json.Valid([]byte(doc)) {
		doc = firstBalancedObject(trimmed)
	}
	if doc == "" {
		return nil, &Error{Text: raw, Cause: fmt.Errorf("no JSON object in batch response")}
	}

	var byEntity map[string]map[string]CategoryResult
	if err := json.Unmarshal([]byte(doc), &byEntity); err != nil {
		return nil, &Error{Text: raw, Cause: fmt.Errorf("decode batch response: %w", err)}
	}

	mode := ModeClean
	if doc != trimmed {
		mode = ModeExtracted
	}

	results := make(map[string]*Result, len(entityIDs))
	for _, id := range entityIDs {
		byCategory, ok := byEntity[id]
		if !ok {
			continue
		}
		matches := convertResults(byCategory, categories)
		if len(matches) == 0 {
			continue
		}
		results[id] = &Result{Matches: matches, Mode: mode}
	}
	if len(results) == 0 {
		return nil, &Error{Text: raw, Cause: fmt.Errorf("batch response addressed none of %d entities", len(entityIDs))}
	}
	return results, nil
}

// SortMatches orders matches by descending confidence, then name, for
// stable report output.
func SortMatches(matches []models.CategoryMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Category < matches[j].Category
	})
}
