// Package prompt renders entities and the category catalog into bounded
// evaluation prompts. Building a prompt has no side effects.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/invopop/jsonschema"

	"github.com/startuprise/riseval/internal/parse"
	"github.com/startuprise/riseval/pkg/models"
)

// DefaultMaxDescriptionRunes bounds entity descriptions so prompts stay
// under provider input limits even for verbose records.
const DefaultMaxDescriptionRunes = 2000

// Builder renders evaluation prompts.
type Builder struct {
	maxDescriptionRunes int
	resultSchema        string
}

// NewBuilder creates a prompt builder. maxDescriptionRunes <= 0 uses the
// default budget.
func NewBuilder(maxDescriptionRunes int) *Builder {
	if maxDescriptionRunes <= 0 {
		maxDescriptionRunes = DefaultMaxDescriptionRunes
	}
	return &Builder{
		maxDescriptionRunes: maxDescriptionRunes,
		resultSchema:        reflectResultSchema(),
	}
}

// reflectResultSchema derives the per-category output schema from the
// wire type the parser consumes, so prompt instructions and parsing can
// never drift apart.
func reflectResultSchema() string {
	reflector := &jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&parse.CategoryResult{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		// Reflection over our own struct cannot fail at runtime.
		panic(fmt.Sprintf("prompt: reflect result schema: %v", err))
	}
	return string(data)
}

// System returns the system prompt shared by all evaluation calls.
func (b *Builder) System() string {
	return "You are an investment analyst evaluating startups against strategic fit categories. " +
		"Respond with JSON only, no prose, following the requested format exactly."
}

// Single renders the prompt for one entity against the active categories.
func (b *Builder) Single(entity *models.Entity, categories []models.Category) string {
	var sb strings.Builder

	sb.WriteString("Evaluate the following startup against each category below.\n\n")
	b.writeEntity(&sb, entity)
	b.writeCategories(&sb, categories)

	sb.WriteString("Respond with a single JSON object keyed by category name. ")
	sb.WriteString("Every listed category must appear exactly once. ")
	sb.WriteString("Each value must conform to this JSON schema:\n")
	sb.WriteString(b.resultSchema)
	sb.WriteString("\n\nExample: {\"")
	if len(categories) > 0 {
		sb.WriteString(categories[0].Name)
	} else {
		sb.WriteString("Category Name")
	}
	sb.WriteString("\": {\"matches\": true, \"confidence\": 85, \"reasoning\": \"...\"}}\n")

	return sb.String()
}

// Batch renders one prompt covering several entities. The response must
// be keyed by entity id, then by category name.
func (b *Builder) Batch(entities []models.Entity, categories []models.Category) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Evaluate each of the following %d startups against each category below.\n\n", len(entities))
	for i := range entities {
		fmt.Fprintf(&sb, "--- Startup id=%s ---\n", entities[i].ID)
		b.writeEntity(&sb, &entities[i])
	}
	b.writeCategories(&sb, categories)

	sb.WriteString("Respond with a single JSON object keyed by startup id. ")
	sb.WriteString("Each value is an object keyed by category name; every listed category must appear exactly once per startup. ")
	sb.WriteString("Category values must conform to this JSON schema:\n")
	sb.WriteString(b.resultSchema)
	sb.WriteString("\n")

	return sb.String()
}

func (b *Builder) writeEntity(sb *strings.Builder, entity *models.Entity) {
	fmt.Fprintf(sb, "Name: %s\n", entity.Name)
	if len(entity.Industries) > 0 {
		fmt.Fprintf(sb, "Industries: %s\n", strings.Join(entity.Industries, ", "))
	}
	for _, k := range sortedKeys(entity.Metadata) {
		if v := entity.Metadata[k]; v != "" {
			fmt.Fprintf(sb, "%s: %s\n", k, v)
		}
	}
	fmt.Fprintf(sb, "Description: %s\n\n", Truncate(entity.Description, b.maxDescriptionRunes))
}

func (b *Builder) writeCategories(sb *strings.Builder, categories []models.Category) {
	sb.WriteString("Categories:\n")
	for _, c := range categories {
		fmt.Fprintf(sb, "- %s", c.Name)
		if c.Criteria != "" {
			fmt.Fprintf(sb, ": %s", c.Criteria)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// sortedKeys keeps metadata lines in a deterministic order so the same
// entity always produces the same prompt.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Truncate shortens s to at most max runes, cutting on a word boundary
// and appending an ellipsis when content was dropped.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := max
	for cut > 0 && !unicode.IsSpace(runes[cut-1]) {
		cut--
	}
	if cut == 0 {
		cut = max
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}
