package models

import "strings"

// Entity is one startup record to be evaluated. Entities come from a
// record source (the Startup Rise database or an export of it) and are
// immutable for the duration of a run.
type Entity struct {
	// ID is the stable identifier from the record source.
	ID string `json:"id"`

	// Name is the startup's display name.
	Name string `json:"name"`

	// Description is the free-text pitch/summary used to build prompts.
	Description string `json:"description"`

	// Industries holds the industry tags attached to the record.
	Industries []string `json:"industries,omitempty"`

	// Metadata carries any additional semantic fields from the source
	// (country, funding stage, website) that may be folded into prompts.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchText returns the entity's textual content flattened into one
// lowercase string. Used by the keyword pre-filter.
func (e *Entity) SearchText() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte(' ')
	b.WriteString(e.Description)
	for _, ind := range e.Industries {
		b.WriteByte(' ')
		b.WriteString(ind)
	}
	for _, v := range e.Metadata {
		b.WriteByte(' ')
		b.WriteString(v)
	}
	return strings.ToLower(b.String())
}

// Category is a named evaluation dimension. The active set is fixed
// configuration data and is never mutated during a run.
type Category struct {
	// Name identifies the category (e.g., "Agentic Platform Enablers").
	Name string `json:"name" yaml:"name"`

	// Description is a short explanation shown in reports.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Criteria is the evaluation criteria text included in prompts.
	Criteria string `json:"criteria,omitempty" yaml:"criteria,omitempty"`

	// Keywords feed the optional pre-filter. A category with no keyword
	// overlap against an entity's text may be skipped when pre-filtering
	// is enabled.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Weight scales the category's contribution to the overall score.
	// Zero means 1.0.
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// EffectiveWeight returns the weight to apply, defaulting to 1.0.
func (c *Category) EffectiveWeight() float64 {
	if c.Weight <= 0 {
		return 1.0
	}
	return c.Weight
}
