// Package catalog holds the category catalog: the fixed set of
// strategic-fit dimensions every entity is evaluated against.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/startuprise/riseval/pkg/models"
)

// Default returns the built-in category set used when no catalog file is
// configured. Keywords feed the optional pre-filter only; the criteria
// text is what the model actually evaluates against.
func Default() []models.Category {
	return []models.Category{
		{
			Name:        "Insurance Solutions",
			Description: "Products that digitize, automate or reinvent insurance workflows",
			Criteria:    "Does the startup build software or services for insurers, brokers or policyholders: claims automation, underwriting, risk scoring, embedded insurance, or insurtech infrastructure?",
			Keywords:    []string{"insurance", "insurer", "claims", "underwriting", "policy", "actuarial", "insurtech"},
		},
		{
			Name:        "Agentic Platform Enablers",
			Description: "Infrastructure for building, running or governing AI agents",
			Criteria:    "Does the startup provide tooling, orchestration, evaluation, safety or runtime infrastructure for LLM-powered agents and copilots?",
			Keywords:    []string{"agent", "agentic", "llm", "orchestration", "copilot", "autonomous", "rag"},
		},
		{
			Name:        "Data & Analytics Infrastructure",
			Description: "Pipelines, storage and analytics platforms",
			Criteria:    "Does the startup offer data engineering, warehousing, streaming, observability or analytics products usable by enterprise data teams?",
			Keywords:    []string{"data", "analytics", "pipeline", "warehouse", "etl", "streaming", "observability"},
		},
		{
			Name:        "Health & Wellbeing",
			Description: "Digital health, care delivery and prevention",
			Criteria:    "Does the startup improve healthcare delivery, diagnostics, mental health, or employee wellbeing, including health data platforms?",
			Keywords:    []string{"health", "medical", "care", "clinical", "patient", "wellbeing", "diagnostics"},
		},
		{
			Name:        "Climate & Sustainability",
			Description: "Decarbonization, energy and circular economy",
			Criteria:    "Does the startup reduce emissions, enable renewable energy, improve resource efficiency, or support climate risk management?",
			Keywords:    []string{"climate", "carbon", "emission", "energy", "renewable", "sustainability", "circular"},
		},
		{
			Name:        "Cybersecurity & Risk",
			Description: "Security tooling and risk management",
			Criteria:    "Does the startup provide security products, fraud prevention, compliance automation, or enterprise risk tooling?",
			Keywords:    []string{"security", "cyber", "fraud", "threat", "compliance", "identity", "risk"},
		},
	}
}

// catalogFile is the on-disk shape of a category catalog.
type catalogFile struct {
	Categories []models.Category `yaml:"categories"`
}

// LoadFile reads a category catalog from a YAML file.
func LoadFile(path string) ([]models.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("catalog %s defines no categories", path)
	}
	for i := range f.Categories {
		if strings.TrimSpace(f.Categories[i].Name) == "" {
			return nil, fmt.Errorf("catalog %s: category %d has no name", path, i)
		}
	}
	return f.Categories, nil
}

// Select restricts a catalog to the named subset, preserving catalog
// order. An empty subset returns the full catalog.
func Select(categories []models.Category, names []string) ([]models.Category, error) {
	if len(names) == 0 {
		return categories, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}

	var selected []models.Category
	for _, c := range categories {
		key := strings.ToLower(c.Name)
		if wanted[key] {
			selected = append(selected, c)
			delete(wanted, key)
		}
	}
	if len(wanted) > 0 {
		for n := range wanted {
			return nil, fmt.Errorf("unknown category %q", n)
		}
	}
	return selected, nil
}
