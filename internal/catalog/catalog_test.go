package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/startuprise/riseval/pkg/models"
)

func TestDefault(t *testing.T) {
	categories := Default()
	if len(categories) == 0 {
		t.Fatal("Default() returned no categories")
	}

	seen := map[string]bool{}
	for _, c := range categories {
		if c.Name == "" {
			t.Error("category with empty name")
		}
		if seen[c.Name] {
			t.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		if c.Criteria == "" {
			t.Errorf("category %q has no criteria text", c.Name)
		}
	}
	if !seen["Insurance Solutions"] {
		t.Error("default catalog missing Insurance Solutions")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `categories:
  - name: Fintech
    criteria: Does the startup build financial products?
    keywords: [payments, banking]
    weight: 1.5
  - name: Robotics
    criteria: Does the startup build robots?
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	categories, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("LoadFile() returned %d categories, want 2", len(categories))
	}
	if categories[0].Name != "Fintech" || categories[0].Weight != 1.5 {
		t.Errorf("first category = %+v", categories[0])
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	os.WriteFile(empty, []byte("categories: []"), 0o644)
	if _, err := LoadFile(empty); err == nil {
		t.Error("LoadFile(empty) should fail")
	}

	unnamed := filepath.Join(dir, "unnamed.yaml")
	os.WriteFile(unnamed, []byte("categories:\n  - criteria: x"), 0o644)
	if _, err := LoadFile(unnamed); err == nil {
		t.Error("LoadFile(unnamed category) should fail")
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) should fail")
	}
}

func TestSelect(t *testing.T) {
	categories := []models.Category{{Name: "A"}, {Name: "B"}, {Name: "C"}}

	selected, err := Select(categories, []string{"c", "A"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	// Catalog order is preserved regardless of argument order.
	if len(selected) != 2 || selected[0].Name != "A" || selected[1].Name != "C" {
		t.Errorf("Select() = %+v, want [A C]", selected)
	}

	if _, err := Select(categories, []string{"nope"}); err == nil || !strings.Contains(err.Error(), "unknown category") {
		t.Errorf("Select(unknown) error = %v", err)
	}

	all, err := Select(categories, nil)
	if err != nil || len(all) != 3 {
		t.Errorf("Select(nil) = %v entries, err %v, want all 3", len(all), err)
	}
}

func TestPrefilter(t *testing.T) {
	entity := &models.Entity{
		Name:        "Acme",
		Description: "AI claims automation for insurers",
	}
	categories := []models.Category{
		{Name: "Insurance", Keywords: []string{"claims", "insurer"}},
		{Name: "Robotics", Keywords: []string{"robot", "hardware"}},
		{Name: "Wildcard"}, // no keywords: always active
	}

	active, skipped := Prefilter(entity, categories)

	if len(active) != 2 || active[0].Name != "Insurance" || active[1].Name != "Wildcard" {
		t.Errorf("active = %+v, want [Insurance Wildcard]", active)
	}
	if len(skipped) != 1 || skipped[0].Name != "Robotics" {
		t.Errorf("skipped = %+v, want [Robotics]", skipped)
	}
}

func TestSkippedMatch(t *testing.T) {
	m := SkippedMatch("Robotics")
	if m.Matches || m.Confidence != 0 || m.Category != "Robotics" {
		t.Errorf("SkippedMatch() = %+v", m)
	}
	if m.Reasoning == "" {
		t.Error("SkippedMatch() should carry a diagnosable reasoning marker")
	}
}
