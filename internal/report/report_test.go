package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/startuprise/riseval/internal/checkpoint"
	"github.com/startuprise/riseval/pkg/models"
)

var testCategories = []models.Category{
	{Name: "Insurance Solutions"},
	{Name: "Data Infrastructure"},
}

func evalRecord(id string, score, tier int, matches []models.CategoryMatch) *checkpoint.Record {
	return &checkpoint.Record{
		EntityID:   id,
		EntityName: "Startup " + id,
		Status:     models.StatusSucceeded,
		Attempts:   1,
		Evaluation: &models.Evaluation{
			EntityID:     id,
			EntityName:   "Startup " + id,
			Matches:      matches,
			OverallScore: score,
			Tier:         tier,
			EvaluatedAt:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func testRecords() map[string]*checkpoint.Record {
	return map[string]*checkpoint.Record{
		"1": evalRecord("1", 85, 1, []models.CategoryMatch{
			{Category: "Insurance Solutions", Matches: true, Confidence: 85},
			{Category: "Data Infrastructure", Matches: false, Confidence: 20},
		}),
		"2": evalRecord("2", 70, 2, []models.CategoryMatch{
			{Category: "Insurance Solutions", Matches: true, Confidence: 65},
			{Category: "Data Infrastructure", Matches: true, Confidence: 70},
		}),
		"3": {
			EntityID: "3", Status: models.StatusPermanentlyFailed,
			Attempts: 3, LastError: "[rate_limit] stub too many requests",
		},
		"4": {
			EntityID: "4", Status: models.StatusSkipped,
			Evaluation: &models.Evaluation{
				EntityID: "4", Tier: 4,
				Matches: []models.CategoryMatch{
					{Category: "Insurance Solutions"},
					{Category: "Data Infrastructure"},
				},
			},
		},
		"5": {EntityID: "5", Status: models.StatusFailed, Attempts: 1, LastError: "timeout"},
	}
}

func TestBuild_Counts(t *testing.T) {
	r := Build(testRecords(), testCategories)

	if r.Total != 5 || r.Succeeded != 2 || r.PermanentlyFailed != 1 || r.Skipped != 1 || r.Incomplete != 1 {
		t.Errorf("report counts = %+v", r)
	}
	if r.Tiers[1] != 1 || r.Tiers[2] != 1 || r.Tiers[4] != 1 {
		t.Errorf("tiers = %v", r.Tiers)
	}
}

func TestBuild_Categories(t *testing.T) {
	r := Build(testRecords(), testCategories)

	if len(r.Categories) != 2 {
		t.Fatalf("got %d categories", len(r.Categories))
	}

	// Category order follows the configured catalog.
	ins := r.Categories[0]
	if ins.Name != "Insurance Solutions" {
		t.Fatalf("first category = %q", ins.Name)
	}
	if ins.Matched != 2 || ins.Evaluated != 3 {
		t.Errorf("insurance = %+v", ins)
	}
	if ins.MeanConfidence != 75.0 { // (85+65)/2
		t.Errorf("mean confidence = %v, want 75.0", ins.MeanConfidence)
	}

	data := r.Categories[1]
	if data.Matched != 1 || data.MeanConfidence != 70.0 {
		t.Errorf("data infrastructure = %+v", data)
	}
}

func TestBuild_EntitiesRankedByScore(t *testing.T) {
	r := Build(testRecords(), testCategories)

	if len(r.Entities) != 3 { // two succeeded plus one skipped-with-evaluation
		t.Fatalf("got %d entities", len(r.Entities))
	}
	if r.Entities[0].EntityID != "1" || r.Entities[1].EntityID != "2" {
		t.Errorf("ranking = %v, %v", r.Entities[0], r.Entities[1])
	}
	if r.Entities[0].TopCategory != "Insurance Solutions" {
		t.Errorf("top category = %q", r.Entities[0].TopCategory)
	}
}

func TestBuild_Failures(t *testing.T) {
	r := Build(testRecords(), testCategories)

	if len(r.Failures) != 1 {
		t.Fatalf("got %d failures", len(r.Failures))
	}
	f := r.Failures[0]
	if f.EntityID != "3" || f.Attempts != 3 || !strings.Contains(f.LastError, "rate_limit") {
		t.Errorf("failure = %+v", f)
	}
}

func TestBuild_Empty(t *testing.T) {
	r := Build(nil, testCategories)
	if r.Total != 0 || len(r.Entities) != 0 || len(r.Failures) != 0 {
		t.Errorf("report = %+v", r)
	}
	if len(r.Categories) != 2 {
		t.Errorf("empty report should still list configured categories")
	}
}

func TestWriteJSON_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := Build(testRecords(), testCategories).WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Succeeded != 2 || len(decoded.Categories) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := Build(testRecords(), testCategories).WriteText(&buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"5 total", "2 succeeded", "1 failed", "1 skipped", "1 incomplete",
		"tier 1: 1",
		"Insurance Solutions",
		"mean confidence 75.0",
		"Failures:",
		"3 attempts",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}
