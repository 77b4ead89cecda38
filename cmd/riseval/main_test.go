package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/startuprise/riseval/internal/checkpoint"
	"github.com/startuprise/riseval/pkg/models"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"evaluate", "report", "categories"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestReportCommand_WorksWithoutCredentials(t *testing.T) {
	// Regenerating a report reads only the checkpoint; it must not
	// demand a provider API key.
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "checkpoint.db")

	store, err := checkpoint.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	err = store.Append(context.Background(), &checkpoint.Record{
		EntityID:   "1",
		EntityName: "Acme",
		Status:     models.StatusSucceeded,
		Attempts:   1,
		Evaluation: &models.Evaluation{
			EntityID:     "1",
			EntityName:   "Acme",
			OverallScore: 85,
			Tier:         1,
			Matches: []models.CategoryMatch{
				{Category: "Insurance Solutions", Matches: true, Confidence: 85},
			},
			EvaluatedAt: time.Now().UTC(),
		},
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	cfgPath := filepath.Join(dir, "riseval.yaml")
	if err := os.WriteFile(cfgPath, []byte("provider:\n  provider: anthropic\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := buildRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"report", "--config", cfgPath, "--checkpoint", dbPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("report failed without credentials: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Acme") || !strings.Contains(got, "1 succeeded") {
		t.Errorf("report output missing expected content:\n%s", got)
	}
}
