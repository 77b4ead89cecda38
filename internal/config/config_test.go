package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "riseval.yaml", `
provider:
  provider: openai
  api_key: sk-test-123
  model: gpt-4o-mini
run:
  workers: 4
  batch_size: 5
  max_attempts: 2
  fail_threshold: 10
source:
  kind: json
  path: startups.json
checkpoint:
  path: /tmp/ckpt.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.Provider != "openai" || cfg.Provider.APIKey != "sk-test-123" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Run.Workers != 4 || cfg.Run.BatchSize != 5 || cfg.Run.MaxAttempts != 2 {
		t.Errorf("run = %+v", cfg.Run)
	}
	if cfg.Run.FailThreshold != 10 {
		t.Errorf("fail_threshold = %d", cfg.Run.FailThreshold)
	}
	if cfg.Checkpoint.Path != "/tmp/ckpt.db" {
		t.Errorf("checkpoint path = %q", cfg.Checkpoint.Path)
	}
}

func TestLoad_JSON5(t *testing.T) {
	// An ambient credential must not mask a key read from the file.
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-ambient")

	path := writeConfig(t, "riseval.json5", `{
	// comments are allowed here
	provider: {provider: "anthropic", api_key: "sk-ant-test", max_tokens: 512},
	run: {batch_size: 4, max_attempts: 2, fail_threshold: 3},
	rate_limit: {enabled: true, requests_per_second: 2, burst_size: 4},
	source: {kind: "json", path: "startups.json"},
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.Provider != "anthropic" || cfg.Provider.APIKey != "sk-ant-test" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Provider.MaxTokens != 512 {
		t.Errorf("max_tokens = %d, want 512", cfg.Provider.MaxTokens)
	}
	if cfg.Run.BatchSize != 4 || cfg.Run.MaxAttempts != 2 || cfg.Run.FailThreshold != 3 {
		t.Errorf("run = %+v", cfg.Run)
	}
	if cfg.RateLimit.RequestsPerSecond != 2 || cfg.RateLimit.BurstSize != 4 {
		t.Errorf("rate_limit = %+v", cfg.RateLimit)
	}
	if cfg.Source.Path != "startups.json" {
		t.Errorf("source = %+v", cfg.Source)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("RISEVAL_TEST_KEY", "sk-from-env")
	path := writeConfig(t, "riseval.yaml", `
provider:
  provider: openai
  api_key: ${RISEVAL_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want value from environment", cfg.Provider.APIKey)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "riseval.yaml", `
provider:
  provider: openai
  api_key: sk-test
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Run.Workers != 8 {
		t.Errorf("workers = %d, want default 8", cfg.Run.Workers)
	}
	if cfg.Run.BatchSize != 1 {
		t.Errorf("batch_size = %d, want default 1", cfg.Run.BatchSize)
	}
	if cfg.Run.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want default 3", cfg.Run.MaxAttempts)
	}
	if cfg.Provider.Timeout != 60*time.Second {
		t.Errorf("timeout = %v, want default 60s", cfg.Provider.Timeout)
	}
	if cfg.Checkpoint.Path == "" {
		t.Error("checkpoint path should default")
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RequestsPerSecond <= 0 {
		t.Errorf("rate limit = %+v, want enabled defaults", cfg.RateLimit)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	// Make sure no ambient credentials leak into the test.
	t.Setenv("OPENAI_API_KEY", "")

	path := writeConfig(t, "riseval.yaml", `
provider:
  provider: openai
`)

	// Loading succeeds: read-only commands work without credentials.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	err = cfg.Validate()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Validate() error = %v, want *ConfigurationError", err)
	}
	if cfgErr.Field != "provider.api_key" {
		t.Errorf("field = %q", cfgErr.Field)
	}
}

func TestLoad_APIKeyFromProviderEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-ambient")

	path := writeConfig(t, "riseval.yaml", `
provider:
  provider: anthropic
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.APIKey != "sk-ant-ambient" {
		t.Errorf("api_key = %q, want fallback from ANTHROPIC_API_KEY", cfg.Provider.APIKey)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "riseval.yaml", "provider: [unclosed")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestLoad_FileMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail on missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero workers", func(c *Config) { c.Run.Workers = -1 }, "run.workers"},
		{"zero batch", func(c *Config) { c.Run.BatchSize = -1 }, "run.batch_size"},
		{"zero attempts", func(c *Config) { c.Run.MaxAttempts = -2 }, "run.max_attempts"},
		{"negative threshold", func(c *Config) { c.Run.FailThreshold = -1 }, "run.fail_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Provider.APIKey = "sk-test"
			tt.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want *ConfigurationError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestConfigurationError_Message(t *testing.T) {
	err := &ConfigurationError{Field: "run.workers", Message: "must be at least 1"}
	if got := err.Error(); !strings.Contains(got, "run.workers") || !strings.Contains(got, "configuration") {
		t.Errorf("Error() = %q", got)
	}
}
