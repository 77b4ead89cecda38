// Package config loads and validates the pipeline configuration. All
// components receive their configuration explicitly from here; nothing
// reads environment variables at import time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/startuprise/riseval/internal/observability"
	"github.com/startuprise/riseval/internal/provider"
	"github.com/startuprise/riseval/internal/ratelimit"
	"github.com/startuprise/riseval/internal/source"
)

// ConfigurationError is fatal: the run aborts before any entity is
// processed.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration: %s", e.Message)
}

// Config is the root configuration for an evaluation run.
type Config struct {
	Provider   provider.Config         `yaml:"provider"`
	Run        RunConfig               `yaml:"run"`
	Source     source.Config           `yaml:"source"`
	Checkpoint CheckpointConfig        `yaml:"checkpoint"`
	Report     ReportConfig            `yaml:"report"`
	Categories CategoriesConfig        `yaml:"categories"`
	RateLimit  ratelimit.Config        `yaml:"rate_limit"`
	Logging    observability.LogConfig `yaml:"logging"`
	Metrics    MetricsConfig           `yaml:"metrics"`
}

// RunConfig tunes the orchestrator.
type RunConfig struct {
	// Workers is the size of the evaluation worker pool.
	Workers int `yaml:"workers"`

	// BatchSize groups entities into one prompt. 1 evaluates each
	// entity in its own call.
	BatchSize int `yaml:"batch_size"`

	// MaxAttempts bounds retries per entity (including the first try).
	MaxAttempts int `yaml:"max_attempts"`

	// Prefilter enables the keyword pre-filter. Off by default: it
	// trades recall for cost.
	Prefilter bool `yaml:"prefilter"`

	// Timeout bounds the whole run; zero means no global timeout.
	Timeout time.Duration `yaml:"timeout"`

	// FailThreshold is the number of permanently failed entities above
	// which the evaluate command exits non-zero.
	FailThreshold int `yaml:"fail_threshold"`
}

// CheckpointConfig locates the durable checkpoint.
type CheckpointConfig struct {
	// Path is the SQLite checkpoint file.
	Path string `yaml:"path"`
}

// ReportConfig controls the final summary artifact.
type ReportConfig struct {
	// Path is where the JSON summary is written. Empty prints to stdout only.
	Path string `yaml:"path"`
}

// CategoriesConfig selects the category catalog.
type CategoriesConfig struct {
	// File is a YAML catalog overriding the built-in set.
	File string `yaml:"file"`

	// Only restricts the run to the named categories.
	Only []string `yaml:"only"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads and expands the configuration file and applies defaults.
// YAML is the default format; .json/.json5 files are accepted for
// compatibility with exported configs. Callers that go on to evaluate
// must call Validate; read-only commands like report do not need
// provider credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// ${VAR} references resolve from the process environment, so
	// credentials stay out of the file itself.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		// Decode into a raw map first, then re-encode through YAML so
		// the yaml-tagged structs see snake_case keys from either format.
		var raw map[string]any
		if err := json5.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		payload, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("convert config: %w", err)
		}
		if err := yaml.Unmarshal(payload, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Default returns a config with all defaults applied, for flag-only use.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Provider.Provider == "" {
		cfg.Provider.Provider = "anthropic"
	}
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = keyFromEnv(cfg.Provider.Provider)
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 60 * time.Second
	}
	if cfg.Provider.MaxTokens == 0 {
		cfg.Provider.MaxTokens = 2048
	}

	if cfg.Run.Workers == 0 {
		cfg.Run.Workers = 8
	}
	if cfg.Run.BatchSize == 0 {
		cfg.Run.BatchSize = 1
	}
	if cfg.Run.MaxAttempts == 0 {
		cfg.Run.MaxAttempts = 3
	}

	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "json"
	}
	if cfg.Checkpoint.Path == "" {
		cfg.Checkpoint.Path = "riseval-checkpoint.db"
	}
	if cfg.RateLimit == (ratelimit.Config{}) {
		cfg.RateLimit = ratelimit.DefaultConfig()
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
}

// keyFromEnv resolves the conventional environment variable for a
// provider so a bare config file still works in CI.
func keyFromEnv(providerName string) string {
	switch strings.ToLower(providerName) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini", "google":
		return os.Getenv("GEMINI_API_KEY")
	default:
		return ""
	}
}

// Validate returns a *ConfigurationError for any condition that must
// abort the run before processing starts.
func (c *Config) Validate() error {
	if c.Provider.Provider == "" {
		return &ConfigurationError{Field: "provider.provider", Message: "provider name is required"}
	}
	if c.Provider.APIKey == "" {
		return &ConfigurationError{
			Field:   "provider.api_key",
			Message: fmt.Sprintf("missing API key for %s (set it in the config or the provider's environment variable)", c.Provider.Provider),
		}
	}
	if c.Run.Workers < 1 {
		return &ConfigurationError{Field: "run.workers", Message: "must be at least 1"}
	}
	if c.Run.BatchSize < 1 {
		return &ConfigurationError{Field: "run.batch_size", Message: "must be at least 1"}
	}
	if c.Run.MaxAttempts < 1 {
		return &ConfigurationError{Field: "run.max_attempts", Message: "must be at least 1"}
	}
	if c.Run.FailThreshold < 0 {
		return &ConfigurationError{Field: "run.fail_threshold", Message: "must not be negative"}
	}
	if c.Source.Kind == "" {
		return &ConfigurationError{Field: "source.kind", Message: "record source is required"}
	}
	return nil
}
