// Package source supplies the ordered collection of entities to
// evaluate. Sources are read-only; they never mutate the underlying
// startup database.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/startuprise/riseval/pkg/models"
)

// Source yields the ordered entity collection for a run.
type Source interface {
	// Fetch returns all entities in a stable order.
	Fetch(ctx context.Context) ([]models.Entity, error)

	// Close releases underlying resources.
	Close() error
}

// Config selects and configures a record source.
type Config struct {
	// Kind selects the implementation: "postgres", "sqlite" or "json".
	Kind string `yaml:"kind"`

	// DSN is the connection string for postgres.
	DSN string `yaml:"dsn"`

	// Path is the database or JSON file path for sqlite/json.
	Path string `yaml:"path"`

	// Table is the startups table name, defaulting to "startups".
	Table string `yaml:"table"`

	// Limit caps the number of entities fetched; zero means all.
	Limit int `yaml:"limit"`
}

// New builds the configured source.
func New(cfg Config) (Source, error) {
	if cfg.Table == "" {
		cfg.Table = "startups"
	}

	switch strings.ToLower(cfg.Kind) {
	case "postgres":
		return newPostgresSource(cfg)
	case "sqlite":
		return newSQLiteSource(cfg)
	case "json", "file":
		return newJSONSource(cfg)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// Static is a fixed in-memory source, used by tests and dry runs.
type Static struct {
	Entities []models.Entity
}

// Fetch returns the configured entities.
func (s *Static) Fetch(ctx context.Context) ([]models.Entity, error) {
	return s.Entities, nil
}

// Close is a no-op.
func (s *Static) Close() error {
	return nil
}
