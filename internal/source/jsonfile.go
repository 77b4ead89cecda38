package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/startuprise/riseval/pkg/models"
)

// jsonSource reads entities from a JSON export: either a bare array of
// entities or an object with an "startups" key, matching the shapes the
// import scripts produce.
type jsonSource struct {
	path  string
	limit int
}

func newJSONSource(cfg Config) (*jsonSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("json source requires a path")
	}
	return &jsonSource{path: cfg.Path, limit: cfg.Limit}, nil
}

func (s *jsonSource) Fetch(ctx context.Context) ([]models.Entity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var entities []models.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		var wrapped struct {
			Startups []models.Entity `json:"startups"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil || wrapped.Startups == nil {
			return nil, fmt.Errorf("decode %s: %w", s.path, err)
		}
		entities = wrapped.Startups
	}

	for i := range entities {
		if entities[i].ID == "" {
			return nil, fmt.Errorf("%s: entity %d (%q) has no id", s.path, i, entities[i].Name)
		}
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	if s.limit > 0 && len(entities) > s.limit {
		entities = entities[:s.limit]
	}
	return entities, nil
}

func (s *jsonSource) Close() error {
	return nil
}
