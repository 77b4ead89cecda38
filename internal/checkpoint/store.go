// Package checkpoint persists per-entity run progress so interrupted
// runs can resume without re-processing completed work.
package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/startuprise/riseval/pkg/models"
)

// Record is the durable state of one entity within a run: either a
// completed evaluation or a failure marker with the attempt history.
type Record struct {
	EntityID   string             `json:"entity_id"`
	EntityName string             `json:"entity_name,omitempty"`
	Status     models.Status      `json:"status"`
	Attempts   int                `json:"attempts"`
	Evaluation *models.Evaluation `json:"evaluation,omitempty"`
	LastError  string             `json:"last_error,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Store persists checkpoint records.
//
// Append must be durable before it returns and idempotent per entity id:
// re-appending the same id overwrites the previous record, never
// duplicates it. Implementations must serialize concurrent appends.
type Store interface {
	// Load returns all records keyed by entity id.
	Load(ctx context.Context) (map[string]*Record, error)

	// Append upserts one record.
	Append(ctx context.Context, rec *Record) error

	// Close releases underlying resources.
	Close() error
}

// MemoryStore keeps records in memory. Used in tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Load returns a copy of all records.
func (s *MemoryStore) Load(ctx context.Context) (map[string]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Record, len(s.records))
	for id, rec := range s.records {
		out[id] = cloneRecord(rec)
	}
	return out, nil
}

// Append upserts a record keyed by entity id.
func (s *MemoryStore) Append(ctx context.Context, rec *Record) error {
	if rec == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.EntityID] = cloneRecord(rec)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneRecord(rec *Record) *Record {
	if rec == nil {
		return nil
	}
	clone := *rec
	if rec.Evaluation != nil {
		eval := *rec.Evaluation
		eval.Matches = append([]models.CategoryMatch(nil), rec.Evaluation.Matches...)
		clone.Evaluation = &eval
	}
	return &clone
}
