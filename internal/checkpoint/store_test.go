package checkpoint

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/startuprise/riseval/pkg/models"
)

// storeFactories builds each implementation against a fresh backing file.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoint.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore() error = %v", err)
			}
			return s
		},
	}
}

func sampleRecord(id string, status models.Status) *Record {
	return &Record{
		EntityID:   id,
		EntityName: "Acme",
		Status:     status,
		Attempts:   1,
		Evaluation: &models.Evaluation{
			EntityID:     id,
			EntityName:   "Acme",
			OverallScore: 85,
			Tier:         1,
			Matches: []models.CategoryMatch{
				{Category: "Insurance Solutions", Matches: true, Confidence: 85},
			},
			EvaluatedAt: time.Now().UTC().Truncate(time.Second),
		},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore_AppendAndLoad(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()
			ctx := context.Background()

			if err := s.Append(ctx, sampleRecord("1", models.StatusSucceeded)); err != nil {
				t.Fatalf("Append() error = %v", err)
			}

			records, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			rec, ok := records["1"]
			if !ok {
				t.Fatal("record 1 missing after append")
			}
			if rec.Status != models.StatusSucceeded || rec.Evaluation == nil {
				t.Errorf("record = %+v", rec)
			}
			if rec.Evaluation.OverallScore != 85 || len(rec.Evaluation.Matches) != 1 {
				t.Errorf("evaluation = %+v", rec.Evaluation)
			}
		})
	}
}

func TestStore_AppendIsIdempotent(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()
			ctx := context.Background()

			first := sampleRecord("7", models.StatusFailed)
			first.Attempts = 2
			if err := s.Append(ctx, first); err != nil {
				t.Fatal(err)
			}

			second := sampleRecord("7", models.StatusPermanentlyFailed)
			second.Attempts = 3
			second.LastError = "rate limited"
			if err := s.Append(ctx, second); err != nil {
				t.Fatal(err)
			}

			records, err := s.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(records) != 1 {
				t.Fatalf("got %d records, want 1 (no duplicates)", len(records))
			}
			rec := records["7"]
			if rec.Status != models.StatusPermanentlyFailed || rec.Attempts != 3 || rec.LastError != "rate limited" {
				t.Errorf("record = %+v, want the overwrite to win", rec)
			}
		})
	}
}

func TestStore_FailureMarkerWithoutEvaluation(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()
			ctx := context.Background()

			rec := &Record{
				EntityID:  "9",
				Status:    models.StatusPermanentlyFailed,
				Attempts:  3,
				LastError: "unparseable response",
				UpdatedAt: time.Now().UTC(),
			}
			if err := s.Append(ctx, rec); err != nil {
				t.Fatal(err)
			}

			records, err := s.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			got := records["9"]
			if got.Evaluation != nil {
				t.Errorf("Evaluation = %+v, want nil for failure marker", got.Evaluation)
			}
			if got.LastError != "unparseable response" {
				t.Errorf("LastError = %q", got.LastError)
			}
		})
	}
}

func TestStore_ConcurrentAppends(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()
			ctx := context.Background()

			const n = 20
			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rec := sampleRecord(string(rune('a'+i)), models.StatusSucceeded)
					errs <- s.Append(ctx, rec)
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("concurrent Append() error = %v", err)
				}
			}

			records, err := s.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(records) != n {
				t.Errorf("got %d records, want %d", len(records), n)
			}
		})
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, sampleRecord("1", models.StatusSucceeded)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	records, err := reopened.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := records["1"]; !ok {
		t.Error("record 1 missing after reopen; append was not durable")
	}
}

func TestSQLiteStore_RejectsEmptyID(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "c.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Append(context.Background(), &Record{}); err == nil {
		t.Error("Append() with empty id should fail")
	}
}
