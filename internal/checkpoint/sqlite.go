package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/startuprise/riseval/pkg/models"
)

// SQLiteStore persists checkpoint records in a local SQLite file. One
// row per entity id; Append is an atomic upsert. WAL journaling plus
// synchronous=FULL makes each append durable before the call returns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the checkpoint database at
// path. ":memory:" is accepted for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps the
	// in-memory variant coherent across goroutines.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=FULL`,
		`PRAGMA busy_timeout=5000`,
	} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoint (
			entity_id   TEXT PRIMARY KEY,
			entity_name TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0,
			evaluation  TEXT,
			last_error  TEXT NOT NULL DEFAULT '',
			updated_at  TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create checkpoint table: %w", err)
	}
	return nil
}

// Load reads every record in the checkpoint.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, entity_name, status, attempts, evaluation, last_error, updated_at
		FROM checkpoint
	`)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	defer rows.Close()

	records := make(map[string]*Record)
	for rows.Next() {
		var (
			rec      Record
			status   string
			evalJSON sql.NullString
		)
		if err := rows.Scan(&rec.EntityID, &rec.EntityName, &status, &rec.Attempts, &evalJSON, &rec.LastError, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		rec.Status = models.Status(status)
		if evalJSON.Valid && evalJSON.String != "" {
			var eval models.Evaluation
			if err := json.Unmarshal([]byte(evalJSON.String), &eval); err != nil {
				return nil, fmt.Errorf("decode evaluation for %s: %w", rec.EntityID, err)
			}
			rec.Evaluation = &eval
		}
		records[rec.EntityID] = &rec
	}
	return records, rows.Err()
}

// Append upserts one record. The write is committed before return.
func (s *SQLiteStore) Append(ctx context.Context, rec *Record) error {
	if rec == nil || rec.EntityID == "" {
		return fmt.Errorf("checkpoint record requires an entity id")
	}

	var evalJSON any
	if rec.Evaluation != nil {
		data, err := json.Marshal(rec.Evaluation)
		if err != nil {
			return fmt.Errorf("encode evaluation for %s: %w", rec.EntityID, err)
		}
		evalJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (entity_id, entity_name, status, attempts, evaluation, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			entity_name = excluded.entity_name,
			status      = excluded.status,
			attempts    = excluded.attempts,
			evaluation  = excluded.evaluation,
			last_error  = excluded.last_error,
			updated_at  = excluded.updated_at
	`,
		rec.EntityID,
		rec.EntityName,
		string(rec.Status),
		rec.Attempts,
		evalJSON,
		rec.LastError,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("append checkpoint record for %s: %w", rec.EntityID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
