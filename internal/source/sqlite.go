package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/startuprise/riseval/pkg/models"
)

// sqliteSource reads a local SQLite export of the startup database.
type sqliteSource struct {
	db    *sql.DB
	table string
	limit int
}

func newSQLiteSource(cfg Config) (*sqliteSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite source requires a path")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &sqliteSource{db: db, table: cfg.Table, limit: cfg.Limit}, nil
}

func (s *sqliteSource) Fetch(ctx context.Context) ([]models.Entity, error) {
	//nolint:gosec // table name comes from config, not request input
	query := fmt.Sprintf(`
		SELECT CAST(id AS TEXT), name, COALESCE(description, ''), COALESCE(industries, '')
		FROM %s
		ORDER BY id
	`, s.table)
	if s.limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", s.limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	return scanEntities(rows)
}

func (s *sqliteSource) Close() error {
	return s.db.Close()
}
