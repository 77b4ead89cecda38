package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/startuprise/riseval/pkg/models"
)

const pgPageSize = 500

// postgresSource reads the startups table of the Startup Rise database.
// Rows are fetched in id order, paginated so large catalogs do not hold
// a single long-running result set open.
type postgresSource struct {
	db    *sql.DB
	table string
	limit int
}

func newPostgresSource(cfg Config) (*postgresSource, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres source requires a dsn")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &postgresSource{db: db, table: cfg.Table, limit: cfg.Limit}, nil
}

func (s *postgresSource) Fetch(ctx context.Context) ([]models.Entity, error) {
	var entities []models.Entity
	lastID := ""

	for {
		// Keyset pagination on the primary key keeps ordering stable.
		//nolint:gosec // table name comes from config, not request input
		query := fmt.Sprintf(`
			SELECT id::text, name, COALESCE(description, ''), COALESCE(industries, '')
			FROM %s
			WHERE id::text > $1
			ORDER BY id::text
			LIMIT $2
		`, s.table)

		rows, err := s.db.QueryContext(ctx, query, lastID, pgPageSize)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", s.table, err)
		}

		page, err := scanEntities(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, page...)

		if s.limit > 0 && len(entities) >= s.limit {
			return entities[:s.limit], nil
		}
		if len(page) < pgPageSize {
			return entities, nil
		}
		lastID = page[len(page)-1].ID
	}
}

func (s *postgresSource) Close() error {
	return s.db.Close()
}

// scanEntities drains one page of rows. Industries are stored as a
// comma-separated text column in the startups table.
func scanEntities(rows *sql.Rows) ([]models.Entity, error) {
	defer rows.Close()

	var page []models.Entity
	for rows.Next() {
		var (
			e          models.Entity
			industries string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &industries); err != nil {
			return nil, fmt.Errorf("scan startup row: %w", err)
		}
		e.Industries = splitIndustries(industries)
		page = append(page, e)
	}
	return page, rows.Err()
}

func splitIndustries(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
