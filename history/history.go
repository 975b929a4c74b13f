// Package history keeps a local sqlite log of conversion outcomes.
//
// Recording is best-effort in the observability sense: a failing store is
// logged via slog and never blocks or fails the conversion pipeline.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lexviet/mdconvert/convert"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	output TEXT,
	status TEXT NOT NULL,
	tool TEXT NOT NULL,
	quality_score INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	from_cache INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversions_source ON conversions(source);
CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status);
`

// Log records conversion outcomes.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the history database and applies the schema.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Log{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error { return l.db.Close() }

// Record stores one conversion outcome. Errors are logged, never returned:
// a failing history store must not fail a conversion.
func (l *Log) Record(ctx context.Context, res convert.ConversionResult) {
	fromCache := 0
	if res.FromCache {
		fromCache = 1
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO conversions (
			source, output, status, tool, quality_score,
			duration_ms, from_cache, error, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		res.SourcePath, res.OutputPath, string(res.Status), res.ToolUsed,
		res.QualityScore, res.Duration.Milliseconds(), fromCache, res.Error,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		l.logger.Error("record conversion outcome", "source", res.SourcePath, "error", err)
	}
}

// Stats summarizes the history log.
type Stats struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	ByTool    map[string]int `json:"by_tool"`
	CacheHits int            `json:"cache_hits"`
}

// Stats aggregates outcome counts by status and tool.
func (l *Log) Stats(ctx context.Context) (Stats, error) {
	s := Stats{ByStatus: make(map[string]int), ByTool: make(map[string]int)}

	rows, err := l.db.QueryContext(ctx,
		`SELECT status, tool, from_cache, COUNT(*) FROM conversions GROUP BY status, tool, from_cache`)
	if err != nil {
		return s, fmt.Errorf("query history stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, tool string
		var fromCache, count int
		if err := rows.Scan(&status, &tool, &fromCache, &count); err != nil {
			return s, fmt.Errorf("scan history stats: %w", err)
		}
		s.Total += count
		s.ByStatus[status] += count
		s.ByTool[tool] += count
		if fromCache == 1 {
			s.CacheHits += count
		}
	}
	return s, rows.Err()
}
