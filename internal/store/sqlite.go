// ABOUTME: SQLite-backed audit store using modernc.org/sqlite
// ABOUTME: Records every dispatched tool call with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the tool-call audit log in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tool_calls (
			id TEXT PRIMARY KEY,
			principal TEXT NOT NULL,
			tool TEXT NOT NULL,
			outcome TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			ts DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_ts
			ON tool_calls(ts);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_tool_ts
			ON tool_calls(tool, ts);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ToolCall is one recorded tool invocation.
type ToolCall struct {
	ID         string
	Principal  string
	Tool       string
	Outcome    string // "ok" or "error"
	DurationMS int64
	Timestamp  time.Time
}

// ToolCallFilter specifies filtering options for listing recorded calls.
type ToolCallFilter struct {
	Since     *time.Time
	Principal *string
	Tool      *string
	Outcome   *string
	Limit     int // max results (default 100, max 1000)
}

// RecordToolCall appends a tool invocation to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, c *ToolCall) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO tool_calls (id, principal, tool, outcome, duration_ms, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.Principal,
		c.Tool,
		c.Outcome,
		c.DurationMS,
		c.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call",
		"id", c.ID,
		"principal", c.Principal,
		"tool", c.Tool,
		"outcome", c.Outcome,
	)
	return nil
}

// normalizeLimit applies default (100) and cap (1000) to a list limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const toolCallQuery = `
	SELECT id, principal, tool, outcome, duration_ms, ts
	FROM tool_calls
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR principal = ?)
	  AND (? IS NULL OR tool = ?)
	  AND (? IS NULL OR outcome = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListToolCalls returns recorded calls matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error) {
	limit := normalizeLimit(f.Limit)

	var sinceStr *string
	if f.Since != nil {
		v := f.Since.UTC().Format(time.RFC3339)
		sinceStr = &v
	}

	rows, err := s.db.QueryContext(ctx, toolCallQuery,
		sinceStr, sinceStr,
		f.Principal, f.Principal,
		f.Tool, f.Tool,
		f.Outcome, f.Outcome,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var calls []ToolCall
	for rows.Next() {
		var c ToolCall
		var tsStr string
		if err := rows.Scan(&c.ID, &c.Principal, &c.Tool, &c.Outcome, &c.DurationMS, &tsStr); err != nil {
			return nil, fmt.Errorf("scanning tool call: %w", err)
		}
		c.Timestamp, err = time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		calls = append(calls, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool calls: %w", err)
	}

	if calls == nil {
		calls = []ToolCall{}
	}
	return calls, nil
}

// ObserveToolCall implements tools.Observer. Recording failures are logged
// rather than surfaced; the audit trail must never fail a tool call.
func (s *SQLiteStore) ObserveToolCall(ctx context.Context, principal, tool, outcome string, elapsed time.Duration) {
	call := &ToolCall{
		Principal:  principal,
		Tool:       tool,
		Outcome:    outcome,
		DurationMS: elapsed.Milliseconds(),
	}
	if err := s.RecordToolCall(ctx, call); err != nil {
		s.logger.Warn("failed to record tool call", "tool", tool, "error", err)
	}
}
