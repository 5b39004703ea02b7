package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/caseflow/caseflow/internal/types"
)

// ID prefixes for locally generated entities
const (
	PrefixCase     = "tc"
	PrefixModule   = "md"
	PrefixRelease  = "rel"
	PrefixWorkbook = "wb"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// withImmediateTx runs fn on a dedicated connection inside a BEGIN IMMEDIATE
// transaction.
//
// This is necessary because we need to execute raw SQL ("BEGIN IMMEDIATE",
// "COMMIT") on the same connection, and database/sql's connection pool would
// otherwise use different connections for different queries. IMMEDIATE
// acquires a RESERVED lock up front, which serializes ID generation across
// concurrent writers; database/sql's BeginTx cannot request that mode.
func (s *SQLiteStorage) withImmediateTx(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	// Use context.Background() for ROLLBACK so cleanup happens even if ctx
	// is canceled mid-transaction.
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return nil
}

// nextID atomically increments the counter for prefix and returns the new
// prefixed ID ("tc-12"). Must run inside an IMMEDIATE transaction.
func nextID(ctx context.Context, conn *sql.Conn, prefix string) (string, error) {
	var n int
	err := conn.QueryRowContext(ctx, `
		INSERT INTO id_counters (prefix, last_id) VALUES (?, 1)
		ON CONFLICT(prefix) DO UPDATE SET last_id = last_id + 1
		RETURNING last_id
	`, prefix).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to generate next ID for prefix %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%d", prefix, n), nil
}

// execer covers *sql.Conn, *sql.Tx, and *sql.DB for event recording
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// recordEvent appends an audit event inside the caller's transaction
func recordEvent(ctx context.Context, e execer, entityID, eventType, actor, oldValue, newValue, comment string) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO events (entity_id, event_type, actor, old_value, new_value, comment)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entityID, eventType, actor, nullable(oldValue), nullable(newValue), nullable(comment))
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// GetStatistics returns portal-wide counts for status displays
func (s *SQLiteStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	stats := &types.Statistics{
		CasesByStatus: make(map[string]int),
		CasesByAuto:   make(map[string]int),
	}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM test_cases", &stats.TotalCases},
		{"SELECT COUNT(*) FROM modules", &stats.TotalModules},
		{"SELECT COUNT(*) FROM releases", &stats.TotalReleases},
		{"SELECT COUNT(*) FROM stories", &stats.TotalStories},
		{"SELECT COUNT(*) FROM tickets", &stats.TotalTickets},
		{"SELECT COUNT(*) FROM workbooks", &stats.TotalWorkbooks},
		{"SELECT COUNT(*) FROM workbook_rows WHERE status = 'pending'", &stats.PendingRows},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM test_cases GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to group by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.CasesByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	autoRows, err := s.db.QueryContext(ctx, "SELECT automation, COUNT(*) FROM test_cases GROUP BY automation")
	if err != nil {
		return nil, fmt.Errorf("failed to group by automation: %w", err)
	}
	defer autoRows.Close()
	for autoRows.Next() {
		var automation string
		var count int
		if err := autoRows.Scan(&automation, &count); err != nil {
			return nil, fmt.Errorf("failed to scan automation count: %w", err)
		}
		stats.CasesByAuto[automation] = count
	}
	if err := autoRows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// GetConfig gets a configuration value from the config table
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig sets a configuration value in the config table
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
