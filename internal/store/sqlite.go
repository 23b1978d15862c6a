// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides schema creation, additive migrations, and shared scan helpers

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
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

	// busy_timeout and foreign_keys are per-connection, so they ride on the
	// DSN and apply to every pooled connection. Writers that hit SQLITE_BUSY
	// retry inside the driver for up to 5s.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance; WAL is persistent
	// in the database file, one exec is enough.
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

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			host_user_id INTEGER NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			location TEXT NOT NULL,
			time TEXT NOT NULL,
			date_label TEXT NOT NULL CHECK (date_label IN ('Today', 'Tmrw')),
			description TEXT NOT NULL DEFAULT '',
			gender TEXT NOT NULL DEFAULT 'Any',
			min_age INTEGER NOT NULL,
			max_age INTEGER NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (min_age >= 0),
			CHECK (max_age >= min_age)
		);

		CREATE INDEX IF NOT EXISTS idx_events_host ON events(host_user_id);

		CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT,
			created_by INTEGER NOT NULL REFERENCES users(id),
			event_id INTEGER UNIQUE REFERENCES events(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id),
			role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('owner', 'member')),
			joined_at TEXT NOT NULL,

			PRIMARY KEY (conversation_id, user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_members_user ON conversation_members(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id INTEGER NOT NULL REFERENCES users(id),
			body TEXT NOT NULL,
			attachment_url TEXT,
			delivery_status TEXT NOT NULL DEFAULT 'sent',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS conversation_read_state (
			conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id),
			last_read_message_id INTEGER NOT NULL,
			updated_at TEXT NOT NULL,

			PRIMARY KEY (conversation_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS conversation_join_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id),
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'denied')),
			created_at TEXT NOT NULL,
			decided_at TEXT,
			decided_by INTEGER REFERENCES users(id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_join_requests_pending
			ON conversation_join_requests(event_id, user_id) WHERE status = 'pending';

		CREATE INDEX IF NOT EXISTS idx_join_requests_event
			ON conversation_join_requests(event_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string // Query to check if migration is needed
		apply  string // Query to apply the migration
		table  string
		column string // Column name for logging
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('conversations') WHERE name = 'event_id'`,
			apply:  `ALTER TABLE conversations ADD COLUMN event_id INTEGER REFERENCES events(id) ON DELETE CASCADE`,
			table:  "conversations",
			column: "event_id",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('messages') WHERE name = 'attachment_url'`,
			apply:  `ALTER TABLE messages ADD COLUMN attachment_url TEXT`,
			table:  "messages",
			column: "attachment_url",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('messages') WHERE name = 'delivery_status'`,
			apply:  `ALTER TABLE messages ADD COLUMN delivery_status TEXT NOT NULL DEFAULT 'sent'`,
			table:  "messages",
			column: "delivery_status",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('conversation_join_requests') WHERE name = 'decided_by'`,
			apply:  `ALTER TABLE conversation_join_requests ADD COLUMN decided_by INTEGER REFERENCES users(id)`,
			table:  "conversation_join_requests",
			column: "decided_by",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			// Column already exists, skip
			continue
		}
		// Column doesn't exist, apply migration
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Counts returns per-table row counts for the operator CLI.
func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	counters := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(1) FROM users`, &c.Users},
		{`SELECT COUNT(1) FROM events`, &c.Events},
		{`SELECT COUNT(1) FROM conversations`, &c.Conversations},
		{`SELECT COUNT(1) FROM messages`, &c.Messages},
		{`SELECT COUNT(1) FROM conversation_join_requests`, &c.JoinRequests},
	}
	for _, counter := range counters {
		if err := s.db.QueryRowContext(ctx, counter.query).Scan(counter.dest); err != nil {
			return Counts{}, fmt.Errorf("counting rows: %w", err)
		}
	}
	return c, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// timeLayout is RFC 3339 with fixed-width nanoseconds. RFC3339Nano trims
// trailing zeros, which breaks lexicographic ordering in SQL; this layout
// keeps string order equal to time order for the created_at indices.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime renders a timestamp the way every table stores it.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads timestamps written by formatTime. Second-precision values
// from older rows parse fine as well.
func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
