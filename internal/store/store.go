// Package store persists runtime settings, conversation history and
// scheduled reminders in a single SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"wabot/internal/domain"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for lookups of settings keys that do not exist.
var ErrNotFound = domain.ErrSettingNotFound

// markerKey holds the admin escalation token in the settings table.
const markerKey = "admin_command_prefix"

// Store implements domain.SettingsStore, domain.HistoryStore and
// domain.ReminderStore on one SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS admins (
		id TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS blacklist (
		id         TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT,
		sender     TEXT NOT NULL,
		grp        TEXT NOT NULL DEFAULT '',
		inbound    TEXT,
		outbound   TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_history_key ON history(sender, grp, created_at);

	CREATE TABLE IF NOT EXISTS reminders (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		ref_id     TEXT NOT NULL,
		send_to    TEXT NOT NULL,
		title      TEXT NOT NULL,
		due_at     DATETIME NOT NULL,
		remind_at  DATETIME NOT NULL,
		notified   INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(notified, remind_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_reminders_ref ON reminders(ref_id, remind_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Seed installs the configured admin set and the admin marker without
// overwriting values an operator changed at runtime.
func (s *Store) Seed(ctx context.Context, adminIDs []string, marker string) error {
	for _, id := range adminIDs {
		if id == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO admins (id) VALUES (?)`, id); err != nil {
			return fmt.Errorf("seed admin %s: %w", id, err)
		}
	}
	if marker != "" {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, markerKey, marker)
		if err != nil {
			return fmt.Errorf("seed admin marker: %w", err)
		}
	}
	return nil
}

// Stats are quick row counts for the status and doctor commands.
type Stats struct {
	HistoryRows      int64
	PendingReminders int64
	BlacklistSize    int64
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&st.HistoryRows); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reminders WHERE notified = 0`).Scan(&st.PendingReminders); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blacklist`).Scan(&st.BlacklistSize); err != nil {
		return st, err
	}
	return st, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
