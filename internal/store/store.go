package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

// NewWithDB wraps an already opened handle without running migrations.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS locations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL UNIQUE,
		qr_token    TEXT NOT NULL,
		created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);

	CREATE TABLE IF NOT EXISTS task_definitions (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		location_id    INTEGER NOT NULL REFERENCES locations(id),
		activity       TEXT NOT NULL,
		target_hour    INTEGER,
		target_minute  INTEGER,
		archived       INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
		updated_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);

	CREATE TABLE IF NOT EXISTS staff (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		code    TEXT NOT NULL UNIQUE,
		name    TEXT NOT NULL,
		role    TEXT NOT NULL DEFAULT 'staff',
		active  INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS task_instances (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		definition_id  INTEGER NOT NULL REFERENCES task_definitions(id),
		work_date      TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		claimant_id    INTEGER REFERENCES staff(id),
		claimed_at     TEXT,
		claim_token    TEXT,
		completed_at   TEXT,
		photo_ref      TEXT,
		updated_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
		UNIQUE(definition_id, work_date)
	);

	CREATE INDEX IF NOT EXISTS idx_instances_date     ON task_instances(work_date);
	CREATE INDEX IF NOT EXISTS idx_instances_claimant ON task_instances(claimant_id, status);

	CREATE TABLE IF NOT EXISTS timecards (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		staff_id      INTEGER NOT NULL REFERENCES staff(id),
		work_date     TEXT NOT NULL,
		clock_in_at   TEXT NOT NULL,
		clock_out_at  TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_timecards_staff ON timecards(staff_id, clock_in_at);

	CREATE TABLE IF NOT EXISTS breaks (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		staff_id        INTEGER NOT NULL REFERENCES staff(id),
		timecard_id     INTEGER NOT NULL REFERENCES timecards(id),
		work_date       TEXT NOT NULL,
		break_start_at  TEXT NOT NULL,
		break_end_at    TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_breaks_timecard ON breaks(timecard_id);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO settings (key, value) VALUES
		('claim_ttl_minutes', '0'),
		('photo_max_edge',    '1600'),
		('history_limit',     '10');
	`
	_, err := s.db.Exec(ddl)
	return err
}

// DefaultDBPath returns ~/.config/shiftops/shiftops.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "shiftops", "shiftops.db"), nil
}
