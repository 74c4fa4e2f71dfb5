// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code.
//
// The nested per-user collections of a document store flatten into a handful
// of tables, each keyed by user_id first:
//
//	users          one row per account, channel profile inlined
//	preferences    (user_id, relation, target_id) membership set
//	comments       top-level comments and both reply kinds, one table
//	watch_history  (user_id, video_id), first view only
//	reports        (user_id, video_id), overwritten on re-report
//	report_reasons seeded lookup table
//	posts          (user_id, id), images and quiz stored as JSON
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/sakif/tubeclone/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/tubeclone.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is its own empty database, so the pool
	// must never grow past one connection. Callers therefore close rows
	// before issuing the next query.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	if err := db.seedReportReasons(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: seeding report reasons: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the /healthz handler.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is safe to run on every start; columns added
// after the first release go through addColumnIfNotExists.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			email                TEXT NOT NULL UNIQUE,
			password_hash        TEXT NOT NULL DEFAULT '',
			google_id            TEXT NOT NULL DEFAULT '',
			name                 TEXT NOT NULL DEFAULT '',
			picture              TEXT NOT NULL DEFAULT '',
			sign_in_mode         TEXT NOT NULL CHECK (sign_in_mode IN ('password', 'google')),
			channel_id           TEXT NOT NULL DEFAULT '',
			channel_name         TEXT NOT NULL DEFAULT '',
			channel_display_name TEXT NOT NULL DEFAULT '',
			channel_description  TEXT NOT NULL DEFAULT '',
			channel_profile_url  TEXT NOT NULL DEFAULT '',
			created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Banner images arrived after profile images.
	if err := db.addColumnIfNotExists("users", "channel_banner_url",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding channel_banner_url to users: %w", err)
	}

	// Presence is the state: no boolean column, a row exists or it does not.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			relation   TEXT NOT NULL,
			target_id  TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, relation, target_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating preferences table: %w", err)
	}

	// parent_id is '' for top-level rows. The (user_id, parent_id) index
	// serves reply lookups of either kind.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS comments (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			video_id     TEXT NOT NULL,
			parent_id    TEXT NOT NULL DEFAULT '',
			kind         TEXT NOT NULL CHECK (kind IN ('top_level', 'own_reply', 'foreign_reply')),
			text         TEXT NOT NULL,
			channel_id   TEXT NOT NULL DEFAULT '',
			like_count   INTEGER NOT NULL DEFAULT 0,
			published_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_comments_user_video ON comments(user_id, video_id);
		CREATE INDEX IF NOT EXISTS idx_comments_user_parent ON comments(user_id, parent_id);
	`)
	if err != nil {
		return fmt.Errorf("creating comments table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS watch_history (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			video_id   TEXT NOT NULL,
			watched_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, video_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating watch_history table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS report_reasons (
			id       TEXT PRIMARY KEY,
			label    TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS reports (
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			video_id      TEXT NOT NULL,
			video_title   TEXT NOT NULL DEFAULT '',
			channel_title TEXT NOT NULL DEFAULT '',
			reason_id     TEXT NOT NULL,
			reason_title  TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			type          TEXT NOT NULL,
			created_at    DATETIME NOT NULL,
			PRIMARY KEY (user_id, video_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating report tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id         TEXT NOT NULL,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type       TEXT NOT NULL CHECK (type IN ('text', 'image', 'quiz')),
			text       TEXT NOT NULL DEFAULT '',
			images     TEXT NOT NULL DEFAULT '[]',
			quiz       TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent, so it can run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// seedReportReasons fills report_reasons on first start. INSERT OR IGNORE
// keeps labels an operator edited by hand.
func (db *DB) seedReportReasons() error {
	for i, r := range repository.DefaultReportReasons {
		if _, err := db.conn.Exec(
			`INSERT OR IGNORE INTO report_reasons (id, label, position) VALUES (?, ?, ?)`,
			r.ID, r.Label, i,
		); err != nil {
			return fmt.Errorf("inserting reason %s: %w", r.ID, err)
		}
	}
	return nil
}
