// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so there is no CGo and no C compiler
// needed. The binary stays a single static file.
//
// ONE CONNECTION:
// SQLite allows a single writer at a time. Rather than fight "database is locked"
// errors, the pool is capped at one open connection. Every query and every
// transaction is therefore serialised by database/sql itself, which is exactly
// the isolation the matching workflow needs: a CreatePending or Accept runs
// start-to-finish with nobody else touching the tables.
//
// The single connection also keeps a ":memory:" database alive for the whole
// life of the *DB (each new connection to ":memory:" would be a fresh, empty DB).
//
// CONSEQUENCE:
// Inside a transaction, every query MUST go through the *sql.Tx. A stray
// db.conn.QueryContext while a tx is open would wait forever for the one
// connection the tx is holding.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and implements repository.UserRepository
// and repository.MatchRepository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/mentor-match.db" → file-based database (persistent)
//   - ":memory:"             → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers of the file (backups, the sqlite3 CLI) work while we write.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. match_requests references users.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run on
// every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name          TEXT NOT NULL,
			role          TEXT NOT NULL CHECK (role IN ('mentor', 'mentee')),
			bio           TEXT NOT NULL DEFAULT '',
			skills        TEXT NOT NULL DEFAULT '[]',
			experience    INTEGER,
			hourly_rate   REAL,
			profile_image TEXT NOT NULL DEFAULT '',
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_role ON users(role, is_active);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// The partial unique index is the last line of defence for "one pending
	// request per mentee". CreatePending checks first and reports the existing
	// request; the index guarantees the rule even if that check were bypassed.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS match_requests (
			id         TEXT PRIMARY KEY,
			mentee_id  TEXT NOT NULL REFERENCES users(id),
			mentor_id  TEXT NOT NULL REFERENCES users(id),
			message    TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT 'pending'
			           CHECK (status IN ('pending', 'accepted', 'rejected', 'cancelled')),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_match_requests_mentor ON match_requests(mentor_id, status);
		CREATE INDEX IF NOT EXISTS idx_match_requests_mentee ON match_requests(mentee_id, status);
		CREATE UNIQUE INDEX IF NOT EXISTS ux_match_requests_one_pending
			ON match_requests(mentee_id) WHERE status = 'pending';
	`)
	if err != nil {
		return fmt.Errorf("creating match_requests table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is SQLite's UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
