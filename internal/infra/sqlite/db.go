// Package sqlite persists all durable device-local state: the account
// snapshot, the append-only transaction log, pending withdrawals, rate
// limiter windows, and the offline action queue.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the embedded database handle.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single writer keeps conditional updates simple; WAL lets
	// readers proceed during commits.
	sqldb.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	}
	for _, p := range pragmas {
		if _, err := sqldb.Exec(p); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	db := &DB{db: sqldb}
	if err := db.migrate(); err != nil {
		sqldb.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error { return db.db.Close() }

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Mutable account snapshot. version guards optimistic
		// concurrency: conditional updates check and bump it.
		`CREATE TABLE IF NOT EXISTS accounts (
			id                   TEXT PRIMARY KEY,
			coins                INTEGER NOT NULL DEFAULT 0,
			balance              REAL NOT NULL DEFAULT 0,
			today_earned         REAL NOT NULL DEFAULT 0,
			total_earned         REAL NOT NULL DEFAULT 0,
			referral_earnings    REAL NOT NULL DEFAULT 0,
			checkin_streak       INTEGER NOT NULL DEFAULT 0,
			last_checkin         INTEGER,
			last_earn_date       INTEGER,
			spins_remaining      INTEGER NOT NULL DEFAULT 0,
			completed_tasks      INTEGER NOT NULL DEFAULT 0,
			weekly_bonus_claimed INTEGER NOT NULL DEFAULT 0,
			created_at           INTEGER NOT NULL,
			version              INTEGER NOT NULL DEFAULT 0
		)`,

		// Append-only transaction trail. No UPDATE or DELETE is ever
		// issued against this table except the external approval
		// process touching withdrawal status.
		`CREATE TABLE IF NOT EXISTS transactions (
			id          TEXT PRIMARY KEY,
			account_id  TEXT NOT NULL,
			kind        TEXT NOT NULL,
			amount      REAL NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			reference   TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_account_time ON transactions(account_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_account_kind ON transactions(account_id, kind, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_reference ON transactions(account_id, kind, reference)`,

		// Pending withdrawal records for the external approval process.
		`CREATE TABLE IF NOT EXISTS withdrawals (
			id             TEXT PRIMARY KEY,
			account_id     TEXT NOT NULL,
			method         TEXT NOT NULL,
			account_number TEXT NOT NULL,
			amount         REAL NOT NULL,
			status         TEXT NOT NULL DEFAULT 'pending',
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_account ON withdrawals(account_id, created_at)`,

		// Sliding-window rate limiter requests, one row per admitted
		// request. Survives process restarts on the same device.
		`CREATE TABLE IF NOT EXISTS rate_requests (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			actor        TEXT NOT NULL,
			action       TEXT NOT NULL,
			requested_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_actor_action ON rate_requests(actor, action, requested_at)`,

		// Durable offline action queue, FIFO by id.
		`CREATE TABLE IF NOT EXISTS offline_queue (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			kind        TEXT NOT NULL,
			args        BLOB NOT NULL,
			enqueued_at INTEGER NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0
		)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Time Encoding ──────────────────────────────────────────────────────────
// Timestamps are stored as unix milliseconds so window and range
// comparisons happen in integer arithmetic. Zero times map to NULL.

func encodeTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func decodeTime(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64)
}
