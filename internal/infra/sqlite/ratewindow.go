package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/coinflow-app/coinflow/internal/domain"
)

// ─── Rate Window Operations ─────────────────────────────────────────────────
// One row per admitted request. TakeRateSlot prunes, counts, and
// appends inside a single storage transaction so the per-key window
// update is atomic.

// TakeRateSlot attempts to admit a request for (actor, action).
// Entries older than the window are discarded first. If the remaining
// count has reached limit, the request is refused and retryAfter says
// how long until the oldest entry leaves the window.
func (db *DB) TakeRateSlot(ctx context.Context, actor, action string, now time.Time, window time.Duration, limit int) (allowed bool, retryAfter time.Duration, err error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, domain.StorageUnavailable(err)
	}
	defer tx.Rollback()

	cutoff := now.Add(-window).UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM rate_requests WHERE actor = ? AND action = ? AND requested_at <= ?
	`, actor, action, cutoff); err != nil {
		return false, 0, domain.StorageUnavailable(err)
	}

	var count int
	var oldest sql.NullInt64
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(requested_at) FROM rate_requests WHERE actor = ? AND action = ?
	`, actor, action).Scan(&count, &oldest); err != nil {
		return false, 0, domain.StorageUnavailable(err)
	}

	if count >= limit {
		wait := time.UnixMilli(oldest.Int64).Add(window).Sub(now)
		if wait < 0 {
			wait = 0
		}
		if err := tx.Commit(); err != nil {
			return false, 0, domain.StorageUnavailable(err)
		}
		return false, wait, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rate_requests (actor, action, requested_at) VALUES (?, ?, ?)
	`, actor, action, now.UnixMilli()); err != nil {
		return false, 0, domain.StorageUnavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return false, 0, domain.StorageUnavailable(err)
	}
	return true, 0, nil
}

// CountRateSlots returns the number of requests inside the window.
func (db *DB) CountRateSlots(ctx context.Context, actor, action string, now time.Time, window time.Duration) (int, error) {
	var count int
	err := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rate_requests WHERE actor = ? AND action = ? AND requested_at > ?
	`, actor, action, now.Add(-window).UnixMilli()).Scan(&count)
	if err != nil {
		return 0, domain.StorageUnavailable(err)
	}
	return count, nil
}

// ResetRateWindow clears the window for (actor, action).
func (db *DB) ResetRateWindow(ctx context.Context, actor, action string) error {
	if _, err := db.db.ExecContext(ctx, `
		DELETE FROM rate_requests WHERE actor = ? AND action = ?
	`, actor, action); err != nil {
		return domain.StorageUnavailable(err)
	}
	return nil
}
