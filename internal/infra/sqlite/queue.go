package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/coinflow-app/coinflow/internal/domain"
)

// ─── Offline Queue Operations ───────────────────────────────────────────────

// EnqueueAction appends a deferred action with attempts = 0.
func (db *DB) EnqueueAction(ctx context.Context, kind string, args []byte, enqueuedAt time.Time) (int64, error) {
	res, err := db.db.ExecContext(ctx, `
		INSERT INTO offline_queue (kind, args, enqueued_at) VALUES (?, ?, ?)
	`, kind, args, enqueuedAt.UnixMilli())
	if err != nil {
		return 0, domain.StorageUnavailable(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.StorageUnavailable(err)
	}
	return id, nil
}

// PendingActions returns all queued actions in insertion order.
func (db *DB) PendingActions(ctx context.Context) ([]domain.QueuedAction, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, kind, args, enqueued_at, attempts FROM offline_queue ORDER BY id
	`)
	if err != nil {
		return nil, domain.StorageUnavailable(err)
	}
	defer rows.Close()

	var result []domain.QueuedAction
	for rows.Next() {
		var a domain.QueuedAction
		var enqueuedAt sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Kind, &a.Args, &enqueuedAt, &a.Attempts); err != nil {
			return nil, domain.StorageUnavailable(err)
		}
		a.EnqueuedAt = decodeTime(enqueuedAt)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageUnavailable(err)
	}
	return result, nil
}

// DeleteAction removes a replayed action. Called only after the replay
// confirmed the mutation was durably applied.
func (db *DB) DeleteAction(ctx context.Context, id int64) error {
	if _, err := db.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, id); err != nil {
		return domain.StorageUnavailable(err)
	}
	return nil
}

// BumpActionAttempts increments the failure counter for diagnostics.
func (db *DB) BumpActionAttempts(ctx context.Context, id int64) error {
	if _, err := db.db.ExecContext(ctx, `
		UPDATE offline_queue SET attempts = attempts + 1 WHERE id = ?
	`, id); err != nil {
		return domain.StorageUnavailable(err)
	}
	return nil
}

// QueueDepth returns the number of queued actions.
func (db *DB) QueueDepth(ctx context.Context) (int, error) {
	var n int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&n); err != nil {
		return 0, domain.StorageUnavailable(err)
	}
	return n, nil
}
