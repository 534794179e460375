package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/coinflow-app/coinflow/internal/domain"
)

// ─── Transaction Log Operations ─────────────────────────────────────────────

func insertTransaction(ctx context.Context, tx *sql.Tx, txn domain.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, kind, amount, description, reference, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, txn.ID, txn.AccountID, string(txn.Kind), txn.Amount, txn.Description,
		txn.Reference, txn.Status, encodeTime(txn.CreatedAt))
	if err != nil {
		return domain.StorageUnavailable(err)
	}
	return nil
}

// SumByAccountSince sums transaction amounts for an account since the
// given time, optionally filtered by kind. Used for daily-limit checks
// such as today's withdrawals.
func (db *DB) SumByAccountSince(ctx context.Context, accountID string, kind domain.TransactionKind, since time.Time) (float64, error) {
	q := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE account_id = ? AND created_at >= ?`
	args := []any{accountID, since.UnixMilli()}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(kind))
	}

	var sum float64
	if err := db.db.QueryRowContext(ctx, q, args...).Scan(&sum); err != nil {
		return 0, domain.StorageUnavailable(err)
	}
	return sum, nil
}

// ListByAccount returns the account's most recent transactions, newest first.
func (db *DB) ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, account_id, kind, amount, description, reference, status, created_at
		FROM transactions WHERE account_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, domain.StorageUnavailable(err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		var kind string
		var createdAt sql.NullInt64
		if err := rows.Scan(&txn.ID, &txn.AccountID, &kind, &txn.Amount,
			&txn.Description, &txn.Reference, &txn.Status, &createdAt); err != nil {
			return nil, domain.StorageUnavailable(err)
		}
		txn.Kind = domain.TransactionKind(kind)
		txn.CreatedAt = decodeTime(createdAt)
		result = append(result, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageUnavailable(err)
	}
	return result, nil
}

// HasTaskCompletion reports whether the account already has a
// task_completion transaction referencing the given task.
func (db *DB) HasTaskCompletion(ctx context.Context, accountID, taskID string) (bool, error) {
	var count int
	err := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE account_id = ? AND kind = ? AND reference = ?
	`, accountID, string(domain.TxTaskCompletion), taskID).Scan(&count)
	if err != nil {
		return false, domain.StorageUnavailable(err)
	}
	return count > 0, nil
}

// ─── Withdrawal Record Operations ───────────────────────────────────────────

// ListWithdrawals returns the account's withdrawal records, newest first.
func (db *DB) ListWithdrawals(ctx context.Context, accountID string, limit int) ([]domain.Withdrawal, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, account_id, method, account_number, amount, status, created_at, updated_at
		FROM withdrawals WHERE account_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, domain.StorageUnavailable(err)
	}
	defer rows.Close()

	var result []domain.Withdrawal
	for rows.Next() {
		var w domain.Withdrawal
		var status string
		var createdAt, updatedAt sql.NullInt64
		if err := rows.Scan(&w.ID, &w.AccountID, &w.Method, &w.AccountNumber,
			&w.Amount, &status, &createdAt, &updatedAt); err != nil {
			return nil, domain.StorageUnavailable(err)
		}
		w.Status = domain.WithdrawalStatus(status)
		w.CreatedAt = decodeTime(createdAt)
		w.UpdatedAt = decodeTime(updatedAt)
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageUnavailable(err)
	}
	return result, nil
}
