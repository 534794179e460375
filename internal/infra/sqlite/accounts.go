package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/coinflow-app/coinflow/internal/domain"
)

// ─── Account Operations ─────────────────────────────────────────────────────

const accountColumns = `id, coins, balance, today_earned, total_earned, referral_earnings,
	checkin_streak, last_checkin, last_earn_date, spins_remaining, completed_tasks,
	weekly_bonus_claimed, created_at, version`

// GetAccount returns the current account snapshot.
func (db *DB) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = ?
	`, id)
	return scanAccount(row)
}

// CreateAccount inserts a new account snapshot.
func (db *DB) CreateAccount(ctx context.Context, acc *domain.Account) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		acc.ID, acc.Coins, acc.Balance, acc.TodayEarned, acc.TotalEarned, acc.ReferralEarnings,
		acc.CheckInStreak, encodeTime(acc.LastCheckIn), encodeTime(acc.LastEarnDate),
		acc.SpinsRemaining, acc.CompletedTasks, boolInt(acc.WeeklyBonusClaimed),
		encodeTime(acc.CreatedAt), acc.Version,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.ErrAccountExists
		}
		return domain.StorageUnavailable(err)
	}
	return nil
}

// ApplyMutation commits an account update, its transaction rows, and
// an optional withdrawal record in one storage transaction. The write
// is conditional on the expected version; a mismatch leaves the store
// untouched and returns ErrWriteConflict.
func (db *DB) ApplyMutation(ctx context.Context, m domain.Mutation) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageUnavailable(err)
	}
	defer tx.Rollback()

	acc := m.Account
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET
			coins                = ?,
			balance              = ?,
			today_earned         = ?,
			total_earned         = ?,
			referral_earnings    = ?,
			checkin_streak       = ?,
			last_checkin         = ?,
			last_earn_date       = ?,
			spins_remaining      = ?,
			completed_tasks      = ?,
			weekly_bonus_claimed = ?,
			version              = ?
		WHERE id = ? AND version = ?
	`,
		acc.Coins, acc.Balance, acc.TodayEarned, acc.TotalEarned, acc.ReferralEarnings,
		acc.CheckInStreak, encodeTime(acc.LastCheckIn), encodeTime(acc.LastEarnDate),
		acc.SpinsRemaining, acc.CompletedTasks, boolInt(acc.WeeklyBonusClaimed),
		m.ExpectVersion+1, acc.ID, m.ExpectVersion,
	)
	if err != nil {
		return domain.StorageUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.StorageUnavailable(err)
	}
	if n == 0 {
		return domain.ErrWriteConflict
	}

	for _, txn := range m.Transactions {
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
	}

	if w := m.Withdrawal; w != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO withdrawals (id, account_id, method, account_number, amount, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, w.ID, w.AccountID, w.Method, w.AccountNumber, w.Amount, string(w.Status),
			encodeTime(w.CreatedAt), encodeTime(w.UpdatedAt))
		if err != nil {
			return domain.StorageUnavailable(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StorageUnavailable(err)
	}
	acc.Version = m.ExpectVersion + 1
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var acc domain.Account
	var lastCheckIn, lastEarn, createdAt sql.NullInt64
	var weeklyClaimed int
	err := row.Scan(
		&acc.ID, &acc.Coins, &acc.Balance, &acc.TodayEarned, &acc.TotalEarned, &acc.ReferralEarnings,
		&acc.CheckInStreak, &lastCheckIn, &lastEarn, &acc.SpinsRemaining, &acc.CompletedTasks,
		&weeklyClaimed, &createdAt, &acc.Version,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, domain.StorageUnavailable(err)
	}
	acc.LastCheckIn = decodeTime(lastCheckIn)
	acc.LastEarnDate = decodeTime(lastEarn)
	acc.CreatedAt = decodeTime(createdAt)
	acc.WeeklyBonusClaimed = weeklyClaimed == 1
	return &acc, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
