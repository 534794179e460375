package domain

import "time"

// ─── Transaction Types ──────────────────────────────────────────────────────

// TransactionKind is the business reason for a ledger mutation.
type TransactionKind string

const (
	TxCheckIn        TransactionKind = "checkin"
	TxSpinWheel      TransactionKind = "spin_wheel"
	TxVideoReward    TransactionKind = "video_reward"
	TxAdWatch        TransactionKind = "ad_watch"
	TxTaskCompletion TransactionKind = "task_completion"
	TxReferralBonus  TransactionKind = "referral_bonus"
	TxWeeklyBonus    TransactionKind = "weekly_bonus"
	TxWithdrawal     TransactionKind = "withdrawal"
)

// WithdrawalStatus tracks the external approval lifecycle of a
// withdrawal. Only an external administrative process moves a
// withdrawal out of pending; the ledger never does.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Transaction is one immutable row in the append-only ledger trail.
// Amount is in coins for earning kinds and in currency units for
// withdrawals. Reference carries an optional external identifier
// (task ID for task completions, withdrawal ID for withdrawals).
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Kind        TransactionKind `json:"kind"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
	Status      string          `json:"status,omitempty"` // withdrawals only
	CreatedAt   time.Time       `json:"created_at"`
}

// Withdrawal is the pending payout record handed to the external
// administrative approval process.
type Withdrawal struct {
	ID            string           `json:"id"`
	AccountID     string           `json:"account_id"`
	Method        string           `json:"method"`
	AccountNumber string           `json:"account_number"`
	Amount        float64          `json:"amount"`
	Status        WithdrawalStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
