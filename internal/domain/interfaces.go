package domain

import (
	"context"
	"time"
)

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define the boundary between the ledger and the
// document store. Infrastructure implements them; the application
// layer depends only on the contract, so the ledger is testable
// against an in-memory fake.

// Mutation is one all-or-nothing account update. The store commits the
// updated snapshot, the transaction rows, and the optional withdrawal
// record in a single storage transaction, or none of them.
type Mutation struct {
	// Account is the fully mutated snapshot to persist.
	Account *Account
	// ExpectVersion is the version the snapshot was read at. The store
	// fails with ErrWriteConflict if the stored version differs.
	ExpectVersion int64
	// Transactions are appended to the immutable ledger trail.
	Transactions []Transaction
	// Withdrawal, if set, is recorded for external approval.
	Withdrawal *Withdrawal
}

// AccountStore is the narrow contract over the persistent account store:
// point read, point create, and an atomic conditional update.
type AccountStore interface {
	// GetAccount returns the current snapshot or ErrAccountNotFound.
	GetAccount(ctx context.Context, id string) (*Account, error)

	// CreateAccount inserts a new account. Fails with ErrAccountExists
	// if the id is taken.
	CreateAccount(ctx context.Context, acc *Account) error

	// ApplyMutation commits the mutation atomically, bumping the
	// account version. Fails with ErrWriteConflict on a stale
	// ExpectVersion without applying anything.
	ApplyMutation(ctx context.Context, m Mutation) error
}

// TransactionLog is the append-only trail of ledger mutations. Appends
// outside a Mutation exist only for the external administrative
// process; the ledger itself always appends through ApplyMutation.
// There are no update or delete operations.
type TransactionLog interface {
	// SumByAccountSince sums transaction amounts for an account since
	// the given time, optionally filtered by kind ("" means all kinds).
	SumByAccountSince(ctx context.Context, accountID string, kind TransactionKind, since time.Time) (float64, error)

	// ListByAccount returns the most recent transactions, newest first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]Transaction, error)

	// HasTaskCompletion reports whether a task_completion transaction
	// referencing the given task already exists for the account.
	HasTaskCompletion(ctx context.Context, accountID, taskID string) (bool, error)
}
