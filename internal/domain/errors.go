package domain

import (
	"errors"
	"fmt"
	"time"
)

// ─── Coded Errors ───────────────────────────────────────────────────────────
// Every surfaced failure carries a machine-readable code and a short
// user-facing message. Two errors match under errors.Is when their
// codes match, so call sites can test against the sentinel values
// below regardless of the formatted message.

// Error is a business failure with a stable machine code.
type Error struct {
	Code       string        // stable machine code, e.g. "DAILY_LIMIT_EXCEEDED"
	Message    string        // short human-readable message
	RetryAfter time.Duration // nonzero only for rate-limit failures
	Err        error         // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches by code, so formatted instances compare equal to sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Errorf builds a coded error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ─── Sentinel Errors ────────────────────────────────────────────────────────

var (
	ErrNotAuthenticated = &Error{Code: "NOT_AUTHENTICATED", Message: "not authenticated"}
	ErrAccountNotFound  = &Error{Code: "ACCOUNT_NOT_FOUND", Message: "account not found"}
	ErrAccountExists    = &Error{Code: "ACCOUNT_EXISTS", Message: "account already exists"}

	ErrInvalidAmount      = &Error{Code: "INVALID_AMOUNT", Message: "invalid amount"}
	ErrDailyLimitExceeded = &Error{Code: "DAILY_LIMIT_EXCEEDED", Message: "daily earning limit reached"}
	ErrAlreadyCheckedIn   = &Error{Code: "ALREADY_CHECKED_IN", Message: "already checked in today"}
	ErrNoSpinsLeft        = &Error{Code: "NO_SPINS_LEFT", Message: "no spins left today"}
	ErrTaskAlreadyDone    = &Error{Code: "TASK_ALREADY_COMPLETED", Message: "task already completed"}

	ErrInsufficientBalance  = &Error{Code: "INSUFFICIENT_BALANCE", Message: "insufficient balance"}
	ErrWithdrawalsDisabled  = &Error{Code: "WITHDRAWALS_DISABLED", Message: "withdrawals are currently disabled"}
	ErrMethodUnavailable    = &Error{Code: "WITHDRAWAL_METHOD_UNAVAILABLE", Message: "selected payment method is not available"}
	ErrInvalidAccountNumber = &Error{Code: "INVALID_ACCOUNT_NUMBER", Message: "invalid account number"}
	ErrWithdrawalDailyLimit = &Error{Code: "WITHDRAWAL_DAILY_LIMIT_EXCEEDED", Message: "daily withdrawal limit reached"}

	ErrRateLimited = &Error{Code: "RATE_LIMIT_EXCEEDED", Message: "rate limit exceeded"}

	// Transient failures. WriteConflict is retried internally and only
	// surfaces once retries are exhausted.
	ErrStorageUnavailable = &Error{Code: "STORAGE_UNAVAILABLE", Message: "storage unavailable"}
	ErrWriteConflict      = &Error{Code: "WRITE_CONFLICT", Message: "concurrent update conflict"}

	// ErrOffline marks a failure caused by connectivity loss. Mutating
	// actions failing with it are queued for replay instead of surfaced.
	ErrOffline = &Error{Code: "OFFLINE", Message: "no internet connection available"}
)

// RateLimitExceeded builds a rate-limit failure carrying the wait time.
func RateLimitExceeded(retryAfter time.Duration) *Error {
	mins := int(retryAfter.Minutes()) + 1
	return &Error{
		Code:       ErrRateLimited.Code,
		Message:    fmt.Sprintf("rate limit exceeded, try again in %d minutes", mins),
		RetryAfter: retryAfter,
	}
}

// StorageUnavailable wraps a backend failure as a transient storage error.
func StorageUnavailable(err error) *Error {
	return &Error{Code: ErrStorageUnavailable.Code, Message: ErrStorageUnavailable.Message, Err: err}
}

// ─── Failure Classification ─────────────────────────────────────────────────
// The retry-with-backoff and queue-on-disconnect responses hang off an
// explicit classification of the failure, not ad-hoc branching on
// error identities at each call site.

// FailureClass decides how a failed mutation is handled.
type FailureClass int

const (
	// FailureTerminal: validation or business-rule failure; surfaced verbatim.
	FailureTerminal FailureClass = iota
	// FailureTransient: storage hiccup or write conflict; retried with backoff.
	FailureTransient
	// FailureOffline: connectivity loss; the action is queued for replay.
	FailureOffline
)

// Classify maps an error to its failure class.
func Classify(err error) FailureClass {
	var e *Error
	if !errors.As(err, &e) {
		// Unknown errors come from infrastructure; treat as transient.
		return FailureTransient
	}
	switch e.Code {
	case ErrOffline.Code:
		return FailureOffline
	case ErrStorageUnavailable.Code, ErrWriteConflict.Code:
		return FailureTransient
	default:
		return FailureTerminal
	}
}
