// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture. It depends on nothing.
package domain

import "time"

// ─── Account Types ──────────────────────────────────────────────────────────

// Account is the per-user ledger snapshot. Coins and balance are two
// denominations of the same earnings, related by the configured
// coin-to-BDT exchange rate; every earning mutation moves both in the
// same atomic step.
//
// Invariant: Balance == TotalEarned - total withdrawn, where total
// withdrawn is reconstructible from the transaction log.
type Account struct {
	ID               string    `json:"id"`
	Coins            int64     `json:"coins"`
	Balance          float64   `json:"balance"`
	TodayEarned      float64   `json:"today_earned"`
	TotalEarned      float64   `json:"total_earned"`
	ReferralEarnings float64   `json:"referral_earnings"`
	CheckInStreak    int       `json:"checkin_streak"` // 0..7
	LastCheckIn      time.Time `json:"last_checkin"`   // zero if never checked in
	LastEarnDate     time.Time `json:"last_earn_date"`
	SpinsRemaining   int       `json:"spins_remaining"`
	CompletedTasks   int       `json:"completed_tasks"`
	WeeklyBonusClaimed bool    `json:"weekly_bonus_claimed"`
	CreatedAt        time.Time `json:"created_at"`

	// Version guards optimistic concurrency. The store refuses a
	// conditional write whose expected version no longer matches.
	Version int64 `json:"version"`
}

// NewAccount returns a fresh account with signup defaults.
func NewAccount(id string, dailySpins int, now time.Time) *Account {
	return &Account{
		ID:             id,
		SpinsRemaining: dailySpins,
		CreatedAt:      now,
	}
}

// SameCalendarDay reports whether a and b fall on the same calendar day
// in the given location. The location is the explicit day-boundary
// policy for streak and "already checked in" decisions.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// IsYesterday reports whether prev falls on the calendar day
// immediately before now in the given location.
func IsYesterday(prev, now time.Time, loc *time.Location) bool {
	return SameCalendarDay(prev, now.In(loc).AddDate(0, 0, -1), loc)
}

// StartOfDay returns midnight of now's calendar day in the given location.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ─── Offline Queue Types ────────────────────────────────────────────────────

// QueuedAction is one deferred mutating action, recorded while the
// device is offline and replayed in FIFO order on reconnect.
type QueuedAction struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Args       []byte    `json:"args"` // JSON-encoded handler arguments
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts"`
}
