// Package ledger implements the atomic rewards ledger: coin credits,
// daily check-ins, spin-wheel rewards, task completions, referral
// bonuses, and withdrawal requests. Every mutation commits the account
// snapshot, the transaction trail, and any withdrawal record in one
// conditional store write; a stale snapshot is re-read and retried
// with backoff.
package ledger

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/coinflow-app/coinflow/internal/domain"
	"github.com/coinflow-app/coinflow/internal/infra/observability"
)

// accountNumberRe is the payout account format: an 11-digit mobile
// money number.
var accountNumberRe = regexp.MustCompile(`^\d{11}$`)

// ─── Collaborator Contracts ─────────────────────────────────────────────────

// RatesProvider serves the current configuration snapshots.
type RatesProvider interface {
	EarningRates(ctx context.Context) (domain.EarningRates, error)
	WithdrawalSettings(ctx context.Context) (domain.WithdrawalSettings, error)
}

// Limiter gates actions before any mutation is attempted.
type Limiter interface {
	Check(ctx context.Context, actor, action string) error
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// Config bounds the ledger's behavior.
type Config struct {
	// DailyEarnCap caps todayEarned, in currency units.
	DailyEarnCap float64
	// MaxCreditCoins bounds a single credit.
	MaxCreditCoins int64
	// MaxDailySpins is restored on the first mutation of a new day.
	MaxDailySpins int
	// MaxRetries bounds the read-modify-write cycle on transient failures.
	MaxRetries int
	// RetryBase is the first backoff interval; it doubles per attempt.
	RetryBase time.Duration
	// DayBoundary is the calendar used for "same day" decisions.
	DayBoundary *time.Location
}

// DefaultConfig returns the deployment defaults.
func DefaultConfig() Config {
	return Config{
		DailyEarnCap:   50,
		MaxCreditCoins: 1000,
		MaxDailySpins:  2,
		MaxRetries:     5,
		RetryBase:      25 * time.Millisecond,
		DayBoundary:    time.Local,
	}
}

// Ledger owns all account mutations.
type Ledger struct {
	cfg     Config
	store   domain.AccountStore
	txlog   domain.TransactionLog
	rates   RatesProvider
	limiter Limiter

	now     func() time.Time
	randInt func(n int) int // uniform in [0, n)
}

// New creates a ledger. Config zero values fall back to defaults.
func New(cfg Config, store domain.AccountStore, txlog domain.TransactionLog, rates RatesProvider, limiter Limiter) *Ledger {
	def := DefaultConfig()
	if cfg.DailyEarnCap <= 0 {
		cfg.DailyEarnCap = def.DailyEarnCap
	}
	if cfg.MaxCreditCoins <= 0 {
		cfg.MaxCreditCoins = def.MaxCreditCoins
	}
	if cfg.MaxDailySpins <= 0 {
		cfg.MaxDailySpins = def.MaxDailySpins
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.DayBoundary == nil {
		cfg.DayBoundary = time.Local
	}
	return &Ledger{
		cfg:     cfg,
		store:   store,
		txlog:   txlog,
		rates:   rates,
		limiter: limiter,
		now:     time.Now,
		randInt: defaultRandInt,
	}
}

// ─── Results ────────────────────────────────────────────────────────────────

// CheckInResult is the outcome of a successful daily check-in.
type CheckInResult struct {
	Account *domain.Account `json:"account"`
	Reward  int64           `json:"reward"`
	Streak  int             `json:"streak"` // streak day paid, 1..7
}

// SpinResult is the outcome of a successful wheel spin.
type SpinResult struct {
	Account   *domain.Account `json:"account"`
	Reward    int64           `json:"reward"`
	Remaining int             `json:"remaining"`
}

// ─── Account Lifecycle ──────────────────────────────────────────────────────

// CreateAccount registers a new account with signup defaults. If
// referrerID is set, the referrer is credited the referral bonus; a
// failure there is logged but does not undo the signup.
func (l *Ledger) CreateAccount(ctx context.Context, id, referrerID string) (*domain.Account, error) {
	acc := domain.NewAccount(id, l.cfg.MaxDailySpins, l.now())
	if err := l.store.CreateAccount(ctx, acc); err != nil {
		observability.LedgerOps.WithLabelValues("signup", outcome(err)).Inc()
		return nil, err
	}
	observability.LedgerOps.WithLabelValues("signup", "ok").Inc()

	if referrerID != "" && referrerID != id {
		if _, err := l.ReferralBonus(ctx, referrerID, id); err != nil {
			log.Printf("[ledger] referral credit for %s failed: %v", referrerID, err)
		}
	}
	return acc, nil
}

// Account returns the current snapshot.
func (l *Ledger) Account(ctx context.Context, id string) (*domain.Account, error) {
	return l.store.GetAccount(ctx, id)
}

// ─── Earning Operations ─────────────────────────────────────────────────────

// AddCoins credits coins for an earning event (video reward, ad watch,
// generic task reward). The credit is refused when it would push
// todayEarned past the daily cap.
func (l *Ledger) AddCoins(ctx context.Context, accountID string, coins int64, kind domain.TransactionKind, description string) (*domain.Account, error) {
	if coins <= 0 || coins > l.cfg.MaxCreditCoins {
		return nil, domain.Errorf(domain.ErrInvalidAmount.Code, "amount must be between 1 and %d coins", l.cfg.MaxCreditCoins)
	}
	rates, err := l.rates.EarningRates(ctx)
	if err != nil {
		return nil, err
	}

	acc, err := l.commit(ctx, accountID, string(kind), func(acc *domain.Account) (domain.Mutation, error) {
		now := l.now()
		l.rollover(acc, now)

		increment := float64(coins) / rates.CoinRate()
		if acc.TodayEarned+increment > l.cfg.DailyEarnCap {
			return domain.Mutation{}, domain.ErrDailyLimitExceeded
		}

		expect := acc.Version
		l.credit(acc, coins, rates.CoinRate(), now)
		return domain.Mutation{
			Account:       acc,
			ExpectVersion: expect,
			Transactions:  []domain.Transaction{l.newTransaction(accountID, kind, float64(coins), description, "")},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return l.checkMilestone(ctx, acc), nil
}

// CheckIn pays the daily check-in reward and advances the streak.
// Consecutive days climb toward the day-7 bonus; a missed day restarts
// at day 1. At most one check-in per calendar day.
func (l *Ledger) CheckIn(ctx context.Context, accountID string) (*CheckInResult, error) {
	if err := l.limiter.Check(ctx, accountID, "checkin"); err != nil {
		observability.LedgerOps.WithLabelValues(string(domain.TxCheckIn), "rejected").Inc()
		return nil, err
	}
	rates, err := l.rates.EarningRates(ctx)
	if err != nil {
		return nil, err
	}

	var reward int64
	var day int
	acc, err := l.commit(ctx, accountID, string(domain.TxCheckIn), func(acc *domain.Account) (domain.Mutation, error) {
		now := l.now()
		l.rollover(acc, now)

		if !acc.LastCheckIn.IsZero() && domain.SameCalendarDay(acc.LastCheckIn, now, l.cfg.DayBoundary) {
			return domain.Mutation{}, domain.ErrAlreadyCheckedIn
		}

		day = 1
		if !acc.LastCheckIn.IsZero() && domain.IsYesterday(acc.LastCheckIn, now, l.cfg.DayBoundary) {
			day = acc.CheckInStreak + 1
			if day > 7 {
				day = 7
			}
		}
		reward = rates.CheckinReward(day)

		expect := acc.Version
		l.credit(acc, reward, rates.CoinRate(), now)
		acc.CheckInStreak = day % 7 // day 7 pays out, then the cycle restarts
		acc.LastCheckIn = now
		return domain.Mutation{
			Account:       acc,
			ExpectVersion: expect,
			Transactions: []domain.Transaction{
				l.newTransaction(accountID, domain.TxCheckIn, float64(reward), checkinDescription(day), ""),
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &CheckInResult{Account: l.checkMilestone(ctx, acc), Reward: reward, Streak: day}, nil
}

// SpinWheel consumes one spin and pays a segment picked uniformly from
// the configured wheel.
func (l *Ledger) SpinWheel(ctx context.Context, accountID string) (*SpinResult, error) {
	if err := l.limiter.Check(ctx, accountID, "spin"); err != nil {
		observability.LedgerOps.WithLabelValues(string(domain.TxSpinWheel), "rejected").Inc()
		return nil, err
	}
	rates, err := l.rates.EarningRates(ctx)
	if err != nil {
		return nil, err
	}
	segments := rates.SpinSegments
	if len(segments) == 0 {
		segments = domain.DefaultEarningRates().SpinSegments
	}

	var reward int64
	acc, err := l.commit(ctx, accountID, string(domain.TxSpinWheel), func(acc *domain.Account) (domain.Mutation, error) {
		now := l.now()
		l.rollover(acc, now)

		if acc.SpinsRemaining <= 0 {
			return domain.Mutation{}, domain.ErrNoSpinsLeft
		}
		reward = segments[l.randInt(len(segments))]

		expect := acc.Version
		l.credit(acc, reward, rates.CoinRate(), now)
		acc.SpinsRemaining--
		return domain.Mutation{
			Account:       acc,
			ExpectVersion: expect,
			Transactions: []domain.Transaction{
				l.newTransaction(accountID, domain.TxSpinWheel, float64(reward), "Spin wheel reward", ""),
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &SpinResult{Account: l.checkMilestone(ctx, acc), Reward: reward, Remaining: acc.SpinsRemaining}, nil
}

// CompleteTask credits a one-off task reward. A task already recorded
// for the account is refused, so queued replays can't double-pay.
func (l *Ledger) CompleteTask(ctx context.Context, accountID, taskID string, reward int64) (*domain.Account, error) {
	if taskID == "" {
		return nil, domain.Errorf(domain.ErrInvalidAmount.Code, "task id is required")
	}
	if reward <= 0 || reward > l.cfg.MaxCreditCoins {
		return nil, domain.Errorf(domain.ErrInvalidAmount.Code, "amount must be between 1 and %d coins", l.cfg.MaxCreditCoins)
	}
	done, err := l.txlog.HasTaskCompletion(ctx, accountID, taskID)
	if err != nil {
		return nil, domain.StorageUnavailable(err)
	}
	if done {
		return nil, domain.ErrTaskAlreadyDone
	}
	rates, err := l.rates.EarningRates(ctx)
	if err != nil {
		return nil, err
	}

	acc, err := l.commit(ctx, accountID, string(domain.TxTaskCompletion), func(acc *domain.Account) (domain.Mutation, error) {
		now := l.now()
		l.rollover(acc, now)

		increment := float64(reward) / rates.CoinRate()
		if acc.TodayEarned+increment > l.cfg.DailyEarnCap {
			return domain.Mutation{}, domain.ErrDailyLimitExceeded
		}

		expect := acc.Version
		l.credit(acc, reward, rates.CoinRate(), now)
		return domain.Mutation{
			Account:       acc,
			ExpectVersion: expect,
			Transactions: []domain.Transaction{
				l.newTransaction(accountID, domain.TxTaskCompletion, float64(reward), "Task completed", taskID),
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return l.checkMilestone(ctx, acc), nil
}

// ReferralBonus credits the referrer for a completed referral. The
// bonus counts toward lifetime earnings but not toward the daily cap.
func (l *Ledger) ReferralBonus(ctx context.Context, referrerID, referredID string) (*domain.Account, error) {
	rates, err := l.rates.EarningRates(ctx)
	if err != nil {
		return nil, err
	}
	bonus := rates.ReferralBonus
	if bonus <= 0 {
		bonus = domain.DefaultEarningRates().ReferralBonus
	}

	return l.commit(ctx, referrerID, string(domain.TxReferralBonus), func(acc *domain.Account) (domain.Mutation, error) {
		now := l.now()
		l.rollover(acc, now)

		expect := acc.Version
		acc.Coins += bonus
		acc.Balance += float64(bonus) / rates.CoinRate()
		acc.TotalEarned += float64(bonus) / rates.CoinRate()
		acc.ReferralEarnings += float64(bonus)
		return domain.Mutation{
			Account:       acc,
			ExpectVersion: expect,
			Transactions: []domain.Transaction{
				l.newTransaction(referrerID, domain.TxReferralBonus, float64(bonus), "Referral bonus", referredID),
			},
		}, nil
	})
}

// ─── Withdrawals ────────────────────────────────────────────────────────────

// RequestWithdrawal validates a payout request, debits the balance, and
// records a pending withdrawal for external approval. Today's withdrawal
// total is reconstructed from the transaction trail.
func (l *Ledger) RequestWithdrawal(ctx context.Context, accountID, method, accountNumber string, amount float64) (*domain.Withdrawal, error) {
	if err := l.limiter.Check(ctx, accountID, "withdrawal"); err != nil {
		observability.LedgerOps.WithLabelValues(string(domain.TxWithdrawal), "rejected").Inc()
		return nil, err
	}
	settings, err := l.rates.WithdrawalSettings(ctx)
	if err != nil {
		return nil, err
	}

	if settings.Status != "active" {
		return nil, domain.ErrWithdrawalsDisabled
	}
	if amount < settings.MinAmount || amount > settings.MaxAmount {
		return nil, domain.Errorf(domain.ErrInvalidAmount.Code,
			"withdrawal amount must be between %.0f and %.0f", settings.MinAmount, settings.MaxAmount)
	}
	if m, ok := settings.Method(method); !ok || !m.Enabled {
		return nil, domain.ErrMethodUnavailable
	}
	if !accountNumberRe.MatchString(accountNumber) {
		return nil, domain.ErrInvalidAccountNumber
	}

	since := domain.StartOfDay(l.now(), l.cfg.DayBoundary)
	today, err := l.txlog.SumByAccountSince(ctx, accountID, domain.TxWithdrawal, since)
	if err != nil {
		return nil, domain.StorageUnavailable(err)
	}
	if today+amount > settings.DailyLimit {
		return nil, domain.ErrWithdrawalDailyLimit
	}

	var wd *domain.Withdrawal
	_, err = l.commit(ctx, accountID, string(domain.TxWithdrawal), func(acc *domain.Account) (domain.Mutation, error) {
		now := l.now()
		l.rollover(acc, now)

		if amount > acc.Balance {
			return domain.Mutation{}, domain.ErrInsufficientBalance
		}

		expect := acc.Version
		acc.Balance -= amount
		wd = &domain.Withdrawal{
			ID:            uuid.NewString(),
			AccountID:     accountID,
			Method:        method,
			AccountNumber: accountNumber,
			Amount:        amount,
			Status:        domain.WithdrawalPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		tx := l.newTransaction(accountID, domain.TxWithdrawal, amount, "Withdrawal via "+method, wd.ID)
		tx.Status = string(domain.WithdrawalPending)
		return domain.Mutation{
			Account:       acc,
			ExpectVersion: expect,
			Transactions:  []domain.Transaction{tx},
			Withdrawal:    wd,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return wd, nil
}

// ─── Internals ──────────────────────────────────────────────────────────────

// checkMilestone pays the weekly milestone bonus once the account has
// completed enough tasks. Runs after an earning commit; a failure here
// never fails the earning that triggered it.
func (l *Ledger) checkMilestone(ctx context.Context, acc *domain.Account) *domain.Account {
	if acc.CompletedTasks < 50 || acc.WeeklyBonusClaimed {
		return acc
	}
	rates, err := l.rates.EarningRates(ctx)
	if err != nil {
		log.Printf("[ledger] milestone rates for %s: %v", acc.ID, err)
		return acc
	}
	bonus := int64(l.randInt(41) + 10) // uniform in [10, 50]

	updated, err := l.commit(ctx, acc.ID, string(domain.TxWeeklyBonus), func(cur *domain.Account) (domain.Mutation, error) {
		if cur.CompletedTasks < 50 || cur.WeeklyBonusClaimed {
			return domain.Mutation{}, errMilestoneNotDue
		}
		expect := cur.Version
		cur.Coins += bonus
		cur.Balance += float64(bonus) / rates.CoinRate()
		cur.TotalEarned += float64(bonus) / rates.CoinRate()
		cur.CompletedTasks = 0
		cur.WeeklyBonusClaimed = true
		return domain.Mutation{
			Account:       cur,
			ExpectVersion: expect,
			Transactions: []domain.Transaction{
				l.newTransaction(cur.ID, domain.TxWeeklyBonus, float64(bonus), "Weekly milestone bonus", ""),
			},
		}, nil
	})
	if err != nil {
		if err != errMilestoneNotDue {
			log.Printf("[ledger] milestone payout for %s: %v", acc.ID, err)
		}
		return acc
	}
	return updated
}

// errMilestoneNotDue aborts the milestone commit when a concurrent
// mutation already claimed the bonus.
var errMilestoneNotDue = domain.Errorf("MILESTONE_NOT_DUE", "milestone bonus not due")

// outcome maps an operation result to the metric label commit uses:
// "ok", "rejected" for terminal refusals, "error" otherwise.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.Classify(err) == domain.FailureTerminal:
		return "rejected"
	default:
		return "error"
	}
}

// commit runs the read-modify-write cycle with bounded retries.
// build validates against the fresh snapshot, mutates it, and returns
// the mutation to apply; terminal failures abort immediately.
func (l *Ledger) commit(ctx context.Context, accountID, kind string, build func(acc *domain.Account) (domain.Mutation, error)) (*domain.Account, error) {
	var lastErr error
	for attempt := 0; attempt < l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := l.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		acc, err := l.store.GetAccount(ctx, accountID)
		if err != nil {
			if domain.Classify(err) == domain.FailureTransient {
				lastErr = err
				continue
			}
			observability.LedgerOps.WithLabelValues(kind, "rejected").Inc()
			return nil, err
		}

		m, err := build(acc)
		if err != nil {
			observability.LedgerOps.WithLabelValues(kind, "rejected").Inc()
			return nil, err
		}

		err = l.store.ApplyMutation(ctx, m)
		if err == nil {
			observability.LedgerOps.WithLabelValues(kind, "ok").Inc()
			return m.Account, nil
		}
		switch domain.Classify(err) {
		case domain.FailureTransient:
			if errors.Is(err, domain.ErrWriteConflict) {
				observability.WriteConflicts.Inc()
			}
			lastErr = err
			continue
		default:
			observability.LedgerOps.WithLabelValues(kind, "error").Inc()
			return nil, err
		}
	}

	observability.LedgerOps.WithLabelValues(kind, "error").Inc()
	var coded *domain.Error
	if errors.As(lastErr, &coded) {
		return nil, lastErr
	}
	return nil, domain.StorageUnavailable(lastErr)
}

// backoff sleeps for RetryBase doubled per prior attempt, or returns
// early if the context ends.
func (l *Ledger) backoff(ctx context.Context, attempt int) error {
	d := l.cfg.RetryBase << (attempt - 1)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// credit applies the shared earning increments.
func (l *Ledger) credit(acc *domain.Account, coins int64, rate float64, now time.Time) {
	acc.Coins += coins
	increment := float64(coins) / rate
	acc.Balance += increment
	acc.TodayEarned += increment
	acc.TotalEarned += increment
	acc.CompletedTasks++
	acc.LastEarnDate = now
}

// rollover resets the daily counters on the first mutation of a new
// calendar day, inside the same atomic update as the mutation itself.
func (l *Ledger) rollover(acc *domain.Account, now time.Time) {
	if acc.LastEarnDate.IsZero() || domain.SameCalendarDay(acc.LastEarnDate, now, l.cfg.DayBoundary) {
		return
	}
	acc.TodayEarned = 0
	acc.SpinsRemaining = l.cfg.MaxDailySpins
}

func (l *Ledger) newTransaction(accountID string, kind domain.TransactionKind, amount float64, description, reference string) domain.Transaction {
	return domain.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		Reference:   reference,
		CreatedAt:   l.now(),
	}
}

func checkinDescription(day int) string {
	if day >= 7 {
		return "Daily check-in reward (day 7 bonus)"
	}
	return "Daily check-in reward (day " + strconv.Itoa(day) + ")"
}

func defaultRandInt(n int) int { return rand.IntN(n) }
