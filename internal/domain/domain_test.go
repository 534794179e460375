package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// ─── Calendar Helpers ───────────────────────────────────────────────────────

func TestSameCalendarDay(t *testing.T) {
	dhaka, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	tests := []struct {
		name string
		a, b time.Time
		loc  *time.Location
		want bool
	}{
		{
			name: "same moment",
			a:    time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: true,
		},
		{
			name: "same day different hours",
			a:    time.Date(2024, 3, 10, 0, 1, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC),
			loc:  time.UTC,
			want: true,
		},
		{
			name: "adjacent days across midnight",
			a:    time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC),
			b:    time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC),
			loc:  time.UTC,
			want: false,
		},
		{
			name: "UTC evening is next day in Dhaka",
			a:    time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC), // 02:00 Mar 11 in Dhaka
			b:    time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), // 16:00 Mar 10 in Dhaka
			loc:  dhaka,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameCalendarDay(tt.a, tt.b, tt.loc); got != tt.want {
				t.Errorf("SameCalendarDay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsYesterday(t *testing.T) {
	now := time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)

	if !IsYesterday(time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC), now, time.UTC) {
		t.Error("late last night should be yesterday")
	}
	if IsYesterday(time.Date(2024, 3, 11, 1, 0, 0, 0, time.UTC), now, time.UTC) {
		t.Error("this morning is not yesterday")
	}
	if IsYesterday(time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), now, time.UTC) {
		t.Error("two days ago is not yesterday")
	}
}

func TestStartOfDay(t *testing.T) {
	now := time.Date(2024, 3, 11, 17, 45, 12, 999, time.UTC)
	got := StartOfDay(now, time.UTC)
	want := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartOfDay() = %v, want %v", got, want)
	}
}

// ─── Earning Rates ──────────────────────────────────────────────────────────

func TestCheckinReward(t *testing.T) {
	r := DefaultEarningRates()

	tests := []struct {
		day  int
		want int64
	}{
		{1, 10}, {2, 10}, {3, 10}, {4, 10}, {5, 10}, {6, 10}, {7, 20},
		{8, 20},  // beyond the table pays the last entry
		{0, 10},  // clamped to day 1
		{-3, 10}, // clamped to day 1
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("day%d", tt.day), func(t *testing.T) {
			if got := r.CheckinReward(tt.day); got != tt.want {
				t.Errorf("CheckinReward(%d) = %d, want %d", tt.day, got, tt.want)
			}
		})
	}
}

func TestCoinRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want float64
	}{
		{"configured", 25, 25},
		{"unset", 0, 20},
		{"negative", -1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := EarningRates{CoinToBDTRate: tt.rate}
			if got := r.CoinRate(); got != tt.want {
				t.Errorf("CoinRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithdrawalSettings_Method(t *testing.T) {
	s := DefaultWithdrawalSettings()

	m, ok := s.Method("bkash")
	if !ok || !m.Enabled {
		t.Errorf("bkash should exist and be enabled, got %+v ok=%v", m, ok)
	}

	m, ok = s.Method("rocket")
	if !ok {
		t.Fatal("rocket should exist")
	}
	if m.Enabled {
		t.Error("rocket should be disabled by default")
	}

	if _, ok := s.Method("paypal"); ok {
		t.Error("unknown method should not resolve")
	}
}

// ─── Errors ─────────────────────────────────────────────────────────────────

func TestError_IsMatchesByCode(t *testing.T) {
	formatted := Errorf(ErrInvalidAmount.Code, "minimum withdrawal is %.0f", 50.0)
	if !errors.Is(formatted, ErrInvalidAmount) {
		t.Error("formatted error should match sentinel by code")
	}
	if errors.Is(formatted, ErrNoSpinsLeft) {
		t.Error("different codes must not match")
	}
}

func TestRateLimitExceeded(t *testing.T) {
	err := RateLimitExceeded(90 * time.Minute)
	if !errors.Is(err, ErrRateLimited) {
		t.Error("should match ErrRateLimited")
	}
	if err.RetryAfter != 90*time.Minute {
		t.Errorf("RetryAfter = %v, want 90m", err.RetryAfter)
	}
}

func TestStorageUnavailable_Unwrap(t *testing.T) {
	cause := errors.New("disk io failure")
	err := StorageUnavailable(cause)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Error("should match ErrStorageUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("should unwrap to the cause")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"validation", ErrInvalidAmount, FailureTerminal},
		{"business rule", ErrAlreadyCheckedIn, FailureTerminal},
		{"rate limited", RateLimitExceeded(time.Minute), FailureTerminal},
		{"write conflict", ErrWriteConflict, FailureTransient},
		{"storage", StorageUnavailable(errors.New("locked")), FailureTransient},
		{"offline", ErrOffline, FailureOffline},
		{"wrapped offline", fmt.Errorf("enqueue: %w", ErrOffline), FailureOffline},
		{"unknown infra error", errors.New("connection reset"), FailureTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ─── Account ────────────────────────────────────────────────────────────────

func TestNewAccount(t *testing.T) {
	now := time.Now()
	acc := NewAccount("u1", 2, now)

	if acc.ID != "u1" {
		t.Errorf("ID = %q, want u1", acc.ID)
	}
	if acc.SpinsRemaining != 2 {
		t.Errorf("SpinsRemaining = %d, want 2", acc.SpinsRemaining)
	}
	if acc.Coins != 0 || acc.Balance != 0 || acc.TotalEarned != 0 {
		t.Error("fresh account must start at zero")
	}
	if !acc.LastCheckIn.IsZero() {
		t.Error("fresh account has no check-in")
	}
}
