// Package ratelimit throttles reward actions with a persisted
// sliding window per (actor, action). The window survives process
// restarts; a request is admitted only if fewer than the configured
// limit landed inside the window.
package ratelimit

import (
	"context"
	"time"

	"github.com/coinflow-app/coinflow/internal/domain"
	"github.com/coinflow-app/coinflow/internal/infra/observability"
)

// Rule bounds one action: at most Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Config maps action names to their rules. Actions without a rule are
// never throttled.
type Config map[string]Rule

// DefaultConfig returns the deployment limits.
func DefaultConfig() Config {
	return Config{
		"checkin":    {Limit: 1, Window: 24 * time.Hour},
		"spin":       {Limit: 2, Window: 24 * time.Hour},
		"withdrawal": {Limit: 3, Window: 24 * time.Hour},
		"login":      {Limit: 5, Window: 15 * time.Minute},
		"signup":     {Limit: 3, Window: time.Hour},
	}
}

// Store persists per-key windows. The sqlite store implements it; the
// prune-count-append cycle must be atomic per key.
type Store interface {
	TakeRateSlot(ctx context.Context, actor, action string, now time.Time, window time.Duration, limit int) (allowed bool, retryAfter time.Duration, err error)
	CountRateSlots(ctx context.Context, actor, action string, now time.Time, window time.Duration) (int, error)
	ResetRateWindow(ctx context.Context, actor, action string) error
}

// Limiter is the sliding-window rate limiter.
type Limiter struct {
	cfg   Config
	store Store
	now   func() time.Time
}

// New creates a limiter over the given store.
func New(cfg Config, store Store) *Limiter {
	return &Limiter{cfg: cfg, store: store, now: time.Now}
}

// Check admits or refuses a request for (actor, action). On refusal it
// returns a RATE_LIMIT_EXCEEDED error carrying the wait time. An
// admitted request consumes a slot immediately.
func (l *Limiter) Check(ctx context.Context, actor, action string) error {
	rule, ok := l.cfg[action]
	if !ok {
		return nil
	}

	allowed, retryAfter, err := l.store.TakeRateSlot(ctx, actor, action, l.now(), rule.Window, rule.Limit)
	if err != nil {
		return err
	}
	if !allowed {
		observability.RateLimitRejections.WithLabelValues(action).Inc()
		return domain.RateLimitExceeded(retryAfter)
	}
	return nil
}

// Remaining returns how many requests are still admissible in the
// current window. Read-only.
func (l *Limiter) Remaining(ctx context.Context, actor, action string) (int, error) {
	rule, ok := l.cfg[action]
	if !ok {
		return int(^uint(0) >> 1), nil // effectively unlimited
	}
	used, err := l.store.CountRateSlots(ctx, actor, action, l.now(), rule.Window)
	if err != nil {
		return 0, err
	}
	remaining := rule.Limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the window for (actor, action). Administrative helper.
func (l *Limiter) Reset(ctx context.Context, actor, action string) error {
	return l.store.ResetRateWindow(ctx, actor, action)
}
