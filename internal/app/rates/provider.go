// Package rates serves the externally controlled configuration
// snapshots (earning rates, withdrawal rules, app config) through the
// read-through cache. Each snapshot is replaced wholesale on a change
// notification; a snapshot is never mutated field by field.
package rates

import (
	"context"
	"log"

	"github.com/coinflow-app/coinflow/internal/app/cache"
	"github.com/coinflow-app/coinflow/internal/domain"
)

// Cache keys for the three snapshots.
const (
	keyPrefix             = "config/"
	keyEarningRates       = keyPrefix + "earning_rates"
	keyWithdrawalSettings = keyPrefix + "withdrawal_settings"
	keyAppConfig          = keyPrefix + "app_config"
)

// Loader fetches configuration from the external store. The daemon
// wires in the real collaborator; StaticLoader serves fixed values.
type Loader interface {
	LoadEarningRates(ctx context.Context) (domain.EarningRates, error)
	LoadWithdrawalSettings(ctx context.Context) (domain.WithdrawalSettings, error)
	LoadAppConfig(ctx context.Context) (domain.AppConfig, error)
}

// Provider answers configuration reads from the cache, falling back to
// deployment defaults when the loader fails.
type Provider struct {
	cache  *cache.Cache
	loader Loader
}

// New creates a provider over the given cache and loader.
func New(c *cache.Cache, loader Loader) *Provider {
	return &Provider{cache: c, loader: loader}
}

// EarningRates returns the current earning-rate snapshot.
func (p *Provider) EarningRates(ctx context.Context) (domain.EarningRates, error) {
	v, err := p.cache.GetWithCache(ctx, keyEarningRates, func(ctx context.Context) (any, error) {
		return p.loader.LoadEarningRates(ctx)
	})
	if err != nil {
		log.Printf("[rates] earning rates unavailable, using defaults: %v", err)
		return domain.DefaultEarningRates(), nil
	}
	return v.(domain.EarningRates), nil
}

// WithdrawalSettings returns the current withdrawal-rule snapshot.
func (p *Provider) WithdrawalSettings(ctx context.Context) (domain.WithdrawalSettings, error) {
	v, err := p.cache.GetWithCache(ctx, keyWithdrawalSettings, func(ctx context.Context) (any, error) {
		return p.loader.LoadWithdrawalSettings(ctx)
	})
	if err != nil {
		log.Printf("[rates] withdrawal settings unavailable, using defaults: %v", err)
		return domain.DefaultWithdrawalSettings(), nil
	}
	return v.(domain.WithdrawalSettings), nil
}

// AppConfig returns the current application control snapshot.
func (p *Provider) AppConfig(ctx context.Context) (domain.AppConfig, error) {
	v, err := p.cache.GetWithCache(ctx, keyAppConfig, func(ctx context.Context) (any, error) {
		return p.loader.LoadAppConfig(ctx)
	})
	if err != nil {
		log.Printf("[rates] app config unavailable, using defaults: %v", err)
		return domain.DefaultAppConfig(), nil
	}
	return v.(domain.AppConfig), nil
}

// HandleChange reacts to a change notification from the configuration
// store by invalidating every cached snapshot; the next read refetches.
func (p *Provider) HandleChange() {
	log.Printf("[rates] configuration change notified, invalidating cache")
	p.cache.InvalidatePrefix(keyPrefix)
}

// StaticLoader serves fixed snapshots. Used in tests and when the
// daemon runs without an external configuration store.
type StaticLoader struct {
	Rates    domain.EarningRates
	Settings domain.WithdrawalSettings
	App      domain.AppConfig
}

// Defaults returns a StaticLoader holding the deployment defaults.
func Defaults() StaticLoader {
	return StaticLoader{
		Rates:    domain.DefaultEarningRates(),
		Settings: domain.DefaultWithdrawalSettings(),
		App:      domain.DefaultAppConfig(),
	}
}

func (s StaticLoader) LoadEarningRates(context.Context) (domain.EarningRates, error) {
	return s.Rates, nil
}

func (s StaticLoader) LoadWithdrawalSettings(context.Context) (domain.WithdrawalSettings, error) {
	return s.Settings, nil
}

func (s StaticLoader) LoadAppConfig(context.Context) (domain.AppConfig, error) {
	return s.App, nil
}
