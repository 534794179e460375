// Package daemon wires the CoinFlow components together and runs the
// device-local rewards process.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from a TOML file with
// DefaultConfig values underneath.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Ledger  LedgerConfig  `toml:"ledger"`
	Cache   CacheConfig   `toml:"cache"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StorageConfig locates the embedded store.
type StorageConfig struct {
	Path string `toml:"path"`
}

// LedgerConfig bounds ledger behavior.
type LedgerConfig struct {
	DailyEarnCap   float64 `toml:"daily_earn_cap"`
	MaxCreditCoins int64   `toml:"max_credit_coins"`
	MaxDailySpins  int     `toml:"max_daily_spins"`
	// DayBoundary is an IANA zone name for calendar-day decisions;
	// empty means the device's local zone.
	DayBoundary string `toml:"day_boundary"`
}

// CacheConfig controls the config cache.
type CacheConfig struct {
	TTL           string `toml:"ttl"`
	SweepInterval string `toml:"sweep_interval"`
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8990,
			Metrics: true,
		},
		Storage: StorageConfig{
			Path: defaultStoragePath(),
		},
		Ledger: LedgerConfig{
			DailyEarnCap:   50,
			MaxCreditCoins: 1000,
			MaxDailySpins:  2,
		},
		Cache: CacheConfig{
			TTL:           "5m",
			SweepInterval: "1m",
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file
// yields the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	return filepath.Join(coinflowHome(), "config.toml")
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Location resolves the day-boundary zone.
func (c LedgerConfig) Location() (*time.Location, error) {
	if c.DayBoundary == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.DayBoundary)
}

// TTLDuration parses the cache TTL, falling back to 5 minutes.
func (c CacheConfig) TTLDuration() time.Duration {
	return parseDuration(c.TTL, 5*time.Minute)
}

// SweepDuration parses the sweep interval, falling back to 1 minute.
func (c CacheConfig) SweepDuration() time.Duration {
	return parseDuration(c.SweepInterval, time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func coinflowHome() string {
	if env := os.Getenv("COINFLOW_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".coinflow")
}

func defaultStoragePath() string {
	return filepath.Join(coinflowHome(), "coinflow.db")
}
