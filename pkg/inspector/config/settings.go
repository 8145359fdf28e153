package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsOTel       = "otel"
	MetricsPrometheus = "prometheus"
)

// Setting keys.
const (
	KeyCacheTTL      = "cache.ttl"
	KeyCacheCapacity = "cache.capacity"
	KeyRegexTimeout  = "validation.regex_timeout"
	KeyFetchTimeout  = "fetch.timeout"
	KeyPublicKey     = "encryption.public_key"
	KeyStorageDriver = "storage.driver"
	KeyStoragePath   = "storage.path"
	KeyMetrics       = "metrics"
)

// ErrInvalidSettings wraps every Settings.Validate failure.
var ErrInvalidSettings = errors.New("invalid inspector settings")

// Settings holds the tunables of an Inspector.
type Settings struct {
	CacheTTL      time.Duration
	CacheCapacity int
	RegexTimeout  time.Duration
	FetchTimeout  time.Duration

	// PublicKey is the hex recipient key for value encryption. Empty
	// disables encryption.
	PublicKey string

	// StorageDriver is "memory", "sqlite" or "bolt".
	StorageDriver string
	StoragePath   string

	// Metrics is "none", "otel" or "prometheus".
	Metrics string
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		CacheTTL:      60 * time.Second,
		CacheCapacity: 50,
		RegexTimeout:  100 * time.Millisecond,
		FetchTimeout:  5 * time.Second,
		StorageDriver: "memory",
		Metrics:       MetricsNone,
	}
}

// SettingsFrom overlays cfg on DefaultSettings.
func SettingsFrom(cfg Config) Settings {
	s := DefaultSettings()
	s.CacheTTL = cfg.Duration(KeyCacheTTL, s.CacheTTL)
	s.CacheCapacity = cfg.Int(KeyCacheCapacity, s.CacheCapacity)
	s.RegexTimeout = cfg.Duration(KeyRegexTimeout, s.RegexTimeout)
	s.FetchTimeout = cfg.Duration(KeyFetchTimeout, s.FetchTimeout)
	s.PublicKey = cfg.String(KeyPublicKey, s.PublicKey)
	s.StorageDriver = cfg.String(KeyStorageDriver, s.StorageDriver)
	s.StoragePath = cfg.String(KeyStoragePath, s.StoragePath)
	s.Metrics = cfg.String(KeyMetrics, s.Metrics)
	return s
}

// LoadSettings reads settings from the file at path, applies INSPECTOR_*
// environment overrides and validates the result. An empty path reads the
// environment only.
func LoadSettings(path string) (Settings, error) {
	cfg := New(nil)
	if path != "" {
		var err error
		if cfg, err = FromFile(path); err != nil {
			return Settings{}, err
		}
	}

	s := SettingsFrom(cfg.WithEnv(os.Environ()))
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports the first out-of-range setting.
func (s Settings) Validate() error {
	switch {
	case s.CacheTTL < 0:
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidSettings, KeyCacheTTL)
	case s.CacheCapacity < 1:
		return fmt.Errorf("%w: %s must be at least 1", ErrInvalidSettings, KeyCacheCapacity)
	case s.RegexTimeout <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidSettings, KeyRegexTimeout)
	case s.FetchTimeout <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalidSettings, KeyFetchTimeout)
	}
	switch s.Metrics {
	case "", MetricsNone, MetricsOTel, MetricsPrometheus:
	default:
		return fmt.Errorf("%w: unknown %s backend %q", ErrInvalidSettings, KeyMetrics, s.Metrics)
	}
	return nil
}
