package inspector

import (
	"log/slog"

	"github.com/randalmurphal/inspector/pkg/inspector/cache"
	"github.com/randalmurphal/inspector/pkg/inspector/config"
	"github.com/randalmurphal/inspector/pkg/inspector/fetch"
	"github.com/randalmurphal/inspector/pkg/inspector/observability"
	"github.com/randalmurphal/inspector/pkg/inspector/storage"
	"github.com/randalmurphal/inspector/pkg/inspector/validate"
)

// options collects Option values before New wires the components.
type options struct {
	fetcher   fetch.Fetcher
	store     storage.Store
	cache     *cache.SpecCache
	validator *validate.Validator
	publicKey *string
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	settings  config.Settings
}

// Option configures an Inspector.
type Option func(*options)

// WithFetcher sets how specs are fetched.
// Default: a fetcher that always fails, so nothing is validated.
func WithFetcher(f fetch.Fetcher) Option {
	return func(o *options) {
		if f != nil {
			o.fetcher = f
		}
	}
}

// WithStorage sets the store used for branch tracking.
// Default: the store named by the settings (memory unless configured).
func WithStorage(s storage.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithCache replaces the spec cache built from the settings.
func WithCache(c *cache.SpecCache) Option {
	return func(o *options) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithValidator replaces the validator built from the settings.
func WithValidator(v *validate.Validator) Option {
	return func(o *options) {
		if v != nil {
			o.validator = v
		}
	}
}

// WithPublicKey sets the hex recipient key for EncryptValues, overriding
// the settings. An empty key disables encryption.
func WithPublicKey(hexKey string) Option {
	return func(o *options) {
		o.publicKey = &hexKey
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder, overriding the settings.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSpanManager enables tracing.
// Default: no tracing.
//
// Example:
//
//	insp, err := inspector.New(key, stream,
//	    inspector.WithSpanManager(observability.NewSpanManager()))
func WithSpanManager(sm observability.SpanManager) Option {
	return func(o *options) {
		if sm != nil {
			o.spans = sm
		}
	}
}

// WithSettings sets cache, validation, encryption, storage and metrics
// tunables. Default: config.DefaultSettings().
func WithSettings(s config.Settings) Option {
	return func(o *options) {
		o.settings = s
	}
}
