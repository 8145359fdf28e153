package cache

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/inspector/pkg/inspector/observability"
)

// Option configures a SpecCache.
type Option func(*SpecCache)

// WithTTL sets how long entries stay fresh.
// Default: 60s. Zero disables expiry; negative values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *SpecCache) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

// WithCapacity sets the maximum number of entries.
// Default: 50. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(c *SpecCache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *SpecCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics sets the metrics recorder for hits, misses and evictions.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *SpecCache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger sets the logger for eviction and clear events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *SpecCache) {
		c.logger = logger
	}
}
