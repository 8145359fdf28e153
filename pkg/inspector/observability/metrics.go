package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes reported with spec fetches.
const (
	FetchFound    = "found"
	FetchNotFound = "not_found"
	FetchError    = "error"
)

// Outcomes reported with regex evaluations.
const (
	RegexMatch   = "match"
	RegexNoMatch = "no_match"
	RegexTimeout = "timeout"
	RegexError   = "error"
)

// MetricsRecorder records inspector metrics.
// Use NewMetricsRecorder() for OTel metrics, NewPrometheusMetrics() for a
// Prometheus registry, or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordCacheLookup records a cache Get and whether it hit.
	RecordCacheLookup(ctx context.Context, hit bool)

	// RecordCacheEvictions records entries evicted for capacity.
	RecordCacheEvictions(ctx context.Context, n int64)

	// RecordSpecFetch records a fetch with its outcome (FetchFound, FetchNotFound, FetchError).
	RecordSpecFetch(ctx context.Context, outcome string, duration time.Duration)

	// RecordValidation records one ValidateEvent call.
	RecordValidation(ctx context.Context, properties int, duration time.Duration)

	// RecordRegexEvaluation records one match attempt with its outcome.
	RecordRegexEvaluation(ctx context.Context, outcome string)

	// RecordDangerousPattern records a pattern flagged for nested quantifiers.
	RecordDangerousPattern(ctx context.Context)

	// RecordEncryption records one property encryption.
	RecordEncryption(ctx context.Context, success bool)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	cacheLookups      metric.Int64Counter
	cacheEvictions    metric.Int64Counter
	specFetches       metric.Int64Counter
	fetchLatency      metric.Float64Histogram
	validations       metric.Int64Counter
	validationLatency metric.Float64Histogram
	regexEvaluations  metric.Int64Counter
	dangerousPatterns metric.Int64Counter
	encryptions       metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("inspector")
	m := &otelMetrics{}
	var err error

	if m.cacheLookups, err = meter.Int64Counter("inspector.cache.lookups",
		metric.WithDescription("Number of spec cache lookups"),
	); err != nil {
		return nil, err
	}
	if m.cacheEvictions, err = meter.Int64Counter("inspector.cache.evictions",
		metric.WithDescription("Number of spec cache entries evicted for capacity"),
	); err != nil {
		return nil, err
	}
	if m.specFetches, err = meter.Int64Counter("inspector.fetch.requests",
		metric.WithDescription("Number of event spec fetches"),
	); err != nil {
		return nil, err
	}
	if m.fetchLatency, err = meter.Float64Histogram("inspector.fetch.latency_ms",
		metric.WithDescription("Event spec fetch latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.validations, err = meter.Int64Counter("inspector.validation.events",
		metric.WithDescription("Number of validated events"),
	); err != nil {
		return nil, err
	}
	if m.validationLatency, err = meter.Float64Histogram("inspector.validation.latency_ms",
		metric.WithDescription("Event validation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.regexEvaluations, err = meter.Int64Counter("inspector.regex.evaluations",
		metric.WithDescription("Number of regex match attempts"),
	); err != nil {
		return nil, err
	}
	if m.dangerousPatterns, err = meter.Int64Counter("inspector.regex.dangerous_patterns",
		metric.WithDescription("Number of patterns flagged for nested quantifiers"),
	); err != nil {
		return nil, err
	}
	if m.encryptions, err = meter.Int64Counter("inspector.encryption.values",
		metric.WithDescription("Number of encrypted property values"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordCacheLookup records a cache lookup.
func (m *otelMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

// RecordCacheEvictions records capacity evictions.
func (m *otelMetrics) RecordCacheEvictions(ctx context.Context, n int64) {
	m.cacheEvictions.Add(ctx, n)
}

// RecordSpecFetch records a spec fetch.
func (m *otelMetrics) RecordSpecFetch(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.specFetches.Add(ctx, 1, attrs)
	m.fetchLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordValidation records an event validation.
func (m *otelMetrics) RecordValidation(ctx context.Context, properties int, duration time.Duration) {
	m.validations.Add(ctx, 1)
	m.validationLatency.Record(ctx, float64(duration.Microseconds())/1000,
		metric.WithAttributes(attribute.Int("properties", properties)))
}

// RecordRegexEvaluation records a regex match attempt.
func (m *otelMetrics) RecordRegexEvaluation(ctx context.Context, outcome string) {
	m.regexEvaluations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDangerousPattern records a flagged pattern.
func (m *otelMetrics) RecordDangerousPattern(ctx context.Context) {
	m.dangerousPatterns.Add(ctx, 1)
}

// RecordEncryption records a property encryption.
func (m *otelMetrics) RecordEncryption(ctx context.Context, success bool) {
	m.encryptions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
