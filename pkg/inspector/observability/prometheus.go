package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsRecorder on a Prometheus registry.
//
// Metrics (with the default "inspector" namespace):
//   - inspector_cache_lookups_total{hit}
//   - inspector_cache_evictions_total
//   - inspector_fetch_requests_total{outcome}
//   - inspector_fetch_duration_seconds{outcome}
//   - inspector_validation_events_total
//   - inspector_validation_duration_seconds
//   - inspector_regex_evaluations_total{outcome}
//   - inspector_regex_dangerous_patterns_total
//   - inspector_encryption_values_total{success}
type PrometheusMetrics struct {
	cacheLookups       *prometheus.CounterVec
	cacheEvictions     prometheus.Counter
	specFetches        *prometheus.CounterVec
	fetchDuration      *prometheus.HistogramVec
	validations        prometheus.Counter
	validationDuration prometheus.Histogram
	regexEvaluations   *prometheus.CounterVec
	dangerousPatterns  prometheus.Counter
	encryptions        *prometheus.CounterVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates the metrics and registers them with reg.
// An empty namespace defaults to "inspector".
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) (*PrometheusMetrics, error) {
	if namespace == "" {
		namespace = "inspector"
	}

	pm := &PrometheusMetrics{
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Total number of spec cache lookups",
			},
			[]string{"hit"},
		),
		cacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Total number of spec cache entries evicted for capacity",
			},
		),
		specFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "requests_total",
				Help:      "Total number of event spec fetches",
			},
			[]string{"outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "duration_seconds",
				Help:      "Event spec fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		validations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "events_total",
				Help:      "Total number of validated events",
			},
		),
		validationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "duration_seconds",
				Help:      "Event validation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		regexEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "regex",
				Name:      "evaluations_total",
				Help:      "Total number of regex match attempts",
			},
			[]string{"outcome"},
		),
		dangerousPatterns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "regex",
				Name:      "dangerous_patterns_total",
				Help:      "Total number of patterns flagged for nested quantifiers",
			},
		),
		encryptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "encryption",
				Name:      "values_total",
				Help:      "Total number of encrypted property values",
			},
			[]string{"success"},
		),
	}

	for _, c := range []prometheus.Collector{
		pm.cacheLookups,
		pm.cacheEvictions,
		pm.specFetches,
		pm.fetchDuration,
		pm.validations,
		pm.validationDuration,
		pm.regexEvaluations,
		pm.dangerousPatterns,
		pm.encryptions,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return pm, nil
}

var (
	defaultPrometheus     *PrometheusMetrics
	defaultPrometheusOnce sync.Once
	defaultPrometheusErr  error
)

// DefaultPrometheusMetrics returns the process-wide recorder registered with
// prometheus.DefaultRegisterer. Every caller shares one set of collectors.
func DefaultPrometheusMetrics() (*PrometheusMetrics, error) {
	defaultPrometheusOnce.Do(func() {
		defaultPrometheus, defaultPrometheusErr = NewPrometheusMetrics(prometheus.DefaultRegisterer, "")
	})
	return defaultPrometheus, defaultPrometheusErr
}

// RecordCacheLookup records a cache lookup.
func (pm *PrometheusMetrics) RecordCacheLookup(_ context.Context, hit bool) {
	pm.cacheLookups.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

// RecordCacheEvictions records capacity evictions.
func (pm *PrometheusMetrics) RecordCacheEvictions(_ context.Context, n int64) {
	pm.cacheEvictions.Add(float64(n))
}

// RecordSpecFetch records a spec fetch.
func (pm *PrometheusMetrics) RecordSpecFetch(_ context.Context, outcome string, duration time.Duration) {
	pm.specFetches.WithLabelValues(outcome).Inc()
	pm.fetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordValidation records an event validation.
func (pm *PrometheusMetrics) RecordValidation(_ context.Context, _ int, duration time.Duration) {
	pm.validations.Inc()
	pm.validationDuration.Observe(duration.Seconds())
}

// RecordRegexEvaluation records a regex match attempt.
func (pm *PrometheusMetrics) RecordRegexEvaluation(_ context.Context, outcome string) {
	pm.regexEvaluations.WithLabelValues(outcome).Inc()
}

// RecordDangerousPattern records a flagged pattern.
func (pm *PrometheusMetrics) RecordDangerousPattern(_ context.Context) {
	pm.dangerousPatterns.Inc()
}

// RecordEncryption records a property encryption.
func (pm *PrometheusMetrics) RecordEncryption(_ context.Context, success bool) {
	pm.encryptions.WithLabelValues(strconv.FormatBool(success)).Inc()
}
