package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordCacheLookup does nothing.
func (NoopMetrics) RecordCacheLookup(_ context.Context, _ bool) {}

// RecordCacheEvictions does nothing.
func (NoopMetrics) RecordCacheEvictions(_ context.Context, _ int64) {}

// RecordSpecFetch does nothing.
func (NoopMetrics) RecordSpecFetch(_ context.Context, _ string, _ time.Duration) {}

// RecordValidation does nothing.
func (NoopMetrics) RecordValidation(_ context.Context, _ int, _ time.Duration) {}

// RecordRegexEvaluation does nothing.
func (NoopMetrics) RecordRegexEvaluation(_ context.Context, _ string) {}

// RecordDangerousPattern does nothing.
func (NoopMetrics) RecordDangerousPattern(_ context.Context) {}

// RecordEncryption does nothing.
func (NoopMetrics) RecordEncryption(_ context.Context, _ bool) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
var noopSpan = noop.Span{}

// StartFetchSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartFetchSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartValidateSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartValidateSpan(ctx context.Context, _, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(trace.Span, error, ...attribute.KeyValue) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
