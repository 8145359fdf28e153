// Package observability provides logging, metrics and tracing hooks for the
// inspector: structured logging via slog, metrics via OpenTelemetry or
// Prometheus, and tracing via OpenTelemetry.
//
// All features are opt-in and have no-op implementations when disabled.
// Every logging helper accepts a nil logger and does nothing with it.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds stream and event context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "stream-1", "Signup")
//	enriched.Info("validating") // includes stream_id and event_name
func EnrichLogger(logger *slog.Logger, streamID, eventName string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("stream_id", streamID),
		slog.String("event_name", eventName),
	)
}

// LogSpecFetch logs a completed spec fetch.
func LogSpecFetch(logger *slog.Logger, eventName, requestID string, found bool, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event spec fetched",
		slog.String("event_name", eventName),
		slog.String("request_id", requestID),
		slog.Bool("found", found),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSpecFetchError logs a failed spec fetch. The result is not cached.
func LogSpecFetchError(logger *slog.Logger, eventName, requestID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event spec fetch failed",
		slog.String("event_name", eventName),
		slog.String("request_id", requestID),
		slog.String("error", err.Error()),
	)
}

// LogCacheEviction logs entries evicted for capacity.
func LogCacheEviction(logger *slog.Logger, evicted, size int) {
	if logger == nil {
		return
	}
	logger.Debug("event spec cache evicted entries",
		slog.Int("evicted", evicted),
		slog.Int("size", size),
	)
}

// LogCacheCleared logs a full cache clear.
func LogCacheCleared(logger *slog.Logger, dropped int) {
	if logger == nil {
		return
	}
	logger.Info("event spec cache cleared",
		slog.Int("dropped", dropped),
	)
}

// LogBranchChange logs a change of the active schema branch.
func LogBranchChange(logger *slog.Logger, from, to string) {
	if logger == nil {
		return
	}
	logger.Info("schema branch changed",
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogStaleSpec logs a fetched spec that was not cached because the active
// branch moved while it was in flight.
func LogStaleSpec(logger *slog.Logger, eventName, requestID, branch, active string) {
	if logger == nil {
		return
	}
	logger.Debug("stale event spec not cached",
		slog.String("event_name", eventName),
		slog.String("request_id", requestID),
		slog.String("branch_id", branch),
		slog.String("active_branch_id", active),
	)
}

// LogStorageError logs a storage failure (non-fatal).
func LogStorageError(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("storage operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogDangerousPattern logs a regex with nested quantifiers.
func LogDangerousPattern(logger *slog.Logger, property, pattern string) {
	if logger == nil {
		return
	}
	logger.Warn("regex pattern may backtrack catastrophically",
		slog.String("property", property),
		slog.String("pattern", pattern),
	)
}

// LogRegexTimeout logs a match abandoned at its deadline.
func LogRegexTimeout(logger *slog.Logger, property, pattern string, timeout time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("regex match timed out",
		slog.String("property", property),
		slog.String("pattern", pattern),
		slog.Duration("timeout", timeout),
	)
}

// LogSkippedConstraint logs a constraint key that could not be evaluated.
func LogSkippedConstraint(logger *slog.Logger, property, kind, key string, reason error) {
	if logger == nil {
		return
	}
	logger.Debug("constraint skipped",
		slog.String("property", property),
		slog.String("kind", kind),
		slog.String("key", key),
		slog.String("reason", reason.Error()),
	)
}

// LogEncryptionError logs a property value that could not be encrypted.
func LogEncryptionError(logger *slog.Logger, property string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("property encryption failed",
		slog.String("property", property),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
