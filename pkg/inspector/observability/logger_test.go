package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:   h.buf,
		level: h.level,
		attrs: make([]slog.Attr, len(h.attrs)+len(attrs)),
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds stream_id and event_name", func(t *testing.T) {
		h := newTestHandler()
		enriched := EnrichLogger(slog.New(h), "stream-1", "Signup")
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "stream-1", record["stream_id"])
		assert.Equal(t, "Signup", record["event_name"])
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "stream-1", "Signup"))
	})
}

func TestLogHelpers(t *testing.T) {
	testErr := errors.New("boom")

	tests := []struct {
		name   string
		log    func(*slog.Logger)
		level  string
		msg    string
		fields map[string]any
	}{
		{
			name:   "spec fetch",
			log:    func(l *slog.Logger) { LogSpecFetch(l, "Signup", "req-1", true, 12.5) },
			level:  "DEBUG",
			msg:    "event spec fetched",
			fields: map[string]any{"event_name": "Signup", "request_id": "req-1", "found": true, "duration_ms": 12.5},
		},
		{
			name:   "spec fetch error",
			log:    func(l *slog.Logger) { LogSpecFetchError(l, "Signup", "req-2", testErr) },
			level:  "WARN",
			msg:    "event spec fetch failed",
			fields: map[string]any{"request_id": "req-2", "error": "boom"},
		},
		{
			name:   "cache eviction",
			log:    func(l *slog.Logger) { LogCacheEviction(l, 2, 50) },
			level:  "DEBUG",
			msg:    "event spec cache evicted entries",
			fields: map[string]any{"evicted": float64(2), "size": float64(50)},
		},
		{
			name:   "cache cleared",
			log:    func(l *slog.Logger) { LogCacheCleared(l, 7) },
			level:  "INFO",
			msg:    "event spec cache cleared",
			fields: map[string]any{"dropped": float64(7)},
		},
		{
			name:   "branch change",
			log:    func(l *slog.Logger) { LogBranchChange(l, "main", "feature") },
			level:  "INFO",
			msg:    "schema branch changed",
			fields: map[string]any{"from": "main", "to": "feature"},
		},
		{
			name:  "stale spec",
			log:   func(l *slog.Logger) { LogStaleSpec(l, "Signup", "req-1", "main", "feature") },
			level: "DEBUG",
			msg:   "stale event spec not cached",
			fields: map[string]any{
				"event_name":       "Signup",
				"request_id":       "req-1",
				"branch_id":        "main",
				"active_branch_id": "feature",
			},
		},
		{
			name:   "storage error",
			log:    func(l *slog.Logger) { LogStorageError(l, "set", testErr) },
			level:  "WARN",
			msg:    "storage operation failed",
			fields: map[string]any{"operation": "set", "error": "boom"},
		},
		{
			name:   "dangerous pattern",
			log:    func(l *slog.Logger) { LogDangerousPattern(l, "code", "(a+)+") },
			level:  "WARN",
			msg:    "regex pattern may backtrack catastrophically",
			fields: map[string]any{"property": "code", "pattern": "(a+)+"},
		},
		{
			name:   "regex timeout",
			log:    func(l *slog.Logger) { LogRegexTimeout(l, "code", "(a+)+", time.Millisecond) },
			level:  "WARN",
			msg:    "regex match timed out",
			fields: map[string]any{"property": "code", "timeout": float64(time.Millisecond)},
		},
		{
			name:   "skipped constraint",
			log:    func(l *slog.Logger) { LogSkippedConstraint(l, "age", "minmax", "x,y", testErr) },
			level:  "DEBUG",
			msg:    "constraint skipped",
			fields: map[string]any{"kind": "minmax", "key": "x,y", "reason": "boom"},
		},
		{
			name:   "encryption error",
			log:    func(l *slog.Logger) { LogEncryptionError(l, "email", testErr) },
			level:  "WARN",
			msg:    "property encryption failed",
			fields: map[string]any{"property": "email", "error": "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler()
			tt.log(slog.New(h))

			record := h.getLastRecord()
			require.NotNil(t, record)
			assert.Equal(t, tt.level, record["level"])
			assert.Equal(t, tt.msg, record["msg"])
			for k, v := range tt.fields {
				assert.Equal(t, v, record[k], "field %s", k)
			}
		})

		t.Run(tt.name+" nil logger", func(t *testing.T) {
			assert.NotPanics(t, func() { tt.log(nil) })
		})
	}
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), float64(5))
}
