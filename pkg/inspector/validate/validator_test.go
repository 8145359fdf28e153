package validate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/randalmurphal/inspector/pkg/inspector/observability"
	"github.com/randalmurphal/inspector/pkg/inspector/spec"
	"github.com/randalmurphal/inspector/pkg/inspector/validate"
)

// recordingMetrics counts the validator's metric calls.
type recordingMetrics struct {
	observability.NoopMetrics

	mu          sync.Mutex
	dangerous   int
	regex       map[string]int
	validations int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{regex: make(map[string]int)}
}

func (m *recordingMetrics) RecordDangerousPattern(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dangerous++
}

func (m *recordingMetrics) RecordRegexEvaluation(_ context.Context, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regex[outcome]++
}

func (m *recordingMetrics) RecordValidation(_ context.Context, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations++
}

func single(props map[string]*spec.Constraints) *spec.Response {
	return &spec.Response{
		Events:   []*spec.Entry{{BaseEventID: "e1", Props: props}},
		Metadata: spec.Metadata{SchemaID: "s1", BranchID: "main"},
	}
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d", prefix, i)
	}
	return out
}

func TestValidateEvent_NilResponse(t *testing.T) {
	v := validate.New()
	assert.Nil(t, v.ValidateEvent(context.Background(), map[string]any{"a": 1}, nil))
	assert.Nil(t, v.ValidateEvent(context.Background(), map[string]any{"a": 1}, &spec.Response{}))
}

func TestValidateEvent_Metadata(t *testing.T) {
	v := validate.New()
	result := v.ValidateEvent(context.Background(), map[string]any{}, single(nil))
	require.NotNil(t, result)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, "s1", result.Metadata.SchemaID)
	assert.Equal(t, "main", result.Metadata.BranchID)
	assert.Empty(t, result.PropertyResults)
}

func TestValidateEvent_Pinned(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"method": {PinnedValues: map[string][]string{"foo": {"e1", "e2"}}},
	})
	v := validate.New()

	result := v.ValidateEvent(context.Background(), map[string]any{"method": "foo"}, resp)
	require.Contains(t, result.PropertyResults, "method")
	assert.Equal(t, []string{"e1", "e2"}, result.PropertyResults["method"].PassedEventIDs)
	assert.Nil(t, result.PropertyResults["method"].FailedEventIDs)

	result = v.ValidateEvent(context.Background(), map[string]any{"method": "bar"}, resp)
	assert.Equal(t, []string{"e1", "e2"}, result.PropertyResults["method"].FailedEventIDs)
	assert.Nil(t, result.PropertyResults["method"].PassedEventIDs)
}

func TestValidateEvent_PinnedNonString(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"count":  {PinnedValues: map[string][]string{"3": {"e1"}}},
		"active": {PinnedValues: map[string][]string{"true": {"e1"}}},
	})
	result := validate.New().ValidateEvent(context.Background(), map[string]any{
		"count":  3.0,
		"active": true,
	}, resp)

	assert.Equal(t, []string{"e1"}, result.PropertyResults["count"].PassedEventIDs)
	assert.Equal(t, []string{"e1"}, result.PropertyResults["active"].PassedEventIDs)
}

func TestValidateEvent_Allowed(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"plan": {AllowedValues: map[string][]string{`["free","pro"]`: {"e1"}}},
	})
	v := validate.New()

	tests := []struct {
		name   string
		value  any
		passed bool
	}{
		{"member", "pro", true},
		{"non-member", "enterprise", false},
		{"list of members", []any{"free", "pro"}, true},
		{"typed list of members", []string{"free"}, true},
		{"list with non-member", []any{"free", "gold"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateEvent(context.Background(), map[string]any{"plan": tt.value}, resp)
			pr := result.PropertyResults["plan"]
			require.NotNil(t, pr)
			if tt.passed {
				assert.Equal(t, []string{"e1"}, pr.PassedEventIDs)
			} else {
				assert.Equal(t, []string{"e1"}, pr.FailedEventIDs)
			}
		})
	}
}

func TestValidateEvent_RangeInclusive(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"age": {MinMaxRanges: map[string][]string{"0,10": {"e3"}}},
	})
	v := validate.New()

	tests := []struct {
		value  any
		passed bool
	}{
		{5, true},
		{0, true},
		{10, true},
		{10.0, true},
		{15, false},
		{-1, false},
		{"5", false},
		{true, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.value), func(t *testing.T) {
			result := v.ValidateEvent(context.Background(), map[string]any{"age": tt.value}, resp)
			pr := result.PropertyResults["age"]
			require.NotNil(t, pr)
			if tt.passed {
				assert.Equal(t, []string{"e3"}, pr.PassedEventIDs)
			} else {
				assert.Equal(t, []string{"e3"}, pr.FailedEventIDs)
			}
		})
	}
}

func TestValidateEvent_RangeExactIntegers(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"id":   {MinMaxRanges: map[string][]string{"0,9007199254740992": {"e1"}}},
		"size": {MinMaxRanges: map[string][]string{"0,18446744073709551614": {"e1"}}},
		"neg":  {MinMaxRanges: map[string][]string{"-9223372036854775807,0": {"e1"}}},
	})
	v := validate.New()

	tests := []struct {
		name   string
		prop   string
		value  any
		passed bool
	}{
		{"int64 at bound", "id", int64(9007199254740992), true},
		{"int64 one past bound", "id", int64(9007199254740993), false},
		{"json number one past bound", "id", json.Number("9007199254740993"), false},
		{"uint64 max", "size", uint64(math.MaxUint64), false},
		{"uint64 max minus one", "size", uint64(math.MaxUint64 - 1), true},
		{"int64 min", "neg", int64(math.MinInt64), false},
		{"int64 min plus one", "neg", int64(math.MinInt64 + 1), true},
		{"NaN", "id", math.NaN(), false},
		{"positive infinity", "id", math.Inf(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateEvent(context.Background(), map[string]any{tt.prop: tt.value}, resp)
			pr := result.PropertyResults[tt.prop]
			require.NotNil(t, pr)
			if tt.passed {
				assert.Equal(t, []string{"e1"}, pr.PassedEventIDs)
			} else {
				assert.Equal(t, []string{"e1"}, pr.FailedEventIDs)
			}
		})
	}
}

func TestValidateEvent_NonFiniteRangeSkipped(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"age": {MinMaxRanges: map[string][]string{"NaN,10": {"e1"}, "0,Inf": {"e2"}, "0,10": {"e3"}}},
	})
	result := validate.New().ValidateEvent(context.Background(), map[string]any{"age": 5}, resp)
	pr := result.PropertyResults["age"]
	require.NotNil(t, pr)
	assert.Equal(t, []string{"e3"}, pr.PassedEventIDs)
	assert.Empty(t, pr.FailedEventIDs)
}

func TestValidateEvent_LargeIntegerValues(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"order": {PinnedValues: map[string][]string{"12345678901234567891": {"e1"}}},
		"sku":   {AllowedValues: map[string][]string{`[9007199254740993, 1]`: {"e1"}}},
	})
	v := validate.New()

	result := v.ValidateEvent(context.Background(), map[string]any{
		"order": json.Number("12345678901234567891"),
		"sku":   json.Number("9007199254740993"),
	}, resp)
	assert.Equal(t, []string{"e1"}, result.PropertyResults["order"].PassedEventIDs)
	assert.Equal(t, []string{"e1"}, result.PropertyResults["sku"].PassedEventIDs)

	result = v.ValidateEvent(context.Background(), map[string]any{
		"order": json.Number("12345678901234567890"),
		"sku":   int64(9007199254740992),
	}, resp)
	assert.Equal(t, []string{"e1"}, result.PropertyResults["order"].FailedEventIDs)
	assert.Equal(t, []string{"e1"}, result.PropertyResults["sku"].FailedEventIDs)
}

func TestValidateEvent_Regex(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"code": {RegexPatterns: map[string][]string{"^[A-Z]{3}$": {"e1"}}},
	})
	v := validate.New()

	result := v.ValidateEvent(context.Background(), map[string]any{"code": "ABC"}, resp)
	assert.Equal(t, []string{"e1"}, result.PropertyResults["code"].PassedEventIDs)

	result = v.ValidateEvent(context.Background(), map[string]any{"code": "abcd"}, resp)
	assert.Equal(t, []string{"e1"}, result.PropertyResults["code"].FailedEventIDs)
}

func TestValidateEvent_MissingPropertySkipped(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"method": {PinnedValues: map[string][]string{"foo": {"e1"}}},
		"plan":   {PinnedValues: map[string][]string{"pro": {"e1"}}},
	})
	result := validate.New().ValidateEvent(context.Background(), map[string]any{"plan": "pro"}, resp)

	assert.NotContains(t, result.PropertyResults, "method")
	assert.Contains(t, result.PropertyResults, "plan")
}

func TestValidateEvent_NilValueIsNull(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"ref": {PinnedValues: map[string][]string{"null": {"e1"}}},
	})
	result := validate.New().ValidateEvent(context.Background(), map[string]any{"ref": nil}, resp)
	assert.Equal(t, []string{"e1"}, result.PropertyResults["ref"].PassedEventIDs)
}

func TestValidateEvent_ShorterListKept(t *testing.T) {
	all := ids("e", 100)

	t.Run("one failure", func(t *testing.T) {
		resp := single(map[string]*spec.Constraints{
			"p": {PinnedValues: map[string][]string{"a": all[:99], "b": all[99:]}},
		})
		result := validate.New().ValidateEvent(context.Background(), map[string]any{"p": "a"}, resp)
		pr := result.PropertyResults["p"]
		assert.Equal(t, []string{all[99]}, pr.FailedEventIDs)
		assert.Nil(t, pr.PassedEventIDs)
	})

	t.Run("one pass", func(t *testing.T) {
		resp := single(map[string]*spec.Constraints{
			"p": {PinnedValues: map[string][]string{"a": all[:99], "b": all[99:]}},
		})
		result := validate.New().ValidateEvent(context.Background(), map[string]any{"p": "b"}, resp)
		pr := result.PropertyResults["p"]
		assert.Equal(t, []string{all[99]}, pr.PassedEventIDs)
		assert.Nil(t, pr.FailedEventIDs)
	})

	t.Run("tie keeps failed", func(t *testing.T) {
		resp := single(map[string]*spec.Constraints{
			"p": {PinnedValues: map[string][]string{"a": {"e1"}, "b": {"e2"}}},
		})
		result := validate.New().ValidateEvent(context.Background(), map[string]any{"p": "a"}, resp)
		pr := result.PropertyResults["p"]
		assert.Equal(t, []string{"e2"}, pr.FailedEventIDs)
		assert.Nil(t, pr.PassedEventIDs)
	})
}

func TestValidateEvent_MultipleEntriesMerged(t *testing.T) {
	resp := &spec.Response{
		Events: []*spec.Entry{
			{BaseEventID: "e1", Props: map[string]*spec.Constraints{
				"method": {PinnedValues: map[string][]string{"email": {"e1"}}},
			}},
			{BaseEventID: "e2", VariantIDs: []string{"e2.v1", "e2.v2"}, Props: map[string]*spec.Constraints{
				"method": {PinnedValues: map[string][]string{"google": {"e2", "e2.v1", "e2.v2"}}},
			}},
		},
	}
	result := validate.New().ValidateEvent(context.Background(), map[string]any{"method": "email"}, resp)

	pr := result.PropertyResults["method"]
	require.NotNil(t, pr)
	assert.Equal(t, []string{"e1"}, pr.PassedEventIDs)
}

func TestValidateEvent_Children(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"address": {Children: map[string]*spec.Constraints{
			"zip":     {RegexPatterns: map[string][]string{"^[0-9]{5}$": {"e1"}}},
			"country": {PinnedValues: map[string][]string{"US": {"e1"}}},
		}},
	})
	v := validate.New()

	t.Run("object", func(t *testing.T) {
		result := v.ValidateEvent(context.Background(), map[string]any{
			"address": map[string]any{"zip": "12345", "country": "CA"},
		}, resp)

		pr := result.PropertyResults["address"]
		require.NotNil(t, pr)
		assert.Nil(t, pr.FailedEventIDs)
		assert.Nil(t, pr.PassedEventIDs)
		assert.Equal(t, []string{"e1"}, pr.Children["zip"].PassedEventIDs)
		assert.Equal(t, []string{"e1"}, pr.Children["country"].FailedEventIDs)
	})

	t.Run("list of objects", func(t *testing.T) {
		result := v.ValidateEvent(context.Background(), map[string]any{
			"address": []any{
				map[string]any{"zip": "12345"},
				map[string]any{"zip": "nope"},
			},
		}, resp)

		pr := result.PropertyResults["address"]
		require.NotNil(t, pr)
		assert.Equal(t, []string{"e1"}, pr.Children["zip"].FailedEventIDs)
		assert.NotContains(t, pr.Children, "country")
	})

	t.Run("typed map", func(t *testing.T) {
		result := v.ValidateEvent(context.Background(), map[string]any{
			"address": map[string]string{"zip": "54321"},
		}, resp)
		assert.Equal(t, []string{"e1"}, result.PropertyResults["address"].Children["zip"].PassedEventIDs)
	})

	t.Run("scalar ignores children", func(t *testing.T) {
		result := v.ValidateEvent(context.Background(), map[string]any{"address": "somewhere"}, resp)
		assert.NotContains(t, result.PropertyResults, "address")
	})
}

func TestValidateEvent_MalformedKeysSkipped(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	resp := single(map[string]*spec.Constraints{
		"age":  {MinMaxRanges: map[string][]string{"bad": {"e1"}, "0,10": {"e2"}}},
		"plan": {AllowedValues: map[string][]string{"free,pro": {"e1"}, `["free"]`: {"e2"}}},
		"code": {RegexPatterns: map[string][]string{"(": {"e1"}, "^x$": {"e2"}}},
	})
	result := validate.New(validate.WithLogger(logger)).ValidateEvent(context.Background(), map[string]any{
		"age":  5,
		"plan": "free",
		"code": "x",
	}, resp)

	for _, name := range []string{"age", "plan", "code"} {
		pr := result.PropertyResults[name]
		require.NotNil(t, pr, name)
		assert.Equal(t, []string{"e2"}, pr.PassedEventIDs, name)
	}
	assert.Equal(t, 3, strings.Count(buf.String(), "constraint skipped"))
}

func TestValidateEvent_DiagnosticLogsThrottled(t *testing.T) {
	bad := map[string][]string{}
	for i := 0; i < 6; i++ {
		bad[fmt.Sprintf("bad-%d", i)] = []string{"e1"}
	}
	resp := single(map[string]*spec.Constraints{"age": {MinMaxRanges: bad}})
	props := map[string]any{"age": 5}

	tests := []struct {
		name  string
		limit rate.Limit
		burst int
		want  int
	}{
		{"burst then silent", rate.Every(time.Hour), 2, 2},
		{"unthrottled", rate.Inf, 1, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			v := validate.New(validate.WithLogger(logger), validate.WithLogRate(tt.limit, tt.burst))

			v.ValidateEvent(context.Background(), props, resp)
			assert.Equal(t, tt.want, strings.Count(buf.String(), "constraint skipped"))
		})
	}
}

func TestValidateEvent_CatastrophicPatternBounded(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := newRecordingMetrics()

	resp := single(map[string]*spec.Constraints{
		"name": {RegexPatterns: map[string][]string{"^(a+)+$": {"e1"}}},
	})
	v := validate.New(
		validate.WithRegexTimeout(50*time.Millisecond),
		validate.WithLogger(logger),
		validate.WithMetrics(metrics),
	)

	input := strings.Repeat("a", 40) + "!"
	start := time.Now()
	result := v.ValidateEvent(context.Background(), map[string]any{"name": input}, resp)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, []string{"e1"}, result.PropertyResults["name"].FailedEventIDs)
	assert.Equal(t, 1, metrics.dangerous)
	assert.Equal(t, 1, metrics.validations)
	assert.Contains(t, buf.String(), "regex pattern may backtrack catastrophically")
}

func TestValidateEvent_PatternCompiledOncePerCall(t *testing.T) {
	metrics := newRecordingMetrics()
	resp := single(map[string]*spec.Constraints{
		"tags": {RegexPatterns: map[string][]string{"^(x+)+$": {"e1"}}},
		"alts": {RegexPatterns: map[string][]string{"^(x+)+$": {"e1"}}},
	})
	v := validate.New(validate.WithMetrics(metrics))

	v.ValidateEvent(context.Background(), map[string]any{
		"tags": []any{"x", "xx", "xxx"},
		"alts": "x",
	}, resp)

	assert.Equal(t, 1, metrics.dangerous)
	assert.Equal(t, 4, metrics.regex[observability.RegexMatch])
}

func TestValidateEvent_Concurrent(t *testing.T) {
	resp := single(map[string]*spec.Constraints{
		"code": {RegexPatterns: map[string][]string{"^[a-z]+$": {"e1"}}},
		"age":  {MinMaxRanges: map[string][]string{"0,10": {"e2"}}},
	})
	v := validate.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result := v.ValidateEvent(context.Background(), map[string]any{"code": "abc", "age": i}, resp)
			assert.Equal(t, []string{"e1"}, result.PropertyResults["code"].PassedEventIDs)
		}(i)
	}
	wg.Wait()
}

func TestNew_Defaults(t *testing.T) {
	v := validate.New(validate.WithRegexTimeout(-1), validate.WithMetrics(nil), validate.WithSpanManager(nil))
	assert.Equal(t, validate.DefaultRegexTimeout, v.RegexTimeout())
}
