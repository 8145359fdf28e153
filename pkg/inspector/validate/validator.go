package validate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"math/big"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/randalmurphal/inspector/pkg/inspector/observability"
	"github.com/randalmurphal/inspector/pkg/inspector/spec"
)

// Diagnostic log budget: DefaultLogBurst messages at once, then one per
// DefaultLogInterval.
const (
	DefaultLogInterval = time.Second
	DefaultLogBurst    = 10
)

// Reasons a constraint key is skipped.
var (
	errBadRange         = errors.New("range key is not min,max")
	errBadAllowedValues = errors.New("allowed values key is not a JSON array")
)

// Validator evaluates event properties against event specs.
// A Validator is safe for concurrent use.
type Validator struct {
	regexTimeout time.Duration
	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager
	logLimiter   *rate.Limiter
}

// Option configures a Validator.
type Option func(*Validator)

// WithRegexTimeout bounds each regex match.
// Default: 100ms. Non-positive values are ignored.
func WithRegexTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.regexTimeout = d
		}
	}
}

// WithLogger sets the logger for skipped constraints and regex diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithLogRate throttles the per-value diagnostics: skipped constraints,
// dangerous patterns and regex timeouts. Metrics are never throttled.
// Default: DefaultLogBurst at once, then one per DefaultLogInterval.
// Pass rate.Inf to log everything. A burst below 1 is ignored.
func WithLogRate(limit rate.Limit, burst int) Option {
	return func(v *Validator) {
		if burst > 0 {
			v.logLimiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(v *Validator) {
		if m != nil {
			v.metrics = m
		}
	}
}

// WithSpanManager sets the span manager.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(v *Validator) {
		if sm != nil {
			v.spans = sm
		}
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		regexTimeout: DefaultRegexTimeout,
		metrics:      observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
		logLimiter:   rate.NewLimiter(rate.Every(DefaultLogInterval), DefaultLogBurst),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// RegexTimeout returns the per-match deadline.
func (v *Validator) RegexTimeout() time.Duration {
	return v.regexTimeout
}

// diagnose reports whether a diagnostic log line may be written now.
func (v *Validator) diagnose() bool {
	return v.logger != nil && v.logLimiter.Allow()
}

// evaluation carries per-call state: compiled patterns are shared by every
// property of one event and discarded afterwards.
type evaluation struct {
	v        *Validator
	ctx      context.Context
	patterns map[string]*compiledPattern
}

// ValidateEvent validates properties against resp. It returns nil when resp
// is nil or has no entries. Properties absent from the map are skipped.
func (v *Validator) ValidateEvent(ctx context.Context, properties map[string]any, resp *spec.Response) *Result {
	if resp.Empty() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := v.spans.StartValidateSpan(ctx, resp.Metadata.SchemaID, resp.Metadata.BranchID, len(resp.Events))
	start := time.Now()

	ev := &evaluation{
		v:        v,
		ctx:      ctx,
		patterns: make(map[string]*compiledPattern),
	}

	outcomes := make(map[string]*outcome)
	for _, entry := range resp.Events {
		if entry == nil {
			continue
		}
		for name, c := range entry.Props {
			if c == nil {
				continue
			}
			value, ok := properties[name]
			if !ok {
				continue
			}
			o, exists := outcomes[name]
			if !exists {
				o = newOutcome()
				outcomes[name] = o
			}
			ev.evaluate(name, value, c, o)
		}
	}

	meta := resp.Metadata
	result := &Result{
		Metadata:        &meta,
		PropertyResults: make(map[string]*PropertyResult, len(outcomes)),
	}
	failing := 0
	for name, o := range outcomes {
		if pr := o.result(); pr != nil {
			result.PropertyResults[name] = pr
		}
		if o.failing() {
			failing++
		}
	}

	v.metrics.RecordValidation(ctx, len(outcomes), time.Since(start))
	v.spans.EndSpanWithError(span, nil, observability.AttrFailedProps.Int(failing))
	return result
}

// evaluate applies c to value, accumulating into o.
func (ev *evaluation) evaluate(path string, value any, c *spec.Constraints, o *outcome) {
	if c.Kind() != spec.KindNone {
		ev.checkValue(path, value, c, o)
	}
	if len(c.Children) == 0 {
		return
	}

	if obj, ok := asObject(value); ok {
		ev.evaluateChildren(path, obj, c.Children, o)
		return
	}
	if items, ok := asList(value); ok {
		for _, item := range items {
			if obj, ok := asObject(item); ok {
				ev.evaluateChildren(path, obj, c.Children, o)
			}
		}
	}
}

// evaluateChildren evaluates one object against child constraints. Calling it
// for every element of a list unions the failures, so an id fails when any
// element fails.
func (ev *evaluation) evaluateChildren(path string, obj map[string]any, children map[string]*spec.Constraints, o *outcome) {
	for name, cc := range children {
		if cc == nil {
			continue
		}
		value, ok := obj[name]
		if !ok {
			continue
		}
		ev.evaluate(path+"."+name, value, cc, o.child(name))
	}
}

// checkValue evaluates the node's value constraint. A list value passes a key
// only if every element does.
func (ev *evaluation) checkValue(path string, value any, c *spec.Constraints, o *outcome) {
	values := []any{value}
	if items, ok := asList(value); ok {
		values = items
	}

	kind := c.Kind()
	for key, ids := range c.Values() {
		check, err := ev.checker(path, kind, key)
		if err != nil {
			if ev.v.diagnose() {
				observability.LogSkippedConstraint(ev.v.logger, path, kind.String(), key, err)
			}
			continue
		}
		passed := true
		for _, item := range values {
			if !check(item) {
				passed = false
				break
			}
		}
		o.require(ids, passed)
	}
}

// checker builds the predicate for one constraint key.
func (ev *evaluation) checker(path string, kind spec.Kind, key string) (func(any) bool, error) {
	switch kind {
	case spec.KindPinned:
		return func(val any) bool {
			return spec.ValueString(val) == key
		}, nil

	case spec.KindAllowed:
		members, ok := spec.ParseAllowedValues(key)
		if !ok {
			return nil, errBadAllowedValues
		}
		set := make(map[string]struct{}, len(members))
		for _, m := range members {
			set[m] = struct{}{}
		}
		return func(val any) bool {
			_, ok := set[spec.ValueString(val)]
			return ok
		}, nil

	case spec.KindRegex:
		cp := ev.pattern(path, key)
		if cp.err != nil {
			return nil, cp.err
		}
		return func(val any) bool {
			return ev.match(path, key, cp, spec.ValueString(val))
		}, nil

	case spec.KindMinMax:
		lo, hi, ok := spec.RangeBounds(key)
		if !ok {
			return nil, errBadRange
		}
		return func(val any) bool {
			n, ok := toNumber(val)
			return ok && n.Cmp(lo) >= 0 && n.Cmp(hi) <= 0
		}, nil
	}
	return nil, errors.New("no value constraint")
}

// pattern compiles key once per evaluation and reports dangerous shapes.
func (ev *evaluation) pattern(path, key string) *compiledPattern {
	if cp, ok := ev.patterns[key]; ok {
		return cp
	}
	cp := compilePattern(key, ev.v.regexTimeout)
	ev.patterns[key] = cp
	if cp.dangerous {
		if ev.v.diagnose() {
			observability.LogDangerousPattern(ev.v.logger, path, key)
		}
		ev.v.metrics.RecordDangerousPattern(ev.ctx)
	}
	return cp
}

// match runs one regex match under the deadline. Anything but a completed
// match counts as no match.
func (ev *evaluation) match(path, key string, cp *compiledPattern, input string) bool {
	matched, result := runWithDeadline(ev.ctx, ev.v.regexTimeout, func() (bool, error) {
		return cp.re.MatchString(input)
	})
	ev.v.metrics.RecordRegexEvaluation(ev.ctx, result)
	if result == observability.RegexTimeout {
		if ev.v.diagnose() {
			observability.LogRegexTimeout(ev.v.logger, path, key, ev.v.regexTimeout)
		}
		ev.v.spans.AddSpanEvent(ev.ctx, "regex.timeout",
			attribute.String("property", path),
			attribute.String("pattern", key),
		)
	}
	return matched
}

// toNumber converts numeric values to an exact big.Float so 64-bit
// integers compare without rounding. Strings, booleans and NaN are not numeric.
func toNumber(v any) (*big.Float, bool) {
	if n, ok := v.(json.Number); ok {
		return spec.ExactNumber(n.String())
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return new(big.Float).SetInt64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Float).SetUint64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) {
			return nil, false
		}
		return new(big.Float).SetFloat64(f), true
	}
	return nil, false
}

// asObject returns v as a string-keyed map.
func asObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// asList returns v as a slice of values. Byte slices are not lists.
func asList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
