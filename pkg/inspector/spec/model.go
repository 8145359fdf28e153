package spec

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Kind identifies which value constraint a Constraints node carries.
type Kind int

const (
	// KindNone means the node has no value constraint (children only, or nothing).
	KindNone Kind = iota
	// KindPinned requires an exact value.
	KindPinned
	// KindAllowed requires membership in a value set.
	KindAllowed
	// KindRegex requires a pattern match.
	KindRegex
	// KindMinMax requires a numeric value inside an inclusive range.
	KindMinMax
)

// String returns the kind name used in logs and metric attributes.
func (k Kind) String() string {
	switch k {
	case KindPinned:
		return "pinned"
	case KindAllowed:
		return "allowed"
	case KindRegex:
		return "regex"
	case KindMinMax:
		return "minmax"
	default:
		return "none"
	}
}

// Constraints describes the rules for one property.
// Type and Required are informational and never enforced.
type Constraints struct {
	Type     string
	Required bool
	// IsList is nil when the service did not say.
	IsList *bool

	// PinnedValues maps an exact value to the event ids that require it.
	PinnedValues map[string][]string
	// AllowedValues maps a JSON array string to the event ids that accept its members.
	AllowedValues map[string][]string
	// RegexPatterns maps a pattern to the event ids that require a match.
	RegexPatterns map[string][]string
	// MinMaxRanges maps "min,max" to the event ids that require the value in range.
	MinMaxRanges map[string][]string

	// Children holds nested constraints for object and list-of-object properties.
	Children map[string]*Constraints
}

// Kind reports the value constraint carried by the node.
func (c *Constraints) Kind() Kind {
	switch {
	case c == nil:
		return KindNone
	case len(c.PinnedValues) > 0:
		return KindPinned
	case len(c.AllowedValues) > 0:
		return KindAllowed
	case len(c.RegexPatterns) > 0:
		return KindRegex
	case len(c.MinMaxRanges) > 0:
		return KindMinMax
	default:
		return KindNone
	}
}

// Values returns the key -> requiring ids map for the node's kind.
func (c *Constraints) Values() map[string][]string {
	switch c.Kind() {
	case KindPinned:
		return c.PinnedValues
	case KindAllowed:
		return c.AllowedValues
	case KindRegex:
		return c.RegexPatterns
	case KindMinMax:
		return c.MinMaxRanges
	default:
		return nil
	}
}

// List reports whether the property is declared as a list.
func (c *Constraints) List() bool {
	return c != nil && c.IsList != nil && *c.IsList
}

// Entry is one event (base event plus variants) returned for a requested name.
type Entry struct {
	BranchID    string
	BaseEventID string
	VariantIDs  []string
	Props       map[string]*Constraints
}

// EventIDs returns the base event id followed by the variant ids.
// This is the full set of ids any requiring-id list in the entry can name.
func (e *Entry) EventIDs() []string {
	ids := make([]string, 0, len(e.VariantIDs)+1)
	if e.BaseEventID != "" {
		ids = append(ids, e.BaseEventID)
	}
	return append(ids, e.VariantIDs...)
}

// Metadata describes the schema the response was produced from.
// It keeps its long field names on the wire.
type Metadata struct {
	SchemaID       string `json:"schemaId"`
	BranchID       string `json:"branchId"`
	LatestActionID string `json:"latestActionId"`
	SourceID       string `json:"sourceId,omitempty"`
}

// Response is the parsed result of an event spec request.
// Several entries appear when name mapping resolves one name to several events.
type Response struct {
	Events   []*Entry
	Metadata Metadata
}

// BranchID returns the schema branch the response was served from, or ""
// for a nil response.
func (r *Response) BranchID() string {
	if r == nil {
		return ""
	}
	return r.Metadata.BranchID
}

// Empty reports whether the response has no entries.
func (r *Response) Empty() bool {
	return r == nil || len(r.Events) == 0
}

// ParseRange parses a "min,max" range key. Bounds must be finite. The
// float64 results round bounds beyond 2^53; RangeBounds keeps them exact.
func ParseRange(key string) (lo, hi float64, ok bool) {
	a, b, found := strings.Cut(key, ",")
	if !found {
		return 0, 0, false
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil || math.IsNaN(lo) || math.IsInf(lo, 0) {
		return 0, 0, false
	}
	hi, err = strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil || math.IsNaN(hi) || math.IsInf(hi, 0) {
		return 0, 0, false
	}
	return lo, hi, true
}

// RangeBounds parses a "min,max" range key into exact decimal bounds.
func RangeBounds(key string) (lo, hi *big.Float, ok bool) {
	if _, _, ok := ParseRange(key); !ok {
		return nil, nil, false
	}
	a, b, _ := strings.Cut(key, ",")
	lo, ok = ExactNumber(strings.TrimSpace(a))
	if !ok {
		return nil, nil, false
	}
	hi, ok = ExactNumber(strings.TrimSpace(b))
	if !ok {
		return nil, nil, false
	}
	return lo, hi, true
}

// ExactNumber parses a finite decimal literal without rounding it to float64.
func ExactNumber(s string) (*big.Float, bool) {
	f, _, err := big.ParseFloat(s, 0, exactPrec, big.ToNearestEven)
	if err != nil || f.IsInf() {
		return nil, false
	}
	return f, true
}

// exactPrec holds any int64/uint64 and typical decimal bounds without loss.
const exactPrec = 256

// ParseAllowedValues parses an allowed-values key, a JSON array string, into
// the string forms of its members.
func ParseAllowedValues(key string) ([]string, bool) {
	dec := json.NewDecoder(strings.NewReader(key))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil || dec.More() {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, ValueString(v))
	}
	return out, true
}

// ValueString renders a property value the way constraint keys are written:
// strings verbatim, numbers in shortest decimal form, booleans as true/false,
// nil as null and anything else as compact JSON.
func ValueString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		// Integer literals keep their digits; float64 would round past 2^53.
		if !strings.ContainsAny(val.String(), ".eE") {
			return val.String()
		}
		if f, err := val.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
