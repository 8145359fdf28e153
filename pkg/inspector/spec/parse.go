package spec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for response parsing.
var (
	// ErrEmptyResponse indicates the body was empty or JSON null (no spec exists).
	ErrEmptyResponse = errors.New("event spec response is empty")

	// ErrMalformedResponse indicates the body is not a JSON object.
	ErrMalformedResponse = errors.New("malformed event spec response")
)

// ParseResponse decodes a response body and translates it into a Response.
func ParseResponse(data []byte) (*Response, error) {
	w, err := DecodeWire(data)
	if err != nil {
		return nil, err
	}
	return FromWire(w), nil
}

// DecodeWire decodes a response body into its wire form, dropping any field,
// entry or constraint that does not have the expected shape.
func DecodeWire(data []byte) (*WireResponse, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyResponse
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	w := &WireResponse{}
	if raw, ok := top["metadata"]; ok {
		w.Metadata = decodeMetadata(raw)
	}

	var events []json.RawMessage
	if decodeField(top, "events", &events) {
		for _, raw := range events {
			if e := decodeEntry(raw); e != nil {
				w.Events = append(w.Events, e)
			}
		}
	}
	return w, nil
}

func decodeMetadata(raw json.RawMessage) Metadata {
	var m Metadata
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return m
	}
	decodeField(fields, "schemaId", &m.SchemaID)
	decodeField(fields, "branchId", &m.BranchID)
	decodeField(fields, "latestActionId", &m.LatestActionID)
	decodeField(fields, "sourceId", &m.SourceID)
	return m
}

func decodeEntry(raw json.RawMessage) *WireEntry {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil
	}

	e := &WireEntry{}
	decodeField(fields, "b", &e.B)
	decodeField(fields, "eventId", &e.EventID)
	if rawIDs, ok := fields["vids"]; ok {
		e.VIDs, _ = decodeStrings(rawIDs)
	}

	var props map[string]json.RawMessage
	if decodeField(fields, "p", &props) {
		e.P = make(map[string]*WireConstraints, len(props))
		for name, rawProp := range props {
			if c := decodeConstraints(rawProp); c != nil {
				e.P[name] = c
			}
		}
	}
	return e
}

func decodeConstraints(raw json.RawMessage) *WireConstraints {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil
	}

	c := &WireConstraints{}
	decodeField(fields, "t", &c.T)
	decodeField(fields, "r", &c.R)
	var l bool
	if decodeField(fields, "l", &l) {
		c.L = &l
	}
	c.P = decodeIDMap(fields, "p")
	c.V = decodeIDMap(fields, "v")
	c.RX = decodeIDMap(fields, "rx")
	c.MinMax = decodeIDMap(fields, "minmax")

	var children map[string]json.RawMessage
	if decodeField(fields, "children", &children) {
		c.Children = make(map[string]*WireConstraints, len(children))
		for name, rawChild := range children {
			if child := decodeConstraints(rawChild); child != nil {
				c.Children[name] = child
			}
		}
	}
	return c
}

// decodeIDMap decodes a value -> event ids map, skipping keys whose id list is malformed.
func decodeIDMap(fields map[string]json.RawMessage, key string) map[string][]string {
	var rawMap map[string]json.RawMessage
	if !decodeField(fields, key, &rawMap) || len(rawMap) == 0 {
		return nil
	}
	out := make(map[string][]string, len(rawMap))
	for k, rawIDs := range rawMap {
		ids, ok := decodeStrings(rawIDs)
		if !ok {
			continue
		}
		out[k] = ids
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// decodeStrings decodes a JSON array keeping only its string members.
func decodeStrings(raw json.RawMessage) ([]string, bool) {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// decodeField decodes fields[key] into dst and reports success.
// A missing key, JSON null or a type mismatch leaves dst untouched.
func decodeField(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
