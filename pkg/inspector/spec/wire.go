package spec

// WireConstraints is the compact wire form of Constraints.
type WireConstraints struct {
	T        string                      `json:"t"`
	R        bool                        `json:"r"`
	L        *bool                       `json:"l,omitempty"`
	P        map[string][]string         `json:"p,omitempty"`
	V        map[string][]string         `json:"v,omitempty"`
	RX       map[string][]string         `json:"rx,omitempty"`
	MinMax   map[string][]string         `json:"minmax,omitempty"`
	Children map[string]*WireConstraints `json:"children,omitempty"`
}

// WireEntry is the compact wire form of Entry.
type WireEntry struct {
	B       string                      `json:"b"`
	EventID string                      `json:"eventId"`
	VIDs    []string                    `json:"vids"`
	P       map[string]*WireConstraints `json:"p"`
}

// WireResponse is the wire form of Response.
type WireResponse struct {
	Events   []*WireEntry `json:"events"`
	Metadata Metadata     `json:"metadata"`
}

// ToInternal translates the wire constraints into Constraints.
// Only the highest priority value constraint is kept.
func (w *WireConstraints) ToInternal() *Constraints {
	if w == nil {
		return nil
	}
	c := &Constraints{
		Type:     w.T,
		Required: w.R,
	}
	if w.L != nil {
		l := *w.L
		c.IsList = &l
	}

	switch {
	case len(w.P) > 0:
		c.PinnedValues = copyIDMap(w.P)
	case len(w.V) > 0:
		c.AllowedValues = copyIDMap(w.V)
	case len(w.RX) > 0:
		c.RegexPatterns = copyIDMap(w.RX)
	case len(w.MinMax) > 0:
		c.MinMaxRanges = copyIDMap(w.MinMax)
	}

	if len(w.Children) > 0 {
		c.Children = make(map[string]*Constraints, len(w.Children))
		for name, child := range w.Children {
			if child == nil {
				continue
			}
			c.Children[name] = child.ToInternal()
		}
	}
	return c
}

// ToInternal translates the wire entry into an Entry.
func (w *WireEntry) ToInternal() *Entry {
	if w == nil {
		return nil
	}
	e := &Entry{
		BranchID:    w.B,
		BaseEventID: w.EventID,
		VariantIDs:  append([]string(nil), w.VIDs...),
		Props:       make(map[string]*Constraints, len(w.P)),
	}
	for name, wc := range w.P {
		if wc == nil {
			continue
		}
		e.Props[name] = wc.ToInternal()
	}
	return e
}

// FromWire translates a wire response into a Response.
func FromWire(w *WireResponse) *Response {
	if w == nil {
		return nil
	}
	resp := &Response{
		Events:   make([]*Entry, 0, len(w.Events)),
		Metadata: w.Metadata,
	}
	for _, we := range w.Events {
		if e := we.ToInternal(); e != nil {
			resp.Events = append(resp.Events, e)
		}
	}
	return resp
}

func copyIDMap(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, ids := range in {
		out[k] = append([]string(nil), ids...)
	}
	return out
}
