package validate

import (
	"sort"

	"github.com/randalmurphal/inspector/pkg/inspector/spec"
)

// PropertyResult is the validation outcome for one property.
// At most one of FailedEventIDs and PassedEventIDs is set.
type PropertyResult struct {
	FailedEventIDs []string                   `json:"failedEventIds,omitempty"`
	PassedEventIDs []string                   `json:"passedEventIds,omitempty"`
	Children       map[string]*PropertyResult `json:"children,omitempty"`
}

// Result is the validation outcome for one event.
type Result struct {
	Metadata        *spec.Metadata             `json:"metadata,omitempty"`
	PropertyResults map[string]*PropertyResult `json:"propertyResults"`
}

// outcome accumulates requiring and failed ids before encoding.
type outcome struct {
	requiring map[string]struct{}
	failed    map[string]struct{}
	children  map[string]*outcome
}

func newOutcome() *outcome {
	return &outcome{
		requiring: make(map[string]struct{}),
		failed:    make(map[string]struct{}),
	}
}

func (o *outcome) require(ids []string, passed bool) {
	for _, id := range ids {
		o.requiring[id] = struct{}{}
		if !passed {
			o.failed[id] = struct{}{}
		}
	}
}

func (o *outcome) child(name string) *outcome {
	if o.children == nil {
		o.children = make(map[string]*outcome)
	}
	c, ok := o.children[name]
	if !ok {
		c = newOutcome()
		o.children[name] = c
	}
	return c
}

// failing reports whether any id failed on the property or a child.
func (o *outcome) failing() bool {
	if len(o.failed) > 0 {
		return true
	}
	for _, c := range o.children {
		if c.failing() {
			return true
		}
	}
	return false
}

// result encodes the outcome, keeping the shorter id list.
// Returns nil when no id constrains the property or any child.
func (o *outcome) result() *PropertyResult {
	r := &PropertyResult{}
	if len(o.requiring) > 0 {
		failed := sortedIDs(o.failed)
		passed := make([]string, 0, len(o.requiring)-len(failed))
		for id := range o.requiring {
			if _, bad := o.failed[id]; !bad {
				passed = append(passed, id)
			}
		}
		sort.Strings(passed)

		switch {
		case len(failed) == 0:
			r.PassedEventIDs = passed
		case len(passed) == 0, len(failed) <= len(passed):
			r.FailedEventIDs = failed
		default:
			r.PassedEventIDs = passed
		}
	}

	for name, c := range o.children {
		if cr := c.result(); cr != nil {
			if r.Children == nil {
				r.Children = make(map[string]*PropertyResult)
			}
			r.Children[name] = cr
		}
	}

	if r.FailedEventIDs == nil && r.PassedEventIDs == nil && r.Children == nil {
		return nil
	}
	return r
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
