/*
Package validate checks submitted event properties against an event spec and
reports, per property, which event and variant ids the values are compatible
with.

# Results

Each property result names either the ids that failed or the ids that passed,
whichever list is shorter. The omitted list is the complement within the ids
that constrain the property. When nothing fails only the passed list is sent,
when nothing passes only the failed list is sent, and a tie keeps the failed
list.

	v := validate.New(validate.WithRegexTimeout(50 * time.Millisecond))
	result := v.ValidateEvent(ctx, map[string]any{"method": "email"}, resp)
	// result.PropertyResults["method"].PassedEventIDs == ["evt_signup"]

# Missing Properties

A property absent from the submitted map is never evaluated. The spec's
required flag is informational and cannot fail an event.

# Nested Properties

Constraints with children are evaluated against object values and lists of
objects. For a list, an id fails a child constraint when any element fails it.

# Regular Expressions

Patterns run on github.com/dlclark/regexp2, a backtracking engine compatible
with the patterns authored in the schema service. Each match runs on its own
goroutine joined against a deadline (WithRegexTimeout). A match that does not
finish in time is abandoned and counts as no match. Patterns with nested
quantifiers are reported through the logger and metrics but still evaluated.
*/
package validate
