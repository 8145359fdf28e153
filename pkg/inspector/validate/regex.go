package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/randalmurphal/inspector/pkg/inspector/observability"
)

// DefaultRegexTimeout bounds a single regex match.
const DefaultRegexTimeout = 100 * time.Millisecond

// errMatchPanic wraps a panic raised inside the regex engine.
var errMatchPanic = errors.New("regex engine panicked")

// IsPatternPotentiallyDangerous reports whether pattern contains a quantified
// group whose body holds an unbounded quantifier, such as (a+)+ or (x+){2,},
// or an unboundedly quantified group whose alternatives can start with the
// same text, such as (a|aa)+ or (.|x)*. These shapes backtrack exponentially
// on inputs that almost match. The check is a heuristic over the pattern text.
func IsPatternPotentiallyDangerous(pattern string) bool {
	// groupFrame tracks one open group.
	type groupFrame struct {
		start     int  // index of the first byte after '('
		unbounded bool // body contains an unbounded quantifier
	}
	var stack []groupFrame
	closedQuantified := false
	closedOverlap := false
	afterGroup := false

	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch ch {
		case '\\':
			i++
			afterGroup = false
		case '[':
			i = skipClass(pattern, i)
			afterGroup = false
		case '(':
			stack = append(stack, groupFrame{start: i + 1})
			afterGroup = false
		case ')':
			if len(stack) == 0 {
				afterGroup = false
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			closedQuantified = top.unbounded
			closedOverlap = alternativesOverlap(pattern[top.start:i])
			if closedQuantified && len(stack) > 0 {
				stack[len(stack)-1].unbounded = true
			}
			afterGroup = true
		case '*', '+', '{':
			n, unbounded := 1, true
			if ch == '{' {
				n, unbounded = braceQuantifier(pattern[i:])
				if n == 0 {
					afterGroup = false
					continue
				}
			}
			if afterGroup && (closedQuantified || (unbounded && closedOverlap)) {
				return true
			}
			if unbounded && len(stack) > 0 {
				stack[len(stack)-1].unbounded = true
			}
			i += n - 1
			afterGroup = false
		default:
			afterGroup = false
		}
	}
	return false
}

// alternativesOverlap reports whether two top-level alternatives of a group
// body can begin with the same token: identical leading tokens, a leading
// '.', or an empty alternative.
func alternativesOverlap(body string) bool {
	body = stripGroupPrefix(body)

	var heads []string
	depth, altStart := 0, 0
	for i := 0; i <= len(body); i++ {
		if i == len(body) || (body[i] == '|' && depth == 0) {
			heads = append(heads, leadingToken(body[altStart:i]))
			altStart = i + 1
			continue
		}
		switch body[i] {
		case '\\':
			if i+1 < len(body) {
				i++
			}
		case '[':
			i = skipClass(body, i)
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	if len(heads) < 2 {
		return false
	}

	seen := make(map[string]bool, len(heads))
	for _, h := range heads {
		if h == "" || h == "." || seen[h] {
			return true
		}
		seen[h] = true
	}
	return false
}

// stripGroupPrefix removes a non-capturing or named group marker.
func stripGroupPrefix(body string) string {
	switch {
	case strings.HasPrefix(body, "?:"):
		return body[2:]
	case strings.HasPrefix(body, "?<") && !strings.HasPrefix(body, "?<=") && !strings.HasPrefix(body, "?<!"):
		if end := strings.IndexByte(body, '>'); end >= 0 {
			return body[end+1:]
		}
	}
	return body
}

// leadingToken returns the first atom of an alternative: an escape, a
// character class, a group or a single byte.
func leadingToken(alt string) string {
	if alt == "" {
		return ""
	}
	switch alt[0] {
	case '\\':
		if len(alt) > 1 {
			return alt[:2]
		}
	case '[':
		return alt[:skipClass(alt, 0)+1]
	}
	return alt[:1]
}

// skipClass returns the index of the ']' closing the class opened at start.
func skipClass(pattern string, start int) int {
	i := start + 1
	if i < len(pattern) && pattern[i] == '^' {
		i++
	}
	if i < len(pattern) && pattern[i] == ']' {
		i++
	}
	for ; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case ']':
			return i
		}
	}
	return len(pattern) - 1
}

// braceQuantifier returns the length of a {n}, {n,} or {n,m} quantifier at
// the start of s, or 0 if s does not start with one. unbounded is true for {n,}.
func braceQuantifier(s string) (n int, unbounded bool) {
	i := 1
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if i < len(s) && s[i] == ',' {
		i++
		upper := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			upper++
		}
		unbounded = upper == 0
	}
	if i < len(s) && s[i] == '}' {
		return i + 1, unbounded
	}
	return 0, false
}

// compiledPattern is a pattern compiled once per validation call.
type compiledPattern struct {
	re        *regexp2.Regexp
	err       error
	dangerous bool
}

// compilePattern compiles pattern with the engine's own timeout set past the
// match deadline, so an abandoned match stops on its own shortly after.
func compilePattern(pattern string, timeout time.Duration) *compiledPattern {
	cp := &compiledPattern{dangerous: IsPatternPotentiallyDangerous(pattern)}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		cp.err = err
		return cp
	}
	re.MatchTimeout = 2 * timeout
	cp.re = re
	return cp
}

// matchResult is what a match goroutine reports.
type matchResult struct {
	matched bool
	err     error
}

// runWithDeadline runs fn on its own goroutine and waits at most timeout for
// it. On timeout the goroutine is abandoned and its eventual result dropped.
// The returned outcome is one of the observability.Regex* constants.
func runWithDeadline(ctx context.Context, timeout time.Duration, fn func() (bool, error)) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan matchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- matchResult{err: fmt.Errorf("%w: %v", errMatchPanic, r)}
			}
		}()
		matched, err := fn()
		done <- matchResult{matched: matched, err: err}
	}()

	select {
	case r := <-done:
		switch {
		case r.err != nil && ctx.Err() != nil:
			return false, observability.RegexTimeout
		case r.err != nil:
			return false, observability.RegexError
		case r.matched:
			return true, observability.RegexMatch
		default:
			return false, observability.RegexNoMatch
		}
	case <-ctx.Done():
		return false, observability.RegexTimeout
	}
}
