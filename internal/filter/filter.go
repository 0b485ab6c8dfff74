// Package filter evaluates per-subscription payload predicates.
//
// A subscription's filters map dotted payload paths to expected values. Every
// entry must hold for the event to pass (conjunction); an empty filter set
// always passes. When the expected value is a collection the payload value
// must be a member, otherwise plain equality is required. There are no
// comparison operators.
package filter

import (
	"reflect"
	"strings"
)

// Passes evaluates filters against the event payload. It is a pure function
// of its inputs; tenant and event-type scoping happen in the matcher, not here.
func Passes(filters map[string]any, payload map[string]any) bool {
	for path, want := range filters {
		got, ok := lookupPath(payload, path)
		if !ok {
			return false
		}
		if !matches(want, got) {
			return false
		}
	}
	return true
}

// lookupPath resolves a dotted path like "order.total" against a nested
// document. A missing segment resolves to an absent value.
func lookupPath(doc map[string]any, path string) (any, bool) {
	cur := any(doc)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func matches(want, got any) bool {
	// Collection filter value: membership test.
	if set, ok := asSlice(want); ok {
		for _, w := range set {
			if equal(w, got) {
				return true
			}
		}
		return false
	}
	return equal(want, got)
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}

// equal compares a configured filter value with a payload value. JSON numbers
// decode as float64 but filters may be configured with int literals, so
// numeric values compare by magnitude.
func equal(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
