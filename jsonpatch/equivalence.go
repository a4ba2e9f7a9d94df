// Package jsonpatch implements C4: numerically-tolerant JSON
// equivalence plus an RFC-6902-shaped patch application and generation
// extended with safeReplace and removeIfExists. JSON values are
// represented the way encoding/json decodes them by default:
// map[string]any, []any, string, float64, bool, and nil.
//
// The safeReplace/removeIfExists extensions and the numeric-tolerant
// test/safeReplace comparisons need pointer navigation finer-grained
// than a standard RFC 6902 library exposes, so this package implements
// pointer walking directly; see DESIGN.md for the library trade-off.
package jsonpatch

// Equivalent reports whether a and b are the same JSON value: object
// key order is irrelevant, and numeric nodes compare by numeric value
// regardless of integer/decimal representation.
func Equivalent(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !Equivalent(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equivalent(av[i], bv[i]) {
				return false
			}
		}
		return true
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		an, aok := toFloat(a)
		bn, bok := toFloat(b)
		if aok && bok {
			return an == bn
		}
		return false
	}
}

// toFloat converts any of the numeric representations a JSON decoder
// (or a caller building values by hand) might produce into a float64
// for numeric-tolerant comparison.
func toFloat(v any) (float64, bool) {
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
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// isContainer reports whether v is a JSON object or array.
func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// deepCopy clones a decoded JSON value so that a `copy` operation never
// aliases the source subtree with the destination.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return t
	}
}
