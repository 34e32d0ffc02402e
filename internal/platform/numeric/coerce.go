// Package numeric normalises loosely-typed numeric input arriving from the
// storefront UI or the document store before the pricing engine performs any
// arithmetic on it.
package numeric

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Coerce converts an arbitrary value into a float64. The second return value
// reports whether a definite number was present: nil, empty strings, and
// values that do not parse all coerce to absent. Strings are stripped of
// every character that is not a digit, '.', '+', or '-' before parsing, so
// currency symbols and thousand separators are tolerated.
func Coerce(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		return coerceString(v.String())
	case string:
		return coerceString(v)
	case *float64:
		if v == nil {
			return 0, false
		}
		return finite(*v)
	case *int:
		if v == nil {
			return 0, false
		}
		return float64(*v), true
	case *string:
		if v == nil {
			return 0, false
		}
		return coerceString(*v)
	default:
		return 0, false
	}
}

// CoerceOr converts value like Coerce but substitutes fallback when the value
// is absent or unparseable.
func CoerceOr(value any, fallback float64) float64 {
	if n, ok := Coerce(value); ok {
		return n
	}
	return fallback
}

func coerceString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '+' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return finite(n)
}

func finite(n float64) (float64, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
