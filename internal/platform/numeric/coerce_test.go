package numeric

import (
	"encoding/json"
	"math"
	"testing"
)

func TestCoerce_Numbers(t *testing.T) {
	if n, ok := Coerce(12.5); !ok || n != 12.5 {
		t.Fatalf("expected 12.5 got %v ok=%v", n, ok)
	}
	if n, ok := Coerce(42); !ok || n != 42 {
		t.Fatalf("expected 42 got %v ok=%v", n, ok)
	}
	if n, ok := Coerce(int64(-3)); !ok || n != -3 {
		t.Fatalf("expected -3 got %v ok=%v", n, ok)
	}
	if n, ok := Coerce(json.Number("99.99")); !ok || n != 99.99 {
		t.Fatalf("expected 99.99 got %v ok=%v", n, ok)
	}
}

func TestCoerce_Strings(t *testing.T) {
	cases := map[string]float64{
		"100":       100,
		" 45.50 ":   45.5,
		"$1,250.75": 1250.75,
		"-12":       -12,
		"+8":        8,
		"10%":       10,
	}
	for input, want := range cases {
		n, ok := Coerce(input)
		if !ok {
			t.Fatalf("Coerce(%q) reported absent", input)
		}
		if n != want {
			t.Fatalf("Coerce(%q) = %v, want %v", input, n, want)
		}
	}
}

func TestCoerce_Absent(t *testing.T) {
	absent := []any{nil, "", "   ", "abc", "USD", (*float64)(nil), (*string)(nil), struct{}{}, math.NaN(), math.Inf(1)}
	for _, input := range absent {
		if n, ok := Coerce(input); ok {
			t.Fatalf("Coerce(%#v) = %v, expected absent", input, n)
		}
	}
}

func TestCoerceOr_Fallback(t *testing.T) {
	if got := CoerceOr(nil, 0); got != 0 {
		t.Fatalf("expected fallback 0 got %v", got)
	}
	if got := CoerceOr("not a number", 7); got != 7 {
		t.Fatalf("expected fallback 7 got %v", got)
	}
	if got := CoerceOr("15", 7); got != 15 {
		t.Fatalf("expected parsed 15 got %v", got)
	}
}
