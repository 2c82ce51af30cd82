package status

import (
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindString Kind = iota
	KindInt
	KindFloat
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Value is a status field value: exactly one of an integer, a float or a string.
// The zero Value is the empty string.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a floating point Value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String returns a string Value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Int returns the integer held by v.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the float held by v.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Str returns the string held by v.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Float64 converts v to a float. Strings convert when they parse as a number.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}

// String renders v as text. Floats always carry a decimal point or exponent
// so they read back as floats.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f, 'g')
	default:
		return v.s
	}
}

// Equal reports whether v and o hold the same variant and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	default:
		return v.s == o.s
	}
}

func formatFloat(f float64, fmtc byte) string {
	s := strconv.FormatFloat(f, fmtc, -1, 64)
	if !strings.ContainsAny(s, ".eENI") {
		s += ".0"
	}
	return s
}

// Coerce converts a textual token into a Value: an all-digit token becomes an
// Int, anything else that parses as a finite number becomes a Float, and
// everything else stays a String.
func Coerce(token string) Value {
	t := strings.TrimSpace(token)
	if isDigits(t) {
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return Int(n)
		}
	}
	if t != "" && !strings.ContainsAny(t, "nNiI") {
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return Float(f)
		}
	}
	return String(t)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
