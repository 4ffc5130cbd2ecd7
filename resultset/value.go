// Package resultset holds the in-memory shape of a query result: ordered rows
// of scalar cells.
package resultset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which member of a Value is set.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a single cell of a result row. The zero Value is null.
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// NewString returns a string value.
func NewString(s string) Value { return Value{kind: KindString, s: s} }

// NewNumber returns a numeric value.
func NewNumber(n float64) Value { return Value{kind: KindNumber, n: n} }

// NewBool returns a boolean value.
func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }

// FromInterface converts a Go value, typically one scanned from database/sql
// or decoded by encoding/json, into a Value. Types without a scalar mapping
// are rendered with fmt.
func FromInterface(x any) Value {
	switch v := x.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case string:
		return NewString(v)
	case []byte:
		return NewString(string(v))
	case bool:
		return NewBool(v)
	case float64:
		return NewNumber(v)
	case float32:
		return NewNumber(float64(v))
	case int:
		return NewNumber(float64(v))
	case int8:
		return NewNumber(float64(v))
	case int16:
		return NewNumber(float64(v))
	case int32:
		return NewNumber(float64(v))
	case int64:
		return NewNumber(float64(v))
	case uint:
		return NewNumber(float64(v))
	case uint8:
		return NewNumber(float64(v))
	case uint16:
		return NewNumber(float64(v))
	case uint32:
		return NewNumber(float64(v))
	case uint64:
		return NewNumber(float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return NewNumber(f)
		}
		return NewString(v.String())
	case time.Time:
		return NewString(v.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return NewString(v.String())
	default:
		return NewString(fmt.Sprintf("%v", v))
	}
}

// Kind reports which member is set.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string member.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Num returns the numeric member.
func (v Value) Num() (float64, bool) { return v.n, v.kind == KindNumber }

// Bool returns the boolean member.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns v as nil, string, float64 or bool.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Text is the display form used by filtering, searching and CSV export.
// Null renders as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return FormatNumber(v.n)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (v Value) String() string { return v.Text() }

// FormatNumber renders n the way a browser's String(number) does: integers
// without a fraction, shortest round-trip digits, and exponent notation
// outside [1e-6, 1e21).
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}

	abs := math.Abs(n)
	if abs < 1e21 && abs >= 1e-6 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}

	s := strconv.FormatFloat(n, 'e', -1, 64)
	mantissa, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}

// MarshalJSON encodes v as a JSON scalar. Non-finite numbers become null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.n)
	case KindBool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar. Objects and arrays are kept as their
// compact JSON text.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	*v = fromJSON(raw)
	return nil
}

// fromJSON converts a value produced by a json.Decoder with UseNumber.
func fromJSON(raw any) Value {
	switch x := raw.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return NewString(fmt.Sprintf("%v", x))
		}
		return NewString(string(b))
	default:
		return FromInterface(x)
	}
}
