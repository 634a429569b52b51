package bytecode

import (
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull   Kind = 0
	KindDouble Kind = 1
	KindString Kind = 2
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is a runtime value: a double, a string, or null.
// The zero Value is Null. Values are immutable and copied freely.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Null is the null value.
var Null = Value{}

// Double wraps a float64.
func Double(f float64) Value {
	return Value{kind: KindDouble, num: f}
}

// String wraps a string.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsDouble reports whether v holds a double.
func (v Value) IsDouble() bool { return v.kind == KindDouble }

// IsString reports whether v holds a string.
func (v Value) IsString() bool { return v.kind == KindString }

// AsDouble returns the float64 payload. ok is false for other kinds.
func (v Value) AsDouble() (f float64, ok bool) {
	return v.num, v.kind == KindDouble
}

// AsString returns the string payload. ok is false for other kinds.
func (v Value) AsString() (s string, ok bool) {
	return v.str, v.kind == KindString
}

// SameKind reports whether v and other hold the same variant.
func (v Value) SameKind(other Value) bool {
	return v.kind == other.kind
}

// Equal reports whether two values hold the same variant and payload.
// Doubles compare with ==, so NaN is never equal to itself.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindDouble:
		return v.num == other.num
	case KindString:
		return v.str == other.str
	default:
		return true
	}
}

// String renders the value the way the disassembler and RETURN print it.
func (v Value) String() string {
	switch v.kind {
	case KindDouble:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return v.str
	default:
		return "null"
	}
}

// GoString renders the value with its kind, for %#v and test failures.
func (v Value) GoString() string {
	switch v.kind {
	case KindDouble:
		return "Double(" + v.String() + ")"
	case KindString:
		return "String(" + strconv.Quote(v.str) + ")"
	default:
		return "Null"
	}
}

// ---------------------------------------------------------------------------
// Arithmetic
//
// Operators are only defined between two values of the same kind. A kind
// mismatch, or division by exactly zero, yields Null instead of an error.
// ---------------------------------------------------------------------------

// Add returns v + right. Strings concatenate.
func (v Value) Add(right Value) Value {
	if !v.SameKind(right) {
		return Null
	}
	switch v.kind {
	case KindDouble:
		return Double(v.num + right.num)
	case KindString:
		return String(v.str + right.str)
	default:
		return Null
	}
}

// Sub returns v - right.
func (v Value) Sub(right Value) Value {
	if !v.SameKind(right) {
		return Null
	}
	switch v.kind {
	case KindDouble:
		return Double(v.num - right.num)
	default:
		return Null
	}
}

// Mul returns v * right.
func (v Value) Mul(right Value) Value {
	if !v.SameKind(right) {
		return Null
	}
	switch v.kind {
	case KindDouble:
		return Double(v.num * right.num)
	default:
		return Null
	}
}

// Div returns v / right, or Null when right is exactly zero.
func (v Value) Div(right Value) Value {
	if !v.SameKind(right) {
		return Null
	}
	switch v.kind {
	case KindDouble:
		if right.num == 0 {
			return Null
		}
		return Double(v.num / right.num)
	default:
		return Null
	}
}

// Negate returns -v. ok is false when v is not a double.
func (v Value) Negate() (Value, bool) {
	if v.kind != KindDouble {
		return v, false
	}
	return Double(-v.num), true
}
