package bytecode

import (
	"math"
	"testing"
)

func TestValueZeroIsNull(t *testing.T) {
	var v Value
	if !v.IsNull() {
		t.Errorf("zero Value kind = %s, want null", v.Kind())
	}
	if v.String() != "null" {
		t.Errorf("String() = %q, want %q", v.String(), "null")
	}
}

func TestValueArithmeticDoubles(t *testing.T) {
	a, b := Double(7), Double(2)

	tests := []struct {
		name string
		got  Value
		want float64
	}{
		{"add", a.Add(b), 9},
		{"sub", a.Sub(b), 5},
		{"mul", a.Mul(b), 14},
		{"div", a.Div(b), 3.5},
	}
	for _, tt := range tests {
		f, ok := tt.got.AsDouble()
		if !ok || f != tt.want {
			t.Errorf("%s = %#v, want Double(%v)", tt.name, tt.got, tt.want)
		}
	}
}

func TestValueDivideByZeroIsNull(t *testing.T) {
	if got := Double(1).Div(Double(0)); !got.IsNull() {
		t.Errorf("1 / 0 = %#v, want Null", got)
	}
	if got := Double(1).Div(Double(math.Copysign(0, -1))); !got.IsNull() {
		t.Errorf("1 / -0 = %#v, want Null", got)
	}
	if got := Double(0).Div(Double(1e-300)); !got.Equal(Double(0)) {
		t.Errorf("0 / tiny = %#v, want Double(0)", got)
	}
}

func TestValueKindMismatchIsNull(t *testing.T) {
	pairs := [][2]Value{
		{Double(1), String("x")},
		{String("x"), Double(1)},
		{Double(1), Null},
		{Null, String("x")},
	}
	for _, p := range pairs {
		for name, got := range map[string]Value{
			"add": p[0].Add(p[1]),
			"sub": p[0].Sub(p[1]),
			"mul": p[0].Mul(p[1]),
			"div": p[0].Div(p[1]),
		} {
			if !got.IsNull() {
				t.Errorf("%#v %s %#v = %#v, want Null", p[0], name, p[1], got)
			}
		}
	}
}

func TestValueStrings(t *testing.T) {
	if got := String("foo").Add(String("bar")); !got.Equal(String("foobar")) {
		t.Errorf("concat = %#v, want String(\"foobar\")", got)
	}
	if got := String("foo").Sub(String("o")); !got.IsNull() {
		t.Errorf("string sub = %#v, want Null", got)
	}
	if got := Null.Add(Null); !got.IsNull() {
		t.Errorf("null + null = %#v, want Null", got)
	}
}

func TestValueNegate(t *testing.T) {
	v, ok := Double(5).Negate()
	if !ok || !v.Equal(Double(-5)) {
		t.Errorf("Negate(5) = %#v, %v", v, ok)
	}
	back, _ := v.Negate()
	if !back.Equal(Double(5)) {
		t.Errorf("double negation = %#v, want Double(5)", back)
	}
	if _, ok := String("x").Negate(); ok {
		t.Error("Negate on string should fail")
	}
	if _, ok := Null.Negate(); ok {
		t.Error("Negate on null should fail")
	}
}

func TestValueFormatting(t *testing.T) {
	tests := []struct {
		v         Value
		str, gstr string
	}{
		{Double(3), "3", "Double(3)"},
		{Double(-0.25), "-0.25", "Double(-0.25)"},
		{String("hi"), "hi", `String("hi")`},
		{Null, "null", "Null"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if got := tt.v.GoString(); got != tt.gstr {
			t.Errorf("GoString() = %q, want %q", got, tt.gstr)
		}
	}
}

func TestValueEqual(t *testing.T) {
	if !Double(1).Equal(Double(1)) {
		t.Error("Double(1) should equal Double(1)")
	}
	if Double(1).Equal(String("1")) {
		t.Error("Double(1) should not equal String(\"1\")")
	}
	if Double(math.NaN()).Equal(Double(math.NaN())) {
		t.Error("NaN should not equal NaN")
	}
	if !Null.Equal(Value{}) {
		t.Error("Null should equal the zero Value")
	}
}
