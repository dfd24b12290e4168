// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestFoldingIdentities(t *testing.T) {
	x := ExprID("x")

	tests := []struct {
		name string
		in   Expr
		out  string
	}{
		{"x plus zero", Add(x, ExprInt(0)), "x"},
		{"zero plus x", Add(ExprInt(0), x), "x"},
		{"x minus zero", Sub(x, ExprInt(0)), "x"},
		{"zero minus x", Sub(ExprInt(0), x), "-x"},
		{"x times one", Mul(x, ExprInt(1)), "x"},
		{"one times x", Mul(ExprInt(1), x), "x"},
		{"x times minus one", Mul(x, ExprInt(-1)), "-x"},
		{"minus one times x", Mul(ExprInt(-1), x), "-x"},
		{"x times zero", Mul(x, ExprInt(0)), "0"},
		{"zero times x", Mul(ExprInt(0), x), "0"},
		{"negate twice", Neg(Neg(x)), "x"},
		{"abs of abs", Abs(Abs(x)), "abs(x)"},
		{"pow one", Pow(x, ExprInt(1)), "x"},
		{"zero pow x", Pow(ExprInt(0), x), "0"},
		{"one pow x", Pow(ExprInt(1), x), "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.String(); got != tt.out {
				t.Errorf("got %q, want %q", got, tt.out)
			}
		})
	}
}

func TestFoldingDivision(t *testing.T) {
	x := ExprID("x")

	if _, err := Div(x, ExprInt(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("x/0 should fail with ErrDivisionByZero, got %v", err)
	}
	got, err := Div(x, ExprInt(1))
	if err != nil {
		t.Fatalf("x/1 failed: %v", err)
	}
	if got.String() != "x" {
		t.Errorf("x/1 got %q, want x", got)
	}
	got, err = Div(x, ExprInt(-1))
	if err != nil {
		t.Fatalf("x/-1 failed: %v", err)
	}
	if got.String() != "-x" {
		t.Errorf("x/-1 got %q, want -x", got)
	}
	// A symbolic zero divisor is not detected.
	if _, err := Div(ExprInt(1), Sub(x, x)); err != nil {
		// x - x folds only for constants; the symbolic tree passes.
		t.Errorf("symbolic divisor should not raise, got %v", err)
	}
}

func TestFoldingConstants(t *testing.T) {
	tests := []struct {
		name string
		in   Expr
		want float64
	}{
		{"ints add", Add(ExprInt(2), ExprInt(3)), 5},
		{"floats add", Add(ExprFloat(1.5), ExprFloat(2.5)), 4},
		{"sub", Sub(ExprInt(2), ExprInt(5)), -3},
		{"mul", Mul(ExprInt(4), ExprFloat(0.5)), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.in.IsConstant() {
				t.Fatalf("%s did not fold to a constant", tt.in)
			}
			got, ok := tt.in.Float()
			if !ok || got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMixedIntFloatPromotesToInt(t *testing.T) {
	e := Add(ExprInt(1), ExprFloat(2))
	if e.DataType() != DataInt {
		t.Errorf("int+float data type got %s, want int", e.DataType())
	}
}

func TestStringMixStaysSymbolic(t *testing.T) {
	e := Add(ExprStr(`"a"`), ExprInt(1))
	if e.IsConstant() {
		t.Errorf("string+int should stay symbolic, got constant %s", e)
	}
}

func TestTrigInverseCancellation(t *testing.T) {
	u := ExprID("u")
	asinU := Expr{node: &UnaryOp{Op: "asin", V: u.node}}
	got, err := UnaryFold("sin", math.Sin, asinU)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "u" {
		t.Errorf("sin(asin(u)) got %q, want u", got)
	}

	acosU := Expr{node: &UnaryOp{Op: "acos", V: u.node}}
	got, err = UnaryFold("cos", math.Cos, acosU)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "u" {
		t.Errorf("cos(acos(u)) got %q, want u", got)
	}
}

func TestAtan2SinCosCancellation(t *testing.T) {
	u := ExprID("u")
	sinU := Expr{node: &UnaryOp{Op: "sin", V: u.node}}
	cosU := Expr{node: &UnaryOp{Op: "cos", V: u.node}}
	got, err := BinaryFold("atan2", math.Atan2, sinU, cosU)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "u" {
		t.Errorf("atan2(sin u, cos u) got %q, want u", got)
	}
}

func TestUnaryFoldStringFails(t *testing.T) {
	if _, err := UnaryFold("cos", math.Cos, ExprStr(`"1"`)); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("cos of string literal should fail with ErrTypeMismatch, got %v", err)
	}
}

func TestStringValueNeverEqualsNumber(t *testing.T) {
	// A parameter carrying a stringified number must not compare equal
	// to the numeric literal.
	stringMinusOne := ExprStr("-1")
	if isLiteral(stringMinusOne, -1) {
		t.Error(`str "-1" compared equal to -1`)
	}
	if got := Mul(stringMinusOne, ExprID("x")); got.String() == "-x" {
		t.Error(`str "-1" * x folded as numeric -1`)
	}
}

func TestConstValueErrors(t *testing.T) {
	if _, err := Add(ExprID("x"), ExprInt(1)).ConstValue(); !errors.Is(err, ErrNotConstant) {
		t.Errorf("ConstValue on a tree should fail with ErrNotConstant, got %v", err)
	}
	if _, err := ExprID("x").ConstValue(); !errors.Is(err, ErrNotConstant) {
		t.Errorf("ConstValue on an identifier should fail with ErrNotConstant, got %v", err)
	}
	v, err := ExprInt(7).ConstValue()
	if err != nil || v.(int64) != 7 {
		t.Errorf("ConstValue(7) got (%v, %v)", v, err)
	}
}

func TestConstantImpliesNoIds(t *testing.T) {
	exprs := []Expr{
		Add(ExprInt(1), ExprInt(2)),
		Mul(ExprFloat(3), ExprFloat(4)),
		ExprStr(`"label"`),
	}
	for _, e := range exprs {
		if !e.IsConstant() {
			t.Fatalf("%s should be constant", e)
		}
		if len(e.Ids()) != 0 {
			t.Errorf("constant %s has free identifiers %v", e, e.Ids())
		}
	}
}

func TestVerifyParametersPromotion(t *testing.T) {
	e := Add(ExprID("width"), Mul(ExprID("other"), ExprInt(2)))
	e.VerifyParameters([]string{"width"})
	promoted := 0
	e.walkValues(func(v *Value) {
		if v.IsParameter() {
			promoted++
			if v.payload.(string) != "width" {
				t.Errorf("promoted the wrong identifier %v", v.payload)
			}
		}
	})
	if promoted != 1 {
		t.Errorf("promoted %d identifiers, want 1", promoted)
	}
	// String literals and function names survive.
	s := ExprStr(`"width"`)
	s.VerifyParameters([]string{"width"})
	if s.IsParameter() {
		t.Error("string literal was promoted to parameter")
	}
}

func TestExprJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Expr
	}{
		{"int", ExprInt(1)},
		{"float", ExprFloat(1.25)},
		{"string", ExprStr(`"some string"`)},
		{"identifier", ExprID("speed")},
		{"binary", Add(ExprID("a"), ExprInt(2))},
		{"unary", Neg(ExprID("a"))},
		{"trinary", Trinary(ExprID("a"), ExprInt(1), ExprInt(2))},
		{"call", Call("sin", []Expr{ExprID("theta")})},
		{"list", NewExpr(ArrayValue([]Expr{ExprInt(1), ExprInt(2)}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			var out Expr
			if err := json.Unmarshal(raw, &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !tt.in.Equal(out) {
				t.Errorf("round trip mismatch: %s != %s", tt.in, out)
			}
			if tt.in.String() != out.String() {
				t.Errorf("printed forms differ: %q != %q", tt.in, out)
			}
		})
	}
}

func TestExprPrinting(t *testing.T) {
	tests := []struct {
		name   string
		in     Expr
		c      string
		python string
	}{
		{"and", Binary("&&", ExprID("a"), ExprID("b")), "a && b", "a and b"},
		{"or", Binary("||", ExprID("a"), ExprID("b")), "a || b", "a or b"},
		{"pow", Pow(ExprID("a"), ExprInt(2)), "a^2", "a**2"},
		{"call", Call("atan2", []Expr{ExprID("y"), ExprID("x")}), "atan2(y, x)", "atan2(y, x)"},
		{"index", Binary("__getitem__", ExprID("arr"), ExprInt(3)), "arr[3]", "arr[3]"},
		{"add parens", Add(ExprID("a"), ExprID("b")), "(a + b)", "(a + b)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.String(); got != tt.c {
				t.Errorf("C style got %q, want %q", got, tt.c)
			}
			if got := tt.in.PyString(); got != tt.python {
				t.Errorf("python style got %q, want %q", got, tt.python)
			}
		})
	}
}
