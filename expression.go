// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Errors
var (
	// ErrDivisionByZero is returned when folding a division whose right
	// operand is a literal zero. Division by a symbolic zero is not detected.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrTypeMismatch is returned when a string literal reaches a numeric
	// fold.
	ErrTypeMismatch = errors.New("string value in numeric expression")

	// ErrNotConstant is returned when the concrete value of a non-constant
	// expression tree is requested.
	ErrNotConstant = errors.New("expression is not constant")
)

// DataType is the scalar type carried by an expression node.
type DataType uint8

// Expression data types, ordered by the promotion lattice.
const (
	DataUndefined DataType = iota
	DataFloat
	DataInt
	DataStr
)

func (d DataType) String() string {
	switch d {
	case DataFloat:
		return "float"
	case DataInt:
		return "int"
	case DataStr:
		return "str"
	}
	return "undefined"
}

// CType returns the C type used for instrument parameters of this type.
func (d DataType) CType() string {
	switch d {
	case DataFloat:
		return "double"
	case DataInt:
		return "int"
	case DataStr:
		return "char *"
	}
	return ""
}

// Compatible reports whether two data types may be mixed in an assignment.
func (d DataType) Compatible(o DataType) bool {
	if d == DataUndefined || o == DataUndefined || d == o {
		return true
	}
	if (d == DataFloat && o == DataInt) || (d == DataInt && o == DataFloat) {
		return true
	}
	return false
}

// Promote combines two data types under a binary operation. Undefined acts
// as identity, mixed int and float promote to int (a legacy rule kept for
// generated-code compatibility), and anything mixed with str becomes str.
func (d DataType) Promote(o DataType) DataType {
	if d == DataUndefined {
		return o
	}
	if o == DataUndefined {
		return d
	}
	if d == o {
		return d
	}
	if (d == DataFloat && o == DataInt) || (d == DataInt && o == DataFloat) {
		return DataInt
	}
	return DataStr
}

// ObjectType classifies what an expression Value stands for.
type ObjectType uint8

// Expression object types.
const (
	ObjectValue ObjectType = iota
	ObjectInitializerList
	ObjectIdentifier
	ObjectFunction
	ObjectParameter
)

func (o ObjectType) String() string {
	switch o {
	case ObjectInitializerList:
		return "initializer_list"
	case ObjectIdentifier:
		return "identifier"
	case ObjectFunction:
		return "function"
	case ObjectParameter:
		return "parameter"
	}
	return "value"
}

// ShapeType distinguishes scalar from vector valued expressions.
type ShapeType uint8

// Expression shape types.
const (
	ShapeScalar ShapeType = iota
	ShapeVector
)

func (s ShapeType) String() string {
	if s == ShapeVector {
		return "vector"
	}
	return "scalar"
}

// CSuffix returns the pointer suffix used when declaring this shape in C.
func (s ShapeType) CSuffix() string {
	if s == ShapeVector {
		return "*"
	}
	return ""
}

// OpStyle selects the rendering dialect for operators.
type OpStyle uint8

// Operator rendering styles. C is the default; Python exists for reporting.
const (
	StyleC OpStyle = iota
	StylePython
)

// Node is one vertex of a symbolic expression tree.
type Node interface {
	// NodeDataType returns the scalar type carried by the node.
	NodeDataType() DataType
	// render writes the node in the requested style.
	render(style OpStyle) string
	// equal performs a structural comparison.
	equal(other Node) bool
	// copyNode returns a deep copy.
	copyNode() Node
}

// Value is a leaf expression: a literal, identifier, function name,
// instrument parameter, or initializer list.
//
// The payload is one of nil (no value), int64, float64, string, or []Expr
// for initializer lists. A Value whose payload is a string while its data
// type is not Str is a free identifier.
type Value struct {
	payload interface{}
	data    DataType
	object  ObjectType
	shape   ShapeType
}

// IntValue returns an int-typed literal Value.
func IntValue(v int64) *Value { return &Value{payload: v, data: DataInt} }

// FloatValue returns a float-typed literal Value.
func FloatValue(v float64) *Value { return &Value{payload: v, data: DataFloat} }

// StrValue returns a string literal Value.
func StrValue(v string) *Value { return &Value{payload: v, data: DataStr} }

// IDValue returns an identifier Value with undefined data type.
func IDValue(name string) *Value {
	return &Value{payload: name, object: ObjectIdentifier}
}

// FuncValue returns a function-name Value.
func FuncValue(name string) *Value {
	return &Value{payload: name, object: ObjectFunction}
}

// ArrayValue returns a vector-shaped initializer-list Value.
func ArrayValue(items []Expr) *Value {
	return &Value{payload: items, object: ObjectInitializerList, shape: ShapeVector, data: DataFloat}
}

// EmptyValue returns a Value with the given data type and no payload, used
// for parameters declared without a default.
func EmptyValue(d DataType) *Value { return &Value{data: d} }

// Payload returns the raw payload.
func (v *Value) Payload() interface{} { return v.payload }

// NodeDataType implements Node.
func (v *Value) NodeDataType() DataType { return v.data }

// ObjectType returns the object classification of the value.
func (v *Value) ObjectType() ObjectType { return v.object }

// ShapeType returns the shape classification of the value.
func (v *Value) ShapeType() ShapeType { return v.shape }

// SetDataType overrides the data type, used when an instance parameter
// inherits the type of its component-definition default.
func (v *Value) SetDataType(d DataType) { v.data = d }

// SetShapeType overrides the shape type.
func (v *Value) SetShapeType(s ShapeType) { v.shape = s }

// SetObjectType overrides the object classification.
func (v *Value) SetObjectType(o ObjectType) { v.object = o }

// IsID reports whether the payload is a free identifier.
func (v *Value) IsID() bool {
	if v.data == DataStr {
		return false
	}
	_, ok := v.payload.(string)
	return ok
}

// IsParameter reports whether the value names an instrument parameter.
func (v *Value) IsParameter() bool { return v.object == ObjectParameter }

// IsStr reports whether the value is string typed.
func (v *Value) IsStr() bool { return v.data == DataStr }

// HasValue reports whether a payload is present.
func (v *Value) HasValue() bool { return v.payload != nil }

// IsZero reports whether the payload is the literal number zero.
func (v *Value) IsZero() bool {
	if v.IsID() {
		return false
	}
	return v.isNumber(0)
}

// isNumber compares the payload against a numeric literal. String-typed
// payloads never compare equal to a number, even when they hold digits.
func (v *Value) isNumber(n float64) bool {
	switch p := v.payload.(type) {
	case int64:
		return float64(p) == n
	case float64:
		return p == n
	}
	return false
}

func (v *Value) render(style OpStyle) string {
	switch p := v.payload.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(p, 10)
	case float64:
		return strconv.FormatFloat(p, 'g', -1, 64)
	case string:
		return p
	case []Expr:
		parts := make([]string, len(p))
		for i, e := range p {
			parts[i] = e.toString(style)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("%v", v.payload)
}

func (v *Value) equal(other Node) bool {
	o, ok := other.(*Value)
	if !ok {
		return false
	}
	if v.data != o.data || v.object != o.object || v.shape != o.shape {
		return false
	}
	va, aok := v.payload.([]Expr)
	vb, bok := o.payload.([]Expr)
	if aok != bok {
		return false
	}
	if aok {
		if len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !va[i].Equal(vb[i]) {
				return false
			}
		}
		return true
	}
	return payloadEqual(v.payload, o.payload)
}

func payloadEqual(a, b interface{}) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return af == bf
	}
	if aNum != bNum {
		return false
	}
	return a == b
}

func asFloat(p interface{}) (float64, bool) {
	switch v := p.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func (v *Value) copyNode() Node {
	c := *v
	if items, ok := v.payload.([]Expr); ok {
		dup := make([]Expr, len(items))
		for i, e := range items {
			dup[i] = e.Copy()
		}
		c.payload = dup
	}
	return &c
}

// UnaryOp applies a single-operand operator or named function.
type UnaryOp struct {
	Op string
	V  Node
}

// NodeDataType implements Node.
func (u *UnaryOp) NodeDataType() DataType { return u.V.NodeDataType() }

func (u *UnaryOp) render(style OpStyle) string {
	switch u.Op {
	case "__group__":
		return "(" + u.V.render(style) + ")"
	case "-", "+":
		return u.Op + u.V.render(style)
	case "__not__":
		if style == StylePython {
			return "not " + u.V.render(style)
		}
		return "!" + u.V.render(style)
	}
	return u.Op + "(" + u.V.render(style) + ")"
}

func (u *UnaryOp) equal(other Node) bool {
	o, ok := other.(*UnaryOp)
	return ok && u.Op == o.Op && u.V.equal(o.V)
}

func (u *UnaryOp) copyNode() Node { return &UnaryOp{Op: u.Op, V: u.V.copyNode()} }

// BinaryOp applies a two-operand operator, array access, struct access,
// or function call.
type BinaryOp struct {
	Op    string
	Left  Node
	Right Node
}

// NodeDataType implements Node.
func (b *BinaryOp) NodeDataType() DataType {
	return b.Left.NodeDataType().Promote(b.Right.NodeDataType())
}

func (b *BinaryOp) render(style OpStyle) string {
	l, r := b.Left.render(style), b.Right.render(style)
	switch b.Op {
	case "__call__":
		return l + "(" + r + ")"
	case "__getitem__":
		return l + "[" + r + "]"
	case "__struct_access__":
		return l + "." + r
	case "__pointer_access__":
		return l + "->" + r
	case "__pow__":
		if style == StylePython {
			return l + "**" + r
		}
		return l + "^" + r
	case "<", ">", "<=", ">=", "==", "!=", "%", "<<", ">>":
		return l + b.Op + r
	case "||":
		if style == StylePython {
			return l + " or " + r
		}
		return l + " || " + r
	case "&&":
		if style == StylePython {
			return l + " and " + r
		}
		return l + " && " + r
	case "+", "-":
		return "(" + l + " " + b.Op + " " + r + ")"
	case "*", "/":
		return l + " " + b.Op + " " + r
	}
	return b.Op + "(" + l + ", " + r + ")"
}

func (b *BinaryOp) equal(other Node) bool {
	o, ok := other.(*BinaryOp)
	return ok && b.Op == o.Op && b.Left.equal(o.Left) && b.Right.equal(o.Right)
}

func (b *BinaryOp) copyNode() Node {
	return &BinaryOp{Op: b.Op, Left: b.Left.copyNode(), Right: b.Right.copyNode()}
}

// TrinaryOp is the C conditional operator.
type TrinaryOp struct {
	Op    string
	Test  Node
	True  Node
	False Node
}

// NodeDataType implements Node.
func (t *TrinaryOp) NodeDataType() DataType {
	return t.True.NodeDataType().Promote(t.False.NodeDataType())
}

func (t *TrinaryOp) render(style OpStyle) string {
	if style == StylePython {
		return t.True.render(style) + " if " + t.Test.render(style) + " else " + t.False.render(style)
	}
	return t.Test.render(style) + " ? " + t.True.render(style) + " : " + t.False.render(style)
}

func (t *TrinaryOp) equal(other Node) bool {
	o, ok := other.(*TrinaryOp)
	return ok && t.Op == o.Op && t.Test.equal(o.Test) && t.True.equal(o.True) && t.False.equal(o.False)
}

func (t *TrinaryOp) copyNode() Node {
	return &TrinaryOp{Op: t.Op, Test: t.Test.copyNode(), True: t.True.copyNode(), False: t.False.copyNode()}
}

// Expr is a symbolic arithmetic expression.
type Expr struct {
	node Node
}

// NewExpr wraps a Node.
func NewExpr(n Node) Expr { return Expr{node: n} }

// ExprInt returns an integer literal expression.
func ExprInt(v int64) Expr { return Expr{node: IntValue(v)} }

// ExprFloat returns a float literal expression.
func ExprFloat(v float64) Expr { return Expr{node: FloatValue(v)} }

// ExprStr returns a string literal expression.
func ExprStr(v string) Expr { return Expr{node: StrValue(v)} }

// ExprID returns an identifier expression.
func ExprID(name string) Expr { return Expr{node: IDValue(name)} }

// ExprEmpty returns a typed expression with no value.
func ExprEmpty(d DataType) Expr { return Expr{node: EmptyValue(d)} }

// Node returns the wrapped node, nil for the zero Expr.
func (e Expr) Node() Node { return e.node }

// IsNil reports whether no node is wrapped.
func (e Expr) IsNil() bool { return e.node == nil }

// DataType returns the data type of the wrapped node.
func (e Expr) DataType() DataType {
	if e.node == nil {
		return DataUndefined
	}
	return e.node.NodeDataType()
}

// value returns the wrapped node as a *Value when it is one.
func (e Expr) value() (*Value, bool) {
	v, ok := e.node.(*Value)
	return v, ok
}

// IsConstant reports whether the expression is a Value that is not a free
// identifier.
func (e Expr) IsConstant() bool {
	v, ok := e.value()
	return ok && !v.IsID()
}

// HasValue reports whether the expression is constant with a payload.
func (e Expr) HasValue() bool {
	v, ok := e.value()
	return ok && !v.IsID() && v.HasValue()
}

// IsID reports whether the expression is a bare identifier.
func (e Expr) IsID() bool {
	v, ok := e.value()
	return ok && v.IsID()
}

// IsParameter reports whether the expression is an instrument parameter
// reference.
func (e Expr) IsParameter() bool {
	v, ok := e.value()
	return ok && v.IsParameter()
}

// IsStr reports whether the expression is string typed.
func (e Expr) IsStr() bool { return e.DataType() == DataStr }

// IsZero reports whether the expression is the literal number zero.
func (e Expr) IsZero() bool {
	v, ok := e.value()
	return ok && v.IsZero()
}

// IsOp reports whether the expression is an operator node.
func (e Expr) IsOp() bool {
	if e.node == nil {
		return false
	}
	_, ok := e.node.(*Value)
	return !ok
}

// IsVector reports whether the expression is vector shaped.
func (e Expr) IsVector() bool {
	switch n := e.node.(type) {
	case *Value:
		return n.shape == ShapeVector
	case *UnaryOp:
		return Expr{node: n.V}.IsVector()
	case *BinaryOp:
		return Expr{node: n.Left}.IsVector() || Expr{node: n.Right}.IsVector()
	}
	return false
}

// ConstValue returns the payload of a constant expression.
func (e Expr) ConstValue() (interface{}, error) {
	v, ok := e.value()
	if !ok || v.IsID() {
		return nil, ErrNotConstant
	}
	return v.payload, nil
}

// Float returns the payload as a float64 when the expression is a constant
// number.
func (e Expr) Float() (float64, bool) {
	v, ok := e.value()
	if !ok || v.IsID() {
		return 0, false
	}
	return asFloat(v.payload)
}

// Equal performs a structural comparison.
func (e Expr) Equal(o Expr) bool {
	if e.node == nil || o.node == nil {
		return e.node == nil && o.node == nil
	}
	return e.node.equal(o.node)
}

// Copy returns a deep copy.
func (e Expr) Copy() Expr {
	if e.node == nil {
		return Expr{}
	}
	return Expr{node: e.node.copyNode()}
}

func (e Expr) toString(style OpStyle) string {
	if e.node == nil {
		return ""
	}
	return e.node.render(style)
}

// String renders the expression in C style.
func (e Expr) String() string { return e.toString(StyleC) }

// PyString renders the expression in Python style, used for reporting.
func (e Expr) PyString() string { return e.toString(StylePython) }

// Ids returns the set of free identifiers in the expression.
func (e Expr) Ids() map[string]struct{} {
	ids := make(map[string]struct{})
	e.walkValues(func(v *Value) {
		if v.IsID() && v.object != ObjectFunction {
			ids[v.payload.(string)] = struct{}{}
		}
	})
	return ids
}

// Contains reports whether the named identifier appears in the expression.
func (e Expr) Contains(name string) bool {
	_, ok := e.Ids()[name]
	return ok
}

func (e Expr) walkValues(fn func(*Value)) {
	var walk func(Node)
	walk = func(n Node) {
		switch t := n.(type) {
		case *Value:
			fn(t)
			if items, ok := t.payload.([]Expr); ok {
				for _, item := range items {
					if item.node != nil {
						walk(item.node)
					}
				}
			}
		case *UnaryOp:
			walk(t.V)
		case *BinaryOp:
			walk(t.Left)
			walk(t.Right)
		case *TrinaryOp:
			walk(t.Test)
			walk(t.True)
			walk(t.False)
		case *callArgs:
			for _, arg := range t.args {
				if arg.node != nil {
					walk(arg.node)
				}
			}
		}
	}
	if e.node != nil {
		walk(e.node)
	}
}

// VerifyParameters reclassifies identifier values matching an instrument
// parameter name as parameter references. String literals and function
// names are preserved.
func (e Expr) VerifyParameters(names []string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	e.walkValues(func(v *Value) {
		if !v.IsID() || v.object == ObjectFunction {
			return
		}
		if _, ok := set[v.payload.(string)]; ok {
			v.object = ObjectParameter
		}
	})
}

// Compatible reports whether other may be assigned where this expression's
// type is expected. When idOK is set, identifiers and operator trees are
// accepted.
func (e Expr) Compatible(other Expr, idOK bool) bool {
	self, ok := e.value()
	if !ok {
		return idOK
	}
	if other.IsOp() {
		return idOK
	}
	ov, ok := other.value()
	if !ok {
		return idOK
	}
	if idOK && ov.IsStr() {
		return true
	}
	if !self.data.Compatible(ov.data) {
		return false
	}
	if self.shape != ov.shape {
		// A scalar identifier may stand in for a vector default.
		return idOK && ov.IsID()
	}
	return true
}

// CTypeName returns the generated-code type tag for instrument parameters.
func (e Expr) CTypeName() (string, error) {
	d := e.DataType()
	vec := e.IsVector()
	switch {
	case d == DataFloat && !vec:
		return "instr_type_double", nil
	case d == DataInt && !vec:
		return "instr_type_int", nil
	case d == DataStr && !vec:
		return "instr_type_string", nil
	case (d == DataFloat || d == DataInt) && vec:
		return "instr_type_vector", nil
	}
	return "", fmt.Errorf("no generated-code type for a %s expression", e.DataType())
}

// foldable reports whether both operands are non-identifier values whose
// promoted type stays numeric.
func foldable(l, r *Value) bool {
	if l.IsID() || r.IsID() {
		return false
	}
	if !l.HasValue() || !r.HasValue() {
		return false
	}
	return l.data.Promote(r.data) != DataStr
}

func foldNumeric(l, r *Value, dt DataType, fn func(a, b float64) float64) Node {
	li, lInt := l.payload.(int64)
	ri, rInt := r.payload.(int64)
	if lInt && rInt {
		return &Value{payload: int64(fn(float64(li), float64(ri))), data: dt}
	}
	lf, _ := asFloat(l.payload)
	rf, _ := asFloat(r.payload)
	return &Value{payload: fn(lf, rf), data: dt}
}

// Add returns a + b with constant folding.
func Add(a, b Expr) Expr {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if u, ok := b.node.(*UnaryOp); ok && u.Op == "-" {
		return Sub(a, Expr{node: u.V})
	}
	if la, aok := a.value(); aok {
		if lb, bok := b.value(); bok && foldable(la, lb) {
			dt := la.data.Promote(lb.data)
			return Expr{node: foldNumeric(la, lb, dt, func(x, y float64) float64 { return x + y })}
		}
	}
	return Expr{node: &BinaryOp{Op: "+", Left: a.node, Right: b.node}}
}

// Sub returns a - b with constant folding.
func Sub(a, b Expr) Expr {
	if b.IsZero() {
		return a
	}
	if a.IsZero() {
		return Neg(b)
	}
	if u, ok := b.node.(*UnaryOp); ok && u.Op == "-" {
		return Add(a, Expr{node: u.V})
	}
	if la, aok := a.value(); aok {
		if lb, bok := b.value(); bok && foldable(la, lb) {
			dt := la.data.Promote(lb.data)
			return Expr{node: foldNumeric(la, lb, dt, func(x, y float64) float64 { return x - y })}
		}
	}
	return Expr{node: &BinaryOp{Op: "-", Left: a.node, Right: b.node}}
}

// Mul returns a * b with constant folding.
func Mul(a, b Expr) Expr {
	dt := a.DataType().Promote(b.DataType())
	if dt == DataStr {
		dt = DataInt
	}
	if a.IsZero() || b.IsZero() {
		return Expr{node: &Value{payload: int64(0), data: dt}}
	}
	if isLiteral(a, 1) {
		return b
	}
	if isLiteral(b, 1) {
		return a
	}
	if isLiteral(a, -1) {
		return Neg(b)
	}
	if isLiteral(b, -1) {
		return Neg(a)
	}
	if la, aok := a.value(); aok {
		if lb, bok := b.value(); bok && foldable(la, lb) {
			return Expr{node: foldNumeric(la, lb, la.data.Promote(lb.data),
				func(x, y float64) float64 { return x * y })}
		}
	}
	return Expr{node: &BinaryOp{Op: "*", Left: a.node, Right: b.node}}
}

// Div returns a / b with constant folding. A literal zero divisor fails
// with ErrDivisionByZero.
func Div(a, b Expr) (Expr, error) {
	if b.IsZero() {
		return Expr{}, ErrDivisionByZero
	}
	if isLiteral(b, 1) {
		return a, nil
	}
	if isLiteral(b, -1) {
		return Neg(a), nil
	}
	if a.IsZero() {
		dt := a.DataType().Promote(b.DataType())
		if dt == DataStr {
			dt = DataInt
		}
		return Expr{node: &Value{payload: int64(0), data: dt}}, nil
	}
	if la, aok := a.value(); aok {
		if lb, bok := b.value(); bok && foldable(la, lb) {
			dt := la.data.Promote(lb.data)
			lf, _ := asFloat(la.payload)
			rf, _ := asFloat(lb.payload)
			li, lInt := la.payload.(int64)
			ri, rInt := lb.payload.(int64)
			if lInt && rInt && li%ri == 0 {
				return Expr{node: &Value{payload: li / ri, data: dt}}, nil
			}
			return Expr{node: &Value{payload: lf / rf, data: dt}}, nil
		}
	}
	return Expr{node: &BinaryOp{Op: "/", Left: a.node, Right: b.node}}, nil
}

// Neg returns -a, cancelling a directly nested negation and folding
// constants.
func Neg(a Expr) Expr {
	if u, ok := a.node.(*UnaryOp); ok && u.Op == "-" {
		return Expr{node: u.V}
	}
	if v, ok := a.value(); ok && !v.IsID() && !v.IsStr() && v.HasValue() {
		switch p := v.payload.(type) {
		case int64:
			return Expr{node: &Value{payload: -p, data: v.data}}
		case float64:
			return Expr{node: &Value{payload: -p, data: v.data}}
		}
	}
	return Expr{node: &UnaryOp{Op: "-", V: a.node}}
}

// Abs returns abs(a), collapsing abs(abs(x)) and folding constants.
func Abs(a Expr) Expr {
	if u, ok := a.node.(*UnaryOp); ok && u.Op == "abs" {
		return a
	}
	if v, ok := a.value(); ok && !v.IsID() && !v.IsStr() && v.HasValue() {
		switch p := v.payload.(type) {
		case int64:
			if p < 0 {
				p = -p
			}
			return Expr{node: &Value{payload: p, data: v.data}}
		case float64:
			return Expr{node: &Value{payload: math.Abs(p), data: v.data}}
		}
	}
	return Expr{node: &UnaryOp{Op: "abs", V: a.node}}
}

// Pow returns a ** b with the power folding rules.
func Pow(a, b Expr) Expr {
	if a.IsZero() || isLiteral(a, 1) {
		return a
	}
	if b.IsZero() {
		return Expr{node: &Value{payload: int64(1), data: a.DataType()}}
	}
	if isLiteral(b, 1) {
		return a
	}
	return Expr{node: &BinaryOp{Op: "__pow__", Left: a.node, Right: b.node}}
}

// Binary returns a symbolic binary node without folding, used for
// comparison, logic, shift, modulo, access, and call operators.
func Binary(op string, a, b Expr) Expr {
	return Expr{node: &BinaryOp{Op: op, Left: a.node, Right: b.node}}
}

// Unary returns a symbolic unary node without folding.
func Unary(op string, a Expr) Expr {
	return Expr{node: &UnaryOp{Op: op, V: a.node}}
}

// Trinary returns a conditional expression node.
func Trinary(test, then, els Expr) Expr {
	return Expr{node: &TrinaryOp{Op: "__trinary__", Test: test.node, True: then.node, False: els.node}}
}

// GroupExpr returns a parenthesised expression.
func GroupExpr(a Expr) Expr {
	return Expr{node: &UnaryOp{Op: "__group__", V: a.node}}
}

// Call returns a function-call expression.
func Call(name string, args []Expr) Expr {
	return Expr{node: &BinaryOp{Op: "__call__", Left: FuncValue(name), Right: ArrayCallArgs(args)}}
}

// ArrayCallArgs packs call arguments into a single node rendered as a
// comma separated list.
func ArrayCallArgs(args []Expr) Node {
	return &callArgs{args: args}
}

type callArgs struct {
	args []Expr
}

func (c *callArgs) NodeDataType() DataType { return DataUndefined }

func (c *callArgs) render(style OpStyle) string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = a.toString(style)
	}
	return strings.Join(parts, ", ")
}

func (c *callArgs) equal(other Node) bool {
	o, ok := other.(*callArgs)
	if !ok || len(c.args) != len(o.args) {
		return false
	}
	for i := range c.args {
		if !c.args[i].Equal(o.args[i]) {
			return false
		}
	}
	return true
}

func (c *callArgs) copyNode() Node {
	dup := make([]Expr, len(c.args))
	for i, a := range c.args {
		dup[i] = a.Copy()
	}
	return &callArgs{args: dup}
}

// inverseTrig pairs a trigonometric function with its inverse.
var inverseTrig = map[string]string{
	"cos": "acos", "sin": "asin", "tan": "atan",
	"acos": "cos", "asin": "sin", "atan": "tan",
}

// UnaryFold applies a named math function to v, cancelling trigonometric
// inverses and folding constants. A string constant fails with
// ErrTypeMismatch.
func UnaryFold(name string, fn func(float64) float64, v Expr) (Expr, error) {
	if u, ok := v.node.(*UnaryOp); ok {
		if inv, known := inverseTrig[name]; known && u.Op == inv {
			return Expr{node: u.V}, nil
		}
	}
	if val, ok := v.value(); ok && !val.IsID() {
		if val.IsStr() {
			return Expr{}, fmt.Errorf("%s(%s): %w", name, v, ErrTypeMismatch)
		}
		if f, num := asFloat(val.payload); num {
			return bestExpr(fn(f)), nil
		}
	}
	return Expr{node: &UnaryOp{Op: name, V: v.node}}, nil
}

// BinaryFold applies a named two-argument math function, recognising
// atan2(sin u, cos u) == u, and folding constants.
func BinaryFold(name string, fn func(a, b float64) float64, l, r Expr) (Expr, error) {
	if name == "atan2" {
		lu, lok := l.node.(*UnaryOp)
		ru, rok := r.node.(*UnaryOp)
		if lok && rok && lu.Op == "sin" && ru.Op == "cos" && lu.V.equal(ru.V) {
			return Expr{node: lu.V}, nil
		}
	}
	lv, lok := l.value()
	rv, rok := r.value()
	if lok && rok && !lv.IsID() && !rv.IsID() {
		if lv.IsStr() || rv.IsStr() {
			return Expr{}, fmt.Errorf("%s(%s, %s): %w", name, l, r, ErrTypeMismatch)
		}
		lf, lNum := asFloat(lv.payload)
		rf, rNum := asFloat(rv.payload)
		if lNum && rNum {
			return bestExpr(fn(lf, rf)), nil
		}
	}
	return Expr{node: &BinaryOp{Op: name, Left: l.node, Right: r.node}}, nil
}

// bestExpr wraps a float as an int expression when it is integral.
func bestExpr(f float64) Expr {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return ExprInt(int64(f))
	}
	return ExprFloat(f)
}

// isLiteral reports whether e is the numeric literal n. String-typed
// values holding digits never match.
func isLiteral(e Expr, n float64) bool {
	v, ok := e.value()
	if !ok || v.IsID() || v.IsStr() {
		return false
	}
	return v.isNumber(n)
}
