// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
	"math"
)

// Vector is a three-component placement vector of expressions. Symbolic
// components are preserved so instrument parameters may appear in
// placements.
type Vector struct {
	X Expr `json:"x"`
	Y Expr `json:"y"`
	Z Expr `json:"z"`
}

// NewVector builds a vector from three expressions.
func NewVector(x, y, z Expr) Vector { return Vector{X: x, Y: y, Z: z} }

// ZeroVector returns (0, 0, 0).
func ZeroVector() Vector {
	return Vector{X: ExprInt(0), Y: ExprInt(0), Z: ExprInt(0)}
}

// IsNull reports whether all components are literal zero.
func (v Vector) IsNull() bool { return v.X.IsZero() && v.Y.IsZero() && v.Z.IsZero() }

// Copy returns a deep copy.
func (v Vector) Copy() Vector {
	return Vector{X: v.X.Copy(), Y: v.Y.Copy(), Z: v.Z.Copy()}
}

// Constant returns the numeric components when all three are constant.
func (v Vector) Constant() ([3]float64, bool) {
	var out [3]float64
	for i, e := range []Expr{v.X, v.Y, v.Z} {
		f, ok := e.Float()
		if !ok {
			return out, false
		}
		out[i] = f
	}
	return out, true
}

// Contains reports whether the named identifier appears in any component.
func (v Vector) Contains(name string) bool {
	return v.X.Contains(name) || v.Y.Contains(name) || v.Z.Contains(name)
}

func (v Vector) String() string {
	return fmt.Sprintf("(%s, %s, %s)", v.X, v.Y, v.Z)
}

// Angles is a rotation about the x, y, and z axes, in degrees, applied in
// that order.
type Angles struct {
	X Expr `json:"x"`
	Y Expr `json:"y"`
	Z Expr `json:"z"`
}

// NewAngles builds an Angles from three expressions.
func NewAngles(x, y, z Expr) Angles { return Angles{X: x, Y: y, Z: z} }

// ZeroAngles returns a null rotation.
func ZeroAngles() Angles {
	return Angles{X: ExprInt(0), Y: ExprInt(0), Z: ExprInt(0)}
}

// IsNull reports whether all angles are literal zero.
func (a Angles) IsNull() bool { return a.X.IsZero() && a.Y.IsZero() && a.Z.IsZero() }

// Copy returns a deep copy.
func (a Angles) Copy() Angles {
	return Angles{X: a.X.Copy(), Y: a.Y.Copy(), Z: a.Z.Copy()}
}

// Constant returns the numeric angles when all three are constant.
func (a Angles) Constant() ([3]float64, bool) {
	return Vector(a).Constant()
}

// Contains reports whether the named identifier appears in any angle.
func (a Angles) Contains(name string) bool { return Vector(a).Contains(name) }

func (a Angles) String() string { return Vector(a).String() }

// Orient is the composed placement of an instance: a local translation
// and rotation plus the parent orientations they are relative to. The
// absolute affine transform is recomputable on demand; when every
// contributing expression is constant it folds to numbers.
type Orient struct {
	At        Vector  `json:"at"`
	Rot       Angles  `json:"rotated"`
	AtParent  *Orient `json:"-"`
	RotParent *Orient `json:"-"`
}

// OrientFrom composes a new orientation from dependent parent
// orientations. Nil parents mean absolute placement.
func OrientFrom(atParent *Orient, at Vector, rotParent *Orient, rot Angles) *Orient {
	return &Orient{At: at, Rot: rot, AtParent: atParent, RotParent: rotParent}
}

// rotationMatrix builds the 3x3 rotation for constant angles in degrees,
// applied x then y then z.
func rotationMatrix(a [3]float64) [3][3]float64 {
	rx, ry, rz := a[0]*math.Pi/180, a[1]*math.Pi/180, a[2]*math.Pi/180
	cx, sx := math.Cos(rx), math.Sin(rx)
	cy, sy := math.Cos(ry), math.Sin(ry)
	cz, sz := math.Cos(rz), math.Sin(rz)
	mx := [3][3]float64{{1, 0, 0}, {0, cx, -sx}, {0, sx, cx}}
	my := [3][3]float64{{cy, 0, sy}, {0, 1, 0}, {-sy, 0, cy}}
	mz := [3][3]float64{{cz, -sz, 0}, {sz, cz, 0}, {0, 0, 1}}
	return matMul(mz, matMul(my, mx))
}

func matMul(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

func matVec(m [3][3]float64, v [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			out[i] += m[i][k] * v[k]
		}
	}
	return out
}

// AbsoluteAngles returns the accumulated rotation angles along the parent
// chain. Symbolic angles stay symbolic sums.
func (o *Orient) AbsoluteAngles() Angles {
	if o == nil {
		return ZeroAngles()
	}
	parent := o.RotParent.AbsoluteAngles()
	return Angles{
		X: Add(parent.X, o.Rot.X),
		Y: Add(parent.Y, o.Rot.Y),
		Z: Add(parent.Z, o.Rot.Z),
	}
}

// Position returns the absolute position. Fully constant chains fold to
// numbers; otherwise the local offset is accumulated symbolically without
// applying the (unknown) parent rotation.
func (o *Orient) Position() Vector {
	if o == nil {
		return ZeroVector()
	}
	parentPos := o.AtParent.Position()
	if pp, ok := parentPos.Constant(); ok {
		if pa, ok := o.AtParent.AbsoluteAngles().Constant(); ok {
			if at, ok := o.At.Constant(); ok {
				rotated := matVec(rotationMatrix(pa), at)
				return Vector{
					X: bestExpr(pp[0] + rotated[0]),
					Y: bestExpr(pp[1] + rotated[1]),
					Z: bestExpr(pp[2] + rotated[2]),
				}
			}
		}
	}
	return Vector{
		X: Add(parentPos.X, o.At.X),
		Y: Add(parentPos.Y, o.At.Y),
		Z: Add(parentPos.Z, o.At.Z),
	}
}

// Matrix returns the absolute 4x4 affine transform when every
// contributing expression is constant.
func (o *Orient) Matrix() ([4][4]float64, bool) {
	var out [4][4]float64
	pos, ok := o.Position().Constant()
	if !ok {
		return out, false
	}
	ang, ok := o.AbsoluteAngles().Constant()
	if !ok {
		return out, false
	}
	rot := rotationMatrix(ang)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = rot[i][j]
		}
		out[i][3] = pos[i]
	}
	out[3][3] = 1
	return out, true
}

// Contains reports whether the named identifier appears anywhere in the
// orientation chain.
func (o *Orient) Contains(name string) bool {
	if o == nil {
		return false
	}
	if o.At.Contains(name) || o.Rot.Contains(name) {
		return true
	}
	return o.AtParent.Contains(name) || o.RotParent.Contains(name)
}
