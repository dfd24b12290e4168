// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
)

// InsertPlacement is an explicit placement for an inserted component: a
// local vector relative to a named instance (empty name for absolute).
type InsertPlacement struct {
	Vector Vector
	Ref    string
}

// InsertOptions controls Instr.InsertComponent. Exactly one of Before and
// After must name an existing instance.
type InsertOptions struct {
	Before     string
	After      string
	Group      string
	AtRelative *InsertPlacement
	Parameters []ComponentParameter
}

// InsertComponent inserts a new instance of comp into the component list,
// splitting the affected sequential edge and invalidating every resolved
// jump target so the next flow-graph build resolves them by name again.
//
// Placement: when AtRelative is omitted the new instance is placed at the
// midpoint between its neighbours, expressed in the predecessor's local
// frame. When a supplied AtRelative references a component that lies at
// or after the insertion point, the reference is rewritten to the
// predecessor.
func (in *Instr) InsertComponent(name string, comp *Comp, opts InsertOptions) (*Instance, error) {
	if (opts.Before == "") == (opts.After == "") {
		return nil, fmt.Errorf("insert_component requires exactly one of before= or after=")
	}
	if in.HasComponentNamed(name) {
		return nil, semanticErr(ErrDuplicateName,
			"a component instance named %s is already present in the instrument", name)
	}
	anchor := opts.Before
	if anchor == "" {
		anchor = opts.After
	}
	anchorIdx := in.ComponentIndex(anchor)
	if anchorIdx < 0 {
		return nil, semanticErr(ErrUnknownReference, "no component instance named %s defined", anchor)
	}
	idx := anchorIdx
	if opts.After != "" {
		idx = anchorIdx + 1
	}

	if err := in.checkGroupContinuity(idx, opts.Group); err != nil {
		return nil, err
	}

	at, err := in.insertionPlacement(idx, opts.AtRelative)
	if err != nil {
		return nil, err
	}

	inst := NewInstance(name, comp, at, AnglesRef{Angles: ZeroAngles(), Ref: at.Ref}, ModeNormal)
	inst.Group = opts.Group
	inst.Parameters = append(inst.Parameters, opts.Parameters...)

	in.Components = append(in.Components, nil)
	copy(in.Components[idx+1:], in.Components[idx:])
	in.Components[idx] = inst

	// Any resolved jump target index may now be stale.
	for _, c := range in.Components {
		for i := range c.Jump {
			c.Jump[i].AbsoluteTarget = -1
		}
	}

	in.Groups = make(map[string]*Group)
	in.DetermineGroups()
	in.BuildFlowGraph()
	return inst, nil
}

// checkGroupContinuity rejects insertions at idx that would place a
// non-member (or a member of another group) between two members of the
// same group, or a member of an existing group away from that group.
func (in *Instr) checkGroupContinuity(idx int, group string) error {
	var pred, succ *Instance
	if idx > 0 {
		pred = in.Components[idx-1]
	}
	if idx < len(in.Components) {
		succ = in.Components[idx]
	}
	if pred != nil && succ != nil && pred.Group != "" && pred.Group == succ.Group && group != pred.Group {
		return semanticErr(ErrGroupContinuity,
			"inserting a component of group %q between members of group %q breaks group contiguity",
			group, pred.Group)
	}
	if group != "" {
		exists := false
		adjacent := false
		for _, c := range in.Components {
			if c.Group == group {
				exists = true
			}
		}
		if pred != nil && pred.Group == group {
			adjacent = true
		}
		if succ != nil && succ.Group == group {
			adjacent = true
		}
		if exists && !adjacent {
			return semanticErr(ErrGroupContinuity,
				"inserting a member of group %q away from its other members breaks group contiguity", group)
		}
	}
	return nil
}

// insertionPlacement resolves the placement of a component inserted at
// idx.
func (in *Instr) insertionPlacement(idx int, explicit *InsertPlacement) (VectorRef, error) {
	var pred, succ *Instance
	if idx > 0 {
		pred = in.Components[idx-1]
	}
	if idx < len(in.Components) {
		succ = in.Components[idx]
	}

	if explicit != nil {
		if explicit.Ref == "" {
			return VectorRef{Vector: explicit.Vector}, nil
		}
		refIdx := in.ComponentIndex(explicit.Ref)
		if refIdx < 0 {
			return VectorRef{}, semanticErr(ErrUnknownReference,
				"no component instance named %s defined", explicit.Ref)
		}
		if refIdx >= idx {
			// A reference to a later component cannot be used by the
			// generated code; re-anchor on the predecessor.
			if pred == nil {
				return VectorRef{Vector: explicit.Vector}, nil
			}
			return VectorRef{Vector: explicit.Vector, Ref: pred}, nil
		}
		return VectorRef{Vector: explicit.Vector, Ref: in.Components[refIdx]}, nil
	}

	if pred == nil {
		// No predecessor to anchor on; a forward reference would not
		// survive code generation.
		return VectorRef{Vector: ZeroVector()}, nil
	}
	if succ == nil {
		return VectorRef{Vector: ZeroVector(), Ref: pred}, nil
	}

	// Midpoint between the neighbours, in the predecessor's local frame.
	if pp, ok := pred.Orientation.Position().Constant(); ok {
		if sp, ok := succ.Orientation.Position().Constant(); ok {
			if pa, ok := pred.Orientation.AbsoluteAngles().Constant(); ok {
				mid := [3]float64{
					(pp[0] + sp[0]) / 2, (pp[1] + sp[1]) / 2, (pp[2] + sp[2]) / 2,
				}
				diff := [3]float64{mid[0] - pp[0], mid[1] - pp[1], mid[2] - pp[2]}
				rot := rotationMatrix(pa)
				// The rotation matrix is orthogonal; its transpose maps
				// back into the local frame.
				var local [3]float64
				for i := 0; i < 3; i++ {
					for k := 0; k < 3; k++ {
						local[i] += rot[k][i] * diff[k]
					}
				}
				return VectorRef{
					Vector: Vector{X: bestExpr(local[0]), Y: bestExpr(local[1]), Z: bestExpr(local[2])},
					Ref:    pred,
				}, nil
			}
		}
	}

	// Symbolic positions: when the successor is placed relative to the
	// predecessor, halving its local offset is exact.
	if succ.AtRelative.Ref == pred {
		v := succ.AtRelative.Vector
		two := ExprInt(2)
		x, errX := Div(v.X, two)
		y, errY := Div(v.Y, two)
		z, errZ := Div(v.Z, two)
		if errX == nil && errY == nil && errZ == nil {
			return VectorRef{Vector: Vector{X: x, Y: y, Z: z}, Ref: pred}, nil
		}
	}
	return VectorRef{Vector: ZeroVector(), Ref: pred}, nil
}
