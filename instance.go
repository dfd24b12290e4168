// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
)

// Mode controls how much derived state an Instance computes during
// construction.
type Mode uint8

// Instance construction modes.
const (
	ModeNormal Mode = iota
	ModeMinimal
)

func (m Mode) String() string {
	if m == ModeMinimal {
		return "minimal"
	}
	return "normal"
}

// VectorRef is a placement vector relative to another instance, or
// absolute when Ref is nil. References are non-owning lookups within the
// enclosing instrument.
type VectorRef struct {
	Vector Vector
	Ref    *Instance
}

// AnglesRef is a rotation relative to another instance, or absolute when
// Ref is nil.
type AnglesRef struct {
	Angles Angles
	Ref    *Instance
}

// Instance is one component instantiation in an instrument TRACE section.
type Instance struct {
	Name           string
	Type           *Comp
	AtRelative     VectorRef
	RotateRelative AnglesRef
	Orientation    *Orient
	Parameters     []ComponentParameter
	Removable      bool
	Cpu            bool
	Split          Expr // nil Expr when absent
	When           Expr // nil Expr when absent
	Group          string
	Extend         []RawC
	Jump           []Jump
	Metadata       []MetaData
	Mode           Mode
}

// NewInstance constructs an instance and computes its absolute
// orientation unless the mode is minimal. Components marked NOACC force
// the instance onto the CPU.
func NewInstance(name string, comp *Comp, at VectorRef, rotate AnglesRef, mode Mode) *Instance {
	inst := &Instance{
		Name:           name,
		Type:           comp,
		AtRelative:     at,
		RotateRelative: rotate,
		Mode:           mode,
	}
	if mode != ModeMinimal {
		inst.computeOrientation()
	}
	if comp != nil && !comp.Acc {
		inst.Cpu = true
	}
	return inst
}

// CopyInstance builds a new instance from an existing one, inheriting
// parameters, when, group, extend, jumps, metadata, and mode.
func CopyInstance(name string, ref *Instance, at VectorRef, rotate AnglesRef) *Instance {
	inst := &Instance{
		Name:           name,
		Type:           ref.Type,
		AtRelative:     at,
		RotateRelative: rotate,
		Parameters:     append([]ComponentParameter(nil), ref.Parameters...),
		When:           ref.When,
		Group:          ref.Group,
		Extend:         append([]RawC(nil), ref.Extend...),
		Jump:           append([]Jump(nil), ref.Jump...),
		Metadata:       append([]MetaData(nil), ref.Metadata...),
		Mode:           ref.Mode,
	}
	if inst.Mode != ModeMinimal {
		inst.computeOrientation()
	}
	if inst.Type != nil && !inst.Type.Acc {
		inst.Cpu = true
	}
	return inst
}

func (inst *Instance) computeOrientation() {
	var atParent, rotParent *Orient
	if inst.AtRelative.Ref != nil {
		atParent = inst.AtRelative.Ref.Orientation
	}
	if inst.RotateRelative.Ref != nil {
		rotParent = inst.RotateRelative.Ref.Orientation
	} else if inst.AtRelative.Ref != nil {
		// "AT (...) RELATIVE a" without ROTATED shares the reference.
		rotParent = atParent
	}
	inst.Orientation = OrientFrom(atParent, inst.AtRelative.Vector, rotParent, inst.RotateRelative.Angles)
}

func (inst *Instance) String() string {
	return fmt.Sprintf("Instance(%s, %s)", inst.Name, inst.Type.Name)
}

// SetParameter assigns an instance parameter value. Unknown names and
// incompatible values fail; a repeated assignment keeps the first value
// unless overwrite is set.
func (inst *Instance) SetParameter(name string, value Expr, overwrite bool) error {
	def, ok := inst.Type.GetParameter(name)
	if !ok {
		return semanticErr(ErrUnknownReference,
			"%s is not a known DEFINITION or SETTING parameter for %s", name, inst.Type.Name)
	}
	if parameterNamePresent(inst.Parameters, name) {
		if !overwrite {
			// First-encountered value is retained.
			return nil
		}
		kept := inst.Parameters[:0]
		for _, p := range inst.Parameters {
			if p.Name != name {
				kept = append(kept, p)
			}
		}
		inst.Parameters = kept
	}
	if !def.CompatibleValue(value) {
		return semanticErr(ErrUnknownReference,
			"provided value for parameter %s is not compatible with %s", name, inst.Type.Name)
	}
	// An identifier of undefined type inherits the declared default type.
	if v, ok := value.value(); ok && v.NodeDataType() == DataUndefined {
		if dv, ok := def.Value.value(); ok {
			v.SetDataType(dv.NodeDataType())
			v.SetShapeType(dv.ShapeType())
		}
	}
	inst.Parameters = append(inst.Parameters, ComponentParameter{Name: def.Name, Value: value})
	return nil
}

// VerifyParameters flags instance-parameter identifiers that match
// instrument parameter names.
func (inst *Instance) VerifyParameters(instrumentParameters []InstrumentParameter) {
	names := make([]string, len(instrumentParameters))
	for i, p := range instrumentParameters {
		names[i] = p.Name
	}
	for _, p := range inst.Parameters {
		p.Value.VerifyParameters(names)
	}
}

// GetParameter returns the instance assignment for name, falling back to
// the component definition default.
func (inst *Instance) GetParameter(name string) (ComponentParameter, bool) {
	for _, p := range inst.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return inst.Type.GetParameter(name)
}

// DefinesParameter reports whether the instance itself assigned name.
func (inst *Instance) DefinesParameter(name string) bool {
	return parameterNamePresent(inst.Parameters, name)
}

// SetSplit attaches a SPLIT expression.
func (inst *Instance) SetSplit(count Expr) { inst.Split = count }

// SetWhen attaches a WHEN gate. A constant gate would be decided at
// compile time and is rejected.
func (inst *Instance) SetWhen(expr Expr) error {
	if expr.IsConstant() {
		return semanticErr(nil, "evaluated WHEN statement %s would be constant at runtime", expr)
	}
	inst.When = expr
	return nil
}

// SetGroup records GROUP membership.
func (inst *Instance) SetGroup(name string) { inst.Group = name }

// SetExtend replaces the EXTEND blocks. A COPY-derived instance drops the
// inherited blocks when the copy supplies its own.
func (inst *Instance) SetExtend(blocks ...RawC) {
	if len(blocks) > 0 {
		inst.Extend = blocks
	}
}

// SetJumps replaces the JUMP list. A COPY-derived instance drops the
// inherited jumps when the copy supplies its own.
func (inst *Instance) SetJumps(jumps ...Jump) {
	if len(jumps) > 0 {
		inst.Jump = jumps
	}
}

// AddMetadata appends m, replacing any previous entry of the same name.
func (inst *Instance) AddMetadata(m MetaData) {
	kept := inst.Metadata[:0]
	for _, x := range inst.Metadata {
		if x.Name != m.Name {
			kept = append(kept, x)
		}
	}
	inst.Metadata = append(kept, m)
}

// CollectMetadata merges definition and instance metadata; the instance
// wins on name collisions.
func (inst *Instance) CollectMetadata() []MetaData {
	byName := make(map[string]int)
	var out []MetaData
	for _, m := range inst.Type.CollectMetadata() {
		byName[m.Name] = len(out)
		out = append(out, m)
	}
	for _, m := range inst.Metadata {
		if i, ok := byName[m.Name]; ok {
			out[i] = m
		} else {
			out = append(out, m)
		}
	}
	return out
}

// Copy returns a duplicate sharing the component definition and instance
// references.
func (inst *Instance) Copy() *Instance {
	dup := *inst
	dup.Parameters = append([]ComponentParameter(nil), inst.Parameters...)
	dup.Extend = append([]RawC(nil), inst.Extend...)
	dup.Jump = append([]Jump(nil), inst.Jump...)
	dup.Metadata = append([]MetaData(nil), inst.Metadata...)
	return &dup
}

// ParameterUsed reports whether the named instrument parameter appears in
// any assignment, placement, gate, extend block, or jump of the instance.
func (inst *Instance) ParameterUsed(name string) bool {
	for _, p := range inst.Parameters {
		if p.Value.Contains(name) {
			return true
		}
	}
	if inst.AtRelative.Vector.Contains(name) || inst.RotateRelative.Angles.Contains(name) {
		return true
	}
	if inst.Orientation.Contains(name) {
		return true
	}
	if !inst.Split.IsNil() && inst.Split.Contains(name) {
		return true
	}
	if !inst.When.IsNil() && inst.When.Contains(name) {
		return true
	}
	for _, block := range inst.Extend {
		if block.Contains(name) {
			return true
		}
	}
	for _, j := range inst.Jump {
		if j.ParameterUsed(name) {
			return true
		}
	}
	return false
}
