// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
	"io"
	"strings"
)

// Instr is the intermediate representation of a McCode instrument: an
// ordered pipeline of component instances plus instrument-level
// parameters, metadata, and verbatim C sections. The component order is
// the authoritative traversal order.
type Instr struct {
	Name       string
	Source     string
	Parameters []InstrumentParameter
	Metadata   []MetaData
	Components []*Instance
	Included   []string

	User       []RawC
	Declare    []RawC
	Initialize []RawC
	Save       []RawC
	Final      []RawC

	Groups     map[string]*Group
	Flags      []string
	Registries []Registry

	// FlowEdges is the persisted ground truth of the particle flow
	// graph, rebuilt whenever the component list changes.
	FlowEdges []FlowEdgeRecord
}

// NewInstr returns an empty instrument.
func NewInstr() *Instr {
	return &Instr{Groups: make(map[string]*Group)}
}

// AddComponent appends an instance, enforcing name uniqueness.
func (in *Instr) AddComponent(a *Instance) error {
	if in.HasComponentNamed(a.Name) {
		return semanticErr(ErrDuplicateName,
			"a component instance named %s is already present in the instrument", a.Name)
	}
	in.Components = append(in.Components, a)
	return nil
}

// AddParameter appends an instrument parameter. Repeats are rejected
// unless ignoreRepeated is set (used when merging included instruments).
func (in *Instr) AddParameter(p InstrumentParameter, ignoreRepeated bool) error {
	if !parameterNamePresent(in.Parameters, p.Name) {
		in.Parameters = append(in.Parameters, p)
		return nil
	}
	if ignoreRepeated {
		return nil
	}
	return semanticErr(ErrDuplicateName,
		"an instrument parameter named %s is already present in the instrument", p.Name)
}

// GetParameter returns the named instrument parameter.
func (in *Instr) GetParameter(name string) (InstrumentParameter, bool) {
	for _, p := range in.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return InstrumentParameter{}, false
}

// HasParameter reports whether the named instrument parameter exists.
func (in *Instr) HasParameter(name string) bool {
	return parameterNamePresent(in.Parameters, name)
}

// LastComponent returns the count-th component from the end. With
// removableOK unset, REMOVABLE components are skipped.
func (in *Instr) LastComponent(count int, removableOK bool) (*Instance, error) {
	if removableOK {
		if len(in.Components) < count {
			return nil, semanticErr(ErrUnknownReference,
				"only %d components defined, can not go back %d", len(in.Components), count)
		}
		return in.Components[len(in.Components)-count], nil
	}
	var fixed []*Instance
	for _, comp := range in.Components {
		if !comp.Removable {
			fixed = append(fixed, comp)
		}
	}
	if len(fixed) < count {
		return nil, semanticErr(ErrUnknownReference,
			"only %d fixed components defined, can not go back %d", len(fixed), count)
	}
	return fixed[len(fixed)-count], nil
}

// GetComponent returns the named instance. The special name PREVIOUS
// resolves to the most recent component.
func (in *Instr) GetComponent(name string) (*Instance, error) {
	if name == "PREVIOUS" {
		return in.LastComponent(1, true)
	}
	for _, comp := range in.Components {
		if comp.Name == name {
			return comp, nil
		}
	}
	return nil, semanticErr(ErrUnknownReference, "no component instance named %s defined", name)
}

// HasComponentNamed reports whether an instance with the given name
// exists.
func (in *Instr) HasComponentNamed(name string) bool {
	for _, comp := range in.Components {
		if comp.Name == name {
			return true
		}
	}
	return false
}

// ComponentIndex returns the position of the named instance, -1 when
// absent.
func (in *Instr) ComponentIndex(name string) int {
	for i, comp := range in.Components {
		if comp.Name == name {
			return i
		}
	}
	return -1
}

// ComponentNamesByCategory finds instance names whose type category
// contains the given category string.
func (in *Instr) ComponentNamesByCategory(category string) []string {
	var names []string
	for _, inst := range in.Components {
		if strings.Contains(inst.Type.Category, category) {
			names = append(names, inst.Name)
		}
	}
	return names
}

// AddIncluded records the name of a transitively included instrument.
func (in *Instr) AddIncluded(name string) {
	in.Included = append(in.Included, name)
}

// AddFlags appends compile-time dependency flags.
func (in *Instr) AddFlags(flags ...string) {
	in.Flags = append(in.Flags, flags...)
}

// AppendUser appends USERVARS blocks.
func (in *Instr) AppendUser(blocks ...RawC) { in.User = append(in.User, blocks...) }

// AppendDeclare appends DECLARE blocks.
func (in *Instr) AppendDeclare(blocks ...RawC) { in.Declare = append(in.Declare, blocks...) }

// AppendInitialize appends INITIALIZE blocks.
func (in *Instr) AppendInitialize(blocks ...RawC) { in.Initialize = append(in.Initialize, blocks...) }

// AppendSave appends SAVE blocks.
func (in *Instr) AppendSave(blocks ...RawC) { in.Save = append(in.Save, blocks...) }

// AppendFinal appends FINALLY blocks.
func (in *Instr) AppendFinal(blocks ...RawC) { in.Final = append(in.Final, blocks...) }

// AddMetadata appends m, replacing any previous entry of the same name.
func (in *Instr) AddMetadata(m MetaData) {
	kept := in.Metadata[:0]
	for _, x := range in.Metadata {
		if x.Name != m.Name {
			kept = append(kept, x)
		}
	}
	in.Metadata = append(kept, m)
}

// DetermineGroups populates the group map from instance membership, in
// component order. Group names are scoped to this instrument.
func (in *Instr) DetermineGroups() {
	if in.Groups == nil {
		in.Groups = make(map[string]*Group)
	}
	for id, inst := range in.Components {
		if inst.Group == "" {
			continue
		}
		g, ok := in.Groups[inst.Group]
		if !ok {
			g = &Group{Name: inst.Group, Order: len(in.Groups)}
			in.Groups[inst.Group] = g
		}
		g.Add(id, inst)
	}
}

// ComponentTypes returns the distinct component definitions in first-use
// order, which the code generator relies on.
func (in *Instr) ComponentTypes() []*Comp {
	seen := make(map[*Comp]struct{})
	var types []*Comp
	for _, inst := range in.Components {
		if _, ok := seen[inst.Type]; !ok {
			seen[inst.Type] = struct{}{}
			types = append(types, inst.Type)
		}
	}
	return types
}

// CollectMetadata gathers instance metadata (instance entries override
// definition entries) followed by instrument metadata.
func (in *Instr) CollectMetadata() []MetaData {
	var out []MetaData
	for _, inst := range in.Components {
		out = append(out, inst.CollectMetadata()...)
	}
	return append(out, in.Metadata...)
}

// ParameterUsed reports whether an instrument parameter appears in any
// instance or C section.
func (in *Instr) ParameterUsed(name string) bool {
	for _, inst := range in.Components {
		if inst.ParameterUsed(name) {
			return true
		}
	}
	for _, section := range [][]RawC{in.Declare, in.Initialize, in.Save, in.Final} {
		for _, block := range section {
			if block.Contains(name) {
				return true
			}
		}
	}
	return false
}

// CheckInstrumentParameters counts unused instrument parameters,
// optionally removing them. It returns the number of unused parameters
// found.
func (in *Instr) CheckInstrumentParameters(remove bool) int {
	var used []bool
	unused := 0
	for _, p := range in.Parameters {
		u := in.ParameterUsed(p.Name)
		used = append(used, u)
		if !u {
			unused++
		}
	}
	if unused > 0 && remove {
		kept := in.Parameters[:0]
		for i, p := range in.Parameters {
			if used[i] {
				kept = append(kept, p)
			}
		}
		in.Parameters = kept
	}
	return unused
}

// VerifyInstanceParameters promotes instance-parameter identifiers that
// match instrument parameter names.
func (in *Instr) VerifyInstanceParameters() {
	for _, inst := range in.Components {
		inst.VerifyParameters(in.Parameters)
	}
}

// Copy returns a copy of the instrument containing components[first:last]
// (negative last counts from the end, -1 keeping everything).
func (in *Instr) Copy(first, last int) *Instr {
	if last < 0 {
		last += 1 + len(in.Components)
	}
	cp := NewInstr()
	cp.Name = in.Name
	cp.Source = in.Source
	for _, p := range in.Parameters {
		cp.Parameters = append(cp.Parameters, p.Copy())
	}
	cp.Metadata = append(cp.Metadata, in.Metadata...)
	for _, inst := range in.Components[first:last] {
		cp.Components = append(cp.Components, inst.Copy())
	}
	cp.Included = append(cp.Included, in.Included...)
	cp.User = append(cp.User, in.User...)
	cp.Declare = append(cp.Declare, in.Declare...)
	cp.Initialize = append(cp.Initialize, in.Initialize...)
	cp.Save = append(cp.Save, in.Save...)
	cp.Final = append(cp.Final, in.Final...)
	for k, v := range in.Groups {
		cp.Groups[k] = v.Copy()
	}
	cp.Flags = append(cp.Flags, in.Flags...)
	cp.Registries = append(cp.Registries, in.Registries...)
	return cp
}

// Split produces two instruments that both contain the indicated
// component: the first ends with it, the second starts with it. Dangling
// placement references in the second instrument are re-anchored to
// absolute coordinates.
func (in *Instr) Split(at string, removeUnusedParameters bool) (*Instr, *Instr, error) {
	index := in.ComponentIndex(at)
	if index < 0 {
		return nil, nil, semanticErr(ErrUnknownReference,
			"can only split an instrument at a component present in it, %q is not", at)
	}
	first := in.Copy(0, index+1)
	first.Name = in.Name + "_first"
	first.CheckInstrumentParameters(removeUnusedParameters)
	first.BuildFlowGraph()

	second := in.Copy(index, -1)
	second.Name = in.Name + "_second"
	for _, inst := range second.Components {
		if ref := inst.AtRelative.Ref; ref != nil {
			if kept, err := second.GetComponent(ref.Name); err == nil {
				inst.AtRelative.Ref = kept
			} else {
				inst.AtRelative = VectorRef{Vector: inst.Orientation.Position()}
			}
		}
		if ref := inst.RotateRelative.Ref; ref != nil {
			if kept, err := second.GetComponent(ref.Name); err == nil {
				inst.RotateRelative.Ref = kept
			} else {
				inst.RotateRelative = AnglesRef{Angles: inst.Orientation.AbsoluteAngles()}
			}
		}
	}
	second.CheckInstrumentParameters(removeUnusedParameters)
	second.BuildFlowGraph()
	return first, second, nil
}

// MakeInstance resolves a component type through the given reader and
// appends a new instance.
func (in *Instr) MakeInstance(reader *Reader, name, component string, at VectorRef,
	rotate AnglesRef, parameters []ComponentParameter) (*Instance, error) {
	if in.HasComponentNamed(name) {
		return nil, semanticErr(ErrDuplicateName,
			"an instance named %s is already present in the instrument", name)
	}
	comp, err := reader.GetComponent(component)
	if err != nil {
		return nil, err
	}
	inst := NewInstance(name, comp, at, rotate, ModeNormal)
	inst.Parameters = append(inst.Parameters, parameters...)
	in.Components = append(in.Components, inst)
	return inst, nil
}

// McplSplit bisects the instrument at a component, replacing the cut
// point with an MCPL writer in the first half and an MCPL reader in the
// second, both sharing a string mcpl_filename instrument parameter.
func (in *Instr) McplSplit(reader *Reader, at string, filename string,
	removeUnusedParameters bool) (*Instr, *Instr, error) {
	if filename == "" {
		filename = in.Name + ".mcpl"
	}
	if !strings.HasPrefix(filename, `"`) {
		filename = `"` + filename + `"`
	}
	first, second, err := in.Split(at, removeUnusedParameters)
	if err != nil {
		return nil, nil, err
	}
	fileParam := InstrumentParameter{Name: "mcpl_filename", Value: ExprStr(filename)}
	if err := first.AddParameter(fileParam, true); err != nil {
		return nil, nil, err
	}
	if err := second.AddParameter(fileParam, true); err != nil {
		return nil, nil, err
	}
	nameValue := NewExpr(&Value{payload: "mcpl_filename", object: ObjectParameter, data: DataStr})
	filenameParameter := ComponentParameter{Name: "filename", Value: nameValue}

	fc := first.Components[len(first.Components)-1]
	first.Components = first.Components[:len(first.Components)-1]
	if _, err := first.MakeInstance(reader, fc.Name, "MCPL_output",
		fc.AtRelative, fc.RotateRelative, []ComponentParameter{filenameParameter}); err != nil {
		return nil, nil, err
	}
	first.BuildFlowGraph()

	sc := second.Components[0]
	second.Components = second.Components[1:]
	input := []ComponentParameter{
		{Name: "verbose", Value: ExprFloat(0)},
		filenameParameter,
	}
	inst, err := second.MakeInstance(reader, sc.Name, "MCPL_input",
		sc.AtRelative, sc.RotateRelative, input)
	if err != nil {
		return nil, nil, err
	}
	// The reader component leads the second instrument.
	second.Components = append([]*Instance{inst}, second.Components[:len(second.Components)-1]...)
	second.BuildFlowGraph()
	return first, second, nil
}

// UniqueFlags deduplicates the dependency flags, adding -DFUNNEL when any
// instance is pinned to the CPU.
func (in *Instr) UniqueFlags() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(f string) {
		if _, ok := seen[f]; !ok {
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	for _, f := range in.Flags {
		add(f)
	}
	for _, inst := range in.Components {
		if inst.Cpu {
			add("-DFUNNEL")
			break
		}
	}
	return out
}

// WriteTo emits a normalized instrument definition.
func (in *Instr) WriteTo(w io.Writer) {
	params := make([]string, len(in.Parameters))
	for i, p := range in.Parameters {
		params[i] = p.String()
	}
	fmt.Fprintf(w, "DEFINE INSTRUMENT %s(%s)\n", in.Name, strings.Join(params, ", "))
	for _, f := range in.Flags {
		fmt.Fprintf(w, "DEPENDENCY %q\n", f)
	}
	writeRawCSection(w, "DECLARE", in.Declare)
	writeRawCSection(w, "USERVARS", in.User)
	writeRawCSection(w, "INITIALIZE", in.Initialize)
	fmt.Fprintln(w, "TRACE")
	for _, inst := range in.Components {
		in.writeInstance(w, inst)
	}
	writeRawCSection(w, "SAVE", in.Save)
	writeRawCSection(w, "FINALLY", in.Final)
	fmt.Fprintln(w, "END")
}

func (in *Instr) writeInstance(w io.Writer, inst *Instance) {
	if inst.Cpu {
		fmt.Fprint(w, "CPU ")
	}
	if !inst.Split.IsNil() {
		fmt.Fprintf(w, "SPLIT %s ", inst.Split)
	}
	params := make([]string, len(inst.Parameters))
	for i, p := range inst.Parameters {
		params[i] = p.Name + "=" + p.Value.String()
	}
	fmt.Fprintf(w, "COMPONENT %s = %s(%s)", inst.Name, inst.Type.Name, strings.Join(params, ", "))
	if !inst.When.IsNil() {
		fmt.Fprintf(w, " WHEN %s", inst.When)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "AT %s %s\n", inst.AtRelative.Vector, refName(inst.AtRelative.Ref))
	if !inst.RotateRelative.Angles.IsNull() || inst.RotateRelative.Ref != nil {
		fmt.Fprintf(w, "ROTATED %s %s\n", inst.RotateRelative.Angles, refName(inst.RotateRelative.Ref))
	}
	if inst.Group != "" {
		fmt.Fprintf(w, "GROUP %s\n", inst.Group)
	}
	if len(inst.Extend) > 0 {
		writeRawCSection(w, "EXTEND", inst.Extend)
	}
	for _, j := range inst.Jump {
		fmt.Fprintln(w, j)
	}
}

func refName(ref *Instance) string {
	if ref == nil {
		return "ABSOLUTE"
	}
	return "RELATIVE " + ref.Name
}

// String renders a normalized instrument definition.
func (in *Instr) String() string {
	var b strings.Builder
	in.WriteTo(&b)
	return b.String()
}
