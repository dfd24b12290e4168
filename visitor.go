// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// InstrVisitor lowers an instrument parse tree into the Instr IR. The
// visitor resolves component types through its Reader, and when lowering
// an included instrument the destination points at the outer one.
type InstrVisitor struct {
	reader              *Reader
	filename            string
	state               *Instr
	currentComp         *Comp
	currentInstanceName string
	destination         *Instr
	mode                Mode
}

// NewInstrVisitor builds a visitor for one instrument source.
func NewInstrVisitor(reader *Reader, filename string, destination *Instr, mode Mode) *InstrVisitor {
	return &InstrVisitor{
		reader:      reader,
		filename:    filename,
		destination: destination,
		mode:        mode,
	}
}

// Visit lowers the parse tree and returns the finished instrument.
func (v *InstrVisitor) Visit(ast *InstrFileAST) (*Instr, error) {
	v.state = NewInstr()
	def := ast.Def
	v.state.Name = def.Name

	for _, p := range def.Params {
		param, err := v.lowerInstrumentParameter(p)
		if err != nil {
			return nil, err
		}
		if err := v.state.AddParameter(param, false); err != nil {
			return nil, err
		}
	}

	if def.Shell != nil {
		if err := runShellDirective(Unquote(def.Shell.Literal.Text)); err != nil {
			return nil, err
		}
	}
	for _, s := range def.Searches {
		if err := v.handleSearch(s); err != nil {
			return nil, err
		}
	}
	for _, m := range def.Metadata {
		v.state.AddMetadata(v.lowerMetadata(m, v.state.Name))
	}
	if def.Dependency != nil {
		v.state.AddFlags(Unquote(def.Dependency.Literal.Text))
	}

	sections := []struct {
		section *SectionAST
		appendT func(...RawC)
		part    string
	}{
		{def.Declare, v.state.AppendDeclare, "declare"},
		{def.UserVars, v.state.AppendUser, "user"},
		{def.Initialize, v.state.AppendInitialize, "initialize"},
	}
	for _, s := range sections {
		if s.section == nil {
			continue
		}
		blocks, err := v.lowerMultiBlock(s.section.Block, s.part)
		if err != nil {
			return nil, err
		}
		s.appendT(blocks...)
	}

	for _, item := range def.Trace.Items {
		switch {
		case item.Search != nil:
			if err := v.handleSearch(item.Search); err != nil {
				return nil, err
			}
		case item.Include != nil:
			if err := v.handleInclude(item.Include); err != nil {
				return nil, err
			}
		case item.Instance != nil:
			if err := v.lowerComponentInstance(item.Instance); err != nil {
				return nil, err
			}
		}
	}

	if def.Save != nil {
		blocks, err := v.lowerMultiBlock(def.Save.Block, "save")
		if err != nil {
			return nil, err
		}
		v.state.AppendSave(blocks...)
	}
	if def.Finally != nil {
		blocks, err := v.lowerMultiBlock(def.Finally.Block, "final")
		if err != nil {
			return nil, err
		}
		v.state.AppendFinal(blocks...)
	}

	v.state.DetermineGroups()
	v.state.VerifyInstanceParameters()
	v.state.BuildFlowGraph()
	return v.state, nil
}

func (v *InstrVisitor) lowerInstrumentParameter(p *InstrParamAST) (InstrumentParameter, error) {
	param := InstrumentParameter{Name: p.Name}
	if p.Unit != nil {
		param.Unit = Unquote(p.Unit.Text)
	}
	dt := DataFloat
	switch p.Type {
	case "int":
		dt = DataInt
	case "string":
		dt = DataStr
	}
	if p.Default == nil {
		param.Value = ExprEmpty(dt)
		return param, nil
	}
	value, err := v.lowerExpr(p.Default)
	if err != nil {
		return param, err
	}
	if val, ok := value.value(); ok {
		val.SetDataType(dt)
	}
	param.Value = value
	return param, nil
}

func (v *InstrVisitor) lowerMetadata(m *MetadataAST, source string) MetaData {
	mime := m.Mime.Text
	if m.Mime.Kind == TokString {
		mime = Unquote(mime)
	}
	name := m.Name.Text
	if m.Name.Kind == TokString {
		name = Unquote(name)
	}
	return MetaData{
		Source:   source,
		Mimetype: mime,
		Name:     name,
		Value:    unparsedBlockText(m.Block),
	}
}

// unparsedBlockText strips the %{ %} delimiters from a block token.
func unparsedBlockText(tok Token) string {
	text := tok.Text
	if strings.HasPrefix(text, "%{") && strings.HasSuffix(text, "%}") {
		text = text[2 : len(text)-2]
	}
	return text
}

func (v *InstrVisitor) rawC(tok Token) RawC {
	return RawC{SourceFile: v.filename, LineNumber: tok.Line, Text: unparsedBlockText(tok)}
}

// lowerMultiBlock lowers a multi_block into RawC records, interleaving
// fresh %{ ... %} blocks with sections inherited from known component
// definitions, in source order.
func (v *InstrVisitor) lowerMultiBlock(mb *MultiBlockAST, part string) ([]RawC, error) {
	var out []RawC
	for _, item := range mb.Items {
		switch item.Kind {
		case BlockItem, ExtendItem:
			out = append(out, v.rawC(item.Block))
		case InheritItem:
			comp, err := v.reader.GetComponent(item.Ident.Text)
			if err != nil {
				return nil, err
			}
			out = append(out, compSection(comp, part)...)
		}
	}
	return out, nil
}

func compSection(comp *Comp, part string) []RawC {
	switch part {
	case "share":
		return comp.Share
	case "user":
		return comp.User
	case "declare":
		return comp.Declare
	case "initialize":
		return comp.Initialize
	case "trace":
		return comp.Trace
	case "save":
		return comp.Save
	case "final":
		return comp.Final
	case "display":
		return comp.Display
	}
	return nil
}

func runShellDirective(command string) error {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil
	}
	cmd := exec.Command(args[0], args[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("SHELL %q failed: %v (%s)", command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// handleSearch registers SEARCH registries. Shell commands are split
// without shell interpretation and every non-empty stdout line is
// treated as a path specification.
func (v *InstrVisitor) handleSearch(s *SearchAST) error {
	spec := Unquote(s.Literal.Text)
	if !s.Shell {
		return v.reader.HandleSearchKeyword(spec)
	}
	args := strings.Fields(spec)
	if len(args) == 0 {
		return nil
	}
	out, err := exec.Command(args[0], args[1:]...).Output()
	if err != nil {
		return fmt.Errorf("SEARCH SHELL %q failed: %v", spec, err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := v.reader.HandleSearchKeyword(line); err != nil {
			return err
		}
	}
	return nil
}

// handleInclude recursively loads another instrument and merges it:
// parameters (repeats ignored), metadata, C sections, and non-removable
// components.
func (v *InstrVisitor) handleInclude(inc *IncludeAST) error {
	name := strings.TrimSuffix(Unquote(inc.Literal.Text), ".instr")
	if v.destination != nil {
		return semanticErr(nil,
			"including %s from %s, which is itself included, is not supported", name, v.filename)
	}
	instr, err := v.reader.getInstrument(name, v.state, v.mode)
	if err != nil {
		return err
	}
	v.state.AddIncluded(instr.Name)
	for _, par := range instr.Parameters {
		if err := v.state.AddParameter(par, true); err != nil {
			return err
		}
	}
	for _, meta := range instr.Metadata {
		v.state.AddMetadata(meta)
	}
	v.state.AppendDeclare(instr.Declare...)
	v.state.AppendUser(instr.User...)
	v.state.AppendInitialize(instr.Initialize...)
	v.state.AppendSave(instr.Save...)
	v.state.AppendFinal(instr.Final...)
	for _, inst := range instr.Components {
		if !inst.Removable {
			if err := v.state.AddComponent(inst); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveComponentRef resolves PREVIOUS(_n) or a by-name reference
// against the current component list, falling through to the including
// instrument. Depths beyond that are a resolver error.
func (v *InstrVisitor) resolveComponentRef(ref *ComponentRefAST) (*Instance, error) {
	if ref.Kind == RefPrevious {
		instances := len(v.state.Components)
		if ref.Count <= instances {
			return v.state.LastComponent(ref.Count, true)
		}
		if v.destination != nil {
			return v.destination.LastComponent(ref.Count-instances, true)
		}
		return nil, semanticErr(ErrUnknownReference,
			"PREVIOUS count %d exceeds the %d component instances defined", ref.Count, instances)
	}
	if inst, err := v.state.GetComponent(ref.Name); err == nil {
		return inst, nil
	}
	if v.destination != nil {
		return v.destination.GetComponent(ref.Name)
	}
	return nil, semanticErr(ErrUnknownReference,
		"unknown component reference for instance named %s", ref.Name)
}

func (v *InstrVisitor) lowerReference(ref *ReferenceAST) (*Instance, error) {
	if ref.Absolute || ref.Ref == nil {
		return nil, nil
	}
	return v.resolveComponentRef(ref.Ref)
}

func (v *InstrVisitor) lowerCoords(coords [3]*ExprNode) ([3]Expr, error) {
	var out [3]Expr
	for i, c := range coords {
		e, err := v.lowerExpr(c)
		if err != nil {
			return out, err
		}
		out[i] = e
	}
	return out, nil
}

func (v *InstrVisitor) instanceName(name InstanceNameAST) string {
	switch name.Kind {
	case NameCopyIdent:
		return fmt.Sprintf("%s_%d", name.Ident.Text, len(v.state.Components)+1)
	case NameCopyAny:
		return fmt.Sprintf("Comp_%d", len(v.state.Components)+1)
	}
	return name.Ident.Text
}

func (v *InstrVisitor) lowerComponentInstance(node *ComponentInstanceAST) error {
	name := v.instanceName(node.Name)
	v.currentInstanceName = name
	defer func() {
		v.currentInstanceName = ""
		v.currentComp = nil
	}()

	var baseInstance *Instance
	if node.Type.Copy {
		ref, err := v.resolveComponentRef(node.Type.Ref)
		if err != nil {
			return err
		}
		baseInstance = ref
		v.currentComp = ref.Type
	} else {
		comp, err := v.reader.GetComponent(node.Type.Ident.Text)
		if err != nil {
			return err
		}
		v.currentComp = comp
	}

	atCoords, err := v.lowerCoords(node.Place.Coords)
	if err != nil {
		return err
	}
	atRef, err := v.lowerReference(node.Place.Ref)
	if err != nil {
		return err
	}
	at := VectorRef{Vector: NewVector(atCoords[0], atCoords[1], atCoords[2]), Ref: atRef}

	rotate := AnglesRef{Angles: ZeroAngles(), Ref: atRef}
	if node.Rotate != nil {
		rotCoords, err := v.lowerCoords(node.Rotate.Coords)
		if err != nil {
			return err
		}
		rotRef, err := v.lowerReference(node.Rotate.Ref)
		if err != nil {
			return err
		}
		rotate = AnglesRef{Angles: NewAngles(rotCoords[0], rotCoords[1], rotCoords[2]), Ref: rotRef}
	}

	var inst *Instance
	if baseInstance != nil {
		inst = CopyInstance(name, baseInstance, at, rotate)
	} else {
		inst = NewInstance(name, v.currentComp, at, rotate, v.mode)
	}

	for _, p := range node.Params {
		value, err := v.lowerInstanceParameter(p)
		if err != nil {
			return err
		}
		if err := inst.SetParameter(p.Name, value, baseInstance != nil); err != nil {
			return err
		}
	}
	if node.Removable != nil {
		inst.Removable = true
	}
	if node.Cpu != nil {
		inst.Cpu = true
	}
	if node.Split != nil {
		split := ExprInt(10)
		if node.Split.Expr != nil {
			if split, err = v.lowerExpr(node.Split.Expr); err != nil {
				return err
			}
		}
		inst.SetSplit(split)
	}
	if node.When != nil {
		when, err := v.lowerExpr(node.When.Expr)
		if err != nil {
			return err
		}
		if err := inst.SetWhen(when); err != nil {
			return err
		}
	}
	if node.Group != nil {
		inst.SetGroup(node.Group.NameTok.Text)
	}
	if node.Extend != nil {
		inst.SetExtend(v.rawC(node.Extend.Block))
	}
	if len(node.Jumps) > 0 {
		jumps := make([]Jump, 0, len(node.Jumps))
		for _, j := range node.Jumps {
			jump, err := v.lowerJump(j)
			if err != nil {
				return err
			}
			jumps = append(jumps, jump)
		}
		inst.SetJumps(jumps...)
	}
	for _, m := range node.Metadata {
		inst.AddMetadata(v.lowerMetadata(m, inst.Name))
	}

	// Inside an included instrument, REMOVABLE instances are dropped.
	if v.destination == nil || !inst.Removable {
		return v.state.AddComponent(inst)
	}
	return nil
}

func (v *InstrVisitor) lowerJump(j *JumpAST) (Jump, error) {
	condition, err := v.lowerExpr(j.Condition)
	if err != nil {
		return Jump{}, err
	}
	switch j.TargetKind {
	case JumpPrevious:
		target := "PREVIOUS"
		if j.Count > 1 {
			target = fmt.Sprintf("PREVIOUS_%d", j.Count)
		}
		return NewJump(target, -j.Count, j.Iterate, condition), nil
	case JumpMyself:
		return NewJump("MYSELF", 0, j.Iterate, condition), nil
	case JumpNext:
		target := "NEXT"
		if j.Count > 1 {
			target = fmt.Sprintf("NEXT_%d", j.Count)
		}
		return NewJump(target, j.Count, j.Iterate, condition), nil
	}
	return NewJump(j.TargetName, 0, j.Iterate, condition), nil
}

func (v *InstrVisitor) lowerInstanceParameter(p *InstanceParamAST) (Expr, error) {
	def, ok := v.currentComp.GetParameter(p.Name)
	if !ok {
		return Expr{}, semanticErr(ErrUnknownReference,
			"%s is not a known DEFINITION or SETTING parameter for %s", p.Name, v.currentComp.Name)
	}
	switch p.Kind {
	case InstanceParamNull:
		value := ExprStr("NULL")
		if val, ok := value.value(); ok {
			if dv, ok := def.Value.value(); ok && dv.NodeDataType() != DataUndefined {
				val.SetDataType(dv.NodeDataType())
			}
		}
		return value, nil
	case InstanceParamVector:
		value, err := v.lowerExpr(p.Value)
		if err != nil {
			return Expr{}, err
		}
		if val, ok := value.value(); ok {
			val.SetDataType(DataFloat)
		}
		return value, nil
	}
	value, err := v.lowerExpr(p.Value)
	if err != nil {
		return Expr{}, err
	}
	// A bare identifier of undefined type inherits the declared type.
	if val, ok := value.value(); ok && !value.IsOp() && val.NodeDataType() == DataUndefined {
		if dv, ok := def.Value.value(); ok {
			val.SetDataType(dv.NodeDataType())
			val.SetShapeType(dv.ShapeType())
		}
	}
	return value, nil
}

// lowerExpr lowers an expression parse tree to the expression IR with
// constant folding. Identifiers matching instrument parameter names are
// emitted as parameter references.
func (v *InstrVisitor) lowerExpr(node *ExprNode) (Expr, error) {
	return lowerExprNode(node, v.instrExprEnv())
}

// exprEnv supplies context-dependent expression lowering hooks.
type exprEnv struct {
	lookupParameter func(name string) (InstrumentParameter, bool)
	previousName    func(count int) (string, error)
	myselfName      func() (string, error)
}

func (v *InstrVisitor) instrExprEnv() exprEnv {
	return exprEnv{
		lookupParameter: v.state.GetParameter,
		previousName: func(count int) (string, error) {
			if n := len(v.state.Components); n > 0 {
				return v.state.Components[n-1].Name, nil
			}
			if v.destination != nil && len(v.destination.Components) > 0 {
				dest := v.destination.Components
				return dest[len(dest)-1].Name, nil
			}
			return "", semanticErr(ErrUnknownReference,
				"PREVIOUS keyword used in expression before any components defined")
		},
		myselfName: func() (string, error) {
			if v.currentInstanceName == "" {
				return "", semanticErr(ErrUnknownReference,
					"MYSELF keyword used in expression outside a component instance")
			}
			return v.currentInstanceName, nil
		},
	}
}

// compExprEnv lowers expressions in component definitions, where no
// instrument parameters exist.
func compExprEnv() exprEnv {
	return exprEnv{
		lookupParameter: func(string) (InstrumentParameter, bool) {
			return InstrumentParameter{}, false
		},
		previousName: func(int) (string, error) {
			return "", semanticErr(ErrUnknownReference, "PREVIOUS keyword is not valid in a component definition")
		},
		myselfName: func() (string, error) {
			return "", semanticErr(ErrUnknownReference, "MYSELF keyword is not valid in a component definition")
		},
	}
}

func lowerExprNode(node *ExprNode, env exprEnv) (Expr, error) {
	switch node.Kind {
	case ExprIntLit:
		n, err := strconv.ParseInt(node.Name, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(node.Name, 64)
			if ferr != nil {
				return Expr{}, err
			}
			return ExprFloat(f), nil
		}
		return ExprInt(n), nil
	case ExprFloatLit:
		f, err := strconv.ParseFloat(node.Name, 64)
		if err != nil {
			return Expr{}, err
		}
		return ExprFloat(f), nil
	case ExprStringLit:
		return ExprStr(node.Name), nil
	case ExprNullLit:
		return ExprStr("NULL"), nil
	case ExprPreviousRef:
		name, err := env.previousName(node.Count)
		if err != nil {
			return Expr{}, err
		}
		return ExprStr(name), nil
	case ExprMyselfRef:
		name, err := env.myselfName()
		if err != nil {
			return Expr{}, err
		}
		return ExprStr(name), nil
	case ExprIdent:
		if param, ok := env.lookupParameter(node.Name); ok {
			val := &Value{payload: node.Name, object: ObjectParameter, data: param.Value.DataType()}
			return NewExpr(val), nil
		}
		return ExprID(node.Name), nil
	case ExprUnaryNode:
		operand, err := lowerExprNode(node.X, env)
		if err != nil {
			return Expr{}, err
		}
		switch node.Op {
		case "-":
			return Neg(operand), nil
		case "+":
			return operand, nil
		}
		return Unary(node.Op, operand), nil
	case ExprBinaryNode:
		left, err := lowerExprNode(node.X, env)
		if err != nil {
			return Expr{}, err
		}
		right, err := lowerExprNode(node.Y, env)
		if err != nil {
			return Expr{}, err
		}
		switch node.Op {
		case "+":
			return Add(left, right), nil
		case "-":
			return Sub(left, right), nil
		case "*":
			return Mul(left, right), nil
		case "/":
			return Div(left, right)
		case "__pow__":
			return Pow(left, right), nil
		}
		return Binary(node.Op, left, right), nil
	case ExprTrinaryNode:
		test, err := lowerExprNode(node.X, env)
		if err != nil {
			return Expr{}, err
		}
		then, err := lowerExprNode(node.Y, env)
		if err != nil {
			return Expr{}, err
		}
		els, err := lowerExprNode(node.Z, env)
		if err != nil {
			return Expr{}, err
		}
		return Trinary(test, then, els), nil
	case ExprCallNode:
		args := make([]Expr, 0, len(node.List))
		for _, a := range node.List {
			arg, err := lowerExprNode(a, env)
			if err != nil {
				return Expr{}, err
			}
			args = append(args, arg)
		}
		return Call(node.Name, args), nil
	case ExprIndexNode:
		array, err := lowerExprNode(node.X, env)
		if err != nil {
			return Expr{}, err
		}
		if val, ok := array.value(); ok {
			val.SetShapeType(ShapeVector)
		}
		index, err := lowerExprNode(node.Y, env)
		if err != nil {
			return Expr{}, err
		}
		return Binary("__getitem__", array, index), nil
	case ExprMemberNode:
		base, err := lowerExprNode(node.X, env)
		if err != nil {
			return Expr{}, err
		}
		return Binary("__struct_access__", base, ExprID(node.Name)), nil
	case ExprPointerNode:
		base, err := lowerExprNode(node.X, env)
		if err != nil {
			return Expr{}, err
		}
		return Binary("__pointer_access__", base, ExprID(node.Name)), nil
	case ExprGroupNode:
		inner, err := lowerExprNode(node.X, env)
		if err != nil {
			return Expr{}, err
		}
		return GroupExpr(inner), nil
	case ExprListNode:
		items := make([]Expr, 0, len(node.List))
		for _, it := range node.List {
			item, err := lowerExprNode(it, env)
			if err != nil {
				return Expr{}, err
			}
			items = append(items, item)
		}
		return NewExpr(ArrayValue(items)), nil
	}
	return Expr{}, fmt.Errorf("unhandled expression node kind %d", node.Kind)
}

// InstrParameters extracts only the parameter list from instrument
// source, without resolving components or lowering the trace.
func InstrParameters(source []byte, name string) ([]InstrumentParameter, error) {
	ast, err := ParseInstrSource(source, name)
	if err != nil {
		return nil, err
	}
	v := &InstrVisitor{state: NewInstr(), filename: name}
	var out []InstrumentParameter
	for _, p := range ast.Def.Params {
		param, err := v.lowerInstrumentParameter(p)
		if err != nil {
			return nil, err
		}
		out = append(out, param)
	}
	return out, nil
}
