// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode


// LowerComp lowers a component parse tree into the Comp IR. The reader
// resolves COPY bases and INHERIT sections.
func LowerComp(ast *CompFileAST, reader *Reader) (*Comp, error) {
	def := ast.Def
	comp := NewComp(def.Name)

	if def.CopyFrom != nil {
		base, err := reader.GetComponent(def.CopyFrom.Text)
		if err != nil {
			return nil, err
		}
		copyCompInto(comp, base)
	}

	if def.DefParams != nil {
		for _, p := range def.DefParams.Params {
			param, err := lowerCompParameter(p)
			if err != nil {
				return nil, err
			}
			if err := comp.AddDefine(param); err != nil {
				return nil, err
			}
		}
	}
	if def.SetParams != nil {
		for _, p := range def.SetParams.Params {
			param, err := lowerCompParameter(p)
			if err != nil {
				return nil, err
			}
			if err := comp.AddSetting(param); err != nil {
				return nil, err
			}
		}
	}
	if def.OutParams != nil {
		for _, p := range def.OutParams.Params {
			param, err := lowerCompParameter(p)
			if err != nil {
				return nil, err
			}
			if err := comp.AddOutput(param); err != nil {
				return nil, err
			}
		}
	}

	if def.Category != nil {
		value := def.Category.Value.Text
		if def.Category.Value.Kind == TokString {
			value = Unquote(value)
		}
		comp.Category = value
	}
	if def.Dependency != nil {
		comp.Dependency = Unquote(def.Dependency.Literal.Text)
	}
	for _, m := range def.Metadata {
		mime := m.Mime.Text
		if m.Mime.Kind == TokString {
			mime = Unquote(mime)
		}
		name := m.Name.Text
		if m.Name.Kind == TokString {
			name = Unquote(name)
		}
		comp.AddMetadata(MetaData{
			Source:   comp.Name,
			Mimetype: mime,
			Name:     name,
			Value:    unparsedBlockText(m.Block),
		})
	}
	if def.NoAcc != nil {
		comp.NoAcc()
	}

	sections := []struct {
		section *SectionAST
		sink    *[]RawC
		part    string
	}{
		{def.Share, &comp.Share, "share"},
		{def.UserVars, &comp.User, "user"},
		{def.Declare, &comp.Declare, "declare"},
		{def.Initialize, &comp.Initialize, "initialize"},
		{def.Trace, &comp.Trace, "trace"},
		{def.Save, &comp.Save, "save"},
		{def.Finally, &comp.Final, "final"},
		{def.Display, &comp.Display, "display"},
	}
	for _, s := range sections {
		if s.section == nil {
			continue
		}
		blocks, err := lowerCompMultiBlock(s.section.Block, s.part, ast.Stream.Filename, reader)
		if err != nil {
			return nil, err
		}
		*s.sink = append(*s.sink, blocks...)
	}
	return comp, nil
}

// copyCompInto seeds a component from the definition it copies.
func copyCompInto(dst, src *Comp) {
	dst.Category = src.Category
	dst.Define = append(dst.Define, src.Define...)
	dst.Setting = append(dst.Setting, src.Setting...)
	dst.Output = append(dst.Output, src.Output...)
	dst.Metadata = append(dst.Metadata, src.Metadata...)
	dst.Dependency = src.Dependency
	dst.Acc = src.Acc
	dst.Share = append(dst.Share, src.Share...)
	dst.User = append(dst.User, src.User...)
	dst.Declare = append(dst.Declare, src.Declare...)
	dst.Initialize = append(dst.Initialize, src.Initialize...)
	dst.Trace = append(dst.Trace, src.Trace...)
	dst.Save = append(dst.Save, src.Save...)
	dst.Final = append(dst.Final, src.Final...)
	dst.Display = append(dst.Display, src.Display...)
}

func lowerCompMultiBlock(mb *MultiBlockAST, part, filename string, reader *Reader) ([]RawC, error) {
	var out []RawC
	for _, item := range mb.Items {
		switch item.Kind {
		case BlockItem, ExtendItem:
			out = append(out, RawC{
				SourceFile: filename,
				LineNumber: item.Block.Line,
				Text:       unparsedBlockText(item.Block),
			})
		case InheritItem:
			base, err := reader.GetComponent(item.Ident.Text)
			if err != nil {
				return nil, err
			}
			out = append(out, compSection(base, part)...)
		}
	}
	return out, nil
}

// lowerCompParameter lowers one typed component parameter declaration.
func lowerCompParameter(p *CompParamAST) (ComponentParameter, error) {
	param := ComponentParameter{Name: p.Name}
	env := compExprEnv()

	var value Expr
	if p.Default != nil {
		v, err := lowerExprNode(p.Default, env)
		if err != nil {
			return param, err
		}
		value = v
	}

	coerce := func(dt DataType, shape ShapeType) {
		if value.IsNil() {
			val := EmptyValue(dt)
			val.SetShapeType(shape)
			value = NewExpr(val)
			return
		}
		if val, ok := value.value(); ok {
			if dt != DataUndefined {
				val.SetDataType(dt)
			}
			if shape == ShapeVector {
				val.SetShapeType(ShapeVector)
			}
		}
	}

	switch p.Type {
	case CompParamDouble:
		coerce(DataFloat, ShapeScalar)
	case CompParamInt:
		coerce(DataInt, ShapeScalar)
	case CompParamString:
		coerce(DataStr, ShapeScalar)
	case CompParamVector, CompParamDoubleArray:
		coerce(DataFloat, ShapeVector)
	case CompParamIntArray:
		coerce(DataInt, ShapeVector)
	case CompParamSymbol:
		coerce(DataUndefined, ShapeScalar)
	}
	param.Value = value
	return param, nil
}

// ParseComp parses component source without a reader, for definitions
// that use neither COPY nor INHERIT.
func ParseComp(source []byte, name string) (*Comp, error) {
	ast, err := ParseCompSource(source, name)
	if err != nil {
		return nil, err
	}
	return LowerComp(ast, newDetachedReader())
}

// newDetachedReader builds a reader with no registries, for lowering
// self-contained component sources.
func newDetachedReader() *Reader {
	r := NewReader(&Options{Registries: []Registry{
		NewInMemoryRegistry("empty", map[string]string{}),
	}})
	return r
}
