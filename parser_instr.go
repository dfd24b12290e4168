// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

// ParseInstrSource lexes and parses a .instr source into its concrete
// parse tree.
func ParseInstrSource(src []byte, name string) (*InstrFileAST, error) {
	ts, err := Lex(src, name)
	if err != nil {
		return nil, err
	}
	p := newParser(ts, "Instrument", name)
	def, err := p.parseInstrumentDefinition()
	if err != nil {
		return nil, err
	}
	return &InstrFileAST{Stream: ts, Def: def}, nil
}

// parsePlace parses an AT or ROTATED clause: keyword coords reference.
func (p *parser) parsePlace() (*PlaceAST, error) {
	tok := p.next()
	coords, err := p.parseCoords()
	if err != nil {
		return nil, err
	}
	ref, err := p.parseReference()
	if err != nil {
		return nil, err
	}
	return &PlaceAST{Tok: tok, Coords: coords, Ref: ref}, nil
}

func (p *parser) parseInstrumentDefinition() (*InstrumentDefAST, error) {
	def := &InstrumentDefAST{}
	var err error
	if def.DefineTok, err = p.expectKeyword("DEFINE"); err != nil {
		return nil, err
	}
	if _, err = p.expectKeyword("INSTRUMENT"); err != nil {
		return nil, err
	}
	if def.NameTok, err = p.expect(TokIdentifier, "instrument name"); err != nil {
		return nil, err
	}
	def.Name = def.NameTok.Text
	if _, err = p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	if !p.at(TokRParen) {
		for {
			param, err := p.parseInstrumentParameter()
			if err != nil {
				return nil, err
			}
			def.Params = append(def.Params, param)
			if _, ok := p.accept(TokComma); !ok {
				break
			}
		}
	}
	if _, err = p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}

	// Header directives may appear in any order before TRACE.
	for {
		switch {
		case p.atKeyword("SHELL"):
			tok := p.next()
			lit, err := p.expect(TokString, "shell command")
			if err != nil {
				return nil, err
			}
			def.Shell = &ShellAST{Tok: tok, Literal: lit}
		case p.atKeyword("SEARCH"):
			search, err := p.parseSearch()
			if err != nil {
				return nil, err
			}
			def.Searches = append(def.Searches, search)
		case p.atKeyword("METADATA"):
			meta, err := p.parseMetadata()
			if err != nil {
				return nil, err
			}
			def.Metadata = append(def.Metadata, meta)
		case p.atKeyword("DEPENDENCY"):
			tok := p.next()
			lit, err := p.expect(TokString, "dependency string")
			if err != nil {
				return nil, err
			}
			def.Dependency = &DependencyAST{Tok: tok, Literal: lit}
		case p.atKeyword("DECLARE"):
			if def.Declare, err = p.parseSection("DECLARE"); err != nil {
				return nil, err
			}
		case p.atKeyword("USERVARS"):
			if def.UserVars, err = p.parseSection("USERVARS"); err != nil {
				return nil, err
			}
		case p.atKeyword("INITIALIZE") || p.atKeyword("INITIALISE"):
			if def.Initialize, err = p.parseSection("INITIALIZE"); err != nil {
				return nil, err
			}
		default:
			goto trace
		}
	}

trace:
	if def.Trace, err = p.parseTrace(); err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atKeyword("SAVE"):
			if def.Save, err = p.parseSection("SAVE"); err != nil {
				return nil, err
			}
			continue
		case p.atKeyword("FINALLY"):
			if def.Finally, err = p.parseSection("FINALLY"); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if def.EndTok, err = p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return def, nil
}

// parseSection parses a keyword followed by a multi_block.
func (p *parser) parseSection(keyword string) (*SectionAST, error) {
	tok := p.next()
	block, err := p.parseMultiBlock()
	if err != nil {
		return nil, err
	}
	return &SectionAST{KeywordTok: tok, Keyword: keyword, Block: block}, nil
}

func (p *parser) parseSearch() (*SearchAST, error) {
	tok, err := p.expectKeyword("SEARCH")
	if err != nil {
		return nil, err
	}
	shell := false
	if _, ok := p.acceptKeyword("SHELL"); ok {
		shell = true
	}
	lit, err := p.expect(TokString, "search path")
	if err != nil {
		return nil, err
	}
	return &SearchAST{Tok: tok, Shell: shell, Literal: lit}, nil
}

// parseInstrumentParameter parses one typed instrument parameter with an
// optional /"unit" and default.
func (p *parser) parseInstrumentParameter() (*InstrParamAST, error) {
	param := &InstrParamAST{}
	cur := p.cur()
	if cur.Kind == TokIdentifier && p.peek().Kind == TokIdentifier {
		switch {
		case cur.Is("double"):
			param.Type = "double"
			p.next()
		case cur.Is("int"):
			param.Type = "int"
			p.next()
		case cur.Is("string"):
			param.Type = "string"
			p.next()
		case cur.Is("char"):
			// char* is accepted as a synonym for string parameters
			p.next()
			p.accept(TokStar)
			param.Type = "string"
		}
	}
	nameTok, err := p.expect(TokIdentifier, "parameter name")
	if err != nil {
		return nil, err
	}
	param.NameTok = nameTok
	param.Name = nameTok.Text
	if _, ok := p.accept(TokSlash); ok {
		unit, err := p.expect(TokString, "parameter unit")
		if err != nil {
			return nil, err
		}
		param.Unit = &unit
	}
	if _, ok := p.accept(TokAssign); ok {
		param.Assign = true
		def, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		param.Default = def
	}
	return param, nil
}

func (p *parser) parseTrace() (*TraceAST, error) {
	tok, err := p.expectKeyword("TRACE")
	if err != nil {
		return nil, err
	}
	trace := &TraceAST{Tok: tok}
	for {
		switch {
		case p.atKeyword("SEARCH"):
			search, err := p.parseSearch()
			if err != nil {
				return nil, err
			}
			trace.Items = append(trace.Items, TraceItemAST{Search: search})
		case p.at(TokInclude):
			inc := p.next()
			lit, err := p.expect(TokString, "include file name")
			if err != nil {
				return nil, err
			}
			trace.Items = append(trace.Items, TraceItemAST{Include: &IncludeAST{Tok: inc, Literal: lit}})
		case p.atKeyword("COMPONENT") || p.atKeyword("REMOVABLE") ||
			p.atKeyword("CPU") || p.atKeyword("SPLIT"):
			inst, err := p.parseComponentInstance()
			if err != nil {
				return nil, err
			}
			trace.Items = append(trace.Items, TraceItemAST{Instance: inst})
		default:
			return trace, nil
		}
	}
}

func (p *parser) parseComponentInstance() (*ComponentInstanceAST, error) {
	inst := &ComponentInstanceAST{First: p.cur()}
	for {
		if tok, ok := p.acceptKeyword("REMOVABLE"); ok {
			inst.Removable = &tok
			continue
		}
		if tok, ok := p.acceptKeyword("CPU"); ok {
			inst.Cpu = &tok
			continue
		}
		if tok, ok := p.acceptKeyword("SPLIT"); ok {
			split := &SplitAST{Tok: tok}
			if !p.atKeyword("COMPONENT") {
				expr, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				split.Expr = expr
			}
			inst.Split = split
			continue
		}
		break
	}
	if _, err := p.expectKeyword("COMPONENT"); err != nil {
		return nil, err
	}
	name, err := p.parseInstanceName()
	if err != nil {
		return nil, err
	}
	inst.Name = name
	if _, err := p.expect(TokAssign, "="); err != nil {
		return nil, err
	}
	typ, err := p.parseComponentType()
	if err != nil {
		return nil, err
	}
	inst.Type = typ
	if _, err := p.expect(TokLParen, "("); err != nil {
		return nil, err
	}
	if !p.at(TokRParen) {
		for {
			param, err := p.parseInstanceParameter()
			if err != nil {
				return nil, err
			}
			inst.Params = append(inst.Params, param)
			if _, ok := p.accept(TokComma); !ok {
				break
			}
		}
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}

	// Trailing clauses. WHEN may precede or follow the placement.
	for {
		switch {
		case p.atKeyword("WHEN"):
			tok := p.next()
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			inst.When = &WhenAST{Tok: tok, Expr: expr}
		case p.atKeyword("AT"):
			place, err := p.parsePlace()
			if err != nil {
				return nil, err
			}
			inst.Place = place
		case p.atKeyword("ROTATED"):
			place, err := p.parsePlace()
			if err != nil {
				return nil, err
			}
			inst.Rotate = place
		case p.atKeyword("GROUP"):
			tok := p.next()
			nameTok, err := p.expect(TokIdentifier, "group name")
			if err != nil {
				return nil, err
			}
			inst.Group = &GroupRefAST{Tok: tok, NameTok: nameTok}
		case p.atKeyword("EXTEND"):
			tok := p.next()
			block, err := p.expect(TokUnparsedBlock, "%{ ... %} block")
			if err != nil {
				return nil, err
			}
			inst.Extend = &ExtendAST{Tok: tok, Block: block}
		case p.atKeyword("JUMP"):
			jump, err := p.parseJump()
			if err != nil {
				return nil, err
			}
			inst.Jumps = append(inst.Jumps, jump)
		case p.atKeyword("METADATA"):
			meta, err := p.parseMetadata()
			if err != nil {
				return nil, err
			}
			inst.Metadata = append(inst.Metadata, meta)
		default:
			if inst.Place == nil {
				return nil, p.errorf(p.cur(), "component instance %s lacks an AT placement", name.Ident.Text)
			}
			return inst, nil
		}
	}
}

func (p *parser) parseInstanceName() (InstanceNameAST, error) {
	first := p.cur()
	if tok, ok := p.acceptKeyword("COPY"); ok {
		if p.at(TokLParen) {
			p.next()
			ident, err := p.expect(TokIdentifier, "instance name")
			if err != nil {
				return InstanceNameAST{}, err
			}
			closing, err := p.expect(TokRParen, ")")
			if err != nil {
				return InstanceNameAST{}, err
			}
			return InstanceNameAST{Kind: NameCopyIdent, Ident: ident, First: first, Last: closing}, nil
		}
		return InstanceNameAST{Kind: NameCopyAny, First: first, Last: tok}, nil
	}
	ident, err := p.expect(TokIdentifier, "instance name")
	if err != nil {
		return InstanceNameAST{}, err
	}
	return InstanceNameAST{Kind: NameIdent, Ident: ident, First: first, Last: ident}, nil
}

func (p *parser) parseComponentType() (ComponentTypeAST, error) {
	first := p.cur()
	if _, ok := p.acceptKeyword("COPY"); ok {
		if _, err := p.expect(TokLParen, "("); err != nil {
			return ComponentTypeAST{}, err
		}
		ref, err := p.parseComponentRef()
		if err != nil {
			return ComponentTypeAST{}, err
		}
		closing, err := p.expect(TokRParen, ")")
		if err != nil {
			return ComponentTypeAST{}, err
		}
		return ComponentTypeAST{Copy: true, Ref: ref, First: first, Last: closing}, nil
	}
	ident, err := p.expect(TokIdentifier, "component type name")
	if err != nil {
		return ComponentTypeAST{}, err
	}
	return ComponentTypeAST{Ident: ident, First: first, Last: ident}, nil
}

func (p *parser) parseInstanceParameter() (*InstanceParamAST, error) {
	nameTok, err := p.expect(TokIdentifier, "parameter name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokAssign, "="); err != nil {
		return nil, err
	}
	param := &InstanceParamAST{NameTok: nameTok, Name: nameTok.Text}
	switch {
	case p.cur().Is("NULL"):
		tok := p.next()
		param.Kind = InstanceParamNull
		param.Value = &ExprNode{Kind: ExprNullLit, Name: "NULL", First: tok, Last: tok}
	case p.at(TokLBrace):
		list, err := p.parseInitializerList()
		if err != nil {
			return nil, err
		}
		param.Kind = InstanceParamVector
		param.Value = list
	default:
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		param.Kind = InstanceParamExpr
		param.Value = value
	}
	return param, nil
}

func (p *parser) parseJump() (*JumpAST, error) {
	tok, err := p.expectKeyword("JUMP")
	if err != nil {
		return nil, err
	}
	jump := &JumpAST{Tok: tok}
	target := p.cur()
	if target.Kind != TokIdentifier {
		return nil, p.errorf(target, "expected jump target, found %q", target.Text)
	}
	jump.TargetFirst = target
	jump.TargetLast = target
	switch {
	case target.Is("MYSELF"):
		p.next()
		jump.TargetKind = JumpMyself
	default:
		if n, ok := previousCount(target.Text); ok {
			p.next()
			jump.TargetKind = JumpPrevious
			jump.Count = n
		} else if n, ok := nextCount(target.Text); ok {
			p.next()
			jump.TargetKind = JumpNext
			jump.Count = n
		} else {
			p.next()
			jump.TargetKind = JumpIdent
			jump.TargetName = target.Text
		}
	}
	switch {
	case p.atKeyword("WHEN"):
		p.next()
	case p.atKeyword("ITERATE"):
		p.next()
		jump.Iterate = true
	default:
		return nil, p.errorf(p.cur(), "expected WHEN or ITERATE, found %q", p.cur().Text)
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	jump.Condition = cond
	return jump, nil
}
