// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

// ParseCompSource lexes and parses a .comp source into its concrete parse
// tree.
func ParseCompSource(src []byte, name string) (*CompFileAST, error) {
	ts, err := Lex(src, name)
	if err != nil {
		return nil, err
	}
	p := newParser(ts, "Component", name)
	def, err := p.parseComponentDefinition()
	if err != nil {
		return nil, err
	}
	return &CompFileAST{Stream: ts, Def: def}, nil
}

func (p *parser) parseComponentDefinition() (*ComponentDefAST, error) {
	def := &ComponentDefAST{}
	var err error
	if def.DefineTok, err = p.expectKeyword("DEFINE"); err != nil {
		return nil, err
	}
	if _, err = p.expectKeyword("COMPONENT"); err != nil {
		return nil, err
	}
	if def.NameTok, err = p.expect(TokIdentifier, "component name"); err != nil {
		return nil, err
	}
	def.Name = def.NameTok.Text
	if _, ok := p.acceptKeyword("COPY"); ok {
		from, err := p.expect(TokIdentifier, "copied component name")
		if err != nil {
			return nil, err
		}
		def.CopyFrom = &from
	}

	for {
		switch {
		case p.atKeyword("DEFINITION"):
			p.next()
			if _, err = p.expectKeyword("PARAMETERS"); err != nil {
				return nil, err
			}
			if def.DefParams, err = p.parseComponentParameters(); err != nil {
				return nil, err
			}
		case p.atKeyword("SETTING"):
			p.next()
			if _, err = p.expectKeyword("PARAMETERS"); err != nil {
				return nil, err
			}
			if def.SetParams, err = p.parseComponentParameters(); err != nil {
				return nil, err
			}
		case p.atKeyword("OUTPUT"):
			p.next()
			if _, err = p.expectKeyword("PARAMETERS"); err != nil {
				return nil, err
			}
			if def.OutParams, err = p.parseComponentParameters(); err != nil {
				return nil, err
			}
		case p.atKeyword("CATEGORY"):
			tok := p.next()
			value := p.cur()
			if value.Kind != TokIdentifier && value.Kind != TokString {
				return nil, p.errorf(value, "expected category, found %q", value.Text)
			}
			p.next()
			def.Category = &CategoryAST{Tok: tok, Value: value}
		case p.atKeyword("DEPENDENCY"):
			tok := p.next()
			lit, err := p.expect(TokString, "dependency string")
			if err != nil {
				return nil, err
			}
			def.Dependency = &DependencyAST{Tok: tok, Literal: lit}
		case p.atKeyword("METADATA"):
			meta, err := p.parseMetadata()
			if err != nil {
				return nil, err
			}
			def.Metadata = append(def.Metadata, meta)
		case p.atKeyword("NOACC"):
			tok := p.next()
			def.NoAcc = &tok
		case p.atKeyword("SHELL"):
			tok := p.next()
			lit, err := p.expect(TokString, "shell command")
			if err != nil {
				return nil, err
			}
			def.Shell = &ShellAST{Tok: tok, Literal: lit}
		case p.atKeyword("SHARE"):
			if def.Share, err = p.parseSection("SHARE"); err != nil {
				return nil, err
			}
		case p.atKeyword("USERVARS"):
			if def.UserVars, err = p.parseSection("USERVARS"); err != nil {
				return nil, err
			}
		case p.atKeyword("DECLARE"):
			if def.Declare, err = p.parseSection("DECLARE"); err != nil {
				return nil, err
			}
		case p.atKeyword("INITIALIZE") || p.atKeyword("INITIALISE"):
			if def.Initialize, err = p.parseSection("INITIALIZE"); err != nil {
				return nil, err
			}
		case p.atKeyword("TRACE"):
			if def.Trace, err = p.parseSection("TRACE"); err != nil {
				return nil, err
			}
		case p.atKeyword("SAVE"):
			if def.Save, err = p.parseSection("SAVE"); err != nil {
				return nil, err
			}
		case p.atKeyword("FINALLY"):
			if def.Finally, err = p.parseSection("FINALLY"); err != nil {
				return nil, err
			}
		case p.atKeyword("MCDISPLAY") || p.atKeyword("DISPLAY"):
			if def.Display, err = p.parseSection("MCDISPLAY"); err != nil {
				return nil, err
			}
		case p.atKeyword("END"):
			def.EndTok = p.next()
			return def, nil
		default:
			return nil, p.errorf(p.cur(), "unexpected %q in component definition", p.cur().Text)
		}
	}
}

func (p *parser) parseComponentParameters() (*CompParamsAST, error) {
	open, err := p.expect(TokLParen, "(")
	if err != nil {
		return nil, err
	}
	set := &CompParamsAST{FirstTok: open}
	if !p.at(TokRParen) {
		for {
			param, err := p.parseComponentParameter()
			if err != nil {
				return nil, err
			}
			set.Params = append(set.Params, param)
			if _, ok := p.accept(TokComma); !ok {
				break
			}
		}
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	return set, nil
}

func (p *parser) parseComponentParameter() (*CompParamAST, error) {
	param := &CompParamAST{Type: CompParamDouble}
	cur := p.cur()
	if cur.Kind == TokIdentifier && (p.peek().Kind == TokIdentifier || p.peek().Kind == TokStar) {
		switch {
		case cur.Is("double"):
			p.next()
			if _, ok := p.accept(TokStar); ok {
				param.Type = CompParamDoubleArray
			}
		case cur.Is("int"):
			p.next()
			if _, ok := p.accept(TokStar); ok {
				param.Type = CompParamIntArray
			} else {
				param.Type = CompParamInt
			}
		case cur.Is("string"):
			p.next()
			param.Type = CompParamString
		case cur.Is("char"):
			p.next()
			p.accept(TokStar)
			param.Type = CompParamString
		case cur.Is("vector"):
			p.next()
			param.Type = CompParamVector
		case cur.Is("symbol"):
			p.next()
			param.Type = CompParamSymbol
		}
	}
	nameTok, err := p.expect(TokIdentifier, "parameter name")
	if err != nil {
		return nil, err
	}
	param.NameTok = nameTok
	param.Name = nameTok.Text
	if _, ok := p.accept(TokAssign); ok {
		param.Assign = true
		switch {
		case p.cur().Is("NULL"):
			tok := p.next()
			param.Default = &ExprNode{Kind: ExprNullLit, Name: "NULL", First: tok, Last: tok}
		case p.at(TokLBrace):
			list, err := p.parseInitializerList()
			if err != nil {
				return nil, err
			}
			param.Default = list
		default:
			def, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			param.Default = def
		}
	}
	return param, nil
}
