// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Concrete parse trees for the McInstr and McComp dialects. Nodes retain
// the tokens that produced them so the canonical formatter can re-emit
// verbatim source slices and interleave hidden-channel comments.

package mccode

// ExprKind identifies an expression parse-tree node.
type ExprKind uint8

// Expression node kinds.
const (
	ExprIdent ExprKind = iota
	ExprIntLit
	ExprFloatLit
	ExprStringLit
	ExprNullLit
	ExprPreviousRef
	ExprMyselfRef
	ExprUnaryNode
	ExprBinaryNode
	ExprTrinaryNode
	ExprCallNode
	ExprIndexNode
	ExprMemberNode
	ExprPointerNode
	ExprGroupNode
	ExprListNode
)

// ExprNode is a concrete expression parse-tree node.
type ExprNode struct {
	Kind  ExprKind
	Op    string      // operator text for unary and binary nodes
	Name  string      // identifier or function name
	X     *ExprNode   // operand / left / test
	Y     *ExprNode   // right / then
	Z     *ExprNode   // else
	List  []*ExprNode // call arguments or initializer items
	Count int         // PREVIOUS_n count
	First Token       // first token of the node
	Last  Token       // last token of the node
}

// Span returns the verbatim source text of the node.
func (n *ExprNode) Span(ts *TokenStream) string {
	return ts.Text(n.First.Offset, n.Last.End)
}

// MultiBlockItemKind identifies a multi_block entry.
type MultiBlockItemKind uint8

// Multi-block item kinds.
const (
	BlockItem MultiBlockItemKind = iota
	InheritItem
	ExtendItem
)

// MultiBlockItem is one entry of a multi_block production: a fresh
// unparsed block, a named inheritance, or an EXTEND block.
type MultiBlockItem struct {
	Kind       MultiBlockItemKind
	KeywordTok Token // INHERIT or EXTEND keyword, when present
	Ident      Token // inherited component name
	Block      Token // TokUnparsedBlock
}

// MultiBlockAST is a sequence of multi-block items in source order.
type MultiBlockAST struct {
	Items []MultiBlockItem
}

// SectionAST is a named C-section such as DECLARE or TRACE.
type SectionAST struct {
	KeywordTok Token
	Keyword    string // canonical upper-case keyword
	Block      *MultiBlockAST
}

// MetadataAST is a METADATA mime name %{ ... %} entry.
type MetadataAST struct {
	Tok   Token
	Mime  Token // identifier or string literal
	Name  Token // identifier or string literal
	Block Token // TokUnparsedBlock
}

// DependencyAST is a DEPENDENCY "flags" directive.
type DependencyAST struct {
	Tok     Token
	Literal Token
}

// ShellAST is a SHELL "command" directive.
type ShellAST struct {
	Tok     Token
	Literal Token
}

// SearchAST is a SEARCH "path" or SEARCH SHELL "command" directive.
type SearchAST struct {
	Tok     Token
	Shell   bool
	Literal Token
}

// IncludeAST is a %include "file.instr" directive.
type IncludeAST struct {
	Tok     Token
	Literal Token
}

// InstrParamAST is one typed instrument parameter declaration.
type InstrParamAST struct {
	Type    string // "", "double", "int", "string"
	NameTok Token
	Name    string
	Unit    *Token // string literal, nil when absent
	Assign  bool
	Default *ExprNode // nil when no default
}

// ComponentRefKind identifies the form of a component reference.
type ComponentRefKind uint8

// Component reference kinds.
const (
	RefNamed ComponentRefKind = iota
	RefPrevious
)

// ComponentRefAST references another instance by name or via
// PREVIOUS(_n).
type ComponentRefAST struct {
	Kind  ComponentRefKind
	Count int // PREVIOUS count, 1 for bare PREVIOUS
	Name  string
	First Token
	Last  Token
}

// ReferenceAST is a placement reference: ABSOLUTE, RELATIVE ABSOLUTE, or
// RELATIVE ref.
type ReferenceAST struct {
	Absolute bool
	Ref      *ComponentRefAST
}

// PlaceAST is an AT or ROTATED clause.
type PlaceAST struct {
	Tok    Token
	Coords [3]*ExprNode
	Ref    *ReferenceAST
}

// InstanceNameKind identifies how an instance was named.
type InstanceNameKind uint8

// Instance name kinds.
const (
	NameIdent InstanceNameKind = iota
	NameCopyIdent
	NameCopyAny
)

// InstanceNameAST is the name clause of a COMPONENT production.
type InstanceNameAST struct {
	Kind  InstanceNameKind
	Ident Token // for NameIdent and NameCopyIdent
	First Token
	Last  Token
}

// ComponentTypeAST is the type clause of a COMPONENT production: a
// component type name or a COPY(ref) of an existing instance.
type ComponentTypeAST struct {
	Copy  bool
	Ident Token            // type name when not a copy
	Ref   *ComponentRefAST // copied instance when Copy
	First Token
	Last  Token
}

// InstanceParamKind identifies an instance parameter assignment form.
type InstanceParamKind uint8

// Instance parameter kinds.
const (
	InstanceParamExpr InstanceParamKind = iota
	InstanceParamNull
	InstanceParamVector
)

// InstanceParamAST is one name=value assignment in an instance parameter
// list.
type InstanceParamAST struct {
	Kind    InstanceParamKind
	NameTok Token
	Name    string
	Value   *ExprNode // expression or initializer list
}

// JumpTargetKind identifies the target form of a JUMP directive.
type JumpTargetKind uint8

// Jump target kinds.
const (
	JumpIdent JumpTargetKind = iota
	JumpPrevious
	JumpMyself
	JumpNext
)

// JumpAST is one JUMP directive on a component instance.
type JumpAST struct {
	Tok        Token
	TargetKind JumpTargetKind
	TargetName string
	Count      int // explicit PREVIOUS_n / NEXT_n count, 0 when bare
	TargetFirst,
	TargetLast Token
	Iterate   bool
	Condition *ExprNode
}

// SplitAST is a SPLIT clause with its optional expression.
type SplitAST struct {
	Tok  Token
	Expr *ExprNode // nil for bare SPLIT
}

// WhenAST is a WHEN clause.
type WhenAST struct {
	Tok  Token
	Expr *ExprNode
}

// GroupRefAST is a GROUP membership clause.
type GroupRefAST struct {
	Tok     Token
	NameTok Token
}

// ExtendAST is an EXTEND %{ ... %} clause.
type ExtendAST struct {
	Tok   Token
	Block Token
}

// ComponentInstanceAST is one COMPONENT production in a TRACE section.
type ComponentInstanceAST struct {
	First     Token
	Removable *Token
	Cpu       *Token
	Split     *SplitAST
	Name      InstanceNameAST
	Type      ComponentTypeAST
	Params    []*InstanceParamAST
	When      *WhenAST
	Place     *PlaceAST
	Rotate    *PlaceAST
	Group     *GroupRefAST
	Extend    *ExtendAST
	Jumps     []*JumpAST
	Metadata  []*MetadataAST
}

// TraceItemAST is one entry of an instrument TRACE section.
type TraceItemAST struct {
	Instance *ComponentInstanceAST
	Search   *SearchAST
	Include  *IncludeAST
}

// TraceAST is the instrument TRACE section.
type TraceAST struct {
	Tok   Token
	Items []TraceItemAST
}

// InstrumentDefAST is the parse tree of a DEFINE INSTRUMENT production.
type InstrumentDefAST struct {
	DefineTok  Token
	NameTok    Token
	Name       string
	Params     []*InstrParamAST
	Shell      *ShellAST
	Searches   []*SearchAST
	Metadata   []*MetadataAST
	Dependency *DependencyAST
	Declare    *SectionAST
	UserVars   *SectionAST
	Initialize *SectionAST
	Trace      *TraceAST
	Save       *SectionAST
	Finally    *SectionAST
	EndTok     Token
}

// InstrFileAST is a parsed .instr source.
type InstrFileAST struct {
	Stream *TokenStream
	Def    *InstrumentDefAST
}

// CompParamType identifies a component parameter declaration type.
type CompParamType uint8

// Component parameter declaration types.
const (
	CompParamDouble CompParamType = iota
	CompParamInt
	CompParamString
	CompParamVector
	CompParamDoubleArray
	CompParamIntArray
	CompParamSymbol
)

// CompParamAST is one component parameter declaration.
type CompParamAST struct {
	Type    CompParamType
	NameTok Token
	Name    string
	Assign  bool
	Default *ExprNode // nil when no default
}

// CompParamsAST is one of the DEFINITION, SETTING, or OUTPUT parameter
// sets.
type CompParamsAST struct {
	FirstTok Token
	Params   []*CompParamAST
}

// CategoryAST is a CATEGORY directive.
type CategoryAST struct {
	Tok   Token
	Value Token // identifier or string literal
}

// ComponentDefAST is the parse tree of a DEFINE COMPONENT production.
type ComponentDefAST struct {
	DefineTok  Token
	NameTok    Token
	Name       string
	CopyFrom   *Token
	DefParams  *CompParamsAST
	SetParams  *CompParamsAST
	OutParams  *CompParamsAST
	Category   *CategoryAST
	Dependency *DependencyAST
	Metadata   []*MetadataAST
	NoAcc      *Token
	Shell      *ShellAST
	Share      *SectionAST
	UserVars   *SectionAST
	Declare    *SectionAST
	Initialize *SectionAST
	Trace      *SectionAST
	Save       *SectionAST
	Finally    *SectionAST
	Display    *SectionAST
	EndTok     Token
}

// CompFileAST is a parsed .comp source.
type CompFileAST struct {
	Stream *TokenStream
	Def    *ComponentDefAST
}
