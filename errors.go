// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"errors"
	"fmt"
	"strings"
)

// Errors
var (
	// ErrNotFound is returned when a name matches no registry in the
	// search list.
	ErrNotFound = errors.New("not found in any registry")

	// ErrDuplicateName is returned when a component instance or parameter
	// name is reused.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrUnknownReference is returned when a by-name reference cannot be
	// resolved against the component list.
	ErrUnknownReference = errors.New("unknown component reference")

	// ErrGroupContinuity is returned when an edit would place a non-member
	// between two members of the same GROUP.
	ErrGroupContinuity = errors.New("group continuity violation")

	// ErrUnknownEdgeTag is returned when decoding a flow edge with an
	// unrecognised type discriminator.
	ErrUnknownEdgeTag = errors.New("unknown flow edge tag")
)

// Number of context lines shown around a syntax error.
const (
	syntaxErrorPreLines  = 5
	syntaxErrorPostLines = 2
)

// SyntaxError carries the location of a parse failure plus enough source
// context to render the offending region.
type SyntaxError struct {
	Filetype string // "Instrument" or "Component"
	Name     string // logical name of the source, often the file name
	Line     int    // 1-based
	Column   int    // 0-based
	Msg      string
	Source   string
}

// Error renders the failure with five preceding and two following source
// lines, underlining the offending column.
func (e *SyntaxError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "syntax error in %s %s at %d,%d: %s",
		e.Filetype, e.Name, e.Line, e.Column, e.Msg)
	lines := strings.Split(e.Source, "\n")
	if e.Line < 1 || e.Line > len(lines) {
		return b.String()
	}
	first := e.Line - syntaxErrorPreLines
	if first < 1 {
		first = 1
	}
	b.WriteByte('\n')
	for i := first; i <= e.Line; i++ {
		b.WriteString(lines[i-1])
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("~", e.Column))
	b.WriteString("^ ")
	b.WriteString(e.Msg)
	for i := e.Line + 1; i <= e.Line+syntaxErrorPostLines && i <= len(lines); i++ {
		b.WriteByte('\n')
		b.WriteString(lines[i-1])
	}
	return b.String()
}

// SemanticError is raised by the visitors and IR editing methods for
// violations that are detectable only after parsing.
type SemanticError struct {
	File string
	Line int
	Msg  string
	Err  error // optional category sentinel
}

func (e *SemanticError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return e.Msg
}

// Unwrap exposes the category sentinel for errors.Is.
func (e *SemanticError) Unwrap() error { return e.Err }

func semanticErr(sentinel error, format string, a ...interface{}) error {
	return &SemanticError{Msg: fmt.Sprintf(format, a...), Err: sentinel}
}
