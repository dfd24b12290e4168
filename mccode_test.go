// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"testing"
)

// armComp is a minimal component type used across the tests.
const armComp = `DEFINE COMPONENT Arm
SETTING PARAMETERS ()
END
`

// slitComp carries parameters and a McDoc header for enrichment tests.
const slitComp = `/*******************************************************************************
*
* Component: Slit
*
* %I
* Written by: Kim Lefmann
* Date: 1997
* Origin: Risoe
*
* Rectangular/circular slit
*
* %D
* A simple rectangular or circular slit.
*
* %P
* INPUT PARAMETERS:
*
* xmin: [m]  Lower x bound
* xmax: [m]  Upper x bound
* radius: [m]  Radius of slit in the z=0 plane, centered at origin
*
* %E
*******************************************************************************/
DEFINE COMPONENT Slit
SETTING PARAMETERS (xmin=-0.01, xmax=0.01, radius=0)
TRACE
%{
  if (x<xmin || x>xmax) ABSORB;
%}
END
`

// testFiles returns the registry content shared by the tests.
func testFiles() map[string]string {
	return map[string]string{
		"optics/Arm.comp":  armComp,
		"optics/Slit.comp": slitComp,
	}
}

// newTestReader builds a Reader over an in-memory registry.
func newTestReader(t *testing.T, extra map[string]string) *Reader {
	t.Helper()
	files := testFiles()
	for k, v := range extra {
		files[k] = v
	}
	return NewReader(&Options{
		Registries: []Registry{NewInMemoryRegistry("test", files)},
	})
}

// parseInstr lowers instrument source through a test reader.
func parseInstr(t *testing.T, src string) *Instr {
	t.Helper()
	instr, err := tryParseInstr(t, src)
	if err != nil {
		t.Fatalf("parsing instrument failed: %v", err)
	}
	return instr
}

func tryParseInstr(t *testing.T, src string) (*Instr, error) {
	t.Helper()
	reader := newTestReader(t, nil)
	ast, err := ParseInstrSource([]byte(src), "test.instr")
	if err != nil {
		return nil, err
	}
	visitor := NewInstrVisitor(reader, "test.instr", nil, ModeNormal)
	return visitor.Visit(ast)
}

// traceInstr wraps a TRACE body in a minimal instrument definition.
func traceInstr(t *testing.T, traceBody string) *Instr {
	t.Helper()
	return parseInstr(t, "DEFINE INSTRUMENT test()\nTRACE\n"+traceBody+"\nEND\n")
}

func componentNames(in *Instr) []string {
	names := make([]string, len(in.Components))
	for i, inst := range in.Components {
		names[i] = inst.Name
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
