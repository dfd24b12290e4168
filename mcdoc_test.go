// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"strings"
	"testing"
)

func TestParseMcDocParameters(t *testing.T) {
	doc := ParseMcDoc(slitComp)
	tests := []struct {
		name string
		unit string
		desc string
	}{
		{"xmin", "m", "Lower x bound"},
		{"xmax", "m", "Upper x bound"},
		{"radius", "m", "Radius of slit in the z=0 plane, centered at origin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := doc[tt.name]
			if !ok {
				t.Fatalf("parameter %s not parsed", tt.name)
			}
			if entry.Unit != tt.unit || entry.Description != tt.desc {
				t.Errorf("got (%q, %q), want (%q, %q)", entry.Unit, entry.Description, tt.unit, tt.desc)
			}
		})
	}
}

func TestParseMcDocParamVariants(t *testing.T) {
	comment := `/*
* %P
* plain: no unit brackets here
* unitless:   described without unit
* HEADING LINE:
* empty_desc: [deg]
* %E
*/`
	data := ParseMcDocFull(comment)
	if e := data.Parameters["plain"]; e.Unit != "" || e.Description != "no unit brackets here" {
		t.Errorf("plain got %+v", e)
	}
	if e := data.Parameters["empty_desc"]; e.Unit != "deg" || e.Description != "" {
		t.Errorf("empty_desc got %+v", e)
	}
	if _, ok := data.Parameters["HEADING"]; ok {
		t.Error("heading line parsed as a parameter")
	}
}

func TestParseMcDocRecoversFromGarbage(t *testing.T) {
	for _, src := range []string{"", "no comment at all", "/* no tags */", "/* unterminated"} {
		if doc := ParseMcDoc(src); len(doc) != 0 {
			t.Errorf("ParseMcDoc(%q) produced %v", src, doc)
		}
	}
}

func TestParseMcDocInfoSection(t *testing.T) {
	data := ParseMcDocFull(firstBlockComment(slitComp))
	if data.InfoFields["Written by"] != "Kim Lefmann" {
		t.Errorf("Written by got %q", data.InfoFields["Written by"])
	}
	if data.InfoFields["Date"] != "1997" {
		t.Errorf("Date got %q", data.InfoFields["Date"])
	}
	if len(data.ShortDesc) == 0 || data.ShortDesc[0] != "Rectangular/circular slit" {
		t.Errorf("short description got %v", data.ShortDesc)
	}
}

func TestBuildCanonicalPlaceholders(t *testing.T) {
	out := BuildCanonicalMcDoc("Fresh", nil, []string{"a"}, nil)
	for _, want := range []string{
		"* Written by: TODO",
		"* Date: TODO",
		"* Origin: TODO",
		"* %D",
		"* INPUT PARAMETERS:",
		"* a: []",
		"* %E",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("canonical header missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "OUTPUT PARAMETERS") {
		t.Error("empty output set still rendered")
	}
}

func TestBuildCanonicalPreservesExtras(t *testing.T) {
	data := NewMcDocData()
	data.InfoFields["Written by"] = "A. Author"
	data.InfoFields["Modified by"] = "B. Maintainer"
	data.InfoOrder = []string{"Written by", "Modified by"}
	data.LinkLines = []string{"<a href=\"docs\">manual</a>"}
	out := BuildCanonicalMcDoc("Kept", data, nil, []string{"flux"})
	if !strings.Contains(out, "* Modified by: B. Maintainer") {
		t.Errorf("extra info field dropped:\n%s", out)
	}
	if !strings.Contains(out, "* %L") || !strings.Contains(out, "manual") {
		t.Errorf("link section dropped:\n%s", out)
	}
	if !strings.Contains(out, "* OUTPUT PARAMETERS:") || !strings.Contains(out, "* flux: []") {
		t.Errorf("output parameter section missing:\n%s", out)
	}
}

func TestCheckMcDocParams(t *testing.T) {
	data := NewMcDocData()
	data.Parameters["known"] = McDocEntry{}
	data.Parameters["orphan"] = McDocEntry{}
	warnings := CheckMcDocParams(data, []string{"known", "fresh"}, nil)
	joined := strings.Join(warnings, "; ")
	if !strings.Contains(joined, "fresh") {
		t.Errorf("missing-parameter warning absent: %v", warnings)
	}
	if !strings.Contains(joined, "orphan") {
		t.Errorf("orphan warning absent: %v", warnings)
	}
	if got := CheckMcDocParams(nil, nil, nil); len(got) != 1 {
		t.Errorf("nil header warnings got %v", got)
	}
}
