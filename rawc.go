// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

// RawC is an opaque verbatim C fragment with its source location. The
// location feeds `#line` directives in the generated translation unit.
type RawC struct {
	SourceFile string `json:"source_file"`
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

// Contains reports whether the named identifier appears textually in the
// fragment. A full use-analysis would require parsing the embedded C and
// is deliberately not attempted.
func (r RawC) Contains(name string) bool {
	return containsWord(r.Text, name)
}

// containsWord reports a whole-word occurrence of name in text.
func containsWord(text, name string) bool {
	for i := 0; i+len(name) <= len(text); i++ {
		if text[i:i+len(name)] != name {
			continue
		}
		if i > 0 && isIdentPart(text[i-1]) {
			continue
		}
		if i+len(name) < len(text) && isIdentPart(text[i+len(name)]) {
			continue
		}
		return true
	}
	return false
}

// MetaData is a named, mime-typed payload attached to an instrument,
// component definition, or component instance.
type MetaData struct {
	Source   string `json:"source"`
	Mimetype string `json:"mimetype"`
	Name     string `json:"name"`
	Value    string `json:"value"`
}
