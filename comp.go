// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"fmt"
	"io"
	"strings"
)

// Comp is the intermediate representation of a McCode component
// definition, read from one .comp source. Comp values are immutable once
// parsed; a single *Comp is shared by every Instance of the type.
type Comp struct {
	Name       string               `json:"name"`
	Category   string               `json:"category,omitempty"`
	Define     []ComponentParameter `json:"define"`
	Setting    []ComponentParameter `json:"setting"`
	Output     []ComponentParameter `json:"output"`
	Metadata   []MetaData           `json:"metadata"`
	Dependency string               `json:"dependency,omitempty"`
	Acc        bool                 `json:"acc"`

	// Verbatim C sections copied into the generated translation unit.
	Share      []RawC `json:"share"`
	User       []RawC `json:"user"`
	Declare    []RawC `json:"declare"`
	Initialize []RawC `json:"initialize"`
	Trace      []RawC `json:"trace"`
	Save       []RawC `json:"save"`
	Final      []RawC `json:"final"`
	Display    []RawC `json:"display"`
}

// NewComp returns an empty component that permits OpenACC offload.
func NewComp(name string) *Comp {
	return &Comp{Name: name, Acc: true}
}

// HasParameter reports whether name is a definition or setting parameter.
func (c *Comp) HasParameter(name string) bool {
	return parameterNamePresent(c.Define, name) || parameterNamePresent(c.Setting, name)
}

// GetParameter returns the named definition or setting parameter.
func (c *Comp) GetParameter(name string) (ComponentParameter, bool) {
	for _, p := range c.Define {
		if p.Name == name {
			return p, true
		}
	}
	for _, p := range c.Setting {
		if p.Name == name {
			return p, true
		}
	}
	return ComponentParameter{}, false
}

// parameterNameUsed fails when the name already appears in any parameter
// set.
func (c *Comp) parameterNameUsed(kind, name string) error {
	if parameterNamePresent(c.Define, name) {
		return semanticErr(ErrDuplicateName, "%s parameter %s is already an instance parameter of %s", kind, name, c.Name)
	}
	if parameterNamePresent(c.Setting, name) {
		return semanticErr(ErrDuplicateName, "%s parameter %s is already a setting parameter of %s", kind, name, c.Name)
	}
	if parameterNamePresent(c.Output, name) {
		return semanticErr(ErrDuplicateName, "%s parameter %s is already an output parameter of %s", kind, name, c.Name)
	}
	return nil
}

// AddDefine appends a definition parameter, enforcing name uniqueness.
func (c *Comp) AddDefine(p ComponentParameter) error {
	if err := c.parameterNameUsed("DEFINE", p.Name); err != nil {
		return err
	}
	c.Define = append(c.Define, p)
	return nil
}

// AddSetting appends a setting parameter, enforcing name uniqueness.
func (c *Comp) AddSetting(p ComponentParameter) error {
	if err := c.parameterNameUsed("SETTING", p.Name); err != nil {
		return err
	}
	c.Setting = append(c.Setting, p)
	return nil
}

// AddOutput appends an output parameter. Output names may shadow setting
// names in legacy components, so only repeats within the output set are
// rejected.
func (c *Comp) AddOutput(p ComponentParameter) error {
	if parameterNamePresent(c.Output, p.Name) {
		return semanticErr(ErrDuplicateName, "OUTPUT parameter %s is already an output parameter of %s", p.Name, c.Name)
	}
	c.Output = append(c.Output, p)
	return nil
}

// NoAcc marks the component as unable to run under OpenACC.
func (c *Comp) NoAcc() { c.Acc = false }

// AddMetadata appends m, replacing any previous entry of the same name.
func (c *Comp) AddMetadata(m MetaData) {
	kept := c.Metadata[:0]
	for _, x := range c.Metadata {
		if x.Name != m.Name {
			kept = append(kept, x)
		}
	}
	c.Metadata = append(kept, m)
}

// CollectMetadata returns the definition metadata.
func (c *Comp) CollectMetadata() []MetaData { return c.Metadata }

// paramDeclaration renders one parameter as it appears in a parameter
// set declaration.
func paramDeclaration(p ComponentParameter) string {
	prefix := ""
	v := p.Value
	switch {
	case v.IsStr():
		prefix = "string "
	case v.IsVector() && v.DataType() == DataFloat:
		prefix = "vector "
	case v.DataType() == DataInt:
		prefix = "int "
	}
	s := prefix + p.Name
	if v.HasValue() {
		s += "=" + v.String()
	}
	return s
}

func paramsDeclaration(params []ComponentParameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = paramDeclaration(p)
	}
	return strings.Join(parts, ", ")
}

func writeRawCSection(w io.Writer, keyword string, section []RawC) {
	if len(section) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n%%{\n", keyword)
	for _, rc := range section {
		fmt.Fprintln(w, strings.Trim(rc.Text, "\n"))
	}
	fmt.Fprint(w, "%}\n")
}

// WriteTo emits a normalized component definition.
func (c *Comp) WriteTo(w io.Writer) {
	fmt.Fprintf(w, "DEFINE COMPONENT %s\n", c.Name)
	if c.Dependency != "" {
		fmt.Fprintf(w, "DEPENDENCY %q\n", c.Dependency)
	}
	if len(c.Define) > 0 {
		fmt.Fprintf(w, "DEFINITION PARAMETERS (%s)\n", paramsDeclaration(c.Define))
	}
	if len(c.Setting) > 0 {
		fmt.Fprintf(w, "SETTING PARAMETERS (%s)\n", paramsDeclaration(c.Setting))
	}
	if len(c.Output) > 0 {
		fmt.Fprintf(w, "OUTPUT PARAMETERS (%s)\n", paramsDeclaration(c.Output))
	}
	if !c.Acc {
		fmt.Fprintln(w, "NOACC")
	}
	writeRawCSection(w, "SHARE", c.Share)
	writeRawCSection(w, "USERVARS", c.User)
	writeRawCSection(w, "DECLARE", c.Declare)
	writeRawCSection(w, "INITIALIZE", c.Initialize)
	writeRawCSection(w, "TRACE", c.Trace)
	writeRawCSection(w, "SAVE", c.Save)
	writeRawCSection(w, "FINALLY", c.Final)
	writeRawCSection(w, "MCDISPLAY", c.Display)
	fmt.Fprintln(w, "END")
}

// String renders a normalized component definition.
func (c *Comp) String() string {
	var b strings.Builder
	c.WriteTo(&b)
	return b.String()
}
