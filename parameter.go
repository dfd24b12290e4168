// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import "strings"

// InstrumentParameter is one runtime-settable instrument parameter. The
// value's data type records the declared parameter type.
type InstrumentParameter struct {
	Name  string `json:"name"`
	Unit  string `json:"unit,omitempty"`
	Value Expr   `json:"value"`
}

// Copy returns a deep copy.
func (p InstrumentParameter) Copy() InstrumentParameter {
	return InstrumentParameter{Name: p.Name, Unit: p.Unit, Value: p.Value.Copy()}
}

// String renders the parameter as it appears in an instrument definition.
func (p InstrumentParameter) String() string {
	var b strings.Builder
	switch {
	case p.Value.IsStr():
		b.WriteString("string ")
	case p.Value.IsVector() && p.Value.DataType() == DataFloat:
		b.WriteString("vector ")
	case p.Value.DataType() == DataInt:
		b.WriteString("int ")
	}
	b.WriteString(p.Name)
	if p.Unit != "" {
		b.WriteString("/\"" + p.Unit + "\"")
	}
	if p.Value.HasValue() {
		b.WriteString("=" + p.Value.String())
	}
	return b.String()
}

// ComponentParameter is a named parameter of a component definition or a
// concrete assignment on an instance. Unit and description are populated
// from the McDoc header when available.
type ComponentParameter struct {
	Name        string `json:"name"`
	Value       Expr   `json:"value"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
}

// Copy returns a deep copy.
func (p ComponentParameter) Copy() ComponentParameter {
	return ComponentParameter{Name: p.Name, Value: p.Value.Copy(), Unit: p.Unit, Description: p.Description}
}

// CompatibleValue reports whether value may be assigned to this
// parameter. Identifiers are accepted, their types are checked later once
// instrument parameters are known.
func (p ComponentParameter) CompatibleValue(value Expr) bool {
	return p.Value.Compatible(value, true)
}

// parameterNamePresent reports whether a parameter with the given name is
// in the list.
func parameterNamePresent[T interface{ parameterName() string }](params []T, name string) bool {
	for _, p := range params {
		if p.parameterName() == name {
			return true
		}
	}
	return false
}

func (p InstrumentParameter) parameterName() string { return p.Name }
func (p ComponentParameter) parameterName() string  { return p.Name }
