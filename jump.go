// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import "fmt"

// Jump is a JUMP directive on a component instance. RelativeTarget holds
// the signed offset for PREVIOUS_n (negative), MYSELF (zero), and NEXT_n
// (positive) forms; AbsoluteTarget is the resolved component index, -1
// while unresolved.
type Jump struct {
	Target         string `json:"target"`
	RelativeTarget int    `json:"relative_target"`
	Iterate        bool   `json:"iterate"`
	Condition      Expr   `json:"condition"`
	AbsoluteTarget int    `json:"absolute_target"`
}

// NewJump returns an unresolved Jump.
func NewJump(target string, relative int, iterate bool, condition Expr) Jump {
	return Jump{
		Target:         target,
		RelativeTarget: relative,
		Iterate:        iterate,
		Condition:      condition,
		AbsoluteTarget: -1,
	}
}

// Copy returns a deep copy.
func (j Jump) Copy() Jump {
	c := j
	c.Condition = j.Condition.Copy()
	return c
}

// ParameterUsed reports whether the named identifier appears in the jump
// condition.
func (j Jump) ParameterUsed(name string) bool {
	return j.Condition.Contains(name)
}

func (j Jump) String() string {
	kw := "WHEN"
	if j.Iterate {
		kw = "ITERATE"
	}
	return fmt.Sprintf("JUMP %s %s %s", j.Target, kw, j.Condition)
}
