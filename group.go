// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

// GroupMember pairs a component index with its instance.
type GroupMember struct {
	Index    int
	Instance *Instance
}

// Group is a named GROUP membership list in source order. Particles try
// the members in order until one scatters; group names are scoped to the
// outer instrument and never merged across includes.
type Group struct {
	Name    string
	Order   int // creation order within the instrument
	Members []GroupMember
}

// Add appends a member.
func (g *Group) Add(index int, inst *Instance) {
	g.Members = append(g.Members, GroupMember{Index: index, Instance: inst})
}

// Copy returns a shallow copy of the membership list; instances stay
// shared with the owning instrument.
func (g *Group) Copy() *Group {
	c := &Group{Name: g.Name, Order: g.Order}
	c.Members = append(c.Members, g.Members...)
	return c
}

// Names returns the member instance names in source order.
func (g *Group) Names() []string {
	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.Instance.Name
	}
	return names
}
