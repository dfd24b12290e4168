// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Particle flow graph. The tuple of FlowEdgeRecord values stored on an
// Instr is the persisted ground truth; FlowGraph is a derived multi-edge
// view regenerated on demand, with deterministic node and edge order.

package mccode

import (
	"encoding/json"
	"fmt"
)

// GroupEdgeKind describes the role of an edge within GROUP semantics.
type GroupEdgeKind uint8

// Group edge kinds.
const (
	// GroupEntry joins the preceding component to the first group member.
	GroupEntry GroupEdgeKind = iota
	// GroupTryNext joins a member to the next member, taken after a
	// no-SCATTER with the particle state reset.
	GroupTryNext
	// GroupScatterExit joins a member to the component after the group,
	// taken when the member issued SCATTER.
	GroupScatterExit
	// GroupPassThrough joins the last member to the component after the
	// group, taken when no member scattered.
	GroupPassThrough
)

func (k GroupEdgeKind) String() string {
	switch k {
	case GroupEntry:
		return "ENTRY"
	case GroupTryNext:
		return "TRY_NEXT"
	case GroupScatterExit:
		return "SCATTER_EXIT"
	case GroupPassThrough:
		return "PASS_THROUGH"
	}
	return "UNKNOWN"
}

func groupEdgeKindFromString(s string) (GroupEdgeKind, error) {
	switch s {
	case "ENTRY":
		return GroupEntry, nil
	case "TRY_NEXT":
		return GroupTryNext, nil
	case "SCATTER_EXIT":
		return GroupScatterExit, nil
	case "PASS_THROUGH":
		return GroupPassThrough, nil
	}
	return GroupEntry, fmt.Errorf("unknown group edge kind %q", s)
}

// FlowEdge is the payload of one particle-flow transition.
type FlowEdge interface {
	flowEdgeTag() string
}

// SequentialEdge is implicit linear flow from one component to the next.
// When holds the WHEN expression on the destination, if any; a particle
// that fails the gate skips the component but continues along the path.
type SequentialEdge struct {
	When Expr `json:"when,omitempty"`
}

func (SequentialEdge) flowEdgeTag() string { return "sequential" }

// GroupEdge is an edge within or around a GROUP block.
type GroupEdge struct {
	GroupName string
	Kind      GroupEdgeKind
}

func (GroupEdge) flowEdgeTag() string { return "group" }

// JumpEdge is a JUMP WHEN / JUMP ITERATE transition.
type JumpEdge struct {
	Condition      Expr `json:"condition"`
	Iterate        bool `json:"iterate"`
	AbsoluteTarget int  `json:"absolute_target"`
}

func (JumpEdge) flowEdgeTag() string { return "jump" }

// WeightedRandomEdge is reserved for weighted random outgoing edge
// selection.
type WeightedRandomEdge struct {
	Weight    float64 `json:"weight"`
	Condition Expr    `json:"condition,omitempty"`
}

func (WeightedRandomEdge) flowEdgeTag() string { return "weighted_random" }

// FlowEdgeRecord is the serialisable (src, dst, edge) triplet stored on
// an Instr.
type FlowEdgeRecord struct {
	Src  string
	Dst  string
	Edge FlowEdge
}

type flowEdgeRecordJSON struct {
	Src  string          `json:"src"`
	Dst  string          `json:"dst"`
	Edge json.RawMessage `json:"edge"`
}

// MarshalJSON encodes the record with a type discriminator on the edge.
func (r FlowEdgeRecord) MarshalJSON() ([]byte, error) {
	var edge interface{}
	switch e := r.Edge.(type) {
	case SequentialEdge:
		edge = struct {
			Type string `json:"type"`
			When Expr   `json:"when,omitempty"`
		}{"sequential", e.When}
	case GroupEdge:
		edge = struct {
			Type      string `json:"type"`
			GroupName string `json:"group_name"`
			Kind      string `json:"kind"`
		}{"group", e.GroupName, e.Kind.String()}
	case JumpEdge:
		edge = struct {
			Type           string `json:"type"`
			Condition      Expr   `json:"condition"`
			Iterate        bool   `json:"iterate"`
			AbsoluteTarget int    `json:"absolute_target"`
		}{"jump", e.Condition, e.Iterate, e.AbsoluteTarget}
	case WeightedRandomEdge:
		edge = struct {
			Type      string  `json:"type"`
			Weight    float64 `json:"weight"`
			Condition Expr    `json:"condition,omitempty"`
		}{"weighted_random", e.Weight, e.Condition}
	default:
		return nil, fmt.Errorf("unencodable flow edge %T", r.Edge)
	}
	raw, err := json.Marshal(edge)
	if err != nil {
		return nil, err
	}
	return json.Marshal(flowEdgeRecordJSON{Src: r.Src, Dst: r.Dst, Edge: raw})
}

// UnmarshalJSON decodes a record, failing with ErrUnknownEdgeTag for
// unrecognised discriminators.
func (r *FlowEdgeRecord) UnmarshalJSON(data []byte) error {
	var rec flowEdgeRecordJSON
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(rec.Edge, &tag); err != nil {
		return err
	}
	r.Src, r.Dst = rec.Src, rec.Dst
	switch tag.Type {
	case "sequential":
		var e struct {
			When Expr `json:"when"`
		}
		if err := json.Unmarshal(rec.Edge, &e); err != nil {
			return err
		}
		r.Edge = SequentialEdge{When: e.When}
	case "group":
		var e struct {
			GroupName string `json:"group_name"`
			Kind      string `json:"kind"`
		}
		if err := json.Unmarshal(rec.Edge, &e); err != nil {
			return err
		}
		kind, err := groupEdgeKindFromString(e.Kind)
		if err != nil {
			return err
		}
		r.Edge = GroupEdge{GroupName: e.GroupName, Kind: kind}
	case "jump":
		var e struct {
			Condition      Expr `json:"condition"`
			Iterate        bool `json:"iterate"`
			AbsoluteTarget int  `json:"absolute_target"`
		}
		if err := json.Unmarshal(rec.Edge, &e); err != nil {
			return err
		}
		r.Edge = JumpEdge{Condition: e.Condition, Iterate: e.Iterate, AbsoluteTarget: e.AbsoluteTarget}
	case "weighted_random":
		var e struct {
			Weight    float64 `json:"weight"`
			Condition Expr    `json:"condition"`
		}
		if err := json.Unmarshal(rec.Edge, &e); err != nil {
			return err
		}
		r.Edge = WeightedRandomEdge{Weight: e.Weight, Condition: e.Condition}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEdgeTag, tag.Type)
	}
	return nil
}

// BuildFlowEdgeRecords computes the full edge list from an ordered
// component list. The result is deterministic: the same component list
// always produces the identical record sequence.
func BuildFlowEdgeRecords(components []*Instance) []FlowEdgeRecord {
	var records []FlowEdgeRecord
	n := len(components)
	if n == 0 {
		return nil
	}

	// Collect groups, name to ordered member indices.
	groupOrder := make([]string, 0)
	groupMembers := make(map[string][]int)
	for idx, inst := range components {
		if inst.Group == "" {
			continue
		}
		if _, ok := groupMembers[inst.Group]; !ok {
			groupOrder = append(groupOrder, inst.Group)
		}
		groupMembers[inst.Group] = append(groupMembers[inst.Group], idx)
	}

	// Sequential and within-group edges.
	for idx := 0; idx < n-1; idx++ {
		src, dst := components[idx], components[idx+1]
		sameGroup := src.Group != "" && src.Group == dst.Group
		srcExitsGroup := src.Group != "" && src.Group != dst.Group
		switch {
		case sameGroup:
			records = append(records, FlowEdgeRecord{
				Src: src.Name, Dst: dst.Name,
				Edge: GroupEdge{GroupName: src.Group, Kind: GroupTryNext},
			})
		case srcExitsGroup:
			// Group exit edges are emitted below.
		default:
			records = append(records, FlowEdgeRecord{
				Src: src.Name, Dst: dst.Name,
				Edge: SequentialEdge{When: dst.When},
			})
		}
	}

	// Group exit edges: scatter-exit from every member, one pass-through
	// from the last member.
	for _, name := range groupOrder {
		members := groupMembers[name]
		lastIdx := members[len(members)-1]
		exitIdx := lastIdx + 1
		for exitIdx < n && components[exitIdx].Group == name {
			exitIdx++
		}
		if exitIdx >= n {
			continue
		}
		exitName := components[exitIdx].Name
		for _, m := range members {
			records = append(records, FlowEdgeRecord{
				Src: components[m].Name, Dst: exitName,
				Edge: GroupEdge{GroupName: name, Kind: GroupScatterExit},
			})
		}
		records = append(records, FlowEdgeRecord{
			Src: components[lastIdx].Name, Dst: exitName,
			Edge: GroupEdge{GroupName: name, Kind: GroupPassThrough},
		})
	}

	// Jump edges, resolving targets by name when unresolved.
	nameToIdx := make(map[string]int, n)
	for idx, inst := range components {
		nameToIdx[inst.Name] = idx
	}
	for idx, inst := range components {
		for _, jmp := range inst.Jump {
			target := jmp.AbsoluteTarget
			if target < 0 {
				switch {
				case jmp.Target == "MYSELF" || jmp.RelativeTarget != 0:
					// PREVIOUS_n / MYSELF / NEXT_n resolve by offset.
					target = idx + jmp.RelativeTarget
				default:
					t, ok := nameToIdx[jmp.Target]
					if !ok {
						t = -1
					}
					target = t
				}
			}
			if target >= 0 && target < n {
				records = append(records, FlowEdgeRecord{
					Src: inst.Name, Dst: components[target].Name,
					Edge: JumpEdge{Condition: jmp.Condition, Iterate: jmp.Iterate, AbsoluteTarget: target},
				})
			}
		}
	}

	return records
}

// BuildFlowGraph rebuilds and stores the flow edge records from the
// current component order. Idempotent.
func (in *Instr) BuildFlowGraph() {
	in.FlowEdges = BuildFlowEdgeRecords(in.Components)
}

// FlowGraphEdge is one edge of the derived multigraph view.
type FlowGraphEdge struct {
	Src  string
	Dst  string
	Edge FlowEdge
}

// FlowGraph is a typed multi-edge directed graph of particle transitions,
// derived from (components, flow edges). Node and edge order follow the
// component list and record order.
type FlowGraph struct {
	Nodes     []string
	Instances map[string]*Instance
	Edges     []FlowGraphEdge
	out       map[string][]int // edge indices by source
}

// FlowGraphFromRecords derives the multigraph view from a component list
// and edge records.
func FlowGraphFromRecords(components []*Instance, records []FlowEdgeRecord) *FlowGraph {
	g := &FlowGraph{
		Instances: make(map[string]*Instance, len(components)),
		out:       make(map[string][]int),
	}
	for _, inst := range components {
		g.Nodes = append(g.Nodes, inst.Name)
		g.Instances[inst.Name] = inst
	}
	for _, rec := range records {
		g.out[rec.Src] = append(g.out[rec.Src], len(g.Edges))
		g.Edges = append(g.Edges, FlowGraphEdge{Src: rec.Src, Dst: rec.Dst, Edge: rec.Edge})
	}
	return g
}

// BuildParticleFlowGraph builds the complete flow graph of an instrument
// from scratch, without storing the records.
func BuildParticleFlowGraph(in *Instr) *FlowGraph {
	return FlowGraphFromRecords(in.Components, BuildFlowEdgeRecords(in.Components))
}

// FlowGraph derives the multigraph view from the persisted records.
func (in *Instr) FlowGraph() *FlowGraph {
	return FlowGraphFromRecords(in.Components, in.FlowEdges)
}

// HasNode reports whether the named node exists.
func (g *FlowGraph) HasNode(name string) bool {
	_, ok := g.Instances[name]
	return ok
}

// EdgesBetween returns the payloads of all edges from u to v in record
// order.
func (g *FlowGraph) EdgesBetween(u, v string) []FlowEdge {
	var out []FlowEdge
	for _, i := range g.out[u] {
		if g.Edges[i].Dst == v {
			out = append(out, g.Edges[i].Edge)
		}
	}
	return out
}

// OutEdges returns all edges leaving u in record order.
func (g *FlowGraph) OutEdges(u string) []FlowGraphEdge {
	var out []FlowGraphEdge
	for _, i := range g.out[u] {
		out = append(out, g.Edges[i])
	}
	return out
}
