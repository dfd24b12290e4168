// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

// InstanceIO describes particle-state reachability for every instance.
//
// Inputs[X] holds names of instances whose outgoing particle state
// directly feeds X; Outputs[X] holds instances that directly receive X's
// outgoing state. TRY_NEXT edges are excluded: a group co-member that
// fails to SCATTER passes the reset state onward, not its own. To keep
// the two maps symmetric the group predecessors are propagated as inputs
// of every member, and every member is added to the outputs of each
// predecessor.
type InstanceIO struct {
	Inputs  map[string]map[string]struct{}
	Outputs map[string]map[string]struct{}
}

// BuildInstanceIO computes the reachability maps from the instrument's
// persisted flow edges.
func BuildInstanceIO(in *Instr) InstanceIO {
	io := InstanceIO{
		Inputs:  make(map[string]map[string]struct{}),
		Outputs: make(map[string]map[string]struct{}),
	}
	for _, inst := range in.Components {
		io.Inputs[inst.Name] = make(map[string]struct{})
		io.Outputs[inst.Name] = make(map[string]struct{})
	}

	// Direct walk, TRY_NEXT excluded.
	for _, rec := range in.FlowEdges {
		if ge, ok := rec.Edge.(GroupEdge); ok && ge.Kind == GroupTryNext {
			continue
		}
		if _, ok := io.Outputs[rec.Src]; ok {
			io.Outputs[rec.Src][rec.Dst] = struct{}{}
		}
		if _, ok := io.Inputs[rec.Dst]; ok {
			io.Inputs[rec.Dst][rec.Src] = struct{}{}
		}
	}

	// Group predecessor propagation, preserving component order.
	var groupOrder []string
	groupMembers := make(map[string][]string)
	for _, inst := range in.Components {
		if inst.Group == "" {
			continue
		}
		if _, ok := groupMembers[inst.Group]; !ok {
			groupOrder = append(groupOrder, inst.Group)
		}
		groupMembers[inst.Group] = append(groupMembers[inst.Group], inst.Name)
	}
	for _, name := range groupOrder {
		members := groupMembers[name]
		first := members[0]
		predecessors := make([]string, 0, len(io.Inputs[first]))
		for pred := range io.Inputs[first] {
			predecessors = append(predecessors, pred)
		}
		// Every member receives the same predecessor state (it is reset
		// on entry).
		for _, member := range members[1:] {
			for _, pred := range predecessors {
				io.Inputs[member][pred] = struct{}{}
			}
		}
		// Every predecessor outputs to all members.
		for _, pred := range predecessors {
			if _, ok := io.Outputs[pred]; !ok {
				continue
			}
			for _, member := range members {
				io.Outputs[pred][member] = struct{}{}
			}
		}
	}
	return io
}
