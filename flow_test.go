// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"testing"
)

func sequentialPairs(in *Instr) [][2]string {
	var out [][2]string
	for _, r := range in.FlowEdges {
		if _, ok := r.Edge.(SequentialEdge); ok {
			out = append(out, [2]string{r.Src, r.Dst})
		}
	}
	return out
}

func groupPairsByKind(in *Instr, kind GroupEdgeKind) [][2]string {
	var out [][2]string
	for _, r := range in.FlowEdges {
		if ge, ok := r.Edge.(GroupEdge); ok && ge.Kind == kind {
			out = append(out, [2]string{r.Src, r.Dst})
		}
	}
	return out
}

func containsPair(pairs [][2]string, src, dst string) bool {
	for _, p := range pairs {
		if p[0] == src && p[1] == dst {
			return true
		}
	}
	return false
}

func TestSequentialFlow(t *testing.T) {
	instr := traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Arm() AT (0,0,1) RELATIVE a
COMPONENT c = Arm() AT (0,0,1) RELATIVE b
`)
	if len(instr.FlowEdges) != 2 {
		t.Fatalf("edges got %d, want 2: %+v", len(instr.FlowEdges), instr.FlowEdges)
	}
	seq := sequentialPairs(instr)
	if !containsPair(seq, "a", "b") || !containsPair(seq, "b", "c") {
		t.Errorf("sequential edges got %v", seq)
	}
	g := instr.FlowGraph()
	for _, node := range []string{"a", "b", "c"} {
		if !g.HasNode(node) {
			t.Errorf("node %s missing from graph", node)
		}
	}
}

func TestFlowGraphInstanceReference(t *testing.T) {
	instr := traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Arm() AT (0,0,1) RELATIVE a
`)
	g := BuildParticleFlowGraph(instr)
	if g.Instances["a"] != instr.Components[0] {
		t.Error("node a does not reference the exact instance")
	}
	if g.Instances["b"] != instr.Components[1] {
		t.Error("node b does not reference the exact instance")
	}
}

func TestEmptyInstrumentFlow(t *testing.T) {
	instr := parseInstr(t, "DEFINE INSTRUMENT empty()\nTRACE\nEND\n")
	g := instr.FlowGraph()
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("empty instrument produced %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
}

const groupTrace = `
COMPONENT before = Arm() AT (0,0,0) ABSOLUTE
COMPONENT g1 = Arm() AT (0,0,1) RELATIVE before GROUP MyGroup
COMPONENT g2 = Arm() AT (0,0,2) RELATIVE before GROUP MyGroup
COMPONENT g3 = Arm() AT (0,0,3) RELATIVE before GROUP MyGroup
COMPONENT after = Arm() AT (0,0,4) RELATIVE before
`

func TestGroupEdges(t *testing.T) {
	instr := traceInstr(t, groupTrace)

	tryNext := groupPairsByKind(instr, GroupTryNext)
	if !containsPair(tryNext, "g1", "g2") || !containsPair(tryNext, "g2", "g3") {
		t.Errorf("TRY_NEXT edges got %v", tryNext)
	}

	scatter := groupPairsByKind(instr, GroupScatterExit)
	for _, member := range []string{"g1", "g2", "g3"} {
		if !containsPair(scatter, member, "after") {
			t.Errorf("missing SCATTER_EXIT from %s", member)
		}
	}

	pass := groupPairsByKind(instr, GroupPassThrough)
	if len(pass) != 1 || !containsPair(pass, "g3", "after") {
		t.Errorf("PASS_THROUGH edges got %v, want exactly g3->after", pass)
	}

	// No sequential edge leaves the group.
	seq := sequentialPairs(instr)
	if containsPair(seq, "g3", "after") {
		t.Error("sequential edge duplicates the PASS_THROUGH exit")
	}
}

func TestGroupEdgeName(t *testing.T) {
	instr := traceInstr(t, groupTrace)
	for _, r := range instr.FlowEdges {
		if ge, ok := r.Edge.(GroupEdge); ok && ge.GroupName != "MyGroup" {
			t.Errorf("edge %s->%s carries group %q", r.Src, r.Dst, ge.GroupName)
		}
	}
}

func TestGroupInstanceIO(t *testing.T) {
	instr := traceInstr(t, groupTrace)
	io := BuildInstanceIO(instr)

	for _, member := range []string{"g1", "g2", "g3"} {
		if _, ok := io.Inputs[member]["before"]; !ok {
			t.Errorf("inputs[%s] lacks before: %v", member, io.Inputs[member])
		}
	}
	for _, member := range []string{"g1", "g2", "g3"} {
		if _, ok := io.Outputs["before"][member]; !ok {
			t.Errorf("outputs[before] lacks %s: %v", member, io.Outputs["before"])
		}
		if _, ok := io.Inputs["after"][member]; !ok {
			t.Errorf("inputs[after] lacks %s: %v", member, io.Inputs["after"])
		}
	}
	// Co-members never feed each other.
	members := []string{"g1", "g2", "g3"}
	for _, a := range members {
		for _, b := range members {
			if a == b {
				continue
			}
			if _, ok := io.Inputs[a][b]; ok {
				t.Errorf("inputs[%s] wrongly contains co-member %s", a, b)
			}
			if _, ok := io.Outputs[a][b]; ok {
				t.Errorf("outputs[%s] wrongly contains co-member %s", a, b)
			}
		}
	}
}

func TestJumpEdges(t *testing.T) {
	instr := traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Arm() AT (0,0,1) RELATIVE a
COMPONENT c = Arm() AT (0,0,2) RELATIVE b JUMP b WHEN (1)
COMPONENT d = Arm() AT (0,0,3) RELATIVE c
`)
	var jumps []FlowEdgeRecord
	for _, r := range instr.FlowEdges {
		if _, ok := r.Edge.(JumpEdge); ok {
			jumps = append(jumps, r)
		}
	}
	if len(jumps) != 1 {
		t.Fatalf("jump edges got %d, want 1", len(jumps))
	}
	if jumps[0].Src != "c" || jumps[0].Dst != "b" {
		t.Errorf("jump edge got %s->%s", jumps[0].Src, jumps[0].Dst)
	}
	edge := jumps[0].Edge.(JumpEdge)
	if edge.Iterate {
		t.Error("WHEN jump flagged as iterate")
	}
	if edge.AbsoluteTarget != 1 {
		t.Errorf("absolute target got %d, want 1", edge.AbsoluteTarget)
	}
}

func TestJumpIterateEdge(t *testing.T) {
	instr := traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Arm() AT (0,0,1) RELATIVE a
COMPONENT c = Arm() AT (0,0,2) RELATIVE a JUMP a ITERATE (jumps)
`)
	g := instr.FlowGraph()
	var jumpEdges []JumpEdge
	for _, e := range g.EdgesBetween("c", "a") {
		if je, ok := e.(JumpEdge); ok {
			jumpEdges = append(jumpEdges, je)
		}
	}
	if len(jumpEdges) != 1 || !jumpEdges[0].Iterate {
		t.Errorf("iterate jump edges got %+v", jumpEdges)
	}
}

func TestJumpRelativeTargets(t *testing.T) {
	instr := traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Arm() AT (0,0,1) RELATIVE a
COMPONENT c = Arm() AT (0,0,2) RELATIVE a JUMP PREVIOUS_2 WHEN (x>0)
COMPONENT d = Arm() AT (0,0,3) RELATIVE a JUMP MYSELF ITERATE (n)
`)
	g := instr.FlowGraph()
	var prevJumps, selfJumps []JumpEdge
	for _, e := range g.EdgesBetween("c", "a") {
		if je, ok := e.(JumpEdge); ok {
			prevJumps = append(prevJumps, je)
		}
	}
	for _, e := range g.EdgesBetween("d", "d") {
		if je, ok := e.(JumpEdge); ok {
			selfJumps = append(selfJumps, je)
		}
	}
	if len(prevJumps) != 1 || prevJumps[0].AbsoluteTarget != 0 {
		t.Errorf("PREVIOUS_2 jump got %+v", prevJumps)
	}
	if len(selfJumps) != 1 || selfJumps[0].AbsoluteTarget != 3 {
		t.Errorf("MYSELF jump got %+v", selfJumps)
	}
}

func TestFlowDeterminism(t *testing.T) {
	a := traceInstr(t, groupTrace)
	b := traceInstr(t, groupTrace)
	if len(a.FlowEdges) != len(b.FlowEdges) {
		t.Fatalf("edge counts differ: %d vs %d", len(a.FlowEdges), len(b.FlowEdges))
	}
	for i := range a.FlowEdges {
		ra, rb := a.FlowEdges[i], b.FlowEdges[i]
		if ra.Src != rb.Src || ra.Dst != rb.Dst {
			t.Errorf("edge %d differs: %s->%s vs %s->%s", i, ra.Src, ra.Dst, rb.Src, rb.Dst)
		}
	}
}

func TestSequentialEdgeCarriesWhen(t *testing.T) {
	instr := traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Slit(radius=0.01) WHEN (a_param > 0) AT (0,0,1) RELATIVE a
`)
	if len(instr.FlowEdges) != 1 {
		t.Fatalf("edges got %d", len(instr.FlowEdges))
	}
	edge, ok := instr.FlowEdges[0].Edge.(SequentialEdge)
	if !ok {
		t.Fatalf("edge is %T", instr.FlowEdges[0].Edge)
	}
	if edge.When.IsNil() {
		t.Error("destination WHEN not recorded on the sequential edge")
	}
}
