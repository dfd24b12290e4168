// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"errors"
	"testing"
)

func seqInstr(t *testing.T) *Instr {
	return traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Arm() AT (0,0,1) RELATIVE a
COMPONENT c = Arm() AT (0,0,2) RELATIVE b
`)
}

func armType(t *testing.T, in *Instr) *Comp {
	t.Helper()
	inst, err := in.GetComponent("a")
	if err != nil {
		inst = in.Components[0]
	}
	return inst.Type
}

func TestInsertBeforeMiddle(t *testing.T) {
	instr := seqInstr(t)
	if _, err := instr.InsertComponent("x", armType(t, instr), InsertOptions{Before: "b"}); err != nil {
		t.Fatal(err)
	}
	if got := componentNames(instr); !equalStrings(got, []string{"a", "x", "b", "c"}) {
		t.Errorf("components got %v", got)
	}
	seq := sequentialPairs(instr)
	if !containsPair(seq, "a", "x") || !containsPair(seq, "x", "b") {
		t.Errorf("split sequential edges got %v", seq)
	}
	if containsPair(seq, "a", "b") {
		t.Error("old a->b edge survived the split")
	}
}

func TestInsertAfterMiddle(t *testing.T) {
	instr := seqInstr(t)
	if _, err := instr.InsertComponent("x", armType(t, instr), InsertOptions{After: "b"}); err != nil {
		t.Fatal(err)
	}
	if got := componentNames(instr); !equalStrings(got, []string{"a", "b", "x", "c"}) {
		t.Errorf("components got %v", got)
	}
	seq := sequentialPairs(instr)
	if !containsPair(seq, "b", "x") || !containsPair(seq, "x", "c") || containsPair(seq, "b", "c") {
		t.Errorf("sequential edges got %v", seq)
	}
}

func TestInsertAtEnds(t *testing.T) {
	instr := seqInstr(t)
	if _, err := instr.InsertComponent("front", armType(t, instr), InsertOptions{Before: "a"}); err != nil {
		t.Fatal(err)
	}
	if instr.Components[0].Name != "front" {
		t.Errorf("first component got %s", instr.Components[0].Name)
	}
	for _, r := range instr.FlowEdges {
		if r.Dst == "front" {
			t.Errorf("unexpected inbound edge %s->front", r.Src)
		}
	}

	if _, err := instr.InsertComponent("back", armType(t, instr), InsertOptions{After: "c"}); err != nil {
		t.Fatal(err)
	}
	if instr.Components[len(instr.Components)-1].Name != "back" {
		t.Errorf("last component got %s", instr.Components[len(instr.Components)-1].Name)
	}
	for _, r := range instr.FlowEdges {
		if r.Src == "back" {
			t.Errorf("unexpected outbound edge back->%s", r.Dst)
		}
	}
}

func TestInsertValidation(t *testing.T) {
	instr := seqInstr(t)
	arm := armType(t, instr)

	if _, err := instr.InsertComponent("x", arm, InsertOptions{}); err == nil {
		t.Error("neither before nor after should fail")
	}
	if _, err := instr.InsertComponent("x", arm, InsertOptions{Before: "a", After: "b"}); err == nil {
		t.Error("both before and after should fail")
	}
	if _, err := instr.InsertComponent("b", arm, InsertOptions{Before: "b"}); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate name got %v", err)
	}
	if _, err := instr.InsertComponent("x", arm, InsertOptions{Before: "zz"}); !errors.Is(err, ErrUnknownReference) {
		t.Errorf("unknown reference got %v", err)
	}
}

func TestInsertUpdatesGraph(t *testing.T) {
	instr := seqInstr(t)
	before := len(sequentialPairs(instr))
	inst, err := instr.InsertComponent("x", armType(t, instr), InsertOptions{After: "a"})
	if err != nil {
		t.Fatal(err)
	}
	g := instr.FlowGraph()
	if !g.HasNode("x") {
		t.Error("graph lacks the new node")
	}
	if g.Instances["x"] != inst {
		t.Error("graph node does not reference the returned instance")
	}
	if got := len(sequentialPairs(instr)); got != before+1 {
		t.Errorf("sequential edges got %d, want %d", got, before+1)
	}
	found, err := instr.GetComponent("x")
	if err != nil || found != inst {
		t.Error("inserted instance not retrievable by name")
	}
}

func groupInstr(t *testing.T) *Instr {
	return traceInstr(t, groupTrace)
}

func TestInsertGroupMemberBetweenMembers(t *testing.T) {
	instr := groupInstr(t)
	if _, err := instr.InsertComponent("gx", armType(t, instr), InsertOptions{After: "g1", Group: "MyGroup"}); err != nil {
		t.Fatal(err)
	}
	want := []string{"before", "g1", "gx", "g2", "g3", "after"}
	if got := componentNames(instr); !equalStrings(got, want) {
		t.Fatalf("components got %v, want %v", got, want)
	}
	tryNext := groupPairsByKind(instr, GroupTryNext)
	if !containsPair(tryNext, "g1", "gx") || !containsPair(tryNext, "gx", "g2") {
		t.Errorf("TRY_NEXT chain got %v", tryNext)
	}
	if containsPair(tryNext, "g1", "g2") {
		t.Error("stale TRY_NEXT g1->g2 survived")
	}
	scatter := groupPairsByKind(instr, GroupScatterExit)
	for _, member := range []string{"g1", "gx", "g2", "g3"} {
		if !containsPair(scatter, member, "after") {
			t.Errorf("missing SCATTER_EXIT from %s", member)
		}
	}
}

func TestInsertNonMemberBetweenMembersFails(t *testing.T) {
	instr := groupInstr(t)
	if _, err := instr.InsertComponent("gx", armType(t, instr), InsertOptions{After: "g1"}); !errors.Is(err, ErrGroupContinuity) {
		t.Errorf("non-member between members got %v", err)
	}
	if _, err := instr.InsertComponent("gx", armType(t, instr), InsertOptions{After: "g1", Group: "Other"}); !errors.Is(err, ErrGroupContinuity) {
		t.Errorf("wrong group between members got %v", err)
	}
}

func TestInsertBeforeGroupKeepsGroupEdges(t *testing.T) {
	instr := groupInstr(t)
	if _, err := instr.InsertComponent("x", armType(t, instr), InsertOptions{Before: "before"}); err != nil {
		t.Fatal(err)
	}
	tryNext := groupPairsByKind(instr, GroupTryNext)
	if !containsPair(tryNext, "g1", "g2") || !containsPair(tryNext, "g2", "g3") {
		t.Errorf("group-internal TRY_NEXT edges broken: %v", tryNext)
	}
}

func jumpInstr(t *testing.T) *Instr {
	return traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Arm() AT (0,0,1) RELATIVE a
COMPONENT c = Arm() AT (0,0,2) RELATIVE b
  JUMP b WHEN (1)
COMPONENT d = Arm() AT (0,0,3) RELATIVE c
`)
}

func TestInsertInvalidatesJumpTargets(t *testing.T) {
	instr := jumpInstr(t)
	if _, err := instr.InsertComponent("x", armType(t, instr), InsertOptions{After: "a"}); err != nil {
		t.Fatal(err)
	}
	for _, inst := range instr.Components {
		for _, j := range inst.Jump {
			if j.AbsoluteTarget != -1 {
				t.Errorf("%s jump absolute target should be -1 after insertion, got %d",
					inst.Name, j.AbsoluteTarget)
			}
		}
	}
}

func TestJumpEdgeDstSurvivesInsert(t *testing.T) {
	instr := jumpInstr(t)
	jumpRecords := func() []FlowEdgeRecord {
		var out []FlowEdgeRecord
		for _, r := range instr.FlowEdges {
			if _, ok := r.Edge.(JumpEdge); ok {
				out = append(out, r)
			}
		}
		return out
	}
	recs := jumpRecords()
	if len(recs) != 1 || recs[0].Src != "c" || recs[0].Dst != "b" {
		t.Fatalf("jump records before insert: %+v", recs)
	}
	if _, err := instr.InsertComponent("x", armType(t, instr), InsertOptions{After: "a"}); err != nil {
		t.Fatal(err)
	}
	recs = jumpRecords()
	if len(recs) != 1 || recs[0].Dst != "b" {
		t.Errorf("jump records after insert: %+v", recs)
	}
	// The resolved index now accounts for the shifted list.
	if edge := recs[0].Edge.(JumpEdge); edge.AbsoluteTarget != instr.ComponentIndex("b") {
		t.Errorf("resolved target got %d, want %d", edge.AbsoluteTarget, instr.ComponentIndex("b"))
	}
}

func TestInsertAutoMidpoint(t *testing.T) {
	instr := traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Arm() AT (0,0,2) RELATIVE a
`)
	inst, err := instr.InsertComponent("x", armType(t, instr), InsertOptions{Before: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if inst.AtRelative.Ref == nil || inst.AtRelative.Ref.Name != "a" {
		t.Fatalf("midpoint reference got %+v", inst.AtRelative.Ref)
	}
	z, ok := inst.AtRelative.Vector.Z.Float()
	if !ok || z != 1 {
		t.Errorf("midpoint z got %s, want 1", inst.AtRelative.Vector.Z)
	}
}

func TestInsertExplicitPlacement(t *testing.T) {
	instr := traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Arm() AT (0,0,2) RELATIVE a
`)
	a, _ := instr.GetComponent("a")
	inst, err := instr.InsertComponent("x", armType(t, instr), InsertOptions{
		Before:     "b",
		AtRelative: &InsertPlacement{Vector: NewVector(ExprInt(0), ExprInt(0), ExprInt(1)), Ref: "a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if inst.AtRelative.Ref != a {
		t.Errorf("explicit reference got %+v", inst.AtRelative.Ref)
	}
}

func TestInsertForwardReferenceRewritten(t *testing.T) {
	instr := traceInstr(t, `
COMPONENT a = Arm() AT (0,0,0) ABSOLUTE
COMPONENT b = Arm() AT (0,0,2) RELATIVE a
`)
	a, _ := instr.GetComponent("a")
	inst, err := instr.InsertComponent("x", armType(t, instr), InsertOptions{
		Before:     "b",
		AtRelative: &InsertPlacement{Vector: ZeroVector(), Ref: "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	// "b" lies after the insertion point, so the reference must have
	// been re-anchored on the predecessor.
	if inst.AtRelative.Ref != a {
		t.Errorf("forward reference not rewritten, got %+v", inst.AtRelative.Ref)
	}
}

func TestSplitInstrument(t *testing.T) {
	instr := seqInstr(t)
	first, second, err := instr.Split("b", false)
	if err != nil {
		t.Fatal(err)
	}
	if got := componentNames(first); !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("first half got %v", got)
	}
	if got := componentNames(second); !equalStrings(got, []string{"b", "c"}) {
		t.Errorf("second half got %v", got)
	}
	if first.Name != "test_first" || second.Name != "test_second" {
		t.Errorf("split names got %q, %q", first.Name, second.Name)
	}
	// In the second half, b's reference to a dangles and is re-anchored
	// absolutely.
	b := second.Components[0]
	if b.AtRelative.Ref != nil {
		t.Errorf("b should be absolute in the second instrument, got ref %v", b.AtRelative.Ref.Name)
	}
}
