package main

import (
	"math/rand"
	"testing"
)

func opNames(ops []Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return out
}

func TestSelkowPrefersInsertDeleteOverRelabel(t *testing.T) {
	foo := opt("foo", 1)
	bar := opt("bar", 1)
	a := NewRootPhase(foo)
	b := NewRootPhase(bar)

	script := SelkowTreeMatcher{}.MatchTrees(a, b)
	ops := script.Operations()
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %v", opNames(ops))
	}
	del, ok := ops[0].(Delete)
	if !ok || del.Node != foo || del.Parent != a || del.Index != 0 {
		t.Errorf("first operation = %v, want Delete(foo)", ops[0])
	}
	ins, ok := ops[1].(Insert)
	if !ok || ins.Node != bar || ins.Parent != b || ins.Index != 0 {
		t.Errorf("second operation = %v, want Insert(bar)", ops[1])
	}
	if len(script.Relabeled()) != 0 {
		t.Error("no relabel expected")
	}
	if script.Cost() != 2 {
		t.Errorf("Cost = %d, want 2", script.Cost())
	}
}

func TestSelkowIdenticalTrees(t *testing.T) {
	build := func() *OptimizationPhase {
		return NewRootPhase(
			NewOptimizationPhase("Inlining", opt("Inline", 1), opt("Inline", 5)),
			NewOptimizationPhase("LoopTransform", NewOptimizationPhase("Peel", opt("Peel", 9))),
		)
	}
	script := SelkowTreeMatcher{}.MatchTrees(build(), build())
	if !script.IsEmpty() {
		t.Errorf("expected empty script, got %v", opNames(script.Operations()))
	}
	if script.Cost() != 0 {
		t.Errorf("Cost = %d, want 0", script.Cost())
	}
}

func TestSelkowSingleNodeTrees(t *testing.T) {
	script := SelkowTreeMatcher{}.MatchTrees(NewRootPhase(), NewRootPhase())
	if !script.IsEmpty() {
		t.Errorf("expected empty script, got %v", opNames(script.Operations()))
	}

	// Whole-tree replacement when the roots cannot be matched.
	a := NewOptimizationPhase("P")
	b := opt("x", 0)
	script = SelkowTreeMatcher{}.MatchTrees(a, b)
	got := opNames(script.Operations())
	want := []string{"Delete(P)", "Insert(x Applied at bci 0)"}
	if !equalStrings(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if res := script.Apply(a); !NodesEqual(res, b) {
		t.Error("Apply did not produce the second tree")
	}
}

func TestSelkowNestedChanges(t *testing.T) {
	keep := opt("keep", 1)
	gone := opt("gone", 2)
	added := opt("added", 3)
	a := NewRootPhase(
		NewOptimizationPhase("Inlining", keep, gone),
		NewOptimizationPhase("Obsolete", opt("o1", 4), opt("o2", 5)),
	)
	b := NewRootPhase(
		NewOptimizationPhase("Inlining", opt("keep", 1), added),
	)

	script := SelkowTreeMatcher{}.MatchTrees(a, b)
	got := opNames(script.Operations())
	want := []string{
		"Delete(gone Applied at bci 2)",
		"Insert(added Applied at bci 3)",
		"Delete(Obsolete)",
	}
	if !equalStrings(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	// deleting the Obsolete subtree costs its three nodes
	if script.Cost() != 5 {
		t.Errorf("Cost = %d, want 5", script.Cost())
	}
}

func TestSelkowRelabelsPhaseWithSharedChildren(t *testing.T) {
	shared := func() []OptimizationTreeNode {
		return []OptimizationTreeNode{opt("a", 1), opt("b", 2), opt("c", 3)}
	}
	a := NewRootPhase(NewOptimizationPhase("Old", shared()...))
	b := NewRootPhase(NewOptimizationPhase("New", shared()...))

	script := SelkowTreeMatcher{}.MatchTrees(a, b)
	rel := script.Relabeled()
	if len(rel) != 1 || len(script.Operations()) != 1 {
		t.Fatalf("expected a single relabel, got %v", opNames(script.Operations()))
	}
	if rel[0].Old != a.Children[0] || rel[0].New != b.Children[0] {
		t.Error("relabel should reference the two phases")
	}
	if script.Cost() != relabelMismatchCost {
		t.Errorf("Cost = %d, want %d", script.Cost(), relabelMismatchCost)
	}
}

func TestSelkowMatchExecutedMethods(t *testing.T) {
	a := executedMethod("1", "m", 1)
	b := executedMethod("2", "m", 1)
	b.RootPhase = NewRootPhase(opt("x", 1))
	a.RootPhase = nil

	script := SelkowTreeMatcher{}.Match(a, b)
	if got := opNames(script.Operations()); !equalStrings(got, []string{"Insert(x Applied at bci 1)"}) {
		t.Errorf("ops = %v", got)
	}
}

// randomTree builds a small tree over a tiny alphabet so that random pairs
// share structure.
func randomTree(rng *rand.Rand, depth int) *OptimizationPhase {
	phases := []string{"A", "B", "C"}
	p := NewOptimizationPhase(phases[rng.Intn(len(phases))])
	n := rng.Intn(4)
	for i := 0; i < n; i++ {
		if depth > 0 && rng.Intn(3) == 0 {
			p.AddChild(randomTree(rng, depth-1))
		} else {
			p.AddChild(opt([]string{"x", "y", "z"}[rng.Intn(3)], rng.Intn(2)))
		}
	}
	return p
}

// Applying the script to the first tree yields the second one, and the
// script's cost never exceeds rebuilding the tree from scratch.
func TestSelkowRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 300; iter++ {
		a := NewRootPhase(randomTree(rng, 3), randomTree(rng, 2))
		b := NewRootPhase(randomTree(rng, 3))
		if rng.Intn(2) == 0 {
			b.AddChild(CloneTree(a.Children[0]))
		}
		snapshot := CloneTree(a)

		script := SelkowTreeMatcher{}.MatchTrees(a, b)
		got := script.Apply(a)
		if !NodesEqual(got, b) {
			t.Fatalf("iter %d: round trip failed\nops: %v", iter, opNames(script.Operations()))
		}
		if !NodesEqual(a, snapshot) {
			t.Fatalf("iter %d: Apply modified its input", iter)
		}
		if script.Cost() > SubtreeSize(a)+SubtreeSize(b) {
			t.Fatalf("iter %d: cost %d exceeds replacement", iter, script.Cost())
		}
		if NodesEqual(a, b) != script.IsEmpty() {
			t.Fatalf("iter %d: empty script iff equal trees", iter)
		}
		if rev := (SelkowTreeMatcher{}).MatchTrees(b, a); rev.Cost() != script.Cost() {
			t.Fatalf("iter %d: distance not symmetric: %d vs %d", iter, script.Cost(), rev.Cost())
		}
	}
}
