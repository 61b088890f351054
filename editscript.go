package main

import (
	"fmt"
	"slices"
)

// Operation is one step of an edit script: Insert, Delete or Relabel.
type Operation interface {
	// Cost is the operation's share of the script's total cost.
	Cost() int
	fmt.Stringer
	operation()
}

// Insert adds the subtree Node of the second tree as the Index-th child of
// Parent, a node of the second tree. Parent is nil when the whole second
// tree is inserted.
type Insert struct {
	Node   OptimizationTreeNode
	Parent OptimizationTreeNode
	Index  int
}

// Delete removes the subtree Node of the first tree, the Index-th child of
// Parent. Parent is nil when the whole first tree is deleted.
type Delete struct {
	Node   OptimizationTreeNode
	Parent OptimizationTreeNode
	Index  int
}

// Relabel gives the node Old of the first tree the label of New.
type Relabel struct {
	Old OptimizationTreeNode
	New OptimizationTreeNode
}

func (Insert) operation()  {}
func (Delete) operation()  {}
func (Relabel) operation() {}

func (op Insert) Cost() int  { return SubtreeSize(op.Node) * insertCost }
func (op Delete) Cost() int  { return SubtreeSize(op.Node) * deleteCost }
func (op Relabel) Cost() int { return relabelMismatchCost }

func (op Insert) String() string  { return "Insert(" + op.Node.Label() + ")" }
func (op Delete) String() string  { return "Delete(" + op.Node.Label() + ")" }
func (op Relabel) String() string { return "Relabel(" + op.Old.Label() + ", " + op.New.Label() + ")" }

type deltaKind int

const (
	deltaIdentity deltaKind = iota
	deltaRelabel
	deltaInsert
	deltaDelete
)

// deltaNode is one node of the aligned tree: a matched pair (identity or
// relabel) or an inserted or deleted subtree.
type deltaNode struct {
	kind     deltaKind
	a, b     OptimizationTreeNode
	index    int
	children []*deltaNode
	changed  bool
}

// EditScript transforms one optimization tree into another.
type EditScript struct {
	roots []*deltaNode
	ops   []Operation
	// matched node of the second tree -> node of the first tree
	pairs map[OptimizationTreeNode]OptimizationTreeNode
}

func newEditScript(roots []*deltaNode) *EditScript {
	s := &EditScript{roots: roots, pairs: make(map[OptimizationTreeNode]OptimizationTreeNode)}
	var walk func(dn, parent *deltaNode)
	walk = func(dn, parent *deltaNode) {
		var pa, pb OptimizationTreeNode
		if parent != nil {
			pa, pb = parent.a, parent.b
		}
		switch dn.kind {
		case deltaInsert:
			s.ops = append(s.ops, Insert{Node: dn.b, Parent: pb, Index: dn.index})
			return
		case deltaDelete:
			s.ops = append(s.ops, Delete{Node: dn.a, Parent: pa, Index: dn.index})
			return
		case deltaRelabel:
			s.ops = append(s.ops, Relabel{Old: dn.a, New: dn.b})
		}
		s.pairs[dn.b] = dn.a
		for _, c := range dn.children {
			walk(c, dn)
		}
	}
	for _, r := range roots {
		walk(r, nil)
	}
	return s
}

// Operations returns the operations in pre-order of the aligned tree.
func (s *EditScript) Operations() []Operation { return s.ops }

func (s *EditScript) IsEmpty() bool { return len(s.ops) == 0 }

// Cost is the total cost of the script, i.e. the tree edit distance.
func (s *EditScript) Cost() int {
	total := 0
	for _, op := range s.ops {
		total += op.Cost()
	}
	return total
}

func (s *EditScript) Inserted() []Insert   { return opsOf[Insert](s.ops) }
func (s *EditScript) Deleted() []Delete    { return opsOf[Delete](s.ops) }
func (s *EditScript) Relabeled() []Relabel { return opsOf[Relabel](s.ops) }

func opsOf[T Operation](ops []Operation) []T {
	var out []T
	for _, op := range ops {
		if t, ok := op.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// Apply replays the script on a copy of root, which must be the first tree
// the script was computed from, and returns the resulting tree. root itself
// is not modified.
func (s *EditScript) Apply(root OptimizationTreeNode) OptimizationTreeNode {
	clones := make(map[OptimizationTreeNode]OptimizationTreeNode)
	result := cloneTracked(root, clones)

	deleted := make(map[OptimizationTreeNode]bool)
	for _, op := range s.ops {
		switch op := op.(type) {
		case Relabel:
			relabelInPlace(clones[op.Old], op.New)
		case Delete:
			if op.Parent == nil {
				result = nil
				continue
			}
			deleted[clones[op.Node]] = true
		}
	}
	removeDeleted(result, deleted)

	for _, op := range s.ops {
		ins, ok := op.(Insert)
		if !ok {
			continue
		}
		if ins.Parent == nil {
			result = CloneTree(ins.Node)
			continue
		}
		parent, ok := clones[s.pairs[ins.Parent]].(*OptimizationPhase)
		if !ok {
			continue
		}
		idx := min(ins.Index, len(parent.Children))
		parent.Children = slices.Insert(parent.Children, idx, CloneTree(ins.Node))
	}
	return result
}

func cloneTracked(n OptimizationTreeNode, clones map[OptimizationTreeNode]OptimizationTreeNode) OptimizationTreeNode {
	var c OptimizationTreeNode
	switch n := n.(type) {
	case *Optimization:
		c = n.clone()
	case *OptimizationPhase:
		p := &OptimizationPhase{Name: n.Name}
		for _, child := range n.Children {
			p.Children = append(p.Children, cloneTracked(child, clones))
		}
		c = p
	default:
		return nil
	}
	clones[n] = c
	return c
}

func relabelInPlace(target, label OptimizationTreeNode) {
	switch t := target.(type) {
	case *OptimizationPhase:
		if l, ok := label.(*OptimizationPhase); ok {
			t.Name = l.Name
		}
	case *Optimization:
		if l, ok := label.(*Optimization); ok {
			*t = *l.clone()
		}
	}
}

func removeDeleted(n OptimizationTreeNode, deleted map[OptimizationTreeNode]bool) {
	p, ok := n.(*OptimizationPhase)
	if !ok || len(deleted) == 0 {
		return
	}
	kept := p.Children[:0]
	for _, c := range p.Children {
		if deleted[c] {
			continue
		}
		removeDeleted(c, deleted)
		kept = append(kept, c)
	}
	p.Children = kept
}
