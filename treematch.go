package main

import "math"

// Edit costs. Inserting or deleting a subtree costs one per node. Relabeling
// two nodes of the same kind with different labels costs as much as deleting
// one leaf and inserting another, so a changed leaf is never relabeled.
const (
	insertCost          = 1
	deleteCost          = 1
	relabelMismatchCost = insertCost + deleteCost

	forbiddenCost = math.MaxInt / 4
)

// SelkowTreeMatcher computes a minimum-cost edit script between two ordered
// optimization trees, following Selkow's tree-to-tree correction: a node can
// only be matched if its parents are matched, and insertions and deletions
// act on whole subtrees.
//
// Among scripts of equal cost the matcher prefers inserting and deleting
// over matching, and when walking a forest table backwards it prefers an
// insertion over a deletion. Read forwards this consumes the first tree
// first: a changed leaf is reported as Delete(old) followed by Insert(new).
type SelkowTreeMatcher struct{}

// Match diffs the optimization trees of two compilations.
func (m SelkowTreeMatcher) Match(a, b *ExecutedMethod) *EditScript {
	return m.MatchTrees(rootOf(a), rootOf(b))
}

func rootOf(m *ExecutedMethod) OptimizationTreeNode {
	if m == nil || m.RootPhase == nil {
		return NewRootPhase()
	}
	return m.RootPhase
}

// MatchTrees diffs two arbitrary trees.
func (SelkowTreeMatcher) MatchTrees(a, b OptimizationTreeNode) *EditScript {
	s := &selkow{
		a:    newTreeArena(a),
		b:    newTreeArena(b),
		memo: make(map[nodePair]int),
	}
	replace := s.a.size(0)*deleteCost + s.b.size(0)*insertCost
	var roots []*deltaNode
	if d := s.treeDistance(0, 0); d < replace {
		roots = []*deltaNode{s.trace(0, 0)}
	} else {
		roots = []*deltaNode{
			{kind: deltaDelete, a: a, index: 0, changed: true},
			{kind: deltaInsert, b: b, index: 0, changed: true},
		}
	}
	return newEditScript(roots)
}

// treeArena stores a tree in pre-order with index-based child lists.
type treeArena struct {
	nodes []arenaNode
}

type arenaNode struct {
	node     OptimizationTreeNode
	children []int
	size     int
}

func newTreeArena(root OptimizationTreeNode) *treeArena {
	t := &treeArena{}
	t.add(root)
	return t
}

func (t *treeArena) add(n OptimizationTreeNode) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, arenaNode{node: n, size: 1})
	kids := children(n)
	if len(kids) > 0 {
		ids := make([]int, len(kids))
		for i, c := range kids {
			ids[i] = t.add(c)
			t.nodes[idx].size += t.nodes[ids[i]].size
		}
		t.nodes[idx].children = ids
	}
	return idx
}

func (t *treeArena) size(i int) int { return t.nodes[i].size }

type nodePair struct{ a, b int }

type selkow struct {
	a, b *treeArena
	memo map[nodePair]int
}

func (s *selkow) relabelCost(i, j int) int {
	x, y := s.a.nodes[i].node, s.b.nodes[j].node
	switch {
	case !sameKind(x, y):
		return forbiddenCost
	case labelsEqual(x, y):
		return 0
	}
	return relabelMismatchCost
}

// treeDistance is the cost of transforming subtree i of a into subtree j of
// b with their roots matched.
func (s *selkow) treeDistance(i, j int) int {
	key := nodePair{i, j}
	if d, ok := s.memo[key]; ok {
		return d
	}
	d := s.relabelCost(i, j)
	if d < forbiddenCost {
		table := s.forestTable(i, j)
		d += table[len(table)-1][len(table[0])-1]
	}
	s.memo[key] = d
	return d
}

// forestTable fills D[x][y], the cost of turning the first x children of i
// into the first y children of j.
func (s *selkow) forestTable(i, j int) [][]int {
	ca, cb := s.a.nodes[i].children, s.b.nodes[j].children
	d := make([][]int, len(ca)+1)
	for x := range d {
		d[x] = make([]int, len(cb)+1)
	}
	for y := 1; y <= len(cb); y++ {
		d[0][y] = d[0][y-1] + s.b.size(cb[y-1])*insertCost
	}
	for x := 1; x <= len(ca); x++ {
		d[x][0] = d[x-1][0] + s.a.size(ca[x-1])*deleteCost
		for y := 1; y <= len(cb); y++ {
			best := d[x-1][y] + s.a.size(ca[x-1])*deleteCost
			best = min(best, d[x][y-1]+s.b.size(cb[y-1])*insertCost)
			if td := s.treeDistance(ca[x-1], cb[y-1]); td < forbiddenCost {
				best = min(best, d[x-1][y-1]+td)
			}
			d[x][y] = best
		}
	}
	return d
}

type stepKind int

const (
	stepInsert stepKind = iota
	stepDelete
	stepMatch
)

type step struct {
	kind stepKind
	x, y int // child positions, 0-based
}

// trace rebuilds the optimal alignment of the matched pair (i, j).
func (s *selkow) trace(i, j int) *deltaNode {
	x, y := s.a.nodes[i].node, s.b.nodes[j].node
	dn := &deltaNode{kind: deltaIdentity, a: x, b: y}
	if s.relabelCost(i, j) > 0 {
		dn.kind = deltaRelabel
		dn.changed = true
	}

	ca, cb := s.a.nodes[i].children, s.b.nodes[j].children
	table := s.forestTable(i, j)
	var steps []step
	p, q := len(ca), len(cb)
	for p > 0 || q > 0 {
		switch {
		case q > 0 && table[p][q] == table[p][q-1]+s.b.size(cb[q-1])*insertCost:
			steps = append(steps, step{stepInsert, p - 1, q - 1})
			q--
		case p > 0 && table[p][q] == table[p-1][q]+s.a.size(ca[p-1])*deleteCost:
			steps = append(steps, step{stepDelete, p - 1, q - 1})
			p--
		default:
			steps = append(steps, step{stepMatch, p - 1, q - 1})
			p--
			q--
		}
	}

	for k := len(steps) - 1; k >= 0; k-- {
		st := steps[k]
		var child *deltaNode
		switch st.kind {
		case stepInsert:
			child = &deltaNode{kind: deltaInsert, b: s.b.nodes[cb[st.y]].node, index: st.y, changed: true}
		case stepDelete:
			child = &deltaNode{kind: deltaDelete, a: s.a.nodes[ca[st.x]].node, index: st.x, changed: true}
		case stepMatch:
			child = s.trace(ca[st.x], cb[st.y])
			child.index = st.y
		}
		dn.children = append(dn.children, child)
		if child.changed {
			dn.changed = true
		}
	}
	return dn
}
