package main

import (
	"fmt"
	"maps"
	"reflect"
	"sort"
	"strings"
)

// RootPhaseName is the name of the phase at the root of every compilation's tree.
const RootPhaseName = "RootPhase"

// NoBCI marks an optimization without a known bytecode index.
const NoBCI = -1

// OptimizationTreeNode is either an *OptimizationPhase or an *Optimization.
type OptimizationTreeNode interface {
	// Label is the node's own text, ignoring children.
	Label() string
	treeNode()
}

// OptimizationPhase groups the optimizations and nested phases that ran
// inside one compiler phase. Children are ordered.
type OptimizationPhase struct {
	Name     string
	Children []OptimizationTreeNode
}

func NewOptimizationPhase(name string, children ...OptimizationTreeNode) *OptimizationPhase {
	return &OptimizationPhase{Name: name, Children: children}
}

func NewRootPhase(children ...OptimizationTreeNode) *OptimizationPhase {
	return NewOptimizationPhase(RootPhaseName, children...)
}

func (p *OptimizationPhase) treeNode()      {}
func (p *OptimizationPhase) Label() string { return p.Name }

func (p *OptimizationPhase) AddChild(child OptimizationTreeNode) {
	p.Children = append(p.Children, child)
}

// OptimizationsRecursive flattens the subtree in pre-order, keeping only the
// leaf optimizations.
func (p *OptimizationPhase) OptimizationsRecursive() []*Optimization {
	var out []*Optimization
	var walk func(n OptimizationTreeNode)
	walk = func(n OptimizationTreeNode) {
		switch n := n.(type) {
		case *Optimization:
			out = append(out, n)
		case *OptimizationPhase:
			for _, c := range n.Children {
				walk(c)
			}
		}
	}
	if p != nil {
		walk(p)
	}
	return out
}

// Optimization is a single optimization decision logged by the compiler.
type Optimization struct {
	OptimizationName string
	EventName        string
	// BCI is the bytecode index in the compiled root method, or NoBCI.
	BCI int
	// Position maps each enclosing method name to the BCI inside it.
	Position   map[string]int
	Properties *PropertyMap
}

func NewOptimization(optimizationName, eventName string, bci int, properties *PropertyMap) *Optimization {
	return &Optimization{
		OptimizationName: optimizationName,
		EventName:        eventName,
		BCI:              bci,
		Properties:       properties,
	}
}

func (o *Optimization) treeNode() {}

func (o *Optimization) Label() string {
	var sb strings.Builder
	sb.WriteString(o.OptimizationName)
	sb.WriteByte(' ')
	sb.WriteString(o.EventName)
	if o.BCI != NoBCI {
		fmt.Fprintf(&sb, " at bci %d", o.BCI)
	}
	if len(o.Position) > 0 {
		keys := make([]string, 0, len(o.Position))
		for k := range o.Position {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %d", k, o.Position[k])
		}
		fmt.Fprintf(&sb, " at {%s}", strings.Join(parts, ", "))
	}
	if o.Properties.Len() > 0 {
		fmt.Fprintf(&sb, " with %s", o.Properties)
	}
	return sb.String()
}

// Equal reports whether o and other describe the same decision. Position and
// property maps are compared without regard to key order.
func (o *Optimization) Equal(other *Optimization) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.OptimizationName == other.OptimizationName &&
		o.EventName == other.EventName &&
		o.BCI == other.BCI &&
		maps.Equal(o.Position, other.Position) &&
		o.Properties.Equal(other.Properties)
}

// NodesEqual compares two trees structurally. Children are compared in order.
func NodesEqual(a, b OptimizationTreeNode) bool {
	switch a := a.(type) {
	case *Optimization:
		b, ok := b.(*Optimization)
		return ok && a.Equal(b)
	case *OptimizationPhase:
		b, ok := b.(*OptimizationPhase)
		if !ok || a == nil || b == nil {
			return ok && a == b
		}
		if a.Name != b.Name || len(a.Children) != len(b.Children) {
			return false
		}
		for i := range a.Children {
			if !NodesEqual(a.Children[i], b.Children[i]) {
				return false
			}
		}
		return true
	}
	return a == nil && b == nil
}

// labelsEqual compares two nodes ignoring their children.
func labelsEqual(a, b OptimizationTreeNode) bool {
	switch a := a.(type) {
	case *Optimization:
		b, ok := b.(*Optimization)
		return ok && a.Equal(b)
	case *OptimizationPhase:
		b, ok := b.(*OptimizationPhase)
		return ok && a.Name == b.Name
	}
	return false
}

func sameKind(a, b OptimizationTreeNode) bool {
	switch a.(type) {
	case *Optimization:
		_, ok := b.(*Optimization)
		return ok
	case *OptimizationPhase:
		_, ok := b.(*OptimizationPhase)
		return ok
	}
	return false
}

func children(n OptimizationTreeNode) []OptimizationTreeNode {
	if p, ok := n.(*OptimizationPhase); ok && p != nil {
		return p.Children
	}
	return nil
}

// SubtreeSize counts n and all of its descendants.
func SubtreeSize(n OptimizationTreeNode) int {
	size := 1
	for _, c := range children(n) {
		size += SubtreeSize(c)
	}
	return size
}

// CloneTree returns a deep copy of n. Property maps are copied, their values
// are shared.
func CloneTree(n OptimizationTreeNode) OptimizationTreeNode {
	switch n := n.(type) {
	case *Optimization:
		return n.clone()
	case *OptimizationPhase:
		p := &OptimizationPhase{Name: n.Name}
		if n.Children != nil {
			p.Children = make([]OptimizationTreeNode, len(n.Children))
			for i, c := range n.Children {
				p.Children[i] = CloneTree(c)
			}
		}
		return p
	}
	return nil
}

func (o *Optimization) clone() *Optimization {
	c := *o
	c.Position = maps.Clone(o.Position)
	c.Properties = o.Properties.Clone()
	return &c
}

// Equivalence selects how PropertyMap values are compared.
type Equivalence int

const (
	// ByValue compares values deeply.
	ByValue Equivalence = iota
	// ByIdentity compares values with ==, and reference types by address.
	ByIdentity
)

func (e Equivalence) String() string {
	switch e {
	case ByValue:
		return "by-value"
	case ByIdentity:
		return "by-identity"
	}
	return fmt.Sprintf("Equivalence(%d)", int(e))
}

// PropertyMap is an unordered string-keyed map whose equality depends on its
// Equivalence. A nil *PropertyMap is an empty by-value map.
type PropertyMap struct {
	strategy Equivalence
	entries  map[string]any
}

func NewPropertyMap(strategy Equivalence) *PropertyMap {
	return &PropertyMap{strategy: strategy, entries: make(map[string]any)}
}

// Properties builds a by-value map from alternating key/value arguments.
func Properties(kv ...any) *PropertyMap {
	pm := NewPropertyMap(ByValue)
	for i := 0; i+1 < len(kv); i += 2 {
		pm.Put(fmt.Sprint(kv[i]), kv[i+1])
	}
	return pm
}

func (pm *PropertyMap) Strategy() Equivalence {
	if pm == nil {
		return ByValue
	}
	return pm.strategy
}

func (pm *PropertyMap) Put(key string, value any) {
	if pm.entries == nil {
		pm.entries = make(map[string]any)
	}
	pm.entries[key] = value
}

func (pm *PropertyMap) Get(key string) (any, bool) {
	if pm == nil {
		return nil, false
	}
	v, ok := pm.entries[key]
	return v, ok
}

func (pm *PropertyMap) Len() int {
	if pm == nil {
		return 0
	}
	return len(pm.entries)
}

// Keys returns the keys in sorted order.
func (pm *PropertyMap) Keys() []string {
	if pm == nil {
		return nil
	}
	keys := make([]string, 0, len(pm.entries))
	for k := range pm.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (pm *PropertyMap) Clone() *PropertyMap {
	if pm == nil {
		return nil
	}
	return &PropertyMap{strategy: pm.strategy, entries: maps.Clone(pm.entries)}
}

// Equal reports whether both maps hold the same keys with equivalent values.
// Maps built with different strategies are never equal.
func (pm *PropertyMap) Equal(other *PropertyMap) bool {
	if pm.Strategy() != other.Strategy() || pm.Len() != other.Len() {
		return false
	}
	for _, k := range pm.Keys() {
		v := pm.entries[k]
		w, ok := other.entries[k]
		if !ok || !valuesEquivalent(v, w, pm.Strategy()) {
			return false
		}
	}
	return true
}

func (pm *PropertyMap) String() string {
	keys := pm.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, pm.entries[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func valuesEquivalent(a, b any, strategy Equivalence) bool {
	if strategy == ByValue {
		return reflect.DeepEqual(a, b)
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	case reflect.Map, reflect.Func, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return va.Equal(vb)
}
