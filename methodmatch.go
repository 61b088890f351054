package main

import "sort"

// MethodMatcher pairs the compilations of two experiments by method name.
type MethodMatcher interface {
	Match(a, b *Experiment) *MethodMatching
}

// GreedyMethodMatcher matches hot compilations only. Compilations that are
// not hot neither match nor count as extra.
type GreedyMethodMatcher struct{}

func (GreedyMethodMatcher) Match(a, b *Experiment) *MethodMatching {
	return matchMethods(a, b, isHot)
}

// NaiveMethodMatcher matches every compilation regardless of its hot flag.
type NaiveMethodMatcher struct{}

func (NaiveMethodMatcher) Match(a, b *Experiment) *MethodMatching {
	return matchMethods(a, b, nil)
}

// FilteredMethodMatcher narrows another matcher's input with Filter.
type FilteredMethodMatcher struct {
	HotOnly bool
	Filter  func(*ExecutedMethod) bool
}

func (f FilteredMethodMatcher) Match(a, b *Experiment) *MethodMatching {
	return matchMethods(a, b, func(m *ExecutedMethod) bool {
		if f.HotOnly && !m.Hot {
			return false
		}
		return f.Filter == nil || f.Filter(m)
	})
}

func isHot(m *ExecutedMethod) bool { return m.Hot }

// MatchedExecutedMethod pairs a compilation from experiment ONE with one
// from experiment TWO.
type MatchedExecutedMethod struct {
	Method1 *ExecutedMethod
	Method2 *ExecutedMethod
}

// ExtraExecutedMethod is a compilation left without a partner.
type ExtraExecutedMethod struct {
	ID     ExperimentID
	Method *ExecutedMethod
}

// MatchedMethod is a method name present in both experiments.
type MatchedMethod struct {
	Name                   string
	MatchedExecutedMethods []MatchedExecutedMethod
	ExtraExecutedMethods   []ExtraExecutedMethod
}

// ExtraExecutedMethodsOf returns the unpaired compilations of one side.
func (mm *MatchedMethod) ExtraExecutedMethodsOf(id ExperimentID) []*ExecutedMethod {
	var out []*ExecutedMethod
	for _, e := range mm.ExtraExecutedMethods {
		if e.ID == id {
			out = append(out, e.Method)
		}
	}
	return out
}

// ExtraMethod is a method name present in only one experiment.
type ExtraMethod struct {
	Name            string
	ID              ExperimentID
	ExecutedMethods []*ExecutedMethod
}

type MethodMatching struct {
	MatchedMethods []*MatchedMethod
	ExtraMethods   []*ExtraMethod
}

// MatchedPairs flattens every matched compilation pair.
func (mm *MethodMatching) MatchedPairs() []MatchedExecutedMethod {
	var out []MatchedExecutedMethod
	for _, m := range mm.MatchedMethods {
		out = append(out, m.MatchedExecutedMethods...)
	}
	return out
}

// CountsFor returns how many compilations of one side were paired and how
// many were left over, either under a shared name or as an extra method.
func (mm *MethodMatching) CountsFor(id ExperimentID) (matched, extra int) {
	for _, m := range mm.MatchedMethods {
		matched += len(m.MatchedExecutedMethods)
		extra += len(m.ExtraExecutedMethodsOf(id))
	}
	for _, e := range mm.ExtraMethods {
		if e.ID == id {
			extra += len(e.ExecutedMethods)
		}
	}
	return matched, extra
}

type methodGroup struct {
	name    string
	methods []*ExecutedMethod
}

// groupByName partitions the compilations accepted by filter by method name,
// keeping the order of first appearance.
func groupByName(exp *Experiment, filter func(*ExecutedMethod) bool) (map[string]*methodGroup, []string) {
	groups := make(map[string]*methodGroup)
	var order []string
	if exp == nil {
		return groups, nil
	}
	for _, m := range exp.ExecutedMethods() {
		if filter != nil && !filter(m) {
			continue
		}
		g, ok := groups[m.MethodName]
		if !ok {
			g = &methodGroup{name: m.MethodName}
			groups[m.MethodName] = g
			order = append(order, m.MethodName)
		}
		g.methods = append(g.methods, m)
	}
	return groups, order
}

func byPeriodDesc(methods []*ExecutedMethod) []*ExecutedMethod {
	sorted := make([]*ExecutedMethod, len(methods))
	copy(sorted, methods)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Period > sorted[j].Period })
	return sorted
}

// matchMethods is the shared greedy core. Within a name present on both
// sides the i-th largest period of a is paired with the i-th largest of b.
func matchMethods(a, b *Experiment, filter func(*ExecutedMethod) bool) *MethodMatching {
	groupsA, orderA := groupByName(a, filter)
	groupsB, orderB := groupByName(b, filter)
	result := &MethodMatching{}

	names := append([]string(nil), orderA...)
	for _, name := range orderB {
		if _, ok := groupsA[name]; !ok {
			names = append(names, name)
		}
	}

	for _, name := range names {
		ga, inA := groupsA[name]
		gb, inB := groupsB[name]
		switch {
		case inA && !inB:
			result.ExtraMethods = append(result.ExtraMethods, &ExtraMethod{Name: name, ID: a.ID, ExecutedMethods: ga.methods})
		case !inA && inB:
			result.ExtraMethods = append(result.ExtraMethods, &ExtraMethod{Name: name, ID: b.ID, ExecutedMethods: gb.methods})
		default:
			result.MatchedMethods = append(result.MatchedMethods, pairGreedy(name, a.ID, ga.methods, b.ID, gb.methods))
		}
	}
	return result
}

func pairGreedy(name string, idA ExperimentID, ma []*ExecutedMethod, idB ExperimentID, mb []*ExecutedMethod) *MatchedMethod {
	sa, sb := byPeriodDesc(ma), byPeriodDesc(mb)
	mm := &MatchedMethod{Name: name}
	n := min(len(sa), len(sb))
	for i := 0; i < n; i++ {
		mm.MatchedExecutedMethods = append(mm.MatchedExecutedMethods, MatchedExecutedMethod{Method1: sa[i], Method2: sb[i]})
	}
	for _, m := range sa[n:] {
		mm.ExtraExecutedMethods = append(mm.ExtraExecutedMethods, ExtraExecutedMethod{ID: idA, Method: m})
	}
	for _, m := range sb[n:] {
		mm.ExtraExecutedMethods = append(mm.ExtraExecutedMethods, ExtraExecutedMethod{ID: idB, Method: m})
	}
	return mm
}
