package main

// OptimizationMatcher pairs two flat lists of optimizations.
type OptimizationMatcher interface {
	Match(a, b []*Optimization) *OptimizationMatching
}

type OptimizationPair struct {
	A *Optimization
	B *Optimization
}

type OptimizationMatching struct {
	Matched []OptimizationPair
	ExtraA  []*Optimization
	ExtraB  []*Optimization
}

// MatchLeaves flattens both compilations' trees and matches their
// optimizations with m.
func MatchLeaves(a, b *ExecutedMethod, m OptimizationMatcher) *OptimizationMatching {
	return m.Match(a.RootPhase.OptimizationsRecursive(), b.RootPhase.OptimizationsRecursive())
}

// SetOptimizationMatcher matches structurally equal optimizations. Equal
// duplicates are counted, not collapsed: each element of a can be matched
// at most once.
type SetOptimizationMatcher struct{}

type optimizationKey struct {
	name  string
	event string
	bci   int
}

func keyOf(o *Optimization) optimizationKey {
	return optimizationKey{o.OptimizationName, o.EventName, o.BCI}
}

func (SetOptimizationMatcher) Match(a, b []*Optimization) *OptimizationMatching {
	result := &OptimizationMatching{}
	buckets := make(map[optimizationKey][]int)
	for i, o := range a {
		k := keyOf(o)
		buckets[k] = append(buckets[k], i)
	}
	used := make([]bool, len(a))

	for _, o := range b {
		k := keyOf(o)
		bucket := buckets[k]
		found := -1
		for pos, i := range bucket {
			if a[i].Equal(o) {
				found = pos
				break
			}
		}
		if found < 0 {
			result.ExtraB = append(result.ExtraB, o)
			continue
		}
		i := bucket[found]
		buckets[k] = append(bucket[:found:found], bucket[found+1:]...)
		used[i] = true
		result.Matched = append(result.Matched, OptimizationPair{A: a[i], B: o})
	}
	for i, o := range a {
		if !used[i] {
			result.ExtraA = append(result.ExtraA, o)
		}
	}
	return result
}

// NaiveOptimizationMatcher pairs optimizations that declare the same BCI,
// first come first served. Names and properties are not compared, so a
// decision whose properties drifted between runs still pairs up with its
// counterpart at the same location. Optimizations without a declared BCI
// never match.
type NaiveOptimizationMatcher struct{}

func (NaiveOptimizationMatcher) Match(a, b []*Optimization) *OptimizationMatching {
	result := &OptimizationMatching{}
	queues := make(map[int][]int)
	for j, o := range b {
		if o.BCI != NoBCI {
			queues[o.BCI] = append(queues[o.BCI], j)
		}
	}
	used := make([]bool, len(b))

	for _, o := range a {
		q := queues[o.BCI]
		if len(q) == 0 {
			result.ExtraA = append(result.ExtraA, o)
			continue
		}
		j := q[0]
		queues[o.BCI] = q[1:]
		used[j] = true
		result.Matched = append(result.Matched, OptimizationPair{A: o, B: b[j]})
	}
	for j, o := range b {
		if !used[j] {
			result.ExtraB = append(result.ExtraB, o)
		}
	}
	return result
}
