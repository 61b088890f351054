package main

import "fmt"

// CompilationDiff is the tree diff of one matched pair of compilations.
type CompilationDiff struct {
	Pair   MatchedExecutedMethod
	Script *EditScript
	// Leaves is set when leaf optimizations were matched too.
	Leaves *OptimizationMatching
}

// Bisection is the outcome of comparing two experiments.
type Bisection struct {
	Experiment1 *Experiment
	Experiment2 *Experiment
	Hot1        []*ExecutedMethod
	Hot2        []*ExecutedMethod
	Matching    *MethodMatching
	Diffs       []CompilationDiff
}

// Bisect runs the three stages for one pair of experiments, in order: hot
// marking, method matching, then a tree diff per matched compilation pair.
// It mutates the hot flags of a and b, so a pair must not be bisected
// concurrently with anything else reading them.
func Bisect(a, b *Experiment, cfg Config) (*Bisection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if a.ID == b.ID {
		return nil, fmt.Errorf("both experiments are %s", a.ID)
	}

	res := &Bisection{Experiment1: a, Experiment2: b}
	res.Hot1 = cfg.Policy.MarkHotMethods(a)
	res.Hot2 = cfg.Policy.MarkHotMethods(b)

	excluded, err := cfg.excludedMethods(a, b)
	if err != nil {
		return nil, err
	}
	res.Matching = cfg.methodMatcher(excluded).Match(a, b)

	optMatcher := cfg.optimizationMatcher()
	for _, pair := range res.Matching.MatchedPairs() {
		diff := CompilationDiff{
			Pair:   pair,
			Script: SelkowTreeMatcher{}.Match(pair.Method1, pair.Method2),
		}
		if optMatcher != nil {
			diff.Leaves = MatchLeaves(pair.Method1, pair.Method2, optMatcher)
		}
		res.Diffs = append(res.Diffs, diff)
	}
	return res, nil
}

// DiffsOf returns the compilation diffs belonging to one matched method.
func (b *Bisection) DiffsOf(mm *MatchedMethod) []CompilationDiff {
	var out []CompilationDiff
	for _, d := range b.Diffs {
		if d.Pair.Method1.MethodName == mm.Name {
			out = append(out, d)
		}
	}
	return out
}
