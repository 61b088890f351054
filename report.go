package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

type reportOptions struct {
	fqn    bool
	method string // substring filter, "" for all
	top    int    // max matched methods, 0 for all
}

func pct(m *ExecutedMethod) float64 {
	return 100.0 * m.PeriodFraction()
}

func printExperimentHeader(w io.Writer, exp *Experiment, hot int) {
	fmt.Fprintf(w, "Experiment %s\n", exp.ID)
	fmt.Fprintf(w, "  execution id:     %s\n", exp.ExecutionID)
	fmt.Fprintf(w, "  total period:     %d\n", exp.TotalPeriod)
	fmt.Fprintf(w, "  graal period:     %d\n", exp.GraalPeriod)
	fmt.Fprintf(w, "  hot compilations: %d of %d\n", hot, len(exp.ExecutedMethods()))
}

func printHotMethods(w io.Writer, exp *Experiment, hot []*ExecutedMethod, top int, fqn bool) {
	covered := 0.0
	for _, m := range hot {
		covered += pct(m)
	}
	shown := hot[:truncate(len(hot), top)]
	fmt.Fprintf(w, "=== HOT COMPILATIONS (%d of %d, %.1f%% of total period) ===\n", len(hot), len(exp.ExecutedMethods()), covered)
	fmt.Fprintf(w, "%-12s %-50s %12s %7s\n", "COMPILATION", "METHOD", "PERIOD", "PCT")
	for _, m := range shown {
		fmt.Fprintf(w, "%-12s %-50s %12d %6.1f%%\n", m.CompilationID, displayName(m.MethodName, fqn), m.Period, pct(m))
	}
}

// printBisection renders the method matching of b and, for every matched
// compilation pair, the differences between their optimization trees.
func printBisection(w io.Writer, b *Bisection, opts reportOptions) {
	printExperimentHeader(w, b.Experiment1, len(b.Hot1))
	printExperimentHeader(w, b.Experiment2, len(b.Hot2))

	var methods []*MatchedMethod
	for _, mm := range b.Matching.MatchedMethods {
		if opts.method == "" || matchesMethod(mm.Name, opts.method) {
			methods = append(methods, mm)
		}
	}
	weight := func(mm *MatchedMethod) float64 {
		sum := 0.0
		for _, p := range mm.MatchedExecutedMethods {
			sum += p.Method1.PeriodFraction() + p.Method2.PeriodFraction()
		}
		return sum
	}
	sort.SliceStable(methods, func(i, j int) bool { return weight(methods[i]) > weight(methods[j]) })
	methods = methods[:truncate(len(methods), opts.top)]

	for _, mm := range methods {
		fmt.Fprintf(w, "\n=== METHOD %s ===\n", displayName(mm.Name, opts.fqn))
		for _, d := range b.DiffsOf(mm) {
			m1, m2 := d.Pair.Method1, d.Pair.Method2
			fmt.Fprintf(w, "  compilation %s (%s, %.1f%%) vs compilation %s (%s, %.1f%%)\n",
				m1.CompilationID, b.Experiment1.ID, pct(m1), m2.CompilationID, b.Experiment2.ID, pct(m2))
			printEditScript(w, d.Script, 2)
			if d.Leaves != nil {
				printLeafMatching(w, d.Leaves, b.Experiment1.ID, b.Experiment2.ID, 2)
			}
		}
		for _, e := range mm.ExtraExecutedMethods {
			fmt.Fprintf(w, "  EXTRA compilation %s in %s (%.1f%%)\n", e.Method.CompilationID, e.ID, pct(e.Method))
		}
	}

	printExtraMethods(w, b.Matching, b.Experiment1.ID, opts)
	printExtraMethods(w, b.Matching, b.Experiment2.ID, opts)
}

func printExtraMethods(w io.Writer, mm *MethodMatching, id ExperimentID, opts reportOptions) {
	var extras []*ExtraMethod
	for _, e := range mm.ExtraMethods {
		if e.ID == id && (opts.method == "" || matchesMethod(e.Name, opts.method)) {
			extras = append(extras, e)
		}
	}
	if len(extras) == 0 {
		return
	}
	fmt.Fprintf(w, "\nONLY IN %s\n", id)
	for _, e := range extras {
		total := 0.0
		for _, m := range e.ExecutedMethods {
			total += pct(m)
		}
		fmt.Fprintf(w, "  %-50s %3d compilation(s) %6.1f%%\n", displayName(e.Name, opts.fqn), len(e.ExecutedMethods), total)
	}
}

func printEditScript(w io.Writer, s *EditScript, indent int) {
	if s.IsEmpty() {
		fmt.Fprintf(w, "%sno differences in optimization trees\n", strings.Repeat("  ", indent))
		return
	}
	for _, r := range s.roots {
		printDelta(w, r, indent)
	}
}

func printDelta(w io.Writer, dn *deltaNode, depth int) {
	pad := strings.Repeat("  ", depth)
	switch dn.kind {
	case deltaInsert:
		printSubtree(w, "+ ", dn.b, depth)
		return
	case deltaDelete:
		printSubtree(w, "- ", dn.a, depth)
		return
	case deltaRelabel:
		fmt.Fprintf(w, "%s* %s -> %s\n", pad, dn.a.Label(), dn.b.Label())
	default:
		if !dn.changed {
			return
		}
		fmt.Fprintf(w, "%s  %s\n", pad, dn.a.Label())
	}
	for _, c := range dn.children {
		if c.changed {
			printDelta(w, c, depth+1)
		}
	}
}

func printSubtree(w io.Writer, marker string, n OptimizationTreeNode, depth int) {
	fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", depth), marker, n.Label())
	for _, c := range children(n) {
		printSubtree(w, marker, c, depth+1)
	}
}

func printLeafMatching(w io.Writer, m *OptimizationMatching, id1, id2 ExperimentID, indent int) {
	pad := strings.Repeat("  ", indent)
	fmt.Fprintf(w, "%sleaf optimizations: %d matched, %d only in %s, %d only in %s\n",
		pad, len(m.Matched), len(m.ExtraA), id1, len(m.ExtraB), id2)
	for _, o := range m.ExtraA {
		fmt.Fprintf(w, "%s  - %s\n", pad, o.Label())
	}
	for _, o := range m.ExtraB {
		fmt.Fprintf(w, "%s  + %s\n", pad, o.Label())
	}
}
