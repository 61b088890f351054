package main

import (
	"fmt"
	"io"
	"sort"
)

// threadEntry summarizes one thread of a profile. compiled and topMethod
// are only filled when the profile is read against an experiment.
type threadEntry struct {
	name      string
	samples   int
	compiled  int    // self samples attributable to compiled methods
	topMethod string // compiled method with the most self samples
}

// compiledMethods returns the methodKeys of every compilation in exp, the
// same keys attributeSamples joins a profile on.
func compiledMethods(exp *Experiment) map[string]bool {
	if exp == nil {
		return nil
	}
	keys := make(map[string]bool)
	for _, m := range exp.ExecutedMethods() {
		keys[methodKey(m.MethodName)] = true
	}
	return keys
}

// computeThreads ranks the threads of a profile by sample count. Samples
// without a thread are counted separately. When compiled is not nil, each
// entry also counts the leaf samples that would be attributed to one of
// those methods.
func computeThreads(sf *stackFile, compiled map[string]bool) (ranked []threadEntry, noThread int, hasThread bool) {
	if sf.totalSamples == 0 {
		return nil, 0, false
	}

	entries := make(map[string]*threadEntry)
	perMethod := make(map[string]map[string]int)
	for i := range sf.stacks {
		st := &sf.stacks[i]
		if st.thread == "" {
			noThread += st.count
			continue
		}
		hasThread = true
		e, ok := entries[st.thread]
		if !ok {
			e = &threadEntry{name: st.thread}
			entries[st.thread] = e
			perMethod[st.thread] = make(map[string]int)
		}
		e.samples += st.count
		if len(st.frames) == 0 {
			continue
		}
		if key := methodKey(st.frames[len(st.frames)-1]); compiled[key] {
			e.compiled += st.count
			perMethod[st.thread][key] += st.count
		}
	}

	for name, e := range entries {
		best := 0
		for key, n := range perMethod[name] {
			if n > best || (n == best && key < e.topMethod) {
				best, e.topMethod = n, key
			}
		}
		ranked = append(ranked, *e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].samples != ranked[j].samples {
			return ranked[i].samples > ranked[j].samples
		}
		return ranked[i].name < ranked[j].name
	})
	return
}

// printThreads lists the threads a --thread filter can select. With an
// experiment it also shows how much of each thread lands on its
// compilations, which is the share a bisection restricted to that thread
// would see.
func printThreads(w io.Writer, sf *stackFile, exp *Experiment, top int, fqn bool) {
	ranked, noThread, hasThread := computeThreads(sf, compiledMethods(exp))
	if !hasThread {
		if sf.totalSamples > 0 {
			fmt.Fprintln(w, "no thread info in this profile")
		}
		return
	}

	ranked = ranked[:truncate(len(ranked), top)]
	share := func(n, of int) float64 { return 100.0 * float64(n) / float64(of) }

	if exp == nil {
		fmt.Fprintf(w, "%-30s %9s %7s\n", "THREAD", "SAMPLES", "PCT")
		for _, e := range ranked {
			fmt.Fprintf(w, "%-30s %9d %6.1f%%\n", e.name, e.samples, share(e.samples, sf.totalSamples))
		}
	} else {
		fmt.Fprintf(w, "%-30s %9s %7s %9s %7s  %s\n", "THREAD", "SAMPLES", "PCT", "COMPILED", "OF THR", "TOP COMPILED METHOD")
		for _, e := range ranked {
			topMethod := "-"
			if e.topMethod != "" {
				topMethod = displayName(e.topMethod, fqn)
			}
			fmt.Fprintf(w, "%-30s %9d %6.1f%% %9d %6.1f%%  %s\n",
				e.name, e.samples, share(e.samples, sf.totalSamples),
				e.compiled, share(e.compiled, e.samples), topMethod)
		}
	}
	if noThread > 0 {
		fmt.Fprintf(w, "%-30s %9d %6.1f%%\n", "(no thread info)", noThread, share(noThread, sf.totalSamples))
	}
}
