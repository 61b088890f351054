// profdiff: compare the optimization decisions of two profiled JIT compiler
// runs to bisect performance regressions.
//
// Usage:
//
//	profdiff <command> [flags] <files>
//
// Each experiment is a JSON file holding the compilations of one run with
// their profiling periods and optimization trees. Periods can instead be
// taken from a profile: .jfr/.jfr.gz files are parsed as JFR, .pb.gz/.pprof
// as pprof, everything else as collapsed-stack text.
//
// Commands: diff, hot, ops, batch, threads
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath    string
	verbose       bool
	policy        HotMethodPolicy
	methodMatcher string
	optMatcher    string
	eventType     string
	thread        string
	fqn           bool
}

func (g *globalOptions) logf(cmd *cobra.Command, format string, args ...any) {
	if g.verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	}
}

// config starts from the defaults, applies the config script if any, then
// the flags that were set explicitly.
func (g *globalOptions) config(cmd *cobra.Command) (Config, error) {
	cfg := DefaultConfig()
	if g.configPath != "" {
		var err error
		cfg, err = LoadConfig(g.configPath, cfg, cmd.ErrOrStderr())
		if err != nil {
			return cfg, err
		}
		g.logf(cmd, "loaded config %s", g.configPath)
	}
	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}
	if changed("min-hot") {
		cfg.Policy.MinHotLimit = g.policy.MinHotLimit
	}
	if changed("max-hot") {
		cfg.Policy.MaxHotLimit = g.policy.MaxHotLimit
	}
	if changed("hot-percentile") {
		cfg.Policy.HotPercentile = g.policy.HotPercentile
	}
	if changed("matcher") {
		cfg.MethodMatcher = g.methodMatcher
	}
	if changed("leaves") {
		cfg.OptimizationMatcher = g.optMatcher
	}
	return cfg, cfg.Validate()
}

func (g *globalOptions) loadOptions() loadOptions {
	return loadOptions{eventType: g.eventType, thread: g.thread}
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	def := DefaultConfig()

	root := &cobra.Command{
		Use:   "profdiff",
		Short: "Compare JIT optimization decisions of two profiled runs",
		Long: `profdiff marks the hot compilations of two experiments, matches them by
method name and prints how the optimization trees of matched compilations differ.

Examples:
  profdiff diff before.json after.json
  profdiff diff before.json after.json --profile1 before.jfr --profile2 after.jfr
  profdiff hot before.json --top 20
  profdiff ops before.json after.json --compilation1 812 --compilation2 790
  profdiff batch pairs.txt --jobs 4
  profdiff threads after.jfr --event wall --experiment after.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Starlark config script")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "print progress to stderr")
	pf.IntVar(&g.policy.MinHotLimit, "min-hot", def.Policy.MinHotLimit, "minimum number of hot compilations per experiment")
	pf.IntVar(&g.policy.MaxHotLimit, "max-hot", def.Policy.MaxHotLimit, "maximum number of hot compilations per experiment")
	pf.Float64Var(&g.policy.HotPercentile, "hot-percentile", def.Policy.HotPercentile, "share of the total period hot compilations should cover")
	pf.StringVar(&g.methodMatcher, "matcher", def.MethodMatcher, "method matcher: greedy (hot only) or naive (all compilations)")
	pf.StringVar(&g.optMatcher, "leaves", "", "also match leaf optimizations: set or naive")
	pf.StringVarP(&g.eventType, "event", "e", "cpu", "profile event type: cpu or wall")
	pf.StringVarP(&g.thread, "thread", "t", "", "keep profile samples of threads matching this substring")
	pf.BoolVar(&g.fqn, "fqn", false, "show fully-qualified method names")

	root.AddCommand(diffCmd(g), hotCmd(g), opsCmd(g), batchCmd(g), threadsCmd(g))
	return root
}

func diffCmd(g *globalOptions) *cobra.Command {
	var profile1, profile2, method string
	var top int

	cmd := &cobra.Command{
		Use:   "diff <experiment1> <experiment2>",
		Short: "Match hot compilations and diff their optimization trees",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			a, b, err := loadPair(batchPair{args[0], args[1], profile1, profile2}, g.loadOptions())
			if err != nil {
				return err
			}
			g.logf(cmd, "loaded %d and %d compilations", len(a.ExecutedMethods()), len(b.ExecutedMethods()))

			res, err := Bisect(a, b, cfg)
			if err != nil {
				return err
			}
			g.logf(cmd, "matched %d compilation pairs", len(res.Diffs))
			printBisection(cmd.OutOrStdout(), res, reportOptions{fqn: g.fqn, method: method, top: top})
			return nil
		},
	}
	cmd.Flags().StringVar(&profile1, "profile1", "", "profile of experiment 1 (replaces its periods)")
	cmd.Flags().StringVar(&profile2, "profile2", "", "profile of experiment 2 (replaces its periods)")
	cmd.Flags().StringVarP(&method, "method", "m", "", "only report methods matching this substring")
	cmd.Flags().IntVar(&top, "top", 0, "limit the number of reported methods (0 = all)")
	return cmd
}

func hotCmd(g *globalOptions) *cobra.Command {
	var profilePath string
	var top int

	cmd := &cobra.Command{
		Use:   "hot <experiment>",
		Short: "List the hot compilations of one experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			exp, err := loadExperiment(args[0], profilePath, ExperimentOne, g.loadOptions())
			if err != nil {
				return err
			}
			hot := cfg.Policy.MarkHotMethods(exp)
			printHotMethods(cmd.OutOrStdout(), exp, hot, top, g.fqn)
			return nil
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "profile of the experiment (replaces its periods)")
	cmd.Flags().IntVar(&top, "top", 0, "limit output rows (0 = all)")
	return cmd
}

func findCompilation(exp *Experiment, id string) (*ExecutedMethod, error) {
	for _, m := range exp.ExecutedMethods() {
		if m.CompilationID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("experiment %s has no compilation %q", exp.ID, id)
}

func opsCmd(g *globalOptions) *cobra.Command {
	var id1, id2 string

	cmd := &cobra.Command{
		Use:   "ops <experiment1> <experiment2>",
		Short: "Print the edit script between two specific compilations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, b, err := loadPair(batchPair{experiment1: args[0], experiment2: args[1]}, g.loadOptions())
			if err != nil {
				return err
			}
			m1, err := findCompilation(a, id1)
			if err != nil {
				return err
			}
			m2, err := findCompilation(b, id2)
			if err != nil {
				return err
			}
			script := SelkowTreeMatcher{}.Match(m1, m2)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s vs %s: %d operations, cost %d\n", m1, m2, len(script.Operations()), script.Cost())
			for _, op := range script.Operations() {
				fmt.Fprintf(out, "  %s\n", op)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id1, "compilation1", "", "compilation id in experiment 1")
	cmd.Flags().StringVar(&id2, "compilation2", "", "compilation id in experiment 2")
	if err := cmd.MarkFlagRequired("compilation1"); err != nil {
		panic(err)
	}
	if err := cmd.MarkFlagRequired("compilation2"); err != nil {
		panic(err)
	}
	return cmd
}

func batchCmd(g *globalOptions) *cobra.Command {
	var jobs, top int

	cmd := &cobra.Command{
		Use:   "batch <manifest>",
		Short: "Bisect many experiment pairs in parallel",
		Long: `Each manifest line names one pair:

  experiment1.json experiment2.json [profile1 profile2]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config(cmd)
			if err != nil {
				return err
			}
			rc, err := openReader(args[0])
			if err != nil {
				return err
			}
			pairs, err := parseManifest(rc)
			rc.Close()
			if err != nil {
				return err
			}
			g.logf(cmd, "bisecting %d pairs with %d jobs", len(pairs), jobs)

			results, err := runBatch(cmd.Context(), pairs, cfg, g.loadOptions(), jobs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, res := range results {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "##### %s vs %s #####\n", pairs[i].experiment1, pairs[i].experiment2)
				printBisection(out, res, reportOptions{fqn: g.fqn, top: top})
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "pairs processed concurrently")
	cmd.Flags().IntVar(&top, "top", 0, "limit the number of reported methods per pair (0 = all)")
	return cmd
}

func threadsCmd(g *globalOptions) *cobra.Command {
	var experimentPath string
	var top int

	cmd := &cobra.Command{
		Use:   "threads <profile>",
		Short: "List the threads of a profile, for choosing --thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, err := openProfile(args[0], g.eventType, g.thread)
			if err != nil {
				return err
			}
			var exp *Experiment
			if experimentPath != "" {
				if exp, err = LoadExperiment(experimentPath, ExperimentOne, nil); err != nil {
					return err
				}
				g.logf(cmd, "matching samples against %d compilations", len(exp.ExecutedMethods()))
			}
			printThreads(cmd.OutOrStdout(), sf, exp, top, g.fqn)
			return nil
		},
	}
	cmd.Flags().StringVar(&experimentPath, "experiment", "", "experiment whose compilations the samples are attributed to")
	cmd.Flags().IntVar(&top, "top", 0, "limit output rows (0 = all)")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
