package main

import (
	"fmt"
	"io"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Config holds everything that tunes a bisection.
type Config struct {
	Policy HotMethodPolicy
	// MethodMatcher is "greedy" (hot compilations only) or "naive".
	MethodMatcher string
	// OptimizationMatcher is "", "set" or "naive". When set, leaf
	// optimizations of every matched pair are matched as well.
	OptimizationMatcher string

	exclude starlark.Callable
}

func DefaultConfig() Config {
	return Config{
		Policy:        DefaultHotMethodPolicy(),
		MethodMatcher: "greedy",
	}
}

func (c Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	switch c.MethodMatcher {
	case "greedy", "naive":
	default:
		return fmt.Errorf("unknown method matcher %q (valid: greedy, naive)", c.MethodMatcher)
	}
	switch c.OptimizationMatcher {
	case "", "set", "naive":
	default:
		return fmt.Errorf("unknown optimization matcher %q (valid: set, naive)", c.OptimizationMatcher)
	}
	return nil
}

func (c Config) methodMatcher(excluded map[string]bool) MethodMatcher {
	hotOnly := c.MethodMatcher == "greedy"
	switch {
	case len(excluded) > 0:
		return FilteredMethodMatcher{
			HotOnly: hotOnly,
			Filter:  func(m *ExecutedMethod) bool { return !excluded[m.MethodName] },
		}
	case hotOnly:
		return GreedyMethodMatcher{}
	}
	return NaiveMethodMatcher{}
}

func (c Config) optimizationMatcher() OptimizationMatcher {
	switch c.OptimizationMatcher {
	case "set":
		return SetOptimizationMatcher{}
	case "naive":
		return NaiveOptimizationMatcher{}
	}
	return nil
}

// LoadConfig runs a Starlark script and overlays the globals it defines on
// base. Recognized globals:
//
//	min_hot = 1
//	max_hot = 10
//	hot_percentile = 0.9
//	method_matcher = "greedy"
//	optimization_matcher = "set"
//	def exclude(name): return name.startswith("java.")
func LoadConfig(path string, base Config, stderr io.Writer) (Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	return evalConfig(path, src, base, stderr)
}

func evalConfig(filename string, src []byte, base Config, stderr io.Writer) (Config, error) {
	thread := &starlark.Thread{
		Name:  "config",
		Print: func(_ *starlark.Thread, msg string) { fmt.Fprintln(stderr, msg) },
	}
	predeclared := starlark.StringDict{
		"DEFAULT_MIN_HOT":        starlark.MakeInt(base.Policy.MinHotLimit),
		"DEFAULT_MAX_HOT":        starlark.MakeInt(base.Policy.MaxHotLimit),
		"DEFAULT_HOT_PERCENTILE": starlark.Float(base.Policy.HotPercentile),
	}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, filename, src, predeclared)
	if err != nil {
		return base, fmt.Errorf("config %s: %w", filename, err)
	}

	cfg := base
	if v, ok := globals["min_hot"]; ok {
		n, err := starlark.AsInt32(v)
		if err != nil {
			return base, fmt.Errorf("config %s: min_hot: %w", filename, err)
		}
		cfg.Policy.MinHotLimit = n
	}
	if v, ok := globals["max_hot"]; ok {
		n, err := starlark.AsInt32(v)
		if err != nil {
			return base, fmt.Errorf("config %s: max_hot: %w", filename, err)
		}
		cfg.Policy.MaxHotLimit = n
	}
	if v, ok := globals["hot_percentile"]; ok {
		f, ok := starlark.AsFloat(v)
		if !ok {
			return base, fmt.Errorf("config %s: hot_percentile: got %s, want number", filename, v.Type())
		}
		cfg.Policy.HotPercentile = f
	}
	for name, dst := range map[string]*string{
		"method_matcher":       &cfg.MethodMatcher,
		"optimization_matcher": &cfg.OptimizationMatcher,
	} {
		v, ok := globals[name]
		if !ok {
			continue
		}
		s, ok := starlark.AsString(v)
		if !ok {
			return base, fmt.Errorf("config %s: %s: got %s, want string", filename, name, v.Type())
		}
		*dst = s
	}
	if v, ok := globals["exclude"]; ok {
		fn, ok := v.(starlark.Callable)
		if !ok {
			return base, fmt.Errorf("config %s: exclude: got %s, want function", filename, v.Type())
		}
		cfg.exclude = fn
	}
	return cfg, cfg.Validate()
}

// excludedMethods evaluates the exclude hook once per method name. The
// result is computed before matching so script errors surface as errors.
func (c Config) excludedMethods(exps ...*Experiment) (map[string]bool, error) {
	excluded := make(map[string]bool)
	if c.exclude == nil {
		return excluded, nil
	}
	thread := &starlark.Thread{Name: "exclude"}
	seen := make(map[string]bool)
	for _, exp := range exps {
		for _, m := range exp.ExecutedMethods() {
			if seen[m.MethodName] {
				continue
			}
			seen[m.MethodName] = true
			res, err := starlark.Call(thread, c.exclude, starlark.Tuple{starlark.String(m.MethodName)}, nil)
			if err != nil {
				return nil, fmt.Errorf("exclude(%q): %w", m.MethodName, err)
			}
			if res.Truth() {
				excluded[m.MethodName] = true
			}
		}
	}
	return excluded, nil
}
