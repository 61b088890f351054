package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEvalConfigOverrides(t *testing.T) {
	src := `
min_hot = 2
max_hot = DEFAULT_MAX_HOT * 2
hot_percentile = 0.5
method_matcher = "naive"
optimization_matcher = "set"
print("configured")
`
	var stderr bytes.Buffer
	cfg, err := evalConfig("test.star", []byte(src), DefaultConfig(), &stderr)
	if err != nil {
		t.Fatal(err)
	}
	want := HotMethodPolicy{MinHotLimit: 2, MaxHotLimit: 20, HotPercentile: 0.5}
	if cfg.Policy != want {
		t.Errorf("policy=%+v, want %+v", cfg.Policy, want)
	}
	if cfg.MethodMatcher != "naive" || cfg.OptimizationMatcher != "set" {
		t.Errorf("matchers=%q/%q, want naive/set", cfg.MethodMatcher, cfg.OptimizationMatcher)
	}
	if got := stderr.String(); got != "configured\n" {
		t.Errorf("print output=%q", got)
	}
	if _, ok := cfg.methodMatcher(nil).(NaiveMethodMatcher); !ok {
		t.Errorf("methodMatcher=%T, want NaiveMethodMatcher", cfg.methodMatcher(nil))
	}
	if _, ok := cfg.optimizationMatcher().(SetOptimizationMatcher); !ok {
		t.Errorf("optimizationMatcher=%T, want SetOptimizationMatcher", cfg.optimizationMatcher())
	}
}

func TestEvalConfigKeepsUnsetFields(t *testing.T) {
	base := DefaultConfig()
	base.OptimizationMatcher = "naive"
	cfg, err := evalConfig("test.star", []byte("max_hot = 3\n"), base, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Policy.MinHotLimit != 1 || cfg.Policy.MaxHotLimit != 3 || cfg.Policy.HotPercentile != 0.9 {
		t.Errorf("policy=%+v", cfg.Policy)
	}
	if cfg.OptimizationMatcher != "naive" {
		t.Errorf("OptimizationMatcher=%q, want naive", cfg.OptimizationMatcher)
	}
}

func TestEvalConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"syntax", "min_hot = ", "test.star"},
		{"min_hot type", `min_hot = "x"`, "min_hot"},
		{"percentile type", `hot_percentile = "high"`, "hot_percentile"},
		{"matcher type", "method_matcher = 1", "method_matcher"},
		{"unknown matcher", `method_matcher = "fuzzy"`, "unknown method matcher"},
		{"unknown leaves", `optimization_matcher = "tree"`, "unknown optimization matcher"},
		{"exclude type", "exclude = 3", "want function"},
		{"runtime", "fail('boom')", "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evalConfig("test.star", []byte(tt.src), DefaultConfig(), &bytes.Buffer{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err=%q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEvalConfigInvalidPolicy(t *testing.T) {
	_, err := evalConfig("test.star", []byte("min_hot = 5\nmax_hot = 2\n"), DefaultConfig(), &bytes.Buffer{})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("err=%v, want ErrInvalidPolicy", err)
	}
}

func TestExcludedMethods(t *testing.T) {
	src := `
def exclude(name):
    return name.startswith("java.")
`
	cfg, err := evalConfig("test.star", []byte(src), DefaultConfig(), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	a := makeExperiment(ExperimentOne, 100,
		executedMethod("1", "java.util.HashMap.get", 50),
		executedMethod("2", "com.ex.App.run", 50),
	)
	b := makeExperiment(ExperimentTwo, 100,
		executedMethod("3", "java.util.HashMap.get", 50),
		executedMethod("4", "java.lang.String.hashCode", 50),
	)
	excluded, err := cfg.excludedMethods(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(excluded) != 2 || !excluded["java.util.HashMap.get"] || !excluded["java.lang.String.hashCode"] {
		t.Errorf("excluded=%v", excluded)
	}
	if _, ok := cfg.methodMatcher(excluded).(FilteredMethodMatcher); !ok {
		t.Errorf("methodMatcher=%T, want FilteredMethodMatcher", cfg.methodMatcher(excluded))
	}

	none, err := DefaultConfig().excludedMethods(a, b)
	if err != nil || len(none) != 0 {
		t.Errorf("no exclude hook: excluded=%v err=%v", none, err)
	}
}

func TestExcludedMethodsHookError(t *testing.T) {
	src := "def exclude(name):\n    fail('cannot decide ' + name)\n"
	cfg, err := evalConfig("test.star", []byte(src), DefaultConfig(), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	exp := makeExperiment(ExperimentOne, 10, executedMethod("1", "a.A.f", 10))
	if _, err := cfg.excludedMethods(exp); err == nil || !strings.Contains(err.Error(), "cannot decide a.A.f") {
		t.Errorf("err=%v", err)
	}
}

func TestBisectAppliesExclusions(t *testing.T) {
	cfg, err := evalConfig("test.star", []byte("def exclude(name):\n    return name == \"a.A.skip\"\n"), DefaultConfig(), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	a := makeExperiment(ExperimentOne, 100,
		executedMethod("1", "a.A.skip", 60),
		executedMethod("2", "a.A.keep", 40),
	)
	b := makeExperiment(ExperimentTwo, 100,
		executedMethod("3", "a.A.skip", 60),
		executedMethod("4", "a.A.keep", 40),
	)
	res, err := Bisect(a, b, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matching.MatchedMethods) != 1 || res.Matching.MatchedMethods[0].Name != "a.A.keep" {
		t.Fatalf("matched methods=%v, want only a.A.keep", res.Matching.MatchedMethods)
	}
	if len(res.Diffs) != 1 || !res.Diffs[0].Script.IsEmpty() {
		t.Errorf("diffs=%+v, want one empty script", res.Diffs)
	}
}
