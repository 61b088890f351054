package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/pprof/profile"
)

func makeStackFile(stacks []stack) *stackFile {
	sf := &stackFile{}
	for _, s := range stacks {
		sf.stacks = append(sf.stacks, s)
		sf.totalSamples += s.count
	}
	return sf
}

// ---------------------------------------------------------------------------
// TestParseCollapsed*
// ---------------------------------------------------------------------------

func TestParseCollapsedBasic(t *testing.T) {
	r := strings.NewReader("A;B;C 10\nX;Y 5\n")
	sf, err := parseCollapsed(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(sf.stacks) != 2 {
		t.Fatalf("expected 2 stacks, got %d", len(sf.stacks))
	}
	if sf.totalSamples != 15 {
		t.Errorf("totalSamples=%d, want 15", sf.totalSamples)
	}
	s := sf.stacks[0]
	if !equalStrings(s.frames, []string{"A", "B", "C"}) {
		t.Errorf("stack[0].frames=%v, want [A B C]", s.frames)
	}
	if s.count != 10 {
		t.Errorf("stack[0].count=%d, want 10", s.count)
	}
}

func TestParseCollapsedThreads(t *testing.T) {
	r := strings.NewReader("[main tid=1];A;B 10\nC;D 5\n[worker];E 3\n")
	sf, err := parseCollapsed(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(sf.stacks) != 3 {
		t.Fatalf("expected 3 stacks, got %d", len(sf.stacks))
	}
	for i, want := range []string{"main", "", "worker"} {
		if sf.stacks[i].thread != want {
			t.Errorf("stack[%d].thread=%q, want %q", i, sf.stacks[i].thread, want)
		}
	}
	if sf.stacks[0].frames[0] != "A" {
		t.Errorf("stack[0].frames[0]=%q, want \"A\"", sf.stacks[0].frames[0])
	}
}

func TestParseCollapsedStripsLineAnnotations(t *testing.T) {
	r := strings.NewReader("A.main:10_[0];B.process:42_[j] 100\n")
	sf, err := parseCollapsed(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(sf.stacks) != 1 {
		t.Fatalf("expected 1 stack, got %d", len(sf.stacks))
	}
	if got := sf.stacks[0].frames; !equalStrings(got, []string{"A.main", "B.process"}) {
		t.Errorf("frames=%v, want [A.main B.process]", got)
	}
}

func TestParseCollapsedSkipsBadLines(t *testing.T) {
	r := strings.NewReader("\n\nA;B 10\n\nbadline no count\nZ 0\n\nC;D 5\n\n")
	sf, err := parseCollapsed(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(sf.stacks) != 2 {
		t.Fatalf("expected 2 stacks, got %d", len(sf.stacks))
	}
	if sf.totalSamples != 15 {
		t.Errorf("totalSamples=%d, want 15", sf.totalSamples)
	}
}

func TestProfilePathDetection(t *testing.T) {
	tests := []struct {
		path      string
		wantJFR   bool
		wantPprof bool
	}{
		{"profile.jfr", true, false},
		{"profile.JFR.gz", true, false},
		{"cpu.pb.gz", false, true},
		{"cpu.pprof", false, true},
		{"stacks.txt", false, false},
		{"stacks.gz", false, false},
		{"-", false, false},
	}
	for _, tt := range tests {
		if got := isJFRPath(tt.path); got != tt.wantJFR {
			t.Errorf("isJFRPath(%q) = %v, want %v", tt.path, got, tt.wantJFR)
		}
		if got := isPprofPath(tt.path); got != tt.wantPprof {
			t.Errorf("isPprofPath(%q) = %v, want %v", tt.path, got, tt.wantPprof)
		}
	}
}

func TestFilterByThread(t *testing.T) {
	sf := makeStackFile([]stack{
		{frames: []string{"A.a"}, count: 10, thread: "main"},
		{frames: []string{"B.b"}, count: 5, thread: "worker-1"},
		{frames: []string{"C.c"}, count: 3, thread: "main-loop"},
	})

	filtered := sf.filterByThread("main")
	if len(filtered.stacks) != 2 {
		t.Errorf("expected 2 stacks matching 'main', got %d", len(filtered.stacks))
	}
	if filtered.totalSamples != 13 {
		t.Errorf("expected totalSamples=13, got %d", filtered.totalSamples)
	}
	if sf.filterByThread("") != sf {
		t.Error("empty thread filter should return the input unchanged")
	}
}

// ---------------------------------------------------------------------------
// Attribution
// ---------------------------------------------------------------------------

func TestSelfSamples(t *testing.T) {
	sf := makeStackFile([]stack{
		{frames: []string{"com/ex/App.run", "com/ex/App.hot"}, count: 7},
		{frames: []string{"com/ex/App.run"}, count: 3},
		{frames: []string{"com.ex.App.run", "com.ex.App.hot(int)"}, count: 2},
	})
	self := sf.selfSamples()
	if self["com.ex.App.hot"] != 9 {
		t.Errorf("App.hot self=%d, want 9", self["com.ex.App.hot"])
	}
	if self["com.ex.App.run"] != 3 {
		t.Errorf("App.run self=%d, want 3", self["com.ex.App.run"])
	}
}

func TestAttributeSamplesCreditsLastCompilation(t *testing.T) {
	sf := makeStackFile([]stack{
		{frames: []string{"com/ex/App.run", "com/ex/App.hot"}, count: 7},
		{frames: []string{"com/ex/App.run"}, count: 3},
	})
	first := executedMethod("1", "com.ex.App.hot(int)", 500)
	second := executedMethod("2", "com.ex.App.hot(int)", 500)
	run := executedMethod("3", "com.ex.App.run()", 500)
	cold := executedMethod("4", "com.ex.App.cold()", 500)

	attributeSamples([]*ExecutedMethod{first, second, run, cold}, sf)

	for _, tt := range []struct {
		m    *ExecutedMethod
		want int64
	}{
		{first, 0},
		{second, 7},
		{run, 3},
		{cold, 0},
	} {
		if tt.m.Period != tt.want {
			t.Errorf("compilation %s period=%d, want %d", tt.m.CompilationID, tt.m.Period, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// pprof
// ---------------------------------------------------------------------------

func writePprof(t *testing.T) []byte {
	t.Helper()
	run := &profile.Function{ID: 1, Name: "com/ex/App.run"}
	hot := &profile.Function{ID: 2, Name: "com/ex/App.hot"}
	inlined := &profile.Function{ID: 3, Name: "com/ex/App.inlined"}
	locRun := &profile.Location{ID: 1, Line: []profile.Line{{Function: run}}}
	// inlined frames are listed innermost first
	locHot := &profile.Location{ID: 2, Line: []profile.Line{{Function: inlined}, {Function: hot}}}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "wall", Unit: "nanoseconds"},
		},
		Sample: []*profile.Sample{
			{
				Location: []*profile.Location{locHot, locRun},
				Value:    []int64{4, 40},
				Label:    map[string][]string{"thread": {"main"}},
			},
			{
				Location: []*profile.Location{locRun},
				Value:    []int64{0, 10},
				Label:    map[string][]string{"thread": {"worker"}},
			},
		},
		Location: []*profile.Location{locRun, locHot},
		Function: []*profile.Function{run, hot, inlined},
	}
	var buf bytes.Buffer
	if err := p.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParsePprof(t *testing.T) {
	data := writePprof(t)

	sf, err := parsePprof(bytes.NewReader(data), "cpu")
	if err != nil {
		t.Fatal(err)
	}
	if len(sf.stacks) != 1 || sf.totalSamples != 4 {
		t.Fatalf("cpu: %d stacks, %d samples; want 1 stack, 4 samples", len(sf.stacks), sf.totalSamples)
	}
	want := []string{"com/ex/App.run", "com/ex/App.hot", "com/ex/App.inlined"}
	if !equalStrings(sf.stacks[0].frames, want) {
		t.Errorf("frames=%v, want %v", sf.stacks[0].frames, want)
	}
	if sf.stacks[0].thread != "main" {
		t.Errorf("thread=%q, want main", sf.stacks[0].thread)
	}

	sf, err = parsePprof(bytes.NewReader(data), "wall")
	if err != nil {
		t.Fatal(err)
	}
	if len(sf.stacks) != 2 || sf.totalSamples != 50 {
		t.Errorf("wall: %d stacks, %d samples; want 2 stacks, 50 samples", len(sf.stacks), sf.totalSamples)
	}
}

func TestOpenProfile(t *testing.T) {
	dir := t.TempDir()

	pprofPath := filepath.Join(dir, "cpu.pb.gz")
	if err := os.WriteFile(pprofPath, writePprof(t), 0o644); err != nil {
		t.Fatal(err)
	}
	sf, err := openProfile(pprofPath, "wall", "work")
	if err != nil {
		t.Fatal(err)
	}
	if sf.totalSamples != 10 {
		t.Errorf("pprof wall filtered to worker: totalSamples=%d, want 10", sf.totalSamples)
	}

	collapsedPath := filepath.Join(dir, "stacks.txt")
	if err := os.WriteFile(collapsedPath, []byte("[main];A;B 10\n[gc];C 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sf, err = openProfile(collapsedPath, "cpu", "main")
	if err != nil {
		t.Fatal(err)
	}
	if sf.totalSamples != 10 {
		t.Errorf("collapsed filtered to main: totalSamples=%d, want 10", sf.totalSamples)
	}

	if _, err := openProfile(collapsedPath, "alloc", ""); !errors.Is(err, ErrUnsupportedEvent) {
		t.Errorf("alloc event: err=%v, want ErrUnsupportedEvent", err)
	}
	if _, err := openProfile(filepath.Join(dir, "missing.txt"), "cpu", ""); err == nil {
		t.Error("expected error for missing file")
	}
}
