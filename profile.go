package main

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/pprof/profile"
	"github.com/grafana/jfr-parser/parser"
	"github.com/grafana/jfr-parser/parser/types"
)

// ---------------------------------------------------------------------------
// Sampled stacks
// ---------------------------------------------------------------------------

type stack struct {
	frames []string // root → leaf order
	count  int
	thread string // "" if unknown
}

type stackFile struct {
	stacks       []stack
	totalSamples int
}

func (sf *stackFile) filterByThread(thread string) *stackFile {
	if thread == "" {
		return sf
	}
	out := &stackFile{}
	for i := range sf.stacks {
		if strings.Contains(sf.stacks[i].thread, thread) {
			out.stacks = append(out.stacks, sf.stacks[i])
			out.totalSamples += sf.stacks[i].count
		}
	}
	return out
}

// selfSamples sums samples per leaf method, keyed by methodKey.
func (sf *stackFile) selfSamples() map[string]int {
	counts := make(map[string]int)
	for i := range sf.stacks {
		st := &sf.stacks[i]
		if len(st.frames) > 0 {
			counts[methodKey(st.frames[len(st.frames)-1])] += st.count
		}
	}
	return counts
}

// attributeSamples replaces each compilation's period by its method's self
// samples. A method compiled several times credits its last-listed
// compilation, the one installed when the profile was taken; the others get
// zero.
func attributeSamples(methods []*ExecutedMethod, sf *stackFile) {
	self := sf.selfSamples()
	last := make(map[string]*ExecutedMethod)
	for _, m := range methods {
		m.Period = 0
		last[methodKey(m.MethodName)] = m
	}
	for key, m := range last {
		m.Period = int64(self[key])
	}
}

// ---------------------------------------------------------------------------
// Frame / thread resolution
// ---------------------------------------------------------------------------

func resolveFrame(p *parser.Parser, sf types.StackFrame) string {
	method := p.GetMethod(sf.Method)
	if method == nil {
		return "<unknown>"
	}
	className := ""
	class := p.GetClass(method.Type)
	if class != nil {
		className = p.GetSymbolString(class.Name)
	}
	methodName := p.GetSymbolString(method.Name)
	if className == "" {
		return methodName
	}
	return className + "." + methodName
}

func resolveThread(p *parser.Parser, ref types.ThreadRef) string {
	idx, ok := p.Threads.IDMap[ref]
	if !ok {
		return ""
	}
	t := &p.Threads.Thread[idx]
	if t.JavaName != "" {
		return t.JavaName
	}
	return t.OsName
}

// ---------------------------------------------------------------------------
// JFR → stackFile
// ---------------------------------------------------------------------------

func readJFRBytes(path string) ([]byte, error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type stackKey struct {
	frames string // semicolon-joined
	thread string
}

func parseJFR(path, eventType string) (*stackFile, error) {
	buf, err := readJFRBytes(path)
	if err != nil {
		return nil, err
	}

	p := parser.NewParser(buf, parser.Options{})
	agg := make(map[stackKey]*stack)
	var order []stackKey

	for {
		typ, err := p.ParseEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse event: %w", err)
		}

		var stRef types.StackTraceRef
		var thRef types.ThreadRef
		switch {
		case eventType == "cpu" && typ == p.TypeMap.T_EXECUTION_SAMPLE:
			stRef = p.ExecutionSample.StackTrace
			thRef = p.ExecutionSample.SampledThread
		case eventType == "wall" && typ == p.TypeMap.T_WALL_CLOCK_SAMPLE:
			stRef = p.WallClockSample.StackTrace
			thRef = p.WallClockSample.SampledThread
		default:
			continue
		}

		st := p.GetStacktrace(stRef)
		if st == nil || len(st.Frames) == 0 {
			continue
		}

		// JFR frames are leaf-first.
		n := len(st.Frames)
		frames := make([]string, n)
		for i, f := range st.Frames {
			frames[n-1-i] = resolveFrame(p, f)
		}

		key := stackKey{frames: strings.Join(frames, ";"), thread: resolveThread(p, thRef)}
		if v, ok := agg[key]; ok {
			v.count++
		} else {
			agg[key] = &stack{frames: frames, count: 1, thread: key.thread}
			order = append(order, key)
		}
	}

	sf := &stackFile{}
	for _, k := range order {
		sf.stacks = append(sf.stacks, *agg[k])
		sf.totalSamples += agg[k].count
	}
	return sf, nil
}

// ---------------------------------------------------------------------------
// pprof → stackFile
// ---------------------------------------------------------------------------

// pprofSampleIndex picks the sample value matching eventType, falling back
// to the profile's default (last) sample type.
func pprofSampleIndex(p *profile.Profile, eventType string) int {
	want := map[string][]string{
		"cpu":  {"cpu", "samples"},
		"wall": {"wall"},
	}[eventType]
	for _, w := range want {
		for i, st := range p.SampleType {
			if st.Type == w {
				return i
			}
		}
	}
	return len(p.SampleType) - 1
}

func parsePprof(r io.Reader, eventType string) (*stackFile, error) {
	p, err := profile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("pprof: %w", err)
	}
	idx := pprofSampleIndex(p, eventType)
	if idx < 0 {
		return &stackFile{}, nil
	}

	sf := &stackFile{}
	for _, s := range p.Sample {
		if idx >= len(s.Value) || s.Value[idx] <= 0 {
			continue
		}
		// Locations are leaf-first, and so are the inlined lines within one.
		var frames []string
		for i := len(s.Location) - 1; i >= 0; i-- {
			lines := s.Location[i].Line
			for j := len(lines) - 1; j >= 0; j-- {
				if lines[j].Function != nil {
					frames = append(frames, lines[j].Function.Name)
				}
			}
		}
		if len(frames) == 0 {
			continue
		}
		thread := ""
		if names := s.Label["thread"]; len(names) > 0 {
			thread = names[0]
		}
		count := int(s.Value[idx])
		sf.stacks = append(sf.stacks, stack{frames: frames, count: count, thread: thread})
		sf.totalSamples += count
	}
	return sf, nil
}

// ---------------------------------------------------------------------------
// Collapsed-stack text → stackFile
// ---------------------------------------------------------------------------

// openReader opens a file for reading, handling gzip and stdin ("-").
func openReader(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &gzipReadCloser{gz: gr, f: f}, nil
	}
	return f, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }
func (g *gzipReadCloser) Close() error {
	g.gz.Close()
	return g.f.Close()
}

var (
	collapsedLineRe  = regexp.MustCompile(`^(.+)\s+(\d+)$`)
	threadFrameRe    = regexp.MustCompile(`^\[(.+?)(?:\s+tid=\d+)?\]$`)
	annotatedFrameRe = regexp.MustCompile(`^(.+?):(\d+)(?:_\[[^\]]*\])?$`)
)

func parseCollapsed(r io.Reader) (*stackFile, error) {
	sf := &stackFile{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		m := collapsedLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		count, _ := strconv.Atoi(m[2])
		if count <= 0 {
			continue
		}

		parts := strings.Split(m[1], ";")
		thread := ""
		startIdx := 0
		if tm := threadFrameRe.FindStringSubmatch(parts[0]); tm != nil {
			thread = tm[1]
			startIdx = 1
		}

		frames := make([]string, 0, len(parts)-startIdx)
		for _, part := range parts[startIdx:] {
			// line annotations do not matter for attribution
			if am := annotatedFrameRe.FindStringSubmatch(part); am != nil {
				part = am[1]
			}
			frames = append(frames, part)
		}
		if len(frames) == 0 {
			continue
		}

		sf.stacks = append(sf.stacks, stack{frames: frames, count: count, thread: thread})
		sf.totalSamples += count
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sf, nil
}

// ---------------------------------------------------------------------------
// Unified input
// ---------------------------------------------------------------------------

var ErrUnsupportedEvent = errors.New("unsupported event type")

func isJFRPath(path string) bool {
	if path == "-" {
		return false
	}
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".jfr") || strings.HasSuffix(p, ".jfr.gz")
}

func isPprofPath(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".pb.gz") || strings.HasSuffix(p, ".pprof") || strings.HasSuffix(p, ".prof")
}

// openProfile loads JFR, pprof or collapsed text depending on the file name
// and keeps only the given thread (substring match) if one is set.
func openProfile(path, eventType, thread string) (*stackFile, error) {
	switch eventType {
	case "cpu", "wall":
	default:
		return nil, fmt.Errorf("%w %q (valid: cpu, wall)", ErrUnsupportedEvent, eventType)
	}

	var sf *stackFile
	var err error
	switch {
	case isJFRPath(path):
		sf, err = parseJFR(path, eventType)
	case isPprofPath(path):
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sf, err = parsePprof(f, eventType)
	default:
		var rc io.ReadCloser
		rc, err = openReader(path)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		sf, err = parseCollapsed(rc)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sf.filterByThread(thread), nil
}
