package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// ---------------------------------------------------------------------------
// Experiment file format
// ---------------------------------------------------------------------------

type experimentFile struct {
	ExecutionID  string            `json:"executionId"`
	TotalPeriod  int64             `json:"totalPeriod"`
	GraalPeriod  *int64            `json:"graalPeriod"`
	Compilations []compilationJSON `json:"compilations"`
}

type compilationJSON struct {
	CompilationID string    `json:"compilationId"`
	MethodName    string    `json:"methodName"`
	Period        int64     `json:"period"`
	Level         int       `json:"level"`
	Stub          bool      `json:"stub"`
	RootPhase     *nodeJSON `json:"rootPhase"`
}

// nodeJSON is either a phase (name, children) or an optimization
// (optimizationName, eventName, ...).
type nodeJSON struct {
	Name     string     `json:"name"`
	Children []nodeJSON `json:"children"`

	OptimizationName string         `json:"optimizationName"`
	EventName        string         `json:"eventName"`
	BCI              *int           `json:"bci"`
	Position         map[string]int `json:"position"`
	Properties       map[string]any `json:"properties"`
}

// LoadExperiment reads an experiment file (optionally gzipped). When sf is
// not nil the compilation periods are taken from the profile instead of the
// file.
func LoadExperiment(path string, id ExperimentID, sf *stackFile) (*Experiment, error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	exp, err := ReadExperiment(rc, id, sf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exp, nil
}

func ReadExperiment(r io.Reader, id ExperimentID, sf *stackFile) (*Experiment, error) {
	var f experimentFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode experiment: %w", err)
	}

	seen := make(map[string]bool)
	methods := make([]*ExecutedMethod, 0, len(f.Compilations))
	for i, c := range f.Compilations {
		if c.CompilationID == "" {
			return nil, fmt.Errorf("compilation #%d: missing compilationId", i)
		}
		if seen[c.CompilationID] {
			return nil, fmt.Errorf("compilation %s: duplicate compilationId", c.CompilationID)
		}
		seen[c.CompilationID] = true
		if c.MethodName == "" {
			return nil, fmt.Errorf("compilation %s: missing methodName", c.CompilationID)
		}
		root, err := buildRootPhase(c.RootPhase, c.MethodName)
		if err != nil {
			return nil, fmt.Errorf("compilation %s: %w", c.CompilationID, err)
		}
		methods = append(methods, &ExecutedMethod{
			CompilationID: c.CompilationID,
			MethodName:    c.MethodName,
			RootPhase:     root,
			Period:        c.Period,
			Level:         c.Level,
			Stub:          c.Stub,
		})
	}

	total := f.TotalPeriod
	if sf != nil {
		total = int64(sf.totalSamples)
		attributeSamples(methods, sf)
	} else if total == 0 {
		for _, m := range methods {
			total += m.Period
		}
	}

	exp := NewExperiment(id, f.ExecutionID, total, 0)
	for _, m := range methods {
		exp.AddExecutedMethod(m)
	}
	if f.GraalPeriod != nil && sf == nil {
		exp.GraalPeriod = *f.GraalPeriod
	} else {
		exp.GraalPeriod = exp.ComputeGraalPeriod()
	}
	return exp, nil
}

func buildRootPhase(n *nodeJSON, methodName string) (*OptimizationPhase, error) {
	if n == nil {
		return NewRootPhase(), nil
	}
	root, err := buildNode(n, methodName)
	if err != nil {
		return nil, err
	}
	phase, ok := root.(*OptimizationPhase)
	if !ok {
		return nil, fmt.Errorf("root node is an optimization, not a phase")
	}
	return phase, nil
}

func buildNode(n *nodeJSON, methodName string) (OptimizationTreeNode, error) {
	if n.OptimizationName != "" {
		if len(n.Children) > 0 {
			return nil, fmt.Errorf("optimization %s has children", n.OptimizationName)
		}
		o := NewOptimization(n.OptimizationName, n.EventName, declaredBCI(n, methodName), nil)
		if len(n.Position) > 0 {
			o.Position = n.Position
		}
		if len(n.Properties) > 0 {
			o.Properties = NewPropertyMap(ByValue)
			for k, v := range n.Properties {
				o.Properties.Put(k, v)
			}
		}
		return o, nil
	}
	if n.Name == "" {
		return nil, fmt.Errorf("node has neither a phase name nor an optimization name")
	}
	p := NewOptimizationPhase(n.Name)
	for i := range n.Children {
		c, err := buildNode(&n.Children[i], methodName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.Name, err)
		}
		p.AddChild(c)
	}
	return p, nil
}

// declaredBCI prefers an explicit bci, then the position entry of the
// compiled method itself, then a lone position entry. Overloads of the
// compiled method that differ only in signature make the BCI unknown.
func declaredBCI(n *nodeJSON, methodName string) int {
	if n.BCI != nil {
		return *n.BCI
	}
	if bci, ok := n.Position[methodName]; ok {
		return bci
	}
	key := methodKey(methodName)
	found, matches := NoBCI, 0
	for m, bci := range n.Position {
		if methodKey(m) == key {
			found = bci
			matches++
		}
	}
	switch {
	case matches == 1:
		return found
	case matches > 1:
		return NoBCI
	}
	if len(n.Position) == 1 {
		for _, bci := range n.Position {
			return bci
		}
	}
	return NoBCI
}
