package main

import "fmt"

// ExperimentID names one side of a comparison.
type ExperimentID int

const (
	ExperimentOne ExperimentID = iota + 1
	ExperimentTwo
)

func (id ExperimentID) String() string {
	switch id {
	case ExperimentOne:
		return "ONE"
	case ExperimentTwo:
		return "TWO"
	}
	return fmt.Sprintf("ExperimentID(%d)", int(id))
}

// Experiment is one profiled compiler run.
type Experiment struct {
	ID          ExperimentID
	ExecutionID string
	TotalPeriod int64
	GraalPeriod int64

	methods []*ExecutedMethod
}

func NewExperiment(id ExperimentID, executionID string, totalPeriod, graalPeriod int64) *Experiment {
	return &Experiment{
		ID:          id,
		ExecutionID: executionID,
		TotalPeriod: totalPeriod,
		GraalPeriod: graalPeriod,
	}
}

// AddExecutedMethod appends m and makes e its owner.
func (e *Experiment) AddExecutedMethod(m *ExecutedMethod) {
	m.experiment = e
	e.methods = append(e.methods, m)
}

// ExecutedMethods returns the compilations in insertion order.
func (e *Experiment) ExecutedMethods() []*ExecutedMethod {
	return e.methods
}

// HotMethods returns the compilations currently flagged hot, in insertion order.
func (e *Experiment) HotMethods() []*ExecutedMethod {
	var hot []*ExecutedMethod
	for _, m := range e.methods {
		if m.Hot {
			hot = append(hot, m)
		}
	}
	return hot
}

// ComputeGraalPeriod sums the periods of compiled, non-stub methods.
func (e *Experiment) ComputeGraalPeriod() int64 {
	var sum int64
	for _, m := range e.methods {
		if !m.Stub {
			sum += m.Period
		}
	}
	return sum
}

// ExecutedMethod is one compilation of a method within an experiment.
type ExecutedMethod struct {
	CompilationID string
	MethodName    string
	RootPhase     *OptimizationPhase
	Period        int64
	Level         int
	Stub          bool
	Hot           bool

	// not owned; set by Experiment.AddExecutedMethod
	experiment *Experiment
}

// Experiment returns the owning experiment, or nil if m was never added.
func (m *ExecutedMethod) Experiment() *Experiment {
	return m.experiment
}

// PeriodFraction is the share of the owning experiment's total period spent
// in this compilation.
func (m *ExecutedMethod) PeriodFraction() float64 {
	if m.experiment == nil || m.experiment.TotalPeriod <= 0 {
		return 0
	}
	return float64(m.Period) / float64(m.experiment.TotalPeriod)
}

func (m *ExecutedMethod) String() string {
	return fmt.Sprintf("%s (compilation %s)", m.MethodName, m.CompilationID)
}
