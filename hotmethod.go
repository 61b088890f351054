package main

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidPolicy = errors.New("invalid hot method policy")

// HotMethodPolicy decides which compilations of an experiment are hot.
type HotMethodPolicy struct {
	// MinHotLimit is the minimum number of hot compilations (if that many exist).
	MinHotLimit int
	// MaxHotLimit caps the number of hot compilations.
	MaxHotLimit int
	// HotPercentile is the share of the total period the hot compilations
	// should cover, in [0,1].
	HotPercentile float64
}

func DefaultHotMethodPolicy() HotMethodPolicy {
	return HotMethodPolicy{
		MinHotLimit:   1,
		MaxHotLimit:   10,
		HotPercentile: 0.9,
	}
}

func (p HotMethodPolicy) Validate() error {
	switch {
	case p.MinHotLimit < 0:
		return fmt.Errorf("%w: min hot limit %d is negative", ErrInvalidPolicy, p.MinHotLimit)
	case p.MaxHotLimit < p.MinHotLimit:
		return fmt.Errorf("%w: max hot limit %d is below min hot limit %d", ErrInvalidPolicy, p.MaxHotLimit, p.MinHotLimit)
	case p.HotPercentile < 0 || p.HotPercentile > 1:
		return fmt.Errorf("%w: hot percentile %g is outside [0,1]", ErrInvalidPolicy, p.HotPercentile)
	}
	return nil
}

// MarkHotMethods resets every hot flag in exp and marks the smallest prefix
// of compilations, ranked by descending period fraction, whose cumulative
// fraction exceeds HotPercentile. At least min(MinHotLimit, n) and at most
// MaxHotLimit compilations are marked. Ties keep insertion order. Fractions
// are relative to the experiment's total period.
//
// The hot compilations are returned in rank order.
func (p HotMethodPolicy) MarkHotMethods(exp *Experiment) []*ExecutedMethod {
	methods := exp.ExecutedMethods()
	for _, m := range methods {
		m.Hot = false
	}
	if len(methods) == 0 {
		return nil
	}

	ranked := make([]*ExecutedMethod, len(methods))
	copy(ranked, methods)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PeriodFraction() > ranked[j].PeriodFraction()
	})

	var hot []*ExecutedMethod
	sum := 0.0
	for _, m := range ranked {
		if len(hot) >= p.MaxHotLimit {
			break
		}
		if len(hot) >= p.MinHotLimit {
			// covered, or nothing left that could add coverage
			if sum > p.HotPercentile || m.PeriodFraction() <= 0 {
				break
			}
		}
		m.Hot = true
		hot = append(hot, m)
		sum += m.PeriodFraction()
	}
	return hot
}
