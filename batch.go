package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// batchPair names the inputs of one bisection in a batch manifest.
type batchPair struct {
	experiment1, experiment2 string
	profile1, profile2       string
}

// parseManifest reads one pair per line:
//
//	experiment1.json experiment2.json [profile1 profile2]
//
// Blank lines and lines starting with # are skipped.
func parseManifest(r io.Reader) ([]batchPair, error) {
	var pairs []batchPair
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 2:
			pairs = append(pairs, batchPair{experiment1: fields[0], experiment2: fields[1]})
		case 4:
			pairs = append(pairs, batchPair{fields[0], fields[1], fields[2], fields[3]})
		default:
			return nil, fmt.Errorf("manifest line %d: want 2 or 4 fields, got %d", lineNo, len(fields))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

type loadOptions struct {
	eventType string
	thread    string
}

func loadExperiment(path, profilePath string, id ExperimentID, opts loadOptions) (*Experiment, error) {
	var sf *stackFile
	if profilePath != "" {
		var err error
		if sf, err = openProfile(profilePath, opts.eventType, opts.thread); err != nil {
			return nil, err
		}
	}
	return LoadExperiment(path, id, sf)
}

func loadPair(p batchPair, opts loadOptions) (a, b *Experiment, err error) {
	if a, err = loadExperiment(p.experiment1, p.profile1, ExperimentOne, opts); err != nil {
		return nil, nil, err
	}
	if b, err = loadExperiment(p.experiment2, p.profile2, ExperimentTwo, opts); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// runBatch bisects independent pairs concurrently, at most jobs at a time.
// Each pair owns its experiments, so the stages of one pair still run in
// order on a single goroutine. Results keep the manifest order.
func runBatch(ctx context.Context, pairs []batchPair, cfg Config, opts loadOptions, jobs int) ([]*Bisection, error) {
	results := make([]*Bisection, len(pairs))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, p := range pairs {
		i, p := i, p // per-iteration copies for go < 1.22 loop semantics
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, b, err := loadPair(p, opts)
			if err != nil {
				return err
			}
			res, err := Bisect(a, b, cfg)
			if err != nil {
				return fmt.Errorf("%s vs %s: %w", p.experiment1, p.experiment2, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
