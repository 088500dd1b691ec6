// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"sort"

	"github.com/conveyor-ci/conveyor/lib/schema"
)

// Graph is a pipeline's job dependency structure layered for display.
// Every job appears in the first layer after all of its dependencies;
// layer zero holds the jobs with no needs. The layering describes
// which jobs could run together, not what the dispatch loop will do
// (a job starts as soon as its own needs finish, regardless of layer).
type Graph struct {
	// Layers holds job names by dependency depth, sorted within each
	// layer.
	Layers [][]string
}

// BuildGraph layers a pipeline's jobs by dependency depth. A
// dependency cycle returns a *schema.GraphError; unknown needs
// targets are ignored here (Validate reports them).
func BuildGraph(pipeline *schema.Pipeline) (*Graph, error) {
	if cycle := schema.FindCycle(pipeline.Jobs); cycle != nil {
		return nil, &schema.GraphError{Cycle: cycle}
	}
	if len(pipeline.Jobs) == 0 {
		return &Graph{}, nil
	}

	depth := make(map[string]int, len(pipeline.Jobs))
	var depthOf func(name string) int
	depthOf = func(name string) int {
		if d, known := depth[name]; known {
			return d
		}
		d := 0
		for _, dependency := range pipeline.Jobs[name].Needs {
			if _, exists := pipeline.Jobs[dependency]; !exists {
				continue
			}
			if needed := depthOf(dependency) + 1; needed > d {
				d = needed
			}
		}
		depth[name] = d
		return d
	}

	maxDepth := 0
	for name := range pipeline.Jobs {
		if d := depthOf(name); d > maxDepth {
			maxDepth = d
		}
	}

	layers := make([][]string, maxDepth+1)
	for name := range pipeline.Jobs {
		layers[depth[name]] = append(layers[depth[name]], name)
	}
	for _, layer := range layers {
		sort.Strings(layer)
	}
	return &Graph{Layers: layers}, nil
}
