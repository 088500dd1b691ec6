// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"errors"
	"reflect"
	"testing"

	"github.com/conveyor-ci/conveyor/lib/schema"
)

func TestBuildGraphLayersDiamond(t *testing.T) {
	t.Parallel()

	pipeline := &schema.Pipeline{
		Name: "diamond",
		Jobs: map[string]schema.Job{
			"build": {},
			"test":  {Needs: []string{"build"}},
			"lint":  {Needs: []string{"build"}},
			"ship":  {Needs: []string{"test", "lint"}},
		},
	}

	graph, err := BuildGraph(pipeline)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	want := [][]string{
		{"build"},
		{"lint", "test"},
		{"ship"},
	}
	if !reflect.DeepEqual(graph.Layers, want) {
		t.Fatalf("layers = %v, want %v", graph.Layers, want)
	}
}

func TestBuildGraphDepthFollowsLongestPath(t *testing.T) {
	t.Parallel()

	// "ship" needs both a depth-0 and a depth-1 job; it must land in
	// the layer after its deepest dependency.
	pipeline := &schema.Pipeline{
		Name: "chain",
		Jobs: map[string]schema.Job{
			"build": {},
			"docs":  {},
			"test":  {Needs: []string{"build"}},
			"ship":  {Needs: []string{"docs", "test"}},
		},
	}

	graph, err := BuildGraph(pipeline)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	want := [][]string{
		{"build", "docs"},
		{"test"},
		{"ship"},
	}
	if !reflect.DeepEqual(graph.Layers, want) {
		t.Fatalf("layers = %v, want %v", graph.Layers, want)
	}
}

func TestBuildGraphRejectsCycle(t *testing.T) {
	t.Parallel()

	pipeline := &schema.Pipeline{
		Name: "cyclic",
		Jobs: map[string]schema.Job{
			"a": {Needs: []string{"b"}},
			"b": {Needs: []string{"a"}},
		},
	}

	_, err := BuildGraph(pipeline)
	var graphErr *schema.GraphError
	if !errors.As(err, &graphErr) {
		t.Fatalf("BuildGraph error = %v, want *schema.GraphError", err)
	}
	if len(graphErr.Cycle) < 3 {
		t.Fatalf("cycle = %v, want at least a -> b -> a", graphErr.Cycle)
	}
}
