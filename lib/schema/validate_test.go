// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"strings"
	"testing"
)

// minimalJob returns a valid single-step job for building test pipelines.
func minimalJob(needs ...string) Job {
	return Job{
		Needs: needs,
		Steps: []Step{{Name: "work", Run: "true"}},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		pipeline       *Pipeline
		expectedIssues int
		wantSubstrings []string
	}{
		{
			name: "valid minimal pipeline",
			pipeline: &Pipeline{
				Name: "ci",
				On:   []Trigger{{Event: "push", Branches: []string{"main"}}},
				Jobs: map[string]Job{"test": minimalJob()},
			},
			expectedIssues: 0,
		},
		{
			name: "valid matrix job with conditions and artifacts",
			pipeline: &Pipeline{
				Name: "ci",
				Jobs: map[string]Job{
					"test": {
						Matrix: &Matrix{Axes: []Axis{
							{Name: "python", Values: []string{"3.10", "3.11"}},
							{Name: "os", Values: []string{"linux", "macos", "windows"}},
						}},
						FailFast: true,
						Steps: []Step{
							{Name: "install", Uses: "env/install", Variant: "core+dev"},
							{
								Name: "win-prep",
								Run:  "./prepare.ps1",
								If:   &Condition{Fact: "os", Equals: "windows"},
							},
							{
								Name: "tests",
								Run:  "run-tests --python ${PYTHON}",
								Env:  map[string]string{"COVERAGE_FILE": "cov.out"},
							},
							{
								Name:   "coverage",
								Always: true,
								Artifacts: []ArtifactDecl{
									{Name: "coverage", Path: "cov.out", IfMissing: "ignore", Compression: "zstd"},
								},
							},
						},
					},
					"docs": minimalJob("test"),
				},
			},
			expectedIssues: 0,
		},
		{
			name:           "missing name and jobs",
			pipeline:       &Pipeline{},
			expectedIssues: 2,
			wantSubstrings: []string{"name is required", "no jobs"},
		},
		{
			name: "unknown event kind",
			pipeline: &Pipeline{
				Name: "ci",
				On:   []Trigger{{Event: "cron"}},
				Jobs: map[string]Job{"test": minimalJob()},
			},
			expectedIssues: 1,
			wantSubstrings: []string{`unknown event kind "cron"`},
		},
		{
			name: "needs unknown job and self",
			pipeline: &Pipeline{
				Name: "ci",
				Jobs: map[string]Job{
					"a": minimalJob("missing"),
					"b": minimalJob("b"),
				},
			},
			expectedIssues: 2,
			wantSubstrings: []string{`needs unknown job "missing"`, "cannot need itself"},
		},
		{
			name: "empty matrix axis rejected at load time",
			pipeline: &Pipeline{
				Name: "ci",
				Jobs: map[string]Job{
					"test": {
						Matrix: &Matrix{Axes: []Axis{{Name: "os", Values: nil}}},
						Steps:  []Step{{Name: "work", Run: "true"}},
					},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"empty value set"},
		},
		{
			name: "duplicate axis and duplicate value",
			pipeline: &Pipeline{
				Name: "ci",
				Jobs: map[string]Job{
					"test": {
						Matrix: &Matrix{Axes: []Axis{
							{Name: "os", Values: []string{"linux", "linux"}},
							{Name: "os", Values: []string{"macos"}},
						}},
						Steps: []Step{{Name: "work", Run: "true"}},
					},
				},
			},
			expectedIssues: 2,
			wantSubstrings: []string{`duplicate axis name "os"`, `duplicate value "linux"`},
		},
		{
			name: "step with both run and uses",
			pipeline: &Pipeline{
				Name: "ci",
				Jobs: map[string]Job{
					"test": {Steps: []Step{{Name: "work", Run: "true", Uses: "docs/build"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"mutually exclusive"},
		},
		{
			name: "step with neither run nor uses nor artifacts",
			pipeline: &Pipeline{
				Name: "ci",
				Jobs: map[string]Job{
					"test": {Steps: []Step{{Name: "work"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"must set run, uses, or artifacts"},
		},
		{
			name: "condition with no comparison",
			pipeline: &Pipeline{
				Name: "ci",
				Jobs: map[string]Job{
					"test": {Steps: []Step{{Name: "work", Run: "true", If: &Condition{Fact: "os"}}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"exactly one of equals"},
		},
		{
			name: "condition with two comparisons",
			pipeline: &Pipeline{
				Name: "ci",
				Jobs: map[string]Job{
					"test": {Steps: []Step{{
						Name: "work", Run: "true",
						If: &Condition{Fact: "os", Equals: "linux", NotEquals: "macos"},
					}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"exactly one of equals"},
		},
		{
			name: "invalid timeout and shell",
			pipeline: &Pipeline{
				Name: "ci",
				Jobs: map[string]Job{
					"test": {Steps: []Step{{Name: "work", Run: "true", Timeout: "soon", Shell: "zsh"}}},
				},
			},
			expectedIssues: 2,
			wantSubstrings: []string{`invalid timeout "soon"`, `unknown shell "zsh"`},
		},
		{
			name: "dependency cycle",
			pipeline: &Pipeline{
				Name: "ci",
				Jobs: map[string]Job{
					"a": minimalJob("b"),
					"b": minimalJob("c"),
					"c": minimalJob("a"),
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"job dependency cycle"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			issues := Validate(test.pipeline)
			if len(issues) != test.expectedIssues {
				t.Errorf("got %d issues, want %d:\n  %s",
					len(issues), test.expectedIssues, strings.Join(issues, "\n  "))
			}
			joined := strings.Join(issues, "\n")
			for _, substring := range test.wantSubstrings {
				if !strings.Contains(joined, substring) {
					t.Errorf("issues missing %q:\n%s", substring, joined)
				}
			}
		})
	}
}

func TestFindCycleReportsEdgeOrder(t *testing.T) {
	t.Parallel()

	jobs := map[string]Job{
		"a": minimalJob("b"),
		"b": minimalJob("a"),
	}
	cycle := FindCycle(jobs)
	if cycle == nil {
		t.Fatal("expected a cycle")
	}
	if cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("cycle should start and end on the same job: %v", cycle)
	}
}

func TestFindCycleNilOnDAG(t *testing.T) {
	t.Parallel()

	jobs := map[string]Job{
		"test": minimalJob(),
		"docs": minimalJob("test"),
		"dist": minimalJob("test", "docs"),
	}
	if cycle := FindCycle(jobs); cycle != nil {
		t.Errorf("unexpected cycle in DAG: %v", cycle)
	}
}
