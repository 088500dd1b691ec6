// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"sort"
	"time"
)

// knownEvents are the event kinds triggers may declare.
var knownEvents = map[string]bool{
	"push":              true,
	"pull_request":      true,
	"workflow_dispatch": true,
}

// Validate checks a Pipeline for structural issues. Returns a list of
// human-readable issue descriptions; an empty list means the pipeline
// is valid.
//
// Structural checks include:
//   - Pipeline name and at least one job are required
//   - Trigger event kinds must be known
//   - "needs" targets must exist and must not form a cycle
//   - Matrix axes must have unique names and non-empty value sets
//   - Each step needs a unique name and exactly one of run/uses
//     (or artifacts only, for pure publish steps)
//   - Conditions must set exactly one comparison
//   - Timeouts must parse with time.ParseDuration
func Validate(pipeline *Pipeline) []string {
	var issues []string

	if pipeline.Name == "" {
		issues = append(issues, "pipeline name is required")
	}
	if len(pipeline.Jobs) == 0 {
		issues = append(issues, "pipeline has no jobs (at least one job is required)")
	}

	for index, trigger := range pipeline.On {
		if !knownEvents[trigger.Event] {
			issues = append(issues, fmt.Sprintf("on[%d]: unknown event kind %q", index, trigger.Event))
		}
	}

	// Deterministic job order so repeated validation of the same
	// declaration reports issues in the same order.
	jobNames := make([]string, 0, len(pipeline.Jobs))
	for name := range pipeline.Jobs {
		jobNames = append(jobNames, name)
	}
	sort.Strings(jobNames)

	for _, jobName := range jobNames {
		job := pipeline.Jobs[jobName]
		issues = append(issues, validateJob(jobName, job, pipeline.Jobs)...)
	}

	if cycle := FindCycle(pipeline.Jobs); cycle != nil {
		issues = append(issues, (&GraphError{Cycle: cycle}).Error())
	}

	return issues
}

func validateJob(jobName string, job Job, jobs map[string]Job) []string {
	var issues []string
	prefix := fmt.Sprintf("jobs[%s]", jobName)

	if len(job.Steps) == 0 {
		issues = append(issues, fmt.Sprintf("%s: job has no steps (at least one step is required)", prefix))
	}

	for _, dependency := range job.Needs {
		if dependency == jobName {
			issues = append(issues, fmt.Sprintf("%s: job cannot need itself", prefix))
			continue
		}
		if _, exists := jobs[dependency]; !exists {
			issues = append(issues, fmt.Sprintf("%s: needs unknown job %q", prefix, dependency))
		}
	}

	if job.Matrix != nil {
		issues = append(issues, validateMatrix(prefix, job.Matrix)...)
	}

	seenSteps := make(map[string]bool, len(job.Steps))
	for index, step := range job.Steps {
		issues = append(issues, validateStep(prefix, index, step, seenSteps)...)
	}

	return issues
}

func validateMatrix(prefix string, matrix *Matrix) []string {
	var issues []string

	if len(matrix.Axes) == 0 {
		issues = append(issues, fmt.Sprintf("%s: matrix declared with no axes", prefix))
	}

	seenAxes := make(map[string]bool, len(matrix.Axes))
	for index, axis := range matrix.Axes {
		axisPrefix := fmt.Sprintf("%s.matrix.axes[%d]", prefix, index)
		if axis.Name == "" {
			issues = append(issues, fmt.Sprintf("%s: axis name is required", axisPrefix))
		} else {
			if seenAxes[axis.Name] {
				issues = append(issues, fmt.Sprintf("%s: duplicate axis name %q", axisPrefix, axis.Name))
			}
			seenAxes[axis.Name] = true
			axisPrefix = fmt.Sprintf("%s.matrix.axes[%d] %q", prefix, index, axis.Name)
		}

		if len(axis.Values) == 0 {
			issues = append(issues, fmt.Sprintf("%s: axis has an empty value set", axisPrefix))
		}
		seenValues := make(map[string]bool, len(axis.Values))
		for _, value := range axis.Values {
			if seenValues[value] {
				issues = append(issues, fmt.Sprintf("%s: duplicate value %q", axisPrefix, value))
			}
			seenValues[value] = true
		}
	}

	return issues
}

func validateStep(jobPrefix string, index int, step Step, seenSteps map[string]bool) []string {
	var issues []string
	prefix := fmt.Sprintf("%s.steps[%d]", jobPrefix, index)

	if step.Name == "" {
		issues = append(issues, fmt.Sprintf("%s: name is required", prefix))
	} else {
		if seenSteps[step.Name] {
			issues = append(issues, fmt.Sprintf("%s: duplicate step name %q", prefix, step.Name))
		}
		seenSteps[step.Name] = true
		prefix = fmt.Sprintf("%s.steps[%d] %q", jobPrefix, index, step.Name)
	}

	hasRun := step.Run != ""
	hasUses := step.Uses != ""

	switch {
	case hasRun && hasUses:
		issues = append(issues, fmt.Sprintf("%s: run and uses are mutually exclusive (set exactly one)", prefix))
	case !hasRun && !hasUses && len(step.Artifacts) == 0:
		issues = append(issues, fmt.Sprintf("%s: must set run, uses, or artifacts", prefix))
	}

	if step.Shell != "" {
		if !hasRun {
			issues = append(issues, fmt.Sprintf("%s: shell is only valid on run steps", prefix))
		}
		switch step.Shell {
		case "sh", "bash", "pwsh":
		default:
			issues = append(issues, fmt.Sprintf("%s: unknown shell %q (want sh, bash, or pwsh)", prefix, step.Shell))
		}
	}
	if len(step.With) > 0 && !hasUses {
		issues = append(issues, fmt.Sprintf("%s: with is only valid on uses steps", prefix))
	}

	if step.If != nil {
		issues = append(issues, validateCondition(prefix, step.If)...)
	}

	for artifactIndex, artifact := range step.Artifacts {
		artifactPrefix := fmt.Sprintf("%s.artifacts[%d]", prefix, artifactIndex)
		if artifact.Name == "" {
			issues = append(issues, fmt.Sprintf("%s: name is required", artifactPrefix))
		}
		if artifact.Path == "" {
			issues = append(issues, fmt.Sprintf("%s: path is required", artifactPrefix))
		}
		switch artifact.Compression {
		case "", "none", "lz4", "zstd":
		default:
			issues = append(issues, fmt.Sprintf("%s: unknown compression %q", artifactPrefix, artifact.Compression))
		}
		switch artifact.IfMissing {
		case "", "error", "ignore":
		default:
			issues = append(issues, fmt.Sprintf("%s: if_missing must be \"error\" or \"ignore\", got %q", artifactPrefix, artifact.IfMissing))
		}
	}

	if step.Timeout != "" {
		if _, err := time.ParseDuration(step.Timeout); err != nil {
			issues = append(issues, fmt.Sprintf("%s: invalid timeout %q: %v", prefix, step.Timeout, err))
		}
	}

	return issues
}

func validateCondition(prefix string, condition *Condition) []string {
	var issues []string

	if condition.Fact == "" {
		issues = append(issues, fmt.Sprintf("%s: if.fact is required", prefix))
	}

	set := 0
	if condition.Equals != "" {
		set++
	}
	if condition.NotEquals != "" {
		set++
	}
	if len(condition.In) > 0 {
		set++
	}
	if len(condition.NotIn) > 0 {
		set++
	}
	if set != 1 {
		issues = append(issues, fmt.Sprintf("%s: if must set exactly one of equals, not_equals, in, not_in", prefix))
	}

	return issues
}

// FindCycle looks for a dependency cycle in the jobs' needs edges.
// Returns the cycle as a job name list (first name repeated at the
// end), or nil if the graph is acyclic. Traversal order is
// deterministic: job names are visited sorted.
func FindCycle(jobs map[string]Job) []string {
	const (
		white = iota // unvisited
		grey         // on the current DFS path
		black        // fully explored
	)

	color := make(map[string]int, len(jobs))
	parent := make(map[string]string, len(jobs))

	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	var cycleStart, cycleEnd string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = grey
		needs := append([]string(nil), jobs[name].Needs...)
		sort.Strings(needs)
		for _, dependency := range needs {
			if _, exists := jobs[dependency]; !exists {
				continue // unknown target reported separately
			}
			switch color[dependency] {
			case white:
				parent[dependency] = name
				if visit(dependency) {
					return true
				}
			case grey:
				cycleStart, cycleEnd = dependency, name
				return true
			}
		}
		color[name] = black
		return false
	}

	for _, name := range names {
		if color[name] == white && visit(name) {
			// Reconstruct the cycle by walking parents back from
			// cycleEnd to cycleStart.
			cycle := []string{cycleStart}
			for current := cycleEnd; current != cycleStart; current = parent[current] {
				cycle = append(cycle, current)
			}
			cycle = append(cycle, cycleStart)
			// Reverse into edge order (start -> ... -> start).
			for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
				cycle[i], cycle[j] = cycle[j], cycle[i]
			}
			return cycle
		}
	}
	return nil
}
