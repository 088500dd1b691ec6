// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the declaration types for Conveyor pipelines:
// triggers, jobs, matrices, steps, and the structural validation that
// rejects malformed declarations before anything runs.
//
// Declarations are authored on disk as JSONC files (JSON extended with
// comments and trailing commas) and parsed by lib/pipelinedef. A
// Pipeline is immutable once loaded; the scheduler and executor only
// ever read it.
package schema

// Pipeline is a complete pipeline declaration: when it activates (On),
// and what it runs (Jobs).
type Pipeline struct {
	// Name identifies the pipeline in logs, run records, and result
	// reporting. Required.
	Name string `json:"name"`

	// On lists the triggers that activate this pipeline. An incoming
	// event activates the pipeline if any trigger matches
	// (OR-combined). A pipeline with no triggers never activates from
	// events; it can still be run directly.
	On []Trigger `json:"on,omitempty"`

	// Jobs maps job names to their declarations. Job names are the
	// identifiers used in "needs" edges.
	Jobs map[string]Job `json:"jobs"`
}

// Trigger declares an activation rule: an event kind plus optional
// branch patterns and changed-path globs. An empty Branches or Paths
// set means "no constraint on that dimension".
type Trigger struct {
	// Event is the event kind this trigger responds to: "push",
	// "pull_request", or "workflow_dispatch".
	Event string `json:"event"`

	// Branches restricts the trigger to events whose branch matches
	// one of these glob patterns (e.g. "main", "release/*").
	Branches []string `json:"branches,omitempty"`

	// Paths restricts the trigger to events whose changed-path set
	// intersects at least one of these globs (e.g. "docs/**",
	// "pyproject.yaml"). "**" matches across path separators.
	Paths []string `json:"paths,omitempty"`
}

// Job is a named unit of work: an ordered step sequence, optionally
// expanded over a matrix, gated on other jobs via Needs.
type Job struct {
	// Needs lists the names of jobs that must reach a terminal state
	// before this job's instances start. If any dependency's
	// aggregate state is Failure (or Skipped), this job's instances
	// are marked Skipped without provisioning.
	Needs []string `json:"needs,omitempty"`

	// Matrix expands this job into one instance per axis-value
	// combination. Nil means a single instance with no axis bindings.
	Matrix *Matrix `json:"matrix,omitempty"`

	// FailFast cancels not-yet-started sibling instances of this
	// job's matrix once any sibling records a failure. Instances
	// already running are left to finish. Default false: siblings
	// are independent failure domains.
	FailFast bool `json:"fail_fast,omitempty"`

	// Steps is the ordered step sequence executed by every instance.
	// At least one step is required. Steps run strictly sequentially
	// within an instance.
	Steps []Step `json:"steps"`
}

// Matrix declares the expansion axes for a job. Axes are an ordered
// list (not a map) so that expansion order is well-defined: the first
// axis varies slowest.
type Matrix struct {
	Axes []Axis `json:"axes"`
}

// Axis is one matrix dimension: a name and its discrete values.
type Axis struct {
	// Name identifies the axis (e.g. "os", "python"). Axis values are
	// exposed to steps as facts (for conditions) and as ${NAME}
	// variables (uppercased).
	Name string `json:"name"`

	// Values is the non-empty ordered value set for this axis. An
	// empty value set is a load-time configuration error.
	Values []string `json:"values"`
}

// Step is a single unit of execution within a job. Exactly one of Run
// or Uses must be set, unless the step only publishes artifacts (then
// both may be empty and Artifacts must be non-empty).
type Step struct {
	// Name is a human-readable identifier for this step, used in log
	// output and results (e.g. "install-deps", "run-tests"). Required
	// and unique within the job.
	Name string `json:"name"`

	// Run is a shell command. Variable substitution (${NAME}) is
	// applied before execution. Mutually exclusive with Uses.
	Run string `json:"run,omitempty"`

	// Shell selects the interpreter for Run: "sh", "bash", or "pwsh".
	// When empty, the executor picks a default for the host OS. Only
	// valid with Run.
	Shell string `json:"shell,omitempty"`

	// Uses names an opaque external action (e.g. "docs/build").
	// The engine dispatches it to a registered action runner and
	// interprets only success or failure. Mutually exclusive with Run.
	Uses string `json:"uses,omitempty"`

	// With passes parameters to the action named by Uses. String
	// values support ${NAME} substitution. Only valid with Uses.
	With map[string]string `json:"with,omitempty"`

	// Variant names a dependency variant set (e.g. "core+dev") for
	// steps that install into the job's environment. Validated
	// against the variant catalogue at load time.
	Variant string `json:"variant,omitempty"`

	// If guards the step. The condition is evaluated against the
	// instance's axis values and host facts before the step runs; a
	// false result records the step as skipped and execution
	// continues with the next step. Nil means always run.
	If *Condition `json:"if,omitempty"`

	// Env sets additional environment variables for this step only.
	// Values support ${NAME} substitution.
	Env map[string]string `json:"env,omitempty"`

	// Artifacts declares files to publish after this step's action
	// succeeds. A step with Artifacts and no Run/Uses is a pure
	// publish step.
	Artifacts []ArtifactDecl `json:"artifacts,omitempty"`

	// Always means this step runs even after an earlier step has
	// failed the instance. Use for cleanup and publish steps that
	// must capture partial results. A failure of an Always step on
	// an already-failed instance is recorded but does not change the
	// instance's terminal state.
	Always bool `json:"always,omitempty"`

	// Optional means this step's failure does not fail the instance.
	// The failure is recorded as "failed (optional)" and execution
	// continues.
	Optional bool `json:"optional,omitempty"`

	// Timeout is the maximum duration for this step (e.g. "5m",
	// "30s"). Parsed by time.ParseDuration. When empty, the executor
	// default applies.
	Timeout string `json:"timeout,omitempty"`
}

// Condition is a step guard: a predicate over facts. Facts are the
// instance's axis values (by axis name), host facts ("host_os",
// "host_arch"), and event facts ("event", "branch").
//
// Exactly one of Equals, NotEquals, In, or NotIn must be set.
type Condition struct {
	// Fact is the fact name to test (e.g. "os", "host_os").
	Fact string `json:"fact"`

	// Equals asserts the fact value equals this string exactly.
	Equals string `json:"equals,omitempty"`

	// NotEquals asserts the fact value does not equal this string.
	NotEquals string `json:"not_equals,omitempty"`

	// In asserts the fact value is one of the listed strings.
	In []string `json:"in,omitempty"`

	// NotIn asserts the fact value is not any of the listed strings.
	NotIn []string `json:"not_in,omitempty"`
}

// ArtifactDecl declares a single artifact to publish from a step.
type ArtifactDecl struct {
	// Name is the declared artifact name. Sibling instances may
	// publish under the same name without collision; the artifact
	// store keys by (run, instance, name).
	Name string `json:"name"`

	// Path is the file to publish, relative to the instance's
	// working directory unless absolute. Supports ${NAME}
	// substitution.
	Path string `json:"path"`

	// Compression selects the payload compression: "none", "lz4", or
	// "zstd". Empty means the store default (zstd).
	Compression string `json:"compression,omitempty"`

	// IfMissing controls behavior when Path does not exist: "error"
	// (default) fails the publish, "ignore" records it as skipped.
	// Use "ignore" on Always publish steps so a failed upstream step
	// does not turn missing output into a second error.
	IfMissing string `json:"if_missing,omitempty"`
}
