// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor runs a job instance's ordered steps inside its
// provisioned environment: predicate evaluation, variable expansion,
// shell and action dispatch, variant installation, and artifact
// publishing. Steps within an instance run strictly sequentially.
package executor

import (
	"time"

	"github.com/conveyor-ci/conveyor/lib/artifact"
	"github.com/conveyor-ci/conveyor/lib/matrix"
)

// Instance is one job bound to one concrete axis-value selection. A
// job without a matrix has a single instance with the empty selection.
type Instance struct {
	// RunID identifies the pipeline run this instance belongs to.
	RunID string

	// JobName is the declaring job's name.
	JobName string

	// Selection binds the job's matrix axes to concrete values.
	Selection matrix.Selection
}

// ID returns the instance identity used for environment ownership,
// artifact keys, and result reporting: "job/axis=value,..." or
// "job/default" for matrix-less jobs. Unique within a run.
func (i Instance) ID() string {
	return i.JobName + "/" + i.Selection.Key()
}

// StepStatus is the recorded outcome of one step.
type StepStatus string

const (
	// StepOK means the step's action succeeded.
	StepOK StepStatus = "ok"

	// StepFailed means the step's action failed. Unless the step is
	// optional, this fails the owning instance.
	StepFailed StepStatus = "failed"

	// StepFailedOptional means an optional step failed. Recorded, but
	// the instance continues and its terminal state is unaffected.
	StepFailedOptional StepStatus = "failed (optional)"

	// StepSkipped means the step did not run: its condition evaluated
	// false, or an earlier step had already failed the instance and
	// the step is not marked always.
	StepSkipped StepStatus = "skipped"
)

// StepResult records one step's outcome.
type StepResult struct {
	// Name is the step's declared name.
	Name string `json:"name"`

	// Status is the recorded outcome.
	Status StepStatus `json:"status"`

	// Detail carries the failure or skip reason, empty on plain
	// success.
	Detail string `json:"detail,omitempty"`

	// Duration is how long the step's action ran. Zero for skipped
	// steps.
	Duration time.Duration `json:"duration"`

	// Artifacts lists the entries published by this step.
	Artifacts []artifact.Entry `json:"artifacts,omitempty"`

	// PublishErrors records artifact publish failures. A publish
	// failure never changes the instance's terminal state.
	PublishErrors []string `json:"publish_errors,omitempty"`
}

// InstanceResult is the terminal record of one job instance.
type InstanceResult struct {
	// InstanceID is Instance.ID().
	InstanceID string `json:"instance_id"`

	// JobName is the declaring job's name.
	JobName string `json:"job_name"`

	// Success is the instance's terminal state: true when no required
	// step failed. Always false when Skipped.
	Success bool `json:"success"`

	// Skipped means the instance never ran: an upstream dependency
	// failed, or a fail-fast sibling failure cancelled it before it
	// started. Distinct from failure: a deliberate, recorded
	// non-execution.
	Skipped bool `json:"skipped,omitempty"`

	// Detail carries the skip reason or a provisioning failure. Empty
	// for instances that ran.
	Detail string `json:"detail,omitempty"`

	// Steps records every declared step's outcome, in declared order.
	Steps []StepResult `json:"steps"`

	// Duration is the wall time from first step start to last step
	// end.
	Duration time.Duration `json:"duration"`
}
