// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler runs an activated pipeline: it expands each job's
// matrix, orders jobs by their needs edges, dispatches independent
// jobs concurrently, and gates dependents on upstream aggregate
// state. Job terminal states are written exactly once.
package scheduler

import (
	"time"

	"github.com/conveyor-ci/conveyor/lib/executor"
)

// JobState is a job's aggregate terminal state, folded over its
// instances and used for gating dependents.
type JobState string

const (
	// JobSuccess means every instance succeeded.
	JobSuccess JobState = "success"

	// JobFailure means at least one instance failed.
	JobFailure JobState = "failure"

	// JobSkipped means no instance ran: an upstream dependency's
	// aggregate was not success. Propagates to dependents like a
	// failure, but is recorded as a deliberate non-execution.
	JobSkipped JobState = "skipped"
)

// JobResult is one job's terminal record: its aggregate state and
// every instance's outcome.
type JobResult struct {
	// Name is the job's declared name.
	Name string `json:"name"`

	// State is the aggregate terminal state.
	State JobState `json:"state"`

	// Instances holds every instance's record, in matrix expansion
	// order.
	Instances []executor.InstanceResult `json:"instances"`
}

// aggregate folds instance outcomes into the job's terminal state.
// Success only when every instance succeeded; failure as soon as any
// instance ran and failed; skipped when all instances were skipped.
func aggregate(instances []executor.InstanceResult) JobState {
	allSkipped := len(instances) > 0
	for _, instance := range instances {
		if !instance.Skipped {
			allSkipped = false
		}
		if !instance.Success && !instance.Skipped {
			return JobFailure
		}
	}
	if allSkipped {
		return JobSkipped
	}
	for _, instance := range instances {
		if instance.Skipped {
			// Fail-fast cancellations without a recorded sibling
			// failure should not happen, but a partially skipped job
			// did not fully succeed.
			return JobFailure
		}
	}
	return JobSuccess
}

// RunStatus is the overall outcome of one pipeline run.
type RunStatus string

const (
	// RunSuccess means every job's aggregate state is success.
	RunSuccess RunStatus = "success"

	// RunFailure means at least one job's aggregate state is failure.
	RunFailure RunStatus = "failure"

	// RunPartialSkip means no job failed but at least one was
	// skipped.
	RunPartialSkip RunStatus = "partial-skip"
)

// RunResult is the terminal record of one pipeline run.
type RunResult struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// Pipeline is the activated pipeline's name.
	Pipeline string `json:"pipeline"`

	// Status is the folded overall outcome.
	Status RunStatus `json:"status"`

	// StartedAt and FinishedAt bound the run's wall time.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Jobs holds every job's terminal record, sorted by name.
	Jobs []JobResult `json:"jobs"`
}

// foldStatus derives the overall run status from the job aggregates:
// failure dominates, then partial-skip, then success.
func foldStatus(jobs []JobResult) RunStatus {
	status := RunSuccess
	for _, job := range jobs {
		switch job.State {
		case JobFailure:
			return RunFailure
		case JobSkipped:
			status = RunPartialSkip
		}
	}
	return status
}
