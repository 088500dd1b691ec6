// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/conveyor-ci/conveyor/lib/clock"
	"github.com/conveyor-ci/conveyor/lib/environment"
	"github.com/conveyor-ci/conveyor/lib/executor"
	"github.com/conveyor-ci/conveyor/lib/matrix"
	"github.com/conveyor-ci/conveyor/lib/schema"
	"github.com/conveyor-ci/conveyor/lib/trigger"
)

// Provisioner creates and tears down instance environments.
// *environment.Provisioner satisfies this.
type Provisioner interface {
	Provision(ctx context.Context, instanceID string) (*environment.Environment, error)
	Teardown(env *environment.Environment)
}

// InstanceRunner executes one job instance's steps.
// *executor.Executor satisfies this.
type InstanceRunner interface {
	RunInstance(ctx context.Context, instance executor.Instance, job schema.Job, env *environment.Environment, event *trigger.Event) executor.InstanceResult
}

// Scheduler dispatches a pipeline's jobs over their dependency graph.
type Scheduler struct {
	// Provisioner supplies each instance's isolated environment.
	// Required.
	Provisioner Provisioner

	// Executor runs each instance's steps. Required.
	Executor InstanceRunner

	// Workers bounds the number of concurrently running instances
	// across the whole run. Zero or negative means unbounded (the
	// host runner pool is the only limit).
	Workers int

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (s *Scheduler) clock() clock.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return clock.Real()
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// jobOutcome carries one finished job from its goroutine back to the
// dispatch loop, which performs the single write into the state
// table.
type jobOutcome struct {
	name   string
	result JobResult
}

// Run executes every job of an activated pipeline and returns the
// folded run record. The pipeline is validated first; structural
// issues (cycles, empty matrix axes, malformed steps) surface as a
// *schema.ConfigurationError before any instance starts.
//
// Jobs whose needs are all in aggregate state success run as soon as
// a dispatch slot allows, concurrently with other eligible jobs. A
// dependency in aggregate failure or skipped state marks the
// dependent's instances skipped without provisioning an environment.
func (s *Scheduler) Run(ctx context.Context, pipeline *schema.Pipeline, event *trigger.Event) (*RunResult, error) {
	if issues := schema.Validate(pipeline); len(issues) > 0 {
		return nil, &schema.ConfigurationError{Pipeline: pipeline.Name, Issues: issues}
	}

	// Expand every matrix up front so expansion errors surface before
	// anything runs.
	selections := make(map[string][]matrix.Selection, len(pipeline.Jobs))
	for name, job := range pipeline.Jobs {
		expanded, err := matrix.Expand(job.Matrix)
		if err != nil {
			return nil, &schema.ConfigurationError{Pipeline: pipeline.Name, Issues: []string{
				fmt.Sprintf("jobs[%s]: %v", name, err),
			}}
		}
		selections[name] = expanded
	}

	runID := uuid.NewString()
	logger := s.logger().With("pipeline", pipeline.Name, "run", runID)
	startedAt := s.clock().Now()
	logger.Info("run started", "jobs", len(pipeline.Jobs), "event", eventKind(event))

	var semaphore chan struct{}
	if s.Workers > 0 {
		semaphore = make(chan struct{}, s.Workers)
	}

	// The state table: one terminal write per job, performed only by
	// this loop. Goroutines report through outcomes.
	states := make(map[string]JobState, len(pipeline.Jobs))
	results := make(map[string]JobResult, len(pipeline.Jobs))
	outcomes := make(chan jobOutcome)

	pending := make(map[string]bool, len(pipeline.Jobs))
	for name := range pipeline.Jobs {
		pending[name] = true
	}
	running := 0

	finalize := func(outcome jobOutcome) {
		states[outcome.name] = outcome.result.State
		results[outcome.name] = outcome.result
		logger.Info("job finished", "job", outcome.name, "state", outcome.result.State)
	}

	for len(states) < len(pipeline.Jobs) {
		for _, name := range sortedPending(pending) {
			job := pipeline.Jobs[name]
			ready, blockedBy := dependencyGate(job.Needs, states)
			if !ready {
				continue
			}
			delete(pending, name)

			if blockedBy != "" {
				finalize(jobOutcome{name: name, result: skippedJob(name, selections[name], runID, blockedBy, states[blockedBy])})
				continue
			}

			running++
			go func(name string, job schema.Job) {
				outcomes <- jobOutcome{name: name, result: s.runJob(ctx, runID, name, job, selections[name], event, semaphore)}
			}(name, job)
		}

		if running > 0 {
			finalize(<-outcomes)
			running--
		} else if len(states) < len(pipeline.Jobs) {
			// Unreachable for validated acyclic graphs.
			return nil, fmt.Errorf("scheduler stalled with %d jobs unfinished", len(pipeline.Jobs)-len(states))
		}
	}

	jobs := make([]JobResult, 0, len(results))
	for _, result := range results {
		jobs = append(jobs, result)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

	run := &RunResult{
		RunID:      runID,
		Pipeline:   pipeline.Name,
		Status:     foldStatus(jobs),
		StartedAt:  startedAt,
		FinishedAt: s.clock().Now(),
		Jobs:       jobs,
	}
	logger.Info("run finished", "status", run.Status, "duration", run.FinishedAt.Sub(run.StartedAt))
	return run, nil
}

// dependencyGate reports whether a job may be finalized or started:
// ready is true once every dependency has a terminal state, and
// blockedBy names the first (alphabetically) dependency whose
// aggregate is not success.
func dependencyGate(needs []string, states map[string]JobState) (ready bool, blockedBy string) {
	sorted := append([]string(nil), needs...)
	sort.Strings(sorted)
	for _, dependency := range sorted {
		state, terminal := states[dependency]
		if !terminal {
			return false, ""
		}
		if state != JobSuccess && blockedBy == "" {
			blockedBy = dependency
		}
	}
	return true, blockedBy
}

// skippedJob builds the terminal record for a job whose dependency
// gate failed: every instance is marked skipped, none provisioned.
func skippedJob(name string, selections []matrix.Selection, runID, dependency string, state JobState) JobResult {
	detail := fmt.Sprintf("dependency %q %s", dependency, state)
	instances := make([]executor.InstanceResult, len(selections))
	for i, selection := range selections {
		instance := executor.Instance{RunID: runID, JobName: name, Selection: selection}
		instances[i] = executor.InstanceResult{
			InstanceID: instance.ID(),
			JobName:    name,
			Skipped:    true,
			Detail:     detail,
		}
	}
	return JobResult{Name: name, State: JobSkipped, Instances: instances}
}

// runJob executes every instance of one job. Sibling instances run
// concurrently (bounded by the shared semaphore); with fail-fast
// enabled, a recorded sibling failure cancels instances that have not
// started yet. Instances already running are left to finish.
func (s *Scheduler) runJob(ctx context.Context, runID, name string, job schema.Job, selections []matrix.Selection, event *trigger.Event, semaphore chan struct{}) JobResult {
	instances := make([]executor.InstanceResult, len(selections))
	var failed atomic.Bool
	var group sync.WaitGroup

	for i, selection := range selections {
		group.Add(1)
		go func(i int, selection matrix.Selection) {
			defer group.Done()
			if semaphore != nil {
				semaphore <- struct{}{}
				defer func() { <-semaphore }()
			}

			instance := executor.Instance{RunID: runID, JobName: name, Selection: selection}

			// Fail-fast check at the instance-start boundary only.
			if job.FailFast && failed.Load() {
				instances[i] = executor.InstanceResult{
					InstanceID: instance.ID(),
					JobName:    name,
					Skipped:    true,
					Detail:     "cancelled: sibling instance failed",
				}
				return
			}

			instances[i] = s.runInstance(ctx, instance, job, event)
			if !instances[i].Success && !instances[i].Skipped {
				failed.Store(true)
			}
		}(i, selection)
	}
	group.Wait()

	return JobResult{Name: name, State: aggregate(instances), Instances: instances}
}

// runInstance provisions, executes, and tears down one instance. A
// provisioning failure is the instance's terminal record; siblings
// are unaffected unless fail-fast applies.
func (s *Scheduler) runInstance(ctx context.Context, instance executor.Instance, job schema.Job, event *trigger.Event) executor.InstanceResult {
	env, err := s.Provisioner.Provision(ctx, instance.ID())
	if err != nil {
		s.logger().Error("provisioning failed", "instance", instance.ID(), "error", err)
		return executor.InstanceResult{
			InstanceID: instance.ID(),
			JobName:    instance.JobName,
			Detail:     err.Error(),
		}
	}
	defer s.Provisioner.Teardown(env)

	return s.Executor.RunInstance(ctx, instance, job, env, event)
}

func sortedPending(pending map[string]bool) []string {
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func eventKind(event *trigger.Event) string {
	if event == nil {
		return "manual"
	}
	return event.Kind
}
