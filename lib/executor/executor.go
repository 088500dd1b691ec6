// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/conveyor-ci/conveyor/lib/artifact"
	"github.com/conveyor-ci/conveyor/lib/clock"
	"github.com/conveyor-ci/conveyor/lib/environment"
	"github.com/conveyor-ci/conveyor/lib/schema"
	"github.com/conveyor-ci/conveyor/lib/trigger"
)

// ActionRequest carries everything an external action needs: its
// parameters (variable-expanded), the owning instance, and the
// instance's environment.
type ActionRequest struct {
	Action   string
	With     map[string]string
	Instance Instance
	Env      *environment.Environment
	Logger   *slog.Logger
}

// ActionRunner executes one named external action. The engine does
// not interpret action semantics; it only observes success or
// failure.
type ActionRunner interface {
	Run(ctx context.Context, req ActionRequest) error
}

// ActionFunc adapts a function to the ActionRunner interface.
type ActionFunc func(ctx context.Context, req ActionRequest) error

func (f ActionFunc) Run(ctx context.Context, req ActionRequest) error { return f(ctx, req) }

// VariantInstaller installs a named dependency variant set into an
// instance's environment. *environment.Provisioner satisfies this.
type VariantInstaller interface {
	Install(ctx context.Context, env *environment.Environment, variantName string) error
}

// DefaultStepTimeout bounds steps that declare no timeout.
const DefaultStepTimeout = 5 * time.Minute

// Executor runs a job instance's steps. All fields except Actions and
// Publisher are optional; zero values select sensible defaults.
type Executor struct {
	// Publisher stores declared step artifacts. Required when any
	// step declares artifacts.
	Publisher *artifact.Publisher

	// Actions maps action names (step "uses") to their runners.
	Actions map[string]ActionRunner

	// Installer handles step variant installation. Required when any
	// step declares a variant.
	Installer VariantInstaller

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// DefaultTimeout bounds steps without a declared timeout.
	// Defaults to DefaultStepTimeout.
	DefaultTimeout time.Duration

	// HostOS and HostArch override the host facts, mainly for tests.
	// Default to runtime.GOOS and runtime.GOARCH.
	HostOS   string
	HostArch string
}

func (e *Executor) clock() clock.Clock {
	if e.Clock != nil {
		return e.Clock
	}
	return clock.Real()
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Executor) hostOS() string {
	if e.HostOS != "" {
		return e.HostOS
	}
	return runtime.GOOS
}

func (e *Executor) hostArch() string {
	if e.HostArch != "" {
		return e.HostArch
	}
	return runtime.GOARCH
}

// facts builds the fact map step conditions evaluate against: the
// instance's axis values, the host facts, and the activating event.
func (e *Executor) facts(instance Instance, event *trigger.Event) map[string]string {
	facts := instance.Selection.Facts()
	facts["host_os"] = e.hostOS()
	facts["host_arch"] = e.hostArch()
	if event != nil {
		facts["event"] = event.Kind
		facts["branch"] = event.Branch
	}
	return facts
}

// vars builds the substitution map for ${NAME} references: the
// environment's variables, the instance's axis values uppercased
// (axis "os" binds ${OS}), and the activating event's kind and branch
// (${EVENT}, ${BRANCH}).
func (e *Executor) vars(instance Instance, env *environment.Environment, event *trigger.Event) map[string]string {
	vars := make(map[string]string, len(env.Vars)+6)
	for name, value := range env.Vars {
		vars[name] = value
	}
	for axis, value := range instance.Selection.Facts() {
		vars[strings.ToUpper(axis)] = value
	}
	if event != nil {
		vars["EVENT"] = event.Kind
		vars["BRANCH"] = event.Branch
	}
	return vars
}

// RunInstance executes every declared step of one job instance, in
// order. A required step failure fails the instance and skips the
// remaining steps, except steps marked always, which still run so
// cleanup and publish work can capture partial results. A failure of
// an always or optional step on an already-failed instance is
// recorded without changing the terminal state.
func (e *Executor) RunInstance(ctx context.Context, instance Instance, job schema.Job, env *environment.Environment, event *trigger.Event) InstanceResult {
	result := InstanceResult{
		InstanceID: instance.ID(),
		JobName:    instance.JobName,
		Steps:      make([]StepResult, 0, len(job.Steps)),
	}
	facts := e.facts(instance, event)
	logger := e.logger().With("instance", result.InstanceID)
	start := e.clock().Now()

	failed := false
	for _, step := range job.Steps {
		if failed && !step.Always {
			result.Steps = append(result.Steps, StepResult{
				Name:   step.Name,
				Status: StepSkipped,
				Detail: "earlier step failed",
			})
			continue
		}

		if step.If != nil {
			met, err := EvaluateCondition(step.If, facts)
			if err != nil {
				result.Steps = append(result.Steps, StepResult{
					Name:   step.Name,
					Status: StepFailed,
					Detail: err.Error(),
				})
				failed = true
				continue
			}
			if !met {
				logger.Debug("step condition not met", "step", step.Name, "fact", step.If.Fact)
				result.Steps = append(result.Steps, StepResult{
					Name:   step.Name,
					Status: StepSkipped,
					Detail: "condition not met",
				})
				continue
			}
		}

		stepResult := e.runStep(ctx, instance, step, env, event, logger)
		if stepResult.Status == StepFailed && !failed {
			failed = true
		}
		result.Steps = append(result.Steps, stepResult)
	}

	result.Success = !failed
	result.Duration = e.clock().Now().Sub(start)
	logger.Info("instance finished", "success", result.Success, "duration", result.Duration)
	return result
}

// runStep executes one step's action and publishes its declared
// artifacts. Artifacts are published only when the action portion
// succeeded; a publish failure is recorded in the result but never
// changes the step's status.
func (e *Executor) runStep(ctx context.Context, instance Instance, step schema.Step, env *environment.Environment, event *trigger.Event, logger *slog.Logger) StepResult {
	timeout := e.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	if step.Timeout != "" {
		parsed, err := time.ParseDuration(step.Timeout)
		if err != nil {
			// Load-time validation catches this for pipelinedef.Load
			// callers, but the executor is callable with declarations
			// built in code.
			logger.Error("invalid step timeout", "step", step.Name, "timeout", step.Timeout, "error", err)
			return StepResult{
				Name:   step.Name,
				Status: StepFailed,
				Detail: fmt.Sprintf("invalid timeout %q: %v", step.Timeout, err),
			}
		}
		timeout = parsed
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := e.clock().Now()
	err := e.runAction(stepCtx, instance, step, env, event)
	result := StepResult{
		Name:     step.Name,
		Status:   StepOK,
		Duration: e.clock().Now().Sub(start),
	}

	if err != nil {
		result.Detail = err.Error()
		if step.Optional {
			result.Status = StepFailedOptional
			logger.Warn("optional step failed", "step", step.Name, "error", err)
		} else {
			result.Status = StepFailed
			logger.Error("step failed", "step", step.Name, "error", err)
		}
		return result
	}

	for _, decl := range step.Artifacts {
		entry, publishErr := e.publish(ctx, instance, decl, env, event)
		if publishErr != nil {
			logger.Warn("artifact publish failed", "step", step.Name, "artifact", decl.Name, "error", publishErr)
			result.PublishErrors = append(result.PublishErrors, publishErr.Error())
			continue
		}
		if entry != nil {
			result.Artifacts = append(result.Artifacts, *entry)
		}
	}

	logger.Debug("step finished", "step", step.Name, "status", result.Status, "duration", result.Duration)
	return result
}

// runAction executes the step's payload: variant installation first,
// then the shell command or named action, if any. A step may declare
// artifacts only, in which case runAction is a no-op.
func (e *Executor) runAction(ctx context.Context, instance Instance, step schema.Step, env *environment.Environment, event *trigger.Event) error {
	vars := e.vars(instance, env, event)

	if step.Variant != "" {
		if e.Installer == nil {
			return fmt.Errorf("step %q declares variant %q but no installer is configured", step.Name, step.Variant)
		}
		if err := e.Installer.Install(ctx, env, step.Variant); err != nil {
			return err
		}
	}

	stepEnv, err := expandMap(step.Env, vars)
	if err != nil {
		return fmt.Errorf("step %q env: %w", step.Name, err)
	}

	switch {
	case step.Run != "":
		command, err := ExpandVariables(step.Run, vars)
		if err != nil {
			return fmt.Errorf("step %q run: %w", step.Name, err)
		}
		shell := step.Shell
		if shell == "" {
			shell = defaultShell(e.hostOS())
		}
		extraEnv := make(map[string]string, len(env.Vars)+len(stepEnv))
		for name, value := range env.Vars {
			extraEnv[name] = value
		}
		for name, value := range stepEnv {
			extraEnv[name] = value
		}
		output, err := runShell(ctx, shellArgv(shell, command), env.Dir, extraEnv)
		if err != nil {
			if output != "" {
				return fmt.Errorf("step %q: %w (output: %s)", step.Name, err, tail(output, 400))
			}
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
		return nil

	case step.Uses != "":
		runner, registered := e.Actions[step.Uses]
		if !registered {
			return fmt.Errorf("step %q uses unknown action %q", step.Name, step.Uses)
		}
		with, err := expandMap(step.With, vars)
		if err != nil {
			return fmt.Errorf("step %q with: %w", step.Name, err)
		}
		request := ActionRequest{
			Action:   step.Uses,
			With:     with,
			Instance: instance,
			Env:      env,
			Logger:   e.logger(),
		}
		if err := runner.Run(ctx, request); err != nil {
			return fmt.Errorf("step %q action %q: %w", step.Name, step.Uses, err)
		}
		return nil
	}

	return nil
}

// publish stores one declared artifact. Returns (nil, nil) when the
// publish was skipped for an absent payload with if_missing: ignore.
func (e *Executor) publish(ctx context.Context, instance Instance, decl schema.ArtifactDecl, env *environment.Environment, event *trigger.Event) (*artifact.Entry, error) {
	if e.Publisher == nil {
		return nil, fmt.Errorf("artifact %q declared but no publisher is configured", decl.Name)
	}
	path, err := ExpandVariables(decl.Path, e.vars(instance, env, event))
	if err != nil {
		return nil, fmt.Errorf("artifact %q path: %w", decl.Name, err)
	}
	expanded := decl
	expanded.Path = path

	key := artifact.Key{RunID: instance.RunID, InstanceID: instance.ID(), Name: decl.Name}
	published, err := e.Publisher.Publish(ctx, key, expanded, env.Dir)
	if err != nil {
		return nil, err
	}
	if published.Skipped {
		return nil, nil
	}
	return &published.Entry, nil
}

// tail returns at most n trailing bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
