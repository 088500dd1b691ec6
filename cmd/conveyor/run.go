// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/conveyor-ci/conveyor/lib/artifact"
	"github.com/conveyor-ci/conveyor/lib/config"
	"github.com/conveyor-ci/conveyor/lib/docs"
	"github.com/conveyor-ci/conveyor/lib/environment"
	"github.com/conveyor-ci/conveyor/lib/executor"
	"github.com/conveyor-ci/conveyor/lib/matrix"
	"github.com/conveyor-ci/conveyor/lib/pipelinedef"
	"github.com/conveyor-ci/conveyor/lib/report"
	"github.com/conveyor-ci/conveyor/lib/runlog"
	"github.com/conveyor-ci/conveyor/lib/scheduler"
	"github.com/conveyor-ci/conveyor/lib/schema"
	"github.com/conveyor-ci/conveyor/lib/trigger"
)

// errRunFailed distinguishes a pipeline that ran and failed from an
// engine error; both exit non-zero but only the latter is prefixed as
// a conveyor error.
var errRunFailed = errors.New("run failed")

func cmdRun(args []string) error {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configPath := flags.String("config", "", "configuration file")
	eventPath := flags.String("event", "", "event JSON file; omit for a manual run")
	force := flags.Bool("force", false, "run even when no trigger matches the event")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("run: expected exactly one pipeline file, got %d", flags.NArg())
	}

	setupLogging(*verbose)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	pipeline, err := pipelinedef.Load(flags.Arg(0))
	if err != nil {
		return err
	}

	var event *trigger.Event
	if *eventPath != "" {
		event, err = trigger.ReadFile(*eventPath)
		if err != nil {
			return err
		}
		if !trigger.Activates(pipeline, event) && !*force {
			// Silent no-op, not an error.
			slog.Info("no trigger matches, pipeline does not run",
				"pipeline", pipeline.Name, "event", event.Kind)
			return nil
		}
	}

	result, err := executePipeline(context.Background(), cfg, pipeline, event)
	if err != nil {
		return err
	}

	writer := &runlog.Writer{Dir: cfg.RunLogDir}
	path, err := writer.Write(result)
	if err != nil {
		return err
	}
	slog.Info("run recorded", "path", path)

	fmt.Print(report.Render(result, report.IsTerminal(os.Stdout)))
	if result.Status == scheduler.RunFailure {
		return errRunFailed
	}
	return nil
}

// executePipeline wires the engine from configuration and runs one
// pipeline.
func executePipeline(ctx context.Context, cfg *config.Config, pipeline *schema.Pipeline, event *trigger.Event) (*scheduler.RunResult, error) {
	store, err := artifact.NewFSStore(cfg.ArtifactDir)
	if err != nil {
		return nil, err
	}
	publisher := &artifact.Publisher{Store: store}

	provisioner := &environment.Provisioner{
		Root:         filepath.Join(cfg.EnvironmentRoot, "conveyor"),
		SecretsPath:  cfg.SecretsFile,
		IdentityPath: cfg.SecretsIdentity,
	}
	if len(cfg.InstallCommand) > 0 {
		provisioner.Installer = &environment.CommandInstaller{Command: cfg.InstallCommand}
	}

	exec := &executor.Executor{
		Publisher:      publisher,
		Installer:      provisioner,
		Actions:        builtinActions(),
		DefaultTimeout: cfg.DefaultStepTimeout(),
	}

	sched := &scheduler.Scheduler{
		Provisioner: provisioner,
		Executor:    exec,
		Workers:     cfg.Workers,
	}
	return sched.Run(ctx, pipeline, event)
}

// builtinActions registers the engine's built-in step actions.
// External actions stay opaque; these are the ones the engine ships.
func builtinActions() map[string]executor.ActionRunner {
	return map[string]executor.ActionRunner{
		"docs/build": docs.NewBuilder().Action(),
		// env/install is a no-op payload: the variant installation a
		// step declares happens before its payload runs, so a step
		// that only installs uses this action.
		"env/install": executor.ActionFunc(func(ctx context.Context, req executor.ActionRequest) error {
			return nil
		}),
	}
}

func cmdValidate(args []string) error {
	flags := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("validate: expected at least one pipeline file")
	}

	failed := false
	for _, path := range flags.Args() {
		pipeline, err := pipelinedef.Load(path)
		if err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		fmt.Printf("%s: ok\n", path)
		graph, err := scheduler.BuildGraph(pipeline)
		if err != nil {
			// Load already rejects cycles; this is unreachable.
			failed = true
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		for depth, layer := range graph.Layers {
			fmt.Printf("  stage %d: %s\n", depth, strings.Join(layer, ", "))
		}
	}
	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}

// cmdExpand prints the job instances a pipeline would run, without
// running anything: each job's matrix cross product, one instance key
// per line.
func cmdExpand(args []string) error {
	flags := pflag.NewFlagSet("expand", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("expand: expected exactly one pipeline file, got %d", flags.NArg())
	}

	pipeline, err := pipelinedef.Load(flags.Arg(0))
	if err != nil {
		return err
	}

	jobNames := make([]string, 0, len(pipeline.Jobs))
	for name := range pipeline.Jobs {
		jobNames = append(jobNames, name)
	}
	sort.Strings(jobNames)

	for _, name := range jobNames {
		selections, err := matrix.Expand(pipeline.Jobs[name].Matrix)
		if err != nil {
			return fmt.Errorf("jobs[%s]: %w", name, err)
		}
		fmt.Printf("%s: %d instance(s)\n", name, len(selections))
		for _, selection := range selections {
			if key := selection.Key(); key != "" {
				fmt.Printf("  %s/%s\n", name, key)
			}
		}
	}
	return nil
}

func cmdShowRun(args []string) error {
	flags := pflag.NewFlagSet("show-run", pflag.ContinueOnError)
	configPath := flags.String("config", "", "configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("show-run: expected exactly one run ID or record path")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	path := flags.Arg(0)
	if _, statErr := os.Stat(path); statErr != nil {
		path = filepath.Join(cfg.RunLogDir, flags.Arg(0)+".cbor")
	}
	result, err := runlog.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Print(report.Render(result, report.IsTerminal(os.Stdout)))
	return nil
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
