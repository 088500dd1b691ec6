// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Command conveyor runs declarative CI pipelines: it evaluates
// triggers, expands matrices, schedules the job graph, and executes
// steps in isolated per-instance environments.
//
// Usage:
//
//	conveyor run <pipeline.jsonc> [--event event.json] [flags]
//	conveyor validate <pipeline.jsonc>...
//	conveyor expand <pipeline.jsonc>
//	conveyor sync [flags]
//	conveyor show-run <run-id> [flags]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/conveyor-ci/conveyor/lib/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		// A failed pipeline run already printed its report; only
		// engine errors get the prefix.
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "conveyor: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "run":
		return cmdRun(args[1:])
	case "validate":
		return cmdValidate(args[1:])
	case "expand":
		return cmdExpand(args[1:])
	case "sync":
		return cmdSync(args[1:])
	case "show-run":
		return cmdShowRun(args[1:])
	case "help", "--help", "-h":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: conveyor <command> [flags]

commands:
  run        activate and execute a pipeline for an event
  validate   check pipeline declarations without running anything
  expand     print the job instances a pipeline would run
  sync       regenerate the derived dependency file and upsert its PR
  show-run   print the summary of a recorded run
`)
}

// loadConfig resolves the configuration: an explicit --config path,
// then the CONVEYOR_CONFIG environment variable, then ./conveyor.yaml
// if present, then built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("CONVEYOR_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("conveyor.yaml"); err == nil {
			path = "conveyor.yaml"
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
