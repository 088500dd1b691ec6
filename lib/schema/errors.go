// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"strings"
)

// ConfigurationError reports structural problems in a pipeline
// declaration. It is fatal at load time: a pipeline with any issue
// never starts. All issues are collected, not just the first.
type ConfigurationError struct {
	// Pipeline is the declared pipeline name, when known.
	Pipeline string

	// Issues are human-readable problem descriptions, one per issue.
	Issues []string
}

func (e *ConfigurationError) Error() string {
	name := e.Pipeline
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("pipeline %q has %d configuration issue(s):\n  %s",
		name, len(e.Issues), strings.Join(e.Issues, "\n  "))
}

// GraphError reports a dependency cycle among jobs. It is a
// load-time error with the same fatality as ConfigurationError.
type GraphError struct {
	// Cycle lists the job names forming the cycle, in edge order,
	// with the first job repeated at the end.
	Cycle []string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("job dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}
