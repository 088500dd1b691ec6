// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package trigger decides whether an incoming repository event
// activates a pipeline: event kind, branch pattern, and changed-path
// filters are evaluated against the pipeline's declared triggers.
package trigger

import (
	"encoding/json"
	"fmt"
	"os"
)

// Event is an incoming repository event: a push, a pull request, or a
// manual dispatch.
type Event struct {
	// Kind is "push", "pull_request", or "workflow_dispatch".
	Kind string `json:"kind"`

	// Branch is the pushed branch (push) or the target branch
	// (pull_request). Empty for workflow_dispatch.
	Branch string `json:"branch,omitempty"`

	// ChangedPaths is the set of file paths modified by the event,
	// repository-relative with forward slashes.
	ChangedPaths []string `json:"changed_paths,omitempty"`
}

// ReadFile loads an Event from a JSON file. Events arrive from the
// forge webhook receiver as small JSON records; the CLI also accepts
// them directly for local runs.
func ReadFile(path string) (*Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("parsing event %s: %w", path, err)
	}
	if event.Kind == "" {
		return nil, fmt.Errorf("event %s: kind is required", path)
	}
	return &event, nil
}
