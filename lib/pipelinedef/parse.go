// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipelinedef loads pipeline declarations from JSONC files
// (JSON with comments and trailing commas) and validates them before
// anything runs.
package pipelinedef

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/conveyor-ci/conveyor/lib/environment"
	"github.com/conveyor-ci/conveyor/lib/schema"
)

// Parse decodes a JSONC pipeline declaration. Unknown fields are
// rejected so a typo like "need" instead of "needs" fails loudly
// instead of silently dropping the dependency edge.
func Parse(data []byte) (*schema.Pipeline, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var pipeline schema.Pipeline
	if err := decoder.Decode(&pipeline); err != nil {
		return nil, fmt.Errorf("parsing pipeline: %w", err)
	}
	return &pipeline, nil
}

// ReadFile parses a declaration from disk without validating it.
// Callers that run the pipeline want Load instead.
func ReadFile(path string) (*schema.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline %s: %w", path, err)
	}
	pipeline, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pipeline, nil
}

// NameFromPath derives a pipeline name from its file path:
// "pipelines/ci.jsonc" yields "ci".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimSuffix(base, ".jsonc"), ".json")
}

// Load reads, parses, and validates a pipeline declaration. A
// declaration without an explicit name takes its file name. Invalid
// declarations return a *schema.ConfigurationError listing every
// issue, including variant references outside the catalogue.
func Load(path string) (*schema.Pipeline, error) {
	pipeline, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if pipeline.Name == "" {
		pipeline.Name = NameFromPath(path)
	}

	issues := schema.Validate(pipeline)
	issues = append(issues, validateVariants(pipeline)...)
	if len(issues) > 0 {
		return nil, &schema.ConfigurationError{Pipeline: pipeline.Name, Issues: issues}
	}
	return pipeline, nil
}

// validateVariants checks every step's variant reference against the
// variant catalogue at load time, so an unknown variant never reaches
// an installer.
func validateVariants(pipeline *schema.Pipeline) []string {
	var issues []string
	jobNames := make([]string, 0, len(pipeline.Jobs))
	for name := range pipeline.Jobs {
		jobNames = append(jobNames, name)
	}
	sort.Strings(jobNames)
	for _, jobName := range jobNames {
		job := pipeline.Jobs[jobName]
		for index, step := range job.Steps {
			if step.Variant == "" {
				continue
			}
			if _, err := environment.ParseVariant(step.Variant); err != nil {
				issues = append(issues, fmt.Sprintf("jobs[%s].steps[%d] %q: %v", jobName, index, step.Name, err))
			}
		}
	}
	return issues
}
