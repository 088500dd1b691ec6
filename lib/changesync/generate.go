// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package changesync keeps a derived dependency file synchronized
// with the project's dependency manifest: on a manifest change it
// regenerates the derived file and opens (or updates) a pull request
// on a fixed branch, but only when the regenerated bytes differ from
// the committed ones.
package changesync

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Generator deterministically derives a file from manifest content.
// The same manifest bytes must always yield the same derived bytes;
// the byte comparison that gates pull-request creation depends on it.
type Generator interface {
	Generate(manifest []byte) ([]byte, error)
}

// Manifest is the dependency manifest layout the built-in generator
// understands: base dependencies plus named groups.
type Manifest struct {
	Name         string              `yaml:"name"`
	Dependencies []string            `yaml:"dependencies"`
	Groups       map[string][]string `yaml:"groups"`
}

// GroupRequirements derives a flat requirements file from one named
// dependency group of a YAML manifest. Output is sorted so that map
// iteration order and manifest formatting churn never produce
// spurious diffs.
type GroupRequirements struct {
	// Group names the manifest group to extract, e.g. "docs".
	Group string

	// IncludeBase prepends the manifest's base dependencies.
	IncludeBase bool
}

// Generate parses the manifest and renders the group's requirement
// lines, sorted, with a generation header. An unknown group is an
// error: a silent empty file would hide a manifest rename.
func (g *GroupRequirements) Generate(manifest []byte) ([]byte, error) {
	var parsed Manifest
	if err := yaml.Unmarshal(manifest, &parsed); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	group, exists := parsed.Groups[g.Group]
	if !exists {
		return nil, fmt.Errorf("manifest has no dependency group %q", g.Group)
	}

	requirements := make([]string, 0, len(group)+len(parsed.Dependencies))
	if g.IncludeBase {
		requirements = append(requirements, parsed.Dependencies...)
	}
	requirements = append(requirements, group...)
	sort.Strings(requirements)

	var out strings.Builder
	fmt.Fprintf(&out, "# Generated from the %q dependency group. Do not edit by hand.\n", g.Group)
	for _, requirement := range requirements {
		out.WriteString(requirement)
		out.WriteByte('\n')
	}
	return []byte(out.String()), nil
}
