// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package environment provisions isolated per-instance execution
// environments and installs named dependency variant sets into them.
// Environments are never shared or reused across job instances: each
// instance owns exactly one, created before its first step and torn
// down after its last.
package environment

import (
	"fmt"
	"strings"
)

// Variant is a parsed dependency variant set: an ordered list of
// dependency groups to install, e.g. core+dev.
type Variant struct {
	// Name is the declared variant string ("core+dev").
	Name string

	// Groups are the individual dependency groups in declared order.
	Groups []string
}

// knownGroups is the catalogue of dependency groups a variant may
// reference. The actual package contents behind each group are the
// installer's business; the engine only validates the names.
var knownGroups = map[string]bool{
	"core":       true,
	"dev":        true,
	"all_extras": true,
}

// ParseVariant parses and validates a variant set name. Variants are
// "+"-joined group lists; the first group must be "core" (every
// variant builds on the core set) and every group must be in the
// catalogue. Returns a descriptive error for use as a load-time
// configuration issue.
func ParseVariant(name string) (Variant, error) {
	if name == "" {
		return Variant{}, fmt.Errorf("variant name is empty")
	}
	groups := strings.Split(name, "+")
	if groups[0] != "core" {
		return Variant{}, fmt.Errorf("variant %q must start with the core group", name)
	}
	seen := make(map[string]bool, len(groups))
	for _, group := range groups {
		if !knownGroups[group] {
			return Variant{}, fmt.Errorf("variant %q references unknown group %q", name, group)
		}
		if seen[group] {
			return Variant{}, fmt.Errorf("variant %q repeats group %q", name, group)
		}
		seen[group] = true
	}
	return Variant{Name: name, Groups: groups}, nil
}
