// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"path"
	"strings"

	"github.com/conveyor-ci/conveyor/lib/schema"
)

// Matches reports whether a single trigger matches an event. A
// trigger matches iff the event kind matches AND (the branch pattern
// set is empty OR one pattern matches the event branch) AND (the path
// filter set is empty OR at least one changed path matches a filter).
//
// workflow_dispatch triggers match on kind alone; manual runs carry
// no branch or path context worth filtering on.
func Matches(trigger schema.Trigger, event *Event) bool {
	if trigger.Event != event.Kind {
		return false
	}
	if trigger.Event == "workflow_dispatch" {
		return true
	}

	if len(trigger.Branches) > 0 {
		matched := false
		for _, pattern := range trigger.Branches {
			if matchBranch(pattern, event.Branch) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(trigger.Paths) > 0 {
		matched := false
		for _, pattern := range trigger.Paths {
			for _, changed := range event.ChangedPaths {
				if MatchPath(pattern, changed) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// Activates reports whether an event activates a pipeline: triggers
// are OR-combined. No match means the pipeline silently does not run;
// that is not an error.
func Activates(pipeline *schema.Pipeline, event *Event) bool {
	for _, trigger := range pipeline.On {
		if Matches(trigger, event) {
			return true
		}
	}
	return false
}

// matchBranch matches a branch name against a glob pattern. Patterns
// use path.Match syntax, so "release/*" matches one path segment and
// "main" matches exactly.
func matchBranch(pattern, branch string) bool {
	matched, err := path.Match(pattern, branch)
	return err == nil && matched
}

// MatchPath matches a repository-relative file path against a glob
// pattern. Within a segment, "*" and "?" follow path.Match syntax. A
// "**" segment matches zero or more whole segments, so "docs/**"
// matches everything under docs/ at any depth.
func MatchPath(pattern, filePath string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(filePath, "/"))
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) == 0 {
		return len(segments) == 0
	}
	if pattern[0] == "**" {
		for skip := 0; skip <= len(segments); skip++ {
			if matchSegments(pattern[1:], segments[skip:]) {
				return true
			}
		}
		return false
	}
	if len(segments) == 0 {
		return false
	}
	matched, err := path.Match(pattern[0], segments[0])
	if err != nil || !matched {
		return false
	}
	return matchSegments(pattern[1:], segments[1:])
}
