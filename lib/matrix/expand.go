// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package matrix expands a job's declared axes into the cross-product
// set of concrete axis-value selections, one per job instance.
package matrix

import (
	"fmt"
	"strings"

	"github.com/conveyor-ci/conveyor/lib/schema"
)

// Selection binds each matrix axis to one concrete value, in declared
// axis order. A job without a matrix has a single empty Selection.
type Selection struct {
	bindings []binding
}

type binding struct {
	axis  string
	value string
}

// Key returns a stable identity string for this selection:
// "axis=value" pairs joined by commas, in declared axis order. Keys
// are unique across the expansion of one matrix. The empty selection
// has key "default".
func (s Selection) Key() string {
	if len(s.bindings) == 0 {
		return "default"
	}
	parts := make([]string, len(s.bindings))
	for i, b := range s.bindings {
		parts[i] = b.axis + "=" + b.value
	}
	return strings.Join(parts, ",")
}

// Value returns the bound value for an axis name, and whether the
// axis exists in this selection.
func (s Selection) Value(axis string) (string, bool) {
	for _, b := range s.bindings {
		if b.axis == axis {
			return b.value, true
		}
	}
	return "", false
}

// Facts returns the selection as a fact map (axis name -> value) for
// step condition evaluation.
func (s Selection) Facts() map[string]string {
	facts := make(map[string]string, len(s.bindings))
	for _, b := range s.bindings {
		facts[b.axis] = b.value
	}
	return facts
}

// Axes returns the axis names in declared order.
func (s Selection) Axes() []string {
	axes := make([]string, len(s.bindings))
	for i, b := range s.bindings {
		axes[i] = b.axis
	}
	return axes
}

// Expand returns the cross product of the matrix's axes as an ordered
// selection list. Ordering equals nested iteration in declared axis
// order: the first axis varies slowest. A nil matrix expands to a
// single empty selection.
//
// The selection count equals the product of the axis cardinalities.
// Empty axes and duplicate axis names are rejected at load time by
// schema.Validate; Expand re-checks and errors rather than silently
// producing an empty or ambiguous expansion.
func Expand(matrix *schema.Matrix) ([]Selection, error) {
	if matrix == nil {
		return []Selection{{}}, nil
	}

	seen := make(map[string]bool, len(matrix.Axes))
	count := 1
	for _, axis := range matrix.Axes {
		if len(axis.Values) == 0 {
			return nil, fmt.Errorf("matrix axis %q has an empty value set", axis.Name)
		}
		if seen[axis.Name] {
			return nil, fmt.Errorf("duplicate matrix axis %q", axis.Name)
		}
		seen[axis.Name] = true
		count *= len(axis.Values)
	}

	selections := make([]Selection, 0, count)
	current := make([]binding, len(matrix.Axes))

	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(matrix.Axes) {
			selections = append(selections, Selection{
				bindings: append([]binding(nil), current...),
			})
			return
		}
		axis := matrix.Axes[depth]
		for _, value := range axis.Values {
			current[depth] = binding{axis: axis.Name, value: value}
			walk(depth + 1)
		}
	}
	walk(0)

	return selections, nil
}
