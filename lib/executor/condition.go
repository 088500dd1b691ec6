// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"fmt"
	"slices"

	"github.com/conveyor-ci/conveyor/lib/schema"
)

// EvaluateCondition evaluates a step guard against a fact map. An
// unknown fact name is an error, not a false result: a typo in a
// condition should fail loudly rather than silently skip the step
// forever.
func EvaluateCondition(condition *schema.Condition, facts map[string]string) (bool, error) {
	value, known := facts[condition.Fact]
	if !known {
		return false, fmt.Errorf("condition references unknown fact %q", condition.Fact)
	}

	switch {
	case condition.Equals != "":
		return value == condition.Equals, nil
	case condition.NotEquals != "":
		return value != condition.NotEquals, nil
	case len(condition.In) > 0:
		return slices.Contains(condition.In, value), nil
	case len(condition.NotIn) > 0:
		return !slices.Contains(condition.NotIn, value), nil
	default:
		return false, fmt.Errorf("condition on fact %q sets no comparison", condition.Fact)
	}
}
