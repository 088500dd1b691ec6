// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"fmt"
	"strings"
)

// ExpandVariables substitutes ${NAME} references in input from vars.
// A reference to an undefined variable is an error, not an empty
// substitution. "$$" escapes to a literal "$". A bare $NAME without
// braces is left untouched for the shell to interpret.
func ExpandVariables(input string, vars map[string]string) (string, error) {
	if !strings.Contains(input, "$") {
		return input, nil
	}

	var out strings.Builder
	out.Grow(len(input))
	for i := 0; i < len(input); {
		if input[i] != '$' {
			out.WriteByte(input[i])
			i++
			continue
		}
		if i+1 < len(input) && input[i+1] == '$' {
			out.WriteByte('$')
			i += 2
			continue
		}
		if i+1 < len(input) && input[i+1] == '{' {
			end := strings.IndexByte(input[i+2:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated variable reference at offset %d", i)
			}
			name := input[i+2 : i+2+end]
			value, defined := vars[name]
			if !defined {
				return "", fmt.Errorf("undefined variable ${%s}", name)
			}
			out.WriteString(value)
			i += end + 3
			continue
		}
		out.WriteByte('$')
		i++
	}
	return out.String(), nil
}

// expandMap applies ExpandVariables to every value of a string map,
// returning a new map. Nil in, nil out.
func expandMap(values map[string]string, vars map[string]string) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}
	expanded := make(map[string]string, len(values))
	for key, value := range values {
		result, err := ExpandVariables(value, vars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		expanded[key] = result
	}
	return expanded, nil
}
