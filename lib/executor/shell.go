// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// defaultShell picks the interpreter for run steps that declare none.
func defaultShell(hostOS string) string {
	if hostOS == "windows" {
		return "pwsh"
	}
	return "bash"
}

// shellArgv maps a shell name to the argv that executes command.
func shellArgv(shell, command string) []string {
	switch shell {
	case "sh":
		return []string{"sh", "-c", command}
	case "pwsh":
		return []string{"pwsh", "-NoProfile", "-Command", command}
	default:
		return []string{"bash", "-c", command}
	}
}

// runShell executes argv in dir with extraEnv layered over the
// process environment, returning the combined output. The command
// runs in its own process group so that cancellation kills spawned
// children too, not just the shell.
func runShell(ctx context.Context, argv []string, dir string, extraEnv map[string]string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	configureProcessGroup(cmd)
	cmd.WaitDelay = 5 * time.Second

	cmd.Env = os.Environ()
	for name, value := range extraEnv {
		cmd.Env = append(cmd.Env, name+"="+value)
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	return strings.TrimSpace(output.String()), err
}
