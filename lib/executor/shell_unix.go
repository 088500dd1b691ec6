// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package executor

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the command in its own process group and
// kills the whole group on cancellation, so children spawned by the
// shell do not outlive it.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
