// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package executor

import "os/exec"

// configureProcessGroup leaves the default cancellation behavior in
// place on Windows: exec.CommandContext kills the shell process, and
// the 5-second WaitDelay bounds waiting for its children.
func configureProcessGroup(cmd *exec.Cmd) {}
