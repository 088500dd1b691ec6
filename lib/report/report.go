// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package report renders a pipeline run record as a human-readable
// terminal summary.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/conveyor-ci/conveyor/lib/executor"
	"github.com/conveyor-ci/conveyor/lib/scheduler"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// IsTerminal reports whether w is an interactive terminal, used to
// decide whether Render should colorize.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// Render formats a run record. With color enabled, statuses are
// styled; otherwise the output is plain text.
func Render(result *scheduler.RunResult, color bool) string {
	var out strings.Builder

	fmt.Fprintf(&out, "%s %s  run %s  %s\n",
		style(headerStyle, result.Pipeline, color),
		renderStatus(string(result.Status), color),
		result.RunID,
		style(dimStyle, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond).String(), color))

	for _, job := range result.Jobs {
		fmt.Fprintf(&out, "  %s %s\n", renderStatus(string(job.State), color), job.Name)
		for _, instance := range job.Instances {
			fmt.Fprintf(&out, "    %s %s%s\n",
				renderInstance(instance, color),
				instance.InstanceID,
				detailSuffix(instance.Detail, color))
			for _, step := range instance.Steps {
				if step.Status == executor.StepOK && len(step.PublishErrors) == 0 {
					continue
				}
				fmt.Fprintf(&out, "      %s %s%s\n",
					renderStepStatus(step.Status, color),
					step.Name,
					detailSuffix(step.Detail, color))
				for _, publishErr := range step.PublishErrors {
					fmt.Fprintf(&out, "        %s\n", style(skipStyle, "publish: "+publishErr, color))
				}
			}
		}
	}

	return out.String()
}

func renderStatus(status string, color bool) string {
	switch status {
	case string(scheduler.RunSuccess):
		return style(successStyle, status, color)
	case string(scheduler.RunFailure):
		return style(failureStyle, status, color)
	default:
		return style(skipStyle, status, color)
	}
}

func renderInstance(instance executor.InstanceResult, color bool) string {
	switch {
	case instance.Skipped:
		return style(skipStyle, "skip", color)
	case instance.Success:
		return style(successStyle, "ok  ", color)
	default:
		return style(failureStyle, "fail", color)
	}
}

func renderStepStatus(status executor.StepStatus, color bool) string {
	switch status {
	case executor.StepOK:
		return style(successStyle, string(status), color)
	case executor.StepFailed:
		return style(failureStyle, string(status), color)
	default:
		return style(skipStyle, string(status), color)
	}
}

func detailSuffix(detail string, color bool) string {
	if detail == "" {
		return ""
	}
	return " " + style(dimStyle, "("+detail+")", color)
}

func style(s lipgloss.Style, text string, color bool) string {
	if !color {
		return text
	}
	return s.Render(text)
}
