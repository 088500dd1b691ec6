// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package runlog

import (
	"bytes"
	"testing"
	"time"

	"github.com/conveyor-ci/conveyor/lib/executor"
	"github.com/conveyor-ci/conveyor/lib/scheduler"
)

func sampleRun() *scheduler.RunResult {
	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return &scheduler.RunResult{
		RunID:      "8f14e45f-ceea-467f-a8cb-9a0f3f2c1ad1",
		Pipeline:   "ci",
		Status:     scheduler.RunFailure,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Minute),
		Jobs: []scheduler.JobResult{
			{
				Name:  "test",
				State: scheduler.JobFailure,
				Instances: []executor.InstanceResult{
					{
						InstanceID: "test/os=linux",
						JobName:    "test",
						Success:    false,
						Steps: []executor.StepResult{
							{Name: "run-tests", Status: executor.StepFailed, Detail: "exit status 1"},
						},
					},
					{InstanceID: "test/os=macos", JobName: "test", Success: true},
				},
			},
		},
	}
}

func TestEncodeDeterministic(t *testing.T) {
	t.Parallel()

	first, err := Encode(sampleRun())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := Encode(sampleRun())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical run records encoded to different bytes")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	writer := &Writer{Dir: t.TempDir()}
	run := sampleRun()

	path, err := writer.Write(run)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if loaded.RunID != run.RunID || loaded.Status != run.Status {
		t.Errorf("loaded %s/%s, want %s/%s", loaded.RunID, loaded.Status, run.RunID, run.Status)
	}
	if len(loaded.Jobs) != 1 || len(loaded.Jobs[0].Instances) != 2 {
		t.Fatalf("job structure lost in round trip: %+v", loaded.Jobs)
	}
	if loaded.Jobs[0].Instances[0].Steps[0].Detail != "exit status 1" {
		t.Error("step detail lost in round trip")
	}

	ids, err := List(writer.Dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != run.RunID {
		t.Errorf("List = %v, want [%s]", ids, run.RunID)
	}
}
