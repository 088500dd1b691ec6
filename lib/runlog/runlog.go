// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package runlog persists pipeline run records as deterministically
// encoded CBOR files, one per run. Deterministic encoding (RFC 8949
// core deterministic requirements) means identical run records always
// produce identical bytes, so records can be compared and
// content-addressed.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/conveyor-ci/conveyor/lib/scheduler"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("runlog: building CBOR encode mode: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("runlog: building CBOR decode mode: " + err.Error())
	}
}

// Encode serializes a run record with deterministic encoding.
func Encode(result *scheduler.RunResult) ([]byte, error) {
	data, err := encMode.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("runlog: encoding run %s: %w", result.RunID, err)
	}
	return data, nil
}

// Decode parses a run record.
func Decode(data []byte) (*scheduler.RunResult, error) {
	var result scheduler.RunResult
	if err := decMode.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("runlog: decoding run record: %w", err)
	}
	return &result, nil
}

// Writer persists run records under a directory, named
// "<run-id>.cbor".
type Writer struct {
	// Dir is the run log directory, created on first write.
	Dir string
}

// Write persists one run record and returns its path.
func (w *Writer) Write(result *scheduler.RunResult) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("runlog: creating %s: %w", w.Dir, err)
	}
	data, err := Encode(result)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, result.RunID+".cbor")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("runlog: writing %s: %w", path, err)
	}
	return path, nil
}

// ReadFile loads one run record from disk.
func ReadFile(path string) (*scheduler.RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runlog: reading %s: %w", path, err)
	}
	return Decode(data)
}

// List returns the run IDs recorded under dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: listing %s: %w", dir, err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".cbor") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".cbor"))
	}
	sort.Strings(ids)
	return ids, nil
}
