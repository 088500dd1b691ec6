// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/conveyor-ci/conveyor/lib/schema"
)

// PublishResult records the outcome of one publish attempt.
type PublishResult struct {
	// Entry is the stored entry. Zero when Skipped.
	Entry Entry

	// Skipped means the declared payload file was absent and the
	// declaration allows that (if_missing: ignore), typically a
	// cleanup publish step after an upstream failure.
	Skipped bool
}

// Publisher stores declared step artifacts. Publish failures never
// change the owning instance's terminal state; the executor records
// them against the step instead.
type Publisher struct {
	// Store receives the payloads. Required.
	Store Store

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (p *Publisher) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Publish stores one declared artifact for a job instance. The
// declaration's Path is resolved against workDir when relative.
// Delivery is at-least-once: a store error is retried once before
// giving up.
func (p *Publisher) Publish(ctx context.Context, key Key, decl schema.ArtifactDecl, workDir string) (PublishResult, error) {
	tag, err := ParseCompressionTag(decl.Compression)
	if err != nil {
		return PublishResult{}, fmt.Errorf("artifact %q: %w", decl.Name, err)
	}

	path := decl.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && decl.IfMissing == "ignore" {
			p.logger().Info("artifact payload absent, skipping publish",
				"artifact", decl.Name, "path", path, "instance", key.InstanceID)
			return PublishResult{Skipped: true}, nil
		}
		return PublishResult{}, fmt.Errorf("artifact %q: reading payload %s: %w", decl.Name, path, err)
	}

	entry, err := p.Store.Put(ctx, key, payload, tag)
	if err != nil {
		// One retry. Artifact sinks are external storage; a single
		// transient failure should not lose a build output.
		p.logger().Warn("artifact store error, retrying", "artifact", decl.Name, "error", err)
		entry, err = p.Store.Put(ctx, key, payload, tag)
		if err != nil {
			return PublishResult{}, fmt.Errorf("artifact %q: storing: %w", decl.Name, err)
		}
	}

	p.logger().Debug("artifact published",
		"artifact", decl.Name, "instance", key.InstanceID,
		"size", entry.Size, "compression", entry.Compression.String())
	return PublishResult{Entry: entry}, nil
}
