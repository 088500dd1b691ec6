// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package changesync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/conveyor-ci/conveyor/lib/github"
	"github.com/conveyor-ci/conveyor/lib/trigger"
)

// Result records one sync run's outcome.
type Result struct {
	// Changed is false when the regenerated bytes matched the
	// committed derived file and nothing was done.
	Changed bool

	// PullRequest is the open pull request carrying the change. Nil
	// when Changed is false.
	PullRequest *github.PullRequest
}

// Syncer regenerates a derived file from the dependency manifest and
// keeps a pull request open while the committed copy is stale.
type Syncer struct {
	// Client talks to the pull-request sink. Required.
	Client *github.Client

	// Owner and Repo identify the repository.
	Owner string
	Repo  string

	// BaseBranch is the branch the pull request targets, e.g. "main".
	BaseBranch string

	// SyncBranch is the fixed head branch reused across runs, e.g.
	// "conveyor/docs-requirements". Reusing one branch keeps the
	// upsert idempotent: a second run updates the PR in place.
	SyncBranch string

	// RepoDir is the local checkout the manifest and committed
	// derived file are read from.
	RepoDir string

	// ManifestPath and DerivedPath are repo-relative.
	ManifestPath string
	DerivedPath  string

	// Generator derives the file content. Required.
	Generator Generator

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ShouldSync reports whether an event warrants a sync run: only a
// push that touches the manifest itself.
func (s *Syncer) ShouldSync(event *trigger.Event) bool {
	if event == nil || event.Kind != "push" {
		return false
	}
	for _, path := range event.ChangedPaths {
		if path == s.ManifestPath {
			return true
		}
	}
	return false
}

// Sync regenerates the derived file and, when its bytes differ from
// the committed copy, commits the regenerated content to the sync
// branch and upserts a pull request. When the bytes match, Sync is a
// no-op; running it twice without an intervening manifest change
// leaves at most one open pull request.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	manifest, err := os.ReadFile(filepath.Join(s.RepoDir, s.ManifestPath))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	regenerated, err := s.Generator.Generate(manifest)
	if err != nil {
		return nil, fmt.Errorf("regenerating %s: %w", s.DerivedPath, err)
	}

	// A missing committed file counts as different: first sync of a
	// repository that never had the derived file.
	committed, err := os.ReadFile(filepath.Join(s.RepoDir, s.DerivedPath))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading committed %s: %w", s.DerivedPath, err)
	}

	if bytes.Equal(regenerated, committed) {
		s.logger().Info("derived file up to date", "path", s.DerivedPath)
		return &Result{Changed: false}, nil
	}

	s.logger().Info("derived file stale",
		"path", s.DerivedPath,
		"committed", digest(committed),
		"regenerated", digest(regenerated))

	pr, err := s.openPullRequest(ctx, regenerated)
	if err != nil {
		return nil, err
	}
	return &Result{Changed: true, PullRequest: pr}, nil
}

// openPullRequest commits the regenerated content to the sync branch
// (created or force-moved onto the base branch head) and upserts the
// pull request.
func (s *Syncer) openPullRequest(ctx context.Context, content []byte) (*github.PullRequest, error) {
	base, err := s.Client.GetRef(ctx, s.Owner, s.Repo, "heads/"+s.BaseBranch)
	if err != nil {
		return nil, fmt.Errorf("resolving base branch %q: %w", s.BaseBranch, err)
	}

	baseCommit, err := s.Client.GetCommit(ctx, s.Owner, s.Repo, base.Object.SHA)
	if err != nil {
		return nil, fmt.Errorf("resolving base commit: %w", err)
	}

	tree, err := s.Client.CreateTree(ctx, s.Owner, s.Repo, baseCommit.Tree.SHA, []github.TreeEntry{{
		Path:    s.DerivedPath,
		Mode:    "100644",
		Type:    "blob",
		Content: string(content),
	}})
	if err != nil {
		return nil, fmt.Errorf("creating tree: %w", err)
	}

	message := fmt.Sprintf("Regenerate %s from %s", s.DerivedPath, s.ManifestPath)
	commit, err := s.Client.CreateCommit(ctx, s.Owner, s.Repo, message, tree.SHA, []string{base.Object.SHA})
	if err != nil {
		return nil, fmt.Errorf("creating commit: %w", err)
	}

	// Force-move the fixed sync branch onto the new commit, creating
	// it on first use.
	if _, err := s.Client.UpdateRef(ctx, s.Owner, s.Repo, "heads/"+s.SyncBranch, commit.SHA); err != nil {
		if !github.IsNotFound(err) {
			return nil, fmt.Errorf("moving sync branch: %w", err)
		}
		if _, err := s.Client.CreateRef(ctx, s.Owner, s.Repo, "refs/heads/"+s.SyncBranch, commit.SHA); err != nil {
			return nil, fmt.Errorf("creating sync branch: %w", err)
		}
	}

	pr, err := s.Client.EnsurePullRequest(ctx, s.Owner, s.Repo, github.NewPullRequest{
		Title: message,
		Body: fmt.Sprintf("Automated update: `%s` changed, so `%s` was regenerated.",
			s.ManifestPath, s.DerivedPath),
		Head: s.SyncBranch,
		Base: s.BaseBranch,
	})
	if err != nil {
		return nil, fmt.Errorf("upserting pull request: %w", err)
	}

	s.logger().Info("pull request ready", "number", pr.Number, "url", pr.HTMLURL)
	return pr, nil
}

// digest returns a short BLAKE3 digest for log correlation.
func digest(content []byte) string {
	sum := blake3.Sum256(content)
	return fmt.Sprintf("%x", sum[:8])
}
