// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package changesync

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/conveyor-ci/conveyor/lib/github"
	"github.com/conveyor-ci/conveyor/lib/trigger"
)

const manifestYAML = `name: widgets
dependencies:
  - numpy>=1.21
groups:
  docs:
    - sphinx>=7
    - myst-parser
    - furo
`

func TestGenerateSortedAndDeterministic(t *testing.T) {
	t.Parallel()

	generator := &GroupRequirements{Group: "docs"}
	first, err := generator.Generate([]byte(manifestYAML))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := generator.Generate([]byte(manifestYAML))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("same manifest produced different derived bytes")
	}

	lines := strings.Split(strings.TrimSpace(string(first)), "\n")
	// Header line, then requirements sorted.
	want := []string{"furo", "myst-parser", "sphinx>=7"}
	if len(lines) != len(want)+1 {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want)+1, lines)
	}
	for i, requirement := range want {
		if lines[i+1] != requirement {
			t.Errorf("line %d = %q, want %q", i+1, lines[i+1], requirement)
		}
	}
}

func TestGenerateUnknownGroup(t *testing.T) {
	t.Parallel()

	generator := &GroupRequirements{Group: "missing"}
	if _, err := generator.Generate([]byte(manifestYAML)); err == nil {
		t.Fatal("unknown group must be an error, not an empty file")
	}
}

func TestGenerateIncludeBase(t *testing.T) {
	t.Parallel()

	generator := &GroupRequirements{Group: "docs", IncludeBase: true}
	derived, err := generator.Generate([]byte(manifestYAML))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(string(derived), "numpy>=1.21") {
		t.Error("base dependencies missing from derived output")
	}
}

func TestShouldSync(t *testing.T) {
	t.Parallel()

	syncer := &Syncer{ManifestPath: "manifest.yaml"}
	cases := []struct {
		name  string
		event *trigger.Event
		want  bool
	}{
		{"manifest push", &trigger.Event{Kind: "push", ChangedPaths: []string{"manifest.yaml"}}, true},
		{"unrelated push", &trigger.Event{Kind: "push", ChangedPaths: []string{"README.md"}}, false},
		{"manifest in pull request", &trigger.Event{Kind: "pull_request", ChangedPaths: []string{"manifest.yaml"}}, false},
		{"nil event", nil, false},
	}
	for _, tc := range cases {
		if got := syncer.ShouldSync(tc.event); got != tc.want {
			t.Errorf("%s: ShouldSync = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSyncNoOpWhenDerivedFileCurrent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRepoFile(t, dir, "manifest.yaml", manifestYAML)

	generator := &GroupRequirements{Group: "docs"}
	current, err := generator.Generate([]byte(manifestYAML))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	writeRepoFile(t, dir, "docs/requirements.txt", string(current))

	// No client configured: an up-to-date derived file must finish
	// before any API call is attempted.
	syncer := &Syncer{
		RepoDir:      dir,
		ManifestPath: "manifest.yaml",
		DerivedPath:  "docs/requirements.txt",
		Generator:    generator,
	}

	result, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Changed {
		t.Error("sync of an up-to-date file must be a no-op")
	}
}

// fakeGitHub simulates the git-data and pull-request endpoints the
// syncer touches, tracking how many pull requests were created.
type fakeGitHub struct {
	mu        sync.Mutex
	branches  map[string]string // branch -> sha
	created   int
	updated   int
	openPulls []github.PullRequest
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /repos/acme/widgets/git/ref/{ref...}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ref":    "refs/heads/main",
			"object": map[string]string{"sha": "base-sha", "type": "commit"},
		})
	})
	mux.HandleFunc("GET /repos/acme/widgets/git/commits/base-sha", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"sha":  "base-sha",
			"tree": map[string]string{"sha": "tree-sha"},
		})
	})
	mux.HandleFunc("POST /repos/acme/widgets/git/trees", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"sha": "new-tree"})
	})
	mux.HandleFunc("POST /repos/acme/widgets/git/commits", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"sha": "new-commit"})
	})
	mux.HandleFunc("PATCH /repos/acme/widgets/git/refs/{ref...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		branch := strings.TrimPrefix(r.PathValue("ref"), "heads/")
		if _, exists := f.branches[branch]; !exists {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
			return
		}
		f.branches[branch] = "new-commit"
		json.NewEncoder(w).Encode(map[string]any{"ref": r.PathValue("ref")})
	})
	mux.HandleFunc("POST /repos/acme/widgets/git/refs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.branches[strings.TrimPrefix(body.Ref, "refs/heads/")] = body.SHA
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"ref": body.Ref})
	})
	mux.HandleFunc("GET /repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(f.openPulls)
	})
	mux.HandleFunc("POST /repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		var body github.NewPullRequest
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.created++
		pr := github.PullRequest{Number: f.created, State: "open", Title: body.Title}
		pr.Head.Ref = body.Head
		pr.Base.Ref = body.Base
		f.openPulls = append(f.openPulls, pr)
		json.NewEncoder(w).Encode(pr)
	})
	mux.HandleFunc("PATCH /repos/acme/widgets/pulls/{number}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.updated++
		json.NewEncoder(w).Encode(f.openPulls[0])
	})

	return mux
}

func TestSyncOpensAndThenUpdatesOnePullRequest(t *testing.T) {
	t.Parallel()

	fake := &fakeGitHub{branches: map[string]string{"main": "base-sha"}}
	server := httptest.NewTLSServer(fake.handler(t))
	t.Cleanup(server.Close)

	client, err := github.NewClient(github.Config{
		BaseURL:    server.URL,
		Token:      "test-token",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	dir := t.TempDir()
	writeRepoFile(t, dir, "manifest.yaml", manifestYAML)
	writeRepoFile(t, dir, "docs/requirements.txt", "# stale\n")

	syncer := &Syncer{
		Client:       client,
		Owner:        "acme",
		Repo:         "widgets",
		BaseBranch:   "main",
		SyncBranch:   "conveyor/docs-requirements",
		RepoDir:      dir,
		ManifestPath: "manifest.yaml",
		DerivedPath:  "docs/requirements.txt",
		Generator:    &GroupRequirements{Group: "docs"},
	}

	result, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	if !result.Changed || result.PullRequest == nil {
		t.Fatalf("first sync should open a pull request, got %+v", result)
	}

	// Second run with the committed file still stale: the fixed
	// branch is moved and the existing PR updated, never duplicated.
	if _, err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("second Sync: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.created != 1 {
		t.Errorf("created %d pull requests, want 1", fake.created)
	}
	if fake.updated != 1 {
		t.Errorf("updated %d pull requests, want 1", fake.updated)
	}
}

func writeRepoFile(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
