// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package docs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conveyor-ci/conveyor/lib/environment"
	"github.com/conveyor-ci/conveyor/lib/executor"
)

func writeSource(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestBuildRendersMarkdownAndListings(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	output := t.TempDir()
	writeSource(t, source, "index.md", "# Widgets\n\nA | B\n--- | ---\n1 | 2\n")
	writeSource(t, source, "guide/install.md", "Install with `pip`.\n")
	writeSource(t, source, "examples/demo.py", "def main():\n    print('hi')\n")
	writeSource(t, source, "logo.png", "\x89PNG")

	stats, err := NewBuilder().Build(context.Background(), source, output)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stats.Pages != 2 {
		t.Errorf("Pages = %d, want 2", stats.Pages)
	}
	if stats.Listings != 1 {
		t.Errorf("Listings = %d, want 1", stats.Listings)
	}

	index, err := os.ReadFile(filepath.Join(output, "index.md.html"))
	if err != nil {
		t.Fatalf("reading rendered index: %v", err)
	}
	if !strings.Contains(string(index), "<h1") {
		t.Error("heading not rendered")
	}
	if !strings.Contains(string(index), "<table") {
		t.Error("GFM table not rendered")
	}

	if _, err := os.Stat(filepath.Join(output, "guide", "install.md.html")); err != nil {
		t.Error("nested page not rendered in mirrored layout")
	}

	listing, err := os.ReadFile(filepath.Join(output, "examples", "demo.py.html"))
	if err != nil {
		t.Fatalf("reading listing: %v", err)
	}
	if !strings.Contains(string(listing), "main") {
		t.Error("listing content missing")
	}

	if _, err := os.Stat(filepath.Join(output, "logo.png.html")); err == nil {
		t.Error("non-documentation file should not be rendered")
	}
}

func TestActionDefaults(t *testing.T) {
	t.Parallel()

	env := &environment.Environment{Dir: t.TempDir(), Vars: map[string]string{}}
	writeSource(t, env.Dir, "docs/readme.md", "hello\n")

	action := NewBuilder().Action()
	err := action.Run(context.Background(), executor.ActionRequest{
		Action: "docs/build",
		With:   map[string]string{},
		Env:    env,
	})
	if err != nil {
		t.Fatalf("action: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.Dir, "site", "readme.md.html")); err != nil {
		t.Error("default output location not used")
	}
}
