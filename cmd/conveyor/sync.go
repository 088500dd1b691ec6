// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/conveyor-ci/conveyor/lib/changesync"
	"github.com/conveyor-ci/conveyor/lib/config"
	"github.com/conveyor-ci/conveyor/lib/github"
	"github.com/conveyor-ci/conveyor/lib/trigger"
)

func cmdSync(args []string) error {
	flags := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	configPath := flags.String("config", "", "configuration file")
	eventPath := flags.String("event", "", "event JSON file; omit to sync unconditionally")
	repoDir := flags.String("repo", ".", "local repository checkout")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	if err := flags.Parse(args); err != nil {
		return err
	}

	setupLogging(*verbose)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.ChangeSync.ManifestPath == "" || cfg.ChangeSync.DerivedPath == "" {
		return fmt.Errorf("sync: change_sync.manifest_path and change_sync.derived_path must be configured")
	}

	syncer, err := newSyncer(cfg, *repoDir)
	if err != nil {
		return err
	}

	if *eventPath != "" {
		event, err := trigger.ReadFile(*eventPath)
		if err != nil {
			return err
		}
		if !syncer.ShouldSync(event) {
			fmt.Println("event does not touch the manifest, nothing to sync")
			return nil
		}
	}

	result, err := syncer.Sync(context.Background())
	if err != nil {
		return err
	}
	if !result.Changed {
		fmt.Println("derived file up to date, no pull request needed")
		return nil
	}
	fmt.Printf("pull request #%d: %s\n", result.PullRequest.Number, result.PullRequest.HTMLURL)
	return nil
}

func newSyncer(cfg *config.Config, repoDir string) (*changesync.Syncer, error) {
	token, err := githubToken(cfg)
	if err != nil {
		return nil, err
	}
	client, err := github.NewClient(github.Config{
		BaseURL: cfg.GitHub.BaseURL,
		Token:   token,
	})
	if err != nil {
		return nil, err
	}

	return &changesync.Syncer{
		Client:       client,
		Owner:        cfg.GitHub.Owner,
		Repo:         cfg.GitHub.Repo,
		BaseBranch:   cfg.ChangeSync.BaseBranch,
		SyncBranch:   cfg.ChangeSync.SyncBranch,
		RepoDir:      repoDir,
		ManifestPath: cfg.ChangeSync.ManifestPath,
		DerivedPath:  cfg.ChangeSync.DerivedPath,
		Generator:    &changesync.GroupRequirements{Group: cfg.ChangeSync.Group},
	}, nil
}

// githubToken resolves the API token: the configured token file
// first, then the CONVEYOR_GITHUB_TOKEN environment variable.
func githubToken(cfg *config.Config) (string, error) {
	if cfg.GitHub.TokenFile != "" {
		data, err := os.ReadFile(cfg.GitHub.TokenFile)
		if err != nil {
			return "", fmt.Errorf("reading token file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if token := os.Getenv("CONVEYOR_GITHUB_TOKEN"); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("no GitHub token configured (set github.token_file or CONVEYOR_GITHUB_TOKEN)")
}
