// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the engine's YAML configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GitHub configures the pull-request sink.
type GitHub struct {
	// BaseURL overrides the API endpoint, mainly for GitHub
	// Enterprise. Empty means the public API.
	BaseURL string `yaml:"base_url"`

	// TokenFile is the path of a file holding the API token. Kept out
	// of the config file itself so the config can be committed.
	TokenFile string `yaml:"token_file"`

	// Owner and Repo identify the repository.
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
}

// ChangeSync configures the manifest-to-derived-file automation.
type ChangeSync struct {
	// BaseBranch is the pull-request target, e.g. "main".
	BaseBranch string `yaml:"base_branch"`

	// SyncBranch is the fixed head branch reused across runs.
	SyncBranch string `yaml:"sync_branch"`

	// ManifestPath and DerivedPath are repo-relative.
	ManifestPath string `yaml:"manifest_path"`
	DerivedPath  string `yaml:"derived_path"`

	// Group names the manifest dependency group the derived file is
	// generated from.
	Group string `yaml:"group"`
}

// Config is the engine configuration.
type Config struct {
	// Workers bounds concurrently running job instances. Zero means
	// unbounded.
	Workers int `yaml:"workers"`

	// EnvironmentRoot is where instance environments are created.
	// Defaults to the system temp directory.
	EnvironmentRoot string `yaml:"environment_root"`

	// ArtifactDir is the filesystem artifact store root.
	ArtifactDir string `yaml:"artifact_dir"`

	// RunLogDir is where run records are written.
	RunLogDir string `yaml:"run_log_dir"`

	// InstallCommand is the argv run to install a dependency variant
	// set into an environment.
	InstallCommand []string `yaml:"install_command"`

	// SecretsFile is an optional age-encrypted KEY=VALUE file
	// injected into every environment. SecretsIdentity is the age
	// identity file that decrypts it.
	SecretsFile     string `yaml:"secrets_file"`
	SecretsIdentity string `yaml:"secrets_identity"`

	// StepTimeout is the default per-step timeout, e.g. "5m".
	StepTimeout string `yaml:"step_timeout"`

	GitHub     GitHub     `yaml:"github"`
	ChangeSync ChangeSync `yaml:"change_sync"`
}

// Default returns the built-in configuration used when no config file
// is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative (got %d)", c.Workers)
	}
	if c.StepTimeout != "" {
		if _, err := time.ParseDuration(c.StepTimeout); err != nil {
			return fmt.Errorf("invalid step_timeout %q: %w", c.StepTimeout, err)
		}
	}
	if c.SecretsFile != "" && c.SecretsIdentity == "" {
		return fmt.Errorf("secrets_file is set but secrets_identity is not")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.EnvironmentRoot == "" {
		c.EnvironmentRoot = os.TempDir()
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = "artifacts"
	}
	if c.RunLogDir == "" {
		c.RunLogDir = "runs"
	}
	if c.ChangeSync.SyncBranch == "" {
		c.ChangeSync.SyncBranch = "conveyor/change-sync"
	}
	if c.ChangeSync.BaseBranch == "" {
		c.ChangeSync.BaseBranch = "main"
	}
}

// DefaultStepTimeout returns the parsed step timeout, or zero when
// unset (callers apply their own default).
func (c *Config) DefaultStepTimeout() time.Duration {
	if c.StepTimeout == "" {
		return 0
	}
	parsed, _ := time.ParseDuration(c.StepTimeout)
	return parsed
}
