// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package environment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Environment is the isolated execution context owned by exactly one
// job instance: a private working directory and a private variable
// map. Steps read and mutate it; no other instance ever observes it.
type Environment struct {
	// InstanceID identifies the owning job instance.
	InstanceID string

	// Dir is the instance's private working directory.
	Dir string

	// Vars are the environment variables visible to the instance's
	// steps. Installed variants and decrypted secrets land here.
	Vars map[string]string

	// Installed records the variant sets installed into this
	// environment, in install order.
	Installed []Variant
}

// Installer installs a dependency variant set into an environment.
// The concrete installation mechanism (package manager invocation,
// prebuilt cache restore) is an external collaborator. The engine
// interprets only success or failure.
type Installer interface {
	Install(ctx context.Context, env *Environment, variant Variant) error
}

// ProvisionError is an environment or install failure. It fails the
// owning job instance only; sibling instances are unaffected unless
// the job's fail-fast policy applies.
type ProvisionError struct {
	InstanceID string
	Err        error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning %s: %v", e.InstanceID, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Provisioner creates Environments under a root directory.
type Provisioner struct {
	// Root is the directory under which instance directories are
	// created. Required.
	Root string

	// Installer handles variant installation. When nil, install
	// requests fail with a clear error.
	Installer Installer

	// SecretsPath is an optional age-encrypted KEY=VALUE file whose
	// decrypted entries are added to every environment's variables.
	SecretsPath string

	// IdentityPath is the age identity file used to decrypt
	// SecretsPath. Required when SecretsPath is set.
	IdentityPath string

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (p *Provisioner) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Provision creates a fresh Environment for a job instance: a new
// private directory and a variable map seeded with the instance
// identity and any decrypted secrets. Environments are never reused;
// calling Provision twice for different instances yields disjoint
// directories even if the instance IDs collide after sanitizing.
func (p *Provisioner) Provision(ctx context.Context, instanceID string) (*Environment, error) {
	if p.Root == "" {
		return nil, &ProvisionError{InstanceID: instanceID, Err: fmt.Errorf("provisioner has no root directory")}
	}
	if err := os.MkdirAll(p.Root, 0o755); err != nil {
		return nil, &ProvisionError{InstanceID: instanceID, Err: err}
	}

	dir, err := os.MkdirTemp(p.Root, sanitize(instanceID)+"-")
	if err != nil {
		return nil, &ProvisionError{InstanceID: instanceID, Err: err}
	}

	env := &Environment{
		InstanceID: instanceID,
		Dir:        dir,
		Vars: map[string]string{
			"CONVEYOR_INSTANCE": instanceID,
			"CONVEYOR_WORKDIR":  dir,
		},
	}

	if p.SecretsPath != "" {
		secrets, err := LoadSecrets(p.IdentityPath, p.SecretsPath)
		if err != nil {
			os.RemoveAll(dir)
			return nil, &ProvisionError{InstanceID: instanceID, Err: err}
		}
		for name, value := range secrets {
			env.Vars[name] = value
		}
		p.logger().Debug("secrets injected", "instance", instanceID, "count", len(secrets))
	}

	p.logger().Debug("environment provisioned", "instance", instanceID, "dir", dir)
	return env, nil
}

// Install installs a named variant set into an environment via the
// configured Installer. Installation failure surfaces as a
// ProvisionError and fails the owning instance.
func (p *Provisioner) Install(ctx context.Context, env *Environment, variantName string) error {
	variant, err := ParseVariant(variantName)
	if err != nil {
		return &ProvisionError{InstanceID: env.InstanceID, Err: err}
	}
	if p.Installer == nil {
		return &ProvisionError{InstanceID: env.InstanceID, Err: fmt.Errorf("no installer configured for variant %q", variantName)}
	}
	if err := p.Installer.Install(ctx, env, variant); err != nil {
		return &ProvisionError{InstanceID: env.InstanceID, Err: fmt.Errorf("installing %q: %w", variantName, err)}
	}
	env.Installed = append(env.Installed, variant)
	p.logger().Debug("variant installed", "instance", env.InstanceID, "variant", variantName)
	return nil
}

// Teardown removes the environment's working directory. Called after
// the instance's last step regardless of outcome. Safe to call on a
// nil environment.
func (p *Provisioner) Teardown(env *Environment) {
	if env == nil || env.Dir == "" {
		return
	}
	if err := os.RemoveAll(env.Dir); err != nil {
		p.logger().Warn("environment teardown failed", "instance", env.InstanceID, "dir", env.Dir, "error", err)
	}
}

// CommandInstaller runs a configured command for each install,
// passing the target environment and variant through CONVEYOR_*
// environment variables. This keeps the engine free of any package
// manager syntax: the command is whatever the project configures.
type CommandInstaller struct {
	// Command is the argv to run, e.g. ["./scripts/install.sh"].
	Command []string
}

// Install runs the configured command with CONVEYOR_VARIANT set to
// the variant name and CONVEYOR_GROUPS to the "+"-joined group list,
// in the environment's working directory.
func (i *CommandInstaller) Install(ctx context.Context, env *Environment, variant Variant) error {
	if len(i.Command) == 0 {
		return fmt.Errorf("install command is empty")
	}
	cmd := exec.CommandContext(ctx, i.Command[0], i.Command[1:]...)
	cmd.Dir = env.Dir
	cmd.Env = append(os.Environ(),
		"CONVEYOR_VARIANT="+variant.Name,
		"CONVEYOR_GROUPS="+strings.Join(variant.Groups, "+"),
	)
	for name, value := range env.Vars {
		cmd.Env = append(cmd.Env, name+"="+value)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("install command: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// sanitize converts an instance ID into a safe directory name prefix.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
