// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package environment

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

// LoadSecrets decrypts an age-encrypted KEY=VALUE file and returns
// the entries as a map. The identity file may contain multiple
// identities; any one of them may decrypt the secrets file.
//
// Secrets are injected into every provisioned environment's variable
// map, so a step can reference them like any other variable without
// the plaintext ever touching the pipeline declaration.
func LoadSecrets(identityPath, secretsPath string) (map[string]string, error) {
	identityData, err := os.ReadFile(identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	identities, err := age.ParseIdentities(bytes.NewReader(identityData))
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", identityPath, err)
	}

	encrypted, err := os.Open(secretsPath)
	if err != nil {
		return nil, fmt.Errorf("opening secrets file: %w", err)
	}
	defer encrypted.Close()

	plaintext, err := age.Decrypt(encrypted, identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", secretsPath, err)
	}

	return parseSecretLines(plaintext)
}

// parseSecretLines parses KEY=VALUE lines. Blank lines and lines
// starting with "#" are ignored. Keys must be non-empty and must not
// contain "=".
func parseSecretLines(r io.Reader) (map[string]string, error) {
	secrets := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("secrets line %d: expected KEY=VALUE, got %q", lineNumber, line)
		}
		secrets[strings.TrimSpace(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading secrets: %w", err)
	}
	return secrets, nil
}
