// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package secrets holds remote credentials in guarded memory.
//
// A Secret wraps a memguard enclave: the plaintext lives encrypted in
// memory and is decrypted only for the duration of a Reveal call. Secret
// values must never reach logs, error messages, or status output; only
// their source (env name, file path) may be named.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
)

// ErrNotFound is returned when no source yields a credential.
var ErrNotFound = errors.New("secret not found")

// Secret is a guarded credential.
type Secret struct {
	enclave *memguard.Enclave
	source  string
}

// New seals a raw credential. The input slice is wiped by memguard.
func New(raw []byte, source string) *Secret {
	return &Secret{enclave: memguard.NewEnclave(raw), source: source}
}

// FromEnv seals the credential in the named environment variable.
func FromEnv(name string) (*Secret, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return nil, fmt.Errorf("%w: environment variable %s is empty", ErrNotFound, name)
	}
	return New([]byte(value), "env:"+name), nil
}

// FromFile seals the credential stored at path, trimming surrounding
// whitespace.
func FromFile(path string) (*Secret, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrNotFound, path, err)
	}
	trimmed := []byte(strings.TrimSpace(string(data)))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNotFound, path)
	}
	return New(trimmed, "file:"+path), nil
}

// Load resolves a credential from the configured sources, env first.
// Either argument may be empty.
func Load(envName, filePath string) (*Secret, error) {
	if envName != "" {
		if s, err := FromEnv(envName); err == nil {
			return s, nil
		}
	}
	if filePath != "" {
		if s, err := FromFile(filePath); err == nil {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: no usable source (env %q, file %q)", ErrNotFound, envName, filePath)
}

// Source names where the secret came from, for logs. Never the value.
func (s *Secret) Source() string {
	return s.source
}

// Reveal decrypts the credential for immediate use. Callers must not
// retain the returned string longer than the request that needed it.
func (s *Secret) Reveal() (string, error) {
	buf, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("open secret enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}
