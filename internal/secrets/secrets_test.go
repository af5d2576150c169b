// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("EDGE_TEST_KEY", "  sk-abc123  ")

	s, err := FromEnv("EDGE_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "env:EDGE_TEST_KEY", s.Source())

	value, err := s.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "sk-abc123", value)
}

func TestFromEnvMissing(t *testing.T) {
	t.Setenv("EDGE_TEST_KEY", "")
	_, err := FromEnv("EDGE_TEST_KEY")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("sk-file-key\n"), 0o600))

	s, err := FromFile(path)
	require.NoError(t, err)

	value, err := s.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "sk-file-key", value)
}

func TestLoadPrefersEnv(t *testing.T) {
	t.Setenv("EDGE_TEST_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))

	s, err := Load("EDGE_TEST_KEY", path)
	require.NoError(t, err)

	value, err := s.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestLoadFallsBackToFile(t *testing.T) {
	t.Setenv("EDGE_TEST_KEY", "")
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))

	s, err := Load("EDGE_TEST_KEY", path)
	require.NoError(t, err)

	value, err := s.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestLoadNothingConfigured(t *testing.T) {
	_, err := Load("", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevealIsRepeatable(t *testing.T) {
	s := New([]byte("repeat-me"), "test")
	for i := 0; i < 3; i++ {
		value, err := s.Reveal()
		require.NoError(t, err)
		assert.Equal(t, "repeat-me", value)
	}
}
