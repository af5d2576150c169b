// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := Default()
	assert.Greater(t, c.Version(), 0)
	require.GreaterOrEqual(t, c.Len(), 5)

	// Smallest-first ordering and last-resort entry.
	models := c.Models()
	for i := 1; i < len(models); i++ {
		assert.LessOrEqual(t, models[i-1].MinMemory, models[i].MinMemory)
	}
	assert.Equal(t, "qwen2.5-coder-1.5b-q4", c.Smallest().ID)
	assert.False(t, c.Smallest().WantsAccelerator())
}

func TestByID(t *testing.T) {
	c := Default()
	spec, ok := c.ByID("qwen2.5-coder-7b-q4")
	require.True(t, ok)
	assert.Equal(t, QualityVeryGood, spec.Quality)
	assert.True(t, spec.WantsAccelerator())
	assert.Equal(t, 32768, spec.LargestContextSize())
	assert.Equal(t, 4096, spec.SmallestContextSize())
	assert.True(t, spec.SupportsContextSize(8192))
	assert.False(t, spec.SupportsContextSize(1024))

	_, ok = c.ByID("no-such-model")
	assert.False(t, ok)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse([]byte("version: 1\nmodels: []\n"))
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	data := `
version: 1
models:
  - id: dup
    download_size_mb: 100
    min_memory_mb: 1024
    context_sizes: [2048]
    speed: fast
    quality: good
    source: {repo: r, filename: f}
  - id: dup
    download_size_mb: 200
    min_memory_mb: 2048
    context_sizes: [2048]
    speed: fast
    quality: good
    source: {repo: r, filename: f}
`
	_, err := Parse([]byte(data))
	assert.ErrorIs(t, err, ErrDuplicateModel)
}

func TestParseRejectsUnorderedContextSizes(t *testing.T) {
	data := `
version: 1
models:
  - id: bad-order
    download_size_mb: 100
    min_memory_mb: 1024
    context_sizes: [4096, 2048]
    speed: fast
    quality: good
    source: {repo: r, filename: f}
`
	_, err := Parse([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ascending")
}

func TestParseRejectsUnknownQuality(t *testing.T) {
	data := `
version: 1
models:
  - id: bad-quality
    download_size_mb: 100
    min_memory_mb: 1024
    context_sizes: [2048]
    speed: fast
    quality: legendary
    source: {repo: r, filename: f}
`
	_, err := Parse([]byte(data))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, embeddedCatalog, 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Len(), c.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestUnitConversion(t *testing.T) {
	c := Default()
	spec, ok := c.ByID("qwen2.5-coder-1.5b-q4")
	require.True(t, ok)
	assert.Equal(t, uint64(922)*1024*1024, spec.DownloadSize)
	assert.Equal(t, uint64(3)*1024*1024*1024, spec.MinMemory)
	assert.Zero(t, spec.MinAcceleratorMemory)
}

func TestOrdinalNames(t *testing.T) {
	assert.Equal(t, "superior", QualitySuperior.String())
	assert.Equal(t, "ultra_fast", SpeedUltraFast.String())
	assert.Less(t, int(QualityGood), int(QualityExcellent))
	assert.Less(t, int(SpeedSlow), int(SpeedFast))
}
