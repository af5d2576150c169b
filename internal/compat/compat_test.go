// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianEdge/internal/catalog"
	"github.com/AleutianAI/AleutianEdge/internal/hardware"
)

const gib = uint64(1024 * 1024 * 1024)

func spec(minMem, minAccel uint64) catalog.ModelSpec {
	return catalog.ModelSpec{
		ID:                   "test-model",
		DownloadSize:         minMem / 2,
		MinMemory:            minMem,
		MinAcceleratorMemory: minAccel,
		ContextSizes:         []int{2048, 4096},
	}
}

func profile(available uint64, accel *hardware.Accelerator) hardware.Profile {
	return hardware.Profile{
		TotalMemory:     available * 2,
		AvailableMemory: available,
		PhysicalCores:   4,
		LogicalCores:    8,
		Accelerator:     accel,
	}
}

func TestBlockedBelowSafetyMargin(t *testing.T) {
	// 4 GiB model needs 6 GiB available with the 1.5x margin.
	v := Check(spec(4*gib, 0), profile(5*gib, nil))
	assert.True(t, v.Blocked)
	require.Len(t, v.BlockingReasons, 1)
	assert.Contains(t, v.BlockingReasons[0], "6.0 GiB")
	assert.Contains(t, v.BlockingReasons[0], "5.0 GiB")
}

func TestNeverPassesBelowBound(t *testing.T) {
	// Property from the design contract: blocked=false is impossible when
	// available < min × 1.5, across a sweep of sizes.
	for _, minGiB := range []uint64{1, 2, 3, 6, 12, 20, 60} {
		min := minGiB * gib
		justUnder := uint64(float64(min)*SafetyMargin) - 1
		v := Check(spec(min, 0), profile(justUnder, nil))
		assert.True(t, v.Blocked, "min=%d GiB", minGiB)
	}
}

func TestMemoryPressureWarning(t *testing.T) {
	// Required = 6 GiB; pressure threshold = 7.2 GiB.
	v := Check(spec(4*gib, 0), profile(7*gib, nil))
	assert.False(t, v.Blocked)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "high memory pressure")
}

func TestComfortableHostNoWarnings(t *testing.T) {
	v := Check(spec(4*gib, 0), profile(16*gib, nil))
	assert.False(t, v.Blocked)
	assert.Empty(t, v.Warnings)
	assert.Empty(t, v.BlockingReasons)
}

func TestMissingAcceleratorWarnsNotBlocks(t *testing.T) {
	v := Check(spec(4*gib, 4*gib), profile(16*gib, nil))
	assert.False(t, v.Blocked)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "general-purpose compute")
}

func TestUndersizedAcceleratorWarnsNotBlocks(t *testing.T) {
	accel := &hardware.Accelerator{Name: "RTX 3050", Memory: 4 * gib}
	v := Check(spec(4*gib, 8*gib), profile(16*gib, accel))
	assert.False(t, v.Blocked)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "RTX 3050")
}

func TestRulesAccumulate(t *testing.T) {
	// Blocked host with memory pressure and a missing accelerator must
	// report all three findings, not stop at the block.
	v := Check(spec(8*gib, 8*gib), profile(4*gib, nil))
	assert.True(t, v.Blocked)
	assert.Len(t, v.BlockingReasons, 1)
	assert.Len(t, v.Warnings, 2)
}

func TestCheckIsDeterministic(t *testing.T) {
	s := spec(4*gib, 2*gib)
	p := profile(7*gib, &hardware.Accelerator{Name: "GPU", Memory: gib})
	first := Check(s, p)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Check(s, p))
	}
}

func TestAcceleratorSatisfied(t *testing.T) {
	cpuOnly := spec(4*gib, 0)
	wantsAccel := spec(4*gib, 8*gib)
	big := &hardware.Accelerator{Name: "A6000", Memory: 48 * gib}
	small := &hardware.Accelerator{Name: "MX150", Memory: 2 * gib}

	assert.True(t, AcceleratorSatisfied(cpuOnly, profile(16*gib, nil)))
	assert.True(t, AcceleratorSatisfied(wantsAccel, profile(16*gib, big)))
	assert.False(t, AcceleratorSatisfied(wantsAccel, profile(16*gib, small)))
	assert.False(t, AcceleratorSatisfied(wantsAccel, profile(16*gib, nil)))
}
