// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compat scores a (model spec, hardware profile) pair.
//
// Check is a deterministic pure function: same inputs, same verdict, no
// reads of ambient state. All rules are evaluated and accumulated — a
// blocking rule never short-circuits the remaining warnings, so a verdict
// always carries the complete picture for diagnostics.
package compat

import (
	"fmt"

	"github.com/AleutianAI/AleutianEdge/internal/catalog"
	"github.com/AleutianAI/AleutianEdge/internal/hardware"
)

// SafetyMargin is the multiplier applied to a model's minimum memory
// requirement. Running a model at exactly its minimum leaves nothing for
// the OS, the cache, or context growth.
const SafetyMargin = 1.5

// pressureMargin flags hosts that pass the hard bound but with less than
// 20% headroom above it.
const pressureMargin = 1.2

// Verdict is the outcome of one compatibility check. Derived data, never
// persisted.
type Verdict struct {
	// Blocked means the model must not be selected on this host.
	Blocked bool

	// BlockingReasons explains each hard failure with concrete numbers.
	BlockingReasons []string

	// Warnings are non-blocking degradations (memory pressure, missing or
	// undersized accelerator).
	Warnings []string
}

// Check scores spec against profile. Rules, all accumulating:
//
//	(a) available < MinMemory × SafetyMargin        → blocked
//	(b) available < required × 1.2                  → warning
//	(c) accelerator wanted, none present            → warning
//	(d) accelerator present but smaller than wanted → warning
func Check(spec catalog.ModelSpec, profile hardware.Profile) Verdict {
	var v Verdict

	required := uint64(float64(spec.MinMemory) * SafetyMargin)
	if profile.AvailableMemory < required {
		v.Blocked = true
		v.BlockingReasons = append(v.BlockingReasons, fmt.Sprintf(
			"model %s needs %s available memory (%s minimum with %.1fx safety margin), host has %s",
			spec.ID, formatBytes(required), formatBytes(spec.MinMemory),
			SafetyMargin, formatBytes(profile.AvailableMemory),
		))
	}

	pressure := uint64(float64(required) * pressureMargin)
	if profile.AvailableMemory < pressure {
		v.Warnings = append(v.Warnings, fmt.Sprintf(
			"high memory pressure: %s available vs %s comfortable minimum for %s",
			formatBytes(profile.AvailableMemory), formatBytes(pressure), spec.ID,
		))
	}

	if spec.WantsAccelerator() {
		switch {
		case !profile.HasAccelerator():
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"model %s prefers an accelerator; expect reduced throughput on general-purpose compute",
				spec.ID,
			))
		case profile.Accelerator.Memory < spec.MinAcceleratorMemory:
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"accelerator %s has %s memory, model %s prefers %s; layers will spill to system memory",
				profile.Accelerator.Name, formatBytes(profile.Accelerator.Memory),
				spec.ID, formatBytes(spec.MinAcceleratorMemory),
			))
		}
	}

	return v
}

// AcceleratorSatisfied reports whether the profile's accelerator meets the
// spec's accelerator requirement. Specs without a requirement are always
// satisfied.
func AcceleratorSatisfied(spec catalog.ModelSpec, profile hardware.Profile) bool {
	if !spec.WantsAccelerator() {
		return true
	}
	return profile.HasAccelerator() && profile.Accelerator.Memory >= spec.MinAcceleratorMemory
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
