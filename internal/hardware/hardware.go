// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hardware takes point-in-time snapshots of host resources.
//
// The profiler is a pure data producer: it reads memory, CPU, disk, and
// accelerator state and returns an immutable Profile. Detection never
// fails — when a probe cannot run (no driver, no tool on PATH, exotic
// platform) the corresponding field is simply absent. Downstream
// components (compatibility checks, auto-configuration) must treat absent
// fields as "not available", never as an error.
//
// Accelerator detection tries vendor probes in a fixed priority order and
// stops at the first success: NVIDIA (nvidia-smi), AMD ROCm (rocm-smi),
// Apple Silicon (sysctl). Each probe shells out with a short timeout so a
// hung driver cannot stall a session.
package hardware

import (
	"context"
	"os/exec"
	"runtime"
	"time"

	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

// Accelerator describes a detected compute accelerator (discrete GPU or
// unified-memory SoC).
type Accelerator struct {
	// Name is the vendor/model string, e.g. "NVIDIA GeForce RTX 4090".
	Name string `json:"name"`

	// Memory is dedicated accelerator memory in bytes. For unified-memory
	// platforms (Apple Silicon) this is the share of system memory the GPU
	// can plausibly claim.
	Memory uint64 `json:"memory"`
}

// Profile is an immutable snapshot of host resources. Create a fresh one
// via Profiler.Profile whenever current numbers matter; never mutate.
type Profile struct {
	// TotalMemory is installed physical memory in bytes.
	TotalMemory uint64 `json:"total_memory"`

	// AvailableMemory is memory the OS reports as reclaimable for new
	// allocations, in bytes. Falls back to TotalMemory/2 when the platform
	// offers no estimate.
	AvailableMemory uint64 `json:"available_memory"`

	// PhysicalCores and LogicalCores describe the CPU topology. Physical
	// falls back to logical when topology cannot be read.
	PhysicalCores int `json:"physical_cores"`
	LogicalCores  int `json:"logical_cores"`

	// CPUBrand is the marketing name of the CPU, best effort.
	CPUBrand string `json:"cpu_brand,omitempty"`

	// OS is the runtime.GOOS family, Arch the runtime.GOARCH value.
	OS   string `json:"os"`
	Arch string `json:"arch"`

	// FreeDisk is free space in bytes under the model store path, best
	// effort (zero when statfs fails).
	FreeDisk uint64 `json:"free_disk,omitempty"`

	// Accelerator is nil when no vendor probe succeeded.
	Accelerator *Accelerator `json:"accelerator,omitempty"`
}

// HasAccelerator reports whether an accelerator was detected.
func (p Profile) HasAccelerator() bool {
	return p.Accelerator != nil
}

// CommandRunner executes an external probe command and returns its stdout.
// Injected so tests can exercise probe parsing without vendor tooling.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// probeTimeout bounds each vendor probe. Driver hangs are a real failure
// mode on half-installed CUDA setups.
const probeTimeout = 3 * time.Second

// Profiler reads host resources. Safe for concurrent use; each Profile
// call produces an independent snapshot.
type Profiler struct {
	logger *logging.Logger
	run    CommandRunner

	// diskPath is the directory whose filesystem is measured for FreeDisk.
	diskPath string
}

// Option customizes a Profiler.
type Option func(*Profiler)

// WithCommandRunner replaces the exec-based probe runner.
func WithCommandRunner(run CommandRunner) Option {
	return func(p *Profiler) { p.run = run }
}

// WithDiskPath sets the directory measured for free disk space.
func WithDiskPath(path string) Option {
	return func(p *Profiler) { p.diskPath = path }
}

// NewProfiler creates a Profiler. A nil logger falls back to the default.
func NewProfiler(logger *logging.Logger, opts ...Option) *Profiler {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Profiler{
		logger:   logger.With("component", "hardware"),
		run:      defaultRunner,
		diskPath: ".",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Profile returns a fresh snapshot. It never returns an error: every read
// degrades independently to a zero value or absent field.
func (p *Profiler) Profile(ctx context.Context) Profile {
	total, available := readMemory()
	if available == 0 && total > 0 {
		// No platform estimate; assume half of physical memory is usable.
		available = total / 2
	}

	logical := runtime.NumCPU()
	physical := readPhysicalCores()
	if physical <= 0 || physical > logical {
		physical = logical
	}

	profile := Profile{
		TotalMemory:     total,
		AvailableMemory: available,
		PhysicalCores:   physical,
		LogicalCores:    logical,
		CPUBrand:        readCPUBrand(),
		OS:              runtime.GOOS,
		Arch:            runtime.GOARCH,
		FreeDisk:        readFreeDisk(p.diskPath),
	}

	if accel := p.detectAccelerator(ctx); accel != nil {
		profile.Accelerator = accel
		p.logger.Debug("accelerator detected",
			"name", accel.Name,
			"memory_bytes", accel.Memory,
		)
	} else {
		p.logger.Debug("no accelerator detected, general-purpose compute only")
	}

	return profile
}

// detectAccelerator runs vendor probes in priority order and stops at the
// first success.
func (p *Profiler) detectAccelerator(ctx context.Context) *Accelerator {
	probes := []struct {
		name  string
		probe func(context.Context) *Accelerator
	}{
		{"nvidia", p.probeNvidia},
		{"rocm", p.probeROCm},
		{"apple", p.probeApple},
	}
	for _, entry := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		accel := entry.probe(probeCtx)
		cancel()
		if accel != nil {
			return accel
		}
	}
	return nil
}
