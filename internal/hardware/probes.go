// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hardware

import (
	"context"
	"runtime"
	"strconv"
	"strings"
)

const mib = 1024 * 1024

// probeNvidia queries nvidia-smi for the first GPU's name and total memory.
// Output format: "NVIDIA GeForce RTX 4090, 24564" (memory in MiB).
func (p *Profiler) probeNvidia(ctx context.Context) *Accelerator {
	out, err := p.run(ctx, "nvidia-smi",
		"--query-gpu=name,memory.total",
		"--format=csv,noheader,nounits",
	)
	if err != nil {
		return nil
	}
	line := firstLine(string(out))
	name, memStr, ok := strings.Cut(line, ",")
	if !ok {
		return nil
	}
	memMiB, err := strconv.ParseUint(strings.TrimSpace(memStr), 10, 64)
	if err != nil || memMiB == 0 {
		return nil
	}
	return &Accelerator{
		Name:   strings.TrimSpace(name),
		Memory: memMiB * mib,
	}
}

// probeROCm parses `rocm-smi --showmeminfo vram` for the first device.
// The line of interest looks like:
//
//	GPU[0] : VRAM Total Memory (B): 17163091968
func (p *Profiler) probeROCm(ctx context.Context) *Accelerator {
	if runtime.GOOS != "linux" {
		return nil
	}
	out, err := p.run(ctx, "rocm-smi", "--showmeminfo", "vram")
	if err != nil {
		return nil
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "VRAM Total Memory") {
			continue
		}
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		bytes, err := strconv.ParseUint(strings.TrimSpace(line[idx+1:]), 10, 64)
		if err != nil || bytes == 0 {
			continue
		}
		return &Accelerator{Name: "AMD ROCm GPU", Memory: bytes}
	}
	return nil
}

// probeApple detects Apple Silicon. The GPU shares unified memory, so the
// usable accelerator memory is reported as 75% of hw.memsize, matching
// Metal's recommendedMaxWorkingSetSize behavior on recent machines.
func (p *Profiler) probeApple(ctx context.Context) *Accelerator {
	if runtime.GOOS != "darwin" || runtime.GOARCH != "arm64" {
		return nil
	}
	out, err := p.run(ctx, "sysctl", "-n", "hw.memsize")
	if err != nil {
		return nil
	}
	total, err := strconv.ParseUint(firstLine(string(out)), 10, 64)
	if err != nil || total == 0 {
		return nil
	}
	name := "Apple Silicon"
	if brand, err := p.run(ctx, "sysctl", "-n", "machdep.cpu.brand_string"); err == nil {
		if s := firstLine(string(brand)); s != "" {
			name = s
		}
	}
	return &Accelerator{Name: name, Memory: total / 4 * 3}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
