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
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner returns canned output per command name and records calls.
type stubRunner struct {
	output map[string][]byte
	err    map[string]error
	calls  []string
}

func (s *stubRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	s.calls = append(s.calls, name)
	if err, ok := s.err[name]; ok {
		return nil, err
	}
	if out, ok := s.output[name]; ok {
		return out, nil
	}
	return nil, errors.New("command not found: " + name)
}

func TestProfileNeverFails(t *testing.T) {
	// Every probe failing must still yield a usable profile.
	stub := &stubRunner{err: map[string]error{
		"nvidia-smi": errors.New("no driver"),
		"rocm-smi":   errors.New("not installed"),
		"sysctl":     errors.New("not installed"),
	}}
	p := NewProfiler(nil, WithCommandRunner(stub.run))
	profile := p.Profile(context.Background())

	assert.Nil(t, profile.Accelerator)
	assert.False(t, profile.HasAccelerator())
	assert.Equal(t, runtime.GOOS, profile.OS)
	assert.GreaterOrEqual(t, profile.LogicalCores, 1)
	assert.GreaterOrEqual(t, profile.LogicalCores, profile.PhysicalCores)
}

func TestNvidiaProbeParsing(t *testing.T) {
	stub := &stubRunner{output: map[string][]byte{
		"nvidia-smi": []byte("NVIDIA GeForce RTX 4090, 24564\n"),
	}}
	p := NewProfiler(nil, WithCommandRunner(stub.run))

	accel := p.probeNvidia(context.Background())
	require.NotNil(t, accel)
	assert.Equal(t, "NVIDIA GeForce RTX 4090", accel.Name)
	assert.Equal(t, uint64(24564)*mib, accel.Memory)
}

func TestNvidiaProbeMalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"empty", ""},
		{"no comma", "garbage"},
		{"bad number", "RTX 4090, banana"},
		{"zero memory", "RTX 4090, 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubRunner{output: map[string][]byte{"nvidia-smi": []byte(tt.out)}}
			p := NewProfiler(nil, WithCommandRunner(stub.run))
			assert.Nil(t, p.probeNvidia(context.Background()))
		})
	}
}

func TestROCmProbeParsing(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ROCm probe is linux-only")
	}
	out := "========= ROCm System Management Interface =========\n" +
		"GPU[0] : VRAM Total Memory (B): 17163091968\n" +
		"GPU[0] : VRAM Total Used Memory (B): 305135616\n"
	stub := &stubRunner{output: map[string][]byte{"rocm-smi": []byte(out)}}
	p := NewProfiler(nil, WithCommandRunner(stub.run))

	accel := p.probeROCm(context.Background())
	require.NotNil(t, accel)
	assert.Equal(t, uint64(17163091968), accel.Memory)
}

func TestProbePriorityOrder(t *testing.T) {
	// NVIDIA succeeding must short-circuit the remaining probes.
	stub := &stubRunner{output: map[string][]byte{
		"nvidia-smi": []byte("RTX 3060, 12288"),
		"rocm-smi":   []byte("GPU[0] : VRAM Total Memory (B): 17163091968"),
	}}
	p := NewProfiler(nil, WithCommandRunner(stub.run))

	accel := p.detectAccelerator(context.Background())
	require.NotNil(t, accel)
	assert.Equal(t, "RTX 3060", accel.Name)
	assert.Equal(t, []string{"nvidia-smi"}, stub.calls)
}

func TestSnapshotsAreIndependent(t *testing.T) {
	stub := &stubRunner{err: map[string]error{
		"nvidia-smi": errors.New("x"), "rocm-smi": errors.New("x"), "sysctl": errors.New("x"),
	}}
	p := NewProfiler(nil, WithCommandRunner(stub.run))

	a := p.Profile(context.Background())
	b := p.Profile(context.Background())
	a.Accelerator = &Accelerator{Name: "mutated"}
	assert.Nil(t, b.Accelerator)
}
