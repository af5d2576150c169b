// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock steps time manually.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testBreaker(clock *fakeClock) *Breaker {
	return New(Config{FailureThreshold: 3, Cooldown: 30 * time.Second}, WithClock(clock.Now))
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := testBreaker(newFakeClock())

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := testBreaker(newFakeClock())

	// Interleaved successes keep the streak below threshold indefinitely.
	for i := 0; i < 10; i++ {
		b.RecordFailure()
		b.RecordFailure()
		b.RecordSuccess()
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestSuccessWhileOpenClosesCircuit(t *testing.T) {
	b := testBreaker(newFakeClock())

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	// A request dispatched before the trip can still succeed after it.
	// That success is proof of life and must fully reset the breaker.
	b.RecordSuccess()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Stats().ConsecutiveFailures)
	assert.True(t, b.Allow())

	// The reset is complete: reopening takes a full streak again.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestProbeAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	clock.Advance(29 * time.Second)
	assert.False(t, b.Allow())

	clock.Advance(1 * time.Second)
	assert.True(t, b.Allow(), "first request after cooldown is the probe")
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "only one probe in flight")
}

func TestProbeSuccessFullyResets(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(30 * time.Second)
	require.True(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Stats().ConsecutiveFailures)

	// A fresh streak is needed to open again.
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestProbeFailureRestartsCooldown(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.Advance(30 * time.Second)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	// The cooldown runs from the probe's failure, not the original trip.
	clock.Advance(29 * time.Second)
	assert.False(t, b.Allow())
	clock.Advance(1 * time.Second)
	assert.True(t, b.Allow())
}

func TestStateChangeHook(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	b := New(Config{FailureThreshold: 1, Cooldown: time.Second},
		WithClock(clock.Now),
		WithStateChangeHook(func(from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)

	b.RecordFailure()
	clock.Advance(time.Second)
	b.Allow()
	b.RecordSuccess()

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestConcurrentUse(t *testing.T) {
	b := testBreaker(newFakeClock())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				b.Allow()
				if (n+j)%3 == 0 {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
				b.Stats()
			}
		}(i)
	}
	wg.Wait()
}

func TestRegistryIsolatesBackends(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, Cooldown: time.Minute})

	r.Get("local").RecordFailure()
	assert.Equal(t, StateOpen, r.Get("local").State())
	assert.Equal(t, StateClosed, r.Get("remote").State())

	// Get returns the same instance per name.
	assert.Same(t, r.Get("local"), r.Get("local"))

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, StateOpen, snap["local"].State)
	assert.Equal(t, StateClosed, snap["remote"].State)
}
