// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package breaker implements per-backend circuit breakers.
//
// Each backend the router can dispatch to owns one Breaker. The breaker
// tracks consecutive failures and trips open when they cross the
// threshold; after a cooldown it admits exactly one probe request, and
// that probe's outcome decides between a full reset and another cooldown.
package breaker

import (
	"sync"
	"time"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed allows requests through normally.
	StateClosed State = iota

	// StateOpen rejects all requests until the cooldown elapses.
	StateOpen

	// StateHalfOpen has admitted a single probe and is waiting for its
	// outcome.
	StateHalfOpen
)

// String returns the human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures breaker behavior.
type Config struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Default: 3
	FailureThreshold int

	// Cooldown is how long the circuit stays open, measured from the most
	// recent failure, before one probe is admitted. Default: 30s
	Cooldown time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// Breaker is a circuit breaker for one backend.
//
// State machine:
//   - Closed: requests pass; FailureThreshold consecutive failures open
//     the circuit. Any success resets the failure count.
//   - Open: requests are rejected until Cooldown has elapsed since the
//     last failure, then the next Allow admits a single probe.
//   - HalfOpen: the probe's success closes the circuit and fully resets
//     it; the probe's failure reopens it and restarts the cooldown.
//
// Recording an outcome the breaker never admitted is harmless: outcomes
// are attributed to the backend, not to a ticket.
//
// Thread Safety: Safe for concurrent use.
type Breaker struct {
	config Config
	now    func() time.Time

	mu                  sync.RWMutex
	state               State
	consecutiveFailures int
	probeInFlight       bool
	lastFailureTime     time.Time
	lastStateChange     time.Time

	onStateChange func(from, to State)
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock substitutes the time source. Tests use this to step through
// cooldowns without sleeping.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithStateChangeHook registers a callback invoked on every state
// transition. The callback runs with the breaker lock held, so it must
// not call back into the breaker.
func WithStateChangeHook(hook func(from, to State)) Option {
	return func(b *Breaker) { b.onStateChange = hook }
}

// New creates a Breaker in the closed state.
func New(config Config, opts ...Option) *Breaker {
	b := &Breaker{
		config: config.withDefaults(),
		now:    time.Now,
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lastStateChange = b.now()
	return b
}

// Allow reports whether a request may be dispatched to the backend.
//
// In the open state, the first call after the cooldown elapses admits a
// probe and moves the circuit to half-open. While a probe is in flight,
// further requests are rejected.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if b.now().Sub(b.lastFailureTime) >= b.config.Cooldown {
			b.transitionTo(StateHalfOpen)
			b.probeInFlight = true
			return true
		}
		return false

	case StateHalfOpen:
		return !b.probeInFlight

	default:
		return false
	}
}

// RecordSuccess records a successful request. Any success fully resets
// the breaker: counters clear and the circuit closes, whatever state it
// was in. Late successes from requests dispatched before the circuit
// opened count too, since they prove the backend is serving again.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		b.transitionTo(StateClosed)
	}
	b.consecutiveFailures = 0
}

// RecordFailure records a failed request. The cooldown always restarts
// from the most recent failure, so a backend that keeps failing during
// probes stays open.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = b.now()

	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		b.transitionTo(StateOpen)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureTime:     b.lastFailureTime,
		LastStateChange:     b.lastStateChange,
	}
}

// Reset forces the breaker to closed and clears all counters. For manual
// intervention and tests.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		b.transitionTo(StateClosed)
	}
	b.consecutiveFailures = 0
	b.probeInFlight = false
}

// transitionTo changes state. Must be called with the lock held.
func (b *Breaker) transitionTo(newState State) {
	from := b.state
	b.state = newState
	b.lastStateChange = b.now()
	b.probeInFlight = false

	if newState == StateClosed {
		b.consecutiveFailures = 0
	}
	if b.onStateChange != nil && from != newState {
		b.onStateChange(from, newState)
	}
}

// Stats is a point-in-time snapshot of one breaker.
type Stats struct {
	State               State
	ConsecutiveFailures int
	LastFailureTime     time.Time
	LastStateChange     time.Time
}
