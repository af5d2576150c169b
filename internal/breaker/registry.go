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

import "sync"

// Registry holds one Breaker per backend name. It is constructed by the
// composition root and handed to the router; there is no package-level
// instance.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	config Config
	opts   []Option
	hook   func(backend string, from, to State)

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry. Breakers created on demand by
// Get inherit config and opts.
func NewRegistry(config Config, opts ...Option) *Registry {
	return &Registry{
		config:   config.withDefaults(),
		opts:     opts,
		breakers: make(map[string]*Breaker),
	}
}

// WithTransitionHook registers a hook applied to every breaker the
// registry creates, receiving the backend name alongside the transition.
// Must be called before the first Get.
func (r *Registry) WithTransitionHook(hook func(backend string, from, to State)) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
	return r
}

// Get returns the breaker for a backend, creating it on first use.
func (r *Registry) Get(backend string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[backend]
	if !ok {
		opts := r.opts
		if r.hook != nil {
			name := backend
			hook := r.hook
			opts = append(opts[:len(opts):len(opts)], WithStateChangeHook(func(from, to State) {
				hook(name, from, to)
			}))
		}
		b = New(r.config, opts...)
		r.breakers[backend] = b
	}
	return b
}

// Snapshot returns the stats of every known breaker, keyed by backend
// name. Used by the status surface.
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Stats()
	}
	return out
}
