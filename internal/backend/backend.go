// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend defines the inference provider abstraction and its
// concrete adapters.
//
// A Provider is anything that can turn a prompt into a completion: the
// local llama.cpp server, a remote API, or a test double. Providers are
// capabilities passed to the router at construction; nothing here keeps
// a process-wide list of them.
package backend

import (
	"context"

	"github.com/AleutianAI/AleutianEdge/internal/autoconfig"
)

// Provider generates completions.
//
// Generate blocks until the completion is ready, the context is done, or
// the backend fails. Implementations must honor context cancellation and
// return errors from this package's taxonomy so the router and circuit
// breakers can classify them.
type Provider interface {
	// Name identifies the backend for breakers, logs, and metrics.
	// Stable across calls, e.g. "local" or "openai".
	Name() string

	// Generate produces a completion for prompt under the given runtime
	// config. The config's ContextSize bounds the output budget.
	Generate(ctx context.Context, prompt string, cfg autoconfig.RuntimeConfig) (string, error)
}

// Params are optional sampling knobs shared by the adapters. Zero values
// mean backend defaults.
type Params struct {
	MaxTokens   int
	Temperature float32
	TopK        int
	TopP        float32
	Stop        []string
}

// classify wraps a transport-level error from a Generate call into the
// package taxonomy, folding in context state first: a deadline or a
// cancel on our side is not the backend's fault.
func classify(ctx context.Context, backend string, err error) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return &Error{Kind: KindTimeout, Backend: backend, Err: err}
	case context.Canceled:
		return &Error{Kind: KindCancelled, Backend: backend, Err: err}
	}
	return &Error{Kind: KindNetwork, Backend: backend, Err: err}
}
