// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package autoconfig selects the best-fitting model for a host and tunes
// its runtime parameters.
//
// Configure is deterministic: identical profile and catalog inputs yield
// an identical RuntimeConfig, which makes configuration itself cacheable
// and testable. The engine never fails on a poor host — when nothing
// passes the compatibility check it falls back to the single
// lowest-requirement catalog entry so the system always starts, and says
// so in the config's warnings.
package autoconfig

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianEdge/internal/catalog"
	"github.com/AleutianAI/AleutianEdge/internal/compat"
	"github.com/AleutianAI/AleutianEdge/internal/hardware"
	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

const gib = uint64(1024 * 1024 * 1024)

// contextBudgetFraction is the share of available memory the context
// window may claim.
const contextBudgetFraction = 0.7

// ErrNilCatalog is returned when Configure receives no catalog. An empty
// catalog is impossible to construct, so this is the only fatal input.
var ErrNilCatalog = errors.New("autoconfig: nil catalog")

// RuntimeConfig is the tuned launch configuration for one model. Produced
// per session; superseded by a fresh Configure call, never mutated.
type RuntimeConfig struct {
	// ModelID identifies the chosen catalog entry.
	ModelID string `json:"model_id"`

	// ContextSize is one of the model's supported context sizes.
	ContextSize int `json:"context_size"`

	// Threads is the inference thread count.
	Threads int `json:"threads"`

	// UseMMap enables memory-mapped weight loading.
	UseMMap bool `json:"use_mmap"`

	// ReservedMemory is held back from the inference engine for the OS
	// and the rest of the tool, in bytes.
	ReservedMemory uint64 `json:"reserved_memory"`

	// LastResort marks a config produced by the guaranteed-start fallback
	// rather than a clean compatibility pass.
	LastResort bool `json:"last_resort,omitempty"`

	// Warnings carries non-blocking compatibility findings for the chosen
	// model, for status reporting. Never fatal.
	Warnings []string `json:"warnings,omitempty"`
}

// Pair holds the two runtime configs the Dynamic strategy routes between.
// Fast and Quality may name the same model on constrained hosts.
type Pair struct {
	Fast    RuntimeConfig `json:"fast"`
	Quality RuntimeConfig `json:"quality"`
}

// Collapsed reports whether the pair degenerated to a single model.
func (p Pair) Collapsed() bool {
	return p.Fast.ModelID == p.Quality.ModelID
}

// Engine produces RuntimeConfigs. Stateless apart from its logger.
type Engine struct {
	logger *logging.Logger
}

// New creates an Engine. A nil logger falls back to the default.
func New(logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{logger: logger.With("component", "autoconfig")}
}

// Configure picks the best-fitting model and tunes runtime parameters.
// It fails only when the catalog is nil; every other degradation resolves
// to a warning on the returned config.
func (e *Engine) Configure(profile hardware.Profile, cat *catalog.Catalog) (RuntimeConfig, error) {
	if cat == nil {
		return RuntimeConfig{}, ErrNilCatalog
	}

	spec, lastResort := e.selectModel(profile, cat, byQuality)
	cfg := e.tune(spec, profile)
	cfg.LastResort = lastResort

	verdict := compat.Check(spec, profile)
	cfg.Warnings = append(cfg.Warnings, verdict.Warnings...)
	if lastResort {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(
			"no catalog entry fits this host cleanly; starting %s as last resort", spec.ID,
		))
		// The last resort may itself be blocked. That is accepted: a
		// degraded start beats no start, and the reasons are surfaced.
		cfg.Warnings = append(cfg.Warnings, verdict.BlockingReasons...)
	}

	for _, w := range cfg.Warnings {
		e.logger.Warn(w, "model", spec.ID)
	}
	e.logger.Info("runtime configured",
		"model", cfg.ModelID,
		"context_size", cfg.ContextSize,
		"threads", cfg.Threads,
		"use_mmap", cfg.UseMMap,
		"last_resort", cfg.LastResort,
	)
	return cfg, nil
}

// ConfigureWithPin honors a user-pinned model when the pin names a
// catalog entry that passes the compatibility check. A missing or
// blocked pin logs a warning and falls back to automatic selection, so
// a config file written on a big workstation still starts on a laptop.
func (e *Engine) ConfigureWithPin(profile hardware.Profile, cat *catalog.Catalog, pin string) (RuntimeConfig, error) {
	if cat == nil {
		return RuntimeConfig{}, ErrNilCatalog
	}
	if pin == "" {
		return e.Configure(profile, cat)
	}

	spec, ok := cat.ByID(pin)
	if !ok {
		e.logger.Warn("pinned model not in catalog, falling back to auto selection", "model", pin)
		return e.Configure(profile, cat)
	}

	verdict := compat.Check(spec, profile)
	if verdict.Blocked {
		e.logger.Warn("pinned model blocked on this host, falling back to auto selection",
			"model", pin, "reasons", verdict.BlockingReasons)
		return e.Configure(profile, cat)
	}

	cfg := e.tune(spec, profile)
	cfg.Warnings = verdict.Warnings
	for _, w := range cfg.Warnings {
		e.logger.Warn(w, "model", spec.ID)
	}
	e.logger.Info("runtime configured from pin",
		"model", cfg.ModelID,
		"context_size", cfg.ContextSize,
		"threads", cfg.Threads,
	)
	return cfg, nil
}

// ConfigurePair produces the fast/quality configs for the Dynamic
// strategy. The memory bound applies to the combined footprint of both
// models: when they do not fit together, the pair collapses to the single
// auto-selected model at both roles.
func (e *Engine) ConfigurePair(profile hardware.Profile, cat *catalog.Catalog) (Pair, error) {
	if cat == nil {
		return Pair{}, ErrNilCatalog
	}

	quality, err := e.Configure(profile, cat)
	if err != nil {
		return Pair{}, err
	}

	fastSpec, lastResort := e.selectModel(profile, cat, bySpeed)
	if lastResort || fastSpec.ID == quality.ModelID {
		return Pair{Fast: quality, Quality: quality}, nil
	}

	qualitySpec, _ := cat.ByID(quality.ModelID)
	combined := uint64(float64(fastSpec.MinMemory+qualitySpec.MinMemory) * compat.SafetyMargin)
	if profile.AvailableMemory < combined {
		e.logger.Warn("fast/quality pair exceeds combined memory bound, collapsing to one model",
			"fast", fastSpec.ID,
			"quality", quality.ModelID,
			"combined_required", combined,
			"available", profile.AvailableMemory,
		)
		return Pair{Fast: quality, Quality: quality}, nil
	}

	// Each model's context budget is computed against what remains once
	// the partner's guarded footprint is set aside.
	fastProfile := profile
	fastProfile.AvailableMemory -= uint64(float64(qualitySpec.MinMemory) * compat.SafetyMargin)
	fast := e.tune(fastSpec, fastProfile)
	fast.Warnings = compat.Check(fastSpec, profile).Warnings

	qualityProfile := profile
	qualityProfile.AvailableMemory -= uint64(float64(fastSpec.MinMemory) * compat.SafetyMargin)
	quality = e.tune(qualitySpec, qualityProfile)
	quality.Warnings = compat.Check(qualitySpec, profile).Warnings

	return Pair{Fast: fast, Quality: quality}, nil
}

// rank orders candidates within the compatible set.
type rank func(m catalog.ModelSpec) (primary, secondary int)

func byQuality(m catalog.ModelSpec) (int, int) { return int(m.Quality), int(m.Speed) }
func bySpeed(m catalog.ModelSpec) (int, int)   { return int(m.Speed), int(m.Quality) }

// selectModel applies the placement rules: filter to non-blocked entries,
// prefer accelerator-satisfiable candidates when an accelerator exists,
// otherwise general-purpose-only candidates, ranked by the given order.
// The boolean result marks the guaranteed-start last resort.
func (e *Engine) selectModel(profile hardware.Profile, cat *catalog.Catalog, better rank) (catalog.ModelSpec, bool) {
	var candidates []catalog.ModelSpec
	for _, m := range cat.Models() {
		if !compat.Check(m, profile).Blocked {
			candidates = append(candidates, m)
		}
	}

	if profile.HasAccelerator() {
		if best, ok := pick(candidates, better, func(m catalog.ModelSpec) bool {
			return compat.AcceleratorSatisfied(m, profile)
		}); ok {
			return best, false
		}
	}
	if best, ok := pick(candidates, better, func(m catalog.ModelSpec) bool {
		return !m.WantsAccelerator()
	}); ok {
		return best, false
	}
	// Any non-blocked entry at all (e.g. accelerator-wanting models on an
	// accelerator-less host) still beats the last resort.
	if best, ok := pick(candidates, better, func(catalog.ModelSpec) bool { return true }); ok {
		return best, false
	}

	return cat.Smallest(), true
}

// pick returns the best entry passing the filter. Iteration over the
// catalog's fixed smallest-first order plus strict improvement makes the
// choice deterministic.
func pick(models []catalog.ModelSpec, better rank, keep func(catalog.ModelSpec) bool) (catalog.ModelSpec, bool) {
	var best catalog.ModelSpec
	found := false
	for _, m := range models {
		if !keep(m) {
			continue
		}
		if !found {
			best, found = m, true
			continue
		}
		bp, bs := better(best)
		mp, ms := better(m)
		if mp > bp || (mp == bp && ms > bs) {
			best = m
		}
	}
	return best, found
}

// tune derives the runtime parameters for a chosen spec on a host.
func (e *Engine) tune(spec catalog.ModelSpec, profile hardware.Profile) RuntimeConfig {
	return RuntimeConfig{
		ModelID:        spec.ID,
		ContextSize:    selectContextSize(spec, profile),
		Threads:        selectThreads(profile),
		UseMMap:        profile.TotalMemory >= 16*gib,
		ReservedMemory: min(4*gib, profile.TotalMemory/4),
	}
}

// selectContextSize picks the largest supported context size whose
// estimated memory cost fits the budget, defaulting to the smallest
// supported size. Cost scales linearly: the full download size is the
// cost of the largest supported window.
func selectContextSize(spec catalog.ModelSpec, profile hardware.Profile) int {
	budget := float64(profile.AvailableMemory) * contextBudgetFraction
	perToken := float64(spec.DownloadSize) / float64(spec.LargestContextSize())

	chosen := spec.SmallestContextSize()
	for _, size := range spec.ContextSizes {
		if float64(size)*perToken <= budget && size > chosen {
			chosen = size
		}
	}
	return chosen
}

func selectThreads(profile hardware.Profile) int {
	limit := 6
	if profile.TotalMemory < 8*gib {
		limit = 4
	}
	threads := min(profile.PhysicalCores, limit)
	if threads < 1 {
		threads = 1
	}
	return threads
}
