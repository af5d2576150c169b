// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds the versioned table of known model specifications.
//
// The catalog is static data: memory and accelerator requirements, context
// size options, and ordinal speed/quality classes for each model the tool
// knows how to run. It is loaded once at startup — either the embedded
// default table or a file supplied by the packaging layer — and is
// immutable afterwards. There is deliberately no global registry; the
// composition root constructs a Catalog and hands it to whoever needs one.
package catalog

import (
	"fmt"
	"sort"
)

// Quality is an ordinal quality class. Higher is better. Used only to
// break ties among candidates that already passed compatibility checks.
type Quality int

const (
	QualityBasic Quality = iota + 1
	QualityGood
	QualityVeryGood
	QualityExcellent
	QualitySuperior
)

var qualityNames = map[Quality]string{
	QualityBasic:     "basic",
	QualityGood:      "good",
	QualityVeryGood:  "very_good",
	QualityExcellent: "excellent",
	QualitySuperior:  "superior",
}

// String returns the YAML name of the quality class.
func (q Quality) String() string {
	if name, ok := qualityNames[q]; ok {
		return name
	}
	return fmt.Sprintf("quality(%d)", int(q))
}

// Speed is an ordinal speed class. Higher is faster.
type Speed int

const (
	SpeedSlow Speed = iota + 1
	SpeedMedium
	SpeedFast
	SpeedVeryFast
	SpeedUltraFast
)

var speedNames = map[Speed]string{
	SpeedSlow:      "slow",
	SpeedMedium:    "medium",
	SpeedFast:      "fast",
	SpeedVeryFast:  "very_fast",
	SpeedUltraFast: "ultra_fast",
}

// String returns the YAML name of the speed class.
func (s Speed) String() string {
	if name, ok := speedNames[s]; ok {
		return name
	}
	return fmt.Sprintf("speed(%d)", int(s))
}

// Source locates the model artifact for the download/packaging layer.
type Source struct {
	Repo     string `yaml:"repo" validate:"required"`
	Filename string `yaml:"filename" validate:"required"`
}

// ModelSpec is one immutable catalog entry.
type ModelSpec struct {
	// ID is the unique catalog identifier, e.g. "qwen2.5-coder-7b-q4".
	ID string `yaml:"id" validate:"required"`

	// DownloadSize is the artifact size in bytes.
	DownloadSize uint64 `yaml:"-"`

	// MinMemory is the minimum system memory in bytes the model needs to
	// run at all. The compatibility engine applies its own safety margin
	// on top.
	MinMemory uint64 `yaml:"-"`

	// MinAcceleratorMemory is the minimum accelerator memory in bytes, or
	// zero when the model runs on general-purpose compute alone.
	MinAcceleratorMemory uint64 `yaml:"-"`

	// ContextSizes lists supported context sizes in ascending order.
	ContextSizes []int `yaml:"context_sizes" validate:"required,min=1,dive,gt=0"`

	// Speed and Quality are ordinal classes; TokensPerSec is an
	// informational throughput hint for the speed class.
	Speed        Speed   `yaml:"-"`
	Quality      Quality `yaml:"-"`
	TokensPerSec int     `yaml:"tokens_per_sec"`

	// Description is a one-line human summary for CLI listings.
	Description string `yaml:"description"`

	// Source locates the artifact.
	Source Source `yaml:"source"`
}

// WantsAccelerator reports whether the spec benefits from an accelerator.
func (m ModelSpec) WantsAccelerator() bool {
	return m.MinAcceleratorMemory > 0
}

// LargestContextSize returns the biggest supported context size.
func (m ModelSpec) LargestContextSize() int {
	return m.ContextSizes[len(m.ContextSizes)-1]
}

// SmallestContextSize returns the smallest supported context size.
func (m ModelSpec) SmallestContextSize() int {
	return m.ContextSizes[0]
}

// SupportsContextSize reports whether size is a supported option.
func (m ModelSpec) SupportsContextSize(size int) bool {
	for _, s := range m.ContextSizes {
		if s == size {
			return true
		}
	}
	return false
}

// Catalog is an immutable, versioned collection of model specs.
type Catalog struct {
	version int
	models  []ModelSpec
	byID    map[string]*ModelSpec
}

// New builds a Catalog from specs. The slice is copied; entries are
// sorted by ascending MinMemory so listings read smallest-first.
func New(version int, specs []ModelSpec) (*Catalog, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyCatalog
	}
	models := make([]ModelSpec, len(specs))
	copy(models, specs)
	sort.SliceStable(models, func(i, j int) bool {
		return models[i].MinMemory < models[j].MinMemory
	})

	byID := make(map[string]*ModelSpec, len(models))
	for i := range models {
		spec := &models[i]
		if _, dup := byID[spec.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateModel, spec.ID)
		}
		byID[spec.ID] = spec
	}
	return &Catalog{version: version, models: models, byID: byID}, nil
}

// Version returns the catalog table version.
func (c *Catalog) Version() int {
	return c.version
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.models)
}

// Models returns all entries, smallest memory requirement first. The
// returned slice is a copy.
func (c *Catalog) Models() []ModelSpec {
	out := make([]ModelSpec, len(c.models))
	copy(out, c.models)
	return out
}

// ByID looks up a spec by identifier.
func (c *Catalog) ByID(id string) (ModelSpec, bool) {
	spec, ok := c.byID[id]
	if !ok {
		return ModelSpec{}, false
	}
	return *spec, true
}

// Smallest returns the entry with the lowest memory requirement — the
// last-resort model that must start on any host.
func (c *Catalog) Smallest() ModelSpec {
	return c.models[0]
}
