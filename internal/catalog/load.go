// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrEmptyCatalog is returned when a catalog source contains no models.
// This is the one configuration problem the system cannot recover from.
var ErrEmptyCatalog = errors.New("catalog contains no models")

// ErrDuplicateModel is returned when two entries share an ID.
var ErrDuplicateModel = errors.New("duplicate model id")

//go:embed catalog.yaml
var embeddedCatalog []byte

// catalogFile is the YAML wire form of the table.
type catalogFile struct {
	Version int         `yaml:"version" validate:"required,gt=0"`
	Models  []modelFile `yaml:"models" validate:"required,min=1,dive"`
}

type modelFile struct {
	ID                string `yaml:"id" validate:"required"`
	DownloadSizeMB    uint64 `yaml:"download_size_mb" validate:"required,gt=0"`
	MinMemoryMB       uint64 `yaml:"min_memory_mb" validate:"required,gt=0"`
	MinAccelMemoryMB  uint64 `yaml:"min_accel_memory_mb"`
	ContextSizes      []int  `yaml:"context_sizes" validate:"required,min=1,dive,gt=0"`
	Speed             string `yaml:"speed" validate:"required,oneof=slow medium fast very_fast ultra_fast"`
	Quality           string `yaml:"quality" validate:"required,oneof=basic good very_good excellent superior"`
	TokensPerSec      int    `yaml:"tokens_per_sec"`
	Description       string `yaml:"description"`
	Source            Source `yaml:"source"`
}

var validate = validator.New()

// Default returns the embedded catalog table. Panics only if the embedded
// data itself is broken, which is a build defect, not a runtime condition.
func Default() *Catalog {
	c, err := Parse(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog invalid: %v", err))
	}
	return c
}

// LoadFile parses a packaging-layer catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog table.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, ErrEmptyCatalog
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	specs := make([]ModelSpec, 0, len(file.Models))
	for _, m := range file.Models {
		if !ascending(m.ContextSizes) {
			return nil, fmt.Errorf("model %q: context_sizes must be strictly ascending", m.ID)
		}
		spec := ModelSpec{
			ID:                   m.ID,
			DownloadSize:         m.DownloadSizeMB * 1024 * 1024,
			MinMemory:            m.MinMemoryMB * 1024 * 1024,
			MinAcceleratorMemory: m.MinAccelMemoryMB * 1024 * 1024,
			ContextSizes:         m.ContextSizes,
			Speed:                speedFromName(m.Speed),
			Quality:              qualityFromName(m.Quality),
			TokensPerSec:         m.TokensPerSec,
			Description:          m.Description,
			Source:               m.Source,
		}
		specs = append(specs, spec)
	}
	return New(file.Version, specs)
}

func ascending(sizes []int) bool {
	for i := 1; i < len(sizes); i++ {
		if sizes[i] <= sizes[i-1] {
			return false
		}
	}
	return true
}

func speedFromName(name string) Speed {
	for s, n := range speedNames {
		if n == name {
			return s
		}
	}
	return SpeedMedium
}

func qualityFromName(name string) Quality {
	for q, n := range qualityNames {
		if n == name {
			return q
		}
	}
	return QualityBasic
}
