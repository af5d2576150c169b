// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the tool's layered configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config
// file, EDGE_* environment variables. User overrides (pinned strategy,
// pinned model) ride on top of auto-configuration at composition time;
// this package only carries them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianEdge/internal/cache"
)

// Duration wraps time.Duration with YAML string parsing ("30s", "2m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard-library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full tool configuration.
type Config struct {
	// Strategy pins the execution strategy. Empty means choose by
	// hardware at startup.
	Strategy string `yaml:"strategy" validate:"omitempty,oneof=local_only hybrid dynamic cloud_only"`

	// Model pins a catalog model. The pin only holds when the model
	// passes the compatibility check; otherwise auto-selection wins with
	// a warning.
	Model string `yaml:"model"`

	// CatalogPath overrides the embedded model catalog.
	CatalogPath string `yaml:"catalog_path"`

	// Timeout bounds each backend call.
	Timeout Duration `yaml:"timeout"`

	Local   Local   `yaml:"local"`
	Remote  Remote  `yaml:"remote"`
	Cache   Cache   `yaml:"cache"`
	Breaker Breaker `yaml:"breaker"`
	Logging Logging `yaml:"logging"`
	Status  Status  `yaml:"status"`
}

// Local configures the llama.cpp backend.
type Local struct {
	// BaseURL of the llama.cpp server.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

// Remote configures the cloud backend.
type Remote struct {
	// Enabled turns the remote backend on. Off by default: local-first.
	Enabled bool `yaml:"enabled"`

	// Model is the remote model name.
	Model string `yaml:"model"`

	// BaseURL overrides the API endpoint for compatible gateways.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// RequestsPerMinute throttles outbound calls. Zero disables.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`

	// APIKeyEnv and APIKeyFile locate the credential. Env wins when both
	// are set. The key itself never appears in this struct.
	APIKeyEnv  string `yaml:"api_key_env"`
	APIKeyFile string `yaml:"api_key_file"`

	// SystemPrompt is prepended to remote requests.
	SystemPrompt string `yaml:"system_prompt"`
}

// Cache configures the response cache.
type Cache struct {
	// MaxSize bounds entry count.
	MaxSize int `yaml:"max_size" validate:"gte=0"`

	// SimilarityThreshold is the semantic-hit bound.
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gte=0,lte=1"`

	// PersistDir enables the on-disk store when set.
	PersistDir string `yaml:"persist_dir"`

	// Warm lists (prompt, response) pairs pre-inserted at startup.
	Warm []cache.WarmEntry `yaml:"warm"`

	// Embeddings powers the semantic tier. Off by default; without it
	// the cache serves exact matches only.
	Embeddings Embeddings `yaml:"embeddings"`
}

// Embeddings configures the embedding client behind the semantic cache
// tier. The remote credential (remote.api_key_env / api_key_file)
// authenticates the embeddings endpoint too.
type Embeddings struct {
	// Enabled turns the semantic tier on.
	Enabled bool `yaml:"enabled"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// BaseURL overrides the API endpoint for compatible gateways.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

// Breaker configures the circuit breakers.
type Breaker struct {
	FailureThreshold int      `yaml:"failure_threshold" validate:"gte=0"`
	Cooldown         Duration `yaml:"cooldown"`
}

// Logging configures the logger.
type Logging struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`

	// Export ships log entries to a GCS bucket when bucket is set.
	Export Export `yaml:"export"`
}

// Export configures batched log shipping to GCS.
type Export struct {
	// Bucket enables export when non-empty.
	Bucket string `yaml:"bucket"`

	// Prefix namespaces objects within the bucket.
	Prefix string `yaml:"prefix"`

	// CredentialsFile points at a service-account key. Empty uses
	// ambient credentials.
	CredentialsFile string `yaml:"credentials_file"`
}

// Status configures the local status server.
type Status struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Timeout: Duration(30 * time.Second),
		Local: Local{
			BaseURL: "http://127.0.0.1:8080",
		},
		Remote: Remote{
			Model:             "gpt-4o-mini",
			RequestsPerMinute: 20,
			APIKeyEnv:         "OPENAI_API_KEY",
		},
		Cache: Cache{
			MaxSize:             cache.DefaultMaxSize,
			SimilarityThreshold: cache.DefaultSimilarityThreshold,
			Embeddings: Embeddings{
				Model: "text-embedding-3-small",
			},
		},
		Breaker: Breaker{
			FailureThreshold: 3,
			Cooldown:         Duration(30 * time.Second),
		},
		Logging: Logging{
			Level:  "info",
			Export: Export{Prefix: "edge-logs"},
		},
		Status: Status{
			Enabled: true,
			Addr:    "127.0.0.1:7777",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty or missing), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// A missing file is fine; defaults and env carry the day.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv overlays EDGE_* environment variables.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("EDGE_STRATEGY", &cfg.Strategy)
	setString("EDGE_MODEL", &cfg.Model)
	setString("EDGE_CATALOG_PATH", &cfg.CatalogPath)
	setString("EDGE_LOCAL_URL", &cfg.Local.BaseURL)
	setString("EDGE_REMOTE_MODEL", &cfg.Remote.Model)
	setString("EDGE_REMOTE_URL", &cfg.Remote.BaseURL)
	setString("EDGE_LOG_LEVEL", &cfg.Logging.Level)
	setString("EDGE_LOG_DIR", &cfg.Logging.Dir)
	setString("EDGE_STATUS_ADDR", &cfg.Status.Addr)
	setString("EDGE_CACHE_DIR", &cfg.Cache.PersistDir)

	if v := os.Getenv("EDGE_REMOTE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Remote.Enabled = b
		}
	}
	if v := os.Getenv("EDGE_EMBEDDINGS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Embeddings.Enabled = b
		}
	}
	if v := os.Getenv("EDGE_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Cache.MaxSize = n
		}
	}
	if v := os.Getenv("EDGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = Duration(d)
		}
	}
}
