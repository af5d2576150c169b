// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache implements the two-tier response cache.
//
// # Description
//
// Tier one is exact: a hash map keyed by the digest of the normalized
// request text. O(1), no false positives. Tier two is semantic: an
// in-memory nearest-neighbor index over embedding vectors, consulted only
// on an exact miss, hitting when the nearest stored request is at least
// SimilarityThreshold similar. Requests marked non-cacheable bypass both
// tiers and are never inserted.
//
// Embeddings are optional. Without an Embedder the semantic tier is
// inert and the exact tier carries everything; an embedding failure on
// one request degrades only that request's semantic handling.
//
// # Thread Safety
//
// Cache is safe for concurrent use. Embedding and persistence calls run
// outside the cache lock.
package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianEdge/internal/tokens"
	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

// DefaultMaxSize bounds entry count when the config leaves it zero.
const DefaultMaxSize = 1000

// DefaultSimilarityThreshold is the minimum cosine similarity for a
// semantic hit.
const DefaultSimilarityThreshold = 0.95

// Tier identifies which cache tier answered a lookup.
type Tier int

const (
	// TierNone means the lookup missed both tiers.
	TierNone Tier = iota

	// TierExact is a digest match on normalized text.
	TierExact

	// TierSemantic is an embedding-similarity match.
	TierSemantic
)

// String returns the metrics label for the tier.
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSemantic:
		return "semantic"
	default:
		return "none"
	}
}

// Embedder turns text into a vector. The production implementation wraps
// an embeddings client; nil disables the semantic tier.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Entry is one cached response. Owned by the cache: mutated only through
// lookups and destroyed on eviction.
type Entry struct {
	// Key is the digest of the normalized request text.
	Key string `json:"key"`

	// Prompt is the normalized request text, kept for semantic re-embeds
	// and persistence reloads.
	Prompt string `json:"prompt"`

	// Response is the cached completion.
	Response string `json:"response"`

	// Tokens is the response's token count.
	Tokens int `json:"tokens"`

	// HitCount and LastAccess drive eviction and diagnostics.
	HitCount   int       `json:"hit_count"`
	LastAccess time.Time `json:"last_access"`
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Entries      int    `json:"entries"`
	MaxSize      int    `json:"max_size"`
	ExactHits    uint64 `json:"exact_hits"`
	SemanticHits uint64 `json:"semantic_hits"`
	Misses       uint64 `json:"misses"`
	Evictions    uint64 `json:"evictions"`
}

// Config configures a Cache.
type Config struct {
	// MaxSize is the entry capacity. Default: DefaultMaxSize.
	MaxSize int

	// SimilarityThreshold is the minimum cosine similarity for a semantic
	// hit. Default: DefaultSimilarityThreshold.
	SimilarityThreshold float64

	// Embedder powers the semantic tier. Nil disables it.
	Embedder Embedder

	// Store persists exact-tier entries across restarts. Nil disables
	// persistence.
	Store Store

	// Logger for degradation events. Nil falls back to the default.
	Logger *logging.Logger
}

// Cache is the two-tier response cache.
type Cache struct {
	exact     *exactTier
	index     *vectorIndex
	embedder  Embedder
	store     Store
	counter   *tokens.Counter
	threshold float64
	logger    *logging.Logger
	flight    singleflight.Group
	now       func() time.Time
}

// New creates a Cache and, when a Store is configured, reloads the
// surviving entries from it.
func New(config Config) *Cache {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultMaxSize
	}
	if config.SimilarityThreshold <= 0 {
		config.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if config.Logger == nil {
		config.Logger = logging.Default()
	}

	c := &Cache{
		exact:     newExactTier(config.MaxSize),
		index:     newVectorIndex(),
		embedder:  config.Embedder,
		store:     config.Store,
		counter:   tokens.NewCounter(),
		threshold: config.SimilarityThreshold,
		logger:    config.Logger.With("component", "cache"),
		now:       time.Now,
	}

	if c.store != nil {
		entries, err := c.store.Load()
		if err != nil {
			c.logger.Warn("cache store reload failed, starting cold", "error", err)
		} else {
			for _, e := range entries {
				c.exact.put(e)
			}
			c.logger.Info("cache reloaded from store", "entries", len(entries))
		}
	}
	return c
}

// Get looks up text in both tiers. A hit bumps the entry's hit count and
// last-access time. cacheable=false always misses without touching
// either tier.
func (c *Cache) Get(ctx context.Context, text string, cacheable bool) (string, Tier, bool) {
	if !cacheable {
		return "", TierNone, false
	}

	key := exactKey(normalize(text))
	if response, ok := c.exact.get(key, c.now()); ok {
		return response, TierExact, true
	}

	if response, ok := c.semanticGet(ctx, text); ok {
		return response, TierSemantic, true
	}

	c.exact.recordMiss()
	return "", TierNone, false
}

// semanticGet consults the vector index. Any failure degrades to a miss.
func (c *Cache) semanticGet(ctx context.Context, text string) (string, bool) {
	if c.embedder == nil {
		return "", false
	}

	vector, err := c.embedder.Embed(ctx, normalize(text))
	if err != nil {
		c.logger.Debug("embedding failed, semantic tier skipped", "error", err)
		return "", false
	}

	key, similarity, ok := c.index.nearest(vector)
	if !ok || similarity < c.threshold {
		return "", false
	}

	response, ok := c.exact.get(key, c.now())
	if !ok {
		// Index and tier drifted; drop the orphan vector.
		c.index.remove(key)
		return "", false
	}
	c.exact.recordSemanticHit()
	return response, true
}

// Put inserts a response, evicting the least-recently-accessed entry at
// capacity. Non-cacheable requests are the caller's to filter; Put
// always stores.
func (c *Cache) Put(ctx context.Context, text, response string) {
	normalized := normalize(text)
	key := exactKey(normalized)

	entry := Entry{
		Key:        key,
		Prompt:     normalized,
		Response:   response,
		Tokens:     c.counter.Count(response),
		LastAccess: c.now(),
	}

	// Embed before taking the tier lock.
	var vector []float32
	if c.embedder != nil {
		v, err := c.embedder.Embed(ctx, normalized)
		if err != nil {
			c.logger.Debug("embedding failed, entry cached exact-only", "error", err)
		} else {
			vector = v
		}
	}

	evicted := c.exact.put(entry)
	for _, key := range evicted {
		c.index.remove(key)
		if c.store != nil {
			if err := c.store.Delete(key); err != nil {
				c.logger.Debug("cache store delete failed", "error", err)
			}
		}
	}
	if vector != nil {
		c.index.put(key, vector)
	}

	if c.store != nil {
		if err := c.store.Save(entry); err != nil {
			c.logger.Warn("cache store write failed", "error", err)
		}
	}
}

// GetOrCompute returns the cached response for text or computes one.
// Identical concurrent misses share a single compute call. The result is
// inserted unless the request was cancelled mid-compute or is not
// cacheable.
func (c *Cache) GetOrCompute(ctx context.Context, text string, cacheable bool,
	compute func(ctx context.Context) (string, error)) (string, Tier, error) {

	if !cacheable {
		response, err := compute(ctx)
		return response, TierNone, err
	}

	if response, tier, ok := c.Get(ctx, text, true); ok {
		return response, tier, nil
	}

	key := exactKey(normalize(text))
	v, err, _ := c.flight.Do(key, func() (any, error) {
		response, err := compute(ctx)
		if err != nil {
			return "", err
		}
		if ctx.Err() == nil {
			c.Put(ctx, text, response)
		}
		return response, nil
	})
	if err != nil {
		return "", TierNone, err
	}
	return v.(string), TierNone, nil
}

// Stats returns a snapshot of counters and occupancy.
func (c *Cache) Stats() Stats {
	return c.exact.stats()
}

// Entries returns copies of all cached entries, most recently used
// first. For the status surface.
func (c *Cache) Entries() []Entry {
	return c.exact.entries()
}

// Close releases the persistence handle, if any.
func (c *Cache) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
