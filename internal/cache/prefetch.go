// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"

	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

// WarmEntry is a (prompt, response) pair to pre-insert on startup.
type WarmEntry struct {
	Prompt   string `yaml:"prompt" json:"prompt"`
	Response string `yaml:"response" json:"response"`
}

// Warmer pre-populates the cache in the background so common prompts hit
// from the first request. All work is best-effort: failures are logged
// and swallowed.
type Warmer struct {
	cache  *Cache
	logger *logging.Logger
}

// NewWarmer creates a Warmer for cache.
func NewWarmer(c *Cache, logger *logging.Logger) *Warmer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Warmer{cache: c, logger: logger.With("component", "cache-warmer")}
}

// Warm inserts the given pairs and re-embeds entries that survived a
// restart without vectors (store reloads are exact-only). Blocks until
// done or ctx is cancelled; callers run it in a goroutine.
func (w *Warmer) Warm(ctx context.Context, entries []WarmEntry) {
	inserted := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			w.logger.Debug("cache warm cancelled", "inserted", inserted)
			return
		}
		if e.Prompt == "" || e.Response == "" {
			continue
		}
		w.cache.Put(ctx, e.Prompt, e.Response)
		inserted++
	}

	reembedded := w.reembed(ctx)
	w.logger.Info("cache warm complete", "inserted", inserted, "reembedded", reembedded)
}

// reembed restores semantic coverage for reloaded entries.
func (w *Warmer) reembed(ctx context.Context) int {
	if w.cache.embedder == nil {
		return 0
	}

	count := 0
	for _, entry := range w.cache.Entries() {
		if ctx.Err() != nil {
			return count
		}
		if w.cache.index.has(entry.Key) {
			continue
		}
		vector, err := w.cache.embedder.Embed(ctx, entry.Prompt)
		if err != nil {
			w.logger.Debug("re-embed failed", "key", entry.Key, "error", err)
			continue
		}
		w.cache.index.put(entry.Key, vector)
		count++
	}
	return count
}
