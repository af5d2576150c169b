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
	"math"
	"sync"
)

// vectorIndex is a flat in-memory nearest-neighbor index with point
// deletion. Linear scan is fine at cache scale: capacity is bounded by
// the exact tier, which evicts from here too.
//
// Thread Safety: Safe for concurrent use.
type vectorIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

func newVectorIndex() *vectorIndex {
	return &vectorIndex{vectors: make(map[string][]float32)}
}

// put stores the vector for a key, replacing any previous one.
func (idx *vectorIndex) put(key string, vector []float32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors[key] = vector
}

// remove deletes a key's vector. Missing keys are a no-op.
func (idx *vectorIndex) remove(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, key)
}

// nearest returns the key with the highest cosine similarity to query.
// ok is false when the index is empty or the query degenerate.
func (idx *vectorIndex) nearest(query []float32) (key string, similarity float64, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	best := -1.0
	for k, v := range idx.vectors {
		sim, valid := cosineSimilarity(query, v)
		if valid && sim > best {
			best = sim
			key = k
		}
	}
	if key == "" {
		return "", 0, false
	}
	return key, best, true
}

// has reports whether a key has a stored vector.
func (idx *vectorIndex) has(key string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.vectors[key]
	return ok
}

func (idx *vectorIndex) len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths and zero vectors are invalid rather than zero, so
// they can never win a nearest-neighbor search.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
