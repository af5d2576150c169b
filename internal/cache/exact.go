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
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// normalize collapses runs of whitespace to single spaces and trims the
// ends, so formatting differences do not defeat the exact tier.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// exactKey is the hex digest of normalized text.
func exactKey(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// exactTier is the digest-keyed LRU tier.
//
// Thread Safety: Safe for concurrent use.
type exactTier struct {
	maxSize int

	mu     sync.Mutex
	byKey  map[string]*list.Element // values are *Entry
	order  *list.List               // front = most recently used
	counts Stats
}

func newExactTier(maxSize int) *exactTier {
	return &exactTier{
		maxSize: maxSize,
		byKey:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// get returns the response for key and bumps hit count and recency.
func (t *exactTier) get(key string, now time.Time) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elem, ok := t.byKey[key]
	if !ok {
		return "", false
	}
	entry := elem.Value.(*Entry)
	entry.HitCount++
	entry.LastAccess = now
	t.order.MoveToFront(elem)
	t.counts.ExactHits++
	return entry.Response, true
}

// put inserts or replaces an entry, returning the keys evicted to make
// room so the caller can clean the vector index and store.
func (t *exactTier) put(entry Entry) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if elem, ok := t.byKey[entry.Key]; ok {
		*elem.Value.(*Entry) = entry
		t.order.MoveToFront(elem)
		return nil
	}

	var evicted []string
	for t.order.Len() >= t.maxSize {
		back := t.order.Back()
		if back == nil {
			break
		}
		victim := back.Value.(*Entry)
		delete(t.byKey, victim.Key)
		t.order.Remove(back)
		t.counts.Evictions++
		evicted = append(evicted, victim.Key)
	}

	e := entry
	t.byKey[entry.Key] = t.order.PushFront(&e)
	return evicted
}

// recordSemanticHit reclassifies the hit the inner get just counted as
// exact: the lookup came through the vector index.
func (t *exactTier) recordSemanticHit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts.ExactHits--
	t.counts.SemanticHits++
}

func (t *exactTier) recordMiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts.Misses++
}

func (t *exactTier) stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.counts
	s.Entries = t.order.Len()
	s.MaxSize = t.maxSize
	return s
}

// entries returns copies, most recently used first.
func (t *exactTier) entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, t.order.Len())
	for elem := t.order.Front(); elem != nil; elem = elem.Next() {
		out = append(out, *elem.Value.(*Entry))
	}
	return out
}
