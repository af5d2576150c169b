// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tokens counts text tokens for cache metadata and complexity
// classification.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens with the cl100k_base encoding. When the encoding
// cannot be initialized (e.g. no network to fetch the BPE table on first
// use) it falls back to a bytes/4 estimate, so counting never fails.
//
// Thread Safety: Safe for concurrent use.
type Counter struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewCounter creates a Counter. The encoding loads lazily on first Count.
func NewCounter() *Counter {
	return &Counter{}
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			c.encoding = enc
		}
	})
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}
