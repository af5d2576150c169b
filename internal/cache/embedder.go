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

	"github.com/tmc/langchaingo/embeddings"
)

// LangchainEmbedder adapts a langchaingo embeddings client to the
// Embedder capability.
type LangchainEmbedder struct {
	inner embeddings.Embedder
}

// NewLangchainEmbedder wraps an embeddings client.
func NewLangchainEmbedder(inner embeddings.Embedder) *LangchainEmbedder {
	return &LangchainEmbedder{inner: inner}
}

// Embed implements Embedder.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.inner.EmbedQuery(ctx, text)
}
