// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package router

import (
	"strings"

	"github.com/AleutianAI/AleutianEdge/internal/tokens"
)

// Complexity is the estimated difficulty class of a request. The Dynamic
// strategy maps Simple and Medium to the fast model and Complex to the
// quality model.
type Complexity int

const (
	// ComplexitySimple covers autocomplete-scale prompts and syntax
	// questions.
	ComplexitySimple Complexity = iota

	// ComplexityMedium covers function-scale generation.
	ComplexityMedium

	// ComplexityComplex covers architecture, debugging, and long prompts.
	ComplexityComplex
)

// String returns the metrics label for the complexity class.
func (c Complexity) String() string {
	switch c {
	case ComplexitySimple:
		return "simple"
	case ComplexityMedium:
		return "medium"
	case ComplexityComplex:
		return "complex"
	default:
		return "unknown"
	}
}

// Token thresholds for the count-based estimate.
const (
	simpleTokenLimit = 200
	mediumTokenLimit = 1000
)

var complexKeywords = []string{
	"architecture", "design", "system", "refactor", "debug", "performance",
	"optimization", "security", "scaling", "distributed", "patterns", "algorithm",
}

var simpleKeywords = []string{
	"what is", "how to", "define", "explain", "syntax", "fix", "bug",
}

// classifier combines a token-count estimate with keyword analysis,
// taking the higher of the two classes when they disagree.
type classifier struct {
	counter *tokens.Counter
}

func newClassifier() *classifier {
	return &classifier{counter: tokens.NewCounter()}
}

// classify returns the complexity of prompt.
func (c *classifier) classify(prompt string) Complexity {
	byTokens := c.fromTokenCount(prompt)
	byContent := fromContent(prompt)
	if byContent > byTokens {
		return byContent
	}
	return byTokens
}

func (c *classifier) fromTokenCount(prompt string) Complexity {
	count := c.counter.Count(prompt)
	switch {
	case count <= simpleTokenLimit:
		return ComplexitySimple
	case count <= mediumTokenLimit:
		return ComplexityMedium
	default:
		return ComplexityComplex
	}
}

// fromContent scores keyword and structure signals. Complex keywords add
// 2, simple keywords subtract 1, prompt length and code fragments nudge
// the score upward.
func fromContent(prompt string) Complexity {
	score := 0.0
	lower := strings.ToLower(prompt)

	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			score += 2.0
		}
	}
	for _, kw := range simpleKeywords {
		if strings.Contains(lower, kw) {
			score -= 1.0
		}
	}

	lengthFactor := float64(len(prompt)) / 1000.0
	if lengthFactor > 5.0 {
		lengthFactor = 5.0
	}
	score += lengthFactor

	if strings.Contains(prompt, "func ") || strings.Contains(lower, "function") ||
		strings.Contains(lower, "class") {
		score += 0.5
	}
	if strings.Contains(prompt, "{") && strings.Contains(prompt, "}") {
		score += 0.3
	}

	switch {
	case score < 1.0:
		return ComplexitySimple
	case score < 3.0:
		return ComplexityMedium
	default:
		return ComplexityComplex
	}
}
