// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountEmptyIsZero(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, 0, c.Count(""))
}

// Counting must work whether the real encoding loaded or the byte
// estimate engaged, so assertions are bounds, not exact values.
func TestCountGrowsWithText(t *testing.T) {
	c := Counter{}

	short := c.Count("hello world")
	long := c.Count(strings.Repeat("hello world ", 100))

	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)
	assert.GreaterOrEqual(t, long, 100)
}

func TestCountConcurrent(t *testing.T) {
	c := NewCounter()
	done := make(chan int, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- c.Count("concurrent counting test prompt")
		}()
	}
	first := <-done
	for i := 1; i < 8; i++ {
		assert.Equal(t, first, <-done)
	}
}
