// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGCSExporterRequiresBucket(t *testing.T) {
	_, err := NewGCSExporter(context.Background(), "", "logs", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")
}

func TestNewGCSExporterMissingCredentialsFile(t *testing.T) {
	_, err := NewGCSExporter(context.Background(), "edge-logs", "logs",
		"/nonexistent/sa-key.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials file not found")
	assert.Contains(t, err.Error(), "/nonexistent/sa-key.json")
}

// Export must buffer without touching the network until a batch fills,
// so a partially configured exporter never needs a live client here.
func TestExportBuffersBelowBatchSize(t *testing.T) {
	e := &GCSExporter{bucket: "edge-logs", prefix: "logs"}

	for i := 0; i < gcsBatchSize-1; i++ {
		err := e.Export(context.Background(), LogEntry{
			Timestamp: time.Now(),
			Level:     LevelInfo,
			Message:   "buffered",
			Service:   "edge",
		})
		require.NoError(t, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Len(t, e.pending, gcsBatchSize-1)
}
