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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsBatchSize is how many entries accumulate before an upload.
const gcsBatchSize = 256

// GCSExporter ships log entries to a GCS bucket as newline-delimited
// JSON objects, one object per batch. Export buffers in memory and never
// blocks on the network; uploads happen on batch rollover and on Flush.
//
// Thread Safety: Safe for concurrent use.
type GCSExporter struct {
	client *storage.Client
	bucket string
	prefix string

	mu      sync.Mutex
	pending []LogEntry
}

// NewGCSExporter creates an exporter writing to bucket under prefix.
// credentialsFile may be empty to use ambient credentials.
func NewGCSExporter(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSExporter, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs log exporter: bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("gcs log exporter: credentials file not found: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs log exporter: %w", err)
	}
	return &GCSExporter{client: client, bucket: bucket, prefix: prefix}, nil
}

// Export implements LogExporter. Entries buffer until a batch fills.
func (e *GCSExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	e.pending = append(e.pending, entry)
	var batch []LogEntry
	if len(e.pending) >= gcsBatchSize {
		batch = e.pending
		e.pending = nil
	}
	e.mu.Unlock()

	if batch != nil {
		return e.upload(ctx, batch)
	}
	return nil
}

// Flush implements LogExporter, uploading whatever is buffered.
func (e *GCSExporter) Flush(ctx context.Context) error {
	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return e.upload(ctx, batch)
}

// Close implements LogExporter.
func (e *GCSExporter) Close() error {
	return e.client.Close()
}

// upload writes one batch as a single NDJSON object named by timestamp.
func (e *GCSExporter) upload(ctx context.Context, batch []LogEntry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, entry := range batch {
		record := map[string]any{
			"timestamp": entry.Timestamp.Format(time.RFC3339Nano),
			"level":     entry.Level.String(),
			"message":   entry.Message,
			"service":   entry.Service,
		}
		for k, v := range entry.Attrs {
			record[k] = v
		}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encode log batch: %w", err)
		}
	}

	name := fmt.Sprintf("%s/%s-%d.ndjson", e.prefix,
		time.Now().UTC().Format("2006-01-02T15-04-05"), len(batch))
	w := e.client.Bucket(e.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return fmt.Errorf("upload log batch to gs://%s/%s: %w", e.bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize log batch gs://%s/%s: %w", e.bucket, name, err)
	}
	return nil
}

var _ LogExporter = (*GCSExporter)(nil)
