// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianEdge/internal/autoconfig"
	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

// LocalName is the breaker/metrics identity of the local backend.
const LocalName = "local"

// defaultMaxTokens bounds completion length when the caller sets nothing.
const defaultMaxTokens = 2048

// LocalClient talks to a llama.cpp server's /completion endpoint.
//
// Thread Safety: Safe for concurrent use.
type LocalClient struct {
	httpClient *http.Client
	baseURL    string
	params     Params
	logger     *logging.Logger
}

// LocalOption customizes a LocalClient.
type LocalOption func(*LocalClient)

// WithHTTPClient substitutes the HTTP client. Tests point this at an
// httptest server transport.
func WithHTTPClient(c *http.Client) LocalOption {
	return func(l *LocalClient) { l.httpClient = c }
}

// WithParams sets default sampling parameters for every request.
func WithParams(p Params) LocalOption {
	return func(l *LocalClient) { l.params = p }
}

// NewLocalClient creates a client for a llama.cpp server at baseURL.
func NewLocalClient(baseURL string, logger *logging.Logger, opts ...LocalOption) (*LocalClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("local backend: base URL is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &LocalClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger.With("backend", LocalName),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Name implements Provider.
func (l *LocalClient) Name() string {
	return LocalName
}

type completionPayload struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature *float32 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	CachePrompt bool     `json:"cache_prompt"`
}

type completionResponse struct {
	Content string `json:"content"`
}

// Generate implements Provider.
func (l *LocalClient) Generate(ctx context.Context, prompt string, cfg autoconfig.RuntimeConfig) (string, error) {
	payload := completionPayload{
		Prompt:      prompt,
		NPredict:    l.maxTokens(cfg),
		CachePrompt: true,
	}
	if l.params.Temperature > 0 {
		payload.Temperature = &l.params.Temperature
	}
	if l.params.TopK > 0 {
		payload.TopK = &l.params.TopK
	}
	if l.params.TopP > 0 {
		payload.TopP = &l.params.TopP
	}
	if len(l.params.Stop) > 0 {
		payload.Stop = l.params.Stop
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("local backend: marshal payload: %w", err)
	}

	url := l.baseURL + "/completion"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("local backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	l.logger.Debug("calling llama.cpp completion", "url", url, "n_predict", payload.NPredict)
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", classify(ctx, LocalName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", classify(ctx, LocalName, err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := KindBackend
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			kind = KindResourceExhausted
		}
		return "", &Error{
			Kind:    kind,
			Backend: LocalName,
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, firstLine(respBody)),
		}
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Kind: KindBackend, Backend: LocalName, Err: fmt.Errorf("parse response: %w", err)}
	}
	return parsed.Content, nil
}

// maxTokens caps the completion budget at half the context window so the
// prompt always has room.
func (l *LocalClient) maxTokens(cfg autoconfig.RuntimeConfig) int {
	budget := defaultMaxTokens
	if l.params.MaxTokens > 0 {
		budget = l.params.MaxTokens
	}
	if cfg.ContextSize > 0 && budget > cfg.ContextSize/2 {
		budget = cfg.ContextSize / 2
	}
	return budget
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
