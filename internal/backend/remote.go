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
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianEdge/internal/autoconfig"
	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

// RemoteName is the breaker/metrics identity of the remote backend.
const RemoteName = "openai"

const defaultRemoteModel = "gpt-4o-mini"

// KeySource reveals an API key on demand. The key is fetched per request
// and never stored on the client, so a rotated secret takes effect
// without a restart. The secrets package provides the real
// implementation.
type KeySource interface {
	Reveal() (string, error)
}

// RemoteConfig configures the remote adapter.
type RemoteConfig struct {
	// Model is the remote model name. Default: gpt-4o-mini.
	Model string

	// RequestsPerMinute throttles outbound calls. Zero disables the
	// limiter.
	RequestsPerMinute int

	// BaseURL overrides the API endpoint, for compatible gateways and
	// tests.
	BaseURL string

	// SystemPrompt is prepended to every request. Empty means the API
	// default persona.
	SystemPrompt string
}

// RemoteClient calls an OpenAI-compatible completion API. It is the
// escape hatch for prompts the local model cannot serve well; the rate
// limiter keeps a routing mistake from turning into a surprise bill.
//
// Thread Safety: Safe for concurrent use.
type RemoteClient struct {
	config  RemoteConfig
	keys    KeySource
	limiter *rate.Limiter
	logger  *logging.Logger

	// newClient builds the API client per call so the key is never
	// retained. Replaced in tests.
	newClient func(key string) openaiAPI
}

type openaiAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewRemoteClient creates the remote adapter. keys must not be nil.
func NewRemoteClient(config RemoteConfig, keys KeySource, logger *logging.Logger) (*RemoteClient, error) {
	if keys == nil {
		return nil, fmt.Errorf("remote backend: key source is required")
	}
	if config.Model == "" {
		config.Model = defaultRemoteModel
	}
	if logger == nil {
		logger = logging.Default()
	}

	var limiter *rate.Limiter
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), config.RequestsPerMinute)
	}

	r := &RemoteClient{
		config:  config,
		keys:    keys,
		limiter: limiter,
		logger:  logger.With("backend", RemoteName, "model", config.Model),
	}
	r.newClient = func(key string) openaiAPI {
		cfg := openai.DefaultConfig(key)
		if config.BaseURL != "" {
			cfg.BaseURL = config.BaseURL
		}
		return openai.NewClientWithConfig(cfg)
	}
	return r, nil
}

// Name implements Provider.
func (r *RemoteClient) Name() string {
	return RemoteName
}

// Generate implements Provider.
func (r *RemoteClient) Generate(ctx context.Context, prompt string, cfg autoconfig.RuntimeConfig) (string, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", classify(ctx, RemoteName, err)
		}
	}

	key, err := r.keys.Reveal()
	if err != nil {
		return "", &Error{Kind: KindBackend, Backend: RemoteName, Err: fmt.Errorf("reveal api key: %w", err)}
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	if r.config.SystemPrompt != "" {
		messages = append([]openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.config.SystemPrompt},
		}, messages...)
	}

	req := openai.ChatCompletionRequest{
		Model:    r.config.Model,
		Messages: messages,
	}
	if cfg.ContextSize > 0 {
		req.MaxCompletionTokens = cfg.ContextSize / 2
	}

	r.logger.Debug("calling remote completion")
	resp, err := r.newClient(key).CreateChatCompletion(ctx, req)
	if err != nil {
		return "", r.classifyAPIError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindBackend, Backend: RemoteName, Err: errors.New("empty choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyAPIError maps API error status codes into the taxonomy.
func (r *RemoteClient) classifyAPIError(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := KindBackend
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			kind = KindResourceExhausted
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			kind = KindTimeout
		}
		return &Error{Kind: kind, Backend: RemoteName, Err: err}
	}
	return classify(ctx, RemoteName, err)
}
