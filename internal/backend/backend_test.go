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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianEdge/internal/autoconfig"
	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func runtimeConfig() autoconfig.RuntimeConfig {
	return autoconfig.RuntimeConfig{ModelID: "test", ContextSize: 4096, Threads: 4}
}

// ====================================================================
// Local adapter
// ====================================================================

func TestLocalGenerate(t *testing.T) {
	var gotPayload completionPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/completion", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(completionResponse{Content: "func main() {}"})
	}))
	defer srv.Close()

	client, err := NewLocalClient(srv.URL, quietLogger())
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "write main", runtimeConfig())
	require.NoError(t, err)
	assert.Equal(t, "func main() {}", out)
	assert.Equal(t, "write main", gotPayload.Prompt)
	// 2048 default capped at half the 4096 context window.
	assert.Equal(t, 2048, gotPayload.NPredict)
	assert.True(t, gotPayload.CachePrompt)
}

func TestLocalGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewLocalClient(srv.URL, quietLogger())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "p", runtimeConfig())
	require.Error(t, err)
	assert.Equal(t, KindBackend, KindOf(err))
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestLocalGenerateSaturated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewLocalClient(srv.URL, quietLogger())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "p", runtimeConfig())
	assert.Equal(t, KindResourceExhausted, KindOf(err))
}

func TestLocalGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel r.Context().
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := NewLocalClient(srv.URL, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Generate(ctx, "p", runtimeConfig())
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestLocalGenerateCancelled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := NewLocalClient(srv.URL, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err = client.Generate(ctx, "p", runtimeConfig())
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.False(t, IsRetryable(err))
}

func TestLocalRequiresBaseURL(t *testing.T) {
	_, err := NewLocalClient("", quietLogger())
	assert.Error(t, err)
}

func TestLocalMaxTokensRespectsParams(t *testing.T) {
	client, err := NewLocalClient("http://localhost:8080", quietLogger(),
		WithParams(Params{MaxTokens: 256}))
	require.NoError(t, err)
	assert.Equal(t, 256, client.maxTokens(runtimeConfig()))

	tiny := runtimeConfig()
	tiny.ContextSize = 128
	assert.Equal(t, 64, client.maxTokens(tiny))
}

// ====================================================================
// Remote adapter
// ====================================================================

type staticKey string

func (s staticKey) Reveal() (string, error) { return string(s), nil }

type stubAPI struct {
	resp openai.ChatCompletionResponse
	err  error
	got  openai.ChatCompletionRequest
}

func (s *stubAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.got = req
	return s.resp, s.err
}

func newStubbedRemote(t *testing.T, stub *stubAPI) *RemoteClient {
	t.Helper()
	client, err := NewRemoteClient(RemoteConfig{Model: "gpt-4o-mini"}, staticKey("sk-test"), quietLogger())
	require.NoError(t, err)
	client.newClient = func(string) openaiAPI { return stub }
	return client
}

func TestRemoteGenerate(t *testing.T) {
	stub := &stubAPI{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "answer"}},
		},
	}}
	client := newStubbedRemote(t, stub)

	out, err := client.Generate(context.Background(), "question", runtimeConfig())
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, "gpt-4o-mini", stub.got.Model)
	require.Len(t, stub.got.Messages, 1)
	assert.Equal(t, "question", stub.got.Messages[0].Content)
	assert.Equal(t, 2048, stub.got.MaxCompletionTokens)
}

func TestRemoteClassifiesRateLimit(t *testing.T) {
	stub := &stubAPI{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}}
	client := newStubbedRemote(t, stub)

	_, err := client.Generate(context.Background(), "q", runtimeConfig())
	assert.Equal(t, KindResourceExhausted, KindOf(err))
}

func TestRemoteEmptyChoices(t *testing.T) {
	stub := &stubAPI{resp: openai.ChatCompletionResponse{}}
	client := newStubbedRemote(t, stub)

	_, err := client.Generate(context.Background(), "q", runtimeConfig())
	assert.Equal(t, KindBackend, KindOf(err))
}

func TestRemoteKeySourceFailure(t *testing.T) {
	client, err := NewRemoteClient(RemoteConfig{}, failingKey{}, quietLogger())
	require.NoError(t, err)
	client.newClient = func(string) openaiAPI {
		t.Fatal("client must not be built without a key")
		return nil
	}

	_, err = client.Generate(context.Background(), "q", runtimeConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reveal api key")
}

type failingKey struct{}

func (failingKey) Reveal() (string, error) { return "", errors.New("enclave sealed") }

func TestRemoteRequiresKeySource(t *testing.T) {
	_, err := NewRemoteClient(RemoteConfig{}, nil, quietLogger())
	assert.Error(t, err)
}

// ====================================================================
// Error taxonomy
// ====================================================================

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindBackend, KindOf(errors.New("plain")))
}

func TestErrorMessageNamesBackendAndKind(t *testing.T) {
	err := &Error{Kind: KindTimeout, Backend: "local", Err: errors.New("deadline")}
	assert.Contains(t, err.Error(), "local")
	assert.Contains(t, err.Error(), "timeout")
	assert.Equal(t, "deadline", errors.Unwrap(err).Error())
}
