// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianEdge/internal/autoconfig"
	"github.com/AleutianAI/AleutianEdge/internal/backend"
	"github.com/AleutianAI/AleutianEdge/internal/breaker"
	"github.com/AleutianAI/AleutianEdge/internal/cache"
	"github.com/AleutianAI/AleutianEdge/internal/hardware"
	"github.com/AleutianAI/AleutianEdge/internal/router"
	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "local" }
func (stubProvider) Generate(context.Context, string, autoconfig.RuntimeConfig) (string, error) {
	return "ok", nil
}

var _ backend.Provider = stubProvider{}

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := logging.New(logging.Config{Quiet: true})

	r, err := router.New(router.Config{
		Strategy: router.StrategyLocalOnly,
		Runtime:  autoconfig.RuntimeConfig{ModelID: "qwen2.5-coder-3b-q4", ContextSize: 4096},
	}, router.Deps{
		Local:    stubProvider{},
		Cache:    cache.New(cache.Config{MaxSize: 10, Logger: logger}),
		Breakers: breaker.NewRegistry(breaker.DefaultConfig()),
		Logger:   logger,
	})
	require.NoError(t, err)

	gib := uint64(1024 * 1024 * 1024)
	return New(Deps{
		Router: r,
		Profile: hardware.Profile{
			TotalMemory:     16 * gib,
			AvailableMemory: 10 * gib,
			PhysicalCores:   8,
			LogicalCores:    16,
			OS:              "linux",
			Arch:            "amd64",
			Accelerator:     &hardware.Accelerator{Name: "RTX 3060", Memory: 12 * gib},
		},
		CatalogVersion: 3,
		Warnings:       []string{"high memory pressure"},
		Registry:       prometheus.NewRegistry(),
		Logger:         logger,
	})
}

func TestStatusEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.CatalogVersion)
	assert.Equal(t, 8, resp.Hardware.PhysicalCores)
	assert.Equal(t, "RTX 3060", resp.Hardware.Accelerator)
	assert.Equal(t, "local_only", resp.Router.Strategy)
	assert.Equal(t, "qwen2.5-coder-3b-q4", resp.Router.Runtime.ModelID)
	assert.Contains(t, resp.Warnings, "high memory pressure")
}

func TestStatusNeverExposesSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-super-secret")
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	assert.NotContains(t, rec.Body.String(), "sk-super-secret")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
