// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package statusapi serves the local diagnostics endpoint.
//
// The server binds loopback by default and exposes read-only state:
// the hardware profile, the active runtime configs, breaker states, and
// cache statistics, plus prometheus metrics. It never exposes prompts,
// responses, or credentials.
package statusapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianEdge/internal/hardware"
	"github.com/AleutianAI/AleutianEdge/internal/router"
	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

// Deps are the read-only sources the server reports from.
type Deps struct {
	Router         *router.Router
	Profile        hardware.Profile
	CatalogVersion int
	Warnings       []string
	Registry       *prometheus.Registry
	Logger         *logging.Logger
}

// Server is the status HTTP server.
type Server struct {
	deps   Deps
	logger *logging.Logger
}

// New creates a Server.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Server{deps: deps, logger: deps.Logger.With("component", "statusapi")}
}

// statusResponse is the /v1/status payload.
type statusResponse struct {
	Hardware       hardwareView  `json:"hardware"`
	CatalogVersion int           `json:"catalog_version"`
	Router         router.Status `json:"router"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// hardwareView flattens the profile for JSON consumers.
type hardwareView struct {
	TotalMemory     uint64 `json:"total_memory"`
	AvailableMemory uint64 `json:"available_memory"`
	PhysicalCores   int    `json:"physical_cores"`
	LogicalCores    int    `json:"logical_cores"`
	CPUBrand        string `json:"cpu_brand,omitempty"`
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	Accelerator     string `json:"accelerator,omitempty"`
	AcceleratorMem  uint64 `json:"accelerator_memory,omitempty"`
}

// Handler builds the HTTP handler. Exposed separately from Serve for
// tests.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/v1/status", s.handleStatus)
	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if s.deps.Registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			s.deps.Registry, promhttp.HandlerOpts{},
		)))
	}
	return engine
}

func (s *Server) handleStatus(c *gin.Context) {
	view := hardwareView{
		TotalMemory:     s.deps.Profile.TotalMemory,
		AvailableMemory: s.deps.Profile.AvailableMemory,
		PhysicalCores:   s.deps.Profile.PhysicalCores,
		LogicalCores:    s.deps.Profile.LogicalCores,
		CPUBrand:        s.deps.Profile.CPUBrand,
		OS:              s.deps.Profile.OS,
		Arch:            s.deps.Profile.Arch,
	}
	if s.deps.Profile.HasAccelerator() {
		view.Accelerator = s.deps.Profile.Accelerator.Name
		view.AcceleratorMem = s.deps.Profile.Accelerator.Memory
	}

	resp := statusResponse{
		Hardware:       view,
		CatalogVersion: s.deps.CatalogVersion,
		Warnings:       s.deps.Warnings,
	}
	if s.deps.Router != nil {
		resp.Router = s.deps.Router.Status()
	}
	c.JSON(http.StatusOK, resp)
}

// Serve runs the server on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("status server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
