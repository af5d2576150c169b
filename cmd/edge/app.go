// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/AleutianAI/AleutianEdge/internal/autoconfig"
	"github.com/AleutianAI/AleutianEdge/internal/backend"
	"github.com/AleutianAI/AleutianEdge/internal/breaker"
	"github.com/AleutianAI/AleutianEdge/internal/cache"
	"github.com/AleutianAI/AleutianEdge/internal/catalog"
	"github.com/AleutianAI/AleutianEdge/internal/config"
	"github.com/AleutianAI/AleutianEdge/internal/hardware"
	"github.com/AleutianAI/AleutianEdge/internal/router"
	"github.com/AleutianAI/AleutianEdge/internal/secrets"
	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

// app is the composition root. Everything is constructed here and
// passed down; no package keeps global instances.
type app struct {
	cfg      config.Config
	logger   *logging.Logger
	profile  hardware.Profile
	catalog  *catalog.Catalog
	runtime  autoconfig.RuntimeConfig
	pair     autoconfig.Pair
	cache    *cache.Cache
	router   *router.Router
	registry *prometheus.Registry
	warnings []string
}

// buildApp wires the full stack from configuration and hardware.
func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger := newLogger(ctx, cfg)

	profile := hardware.NewProfiler(logger).Profile(ctx)
	logger.Info("hardware profiled",
		"total_memory", profile.TotalMemory,
		"available_memory", profile.AvailableMemory,
		"physical_cores", profile.PhysicalCores,
		"accelerator", profile.HasAccelerator(),
	)

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	engine := autoconfig.New(logger)
	runtime, err := engine.ConfigureWithPin(profile, cat, cfg.Model)
	if err != nil {
		return nil, err
	}
	pair, err := engine.ConfigurePair(profile, cat)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := router.NewMetrics(registry)

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown.Std(),
	}).WithTransitionHook(func(name string, _, to breaker.State) {
		metrics.RecordBreakerTransition(name, to.String())
	})

	responseCache, err := buildCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	local, err := backend.NewLocalClient(cfg.Local.BaseURL, logger)
	if err != nil {
		return nil, err
	}

	var remote backend.Provider
	if cfg.Remote.Enabled {
		key, err := secrets.Load(cfg.Remote.APIKeyEnv, cfg.Remote.APIKeyFile)
		if err != nil {
			logger.Warn("remote backend disabled, no credential available", "error", err)
		} else {
			logger.Info("remote credential loaded", "source", key.Source())
			remote, err = backend.NewRemoteClient(backend.RemoteConfig{
				Model:             cfg.Remote.Model,
				BaseURL:           cfg.Remote.BaseURL,
				RequestsPerMinute: cfg.Remote.RequestsPerMinute,
				SystemPrompt:      cfg.Remote.SystemPrompt,
			}, key, logger)
			if err != nil {
				return nil, err
			}
		}
	}

	strategy, err := resolveStrategy(cfg, pair, remote != nil, logger)
	if err != nil {
		return nil, err
	}

	rt, err := router.New(router.Config{
		Strategy: strategy,
		Timeout:  cfg.Timeout.Std(),
		Runtime:  runtime,
		Pair:     pair,
	}, router.Deps{
		Local:    local,
		Remote:   remote,
		Cache:    responseCache,
		Breakers: breakers,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	if len(cfg.Cache.Warm) > 0 {
		warmer := cache.NewWarmer(responseCache, logger)
		go warmer.Warm(ctx, cfg.Cache.Warm)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		profile:  profile,
		catalog:  cat,
		runtime:  runtime,
		pair:     pair,
		cache:    responseCache,
		router:   rt,
		registry: registry,
		warnings: runtime.Warnings,
	}, nil
}

// close releases the app's resources in reverse construction order.
func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close failed", "error", err)
	}
	if err := a.logger.Close(); err != nil {
		fmt.Println("logger close failed:", err)
	}
}

func newLogger(ctx context.Context, cfg config.Config) *logging.Logger {
	level := logging.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	if verbose {
		level = logging.LevelDebug
	}

	logCfg := logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "edge",
		JSON:    cfg.Logging.JSON,
	}

	var exportErr error
	if cfg.Logging.Export.Bucket != "" {
		exporter, err := logging.NewGCSExporter(ctx,
			cfg.Logging.Export.Bucket,
			cfg.Logging.Export.Prefix,
			cfg.Logging.Export.CredentialsFile,
		)
		if err != nil {
			exportErr = err
		} else {
			logCfg.Exporter = exporter
		}
	}

	logger := logging.New(logCfg)
	if exportErr != nil {
		logger.Warn("log export disabled, gcs exporter unavailable", "error", exportErr)
	}
	return logger
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		return catalog.LoadFile(cfg.CatalogPath)
	}
	return catalog.Default(), nil
}

func buildCache(cfg config.Config, logger *logging.Logger) (*cache.Cache, error) {
	cacheCfg := cache.Config{
		MaxSize:             cfg.Cache.MaxSize,
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		Logger:              logger,
	}
	if cfg.Cache.Embeddings.Enabled {
		embedder, err := buildEmbedder(cfg)
		if err != nil {
			logger.Warn("semantic cache tier disabled, embeddings client unavailable", "error", err)
		} else {
			cacheCfg.Embedder = embedder
		}
	}
	if cfg.Cache.PersistDir != "" {
		store, err := cache.OpenBadgerStore(cfg.Cache.PersistDir)
		if err != nil {
			logger.Warn("cache persistence disabled", "error", err)
		} else {
			cacheCfg.Store = store
		}
	}
	return cache.New(cacheCfg), nil
}

// buildEmbedder constructs the embedding client for the semantic cache
// tier, authenticated with the same credential as the remote backend.
func buildEmbedder(cfg config.Config) (cache.Embedder, error) {
	key, err := secrets.Load(cfg.Remote.APIKeyEnv, cfg.Remote.APIKeyFile)
	if err != nil {
		return nil, err
	}
	token, err := key.Reveal()
	if err != nil {
		return nil, err
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Cache.Embeddings.Model),
	}
	if cfg.Cache.Embeddings.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Cache.Embeddings.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create embeddings client: %w", err)
	}
	inner, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return cache.NewLangchainEmbedder(inner), nil
}

// resolveStrategy applies the user's pinned strategy or derives one from
// the hardware: dynamic when the host fits two models, hybrid when a
// remote backend exists, local-only otherwise.
func resolveStrategy(cfg config.Config, pair autoconfig.Pair, haveRemote bool,
	logger *logging.Logger) (router.Strategy, error) {

	if cfg.Strategy != "" {
		strategy, err := router.ParseStrategy(cfg.Strategy)
		if err != nil {
			return 0, err
		}
		if strategy == router.StrategyCloudOnly && !haveRemote {
			return 0, fmt.Errorf("strategy cloud_only requires remote.enabled and a credential")
		}
		if strategy == router.StrategyHybrid && !haveRemote {
			logger.Warn("hybrid strategy without a remote backend degrades to local-only behavior")
		}
		return strategy, nil
	}

	var strategy router.Strategy
	switch {
	case !pair.Collapsed():
		strategy = router.StrategyDynamic
	case haveRemote:
		strategy = router.StrategyHybrid
	default:
		strategy = router.StrategyLocalOnly
	}
	logger.Info("strategy selected by hardware", "strategy", strategy.String())
	return strategy, nil
}
