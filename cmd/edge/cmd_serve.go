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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianEdge/internal/config"
	"github.com/AleutianAI/AleutianEdge/internal/statusapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status server until interrupted",
	Long: `Run the status and metrics endpoint. The config file is watched and
changes are logged; restart to apply them.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Status.Enabled {
		return fmt.Errorf("status server disabled in config (status.enabled: false)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	go func() {
		err := config.Watch(ctx, configPath, a.logger, func(next config.Config) {
			a.logger.Info("config file changed, restart to apply",
				"strategy", next.Strategy,
				"model", next.Model,
			)
		})
		if err != nil && ctx.Err() == nil {
			a.logger.Warn("config watch stopped", "error", err)
		}
	}()

	server := statusapi.New(statusapi.Deps{
		Router:         a.router,
		Profile:        a.profile,
		CatalogVersion: a.catalog.Version(),
		Warnings:       a.warnings,
		Registry:       a.registry,
		Logger:         a.logger,
	})
	return server.Serve(ctx, cfg.Status.Addr)
}
