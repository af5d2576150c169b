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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianEdge/internal/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "edge",
	Short: "Local-first LLM runtime selector and router",
	Long: `edge profiles the host, picks the best model it can run, and routes
completion requests between the local inference server and an optional
cloud backend with caching and circuit breaking.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(),
		"path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

// defaultConfigPath is ~/.aleutian-edge/edge.yaml, falling back to the
// working directory when the home dir is unknown.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "edge.yaml"
	}
	return filepath.Join(home, ".aleutian-edge", "edge.yaml")
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}
