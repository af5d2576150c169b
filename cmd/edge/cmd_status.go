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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianEdge/pkg/ux"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show runtime status",
	Long: `Show runtime status. When a serve instance is running its live state
is reported; otherwise the state a fresh instance would start with is
computed and printed.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if body, err := fetchStatus(cfg.Status.Addr); err == nil {
		os.Stdout.Write(body)
		fmt.Println()
		return nil
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := json.MarshalIndent(a.router.Status(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	for _, w := range a.warnings {
		ux.Warning(os.Stderr, "%s", w)
	}
	return nil
}

// fetchStatus asks a running serve instance for its state.
func fetchStatus(addr string) ([]byte, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
