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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianEdge/internal/compat"
	"github.com/AleutianAI/AleutianEdge/internal/hardware"
	"github.com/AleutianAI/AleutianEdge/pkg/logging"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List catalog models and their fit for this host",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{Quiet: !verbose})
	profile := hardware.NewProfiler(logger).Profile(context.Background())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tMEMORY\tQUALITY\tSPEED\tFIT")
	for _, m := range cat.Models() {
		verdict := compat.Check(m, profile)
		fit := "ok"
		switch {
		case verdict.Blocked:
			fit = "blocked"
		case len(verdict.Warnings) > 0:
			fit = "degraded"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.ID, formatBytes(m.MinMemory), m.Quality, m.Speed, fit)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\ncatalog version %d, %d models\n", cat.Version(), cat.Len())
	return nil
}
