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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianEdge/pkg/logging"

	"github.com/AleutianAI/AleutianEdge/internal/hardware"
)

var hardwareCmd = &cobra.Command{
	Use:   "hardware",
	Short: "Show the detected hardware profile",
	RunE:  runHardware,
}

func init() {
	rootCmd.AddCommand(hardwareCmd)
}

func runHardware(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.Config{Quiet: !verbose})
	profile := hardware.NewProfiler(logger).Profile(context.Background())

	fmt.Printf("OS:               %s/%s\n", profile.OS, profile.Arch)
	if profile.CPUBrand != "" {
		fmt.Printf("CPU:              %s\n", profile.CPUBrand)
	}
	fmt.Printf("Cores:            %d physical, %d logical\n",
		profile.PhysicalCores, profile.LogicalCores)
	fmt.Printf("Memory:           %s total, %s available\n",
		formatBytes(profile.TotalMemory), formatBytes(profile.AvailableMemory))
	if profile.FreeDisk > 0 {
		fmt.Printf("Free disk:        %s\n", formatBytes(profile.FreeDisk))
	}
	if profile.HasAccelerator() {
		fmt.Printf("Accelerator:      %s (%s)\n",
			profile.Accelerator.Name, formatBytes(profile.Accelerator.Memory))
	} else {
		fmt.Println("Accelerator:      none detected")
	}
	return nil
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
