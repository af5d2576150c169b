// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build !linux && !darwin

package hardware

// Unsupported platforms degrade to zero values; the profiler fills in
// conservative fallbacks and never errors.

func readMemory() (uint64, uint64) { return 0, 0 }

func readPhysicalCores() int { return 0 }

func readCPUBrand() string { return "" }

func readFreeDisk(path string) uint64 { return 0 }
