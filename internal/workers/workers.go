package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns the number of workers to run for a given task profile.
// GOMAXPROCS tracks container CPU limits (Go 1.19+), so sizing off it
// behaves correctly under cgroup quotas.
//
// The multiplier adjusts for workload characteristics:
//   - 1.0 for CPU-bound work (image resizing, transcoding supervision)
//   - 2.0 for I/O-bound work (storage writes, probes)
//   - 1.5 for mixed work
//
// The limit parameter caps the worker count; use 0 for no cap.
//
// INGEST_WORKERS overrides the computed count when set.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("INGEST_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
