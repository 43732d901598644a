package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride is the environment variable that pins the worker count.
const EnvOverride = "VIDEO_CONVERTER_PROBE_WORKERS"

// DefaultProbeLimit caps the metadata probe pool. Each worker runs an
// external ffprobe process, so the pool stays small even on large hosts.
const DefaultProbeLimit = 4

// Count returns the number of workers for a given task type.
// It respects container CPU limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//
// The limit parameter caps the worker count. Use 0 for no limit.
//
// Can be overridden with the VIDEO_CONVERTER_PROBE_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
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

// ForProbe returns the size of the metadata probe pool. A positive
// configured value is used as-is (still capped by limit); zero means
// derive it from the available CPUs.
func ForProbe(configured, limit int) int {
	if limit <= 0 {
		limit = DefaultProbeLimit
	}
	if configured > 0 {
		if configured > limit {
			return limit
		}
		return configured
	}
	return ForIO(limit)
}
