/*
Package workers sizes the goroutine pools used by the scanner.

GOMAXPROCS is used instead of runtime.NumCPU so that container CPU limits
are respected:

	// Wrong: host CPUs, ignores the container limit
	n := runtime.NumCPU()

	// Correct: respects the container limit (Go 1.19+)
	n := runtime.GOMAXPROCS(0)

# Probe Pool

Probing runs one external ffprobe per worker. The work is mostly waiting on
the child process and on disk, so the pool uses the I/O multiplier but is
capped at [DefaultProbeLimit] to keep the number of concurrent children
modest:

	n := workers.ForProbe(cfg.Workers, 0)

# Environment Variable Override

VIDEO_CONVERTER_PROBE_WORKERS pins the automatic calculation (the cap still
applies):

	VIDEO_CONVERTER_PROBE_WORKERS=2 video-converter scan ~/Videos
*/
package workers
