// Package metrics declares the Prometheus metrics exported by the video
// converter.
//
// All metrics are registered with promauto at package initialisation and
// carry the video_converter_ prefix. Call [InitializeMetrics] once at
// startup so labelled series exist before the first scrape.
//
// # Metric Groups
//
//   - HTTP: request counts, durations, in-flight requests, event stream clients
//   - Scanner: runs by outcome, files discovered, per-file errors
//   - Probe: ffprobe invocations by result and their duration
//   - Cache: hits, misses, evictions and size per named cache
//   - Status bus: published and dropped events, queue depth
//   - Conversion: per-file outcomes, durations, killed processes, watchdog trips
//   - History: journal query counts and durations
//   - Resources: heap usage ratio, RSS, CPU ratio, relief passes
//   - Filesystem: operation timings and stale-handle retries
//
// # Periodic Collection
//
// [Collector] polls a [StatsProvider] (the session) on an interval and
// publishes record counts per status:
//
//	collector := metrics.NewCollector(sess, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Filesystem Observer
//
// The filesystem package reports through an observer interface instead of
// importing this package directly:
//
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
package metrics
