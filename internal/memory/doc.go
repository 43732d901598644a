// Package memory watches the converter's own resource usage and relieves
// pressure before the process is killed.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main. It sets GOMEMLIMIT from the
// container limit:
//
//   - GOMEMLIMIT: standard Go variable. If set, it wins.
//   - MEMORY_LIMIT: container memory limit in bytes.
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap, 0.0-1.0.
//     Defaults to 0.75 so ffmpeg and ffprobe keep the rest.
//
// # Monitoring
//
// A [Monitor] samples the Go heap every CheckInterval, along with resident
// memory and CPU from /proc where it exists. When the heap crosses the high
// water mark it runs every registered reliever, forces a collection, logs a
// warning and publishes an events.ResourceEvent:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.AddReliever("probe-cache", prober.Purge)
//	monitor.AddReliever("status-bus", func() { bus.Clear() })
//	monitor.SetPublisher(bus)
//	monitor.Start()
//	defer monitor.Stop()
//
// The monitor is advisory. Crossing the critical water mark sets
// [Monitor.IsPaused]; the scanner then holds further batches in
// [Monitor.WaitIfPaused] until usage drops below the high water mark.
// Nothing is cancelled on its behalf.
package memory
