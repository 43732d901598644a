package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_converter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	EventStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_event_stream_clients",
			Help: "Number of connected event stream clients",
		},
	)
)

// Scanner metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_scan_runs_total",
			Help: "Total number of scans by outcome",
		},
		[]string{"outcome"}, // "completed", "cancelled"
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_scan_last_run_duration_seconds",
			Help: "Duration of the last scan in seconds",
		},
	)

	ScanFilesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_scan_files_discovered_total",
			Help: "Total number of video files discovered by the scanner",
		},
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_scan_errors_total",
			Help: "Total number of files skipped because of per-file scan errors",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_scan_running",
			Help: "Whether a scan is currently running (1 = running, 0 = idle)",
		},
	)
)

// Probe metrics
var (
	ProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_probe_total",
			Help: "Total number of ffprobe invocations by result",
		},
		[]string{"result"}, // "ok", "error", "timeout"
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_converter_probe_duration_seconds",
			Help:    "ffprobe invocation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ProbeSkippedLarge = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_probe_skipped_large_total",
			Help: "Files left unprobed during scan because they exceed the large-file threshold",
		},
	)
)

// Cache metrics
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_cache_evictions_total",
			Help: "Total number of least-recently-used evictions",
		},
		[]string{"cache"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_converter_cache_entries",
			Help: "Current number of cache entries",
		},
		[]string{"cache"},
	)
)

// Status bus metrics
var (
	BusPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_bus_published_total",
			Help: "Total number of events published to the status bus",
		},
	)

	BusDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_bus_dropped_total",
			Help: "Total number of events dropped because the status bus was full",
		},
	)

	BusQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_bus_queue_depth",
			Help: "Number of events waiting to be drained",
		},
	)
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_conversions_total",
			Help: "Total number of file conversions by final status",
		},
		[]string{"status"}, // "converted", "failed", "skipped"
	)

	ConversionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_converter_conversion_duration_seconds",
			Help:    "Per-file conversion duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	ConversionInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_conversion_in_progress",
			Help: "Whether a conversion run is active (1 = running, 0 = idle)",
		},
	)

	ConversionKills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_conversion_kills_total",
			Help: "Transcode processes killed by reason",
		},
		[]string{"reason"}, // "cancelled", "timeout", "stuck"
	)

	WatchdogTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_watchdog_trips_total",
			Help: "Total number of runs aborted by the idle watchdog",
		},
	)

	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_backups_total",
			Help: "Backups of originals made before deletion, by status",
		},
		[]string{"status"}, // "success", "error"
	)

	RecordsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_converter_records",
			Help: "Records in the current session by status",
		},
		[]string{"status"},
	)
)

// History journal metrics
var (
	HistoryQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_history_queries_total",
			Help: "Total number of history database queries",
		},
		[]string{"operation", "status"},
	)

	HistoryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_converter_history_query_duration_seconds",
			Help:    "History database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Resource monitor metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_memory_usage_ratio",
			Help: "Current heap usage as a ratio of the configured limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_memory_paused",
			Help: "Whether memory usage is above the critical watermark (1 = yes)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_memory_gc_pauses_total",
			Help: "Total number of forced garbage collections",
		},
	)

	MemoryReliefTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_memory_relief_total",
			Help: "Total number of times caches and queues were cleared under memory pressure",
		},
	)

	ProcessResidentBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_process_resident_bytes",
			Help: "Resident set size sampled by the resource monitor",
		},
	)

	ProcessCPURatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_process_cpu_ratio",
			Help: "Process CPU usage between the last two samples, as a ratio of one core",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_converter_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_converter_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)
