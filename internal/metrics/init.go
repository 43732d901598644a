package metrics

// Volumes are the filesystem volume labels used for filesystem metrics.
var Volumes = []string{"source", "output", "unknown"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range []string{"completed", "cancelled"} {
		ScanRunsTotal.WithLabelValues(outcome)
	}

	for _, result := range []string{"ok", "error", "timeout"} {
		ProbeTotal.WithLabelValues(result)
	}

	for _, name := range []string{"probe"} {
		CacheHits.WithLabelValues(name)
		CacheMisses.WithLabelValues(name)
		CacheEvictions.WithLabelValues(name)
		CacheEntries.WithLabelValues(name)
	}

	for _, status := range []string{"converted", "failed", "skipped"} {
		ConversionsTotal.WithLabelValues(status)
	}

	for _, reason := range []string{"cancelled", "timeout", "stuck"} {
		ConversionKills.WithLabelValues(reason)
	}

	for _, status := range []string{"success", "error"} {
		BackupsTotal.WithLabelValues(status)
	}

	for _, status := range []string{"ready", "converting", "converted", "failed", "skipped"} {
		RecordsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"initialize_schema", "begin_run", "record_item", "finish_run", "list_runs", "list_items"} {
		HistoryQueryTotal.WithLabelValues(op, "success")
		HistoryQueryTotal.WithLabelValues(op, "error")
		HistoryQueryDuration.WithLabelValues(op)
	}

	// --- Filesystem operation metrics (per volume × operation) ---
	for _, vol := range Volumes {
		for _, op := range []string{"stat", "open", "copy", "rename"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
	}

	// --- Filesystem retry metrics (per retry-operation × volume) ---
	for _, op := range []string{"stat", "open"} {
		for _, vol := range Volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
