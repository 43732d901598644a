package settings

const (
	defaultSourceDir       = "~/OneDrive/Pictures/DCIM"
	defaultOutputDir       = "~/Desktop/Converted_Videos"
	defaultHistoryDB       = "~/.local/share/video-converter/history.db"
	defaultQuality         = "medium"
	defaultResolution      = "1920x1080"
	defaultBackupSuffix    = ".backup"
	defaultFileTimeout     = "60m"
	defaultPollInterval    = "500ms"
	defaultWatchdogIdle    = "10m"
	defaultLargeFileMB     = 500
	defaultBatchSize       = 50
	defaultEmitEvery       = 10
	defaultProbeTimeout    = "30s"
	defaultCacheCapacity   = 1000
	defaultHighWater       = 0.7
	defaultCriticalWater   = 0.85
	defaultMonitorInterval = "5s"
	defaultLogLines        = 500
	defaultEventsCapacity  = 1024
	defaultDrainBatch      = 64
	defaultListen          = "127.0.0.1:8089"
	defaultLogLevel        = "info"
)

// Default returns the settings used when the file or a key is missing.
// Paths are not yet expanded.
func Default() Settings {
	return Settings{
		Paths: Paths{
			SourceDir: defaultSourceDir,
			OutputDir: defaultOutputDir,
			HistoryDB: defaultHistoryDB,
		},
		Conversion: Conversion{
			Quality:      defaultQuality,
			Resolution:   defaultResolution,
			BackupSuffix: defaultBackupSuffix,
			FileTimeout:  defaultFileTimeout,
			PollInterval: defaultPollInterval,
			WatchdogIdle: defaultWatchdogIdle,
		},
		Scan: Scan{
			IncludeCompatible: true,
			LargeFileMB:       defaultLargeFileMB,
			BatchSize:         defaultBatchSize,
			EmitEvery:         defaultEmitEvery,
			SkipHidden:        true,
			ProbeTimeout:      defaultProbeTimeout,
		},
		Cache: Cache{
			Capacity: defaultCacheCapacity,
		},
		Monitor: Monitor{
			Enabled:       true,
			HighWater:     defaultHighWater,
			CriticalWater: defaultCriticalWater,
			Interval:      defaultMonitorInterval,
		},
		UI: UI{
			LogLines:       defaultLogLines,
			EventsCapacity: defaultEventsCapacity,
			DrainBatch:     defaultDrainBatch,
			Listen:         defaultListen,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
