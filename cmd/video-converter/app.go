package main

import (
	"context"
	"fmt"

	"video-converter/internal/cache"
	"video-converter/internal/converter"
	"video-converter/internal/events"
	"video-converter/internal/history"
	"video-converter/internal/logging"
	"video-converter/internal/memory"
	"video-converter/internal/probe"
	"video-converter/internal/scanner"
	"video-converter/internal/session"
	"video-converter/internal/settings"
)

// runOverrides are per-invocation flag values layered over the settings.
type runOverrides struct {
	output            string
	quality           string
	resolution        string
	includeCompatible bool
	deleteOriginals   bool
	noHistory         bool
}

// app is the set of components shared by the scan, convert and serve
// commands.
type app struct {
	cfg     *settings.Settings
	bus     *events.Bus
	probes  *probe.Cached
	session *session.Session
	history *history.Store
	// monitor is nil when [monitor] is disabled.
	monitor *memory.Monitor
}

type appOptions struct {
	ffmpeg  string
	ffprobe string
	// launcher replaces the ffmpeg process launcher in tests.
	launcher converter.Launcher
	// prober replaces ffprobe in tests.
	prober      probe.Prober
	withHistory bool
}

func newApp(ctx context.Context, cfg *settings.Settings, opts appOptions) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	quality, err := converter.ParseQuality(cfg.Conversion.Quality)
	if err != nil {
		return nil, err
	}

	entries, err := cache.New[string, probe.Entry]("probe", cfg.Cache.Capacity)
	if err != nil {
		return nil, fmt.Errorf("probe cache: %w", err)
	}
	var base probe.Prober = probe.NewFFprobe(opts.ffprobe, cfg.ProbeTimeout())
	if opts.prober != nil {
		base = opts.prober
	}
	probes := probe.NewCached(base, entries)

	bus := events.New(cfg.UI.EventsCapacity)

	scanCfg := scanner.Config{
		Workers:           cfg.Scan.Workers,
		BatchSize:         cfg.Scan.BatchSize,
		EmitEvery:         cfg.Scan.EmitEvery,
		LargeFileBytes:    cfg.LargeFileBytes(),
		ProbeLargeFiles:   cfg.Scan.ProbeLargeFiles,
		IncludeCompatible: cfg.Scan.IncludeCompatible,
		SkipHidden:        cfg.Scan.SkipHidden,
	}

	convCfg := converter.Config{
		Binary: opts.ffmpeg,
		Options: converter.Options{
			Quality:    quality,
			Resolution: cfg.Conversion.Resolution,
		},
		DeleteOriginals: cfg.Conversion.DeleteOriginals,
		BackupSuffix:    cfg.Conversion.BackupSuffix,
		FileTimeout:     cfg.FileTimeout(),
		PollInterval:    cfg.PollInterval(),
		WatchdogIdle:    cfg.WatchdogIdle(),
	}

	launcher := opts.launcher
	if launcher == nil {
		launcher = converter.ExecLauncher{}
	}

	a := &app{cfg: cfg, bus: bus, probes: probes}

	scan := scanner.New(scanCfg, probes, bus)
	if cfg.Monitor.Enabled {
		a.monitor = newMonitor(cfg, probes, bus)
		scan.SetPauser(a.monitor)
	}

	sessOpts := session.Options{
		Scanner:  scan,
		Launcher: launcher,
		Prober:   probes,
		Bus:      bus,
		Convert:  convCfg,
	}

	if opts.withHistory && cfg.Paths.HistoryDB != "" {
		store, err := history.Open(ctx, cfg.Paths.HistoryDB)
		if err != nil {
			// The journal is optional; conversions still run without it.
			logging.Warn("History disabled: %v", err)
		} else {
			a.history = store
			sessOpts.Recorder = store
		}
	}

	a.session = session.New(sessOpts)
	return a, nil
}

// newMonitor builds the resource monitor with the probe cache and the
// event queue as relievers.
func newMonitor(cfg *settings.Settings, probes *probe.Cached, bus *events.Bus) *memory.Monitor {
	m := memory.NewMonitor(memory.ConfigFromMB(
		cfg.Monitor.MemoryLimitMB, cfg.Monitor.HighWater, cfg.Monitor.CriticalWater, cfg.Monitor.Interval))
	m.AddReliever("probe-cache", probes.Purge)
	m.AddReliever("event-bus", func() {
		if n := bus.Clear(); n > 0 {
			logging.Warn("Dropped %d queued events to relieve memory pressure", n)
		}
	})
	m.SetPublisher(bus)
	return m
}

// startMonitor starts resource sampling when the monitor is enabled.
func (a *app) startMonitor() {
	if a.monitor != nil {
		a.monitor.Start()
	}
}

// Close stops the monitor and releases the history database.
func (a *app) Close() error {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

// applyOverrides copies changed flags onto cfg.
func applyOverrides(cfg *settings.Settings, o runOverrides, changed func(string) bool) {
	if changed("output") {
		cfg.Paths.OutputDir = settings.ExpandPath(o.output)
	}
	if changed("quality") {
		cfg.Conversion.Quality = o.quality
	}
	if changed("resolution") {
		cfg.Conversion.Resolution = o.resolution
	}
	if changed("include-compatible") {
		cfg.Scan.IncludeCompatible = o.includeCompatible
	}
	if changed("delete-originals") {
		cfg.Conversion.DeleteOriginals = o.deleteOriginals
	}
}

// sourceArg returns the folder argument or the configured source folder.
func sourceArg(cfg *settings.Settings, args []string) string {
	if len(args) > 0 && args[0] != "" {
		return settings.ExpandPath(args[0])
	}
	return cfg.Paths.SourceDir
}
