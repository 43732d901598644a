package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"video-converter/internal/deps"
	"video-converter/internal/events"
	"video-converter/internal/filesystem"
	"video-converter/internal/handlers"
	"video-converter/internal/logging"
	"video-converter/internal/memory"
	"video-converter/internal/metrics"
	"video-converter/internal/settings"
	"video-converter/internal/startup"
)

const (
	shutdownTimeout = 30 * time.Second
	statsInterval   = 15 * time.Second
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control API and event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startTime := time.Now()
			startup.Begin()

			cfg, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			run := *cfg
			if cmd.Flags().Changed("listen") {
				run.UI.Listen = listen
			}
			startup.LogSettings(&run, ctx.settingsPath, ctx.settingsExists)
			startup.LogMemoryConfig(memory.ConfigureFromEnv())

			ffmpeg, ffprobe := ctx.tools()
			statuses, err := deps.Require(cmd.Context(), deps.Default(ffmpeg, ffprobe))
			startup.LogDependencies(statuses)
			if err != nil {
				startup.LogFatal("%v", err)
			}

			historyStart := time.Now()
			a, err := newApp(cmd.Context(), &run, appOptions{ffmpeg: ffmpeg, ffprobe: ffprobe, withHistory: true})
			if err != nil {
				return err
			}
			defer a.Close()
			if a.history != nil {
				startup.LogHistoryInit(a.history.Path(), time.Since(historyStart))
			}

			return serve(cmd.Context(), ctx, a, startTime)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from settings)")
	return cmd
}

func serve(parent context.Context, cctx *commandContext, a *app, startTime time.Time) error {
	env := startup.LoadEnv()

	// Background operations outlive the request that started them.
	baseCtx, cancelOps := context.WithCancel(context.Background())
	defer cancelOps()

	logs := events.NewLogBuffer(a.cfg.UI.LogLines)
	h := handlers.New(handlers.Options{
		Session:     a.session,
		Bus:         a.bus,
		Logs:        logs,
		History:     a.history,
		Monitor:     a.monitor,
		Settings:    a.cfg,
		BaseContext: baseCtx,
	})

	pumpCfg := events.DefaultPumpConfig()
	if a.cfg.UI.DrainBatch > 0 {
		pumpCfg.MaxBatch = a.cfg.UI.DrainBatch
	}
	pumpCtx, stopPump := context.WithCancel(context.Background())
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		a.bus.Pump(pumpCtx, pumpCfg, h.HandleEvents)
	}()

	a.startMonitor()

	var collector *metrics.Collector
	if env.MetricsEnabled {
		metrics.InitializeMetrics()
		filesystem.SetObserver(metrics.NewFilesystemObserver())
		collector = metrics.NewCollector(a.session, statsInterval)
		collector.Start()
	}

	router := h.Router(handlers.RouterConfig{
		MetricsEnabled:  env.MetricsEnabled,
		LogHealthChecks: env.LogHealthChecks,
	})
	startup.LogHTTPRoutes(router, env.LogHealthChecks)

	srv := &http.Server{
		Addr:        a.cfg.UI.Listen,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Event stream connections are long lived
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		startup.LogServerStarted(startup.ServerConfig{
			Addr:            srv.Addr,
			MetricsEnabled:  env.MetricsEnabled,
			StartupDuration: time.Since(startTime),
		})
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-sigCtx.Done():
		startup.LogShutdownInitiated("interrupt")
	case err := <-serveErr:
		if err != nil {
			runErr = err
			logging.Error("Server error: %v", err)
			startup.LogShutdownInitiated("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Cancelling running operation")
	if a.session.Cancel() {
		if err := a.session.Wait(shutdownCtx); err != nil {
			logging.Warn("Operation did not stop in time: %v", err)
		}
	}
	cancelOps()
	startup.LogShutdownStepComplete("Operations stopped")

	startup.LogShutdownStep("Closing event streams")
	h.Hub().Close()
	startup.LogShutdownStepComplete("Event streams closed")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	stopPump()
	<-pumpDone
	if collector != nil {
		collector.Stop()
	}

	startup.LogShutdownStep("Saving settings")
	if cctx.settingsMalformed {
		logging.Warn("Settings file %s is malformed; not overwriting it", cctx.settingsPath)
	} else if err := saveSettings(h.Settings(), cctx.settingsPath); err != nil {
		logging.Warn("Failed to save settings: %v", err)
	} else {
		startup.LogShutdownStepComplete("Settings saved")
	}

	startup.LogShutdownComplete()
	return runErr
}

func saveSettings(s settings.Settings, path string) error {
	if path == "" {
		return errors.New("no settings path")
	}
	return s.Save(path)
}
