package startup

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"video-converter/internal/deps"
	"video-converter/internal/logging"
	"video-converter/internal/memory"
	"video-converter/internal/settings"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Env holds settings that only come from the environment
type Env struct {
	// ConfigPath overrides the settings file location
	ConfigPath      string
	LogHealthChecks bool
	MetricsEnabled  bool
}

// LoadEnv reads VIDEO_CONVERTER_CONFIG, LOG_HEALTH_CHECKS and METRICS_ENABLED.
func LoadEnv() Env {
	return Env{
		ConfigPath:      getEnv("VIDEO_CONVERTER_CONFIG", ""),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", false),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
	}
}

// Begin prints the banner and system information.
func Begin() {
	printBanner()
	logSystemInfo()
}

func section(title string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("%s", title)
	logging.Info("------------------------------------------------------------")
}

// LogSettings logs where settings came from and their effective values.
func LogSettings(s *settings.Settings, path string, exists bool) {
	section("CONFIGURATION")
	if exists {
		logging.Info("  Settings file:       %s", path)
	} else {
		logging.Info("  Settings file:       %s (not found, using defaults)", path)
	}
	logging.Info("  Source folder:       %s", s.Paths.SourceDir)
	logging.Info("  Output folder:       %s", s.Paths.OutputDir)
	logging.Info("  History database:    %s", s.Paths.HistoryDB)
	logging.Info("  Quality:             %s", s.Conversion.Quality)
	logging.Info("  Resolution:          %s", s.Conversion.Resolution)
	logging.Info("  Delete originals:    %s", enabledString(s.Conversion.DeleteOriginals))
	logging.Info("  File timeout:        %s", s.Conversion.FileTimeout)
	logging.Info("  Watchdog idle:       %s", s.Conversion.WatchdogIdle)
	logging.Info("  Include compatible:  %s", enabledString(s.Scan.IncludeCompatible))
	logging.Info("  Large file (MB):     %d", s.Scan.LargeFileMB)
	logging.Info("  Probe cache size:    %d", s.Cache.Capacity)
	logging.Info("  Resource monitor:    %s", enabledString(s.Monitor.Enabled))
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

// LogMemoryConfig logs how the Go memory limit was set.
func LogMemoryConfig(r memory.ConfigResult) {
	if !r.Configured {
		logging.Debug("  Memory limit:        none")
		return
	}
	logging.Info("  Memory limit:        %d bytes via %s", r.GoMemLimit, r.Source)
}

// LogDependencies logs the result of the external tool check.
func LogDependencies(statuses []deps.Status) {
	section("DEPENDENCIES")
	for _, s := range statuses {
		if s.OK() {
			logging.Info("  [OK] %-8s %s", s.Tool.Name, s.Version)
			continue
		}
		logging.Error("  [MISSING] %-8s %s", s.Tool.Name, s.Message())
	}
}

// LogHistoryInit logs history database initialization
func LogHistoryInit(path string, duration time.Duration) {
	section("HISTORY")
	logging.Info("  [OK] %s opened in %v", path, duration)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered routes at debug level, grouped by prefix
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}
		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		logging.Debug("  Registered routes (%d total):", len(routes))
		for _, group := range groupKeys {
			label := group
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup returns the first path segment, or api/<segment> for API
// routes.
func getRouteGroup(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	first := parts[0]
	if first == "api" && len(parts) > 1 {
		sub, _, _ := strings.Cut(parts[1], "/")
		return "api/" + sub
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Addr            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Control API:     http://%s/api", config.Addr)
	logging.Info("  Event stream:    ws://%s/api/events", config.Addr)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://%s/metrics", config.Addr)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func printBanner() {
	banner := `
------------------------------------------------------------
 _   ___    __              _____                          __
| | / (_)__/ /__ ___    ___/ ___/__  ___ _  _____ ____/ /____ ____
| |/ / / _  / -_) _ \  /__/ /__/ _ \/ _ \ |/ / -_) __/ __/ -_) __/
|___/_/\_,_/\__/\___/     \___/\___/_//_/___/\__/_/  \__/\__/_/

------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
