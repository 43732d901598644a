// Package startup holds build information and the sectioned log output
// printed while the converter starts and stops.
//
// Build-time variables are injected via ldflags and exposed via
// [GetBuildInfo]. [LoadEnv] reads the settings that only come from the
// environment:
//
//   - VIDEO_CONVERTER_CONFIG: settings file path (default: XDG config dir)
//   - LOG_HEALTH_CHECKS: log /healthz and /livez requests (default: false)
//   - METRICS_ENABLED: serve /metrics (default: true)
//
// Memory limits (MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT) are applied by the
// memory package and reported through [LogMemoryConfig].
package startup
