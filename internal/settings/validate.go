package settings

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// OriginalResolution keeps the source dimensions.
const OriginalResolution = "Original"

// Qualities lists the accepted conversion.quality values.
var Qualities = []string{"high", "medium", "low"}

// ParseResolution parses "Original" or "WxH". ok is false for Original.
func ParseResolution(v string) (width, height int, ok bool, err error) {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, OriginalResolution) {
		return 0, 0, false, nil
	}
	w, h, found := strings.Cut(strings.ToLower(v), "x")
	if !found {
		return 0, 0, false, fmt.Errorf("resolution %q: want WxH or %s", v, OriginalResolution)
	}
	width, err = strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, false, fmt.Errorf("resolution %q: bad width", v)
	}
	height, err = strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, false, fmt.Errorf("resolution %q: bad height", v)
	}
	return width, height, true, nil
}

// Validate reports every invalid value in s.
func (s *Settings) Validate() error {
	var errs []error

	if !slices.Contains(Qualities, s.Conversion.Quality) {
		errs = append(errs, fmt.Errorf("conversion.quality %q: want one of %s", s.Conversion.Quality, strings.Join(Qualities, ", ")))
	}
	if _, _, _, err := ParseResolution(s.Conversion.Resolution); err != nil {
		errs = append(errs, fmt.Errorf("conversion.resolution: %w", err))
	}
	if strings.ContainsAny(s.Conversion.BackupSuffix, `/\`) {
		errs = append(errs, fmt.Errorf("conversion.backup_suffix %q must not contain a path separator", s.Conversion.BackupSuffix))
	}

	for key, v := range map[string]string{
		"conversion.file_timeout":  s.Conversion.FileTimeout,
		"conversion.poll_interval": s.Conversion.PollInterval,
		"conversion.watchdog_idle": s.Conversion.WatchdogIdle,
		"scan.probe_timeout":       s.Scan.ProbeTimeout,
		"monitor.interval":         s.Monitor.Interval,
	} {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s %q: want a positive duration", key, v))
		}
	}

	if s.Monitor.HighWater <= 0 || s.Monitor.HighWater > 1 {
		errs = append(errs, fmt.Errorf("monitor.high_water %.2f: want 0-1", s.Monitor.HighWater))
	}
	if s.Monitor.CriticalWater < s.Monitor.HighWater || s.Monitor.CriticalWater > 1 {
		errs = append(errs, fmt.Errorf("monitor.critical_water %.2f: want high_water-1", s.Monitor.CriticalWater))
	}
	if s.Monitor.MemoryLimitMB < 0 {
		errs = append(errs, errors.New("monitor.memory_limit_mb must not be negative"))
	}

	switch s.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q: want debug, info, warn or error", s.Logging.Level))
	}

	return errors.Join(errs...)
}
