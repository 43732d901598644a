package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// ErrMalformed is returned by Load when the file exists but cannot be
// parsed. The returned settings are the defaults.
var ErrMalformed = errors.New("malformed settings file")

// Paths holds the source and destination folders.
type Paths struct {
	SourceDir string `toml:"source_dir"`
	OutputDir string `toml:"output_dir"`
	HistoryDB string `toml:"history_db"`
}

// Conversion holds encoding defaults and liveness limits.
type Conversion struct {
	Quality         string `toml:"quality"`
	Resolution      string `toml:"resolution"`
	DeleteOriginals bool   `toml:"delete_originals"`
	BackupSuffix    string `toml:"backup_suffix"`
	FileTimeout     string `toml:"file_timeout"`
	PollInterval    string `toml:"poll_interval"`
	WatchdogIdle    string `toml:"watchdog_idle"`
}

// Scan holds file discovery options.
type Scan struct {
	IncludeCompatible bool   `toml:"include_compatible"`
	LargeFileMB       int64  `toml:"large_file_mb"`
	ProbeLargeFiles   bool   `toml:"probe_large_files"`
	BatchSize         int    `toml:"batch_size"`
	EmitEvery         int    `toml:"emit_every"`
	Workers           int    `toml:"workers"`
	SkipHidden        bool   `toml:"skip_hidden"`
	ProbeTimeout      string `toml:"probe_timeout"`
}

// Cache sizes the probe result cache.
type Cache struct {
	Capacity int `toml:"capacity"`
}

// Monitor configures the resource monitor.
type Monitor struct {
	Enabled       bool    `toml:"enabled"`
	MemoryLimitMB int64   `toml:"memory_limit_mb"`
	HighWater     float64 `toml:"high_water"`
	CriticalWater float64 `toml:"critical_water"`
	Interval      string  `toml:"interval"`
}

// UI holds presentation state.
type UI struct {
	ShowLogs       bool   `toml:"show_logs"`
	LogLines       int    `toml:"log_lines"`
	EventsCapacity int    `toml:"events_capacity"`
	DrainBatch     int    `toml:"drain_batch"`
	Listen         string `toml:"listen"`
}

// Logging holds log output options.
type Logging struct {
	Level string `toml:"level"`
}

// Settings is the persisted preference file.
type Settings struct {
	Paths      Paths      `toml:"paths"`
	Conversion Conversion `toml:"conversion"`
	Scan       Scan       `toml:"scan"`
	Cache      Cache      `toml:"cache"`
	Monitor    Monitor    `toml:"monitor"`
	UI         UI         `toml:"ui"`
	Logging    Logging    `toml:"logging"`
}

// DefaultPath returns $XDG_CONFIG_HOME/video-converter/settings.toml,
// falling back to ~/.config.
func DefaultPath() (string, error) {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "video-converter", "settings.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "video-converter", "settings.toml"), nil
}

// Load reads path over the defaults. A missing file is not an error and
// yields the defaults with exists=false. Keys absent from the file keep
// their defaults.
func Load(path string) (s *Settings, exists bool, err error) {
	def := Default()
	def.normalize()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &def, false, nil
		}
		return &def, false, fmt.Errorf("read settings: %w", err)
	}

	loaded := Default()
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return &def, true, fmt.Errorf("%w %s: %v", ErrMalformed, path, err)
	}
	loaded.normalize()
	return &loaded, true, nil
}

// Save writes s to path atomically: the content goes to a temporary file
// in the same directory which is then renamed over path. Concurrent savers
// serialize on an advisory lock next to the file.
func (s *Settings) Save(path string) error {
	data, err := s.Encode()
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock settings: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync settings: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Durations parsed from the conversion and scan sections. Unparsable
// values fall back to the defaults.

// FileTimeout is the per-file transcode limit.
func (s *Settings) FileTimeout() time.Duration {
	return durationOr(s.Conversion.FileTimeout, 60*time.Minute)
}

// PollInterval is how often a running transcode is checked.
func (s *Settings) PollInterval() time.Duration {
	return durationOr(s.Conversion.PollInterval, 500*time.Millisecond)
}

// WatchdogIdle is how long a run may go without progress.
func (s *Settings) WatchdogIdle() time.Duration {
	return durationOr(s.Conversion.WatchdogIdle, 10*time.Minute)
}

// ProbeTimeout bounds a single ffprobe call.
func (s *Settings) ProbeTimeout() time.Duration {
	return durationOr(s.Scan.ProbeTimeout, 30*time.Second)
}

// LargeFileBytes is the size at or above which scan-time probing is
// skipped.
func (s *Settings) LargeFileBytes() int64 {
	return s.Scan.LargeFileMB * 1024 * 1024
}

func durationOr(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Encode returns the TOML form of s.
func (s *Settings) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
