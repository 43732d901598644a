package settings

import (
	"os"
	"path/filepath"
	"strings"
)

func (s *Settings) normalize() {
	s.Paths.SourceDir = expandPath(s.Paths.SourceDir)
	s.Paths.OutputDir = expandPath(s.Paths.OutputDir)
	s.Paths.HistoryDB = expandPath(s.Paths.HistoryDB)

	s.Conversion.Quality = strings.ToLower(strings.TrimSpace(s.Conversion.Quality))
	if s.Conversion.Quality == "" {
		s.Conversion.Quality = defaultQuality
	}
	s.Conversion.Resolution = strings.TrimSpace(s.Conversion.Resolution)
	if s.Conversion.Resolution == "" {
		s.Conversion.Resolution = defaultResolution
	}
	if strings.TrimSpace(s.Conversion.BackupSuffix) == "" {
		s.Conversion.BackupSuffix = defaultBackupSuffix
	}

	if s.Scan.LargeFileMB <= 0 {
		s.Scan.LargeFileMB = defaultLargeFileMB
	}
	if s.Scan.BatchSize <= 0 {
		s.Scan.BatchSize = defaultBatchSize
	}
	if s.Scan.EmitEvery <= 0 {
		s.Scan.EmitEvery = defaultEmitEvery
	}
	if s.Scan.Workers < 0 {
		s.Scan.Workers = 0
	}
	if s.Cache.Capacity <= 0 {
		s.Cache.Capacity = defaultCacheCapacity
	}

	if s.UI.LogLines <= 0 {
		s.UI.LogLines = defaultLogLines
	}
	if s.UI.EventsCapacity <= 0 {
		s.UI.EventsCapacity = defaultEventsCapacity
	}
	if s.UI.DrainBatch <= 0 {
		s.UI.DrainBatch = defaultDrainBatch
	}
	s.UI.Listen = strings.TrimSpace(s.UI.Listen)
	if s.UI.Listen == "" {
		s.UI.Listen = defaultListen
	}

	s.Logging.Level = strings.ToLower(strings.TrimSpace(s.Logging.Level))
	if s.Logging.Level == "" {
		s.Logging.Level = defaultLogLevel
	}
}

// ExpandPath resolves a leading ~ to the home directory and cleans the
// result. Paths that cannot be expanded are returned unchanged.
func ExpandPath(p string) string {
	return expandPath(p)
}

func expandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		if p == "~" {
			p = home
		} else if p[1] == '/' || p[1] == '\\' {
			p = filepath.Join(home, p[2:])
		}
	}
	return filepath.Clean(p)
}
