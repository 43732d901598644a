package session

import (
	"fmt"
	"path/filepath"
	"strings"

	"video-converter/internal/events"
	"video-converter/internal/media"
	"video-converter/internal/metrics"
	"video-converter/internal/probe"
)

// Snapshot returns a copy of the list.
func (s *Session) Snapshot() []media.VideoRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]media.VideoRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Record returns the record for path.
func (s *Session) Record(path string) (media.VideoRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[path]
	if !ok {
		return media.VideoRecord{}, false
	}
	return s.records[i], true
}

// Selected returns the selected records in list order.
func (s *Session) Selected() []media.VideoRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedLocked()
}

func (s *Session) selectedLocked() []media.VideoRecord {
	var out []media.VideoRecord
	for _, r := range s.records {
		if r.Selected {
			out = append(out, r)
		}
	}
	return out
}

// Select sets the selection of one record.
func (s *Session) Select(path string, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	s.records[i].Selected = selected
	return nil
}

// SelectAll sets the selection of every record and returns how many there
// are.
func (s *Session) SelectAll(selected bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		s.records[i].Selected = selected
	}
	return len(s.records)
}

// SetStatus updates the status of the record at path. Unknown paths are
// ignored.
func (s *Session) SetStatus(path string, status media.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[path]; ok {
		s.records[i].Status = status
	}
}

// SetProbe applies metadata probed during conversion to the record at
// path. Unknown paths are ignored.
func (s *Session) SetProbe(path string, res probe.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[path]; ok {
		res.Apply(&s.records[i])
	}
}

// Apply folds a bus event into the list. Records stream in only while a
// scan of their folder runs; status events are applied by path.
func (s *Session) Apply(e events.Event) {
	switch e := e.(type) {
	case events.RecordsEvent:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.op == nil || s.op.kind != Scanning {
			return
		}
		for _, rec := range e.Records {
			if _, seen := s.index[rec.Path]; seen || !within(s.op.dir, rec.Path) {
				continue
			}
			s.index[rec.Path] = len(s.records)
			s.records = append(s.records, rec)
		}
	case events.StatusEvent:
		s.SetStatus(e.Path, e.Status)
		if e.Format != "" {
			s.SetProbe(e.Path, probe.Result{Format: e.Format, Codec: e.Codec, Compatible: e.Compatible})
		}
	}
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// GetStats counts records by status for the metrics collector.
func (s *Session) GetStats() metrics.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := metrics.Stats{TotalRecords: len(s.records), ByStatus: make(map[string]int)}
	for _, r := range s.records {
		if r.Selected {
			stats.Selected++
		}
		stats.ByStatus[r.Status.String()]++
	}
	return stats
}
