package media

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnknownFormat is the container label of a file that has not been probed,
// or whose probe failed.
const UnknownFormat = "Unknown"

// Status is the conversion state of a single record.
type Status int

const (
	// StatusReady means the record is waiting to be converted.
	StatusReady Status = iota
	// StatusConverting means a transcode is running for the record.
	StatusConverting
	// StatusConverted means the output file was produced.
	StatusConverted
	// StatusFailed means the transcode failed, timed out or was cancelled.
	StatusFailed
	// StatusSkipped means the destination already existed.
	StatusSkipped
)

var statusNames = map[Status]string{
	StatusReady:      "ready",
	StatusConverting: "converting",
	StatusConverted:  "converted",
	StatusFailed:     "failed",
	StatusSkipped:    "skipped",
}

// String returns the lowercase name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Label returns the capitalized name used in tables and logs.
func (s Status) Label() string {
	name := s.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// Terminal reports whether the status is a final conversion outcome.
func (s Status) Terminal() bool {
	return s == StatusConverted || s == StatusFailed || s == StatusSkipped
}

// ParseStatus converts a status name back into a Status.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return StatusReady, fmt.Errorf("unknown status %q", name)
}

// MarshalJSON encodes the status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// VideoRecord is one discovered source video. Path is its identity: it is
// unique within a scan and every cross-goroutine reference to a record uses
// it.
type VideoRecord struct {
	Path       string `json:"path"`
	SizeBytes  int64  `json:"sizeBytes"`
	Format     string `json:"format"`
	Codec      string `json:"codec,omitempty"`
	Compatible bool   `json:"compatible"`
	Selected   bool   `json:"selected"`
	Status     Status `json:"status"`
}

// NewVideoRecord returns a freshly discovered, selected, unprobed record.
func NewVideoRecord(path string, size int64) VideoRecord {
	return VideoRecord{
		Path:      path,
		SizeBytes: size,
		Format:    UnknownFormat,
		Selected:  true,
		Status:    StatusReady,
	}
}

// Probed reports whether the record carries a real container label.
func (r VideoRecord) Probed() bool {
	return r.Format != "" && r.Format != UnknownFormat
}

// SizeMB returns the file size in mebibytes.
func (r VideoRecord) SizeMB() float64 {
	return float64(r.SizeBytes) / (1024 * 1024)
}
