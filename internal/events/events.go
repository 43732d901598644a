package events

import (
	"fmt"
	"time"

	"video-converter/internal/media"
)

// Event is one message on the status bus. The set of implementations is
// closed: only the types in this file satisfy it.
type Event interface {
	// Kind names the event type on the wire.
	Kind() string
	isEvent()
}

// Log levels carried by LogEvent.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LogEvent is a line for the user-visible log.
type LogEvent struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// String formats the line the way the log panel shows it.
func (e LogEvent) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Time.Format("15:04:05"), e.Level, e.Message)
}

// ScanStatusEvent is a human readable scan progress message.
type ScanStatusEvent struct {
	Message string `json:"message"`
}

// RecordsEvent carries a batch of newly discovered records, in discovery
// order.
type RecordsEvent struct {
	Records []media.VideoRecord `json:"records"`
}

// ScanCompleteEvent is published once per scan, after the last
// RecordsEvent.
type ScanCompleteEvent struct {
	Count     int           `json:"count"`
	Errors    int           `json:"errors"`
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
}

// StatusEvent reports a record's new conversion status.
type StatusEvent struct {
	Path   string       `json:"path"`
	Status media.Status `json:"status"`
	Error  string       `json:"error,omitempty"`

	// Set when the record was probed just before its conversion.
	Format     string `json:"format,omitempty"`
	Codec      string `json:"codec,omitempty"`
	Compatible bool   `json:"compatible,omitempty"`
}

// ProgressEvent reports overall conversion progress. Fraction is the
// progress within the current file, when known.
type ProgressEvent struct {
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Path      string  `json:"path,omitempty"`
	Fraction  float64 `json:"fraction,omitempty"`
}

// Percent returns overall progress in the range 0-100.
func (e ProgressEvent) Percent() float64 {
	if e.Total <= 0 {
		return 0
	}
	p := (float64(e.Processed) + e.Fraction) / float64(e.Total) * 100
	if p > 100 {
		return 100
	}
	return p
}

// ConvertCompleteEvent is published once per conversion run.
type ConvertCompleteEvent struct {
	RunID     string        `json:"runId,omitempty"`
	Converted int           `json:"converted"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Elapsed   time.Duration `json:"elapsed"`
	Cancelled bool          `json:"cancelled"`
	Stuck     bool          `json:"stuck"`
}

// ResourceEvent is published by the resource monitor when memory pressure
// triggers relief.
type ResourceEvent struct {
	HeapBytes     uint64  `json:"heapBytes"`
	LimitBytes    int64   `json:"limitBytes"`
	Usage         float64 `json:"usage"`
	ResidentBytes uint64  `json:"residentBytes,omitempty"`
	CPU           float64 `json:"cpu,omitempty"`
	Relieved      bool    `json:"relieved"`
}

func (LogEvent) Kind() string             { return "log" }
func (ScanStatusEvent) Kind() string      { return "scan_status" }
func (RecordsEvent) Kind() string         { return "records" }
func (ScanCompleteEvent) Kind() string    { return "scan_complete" }
func (StatusEvent) Kind() string          { return "status" }
func (ProgressEvent) Kind() string        { return "progress" }
func (ConvertCompleteEvent) Kind() string { return "convert_complete" }
func (ResourceEvent) Kind() string        { return "resource" }

func (LogEvent) isEvent()             {}
func (ScanStatusEvent) isEvent()      {}
func (RecordsEvent) isEvent()         {}
func (ScanCompleteEvent) isEvent()    {}
func (StatusEvent) isEvent()          {}
func (ProgressEvent) isEvent()        {}
func (ConvertCompleteEvent) isEvent() {}
func (ResourceEvent) isEvent()        {}

// Terminal reports whether e ends an operation. Terminal events are never
// dropped by a full bus.
func Terminal(e Event) bool {
	switch e.(type) {
	case ScanCompleteEvent, ConvertCompleteEvent:
		return true
	default:
		return false
	}
}

// Envelope is the wire form of an event.
type Envelope struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// Wrap builds the wire form of e.
func Wrap(e Event) Envelope {
	return Envelope{Type: e.Kind(), Data: e}
}
