package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"video-converter/internal/converter"
	"video-converter/internal/logging"
	"video-converter/internal/media"
	"video-converter/internal/probe"
	"video-converter/internal/scanner"
)

var (
	// ErrBusy is returned when a scan or conversion is already running.
	ErrBusy = errors.New("another operation is running")
	// ErrNothingSelected is returned when a conversion has no records.
	ErrNothingSelected = errors.New("no videos selected")
	// ErrUnknownPath is returned for a path that is not in the list.
	ErrUnknownPath = errors.New("video not in list")
	// ErrOutputInvalid is returned when the output folder cannot be used.
	ErrOutputInvalid = errors.New("output folder is not usable")
)

// Kind names the running operation.
type Kind string

const (
	Idle       Kind = ""
	Scanning   Kind = "scan"
	Converting Kind = "convert"
)

// Options wires a session to its collaborators.
type Options struct {
	Scanner  *scanner.Scanner
	Launcher converter.Launcher
	Prober   probe.Prober
	Recorder converter.Recorder
	Bus      converter.Publisher
	// Convert is the base conversion config. SourceRoot is taken from the
	// last scan.
	Convert converter.Config
}

type operation struct {
	kind   Kind
	dir    string
	cancel context.CancelFunc
	done   chan struct{}
}

// Session is safe for concurrent use.
type Session struct {
	opts Options

	mu          sync.RWMutex
	records     []media.VideoRecord
	index       map[string]int
	sourceDir   string
	op          *operation
	lastScan    scanner.Result
	lastSummary *converter.Summary
}

// New creates an empty session.
func New(opts Options) *Session {
	return &Session{opts: opts, index: make(map[string]int)}
}

// Busy returns the running operation, or Idle.
func (s *Session) Busy() Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.op == nil {
		return Idle
	}
	return s.op.kind
}

// SourceDir returns the folder of the last scan.
func (s *Session) SourceDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceDir
}

// StartScan validates dir and scans it in the background, replacing the
// list. Nothing changes when it returns an error. The returned channel is
// closed once the list has settled.
func (s *Session) StartScan(ctx context.Context, dir string) (<-chan struct{}, error) {
	if s.opts.Scanner == nil {
		return nil, errors.New("no scanner configured")
	}
	dir = filepath.Clean(dir)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.op != nil {
		return nil, fmt.Errorf("%w: %s", ErrBusy, s.op.kind)
	}

	ctx, cancel := context.WithCancel(ctx)
	task, err := s.opts.Scanner.Start(ctx, dir)
	if err != nil {
		cancel()
		return nil, err
	}

	s.records = nil
	s.index = make(map[string]int)
	s.sourceDir = dir
	op := &operation{kind: Scanning, dir: dir, cancel: cancel, done: make(chan struct{})}
	s.op = op

	go func() {
		defer close(op.done)
		defer cancel()
		res := task.Result()
		s.settleScan(res)
	}()
	return op.done, nil
}

// settleScan replaces the streamed list with the scan result, keeping
// selection changes made while the scan ran.
func (s *Session) settleScan(res scanner.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]media.VideoRecord, len(res.Records))
	index := make(map[string]int, len(res.Records))
	for i, rec := range res.Records {
		if j, ok := s.index[rec.Path]; ok {
			rec.Selected = s.records[j].Selected
		}
		records[i] = rec
		index[rec.Path] = i
	}
	s.records = records
	s.index = index
	s.lastScan = res
	s.op = nil
}

// StartConvert converts the selected records in list order. outputDir
// overrides the configured output folder when not empty; it is created if
// missing. The returned channel is closed after the run's summary is
// available.
func (s *Session) StartConvert(ctx context.Context, outputDir string) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.op != nil {
		return nil, fmt.Errorf("%w: %s", ErrBusy, s.op.kind)
	}

	cfg := s.opts.Convert
	if outputDir != "" {
		cfg.OutputRoot = outputDir
	}
	if err := prepareOutput(cfg.OutputRoot); err != nil {
		return nil, err
	}
	cfg.SourceRoot = s.sourceDir

	selected := s.selectedLocked()
	if len(selected) == 0 {
		return nil, ErrNothingSelected
	}

	p, err := converter.New(cfg, s.opts.Launcher, s.opts.Prober, s.opts.Bus)
	if err != nil {
		return nil, err
	}
	p.SetTracker(s)
	if s.opts.Recorder != nil {
		p.SetRecorder(s.opts.Recorder)
	}

	ctx, cancel := context.WithCancel(ctx)
	op := &operation{kind: Converting, dir: cfg.OutputRoot, cancel: cancel, done: make(chan struct{})}
	s.op = op

	go func() {
		defer close(op.done)
		defer cancel()
		sum := p.Run(ctx, selected)

		s.mu.Lock()
		s.lastSummary = &sum
		s.op = nil
		s.mu.Unlock()
	}()
	return op.done, nil
}

func prepareOutput(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: no output folder set", ErrOutputInvalid)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return fmt.Errorf("%w: %s is a file", ErrOutputInvalid, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputInvalid, err)
	}
	return nil
}

// Cancel stops the running operation. It reports whether there was one.
func (s *Session) Cancel() bool {
	s.mu.RLock()
	op := s.op
	s.mu.RUnlock()
	if op == nil {
		return false
	}
	logging.Info("Cancelling %s", op.kind)
	op.cancel()
	return true
}

// Wait blocks until no operation is running or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.RLock()
	op := s.op
	s.mu.RUnlock()
	if op == nil {
		return nil
	}
	select {
	case <-op.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastScan returns the result of the last finished scan.
func (s *Session) LastScan() scanner.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastScan
}

// LastSummary returns the summary of the last finished conversion.
func (s *Session) LastSummary() (converter.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSummary == nil {
		return converter.Summary{}, false
	}
	return *s.lastSummary, true
}
