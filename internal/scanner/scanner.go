package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"video-converter/internal/events"
	"video-converter/internal/filesystem"
	"video-converter/internal/logging"
	"video-converter/internal/media"
	"video-converter/internal/mediatypes"
	"video-converter/internal/metrics"
	"video-converter/internal/probe"
	"video-converter/internal/workers"
)

var (
	// ErrSourceMissing is returned when the source folder does not exist.
	ErrSourceMissing = errors.New("source folder does not exist")
	// ErrSourceNotDir is returned when the source path is not a folder.
	ErrSourceNotDir = errors.New("source path is not a folder")
)

// Config configures a scan
type Config struct {
	// Workers is the probe pool size (0 = auto, see workers.ForProbe)
	Workers int
	// BatchSize is the number of discovered paths handed to the pool at once
	BatchSize int
	// EmitEvery is the number of finished records per RecordsEvent
	EmitEvery int
	// LargeFileBytes is the size at or above which probing is deferred
	LargeFileBytes int64
	// ProbeLargeFiles probes large files during the scan anyway
	ProbeLargeFiles bool
	// IncludeCompatible keeps files that need no conversion
	IncludeCompatible bool
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// DefaultConfig returns the scan defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:         50,
		EmitEvery:         10,
		LargeFileBytes:    500 * 1024 * 1024,
		IncludeCompatible: true,
		SkipHidden:        true,
	}
}

// Publisher receives scan events. *events.Bus satisfies it.
type Publisher interface {
	Publish(events.Event)
}

// Pauser holds back new work while resources are critical.
// *memory.Monitor satisfies it.
type Pauser interface {
	// WaitIfPaused blocks while paused and returns false once the wait
	// should be abandoned.
	WaitIfPaused(ctx context.Context) bool
}

// Result is the outcome of one scan.
type Result struct {
	// Records in discovery order. Partial when Cancelled.
	Records []media.VideoRecord
	// Errors is the number of files skipped because of per-file errors.
	Errors int
	// Excluded is the number of compatible files left out.
	Excluded  int
	Cancelled bool
	Duration  time.Duration
}

// Count returns the number of records found.
func (r Result) Count() int {
	return len(r.Records)
}

// Scanner discovers video files and probes them on a bounded pool.
type Scanner struct {
	config Config
	prober probe.Prober
	bus    Publisher
	retry  filesystem.RetryConfig
	pauser Pauser
}

// New creates a scanner. bus may be nil.
func New(config Config, prober probe.Prober, bus Publisher) *Scanner {
	def := DefaultConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.EmitEvery <= 0 {
		config.EmitEvery = def.EmitEvery
	}
	if config.LargeFileBytes <= 0 {
		config.LargeFileBytes = def.LargeFileBytes
	}
	return &Scanner{
		config: config,
		prober: prober,
		bus:    bus,
		retry:  filesystem.DefaultRetryConfig(),
	}
}

// SetPauser makes the walk wait on p before handing each batch to the
// probe pool.
func (s *Scanner) SetPauser(p Pauser) {
	s.pauser = p
}

// Validate checks that dir exists and is a folder.
func Validate(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: empty path", ErrSourceMissing)
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, dir)
		}
		return fmt.Errorf("stat source %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceNotDir, dir)
	}
	return nil
}

// Task is a scan running in the background.
type Task struct {
	done   chan struct{}
	result Result
	cancel context.CancelFunc

	// publishMu is held while records are published and while Cancel
	// cancels, so no RecordsEvent follows a Cancel call.
	publishMu sync.Mutex
}

// Done is closed when the scan has published its completion event.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result waits for the scan and returns its outcome.
func (t *Task) Result() Result {
	<-t.done
	return t.result
}

// Cancel stops the scan. No RecordsEvent is published once Cancel has
// returned; the completion event still follows.
func (t *Task) Cancel() {
	t.publishMu.Lock()
	defer t.publishMu.Unlock()
	t.cancel()
}

// Start validates dir synchronously, then scans it in the background.
// Nothing is started when validation fails.
func (s *Scanner) Start(ctx context.Context, dir string) (*Task, error) {
	if err := Validate(dir); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(t.done)
		defer cancel()
		t.result = s.run(ctx, dir, &t.publishMu)
	}()
	return t, nil
}

// Scan validates dir and scans it, blocking until done or cancelled.
func (s *Scanner) Scan(ctx context.Context, dir string) (Result, error) {
	if err := Validate(dir); err != nil {
		return Result{}, err
	}
	return s.run(ctx, dir, nil), nil
}

type job struct {
	index int
	path  string
}

type outcome struct {
	index    int
	record   media.VideoRecord
	err      error
	excluded bool
}

func (s *Scanner) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// run scans dir. publishMu, when set, is held around each RecordsEvent.
func (s *Scanner) run(ctx context.Context, dir string, publishMu *sync.Mutex) Result {
	start := time.Now()
	numWorkers := workers.ForProbe(s.config.Workers, 0)

	metrics.ScanIsRunning.Set(1)
	defer metrics.ScanIsRunning.Set(0)

	logging.Info("Scanning %s with %d probe workers", dir, numWorkers)
	s.publish(events.ScanStatusEvent{Message: fmt.Sprintf("Scanning %s", dir)})

	// Workers are not awaited on cancellation; they exit at their next
	// send. The channels are never closed from the collector side.
	batches := make(chan []job, numWorkers)
	results := make(chan outcome, s.config.BatchSize)

	var discovered atomic.Int64
	go func() {
		defer close(batches)
		s.walk(ctx, dir, batches, &discovered)
	}()

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id, batches, results)
		}(i)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	res := s.collect(ctx, results, publishMu)
	res.Duration = time.Since(start)

	outcomeLabel := "completed"
	if res.Cancelled {
		outcomeLabel = "cancelled"
	}
	metrics.ScanRunsTotal.WithLabelValues(outcomeLabel).Inc()
	metrics.ScanLastRunDuration.Set(res.Duration.Seconds())

	logging.Info("Scan %s: %d videos, %d errors, %d excluded in %v",
		outcomeLabel, res.Count(), res.Errors, res.Excluded, res.Duration.Round(time.Millisecond))

	s.publish(events.ScanCompleteEvent{
		Count:     res.Count(),
		Errors:    res.Errors,
		Cancelled: res.Cancelled,
		Duration:  res.Duration,
	})
	return res
}

// walk traverses dir and hands video paths to the pool in batches.
func (s *Scanner) walk(ctx context.Context, dir string, batches chan<- []job, discovered *atomic.Int64) {
	batch := make([]job, 0, s.config.BatchSize)
	send := func() bool {
		if len(batch) == 0 {
			return true
		}
		// A stopped monitor releases the wait; only cancellation ends the walk.
		if s.pauser != nil && !s.pauser.WaitIfPaused(ctx) && ctx.Err() != nil {
			return false
		}
		select {
		case batches <- batch:
			batch = make([]job, 0, s.config.BatchSize)
			return true
		case <-ctx.Done():
			return false
		}
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}
		if path == dir {
			return nil
		}
		if s.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !mediatypes.IsVideo(path) {
			return nil
		}

		idx := int(discovered.Add(1)) - 1
		batch = append(batch, job{index: idx, path: path})
		metrics.ScanFilesDiscovered.Inc()
		if len(batch) >= s.config.BatchSize && !send() {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		logging.Warn("Walk of %s stopped: %v", dir, err)
	}
	send()
}

// worker processes batches until the channel closes or ctx is cancelled.
func (s *Scanner) worker(ctx context.Context, id int, batches <-chan []job, results chan<- outcome) {
	logging.Debug("Scan worker %d started", id)
	defer logging.Debug("Scan worker %d stopped", id)

	for {
		var batch []job
		var ok bool
		select {
		case batch, ok = <-batches:
			if !ok {
				return
			}
		case <-ctx.Done():
			return
		}

		for _, j := range batch {
			if ctx.Err() != nil {
				return
			}
			out := s.processFile(ctx, j)
			select {
			case results <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}

// processFile stats and, below the large-file threshold, probes one path.
// A panic is turned into a per-file error.
func (s *Scanner) processFile(ctx context.Context, j job) (out outcome) {
	out.index = j.index
	defer func() {
		if p := recover(); p != nil {
			out.err = fmt.Errorf("scan %s: panic: %v", j.path, p)
		}
	}()

	info, err := filesystem.StatWithRetry(j.path, s.retry)
	if err != nil {
		out.err = fmt.Errorf("stat %s: %w", j.path, err)
		return out
	}

	rec := media.NewVideoRecord(j.path, info.Size())
	if info.Size() < s.config.LargeFileBytes || s.config.ProbeLargeFiles {
		res := s.prober.Probe(ctx, j.path)
		res.Apply(&rec)
		if !res.OK() {
			logging.Debug("Probe failed for %s: %v", j.path, res.Err)
		}
	} else {
		metrics.ProbeSkippedLarge.Inc()
		logging.Debug("Deferring probe of large file %s (%d MB)", j.path, info.Size()/(1024*1024))
	}

	if rec.Compatible && !s.config.IncludeCompatible {
		out.excluded = true
	}
	out.record = rec
	return out
}

// collect gathers worker output, publishing a RecordsEvent for every
// EmitEvery finished records. It stops publishing as soon as ctx is done.
// Without publishMu a cancellation of a parent context that lands during
// a publish can still let that one event through.
func (s *Scanner) collect(ctx context.Context, results <-chan outcome, publishMu *sync.Mutex) Result {
	var res Result
	var found []outcome
	pending := make([]outcome, 0, s.config.EmitEvery)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if publishMu != nil {
			publishMu.Lock()
			defer publishMu.Unlock()
		}
		if ctx.Err() != nil {
			return
		}
		sortByIndex(pending)
		recs := make([]media.VideoRecord, len(pending))
		for i, o := range pending {
			recs[i] = o.record
		}
		s.publish(events.RecordsEvent{Records: recs})
		pending = pending[:0]
	}

	finish := func(cancelled bool) Result {
		sortByIndex(found)
		res.Records = make([]media.VideoRecord, len(found))
		for i, o := range found {
			res.Records[i] = o.record
		}
		res.Cancelled = cancelled
		return res
	}

	for {
		select {
		case <-ctx.Done():
			return finish(true)
		case out, ok := <-results:
			if !ok {
				if ctx.Err() != nil {
					return finish(true)
				}
				flush()
				return finish(false)
			}
			switch {
			case out.err != nil:
				res.Errors++
				metrics.ScanErrors.Inc()
				logging.Warn("Skipping file: %v", out.err)
				s.publish(events.LogEvent{Time: time.Now(), Level: events.LevelWarn, Message: out.err.Error()})
			case out.excluded:
				res.Excluded++
			default:
				found = append(found, out)
				pending = append(pending, out)
				if len(pending) >= s.config.EmitEvery {
					flush()
				}
			}
		}
	}
}

func sortByIndex(outs []outcome) {
	sort.Slice(outs, func(i, j int) bool { return outs[i].index < outs[j].index })
}
