package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"video-converter/internal/events"
	"video-converter/internal/filesystem"
	"video-converter/internal/logging"
	"video-converter/internal/media"
	"video-converter/internal/metrics"
	"video-converter/internal/probe"
)

var (
	// ErrCancelled is recorded for a file killed by a user cancellation.
	ErrCancelled = errors.New("conversion cancelled")
	// ErrFileTimeout is recorded for a file that exceeded the per-file limit.
	ErrFileTimeout = errors.New("conversion timed out")
)

// killGrace bounds the wait for a killed process to exit.
const killGrace = 10 * time.Second

// Config configures a conversion run
type Config struct {
	// Binary is the ffmpeg executable (default "ffmpeg")
	Binary string
	// SourceRoot and OutputRoot anchor destination paths
	SourceRoot string
	OutputRoot string
	Options    Options
	// DeleteOriginals replaces each converted original with a backup copy
	DeleteOriginals bool
	BackupSuffix    string
	// FileTimeout bounds a single transcode
	FileTimeout time.Duration
	// PollInterval is how often a running transcode is checked
	PollInterval time.Duration
	// WatchdogIdle aborts the run after this long without progress
	WatchdogIdle time.Duration
}

// DefaultConfig returns the conversion defaults without paths.
func DefaultConfig() Config {
	return Config{
		Binary:       "ffmpeg",
		Options:      DefaultOptions(),
		BackupSuffix: ".backup",
		FileTimeout:  60 * time.Minute,
		PollInterval: 500 * time.Millisecond,
		WatchdogIdle: 10 * time.Minute,
	}
}

// Summary is the aggregate outcome of a run.
type Summary struct {
	RunID     string        `json:"runId"`
	Total     int           `json:"total"`
	Converted int           `json:"converted"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Elapsed   time.Duration `json:"elapsed"`
	Cancelled bool          `json:"cancelled"`
	Stuck     bool          `json:"stuck"`
}

// Processed returns the number of files that reached a final status.
func (s Summary) Processed() int {
	return s.Converted + s.Failed + s.Skipped
}

// Outcome is the result for one file.
type Outcome struct {
	Path     string
	Dest     string
	Backup   string
	Status   media.Status
	Err      error
	Duration time.Duration
}

// Recorder journals a run. All methods are best effort: errors are logged
// and never stop the run.
type Recorder interface {
	BeginRun(ctx context.Context, runID string, started time.Time, total int) error
	RecordItem(ctx context.Context, runID string, o Outcome) error
	FinishRun(ctx context.Context, s Summary) error
}

// Tracker receives record changes as they happen.
type Tracker interface {
	SetStatus(path string, status media.Status)
	// SetProbe stores metadata probed just before a conversion.
	SetProbe(path string, res probe.Result)
}

// Publisher receives pipeline events. *events.Bus satisfies it.
type Publisher interface {
	Publish(events.Event)
}

// Pipeline converts records one at a time.
type Pipeline struct {
	config   Config
	launcher Launcher
	prober   probe.Prober
	bus      Publisher
	recorder Recorder
	tracker  Tracker
}

// New creates a pipeline. bus may be nil.
func New(config Config, launcher Launcher, prober probe.Prober, bus Publisher) (*Pipeline, error) {
	def := DefaultConfig()
	if config.Binary == "" {
		config.Binary = def.Binary
	}
	if config.BackupSuffix == "" {
		config.BackupSuffix = def.BackupSuffix
	}
	if config.FileTimeout <= 0 {
		config.FileTimeout = def.FileTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.WatchdogIdle <= 0 {
		config.WatchdogIdle = def.WatchdogIdle
	}
	if err := config.Options.Validate(); err != nil {
		return nil, err
	}
	if config.OutputRoot == "" {
		return nil, errors.New("output folder is required")
	}
	if launcher == nil {
		launcher = ExecLauncher{}
	}
	return &Pipeline{
		config:   config,
		launcher: launcher,
		prober:   prober,
		bus:      bus,
	}, nil
}

// SetRecorder attaches a run journal.
func (p *Pipeline) SetRecorder(r Recorder) {
	p.recorder = r
}

// SetTracker attaches a status tracker.
func (p *Pipeline) SetTracker(t Tracker) {
	p.tracker = t
}

func (p *Pipeline) publish(e events.Event) {
	if p.bus != nil {
		p.bus.Publish(e)
	}
}

func (p *Pipeline) setStatus(path string, status media.Status, err error) {
	if p.tracker != nil {
		p.tracker.SetStatus(path, status)
	}
	ev := events.StatusEvent{Path: path, Status: status}
	if err != nil {
		ev.Error = err.Error()
	}
	p.publish(ev)
}

// Run converts records in order and returns the summary. It stops
// starting new files once ctx is cancelled or the watchdog fires; the
// file in flight at that moment is killed and marked Failed.
func (p *Pipeline) Run(ctx context.Context, records []media.VideoRecord) Summary {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString(), Total: len(records)}

	metrics.ConversionInProgress.Set(1)
	defer metrics.ConversionInProgress.Set(0)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	activity := NewActivity()
	go watch(runCtx, activity, p.config.WatchdogIdle, cancel)

	// The journal outlives a cancelled run.
	journalCtx := context.WithoutCancel(ctx)
	if p.recorder != nil {
		if err := p.recorder.BeginRun(journalCtx, summary.RunID, start, len(records)); err != nil {
			logging.Warn("Failed to journal run start: %v", err)
		}
	}

	logging.Info("Converting %d files (run %s)", len(records), summary.RunID)

	for i := range records {
		if runCtx.Err() != nil {
			break
		}
		rec := records[i]

		out := p.convertOne(runCtx, &rec, activity, i, len(records))
		switch out.Status {
		case media.StatusConverted:
			summary.Converted++
		case media.StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		metrics.ConversionsTotal.WithLabelValues(out.Status.String()).Inc()

		p.setStatus(out.Path, out.Status, out.Err)
		p.publish(events.ProgressEvent{Processed: i + 1, Total: len(records), Path: out.Path})

		if p.recorder != nil {
			if err := p.recorder.RecordItem(journalCtx, summary.RunID, out); err != nil {
				logging.Warn("Failed to journal %s: %v", out.Path, err)
			}
		}
	}

	if runCtx.Err() != nil {
		if errors.Is(context.Cause(runCtx), ErrStuck) {
			summary.Stuck = true
		} else {
			summary.Cancelled = true
		}
	}
	summary.Elapsed = time.Since(start)

	logging.Info("Run %s finished: %d converted, %d failed, %d skipped in %v (cancelled=%v, stuck=%v)",
		summary.RunID, summary.Converted, summary.Failed, summary.Skipped,
		summary.Elapsed.Round(time.Second), summary.Cancelled, summary.Stuck)

	if p.recorder != nil {
		if err := p.recorder.FinishRun(journalCtx, summary); err != nil {
			logging.Warn("Failed to journal run end: %v", err)
		}
	}

	p.publish(events.ConvertCompleteEvent{
		RunID:     summary.RunID,
		Converted: summary.Converted,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
		Elapsed:   summary.Elapsed,
		Cancelled: summary.Cancelled,
		Stuck:     summary.Stuck,
	})
	return summary
}

// convertOne runs a single file through probe, transcode, rename and
// backup.
func (p *Pipeline) convertOne(ctx context.Context, rec *media.VideoRecord, activity *Activity, index, total int) (out Outcome) {
	start := time.Now()
	out.Path = rec.Path
	activity.Touch()
	defer func() {
		activity.Touch()
		out.Duration = time.Since(start)
		if r := recover(); r != nil {
			out.Status = media.StatusFailed
			out.Err = fmt.Errorf("panic: %v", r)
		}
		if out.Err != nil {
			logging.Error("Failed %s: %v", rec.Path, out.Err)
			p.publish(events.LogEvent{Time: time.Now(), Level: events.LevelError, Message: fmt.Sprintf("%s: %v", filepath.Base(rec.Path), out.Err)})
		}
	}()

	p.setStatus(rec.Path, media.StatusConverting, nil)

	var duration time.Duration
	if !rec.Probed() && p.prober != nil {
		res := p.prober.Probe(ctx, rec.Path)
		res.Apply(rec)
		duration = res.Duration
		if res.OK() {
			if p.tracker != nil {
				p.tracker.SetProbe(rec.Path, res)
			}
			p.publish(events.StatusEvent{
				Path:       rec.Path,
				Status:     media.StatusConverting,
				Format:     rec.Format,
				Codec:      rec.Codec,
				Compatible: rec.Compatible,
			})
		} else {
			logging.Warn("Probe of %s failed, converting anyway: %v", rec.Path, res.Err)
		}
	}

	out.Dest = Destination(p.config.SourceRoot, p.config.OutputRoot, rec.Path)
	if _, err := os.Stat(out.Dest); err == nil {
		out.Status = media.StatusSkipped
		logging.Info("Skipping %s: %s already exists", filepath.Base(rec.Path), out.Dest)
		p.publish(events.LogEvent{Time: time.Now(), Level: events.LevelInfo, Message: fmt.Sprintf("Skipped %s: output exists", filepath.Base(rec.Path))})
		return out
	}

	if err := os.MkdirAll(filepath.Dir(out.Dest), 0o755); err != nil {
		out.Status = media.StatusFailed
		out.Err = fmt.Errorf("create output folder: %w", err)
		return out
	}

	if ctx.Err() != nil {
		out.Status = media.StatusFailed
		out.Err = cancelCause(ctx)
		return out
	}

	part := out.Dest + PartSuffix
	args, err := BuildArgs(rec.Path, part, p.config.Options)
	if err != nil {
		out.Status = media.StatusFailed
		out.Err = err
		return out
	}

	logging.Info("Converting %s -> %s", rec.Path, out.Dest)
	onLine := func(line string) {
		activity.Touch()
		pl, ok := parseProgressLine(line)
		if !ok || duration <= 0 {
			return
		}
		if pos, ok := pl.outTime(); ok {
			p.publish(events.ProgressEvent{Processed: index, Total: total, Path: rec.Path, Fraction: fraction(pos, duration)})
		}
	}

	if err := p.transcode(ctx, args, onLine); err != nil {
		_ = os.Remove(part)
		out.Status = media.StatusFailed
		out.Err = err
		return out
	}

	if err := renameOutput(part, out.Dest); err != nil {
		_ = os.Remove(part)
		out.Status = media.StatusFailed
		out.Err = err
		return out
	}
	out.Status = media.StatusConverted
	metrics.ConversionDuration.Observe(time.Since(start).Seconds())

	if p.config.DeleteOriginals {
		backup, err := backupAndRemove(rec.Path, p.config.BackupSuffix)
		out.Backup = backup
		if err != nil {
			// The conversion itself succeeded.
			logging.Error("Keeping original %s: %v", rec.Path, err)
			p.publish(events.LogEvent{Time: time.Now(), Level: events.LevelWarn, Message: fmt.Sprintf("Original kept: %v", err)})
		}
	}
	return out
}

func renameOutput(part, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("destination %s appeared during conversion", dest)
	}
	if err := filesystem.Rename(part, dest); err != nil {
		return fmt.Errorf("finalize output: %w", err)
	}
	return nil
}

// transcode launches ffmpeg and supervises it until it exits, the file
// timeout passes or ctx is cancelled.
func (p *Pipeline) transcode(ctx context.Context, args []string, onLine func(string)) error {
	proc, err := p.launcher.Launch(p.config.Binary, args, onLine)
	if err != nil {
		return err
	}

	started := time.Now()
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-proc.Done():
			if err := proc.Err(); err != nil {
				return fmt.Errorf("ffmpeg failed: %w", err)
			}
			return nil
		case <-ctx.Done():
			cause := cancelCause(ctx)
			reason := "cancelled"
			if errors.Is(cause, ErrStuck) {
				reason = "stuck"
			}
			return p.kill(proc, reason, cause)
		case <-ticker.C:
			if time.Since(started) > p.config.FileTimeout {
				return p.kill(proc, "timeout", fmt.Errorf("%w after %v", ErrFileTimeout, p.config.FileTimeout))
			}
		}
	}
}

// cancelCause maps a done run context to ErrStuck or ErrCancelled.
func cancelCause(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), ErrStuck) {
		return ErrStuck
	}
	return ErrCancelled
}

func (p *Pipeline) kill(proc Process, reason string, cause error) error {
	metrics.ConversionKills.WithLabelValues(reason).Inc()
	if err := proc.Kill(); err != nil {
		logging.Warn("Failed to kill ffmpeg: %v", err)
	}
	select {
	case <-proc.Done():
	case <-time.After(killGrace):
		logging.Warn("ffmpeg did not exit %v after kill", killGrace)
	}
	return cause
}
