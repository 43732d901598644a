package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"video-converter/internal/converter"
	"video-converter/internal/events"
	"video-converter/internal/media"
	"video-converter/internal/probe"
	"video-converter/internal/scanner"
)

type stubProber struct{}

func (stubProber) Probe(_ context.Context, path string) probe.Result {
	if filepath.Ext(path) == ".mp4" {
		return probe.Result{Format: "MP4", Codec: "h264", Compatible: true}
	}
	return probe.Result{Format: "MOV", Codec: "hevc"}
}

// stubLauncher writes the output immediately, or blocks until killed
// when block is set.
type stubLauncher struct {
	block    bool
	started  chan struct{}
	mu       sync.Mutex
	launches int
}

type stubProcess struct {
	done   chan struct{}
	killed chan struct{}
	once   sync.Once
	err    error
}

func (p *stubProcess) Done() <-chan struct{} { return p.done }
func (p *stubProcess) Err() error            { return p.err }
func (p *stubProcess) Kill() error {
	p.once.Do(func() { close(p.killed) })
	return nil
}

func (l *stubLauncher) Launch(_ string, args []string, _ func(string)) (converter.Process, error) {
	l.mu.Lock()
	l.launches++
	l.mu.Unlock()
	if l.started != nil {
		l.started <- struct{}{}
	}
	p := &stubProcess{done: make(chan struct{}), killed: make(chan struct{})}
	go func() {
		defer close(p.done)
		if l.block {
			<-p.killed
			p.err = errors.New("signal: killed")
			return
		}
		p.err = os.WriteFile(args[len(args)-1], []byte("mp4"), 0o644)
	}()
	return p, nil
}

func writeVideo(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newSession(t *testing.T, launcher converter.Launcher, includeCompatible bool) (*Session, *events.Bus, string) {
	t.Helper()
	bus := events.New(1024)
	scanCfg := scanner.DefaultConfig()
	scanCfg.Workers = 2
	scanCfg.IncludeCompatible = includeCompatible

	conv := converter.DefaultConfig()
	conv.OutputRoot = filepath.Join(t.TempDir(), "out")
	conv.PollInterval = 5 * time.Millisecond

	s := New(Options{
		Scanner:  scanner.New(scanCfg, stubProber{}, bus),
		Launcher: launcher,
		Prober:   stubProber{},
		Bus:      bus,
		Convert:  conv,
	})
	return s, bus, conv.OutputRoot
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("operation did not finish")
	}
}

func scan(t *testing.T, s *Session, dir string) {
	t.Helper()
	done, err := s.StartScan(context.Background(), dir)
	if err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	wait(t, done)
}

func paths(recs []media.VideoRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Path
	}
	return out
}

func TestScanThenConvertThenSkip(t *testing.T) {
	src := t.TempDir()
	writeVideo(t, src, "a.mp4")
	b := writeVideo(t, src, "b.mov")

	s, _, out := newSession(t, &stubLauncher{}, false)
	scan(t, s, src)

	if got := paths(s.Snapshot()); !slices.Equal(got, []string{b}) {
		t.Fatalf("records = %q, want only b.mov", got)
	}
	if s.LastScan().Excluded != 1 {
		t.Errorf("Excluded = %d, want 1", s.LastScan().Excluded)
	}

	done, err := s.StartConvert(context.Background(), "")
	if err != nil {
		t.Fatalf("StartConvert() error = %v", err)
	}
	wait(t, done)

	if _, err := os.Stat(filepath.Join(out, "b.mp4")); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if rec, _ := s.Record(b); rec.Status != media.StatusConverted {
		t.Errorf("status = %s, want converted", rec.Status)
	}

	done, err = s.StartConvert(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	wait(t, done)
	if rec, _ := s.Record(b); rec.Status != media.StatusSkipped {
		t.Errorf("status on rerun = %s, want skipped", rec.Status)
	}
	if sum, ok := s.LastSummary(); !ok || sum.Skipped != 1 {
		t.Errorf("LastSummary() = %+v, %v", sum, ok)
	}
}

func TestNewScanReplacesList(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeVideo(t, first, "one.mov")
	two := writeVideo(t, second, "two.mov")

	s, _, _ := newSession(t, &stubLauncher{}, true)
	scan(t, s, first)
	scan(t, s, second)

	if got := paths(s.Snapshot()); !slices.Equal(got, []string{two}) {
		t.Errorf("records = %q, want only the second scan", got)
	}
	if s.SourceDir() != filepath.Clean(second) {
		t.Errorf("SourceDir() = %s", s.SourceDir())
	}
}

func TestInvalidSourceLeavesListAlone(t *testing.T) {
	src := t.TempDir()
	writeVideo(t, src, "keep.mov")
	s, _, _ := newSession(t, &stubLauncher{}, true)
	scan(t, s, src)

	_, err := s.StartScan(context.Background(), filepath.Join(src, "missing"))
	if !errors.Is(err, scanner.ErrSourceMissing) {
		t.Fatalf("StartScan() error = %v, want ErrSourceMissing", err)
	}
	if s.Len() != 1 || s.Busy() != Idle || s.SourceDir() != filepath.Clean(src) {
		t.Error("rejected scan changed the session")
	}
}

func TestBusy(t *testing.T) {
	src := t.TempDir()
	writeVideo(t, src, "a.mov")
	writeVideo(t, src, "b.mov")

	launcher := &stubLauncher{block: true, started: make(chan struct{}, 4)}
	s, _, _ := newSession(t, launcher, true)
	scan(t, s, src)

	done, err := s.StartConvert(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	<-launcher.started

	if s.Busy() != Converting {
		t.Errorf("Busy() = %q", s.Busy())
	}
	if _, err := s.StartScan(context.Background(), src); !errors.Is(err, ErrBusy) {
		t.Errorf("StartScan() during conversion error = %v, want ErrBusy", err)
	}
	if _, err := s.StartConvert(context.Background(), ""); !errors.Is(err, ErrBusy) {
		t.Errorf("second StartConvert() error = %v, want ErrBusy", err)
	}

	if !s.Cancel() {
		t.Fatal("Cancel() found no operation")
	}
	wait(t, done)

	sum, _ := s.LastSummary()
	if !sum.Cancelled || sum.Failed != 1 || launcher.launches != 1 {
		t.Errorf("summary = %+v after %d launches", sum, launcher.launches)
	}
	statuses := []media.Status{}
	for _, r := range s.Snapshot() {
		statuses = append(statuses, r.Status)
	}
	if !slices.Equal(statuses, []media.Status{media.StatusFailed, media.StatusReady}) {
		t.Errorf("statuses = %v, want failed then ready", statuses)
	}
	if s.Cancel() {
		t.Error("Cancel() with nothing running reported true")
	}
}

func TestStartConvertValidation(t *testing.T) {
	src := t.TempDir()
	writeVideo(t, src, "a.mov")
	s, _, _ := newSession(t, &stubLauncher{}, true)

	if _, err := s.StartConvert(context.Background(), ""); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("empty list error = %v, want ErrNothingSelected", err)
	}

	scan(t, s, src)
	file := writeVideo(t, t.TempDir(), "not-a-dir")
	if _, err := s.StartConvert(context.Background(), file); !errors.Is(err, ErrOutputInvalid) {
		t.Errorf("file as output error = %v, want ErrOutputInvalid", err)
	}

	s.SelectAll(false)
	if _, err := s.StartConvert(context.Background(), ""); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("nothing selected error = %v, want ErrNothingSelected", err)
	}
	if s.Busy() != Idle {
		t.Error("rejected conversion left an operation running")
	}
}

func TestSelection(t *testing.T) {
	src := t.TempDir()
	a := writeVideo(t, src, "a.mov")
	b := writeVideo(t, src, "b.mov")
	c := writeVideo(t, src, "c.mov")
	s, _, _ := newSession(t, &stubLauncher{}, true)
	scan(t, s, src)

	if err := s.Select(b, false); err != nil {
		t.Fatal(err)
	}
	if got := paths(s.Selected()); !slices.Equal(got, []string{a, c}) {
		t.Errorf("Selected() = %q", got)
	}
	if err := s.Select(filepath.Join(src, "nope.mov"), true); !errors.Is(err, ErrUnknownPath) {
		t.Errorf("Select(unknown) error = %v", err)
	}
	if n := s.SelectAll(false); n != 3 || len(s.Selected()) != 0 {
		t.Errorf("SelectAll(false) = %d, selected %d", n, len(s.Selected()))
	}
	s.SelectAll(true)
	if len(s.Selected()) != 3 {
		t.Error("SelectAll(true) did not select everything")
	}
}

func TestApply(t *testing.T) {
	src := t.TempDir()
	a := writeVideo(t, src, "a.mov")
	s, bus, _ := newSession(t, &stubLauncher{}, true)
	scan(t, s, src)

	// A late batch from a finished scan is ignored.
	s.Apply(events.RecordsEvent{Records: []media.VideoRecord{media.NewVideoRecord(filepath.Join(src, "late.mov"), 1)}})
	if s.Len() != 1 {
		t.Errorf("records after late batch = %d, want 1", s.Len())
	}

	s.Apply(events.StatusEvent{Path: a, Status: media.StatusConverting})
	if rec, _ := s.Record(a); rec.Status != media.StatusConverting {
		t.Errorf("status = %s", rec.Status)
	}
	s.Apply(events.StatusEvent{Path: "/elsewhere.mov", Status: media.StatusFailed})

	var sawRecords bool
	for _, e := range bus.Drain(0) {
		if _, ok := e.(events.RecordsEvent); ok {
			sawRecords = true
		}
	}
	if !sawRecords {
		t.Error("scan published no records to the bus")
	}
}

func TestConvertStoresLateMetadata(t *testing.T) {
	src := t.TempDir()
	big := writeVideo(t, src, "big.mov")

	bus := events.New(1024)
	scanCfg := scanner.DefaultConfig()
	scanCfg.LargeFileBytes = 1
	conv := converter.DefaultConfig()
	conv.OutputRoot = filepath.Join(t.TempDir(), "out")
	conv.PollInterval = 5 * time.Millisecond
	s := New(Options{
		Scanner:  scanner.New(scanCfg, stubProber{}, bus),
		Launcher: &stubLauncher{},
		Prober:   stubProber{},
		Bus:      bus,
		Convert:  conv,
	})

	scan(t, s, src)
	if rec, _ := s.Record(big); rec.Format != media.UnknownFormat {
		t.Fatalf("large file probed during scan: %+v", rec)
	}

	done, err := s.StartConvert(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	wait(t, done)

	rec, _ := s.Record(big)
	if rec.Format != "MOV" || rec.Codec != "hevc" || rec.Status != media.StatusConverted {
		t.Errorf("record after conversion = %+v", rec)
	}
}

func TestApplyLateMetadata(t *testing.T) {
	src := t.TempDir()
	a := writeVideo(t, src, "a.mov")
	s, _, _ := newSession(t, &stubLauncher{}, true)
	scan(t, s, src)

	s.Apply(events.StatusEvent{Path: a, Status: media.StatusConverting, Format: "MP4", Codec: "h264", Compatible: true})
	rec, _ := s.Record(a)
	if rec.Format != "MP4" || rec.Codec != "h264" || !rec.Compatible || rec.Status != media.StatusConverting {
		t.Errorf("record = %+v", rec)
	}

	// Plain status events leave the metadata alone.
	s.Apply(events.StatusEvent{Path: a, Status: media.StatusConverted})
	if rec, _ := s.Record(a); rec.Format != "MP4" {
		t.Errorf("format after status event = %q", rec.Format)
	}
}

func TestApplyStreamsDuringScan(t *testing.T) {
	dir := filepath.Clean(t.TempDir())
	s := New(Options{})
	op := &operation{kind: Scanning, dir: dir, done: make(chan struct{})}
	s.op = op

	in := media.NewVideoRecord(filepath.Join(dir, "x.mov"), 1)
	out := media.NewVideoRecord(filepath.Join(filepath.Dir(dir), "other", "y.mov"), 1)
	s.Apply(events.RecordsEvent{Records: []media.VideoRecord{in, out, in}})

	if got := paths(s.Snapshot()); !slices.Equal(got, []string{in.Path}) {
		t.Errorf("streamed records = %q, want only %s once", got, in.Path)
	}

	// Selection made mid-scan survives settling.
	if err := s.Select(in.Path, false); err != nil {
		t.Fatal(err)
	}
	s.settleScan(scanner.Result{Records: []media.VideoRecord{in}})
	if rec, _ := s.Record(in.Path); rec.Selected {
		t.Error("settling the scan reset the selection")
	}
	if s.Busy() != Idle {
		t.Error("settled scan still busy")
	}
}

func TestGetStats(t *testing.T) {
	src := t.TempDir()
	a := writeVideo(t, src, "a.mov")
	writeVideo(t, src, "b.mov")
	s, _, _ := newSession(t, &stubLauncher{}, true)
	scan(t, s, src)

	s.SetStatus(a, media.StatusFailed)
	_ = s.Select(a, false)

	stats := s.GetStats()
	if stats.TotalRecords != 2 || stats.Selected != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByStatus["failed"] != 1 || stats.ByStatus["ready"] != 1 {
		t.Errorf("ByStatus = %v", stats.ByStatus)
	}
}

func TestWait(t *testing.T) {
	s, _, _ := newSession(t, &stubLauncher{}, true)
	if err := s.Wait(context.Background()); err != nil {
		t.Errorf("Wait() idle = %v", err)
	}

	op := &operation{kind: Scanning, done: make(chan struct{})}
	s.op = op
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline", err)
	}
}
