package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"video-converter/internal/events"
	"video-converter/internal/media"
	"video-converter/internal/probe"
)

type fakeProber struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ctx context.Context, path string) probe.Result
}

func newFakeProber(fn func(ctx context.Context, path string) probe.Result) *fakeProber {
	if fn == nil {
		fn = func(_ context.Context, path string) probe.Result {
			if strings.HasSuffix(path, ".mp4") {
				return probe.Result{Format: "MP4", Codec: "h264", Compatible: true}
			}
			return probe.Result{Format: "MOV", Codec: "hevc"}
		}
	}
	return &fakeProber{calls: make(map[string]int), fn: fn}
}

func (f *fakeProber) Probe(ctx context.Context, path string) probe.Result {
	f.mu.Lock()
	f.calls[path]++
	f.mu.Unlock()
	return f.fn(ctx, path)
}

func (f *fakeProber) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 3
	cfg.BatchSize = 4
	cfg.EmitEvery = 3
	return cfg
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clip.mov")
	writeFile(t, file, 1)

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "folder", path: dir},
		{name: "missing", path: filepath.Join(dir, "nope"), want: ErrSourceMissing},
		{name: "empty", path: "", want: ErrSourceMissing},
		{name: "file", path: file, want: ErrSourceNotDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.path)
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStartRejectsInvalidSourceWithoutWork(t *testing.T) {
	bus := events.New(16)
	s := New(testConfig(), newFakeProber(nil), bus)

	task, err := s.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("Start() error = %v, want ErrSourceMissing", err)
	}
	if task != nil {
		t.Error("Start() returned a task for an invalid source")
	}
	if bus.Len() != 0 {
		t.Errorf("invalid source published %d events", bus.Len())
	}
}

func TestScanDiscoversVideosInOrder(t *testing.T) {
	dir := t.TempDir()
	var want []string
	for i := 0; i < 11; i++ {
		p := filepath.Join(dir, fmt.Sprintf("clip%02d.mov", i))
		writeFile(t, p, 10)
		want = append(want, p)
	}
	nested := filepath.Join(dir, "sub", "trip.avi")
	writeFile(t, nested, 10)
	want = append(want, nested)

	writeFile(t, filepath.Join(dir, "notes.txt"), 10)
	writeFile(t, filepath.Join(dir, ".hidden.mov"), 10)
	writeFile(t, filepath.Join(dir, ".cache", "inside.mov"), 10)
	writeFile(t, filepath.Join(dir, "clip00.mov.backup"), 10)

	bus := events.New(256)
	prober := newFakeProber(nil)
	s := New(testConfig(), prober, bus)

	task, err := s.Start(context.Background(), dir)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not finish")
	}
	res := task.Result()

	if res.Cancelled || res.Errors != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Count() != len(want) {
		t.Fatalf("Count() = %d, want %d", res.Count(), len(want))
	}
	for i, rec := range res.Records {
		if rec.Path != want[i] {
			t.Errorf("record %d = %s, want %s", i, rec.Path, want[i])
		}
		if rec.Format != "MOV" || rec.Codec != "hevc" || !rec.Selected || rec.Status != media.StatusReady {
			t.Errorf("record %d not probed as expected: %+v", i, rec)
		}
	}

	batch := bus.Drain(0)
	var streamed []string
	completeAt := -1
	for i, e := range batch {
		switch e := e.(type) {
		case events.RecordsEvent:
			if completeAt >= 0 {
				t.Error("RecordsEvent after ScanCompleteEvent")
			}
			if len(e.Records) > 3 {
				t.Errorf("RecordsEvent carried %d records, EmitEvery is 3", len(e.Records))
			}
			for j := 1; j < len(e.Records); j++ {
				if e.Records[j-1].Path > e.Records[j].Path {
					t.Error("records inside an event are not in discovery order")
				}
			}
			for _, r := range e.Records {
				streamed = append(streamed, r.Path)
			}
		case events.ScanCompleteEvent:
			completeAt = i
			if e.Count != len(want) || e.Cancelled {
				t.Errorf("ScanCompleteEvent = %+v", e)
			}
		}
	}
	if completeAt != len(batch)-1 {
		t.Errorf("ScanCompleteEvent at %d, want last of %d", completeAt, len(batch))
	}
	if len(streamed) != len(want) {
		t.Errorf("streamed %d records, want %d", len(streamed), len(want))
	}
}

func TestLargeFilesDeferProbe(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.mov")
	large := filepath.Join(dir, "large.mov")
	writeFile(t, small, 10)
	writeFile(t, large, 100)

	tests := []struct {
		name        string
		probeLarge  bool
		wantCalls   int
		wantFormats [2]string
	}{
		{name: "lazy", wantCalls: 0, wantFormats: [2]string{media.UnknownFormat, "MOV"}},
		{name: "probe anyway", probeLarge: true, wantCalls: 1, wantFormats: [2]string{"MOV", "MOV"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.LargeFileBytes = 50
			cfg.ProbeLargeFiles = tt.probeLarge
			prober := newFakeProber(nil)

			res, err := New(cfg, prober, nil).Scan(context.Background(), dir)
			if err != nil {
				t.Fatal(err)
			}
			if res.Count() != 2 {
				t.Fatalf("Count() = %d, want 2", res.Count())
			}
			if got := prober.count(large); got != tt.wantCalls {
				t.Errorf("large file probed %d times, want %d", got, tt.wantCalls)
			}
			if res.Records[0].Format != tt.wantFormats[0] || res.Records[1].Format != tt.wantFormats[1] {
				t.Errorf("formats = %s, %s", res.Records[0].Format, res.Records[1].Format)
			}
			if res.Records[0].SizeBytes != 100 {
				t.Errorf("large file size = %d", res.Records[0].SizeBytes)
			}
		})
	}
}

func TestExcludeCompatible(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mov"), 10)
	writeFile(t, filepath.Join(dir, "b.mp4"), 10)
	writeFile(t, filepath.Join(dir, "c.mp4"), 10)

	cfg := testConfig()
	cfg.IncludeCompatible = false
	res, err := New(cfg, newFakeProber(nil), nil).Scan(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count() != 1 || res.Excluded != 2 {
		t.Fatalf("Count() = %d, Excluded = %d, want 1 and 2", res.Count(), res.Excluded)
	}
	if filepath.Base(res.Records[0].Path) != "a.mov" {
		t.Errorf("kept %s", res.Records[0].Path)
	}

	cfg.IncludeCompatible = true
	res, err = New(cfg, newFakeProber(nil), nil).Scan(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count() != 3 {
		t.Errorf("Count() = %d with compatible files included, want 3", res.Count())
	}
}

func TestEmptyFolder(t *testing.T) {
	bus := events.New(16)
	res, err := New(testConfig(), newFakeProber(nil), bus).Scan(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if res.Count() != 0 || res.Cancelled {
		t.Errorf("unexpected result %+v", res)
	}

	var complete *events.ScanCompleteEvent
	for _, e := range bus.Drain(0) {
		switch e := e.(type) {
		case events.RecordsEvent:
			t.Error("empty scan published records")
		case events.ScanCompleteEvent:
			complete = &e
		}
	}
	if complete == nil || complete.Count != 0 {
		t.Errorf("completion event = %+v", complete)
	}
}

func TestWorkerPanicSkipsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.mov"), 10)
	writeFile(t, filepath.Join(dir, "good.mov"), 10)

	prober := newFakeProber(func(_ context.Context, path string) probe.Result {
		if strings.HasSuffix(path, "bad.mov") {
			panic("corrupt header")
		}
		return probe.Result{Format: "MOV", Codec: "hevc"}
	})

	bus := events.New(64)
	res, err := New(testConfig(), prober, bus).Scan(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Errors != 1 || res.Count() != 1 {
		t.Fatalf("Errors = %d, Count = %d, want 1 and 1", res.Errors, res.Count())
	}

	logged := false
	for _, e := range bus.Drain(0) {
		if l, ok := e.(events.LogEvent); ok && strings.Contains(l.Message, "bad.mov") {
			logged = true
		}
	}
	if !logged {
		t.Error("per-file error was not published to the log")
	}
}

func TestCancelledScan(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("clip%02d.mov", i)), 10)
	}

	started := make(chan struct{}, 20)
	prober := newFakeProber(func(ctx context.Context, _ string) probe.Result {
		started <- struct{}{}
		<-ctx.Done()
		return probe.Failed(ctx.Err())
	})

	bus := events.New(256)
	task, err := New(testConfig(), prober, bus).Start(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}

	<-started
	task.Cancel()

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled scan did not finish")
	}
	res := task.Result()
	if !res.Cancelled {
		t.Error("Result().Cancelled = false")
	}

	var complete []events.ScanCompleteEvent
	for _, e := range bus.Drain(0) {
		switch e := e.(type) {
		case events.RecordsEvent:
			t.Error("RecordsEvent published for a scan cancelled before any batch completed")
		case events.ScanCompleteEvent:
			complete = append(complete, e)
		}
	}
	if len(complete) != 1 || !complete[0].Cancelled || complete[0].Count != res.Count() {
		t.Errorf("completion events = %+v", complete)
	}
}

func TestCancelAfterFirstBatch(t *testing.T) {
	dir := t.TempDir()
	const files = 40
	for i := 0; i < files; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("clip%02d.mov", i)), 10)
	}

	cfg := testConfig()
	var probes sync.Mutex
	probed := 0
	prober := newFakeProber(func(ctx context.Context, _ string) probe.Result {
		probes.Lock()
		probed++
		n := probed
		probes.Unlock()
		if n <= cfg.EmitEvery {
			return probe.Result{Format: "MOV", Codec: "hevc"}
		}
		<-ctx.Done()
		return probe.Failed(ctx.Err())
	})

	bus := events.New(256)
	task, err := New(cfg, prober, bus).Start(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	batches := 0
	for batches == 0 {
		if time.Now().After(deadline) {
			task.Cancel()
			t.Fatal("no RecordsEvent before the gate")
		}
		for _, e := range bus.Drain(0) {
			if _, ok := e.(events.RecordsEvent); ok {
				batches++
			}
		}
		time.Sleep(5 * time.Millisecond)
	}

	task.Cancel()
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled scan did not finish")
	}
	res := task.Result()
	if !res.Cancelled {
		t.Error("Result().Cancelled = false")
	}
	if res.Count() > files {
		t.Errorf("Count() = %d, more than the %d files discovered", res.Count(), files)
	}
	if res.Count() < cfg.EmitEvery {
		t.Errorf("Count() = %d, want at least the %d published records", res.Count(), cfg.EmitEvery)
	}

	var complete []events.ScanCompleteEvent
	for _, e := range bus.Drain(0) {
		switch e := e.(type) {
		case events.RecordsEvent:
			t.Errorf("RecordsEvent with %d records published after Cancel", len(e.Records))
		case events.ScanCompleteEvent:
			complete = append(complete, e)
		}
	}
	if len(complete) != 1 || !complete[0].Cancelled || complete[0].Count != res.Count() {
		t.Errorf("completion events = %+v", complete)
	}
}

// gate pauses the walk until it is opened.
type gate struct {
	waits atomic.Int32
	open  chan struct{}
}

func (g *gate) WaitIfPaused(ctx context.Context) bool {
	g.waits.Add(1)
	select {
	case <-g.open:
		return true
	case <-ctx.Done():
		return false
	}
}

func TestPausedWalkWaits(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("clip%02d.mov", i)), 10)
	}

	t.Run("resumes", func(t *testing.T) {
		g := &gate{open: make(chan struct{})}
		prober := newFakeProber(nil)
		s := New(testConfig(), prober, nil)
		s.SetPauser(g)

		task, err := s.Start(context.Background(), dir)
		if err != nil {
			t.Fatal(err)
		}
		deadline := time.Now().Add(5 * time.Second)
		for g.waits.Load() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if g.waits.Load() == 0 {
			t.Fatal("walk never waited on the pauser")
		}
		for _, p := range []string{"clip00.mov", "clip01.mov"} {
			if n := prober.count(filepath.Join(dir, p)); n != 0 {
				t.Errorf("%s probed %d times while paused", p, n)
			}
		}

		close(g.open)
		res := task.Result()
		if res.Cancelled || res.Count() != 6 {
			t.Errorf("result after resume = %+v", res)
		}
	})

	t.Run("cancelled while paused", func(t *testing.T) {
		g := &gate{open: make(chan struct{})}
		s := New(testConfig(), newFakeProber(nil), nil)
		s.SetPauser(g)

		ctx, cancel := context.WithCancel(context.Background())
		task, err := s.Start(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		for g.waits.Load() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()

		select {
		case <-task.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("paused scan did not stop on cancel")
		}
		if !task.Result().Cancelled {
			t.Error("Result().Cancelled = false")
		}
	})
}
