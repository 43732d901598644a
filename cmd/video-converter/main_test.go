package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"video-converter/internal/converter"
	"video-converter/internal/deps"
	"video-converter/internal/events"
	"video-converter/internal/history"
	"video-converter/internal/media"
	"video-converter/internal/probe"
	"video-converter/internal/settings"
)

// =============================================================================
// Helpers
// =============================================================================

type fakeProber struct{}

func (fakeProber) Probe(_ context.Context, path string) probe.Result {
	if filepath.Ext(path) == ".mp4" {
		return probe.Result{Format: "MP4", Codec: "h264", Compatible: true}
	}
	return probe.Result{Format: "MOV", Codec: "hevc"}
}

// fakeLauncher writes the output file, or fails every file when fail is
// set.
type fakeLauncher struct {
	fail bool
}

type fakeProcess struct {
	done chan struct{}
	err  error
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Err() error            { return p.err }
func (p *fakeProcess) Kill() error           { return nil }

func (l fakeLauncher) Launch(_ string, args []string, onLine func(string)) (converter.Process, error) {
	p := &fakeProcess{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		if l.fail {
			p.err = errors.New("exit status 1: Invalid data found when processing input")
			return
		}
		onLine("out_time_us=5000000")
		onLine("progress=end")
		p.err = os.WriteFile(args[len(args)-1], []byte("mp4"), 0o644)
	}()
	return p, nil
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeVideos(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testSettings(t *testing.T) *settings.Settings {
	t.Helper()
	base := t.TempDir()
	cfg := settings.Default()
	cfg.Paths.SourceDir = filepath.Join(base, "src")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.HistoryDB = filepath.Join(base, "history.db")
	cfg.Conversion.PollInterval = "5ms"
	return &cfg
}

// =============================================================================
// Tests
// =============================================================================

func TestConfigCommands(t *testing.T) {
	t.Setenv("VIDEO_CONVERTER_CONFIG", "")
	path := filepath.Join(t.TempDir(), "conf", "settings.toml")

	out, err := executeCommand(t, "--config", path, "config", "path")
	if err != nil || strings.TrimSpace(out) != path {
		t.Fatalf("config path = %q, %v", out, err)
	}

	if _, err := executeCommand(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	if _, err := executeCommand(t, "--config", path, "config", "init"); err == nil {
		t.Error("second config init succeeded without --overwrite")
	}

	if _, err := executeCommand(t, "--config", path, "config", "set", "conversion.quality", "high"); err != nil {
		t.Fatalf("config set error = %v", err)
	}
	out, err = executeCommand(t, "--config", path, "config", "get", "conversion.quality")
	if err != nil || strings.TrimSpace(out) != "high" {
		t.Errorf("config get = %q, %v", out, err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{name: "invalid value", args: []string{"config", "set", "conversion.quality", "ultra"}},
		{name: "unknown key", args: []string{"config", "set", "conversion.nope", "1"}},
		{name: "undotted key", args: []string{"config", "get", "quality"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := executeCommand(t, append([]string{"--config", path}, tt.args...)...); err == nil {
				t.Errorf("%v succeeded", tt.args)
			}
		})
	}

	out, err = executeCommand(t, "--config", path, "config", "show")
	if err != nil || !strings.Contains(out, `quality = 'high'`) && !strings.Contains(out, `quality = "high"`) {
		t.Errorf("config show = %q, %v", out, err)
	}
}

func TestConfigSetRefusesMalformedFile(t *testing.T) {
	t.Setenv("VIDEO_CONVERTER_CONFIG", "")
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("[paths\nsource_dir ="), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := executeCommand(t, "--config", path, "config", "set", "conversion.quality", "low")
	if !errors.Is(err, settings.ErrMalformed) {
		t.Fatalf("config set error = %v, want ErrMalformed", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[paths\nsource_dir =" {
		t.Error("malformed settings file was overwritten")
	}
}

func TestApplyOverrides(t *testing.T) {
	o := runOverrides{
		output:            "/tmp/out",
		quality:           "low",
		resolution:        "Original",
		includeCompatible: false,
		deleteOriginals:   true,
	}

	tests := []struct {
		name    string
		changed []string
		check   func(*settings.Settings) bool
	}{
		{name: "none", check: func(s *settings.Settings) bool {
			return s.Conversion.Quality == "medium" && s.Scan.IncludeCompatible && !s.Conversion.DeleteOriginals
		}},
		{name: "quality", changed: []string{"quality"}, check: func(s *settings.Settings) bool {
			return s.Conversion.Quality == "low" && s.Conversion.Resolution == "1920x1080"
		}},
		{name: "all", changed: []string{"output", "quality", "resolution", "include-compatible", "delete-originals"},
			check: func(s *settings.Settings) bool {
				return s.Paths.OutputDir == "/tmp/out" && s.Conversion.Resolution == "Original" &&
					!s.Scan.IncludeCompatible && s.Conversion.DeleteOriginals
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := settings.Default()
			changed := func(name string) bool {
				for _, c := range tt.changed {
					if c == name {
						return true
					}
				}
				return false
			}
			applyOverrides(&cfg, o, changed)
			if !tt.check(&cfg) {
				t.Errorf("settings after overrides = %+v", cfg)
			}
		})
	}
}

func TestRunConvert(t *testing.T) {
	cfg := testSettings(t)
	writeVideos(t, cfg.Paths.SourceDir, "a.mov", "trip/b.avi", "c.mp4")

	a, err := newApp(context.Background(), cfg, appOptions{launcher: fakeLauncher{}, prober: fakeProber{}, withHistory: true})
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	var out bytes.Buffer
	if err := runConvert(context.Background(), a, cfg.Paths.SourceDir, &out, false); err != nil {
		t.Fatalf("runConvert() error = %v\n%s", err, out.String())
	}

	for _, want := range []string{"a.mp4", filepath.Join("trip", "b.mp4"), "c.mp4"} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, want)); err != nil {
			t.Errorf("output %s missing: %v", want, err)
		}
	}
	if !strings.Contains(out.String(), "Converted") || !strings.Contains(out.String(), "Progress: 3/3") {
		t.Errorf("output = %s", out.String())
	}

	runs, err := a.history.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Converted != 3 {
		t.Errorf("journaled runs = %+v", runs)
	}

	// Every destination exists now, so a second run skips all files
	out.Reset()
	if err := runConvert(context.Background(), a, cfg.Paths.SourceDir, &out, false); err != nil {
		t.Fatalf("second runConvert() error = %v", err)
	}
	sum, _ := a.session.LastSummary()
	if sum.Skipped != 3 || sum.Converted != 0 {
		t.Errorf("second run summary = %+v", sum)
	}
}

func TestRunConvertReportsFailures(t *testing.T) {
	cfg := testSettings(t)
	writeVideos(t, cfg.Paths.SourceDir, "a.mov")

	a, err := newApp(context.Background(), cfg, appOptions{launcher: fakeLauncher{fail: true}, prober: fakeProber{}})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if a.history != nil {
		t.Error("history opened without withHistory")
	}

	var out bytes.Buffer
	err = runConvert(context.Background(), a, cfg.Paths.SourceDir, &out, false)
	if !errors.Is(err, errConversionsFailed) {
		t.Fatalf("runConvert() error = %v, want errConversionsFailed", err)
	}
	if !strings.Contains(out.String(), "Invalid data found") {
		t.Errorf("failure reason missing from output:\n%s", out.String())
	}
}

func TestRunConvertInvalidSource(t *testing.T) {
	cfg := testSettings(t)
	a, err := newApp(context.Background(), cfg, appOptions{launcher: fakeLauncher{}, prober: fakeProber{}})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	var out bytes.Buffer
	if err := runConvert(context.Background(), a, filepath.Join(cfg.Paths.SourceDir, "missing"), &out, false); err == nil {
		t.Error("runConvert() accepted a missing source folder")
	}
	if _, err := os.Stat(cfg.Paths.OutputDir); !os.IsNotExist(err) {
		t.Error("output folder created for a rejected run")
	}
}

func TestNewAppRejectsInvalidSettings(t *testing.T) {
	cfg := testSettings(t)
	cfg.Conversion.Quality = "ultra"
	if _, err := newApp(context.Background(), cfg, appOptions{prober: fakeProber{}}); err == nil {
		t.Error("newApp() accepted an invalid quality")
	}
}

func TestNewAppMonitor(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		t.Run(yesNo(enabled), func(t *testing.T) {
			cfg := testSettings(t)
			cfg.Monitor.Enabled = enabled
			a, err := newApp(context.Background(), cfg, appOptions{prober: fakeProber{}})
			if err != nil {
				t.Fatal(err)
			}
			if (a.monitor != nil) != enabled {
				t.Errorf("monitor built = %v, want %v", a.monitor != nil, enabled)
			}
			a.startMonitor()
			if err := a.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func TestCheckCommandMissingTools(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	out, err := executeCommand(t, "--ffmpeg", "no-such-ffmpeg", "--ffprobe", "no-such-ffprobe", "check")
	if !errors.Is(err, deps.ErrToolMissing) {
		t.Fatalf("check error = %v, want ErrToolMissing", err)
	}
	if !strings.Contains(out, "MISSING") || !strings.Contains(out, "install FFmpeg") {
		t.Errorf("check output = %s", out)
	}
}

func TestCommandsRequireTools(t *testing.T) {
	base := t.TempDir()
	t.Setenv("VIDEO_CONVERTER_CONFIG", filepath.Join(base, "settings.toml"))
	src := filepath.Join(base, "src")
	writeVideos(t, src, "a.mov")
	output := filepath.Join(base, "out")

	tests := []struct {
		name string
		args []string
	}{
		{name: "scan", args: []string{"scan", src}},
		{name: "convert", args: []string{"convert", src, "--output", output, "--no-history"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{
				"--ffmpeg", filepath.Join(base, "missing", "ffmpeg"),
				"--ffprobe", filepath.Join(base, "missing", "ffprobe"),
			}, tt.args...)
			out, err := executeCommand(t, args...)
			if !errors.Is(err, deps.ErrToolMissing) {
				t.Fatalf("%s error = %v, want ErrToolMissing", tt.name, err)
			}
			if !strings.Contains(out, "install FFmpeg") {
				t.Errorf("missing install hint in output: %s", out)
			}
			if strings.Contains(out, "videos") {
				t.Errorf("%s scanned without its tools: %s", tt.name, out)
			}
			if _, err := os.Stat(output); !os.IsNotExist(err) {
				t.Error("output folder created without the tools")
			}
		})
	}
}

func TestReporterPlainOutput(t *testing.T) {
	var out bytes.Buffer
	rep := newReporter(&out, false)
	rep.handle([]events.Event{
		events.ProgressEvent{Processed: 0, Total: 2, Path: "/src/a.mov", Fraction: 0.5},
		events.StatusEvent{Path: "/src/a.mov", Status: media.StatusConverted},
		events.ProgressEvent{Processed: 1, Total: 2},
		events.StatusEvent{Path: "/src/b.mov", Status: media.StatusFailed, Error: "boom"},
		events.ProgressEvent{Processed: 2, Total: 2},
		events.ConvertCompleteEvent{Converted: 1, Failed: 1},
	})

	got := out.String()
	for _, want := range []string{"Converted: /src/a.mov", "Progress: 1/2 (50%)", "Failed: /src/b.mov: boom", "Progress: 2/2 (100%)"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Progress: 0/2") {
		t.Error("progress line printed before any file finished")
	}
	if f := rep.Failures(); len(f) != 1 || f[0].path != "/src/b.mov" {
		t.Errorf("Failures() = %+v", f)
	}
}

func TestRunResult(t *testing.T) {
	done := time.Now()
	tests := []struct {
		run  history.Run
		want string
	}{
		{history.Run{}, "running"},
		{history.Run{FinishedAt: done}, "done"},
		{history.Run{FinishedAt: done, Cancelled: true}, "cancelled"},
		{history.Run{FinishedAt: done, Cancelled: true, Stuck: true}, "stalled"},
	}
	for _, tt := range tests {
		if got := runResult(tt.run); got != tt.want {
			t.Errorf("runResult(%+v) = %s, want %s", tt.run, got, tt.want)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	got := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(got, "only") || !strings.Contains(got, "A") {
		t.Errorf("renderTable() = %s", got)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("renderTable() with no headers should be empty")
	}
}
