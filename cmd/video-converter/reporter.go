package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"video-converter/internal/events"
	"video-converter/internal/media"
)

// barScale is the resolution of the progress bar: one step per 0.1%.
const barScale = 1000

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type failure struct {
	path string
	err  string
}

// reporter renders drained bus events for the terminal: a progress bar
// when interactive, one line per finished file otherwise.
type reporter struct {
	out io.Writer
	tty bool

	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	processed int
	failures  []failure
}

func newReporter(out io.Writer, tty bool) *reporter {
	return &reporter{out: out, tty: tty}
}

func (r *reporter) handle(batch []events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range batch {
		switch e := e.(type) {
		case events.ScanStatusEvent:
			r.println(e.Message)
		case events.ScanCompleteEvent:
			if e.Cancelled {
				r.println(fmt.Sprintf("Scan cancelled after %d videos", e.Count))
			}
		case events.StatusEvent:
			r.status(e)
		case events.ProgressEvent:
			r.progress(e)
		case events.ConvertCompleteEvent:
			r.finishBar()
		case events.LogEvent:
			if e.Level == events.LevelError {
				r.println(e.Message)
			}
		}
	}
}

func (r *reporter) status(e events.StatusEvent) {
	switch e.Status {
	case media.StatusFailed:
		r.failures = append(r.failures, failure{path: e.Path, err: e.Error})
		r.println(fmt.Sprintf("Failed: %s: %s", e.Path, e.Error))
	case media.StatusConverted, media.StatusSkipped:
		if !r.tty {
			r.println(fmt.Sprintf("%s: %s", e.Status.Label(), e.Path))
		}
	}
}

func (r *reporter) progress(e events.ProgressEvent) {
	if !r.tty {
		if e.Processed != r.processed {
			r.processed = e.Processed
			fmt.Fprintf(r.out, "Progress: %d/%d (%.0f%%)\n", e.Processed, e.Total, e.Percent())
		}
		return
	}

	if r.bar == nil {
		r.bar = progressbar.NewOptions(barScale,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription("Converting"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "▐",
				BarEnd:        "▌",
			}),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	desc := fmt.Sprintf("[%d/%d]", min(e.Processed+1, e.Total), e.Total)
	if e.Path != "" {
		desc += " " + filepath.Base(e.Path)
	}
	r.bar.Describe(desc)
	_ = r.bar.Set(int(e.Percent() * barScale / 100))
}

func (r *reporter) finishBar() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	fmt.Fprintln(r.out)
	r.bar = nil
}

// println writes a line without tearing the progress bar.
func (r *reporter) println(line string) {
	if r.bar != nil {
		_ = r.bar.Clear()
	}
	fmt.Fprintln(r.out, line)
}

// Failures returns the failed files seen so far.
func (r *reporter) Failures() []failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]failure(nil), r.failures...)
}
