package converter

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Process is a running transcode.
type Process interface {
	// Done is closed when the process has exited.
	Done() <-chan struct{}
	// Err is the exit error, valid after Done is closed.
	Err() error
	// Kill terminates the process. Killing an exited process is a no-op.
	Kill() error
}

// Launcher starts transcode processes. onLine receives each line the
// process writes to its progress stream.
type Launcher interface {
	Launch(name string, args []string, onLine func(string)) (Process, error)
}

// ExecLauncher starts real processes.
type ExecLauncher struct {
	// StderrLines is how many trailing stderr lines are kept for errors.
	StderrLines int
}

// Launch starts name with args, passing each stdout line to onLine.
func (l ExecLauncher) Launch(name string, args []string, onLine func(string)) (Process, error) {
	cmd := exec.Command(name, args...)
	// Bounds the wait for pipes held open by orphaned children.
	cmd.WaitDelay = 2 * time.Second

	keep := l.StderrLines
	if keep <= 0 {
		keep = 20
	}
	tail := &tailBuffer{max: keep}
	lines := &lineWriter{onLine: onLine}
	cmd.Stdout = lines
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		lines.flush()
		if err != nil {
			if last := tail.last(); last != "" {
				err = fmt.Errorf("%w: %s", err, last)
			}
		}
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()

	return p, nil
}

// lineWriter splits what it receives into lines.
type lineWriter struct {
	mu     sync.Mutex
	part   []byte
	onLine func(string)
}

// maxLine caps a single buffered line.
const maxLine = 1024 * 1024

func (w *lineWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range b {
		if c == '\n' {
			w.emit()
			continue
		}
		if len(w.part) < maxLine {
			w.part = append(w.part, c)
		}
	}
	return len(b), nil
}

func (w *lineWriter) emit() {
	line := strings.TrimRight(string(w.part), "\r")
	w.part = w.part[:0]
	if w.onLine != nil {
		w.onLine(line)
	}
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.part) > 0 {
		w.emit()
	}
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *execProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// tailBuffer keeps the last max lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
	part  strings.Builder
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range b {
		if c == '\n' || c == '\r' {
			t.push()
			continue
		}
		t.part.WriteByte(c)
	}
	return len(b), nil
}

func (t *tailBuffer) push() {
	line := strings.TrimSpace(t.part.String())
	t.part.Reset()
	if line == "" {
		return
	}
	if len(t.lines) == t.max {
		t.lines = t.lines[1:]
	}
	t.lines = append(t.lines, line)
}

func (t *tailBuffer) last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.push()
	if len(t.lines) == 0 {
		return ""
	}
	return t.lines[len(t.lines)-1]
}
