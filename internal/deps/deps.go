// Package deps checks that the external tools the converter shells out to
// are installed.
package deps

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"video-converter/internal/logging"
)

// ErrToolMissing is returned by Require when a tool cannot be run.
var ErrToolMissing = errors.New("required tool missing")

// versionTimeout bounds each "-version" call.
const versionTimeout = 5 * time.Second

// Tool is an external program and the install hint shown when it is absent.
type Tool struct {
	Name string
	// Binary is the command or path to run. Defaults to Name.
	Binary string
	Hint   string
}

// Status is the result of checking one tool.
type Status struct {
	Tool    Tool   `json:"tool"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Err     error  `json:"-"`
}

// OK reports whether the tool was found and answered -version.
func (s Status) OK() bool {
	return s.Err == nil
}

// Message returns the failure as text, or "" when OK.
func (s Status) Message() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Default returns ffmpeg and ffprobe with the given binaries.
func Default(ffmpeg, ffprobe string) []Tool {
	hint := "install FFmpeg (https://ffmpeg.org/download.html) and make sure it is on PATH"
	return []Tool{
		{Name: "ffmpeg", Binary: ffmpeg, Hint: hint},
		{Name: "ffprobe", Binary: ffprobe, Hint: hint},
	}
}

// Check resolves and runs each tool with -version.
func Check(ctx context.Context, tools []Tool) []Status {
	out := make([]Status, 0, len(tools))
	for _, t := range tools {
		out = append(out, check(ctx, t))
	}
	return out
}

func check(ctx context.Context, t Tool) Status {
	st := Status{Tool: t}
	bin := t.Binary
	if bin == "" {
		bin = t.Name
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		st.Err = fmt.Errorf("%s not found in PATH", bin)
		return st
	}
	st.Path = path

	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		st.Err = fmt.Errorf("failed to get %s version: %w", t.Name, err)
		return st
	}
	st.Version = firstLine(string(output))
	logging.Debug("  %s: %s (%s)", t.Name, path, st.Version)
	return st
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

// Require checks tools and returns ErrToolMissing naming every tool that
// failed, with its install hint.
func Require(ctx context.Context, tools []Tool) ([]Status, error) {
	statuses := Check(ctx, tools)
	var missing []string
	for _, s := range statuses {
		if !s.OK() {
			msg := s.Message()
			if s.Tool.Hint != "" {
				msg += ": " + s.Tool.Hint
			}
			missing = append(missing, msg)
		}
	}
	if len(missing) > 0 {
		return statuses, fmt.Errorf("%w: %s", ErrToolMissing, strings.Join(missing, "; "))
	}
	return statuses, nil
}
