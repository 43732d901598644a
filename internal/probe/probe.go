package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"video-converter/internal/logging"
	"video-converter/internal/media"
	"video-converter/internal/mediatypes"
	"video-converter/internal/metrics"
)

// DefaultTimeout bounds a single ffprobe invocation.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is reported when ffprobe does not finish within the timeout.
var ErrTimeout = errors.New("ffprobe timed out")

// Result is the metadata the converter needs about one file. When Err is
// set the other fields hold the "Unknown" sentinel values.
type Result struct {
	Format     string        `json:"format"`
	Codec      string        `json:"codec,omitempty"`
	Compatible bool          `json:"compatible"`
	Duration   time.Duration `json:"duration,omitempty"`
	Width      int           `json:"width,omitempty"`
	Height     int           `json:"height,omitempty"`
	Err        error         `json:"-"`
}

// Failed returns the sentinel result for a probe that did not produce
// metadata.
func Failed(err error) Result {
	return Result{Format: media.UnknownFormat, Err: err}
}

// OK reports whether the probe produced metadata.
func (r Result) OK() bool {
	return r.Err == nil
}

// Apply copies the probe outcome onto a record.
func (r Result) Apply(rec *media.VideoRecord) {
	rec.Format = r.Format
	rec.Codec = r.Codec
	rec.Compatible = r.Compatible
}

// Prober extracts metadata from a video file. Implementations never fail:
// problems are reported through Result.Err.
type Prober interface {
	Probe(ctx context.Context, path string) Result
}

// FFprobe runs the ffprobe binary.
type FFprobe struct {
	Binary  string
	Timeout time.Duration
}

// NewFFprobe creates an FFprobe prober. An empty binary means "ffprobe" on
// PATH; a zero timeout means DefaultTimeout.
func NewFFprobe(binary string, timeout time.Duration) *FFprobe {
	if binary == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FFprobe{Binary: binary, Timeout: timeout}
}

// Probe runs ffprobe against path. A timeout, a non-zero exit or malformed
// output all produce the Unknown sentinel.
func (p *FFprobe) Probe(ctx context.Context, path string) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.ProbeTotal.WithLabelValues("timeout").Inc()
			logging.Warn("ffprobe timed out after %v: %s", p.Timeout, path)
			return Failed(ErrTimeout)
		}
		metrics.ProbeTotal.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return Failed(ctx.Err())
		}
		logging.Debug("ffprobe failed for %s: %v %s", path, err, strings.TrimSpace(stderr.String()))
		return Failed(fmt.Errorf("ffprobe: %w", err))
	}

	res, err := ParseJSON(path, stdout.Bytes())
	if err != nil {
		metrics.ProbeTotal.WithLabelValues("error").Inc()
		logging.Debug("ffprobe output for %s could not be parsed: %v", path, err)
		return Failed(err)
	}

	metrics.ProbeTotal.WithLabelValues("ok").Inc()
	return res
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeStream struct {
	CodecName   string         `json:"codec_name"`
	CodecType   string         `json:"codec_type"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Disposition map[string]int `json:"disposition"`
}

// ParseJSON converts raw ffprobe JSON for path into a Result. Exported so the
// decoding can be tested without an ffprobe binary.
func ParseJSON(path string, data []byte) (Result, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return Result{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	if raw.Format.FormatName == "" {
		return Result{}, errors.New("ffprobe output has no format_name")
	}

	res := Result{
		Format: formatLabel(raw.Format.FormatName, path),
	}

	if secs, err := strconv.ParseFloat(strings.TrimSpace(raw.Format.Duration), 64); err == nil && secs > 0 {
		res.Duration = time.Duration(secs * float64(time.Second))
	}

	for _, s := range raw.Streams {
		if s.CodecType != "video" || s.Disposition["attached_pic"] == 1 {
			continue
		}
		res.Codec = s.CodecName
		res.Width = s.Width
		res.Height = s.Height
		break
	}

	res.Compatible = isCompatible(res.Codec, raw.Format.FormatName, path)
	return res, nil
}

// formatLabel picks a short container label from ffprobe's comma separated
// demuxer list, preferring the entry that matches the file extension.
func formatLabel(formatName, path string) string {
	names := strings.Split(formatName, ",")
	ext := strings.TrimPrefix(mediatypes.Ext(path), ".")
	for _, n := range names {
		if strings.TrimSpace(n) == ext {
			return strings.ToUpper(ext)
		}
	}
	return strings.ToUpper(strings.TrimSpace(names[0]))
}

// isCompatible reports whether the file already plays natively: H.264
// video in an MP4 family container with an .mp4 or .m4v extension.
func isCompatible(codec, formatName, path string) bool {
	if codec != "h264" || !mediatypes.IsCompatibleContainer(path) {
		return false
	}
	for _, n := range strings.Split(formatName, ",") {
		if strings.TrimSpace(n) == "mp4" {
			return true
		}
	}
	return false
}
