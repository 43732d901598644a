package converter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"video-converter/internal/mediatypes"
	"video-converter/internal/settings"
)

var (
	// ErrInvalidQuality is returned for a quality other than high, medium
	// or low.
	ErrInvalidQuality = errors.New("invalid quality")
	// ErrInvalidResolution is returned for a resolution that is neither
	// "Original" nor WxH.
	ErrInvalidResolution = errors.New("invalid resolution")
)

// Quality selects the constant rate factor.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

var crfByQuality = map[Quality]int{
	QualityHigh:   18,
	QualityMedium: 23,
	QualityLow:    28,
}

// ParseQuality accepts high, medium or low in any case.
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := crfByQuality[q]; !ok {
		return "", fmt.Errorf("%w %q: want high, medium or low", ErrInvalidQuality, s)
	}
	return q, nil
}

// CRF returns the x264 constant rate factor for q.
func (q Quality) CRF() int {
	return crfByQuality[q]
}

// PartSuffix marks output that is still being written.
const PartSuffix = ".part"

// Options are the encoding choices shared by every file in a run.
type Options struct {
	Quality Quality
	// Resolution is "Original" or a WxH bounding box.
	Resolution string
}

// DefaultOptions returns medium quality bounded to 1920x1080.
func DefaultOptions() Options {
	return Options{Quality: QualityMedium, Resolution: "1920x1080"}
}

// Validate checks the quality and resolution.
func (o Options) Validate() error {
	if _, ok := crfByQuality[o.Quality]; !ok {
		return fmt.Errorf("%w %q", ErrInvalidQuality, o.Quality)
	}
	if _, _, _, err := settings.ParseResolution(o.Resolution); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResolution, err)
	}
	return nil
}

// ScaleFilter returns the -vf value that fits the video inside w×h without
// ever enlarging it, keeping the aspect ratio and even dimensions.
func ScaleFilter(w, h int) string {
	return fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2", w, h)
}

// BuildArgs returns the ffmpeg arguments that convert input into an
// iPhone-compatible H.264/AAC MP4 at output. The result depends only on
// its inputs.
func BuildArgs(input, output string, opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", input,
		"-c:v", "libx264",
		"-profile:v", "high",
		"-level", "4.0",
		"-pix_fmt", "yuv420p",
		"-crf", strconv.Itoa(opts.Quality.CRF()),
	}

	if w, h, scaled, _ := settings.ParseResolution(opts.Resolution); scaled {
		args = append(args, "-vf", ScaleFilter(w, h))
	}

	args = append(args,
		"-c:a", "aac",
		"-ar", "44100",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		"-f", "mp4",
		output,
	)
	return args, nil
}

// Destination maps a source file to its output path: the path relative to
// sourceRoot is recreated under outputRoot with the extension replaced by
// .mp4. Files outside sourceRoot land directly in outputRoot.
func Destination(sourceRoot, outputRoot, path string) string {
	rel, err := filepath.Rel(sourceRoot, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(path)
	}
	return filepath.Join(outputRoot, mediatypes.WithTargetExtension(rel))
}
