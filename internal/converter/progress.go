package converter

import (
	"strconv"
	"strings"
	"time"
)

// progressLine is one key=value pair from ffmpeg's -progress stream.
type progressLine struct {
	key   string
	value string
}

func parseProgressLine(line string) (progressLine, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || key == "" {
		return progressLine{}, false
	}
	return progressLine{key: strings.TrimSpace(key), value: strings.TrimSpace(value)}, true
}

// outTime extracts the encoded position from an out_time_us, out_time_ms
// or out_time line. ffmpeg reports out_time_ms in microseconds as well.
func (p progressLine) outTime() (time.Duration, bool) {
	switch p.key {
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(p.value, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		return time.Duration(us) * time.Microsecond, true
	case "out_time":
		return parseClock(p.value)
	}
	return 0, false
}

// parseClock parses HH:MM:SS.micro.
func parseClock(v string) (time.Duration, bool) {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || s < 0 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s*float64(time.Second)), true
}

// fraction returns position/total clamped to [0, 1], or 0 without a total.
func fraction(position, total time.Duration) float64 {
	if total <= 0 || position <= 0 {
		return 0
	}
	f := float64(position) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}
