package events

import "sync"

// DefaultLogLines is the number of lines the visible log keeps.
const DefaultLogLines = 500

// LogBuffer is the size-capped log shown to the user. Oldest lines are
// discarded first.
type LogBuffer struct {
	mu    sync.RWMutex
	lines []LogEvent
	max   int
}

// NewLogBuffer creates a buffer holding at most max lines.
func NewLogBuffer(max int) *LogBuffer {
	if max < 1 {
		max = DefaultLogLines
	}
	return &LogBuffer{max: max}
}

// Append adds a line.
func (l *LogBuffer) Append(e LogEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.lines) == l.max {
		copy(l.lines, l.lines[1:])
		l.lines[len(l.lines)-1] = e
		return
	}
	l.lines = append(l.lines, e)
}

// Lines returns a copy of the buffered lines, oldest first.
func (l *LogBuffer) Lines() []LogEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LogEvent, len(l.lines))
	copy(out, l.lines)
	return out
}

// Len returns the number of buffered lines.
func (l *LogBuffer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.lines)
}
