package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"video-converter/internal/logging"
	"video-converter/internal/metrics"
)

// DefaultCapacity is the number of events held before the bus starts
// dropping.
const DefaultCapacity = 1024

// Bus is a bounded multi-producer, single-consumer event queue. Publish
// never blocks: when the queue is full the oldest non-terminal event is
// discarded and counted.
type Bus struct {
	mu   sync.Mutex
	buf  []Event
	head int
	n    int

	dropped atomic.Uint64
}

// New creates a bus holding at most capacity events.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Bus{buf: make([]Event, capacity)}
}

// Publish enqueues e without blocking.
func (b *Bus) Publish(e Event) {
	if e == nil {
		return
	}
	metrics.BusPublished.Inc()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.n == len(b.buf) && !b.dropOldestLocked() {
		// Every queued event is terminal.
		if !Terminal(e) {
			b.countDrop(1)
			return
		}
		b.dropHeadLocked()
	}

	b.buf[(b.head+b.n)%len(b.buf)] = e
	b.n++
	metrics.BusQueueDepth.Set(float64(b.n))
}

// dropOldestLocked removes the oldest non-terminal event. It returns false,
// leaving the queue untouched, when every queued event is terminal.
func (b *Bus) dropOldestLocked() bool {
	size := len(b.buf)
	for i := 0; i < b.n; i++ {
		if Terminal(b.buf[(b.head+i)%size]) {
			continue
		}
		// Close the gap by shifting the older entries forward one slot.
		for j := i; j > 0; j-- {
			b.buf[(b.head+j)%size] = b.buf[(b.head+j-1)%size]
		}
		b.dropHeadLocked()
		return true
	}
	return false
}

func (b *Bus) dropHeadLocked() {
	b.buf[b.head] = nil
	b.head = (b.head + 1) % len(b.buf)
	b.n--
	b.countDrop(1)
}

func (b *Bus) countDrop(n int) {
	b.dropped.Add(uint64(n))
	metrics.BusDropped.Add(float64(n))
}

// Drain removes and returns up to max events in publish order. max <= 0
// drains everything.
func (b *Bus) Drain(max int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := b.n
	if max > 0 && count > max {
		count = max
	}
	if count == 0 {
		return nil
	}

	out := make([]Event, count)
	for i := 0; i < count; i++ {
		idx := (b.head + i) % len(b.buf)
		out[i] = b.buf[idx]
		b.buf[idx] = nil
	}
	b.head = (b.head + count) % len(b.buf)
	b.n -= count
	metrics.BusQueueDepth.Set(float64(b.n))
	return out
}

// Clear discards every queued non-terminal event and returns how many were
// removed. Used to release memory under pressure.
func (b *Bus) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := make([]Event, 0, b.n)
	for i := 0; i < b.n; i++ {
		idx := (b.head + i) % len(b.buf)
		if Terminal(b.buf[idx]) {
			kept = append(kept, b.buf[idx])
		}
		b.buf[idx] = nil
	}

	removed := b.n - len(kept)
	b.head = 0
	b.n = copy(b.buf, kept)
	if removed > 0 {
		b.countDrop(removed)
	}
	metrics.BusQueueDepth.Set(float64(b.n))
	return removed
}

// Len returns the number of queued events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Capacity returns the maximum number of queued events.
func (b *Bus) Capacity() int {
	return len(b.buf)
}

// Dropped returns the number of events discarded since creation.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Log publishes a LogEvent and writes the same message through the
// process logger.
func (b *Bus) Log(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case LevelError:
		logging.Error("%s", msg)
	case LevelWarn:
		logging.Warn("%s", msg)
	default:
		level = LevelInfo
		logging.Info("%s", msg)
	}
	b.Publish(LogEvent{Time: time.Now(), Level: level, Message: msg})
}

// PumpConfig controls the consumer loop.
type PumpConfig struct {
	// Interval is the idle polling interval.
	Interval time.Duration
	// MinInterval bounds how fast polling speeds up while saturated.
	MinInterval time.Duration
	// MaxBatch caps the events handed to the handler per tick.
	MaxBatch int
}

// DefaultPumpConfig returns the consumer defaults.
func DefaultPumpConfig() PumpConfig {
	return PumpConfig{
		Interval:    100 * time.Millisecond,
		MinInterval: 10 * time.Millisecond,
		MaxBatch:    64,
	}
}

// NextInterval returns the polling interval after a tick that drained n
// events. A full batch halves the interval down to MinInterval; anything
// less doubles it back toward Interval.
func (c PumpConfig) NextInterval(current time.Duration, n int) time.Duration {
	if n >= c.MaxBatch {
		next := current / 2
		if next < c.MinInterval {
			next = c.MinInterval
		}
		return next
	}
	next := current * 2
	if next > c.Interval {
		next = c.Interval
	}
	return next
}

// Pump drains the bus on a timer and hands each batch to handle until ctx
// is cancelled, then flushes whatever remains. It is the bus's single
// consumer.
func (b *Bus) Pump(ctx context.Context, cfg PumpConfig, handle func([]Event)) {
	def := DefaultPumpConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MinInterval <= 0 || cfg.MinInterval > cfg.Interval {
		cfg.MinInterval = min(def.MinInterval, cfg.Interval)
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = def.MaxBatch
	}

	interval := cfg.Interval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if rest := b.Drain(0); len(rest) > 0 {
				handle(rest)
			}
			return
		case <-timer.C:
			batch := b.Drain(cfg.MaxBatch)
			if len(batch) > 0 {
				handle(batch)
			}
			interval = cfg.NextInterval(interval, len(batch))
			timer.Reset(interval)
		}
	}
}
