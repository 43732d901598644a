package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/procfs"

	"video-converter/internal/events"
	"video-converter/internal/logging"
	"video-converter/internal/metrics"
)

// Config holds resource monitor configuration
type Config struct {
	// MemoryLimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	MemoryLimitBytes int64

	// HighWaterMark is the fraction of the limit at which relief runs (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the fraction at which IsPaused reports true (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often usage is sampled
	CheckInterval time.Duration
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		MemoryLimitBytes:  0,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Publisher receives ResourceEvents. *events.Bus satisfies it.
type Publisher interface {
	Publish(events.Event)
}

type reliever struct {
	name string
	fn   func()
}

// Sample is one reading of process resource usage.
type Sample struct {
	HeapBytes     uint64
	ResidentBytes uint64
	// CPU is the fraction of one core used since the previous sample.
	CPU float64
}

// Monitor samples heap and process usage and relieves memory pressure by
// running registered relievers and forcing a collection. It is advisory:
// nothing it does stops work.
type Monitor struct {
	config    Config
	limit     int64
	stopChan  chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	current   uint64
	resident  uint64
	cpu       float64
	isPaused  bool
	pauseChan chan struct{}

	relievers []reliever
	publisher Publisher

	readHeap func() uint64
	proc     *procSampler
}

// NewMonitor creates a resource monitor.
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes

	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			logging.Info("Resource monitor using GOMEMLIMIT: %s", formatBytes(limit))
		}
	}

	if limit == 0 {
		logging.Warn("Resource monitor: no memory limit configured, relief disabled")
	}

	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
		readHeap:  heapAlloc,
		proc:      newProcSampler(),
	}
}

// AddReliever registers fn to run whenever usage crosses the high water
// mark. Relievers run on the monitor goroutine and must not block.
func (m *Monitor) AddReliever(name string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relievers = append(m.relievers, reliever{name: name, fn: fn})
}

// SetPublisher sets where ResourceEvents are sent after relief.
func (m *Monitor) SetPublisher(p Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publisher = p
}

// Start begins sampling on a background goroutine.
func (m *Monitor) Start() {
	go m.monitorLoop()
}

// Stop stops the monitor. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkMemory()
		case <-m.stopChan:
			return
		}
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// checkMemory takes one sample and relieves pressure if needed.
func (m *Monitor) checkMemory() {
	heap := m.readHeap()
	resident, cpu := m.proc.sample()
	if resident > 0 {
		metrics.ProcessResidentBytes.Set(float64(resident))
	}
	metrics.ProcessCPURatio.Set(cpu)

	m.mu.Lock()
	m.current = heap
	m.resident = resident
	m.cpu = cpu

	if m.limit <= 0 {
		m.mu.Unlock()
		return
	}

	usage := float64(heap) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	high := usage >= m.config.HighWaterMark
	switch {
	case usage >= m.config.CriticalWaterMark:
		if !m.isPaused {
			logging.Warn("Memory critical (%.1f%% of limit)", usage*100)
			m.isPaused = true
			metrics.MemoryPaused.Set(1)
		}
	case usage < m.config.HighWaterMark:
		if m.isPaused {
			logging.Info("Memory recovered (%.1f%% of limit)", usage*100)
			m.isPaused = false
			metrics.MemoryPaused.Set(0)
			close(m.pauseChan)
			m.pauseChan = make(chan struct{})
		}
	}

	relievers := append([]reliever(nil), m.relievers...)
	publisher := m.publisher
	m.mu.Unlock()

	if !high {
		return
	}

	logging.Warn("Memory usage %.1f%% of %s, clearing caches", usage*100, formatBytes(m.limit))
	m.relieve(relievers)

	if publisher != nil {
		publisher.Publish(events.ResourceEvent{
			HeapBytes:     heap,
			LimitBytes:    m.limit,
			Usage:         usage,
			ResidentBytes: resident,
			CPU:           cpu,
			Relieved:      true,
		})
	}
}

func (m *Monitor) relieve(relievers []reliever) {
	for _, r := range relievers {
		func() {
			defer func() {
				if p := recover(); p != nil {
					logging.Error("Reliever %s panicked: %v", r.name, p)
				}
			}()
			r.fn()
			logging.Debug("Reliever %s ran", r.name)
		}()
	}
	metrics.MemoryReliefTotal.Inc()
	metrics.MemoryGCPauses.Inc()
	m.ForceGC()
}

// WaitIfPaused blocks while usage is critical. It returns false if ctx
// ends or the monitor is stopped while waiting.
func (m *Monitor) WaitIfPaused(ctx context.Context) bool {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return true
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	select {
	case <-pauseChan:
		return true
	case <-m.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

// IsPaused reports whether usage is above the critical water mark.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetUsage returns heap usage as a fraction of the limit, or 0 without one.
func (m *Monitor) GetUsage() float64 {
	if m.limit == 0 {
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return float64(m.current) / float64(m.limit)
}

// LastSample returns the most recent reading.
func (m *Monitor) LastSample() Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Sample{HeapBytes: m.current, ResidentBytes: m.resident, CPU: m.cpu}
}

// ForceGC triggers a garbage collection and returns freed memory to the OS.
func (m *Monitor) ForceGC() {
	debug.FreeOSMemory()
}

// procSampler reads resident memory and CPU time from /proc. On systems
// without procfs it reports zeros.
type procSampler struct {
	proc     procfs.Proc
	ok       bool
	lastCPU  float64
	lastWall time.Time
}

func newProcSampler() *procSampler {
	p, err := procfs.Self()
	if err != nil {
		logging.Debug("procfs unavailable, process sampling disabled: %v", err)
		return &procSampler{}
	}
	return &procSampler{proc: p, ok: true}
}

func (s *procSampler) sample() (resident uint64, cpu float64) {
	if s == nil || !s.ok {
		return 0, 0
	}
	stat, err := s.proc.Stat()
	if err != nil {
		logging.Debug("procfs stat failed: %v", err)
		return 0, 0
	}

	now := time.Now()
	total := stat.CPUTime()
	if !s.lastWall.IsZero() {
		if wall := now.Sub(s.lastWall).Seconds(); wall > 0 {
			cpu = (total - s.lastCPU) / wall
		}
	}
	s.lastCPU = total
	s.lastWall = now

	if rss := stat.ResidentMemory(); rss > 0 {
		resident = uint64(rss)
	}
	return resident, cpu
}
