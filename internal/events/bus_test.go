package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"video-converter/internal/media"
)

func logEvent(i int) LogEvent {
	return LogEvent{Level: LevelInfo, Message: fmt.Sprintf("m%d", i)}
}

func messages(batch []Event) []string {
	out := make([]string, 0, len(batch))
	for _, e := range batch {
		if l, ok := e.(LogEvent); ok {
			out = append(out, l.Message)
		} else {
			out = append(out, e.Kind())
		}
	}
	return out
}

func TestPublishDrainOrder(t *testing.T) {
	b := New(8)
	for i := 0; i < 5; i++ {
		b.Publish(logEvent(i))
	}

	got := messages(b.Drain(3))
	want := []string{"m0", "m1", "m2"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Drain(3) = %v, want %v", got, want)
	}

	got = messages(b.Drain(0))
	want = []string{"m3", "m4"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Drain(0) = %v, want %v", got, want)
	}

	if b.Drain(10) != nil {
		t.Error("Drain on empty bus should return nil")
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	b := New(3)
	for i := 0; i < 10; i++ {
		b.Publish(logEvent(i))
	}

	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}
	if b.Dropped() != 7 {
		t.Errorf("Dropped() = %d, want 7", b.Dropped())
	}

	got := messages(b.Drain(0))
	want := []string{"m7", "m8", "m9"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Drain() = %v, want %v", got, want)
	}
}

func TestTerminalEventsSurviveFlood(t *testing.T) {
	b := New(4)
	b.Publish(logEvent(0))
	b.Publish(ScanCompleteEvent{Count: 12})
	for i := 1; i < 50; i++ {
		b.Publish(logEvent(i))
	}

	batch := b.Drain(0)
	found := false
	for _, e := range batch {
		if c, ok := e.(ScanCompleteEvent); ok && c.Count == 12 {
			found = true
		}
	}
	if !found {
		t.Fatalf("ScanCompleteEvent was dropped; drained %v", messages(batch))
	}
	if len(batch) != 4 {
		t.Errorf("drained %d events, want 4", len(batch))
	}
	// The terminal event keeps its position relative to the survivors.
	if batch[0].Kind() != "scan_complete" {
		t.Errorf("first event = %s, want scan_complete", batch[0].Kind())
	}
}

func TestBusFullOfTerminalEvents(t *testing.T) {
	b := New(2)
	b.Publish(ScanCompleteEvent{Count: 1})
	b.Publish(ConvertCompleteEvent{Converted: 1})

	b.Publish(logEvent(0))
	if got := messages(b.Drain(0)); fmt.Sprint(got) != "[scan_complete convert_complete]" {
		t.Errorf("log event should have been discarded, got %v", got)
	}

	b.Publish(ScanCompleteEvent{Count: 1})
	b.Publish(ConvertCompleteEvent{Converted: 1})
	b.Publish(ScanCompleteEvent{Count: 2})
	batch := b.Drain(0)
	if len(batch) != 2 || batch[1].(ScanCompleteEvent).Count != 2 {
		t.Errorf("newest terminal event should replace the oldest, got %v", messages(batch))
	}
}

func TestClearKeepsTerminalEvents(t *testing.T) {
	b := New(10)
	b.Publish(logEvent(0))
	b.Publish(ProgressEvent{Processed: 1, Total: 2})
	b.Publish(ConvertCompleteEvent{Converted: 2})
	b.Publish(logEvent(1))

	if removed := b.Clear(); removed != 3 {
		t.Errorf("Clear() = %d, want 3", removed)
	}
	batch := b.Drain(0)
	if len(batch) != 1 || batch[0].Kind() != "convert_complete" {
		t.Errorf("after Clear drained %v, want [convert_complete]", messages(batch))
	}

	// Ring still works after compaction.
	b.Publish(logEvent(2))
	if got := messages(b.Drain(0)); fmt.Sprint(got) != "[m2]" {
		t.Errorf("Drain() = %v, want [m2]", got)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New(16)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				b.Publish(logEvent(i))
			}
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producers blocked on a full bus with no consumer")
	}

	if b.Len() != 16 {
		t.Errorf("Len() = %d, want 16", b.Len())
	}
	if b.Dropped() != 8000-16 {
		t.Errorf("Dropped() = %d, want %d", b.Dropped(), 8000-16)
	}
}

func TestNextInterval(t *testing.T) {
	cfg := PumpConfig{Interval: 100 * time.Millisecond, MinInterval: 10 * time.Millisecond, MaxBatch: 4}

	tests := []struct {
		name    string
		current time.Duration
		drained int
		want    time.Duration
	}{
		{name: "saturated halves", current: 100 * time.Millisecond, drained: 4, want: 50 * time.Millisecond},
		{name: "saturated floors", current: 15 * time.Millisecond, drained: 4, want: 10 * time.Millisecond},
		{name: "keeping up doubles", current: 20 * time.Millisecond, drained: 1, want: 40 * time.Millisecond},
		{name: "idle caps at interval", current: 80 * time.Millisecond, drained: 0, want: 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.NextInterval(tt.current, tt.drained); got != tt.want {
				t.Errorf("NextInterval(%v, %d) = %v, want %v", tt.current, tt.drained, got, tt.want)
			}
		})
	}
}

func TestPumpDeliversInBatches(t *testing.T) {
	b := New(100)
	for i := 0; i < 10; i++ {
		b.Publish(logEvent(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var sizes []int
	var seen []string

	finished := make(chan struct{})
	go func() {
		b.Pump(ctx, PumpConfig{Interval: 5 * time.Millisecond, MinInterval: time.Millisecond, MaxBatch: 3}, func(batch []Event) {
			mu.Lock()
			defer mu.Unlock()
			sizes = append(sizes, len(batch))
			seen = append(seen, messages(batch)...)
		})
		close(finished)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 10 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-finished

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 10 {
		t.Fatalf("pump delivered %d events, want 10", len(seen))
	}
	for i, m := range seen {
		if m != fmt.Sprintf("m%d", i) {
			t.Errorf("event %d = %s, out of order", i, m)
		}
	}
	for _, s := range sizes {
		if s > 3 {
			t.Errorf("batch of %d exceeds MaxBatch", s)
		}
	}
}

func TestPumpFlushesOnCancel(t *testing.T) {
	b := New(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b.Publish(ConvertCompleteEvent{Converted: 1})

	var got []Event
	b.Pump(ctx, PumpConfig{Interval: time.Hour}, func(batch []Event) {
		got = append(got, batch...)
	})

	if len(got) != 1 {
		t.Errorf("Pump flushed %d events on cancel, want 1", len(got))
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		e    ProgressEvent
		want float64
	}{
		{ProgressEvent{Processed: 0, Total: 0}, 0},
		{ProgressEvent{Processed: 1, Total: 4}, 25},
		{ProgressEvent{Processed: 1, Total: 4, Fraction: 0.5}, 37.5},
		{ProgressEvent{Processed: 4, Total: 4, Fraction: 0.9}, 100},
	}

	for _, tt := range tests {
		if got := tt.e.Percent(); got != tt.want {
			t.Errorf("%+v.Percent() = %v, want %v", tt.e, got, tt.want)
		}
	}
}

func TestEnvelopeJSON(t *testing.T) {
	data, err := json.Marshal(Wrap(StatusEvent{Path: "/v/a.mov", Status: media.StatusConverted}))
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			Path   string `json:"path"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != "status" || decoded.Data.Path != "/v/a.mov" || decoded.Data.Status != "converted" {
		t.Errorf("unexpected envelope %s", data)
	}
}

func TestLogBufferCapped(t *testing.T) {
	l := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		l.Append(logEvent(i))
	}

	lines := l.Lines()
	if len(lines) != 3 || lines[0].Message != "m2" || lines[2].Message != "m4" {
		t.Errorf("Lines() = %v, want m2..m4", lines)
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}
}

func TestBusLogPublishes(t *testing.T) {
	b := New(4)
	b.Log(LevelWarn, "could not stat %s", "/v/a.mov")
	b.Log("bogus", "plain")

	batch := b.Drain(0)
	if len(batch) != 2 {
		t.Fatalf("drained %d events, want 2", len(batch))
	}
	first := batch[0].(LogEvent)
	if first.Level != LevelWarn || first.Message != "could not stat /v/a.mov" {
		t.Errorf("first log = %+v", first)
	}
	if batch[1].(LogEvent).Level != LevelInfo {
		t.Errorf("unknown level should map to info, got %q", batch[1].(LogEvent).Level)
	}
}
