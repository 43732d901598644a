package converter

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"video-converter/internal/logging"
	"video-converter/internal/metrics"
)

// ErrStuck is the cancellation cause when a run makes no progress for
// longer than the idle limit.
var ErrStuck = errors.New("conversion stalled")

// Activity is the last time a run made progress.
type Activity struct {
	last atomic.Int64
}

// NewActivity returns an Activity touched now.
func NewActivity() *Activity {
	a := &Activity{}
	a.Touch()
	return a
}

// Touch records progress.
func (a *Activity) Touch() {
	a.last.Store(time.Now().UnixNano())
}

// Idle returns the time since the last Touch.
func (a *Activity) Idle() time.Duration {
	return time.Since(time.Unix(0, a.last.Load()))
}

// watch cancels the run with ErrStuck once activity has been idle longer
// than limit. It returns when ctx is done.
func watch(ctx context.Context, activity *Activity, limit time.Duration, cancel context.CancelCauseFunc) {
	check := limit / 10
	if check < 10*time.Millisecond {
		check = 10 * time.Millisecond
	}
	if check > 5*time.Second {
		check = 5 * time.Second
	}

	ticker := time.NewTicker(check)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if idle := activity.Idle(); idle > limit {
				logging.Error("No conversion progress for %v, aborting run", idle.Round(time.Second))
				metrics.WatchdogTrips.Inc()
				cancel(ErrStuck)
				return
			}
		}
	}
}
