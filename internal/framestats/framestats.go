// Package framestats measures delivered frame rate over a sliding window of frame
// timestamps: mean FPS, spread, jitter and a stability verdict.
package framestats

import (
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a fraction of mean FPS.
	// Example: 10 FPS mean → stable if stddev < 1.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of the expected interval.
	// Example: 10 FPS (100ms interval) → stable if jitter < 20ms
	jitterStabilityThreshold = 0.20

	// DefaultWindow is the number of timestamps kept by NewWindow(0).
	DefaultWindow = 120
)

// FPS summarizes frame timing over a window.
type FPS struct {
	Frames   int
	Duration time.Duration

	Mean   float64
	StdDev float64
	Min    float64
	Max    float64

	// Jitter is the deviation of each interval from 1/Mean, in seconds.
	JitterMean float64
	JitterMax  float64

	Stable bool
}

// Compute derives FPS statistics from ordered frame timestamps observed over total.
//
// Stable requires both stddev < 15% of the mean and mean jitter < 20% of the
// expected interval. Fewer than two timestamps are never stable.
func Compute(frameTimes []time.Time, total time.Duration) FPS {
	n := len(frameTimes)
	out := FPS{Frames: n, Duration: total}
	if n == 0 || total <= 0 {
		return out
	}

	out.Mean = float64(n) / total.Seconds()

	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if d := frameTimes[i].Sub(frameTimes[i-1]).Seconds(); d > 0 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return out
	}

	out.Min, out.Max = math.Inf(1), 0
	var sq float64
	for _, d := range intervals {
		fps := 1 / d
		out.Min = math.Min(out.Min, fps)
		out.Max = math.Max(out.Max, fps)
		sq += (fps - out.Mean) * (fps - out.Mean)
	}
	out.StdDev = math.Sqrt(sq / float64(len(intervals)))

	expected := 1 / out.Mean
	var jitterSum float64
	for _, d := range intervals {
		j := math.Abs(d - expected)
		jitterSum += j
		out.JitterMax = math.Max(out.JitterMax, j)
	}
	out.JitterMean = jitterSum / float64(len(intervals))

	out.Stable = out.StdDev < out.Mean*fpsStabilityThreshold &&
		out.JitterMean < expected*jitterStabilityThreshold

	return out
}

// BelowTarget reports whether the measured mean falls under 90% of target.
// A non-positive target means unconstrained and is never missed.
func (f FPS) BelowTarget(target float64) bool {
	if target <= 0 || f.Frames < 2 {
		return false
	}
	return f.Mean < target*0.9
}

// Window is a fixed-size ring of frame timestamps. Safe for concurrent use: Record
// runs on the streaming thread, Snapshot on any reader.
type Window struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	full  bool
}

// NewWindow keeps the last size timestamps (DefaultWindow if size <= 0).
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Window{times: make([]time.Time, size)}
}

// Record adds one frame timestamp, evicting the oldest when full.
func (w *Window) Record(t time.Time) {
	w.mu.Lock()
	w.times[w.next] = t
	w.next = (w.next + 1) % len(w.times)
	if w.next == 0 {
		w.full = true
	}
	w.mu.Unlock()
}

// Reset forgets every recorded timestamp.
func (w *Window) Reset() {
	w.mu.Lock()
	w.next, w.full = 0, false
	w.mu.Unlock()
}

// Snapshot computes statistics over the recorded timestamps. The window spans
// from the oldest timestamp to now.
func (w *Window) Snapshot(now time.Time) FPS {
	w.mu.Lock()
	var ordered []time.Time
	if w.full {
		ordered = make([]time.Time, 0, len(w.times))
		ordered = append(ordered, w.times[w.next:]...)
		ordered = append(ordered, w.times[:w.next]...)
	} else {
		ordered = append([]time.Time(nil), w.times[:w.next]...)
	}
	w.mu.Unlock()

	if len(ordered) == 0 {
		return FPS{}
	}
	return Compute(ordered, now.Sub(ordered[0]))
}
