package profiler

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Summary is the timing distribution of one operation.
type Summary struct {
	Name  string        `json:"name"`
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
}

// TimeTracker tracks operation timing statistics. Count, Min and Max cover every
// recorded sample; Mean and percentiles cover the most recent maxSamples.
//
// A TimeTracker is not safe for concurrent use.
type TimeTracker struct {
	name       string
	maxSamples int
	durations  []time.Duration
	totalTime  time.Duration
	minTime    time.Duration
	maxTime    time.Duration
	count      int64
}

// NewTimeTracker creates a tracker keeping at most maxSamples samples; zero or less
// keeps every sample.
func NewTimeTracker(name string, maxSamples int) *TimeTracker {
	return &TimeTracker{name: name, maxSamples: maxSamples}
}

// Record adds one sample.
func (t *TimeTracker) Record(d time.Duration) {
	if t.count == 0 || d < t.minTime {
		t.minTime = d
	}
	if t.count == 0 || d > t.maxTime {
		t.maxTime = d
	}
	t.count++

	t.durations = append(t.durations, d)
	t.totalTime += d
	if t.maxSamples > 0 && len(t.durations) > t.maxSamples {
		t.totalTime -= t.durations[0]
		t.durations = t.durations[1:]
	}
}

// Summary computes the distribution of the retained samples.
func (t *TimeTracker) Summary() Summary {
	s := Summary{Name: t.name, Count: t.count, Min: t.minTime, Max: t.maxTime}
	n := len(t.durations)
	if n == 0 {
		return s
	}
	s.Total = t.totalTime
	s.Mean = t.totalTime / time.Duration(n)

	sorted := slices.Clone(t.durations)
	slices.Sort(sorted)
	s.P50 = Percentile(sorted, 50)
	s.P95 = Percentile(sorted, 95)
	return s
}

// Percentile returns the nearest-rank p-th percentile of sorted, or 0 when empty.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	rank = min(max(rank, 1), len(sorted))
	return sorted[rank-1]
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
