package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeTrackerSummary(t *testing.T) {
	tr := NewTimeTracker("apply", 0)
	for i := 10; i >= 1; i-- {
		tr.Record(time.Duration(i) * time.Millisecond)
	}

	s := tr.Summary()
	assert.Equal(t, "apply", s.Name)
	assert.Equal(t, int64(10), s.Count)
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 10*time.Millisecond, s.Max)
	assert.Equal(t, 5500*time.Microsecond, s.Mean)
	assert.Equal(t, 5*time.Millisecond, s.P50)
	assert.Equal(t, 10*time.Millisecond, s.P95)
}

func TestTimeTrackerWindow(t *testing.T) {
	tr := NewTimeTracker("apply", 2)
	tr.Record(100 * time.Millisecond)
	tr.Record(2 * time.Millisecond)
	tr.Record(4 * time.Millisecond)

	s := tr.Summary()
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, 100*time.Millisecond, s.Max)
	assert.Equal(t, 3*time.Millisecond, s.Mean)
}

func TestEmptySummary(t *testing.T) {
	s := NewTimeTracker("idle", 10).Summary()
	assert.Zero(t, s.Count)
	assert.Zero(t, s.Mean)
	assert.Zero(t, Percentile(nil, 50))
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4}
	assert.Equal(t, time.Duration(1), Percentile(sorted, 0))
	assert.Equal(t, time.Duration(2), Percentile(sorted, 50))
	assert.Equal(t, time.Duration(4), Percentile(sorted, 95))
	assert.Equal(t, time.Duration(4), Percentile(sorted, 100))
}

func TestRuntimeProfilerOperations(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{})
	rp.RecordOperation("process.direct", time.Millisecond)
	rp.RecordOperation("process.accelerated", 2*time.Millisecond)
	done := rp.StartOperation("process.direct")
	done()

	ops := rp.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, "process.accelerated", ops[0].Name)
	assert.Equal(t, "process.direct", ops[1].Name)
	assert.Equal(t, int64(2), ops[1].Count)

	stats := rp.Stats()
	assert.Positive(t, stats.Goroutines)
	assert.Positive(t, stats.Memory.SysBytes)
}

func TestRuntimeProfilerReports(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))
	rp := NewRuntimeProfiler(ProfilingOptions{ReportInterval: 5 * time.Millisecond, Logger: logger})
	rp.RecordOperation("process.direct", time.Millisecond)

	rp.Start(t.Context())
	rp.Start(t.Context())
	time.Sleep(30 * time.Millisecond)
	rp.Stop()
	rp.Stop()

	assert.Contains(t, out.String(), "runtime status")
	assert.Contains(t, out.String(), "process.direct")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
}
