// Package profiler - Operation timing statistics and periodic runtime reports.
package profiler

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"
)

// RuntimeProfiler tracks timing statistics per named operation and, once started,
// logs a status report every ReportInterval.
//
// It is safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	maxSamples     int
	logger         *slog.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	operationTimes map[string]*TimeTracker
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 30s)
	ReportInterval time.Duration
	// MaxSamples bounds the samples kept per operation (default: 1000)
	MaxSamples int
	// Logger receives status reports. Nil discards them.
	Logger *slog.Logger
}

// Stats is a snapshot of the profiler state.
type Stats struct {
	Uptime     time.Duration `json:"uptime"`
	Goroutines int           `json:"goroutines"`
	Memory     MemoryStats   `json:"memory"`
	Operations []Summary     `json:"operations"`
}

// MemoryStats captures Go heap statistics.
type MemoryStats struct {
	AllocBytes      uint64 `json:"allocBytes"`
	TotalAllocBytes uint64 `json:"totalAllocBytes"`
	SysBytes        uint64 `json:"sysBytes"`
	HeapAllocBytes  uint64 `json:"heapAllocBytes"`
	HeapObjects     uint64 `json:"heapObjects"`
	NumGC           uint32 `json:"numGC"`
}

// ReadMemoryStats reads the current Go heap statistics.
func ReadMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		HeapAllocBytes:  m.HeapAlloc,
		HeapObjects:     m.HeapObjects,
		NumGC:           m.NumGC,
	}
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = 30 * time.Second
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 1000
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger,
		startTime:      time.Now(),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start begins periodic reporting. It is a no-op when already running.
func (rp *RuntimeProfiler) Start(ctx context.Context) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	ctx, rp.cancel = context.WithCancel(ctx)

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()

		ticker := time.NewTicker(rp.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rp.emitStatusReport()
			}
		}
	}()
}

// Stop ends periodic reporting and waits for the reporter to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	cancel := rp.cancel
	rp.mu.Unlock()

	cancel()
	rp.wg.Wait()
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordOperation(name, time.Since(start))
	}
}

// RecordOperation records one completed operation.
func (rp *RuntimeProfiler) RecordOperation(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, ok := rp.operationTimes[name]
	if !ok {
		tracker = NewTimeTracker(name, rp.maxSamples)
		rp.operationTimes[name] = tracker
	}
	tracker.Record(d)
}

// Operations returns a summary per operation, sorted by name.
func (rp *RuntimeProfiler) Operations() []Summary {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	out := make([]Summary, 0, len(rp.operationTimes))
	for _, tracker := range rp.operationTimes {
		out = append(out, tracker.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stats returns the current profiling statistics as a snapshot.
func (rp *RuntimeProfiler) Stats() Stats {
	return Stats{
		Uptime:     time.Since(rp.startTime),
		Goroutines: runtime.NumGoroutine(),
		Memory:     ReadMemoryStats(),
		Operations: rp.Operations(),
	}
}

// emitStatusReport logs a status report.
func (rp *RuntimeProfiler) emitStatusReport() {
	stats := rp.Stats()
	rp.logger.Info("runtime status",
		"uptime", stats.Uptime.Truncate(time.Millisecond),
		"goroutines", stats.Goroutines,
		"heapAlloc", formatBytes(stats.Memory.HeapAllocBytes),
		"sys", formatBytes(stats.Memory.SysBytes),
		"gc", stats.Memory.NumGC,
	)
	for _, op := range stats.Operations {
		rp.logger.Info("operation timings",
			"name", op.Name,
			"count", op.Count,
			"mean", op.Mean.Truncate(time.Microsecond),
			"p95", op.P95.Truncate(time.Microsecond),
			"max", op.Max.Truncate(time.Microsecond),
		)
	}
}
