package benchmark

import (
	"time"

	"github.com/nvr-ai/filterbench/profiler"
)

// PerformanceMetrics captures detailed performance data of one scenario run.
type PerformanceMetrics struct {
	Scenario      Scenario         `json:"scenario"`
	Timestamp     time.Time        `json:"timestamp"`
	TotalDuration time.Duration    `json:"total_duration"`
	ResizeTime    time.Duration    `json:"resize_duration"`
	Timing        profiler.Summary `json:"timing"`
	// Throughput is the mean of per-iteration pixels per millisecond.
	Throughput  float64       `json:"throughput"`
	PixelCount  int           `json:"pixel_count"`
	MemoryStats MemoryMetrics `json:"memory_stats"`
	CPUStats    CPUMetrics    `json:"cpu_stats"`
	Errors      int           `json:"errors"`
	ErrorRate   float64       `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU     int `json:"num_cpu"`
	GOMAXPROCS int `json:"gomaxprocs"`
}

// memoryDelta reports end-state heap figures and the allocation between start and end.
func memoryDelta(start, end profiler.MemoryStats) MemoryMetrics {
	return MemoryMetrics{
		AllocBytes:      end.AllocBytes,
		TotalAllocBytes: end.TotalAllocBytes - start.TotalAllocBytes,
		SysBytes:        end.SysBytes,
		NumGC:           end.NumGC - start.NumGC,
		HeapAllocBytes:  end.HeapAllocBytes,
	}
}
