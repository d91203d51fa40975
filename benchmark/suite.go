package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/filters"
	"github.com/nvr-ai/filterbench/images"
	"github.com/nvr-ai/filterbench/presets"
	"github.com/nvr-ai/filterbench/profiler"
	"github.com/nvr-ai/filterbench/util"
)

// ErrNoCorpus is returned when a scenario runs before any image is loaded.
var ErrNoCorpus = errors.New("no corpus images loaded")

// Suite manages and executes benchmark scenarios
type Suite struct {
	runID     string
	startedAt time.Time
	catalog   *presets.Catalog
	backends  map[backend.ID]backend.Backend
	outputDir string
	logger    *slog.Logger

	mu        sync.RWMutex
	scenarios []Scenario
	corpus    []util.ImageFile
	results   []PerformanceMetrics
}

// SuiteOptions represents the arguments for creating a new benchmark suite.
type SuiteOptions struct {
	Catalog   *presets.Catalog
	Backends  []backend.Backend
	OutputDir string
	Logger    *slog.Logger
}

// Report is the JSON document written by SaveResults.
type Report struct {
	RunID     string               `json:"run_id"`
	StartedAt time.Time            `json:"started_at"`
	GoVersion string               `json:"go_version"`
	GOOS      string               `json:"goos"`
	GOARCH    string               `json:"goarch"`
	Results   []PerformanceMetrics `json:"results"`
}

// NewSuite creates a new benchmark suite. Backends must be initialized by the caller.
//
// Arguments:
//   - opts: Catalog, backends and output directory.
//
// Returns:
//   - *Suite: The benchmark suite with a fresh run ID.
func NewSuite(opts SuiteOptions) *Suite {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	backends := make(map[backend.ID]backend.Backend, len(opts.Backends))
	for _, b := range opts.Backends {
		backends[b.ID()] = b
	}
	runID := uuid.NewString()
	return &Suite{
		runID:     runID,
		startedAt: time.Now(),
		catalog:   opts.Catalog,
		backends:  backends,
		outputDir: opts.OutputDir,
		logger:    opts.Logger.With("run", runID),
	}
}

// RunID identifies this suite run in reports.
func (bs *Suite) RunID() string {
	return bs.runID
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// AddScenarioSet adds every scenario of set.
func (bs *Suite) AddScenarioSet(set *ScenarioSet) {
	for _, s := range set.Scenarios {
		bs.AddScenario(s)
	}
}

// LoadCorpus loads the images scenarios run on from a file or directory.
func (bs *Suite) LoadCorpus(path string) error {
	files, err := util.LoadImageFiles(path)
	if err != nil {
		return err
	}
	bs.SetCorpus(files)
	return nil
}

// SetCorpus replaces the corpus.
func (bs *Suite) SetCorpus(files []util.ImageFile) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.corpus = files
}

// prepare decodes and resizes every corpus image to res. Undecodable files are skipped.
func (bs *Suite) prepare(corpus []util.ImageFile, res images.Resolution) ([]*filters.Buffer, error) {
	bufs := make([]*filters.Buffer, 0, len(corpus))
	for _, f := range corpus {
		buf, err := images.ResizeToBuffer(f.Data, res)
		if err != nil {
			bs.logger.Warn("skipping corpus image", "path", f.Path, "error", err)
			continue
		}
		bufs = append(bufs, buf)
	}
	if len(bufs) == 0 {
		return nil, errors.Wrapf(ErrNoCorpus, "no decodable image at %s", res.Key())
	}
	return bufs, nil
}

// RunScenario executes a single benchmark scenario. Every warmup and iteration filters a
// fresh copy of a corpus image so each run starts from the same pixels.
//
// Arguments:
//   - ctx: Checked between iterations.
//   - scenario: The scenario to run.
//
// Returns:
//   - *PerformanceMetrics: The timing distribution and resource usage.
//   - error: An invalid scenario, unknown preset, unready backend or empty corpus.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	b, ok := bs.backends[scenario.Backend]
	if !ok {
		return nil, errors.Wrapf(backend.ErrUnknownBackend, "scenario %s: %s", scenario.Name, scenario.Backend)
	}
	if !b.Ready() {
		return nil, errors.Wrapf(backend.ErrNotReady, "scenario %s: %s", scenario.Name, scenario.Backend)
	}
	p, err := bs.catalog.Lookup(scenario.Preset)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}

	bs.mu.RLock()
	corpus := bs.corpus
	bs.mu.RUnlock()
	if len(corpus) == 0 {
		return nil, ErrNoCorpus
	}

	metrics := &PerformanceMetrics{
		Scenario:   scenario,
		Timestamp:  time.Now(),
		PixelCount: scenario.Resolution.PixelCount(),
	}

	resizeStart := time.Now()
	bufs, err := bs.prepare(corpus, scenario.Resolution)
	if err != nil {
		return nil, err
	}
	metrics.ResizeTime = time.Since(resizeStart)

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := b.Process(ctx, bufs[i%len(bufs)].Clone(), p); err != nil {
			bs.logger.Debug("warmup failed", "scenario", scenario.Name, "error", err)
		}
	}

	startMem := profiler.ReadMemoryStats()
	tracker := profiler.NewTimeTracker(scenario.Name, 0)
	var throughput float64
	startTime := time.Now()

	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf := bufs[i%len(bufs)].Clone()

		start := time.Now()
		_, err := b.Process(ctx, buf, p)
		elapsed := time.Since(start)
		if err != nil {
			metrics.Errors++
			continue
		}
		tracker.Record(elapsed)
		if ms := float64(elapsed) / float64(time.Millisecond); ms > 0 {
			throughput += float64(buf.PixelCount()) / ms
		}
	}

	metrics.TotalDuration = time.Since(startTime)
	metrics.MemoryStats = memoryDelta(startMem, profiler.ReadMemoryStats())
	metrics.CPUStats = CPUMetrics{NumCPU: runtime.NumCPU(), GOMAXPROCS: runtime.GOMAXPROCS(0)}
	metrics.Timing = tracker.Summary()
	metrics.ErrorRate = float64(metrics.Errors) / float64(scenario.Iterations)
	if ok := scenario.Iterations - metrics.Errors; ok > 0 {
		metrics.Throughput = throughput / float64(ok)
	}
	return metrics, nil
}

// RunAllScenarios executes all configured benchmark scenarios and saves the report.
// A failing scenario is logged and skipped.
func (bs *Suite) RunAllScenarios(ctx context.Context) (Files, error) {
	bs.mu.RLock()
	scenarios := make([]Scenario, len(bs.scenarios))
	copy(scenarios, bs.scenarios)
	bs.mu.RUnlock()

	for _, scenario := range scenarios {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return Files{}, ctx.Err()
			}
			bs.logger.Error("scenario failed", "scenario", scenario.Name, "error", err)
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.logger.Info("scenario completed",
			"scenario", scenario.Name,
			"mean", metrics.Timing.Mean,
			"p95", metrics.Timing.P95,
			"throughput", fmt.Sprintf("%.0f px/ms", metrics.Throughput),
		)
	}

	return bs.SaveResults()
}

// Files are the paths written by SaveResults.
type Files struct {
	JSON string
	CSV  string
}

// SaveResults persists benchmark results to filesystem
func (bs *Suite) SaveResults() (Files, error) {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return Files{}, errors.Wrap(err, "failed to create output directory")
	}

	stamp := fmt.Sprintf("%s_%s", bs.startedAt.Format("2006-01-02_15-04-05"), bs.runID[:8])
	files := Files{
		JSON: filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", stamp)),
		CSV:  filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", stamp)),
	}

	report := Report{
		RunID:     bs.runID,
		StartedAt: bs.startedAt,
		GoVersion: runtime.Version(),
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
		Results:   results,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return Files{}, errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(files.JSON, data, 0o644); err != nil {
		return Files{}, errors.Wrap(err, "failed to write results file")
	}
	if err := saveSummaryCSV(files.CSV, results); err != nil {
		return Files{}, errors.Wrap(err, "failed to save summary CSV")
	}

	bs.logger.Info("results saved", "json", files.JSON, "csv", files.CSV)
	return files, nil
}

// SummaryHeader lists the columns of the summary CSV.
var SummaryHeader = []string{
	"Scenario", "Backend", "Preset", "Resolution", "Iterations", "Errors",
	"Mean_ms", "P50_ms", "P95_ms", "Min_ms", "Max_ms", "Throughput_px_per_ms", "Total_Alloc_MB",
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(SummaryHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Scenario.Name,
			string(r.Scenario.Backend),
			r.Scenario.Preset,
			r.Scenario.Resolution.Key(),
			strconv.Itoa(r.Scenario.Iterations),
			strconv.Itoa(r.Errors),
			ms(r.Timing.Mean),
			ms(r.Timing.P50),
			ms(r.Timing.P95),
			ms(r.Timing.Min),
			ms(r.Timing.Max),
			strconv.FormatFloat(r.Throughput, 'f', 0, 64),
			strconv.FormatFloat(float64(r.MemoryStats.TotalAllocBytes)/(1024*1024), 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}

func ms(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
}

// GetResults returns all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
