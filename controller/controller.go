// Package controller - The application context routing requests to backends, presets and histories.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/benchmark"
	"github.com/nvr-ai/filterbench/filters"
	"github.com/nvr-ai/filterbench/history"
	"github.com/nvr-ai/filterbench/presets"
	"github.com/nvr-ai/filterbench/profiler"
	"github.com/nvr-ai/filterbench/storage"
)

// Options configures a Controller.
type Options struct {
	// Catalog is the loaded preset catalog.
	Catalog *presets.Catalog
	// Backends are the available backends, in display order. IDs must be unique.
	Backends []backend.Backend
	// Storage persists one history per backend. Nil keeps histories in memory.
	Storage storage.Storage
	// Profiler, when set, collects per-backend processing timings.
	Profiler *profiler.RuntimeProfiler
	// Logger receives lifecycle and request events. Nil discards them.
	Logger *slog.Logger
	// Now stamps history entries. Nil uses time.Now.
	Now func() time.Time
}

// Result is the outcome of one ApplyPreset call.
type Result struct {
	Backend backend.ID    `json:"backend"`
	Elapsed time.Duration `json:"elapsed"`
	Entry   history.Entry `json:"entry"`
}

// Export is a downloadable history file.
type Export struct {
	FileName    string
	ContentType string
	Body        []byte
}

// Controller owns the catalog, the backends, their histories and the recorder. It is
// built once at startup and passed to the outer layers.
//
// Processing calls are serialized: at most one ApplyPreset runs at a time.
type Controller struct {
	catalog   *presets.Catalog
	backends  map[backend.ID]backend.Backend
	order     []backend.ID
	histories map[backend.ID]*history.Store
	recorder  *benchmark.Recorder
	profiler  *profiler.RuntimeProfiler
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	initOnce sync.Once
}

// New builds the controller and loads every backend's history.
//
// Arguments:
//   - ctx: Bounds the history reads.
//   - opts: Catalog, backends and storage.
//
// Returns:
//   - *Controller: The controller. Backends are not initialized yet.
//   - error: A missing catalog, no backends or a duplicate backend ID.
func New(ctx context.Context, opts Options) (*Controller, error) {
	if opts.Catalog == nil {
		return nil, errors.New("controller: nil catalog")
	}
	if len(opts.Backends) == 0 {
		return nil, errors.New("controller: no backends")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		catalog:   opts.Catalog,
		backends:  make(map[backend.ID]backend.Backend, len(opts.Backends)),
		histories: make(map[backend.ID]*history.Store, len(opts.Backends)),
		profiler:  opts.Profiler,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	for _, b := range opts.Backends {
		id := b.ID()
		if _, dup := c.backends[id]; dup {
			return nil, errors.Errorf("controller: duplicate backend %s", id)
		}
		c.backends[id] = b
		c.order = append(c.order, id)
		c.histories[id] = history.Load(ctx, opts.Storage, string(id), opts.Logger)
	}
	c.recorder = benchmark.NewRecorder(benchmark.RecorderOptions{
		Catalog:   opts.Catalog,
		Histories: c.histories,
		Profiler:  opts.Profiler,
		Logger:    opts.Logger,
		Now:       opts.Now,
	})
	return c, nil
}

// ListPresets returns the catalog in source order.
func (c *Controller) ListPresets() []presets.Info {
	return c.catalog.List()
}

// Backend returns the backend with the given ID.
func (c *Controller) Backend(id backend.ID) (backend.Backend, error) {
	b, ok := c.backends[id]
	if !ok {
		return nil, errors.Wrapf(backend.ErrUnknownBackend, "%q", id)
	}
	return b, nil
}

func (c *Controller) history(id backend.ID) (*history.Store, error) {
	h, ok := c.histories[id]
	if !ok {
		return nil, errors.Wrapf(backend.ErrUnknownBackend, "%q", id)
	}
	return h, nil
}

// ApplyPreset filters buf in place on the selected backend and records the run.
//
// Arguments:
//   - ctx: Passed to the backend.
//   - buf: The pixels to filter.
//   - presetName: The catalog key of the preset.
//   - backendID: The backend to run on.
//
// Returns:
//   - Result: The elapsed time and the recorded entry.
//   - error: backend.ErrUnknownBackend, presets.ErrUnknownPreset, backend.ErrNotReady
//     or a processing failure. buf is untouched on lookup and readiness failures.
func (c *Controller) ApplyPreset(ctx context.Context, buf *filters.Buffer, presetName string, backendID backend.ID) (Result, error) {
	b, err := c.Backend(backendID)
	if err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.recorder.Run(ctx, b, buf, presetName)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Backend: backendID,
		Elapsed: time.Duration(entry.ProcessingTimeMs * float64(time.Millisecond)),
		Entry:   entry,
	}, nil
}

// History returns a backend's entries, most recent first.
func (c *Controller) History(backendID backend.ID) ([]history.Entry, error) {
	h, err := c.history(backendID)
	if err != nil {
		return nil, err
	}
	return h.Recent(), nil
}

// ClearHistory empties a backend's history and its persisted snapshot.
func (c *Controller) ClearHistory(ctx context.Context, backendID backend.ID) error {
	h, err := c.history(backendID)
	if err != nil {
		return err
	}
	h.Clear(ctx)
	c.logger.Info("history cleared", "backend", backendID)
	return nil
}

// ExportHistory renders a backend's history as a CSV download.
//
// Returns:
//   - Export: File name, content type and body.
//   - error: backend.ErrUnknownBackend or history.ErrEmpty.
func (c *Controller) ExportHistory(backendID backend.ID) (Export, error) {
	h, err := c.history(backendID)
	if err != nil {
		return Export{}, err
	}
	body, err := h.ExportCSV()
	if err != nil {
		return Export{}, err
	}
	return Export{
		FileName:    history.ExportFileName(string(backendID), c.now()),
		ContentType: history.ContentType,
		Body:        []byte(body),
	}, nil
}

// InitBackends initializes every backend once. Failures are logged and leave that
// backend not ready; later calls are no-ops. Use InitBackend to retry.
func (c *Controller) InitBackends(ctx context.Context) []backend.Status {
	c.initOnce.Do(func() {
		for _, id := range c.order {
			if err := c.backends[id].Init(ctx); err != nil {
				c.logger.Error("backend unavailable", "backend", id, "error", err)
				continue
			}
			c.logger.Info("backend ready", "backend", id)
		}
	})
	return c.BackendStatus()
}

// InitBackend (re)initializes one backend.
func (c *Controller) InitBackend(ctx context.Context, backendID backend.ID) error {
	b, err := c.Backend(backendID)
	if err != nil {
		return err
	}
	return b.Init(ctx)
}

// BackendStatus reports every backend in display order.
func (c *Controller) BackendStatus() []backend.Status {
	out := make([]backend.Status, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.backends[id].Status())
	}
	return out
}

// Stats returns runtime statistics, or false when no profiler is configured.
func (c *Controller) Stats() (profiler.Stats, bool) {
	if c.profiler == nil {
		return profiler.Stats{}, false
	}
	return c.profiler.Stats(), true
}

// Close releases every backend and reports the first failure.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var first error
	for _, id := range c.order {
		if err := c.backends[id].Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "close %s", id)
		}
	}
	return first
}
