// Package benchmark - Timed filter runs, history recording and scenario suites.
package benchmark

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/filters"
	"github.com/nvr-ai/filterbench/history"
	"github.com/nvr-ai/filterbench/presets"
	"github.com/nvr-ai/filterbench/profiler"
)

// ErrNoHistory is returned by Recorder.Run for backends without a history store.
var ErrNoHistory = errors.New("no history for backend")

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Catalog resolves preset names.
	Catalog *presets.Catalog
	// Histories holds one store per backend.
	Histories map[backend.ID]*history.Store
	// Profiler, when set, receives one sample per run named "process.<backend>".
	Profiler *profiler.RuntimeProfiler
	// Logger receives run events. Nil discards them.
	Logger *slog.Logger
	// Now returns entry timestamps. Nil uses time.Now.
	Now func() time.Time
}

// Recorder times one backend call per run and appends the result to that backend's
// history.
type Recorder struct {
	catalog   *presets.Catalog
	histories map[backend.ID]*history.Store
	profiler  *profiler.RuntimeProfiler
	logger    *slog.Logger
	now       func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(opts RecorderOptions) *Recorder {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Recorder{
		catalog:   opts.Catalog,
		histories: opts.Histories,
		profiler:  opts.Profiler,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

// Run filters buf in place with the named preset on b and records the timing. The
// measured time is the wall-clock time around Process, not the time b reports.
//
// Arguments:
//   - ctx: Passed to the backend.
//   - b: The backend to run.
//   - buf: The pixels to filter.
//   - presetName: The catalog key of the preset.
//
// Returns:
//   - history.Entry: The recorded entry.
//   - error: presets.ErrUnknownPreset or backend.ErrNotReady without touching buf,
//     ErrNoHistory, or a processing failure.
func (r *Recorder) Run(ctx context.Context, b backend.Backend, buf *filters.Buffer, presetName string) (history.Entry, error) {
	p, err := r.catalog.Lookup(presetName)
	if err != nil {
		return history.Entry{}, err
	}
	if !b.Ready() {
		return history.Entry{}, errors.Wrapf(backend.ErrNotReady, "backend %s", b.ID())
	}
	store, ok := r.histories[b.ID()]
	if !ok {
		return history.Entry{}, errors.Wrapf(ErrNoHistory, "backend %s", b.ID())
	}

	start := time.Now()
	if _, err := b.Process(ctx, buf, p); err != nil {
		return history.Entry{}, errors.Wrapf(err, "process %s on %s", presetName, b.ID())
	}
	elapsed := time.Since(start)

	entry := history.NewEntry(r.now(), presetName, buf.Width, buf.Height, elapsed)
	store.Add(ctx, entry)
	if r.profiler != nil {
		r.profiler.RecordOperation("process."+string(b.ID()), elapsed)
	}
	r.logger.Info("filter applied",
		"backend", b.ID(),
		"preset", presetName,
		"size", entry.Size(),
		"ms", entry.ProcessingTimeMs,
		"throughput", entry.Throughput,
	)
	return entry, nil
}
