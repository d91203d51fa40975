package backend

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/filterbench/filters"
	"github.com/nvr-ai/filterbench/native"
	"github.com/nvr-ai/filterbench/presets"
)

// AcceleratedBackend runs the pipeline inside the native filter module. Each call copies
// the pixels into module memory, runs the routine and copies the result back; the two
// foreign buffers it allocates are released on every exit path.
type AcceleratedBackend struct {
	cfg      native.Config
	unrolled bool
	logger   *slog.Logger

	// load is native.Load outside tests.
	load func(context.Context, native.Config) (*native.Module, error)

	mu      sync.Mutex
	module  *native.Module
	initErr error
	// loading is closed when the in-flight Init finishes; nil when idle.
	loading chan struct{}
}

// NewAccelerated creates an accelerated backend. It is not ready until Init succeeds.
//
// Arguments:
//   - cfg: Selects the native module.
//   - unrolled: Use the unrolled routine.
//   - logger: Receives lifecycle events. Nil discards them.
//
// Returns:
//   - *AcceleratedBackend: The backend.
func NewAccelerated(cfg native.Config, unrolled bool, logger *slog.Logger) *AcceleratedBackend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AcceleratedBackend{
		cfg:      cfg,
		unrolled: unrolled,
		logger:   logger.With("backend", Accelerated),
		load:     native.Load,
	}
}

func (a *AcceleratedBackend) ID() ID { return Accelerated }

// Init loads the native module. Calling Init on a ready backend is a no-op; after a
// failure it retries the load. The lock is not held while the module compiles, so
// Ready and Status answer during a slow load. Concurrent calls share one load.
func (a *AcceleratedBackend) Init(ctx context.Context) error {
	a.mu.Lock()
	if a.module != nil {
		a.mu.Unlock()
		return nil
	}
	if wait := a.loading; wait != nil {
		a.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return &InitError{Backend: Accelerated, Err: ctx.Err()}
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.module != nil {
			return nil
		}
		return a.initErr
	}
	done := make(chan struct{})
	a.loading = done
	a.mu.Unlock()

	start := time.Now()
	m, err := a.load(ctx, a.cfg)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.loading = nil
	close(done)
	if err != nil {
		a.initErr = &InitError{Backend: Accelerated, Err: err}
		a.logger.Error("failed to load native module", "error", err)
		return a.initErr
	}
	a.module = m
	a.initErr = nil
	a.logger.Info("native module loaded", "elapsed", time.Since(start), "unrolled", a.unrolled)
	return nil
}

func (a *AcceleratedBackend) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.module != nil
}

func (a *AcceleratedBackend) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Status{ID: Accelerated, Ready: a.module != nil}
	if a.initErr != nil {
		s.Error = a.initErr.Error()
	}
	return s
}

// Process filters buf in place. The reported time covers the copies in and out of module
// memory as well as the routine itself.
//
// Arguments:
//   - ctx: Checked before any foreign memory is touched.
//   - buf: The buffer to filter.
//   - p: The preset to apply.
//
// Returns:
//   - time.Duration: Time spent in the backend.
//   - error: ErrNotReady, filters.ErrInvalidBuffer, or a foreign memory failure.
func (a *AcceleratedBackend) Process(ctx context.Context, buf *filters.Buffer, p presets.Preset) (elapsed time.Duration, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.module == nil {
		return 0, errors.Wrapf(ErrNotReady, "backend %s", Accelerated)
	}
	if err := buf.Validate(); err != nil {
		return 0, err
	}
	if buf.Width > math.MaxInt32 || buf.Height > math.MaxInt32 {
		return 0, errors.Wrapf(filters.ErrInvalidBuffer, "%dx%d", buf.Width, buf.Height)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m := a.module
	start := time.Now()

	scope := m.NewScope()
	defer func() {
		if rerr := scope.Release(); rerr != nil {
			a.logger.Error("failed to release foreign memory", "error", rerr)
			if err == nil {
				elapsed, err = 0, rerr
			}
		}
	}()

	pixels, err := scope.Alloc(len(buf.Pix))
	if err != nil {
		return 0, errors.Wrap(err, "allocate pixels")
	}
	matrix, err := scope.Alloc(presets.MatrixSize * 4)
	if err != nil {
		return 0, errors.Wrap(err, "allocate matrix")
	}
	if err := m.Write(pixels, buf.Pix); err != nil {
		return 0, err
	}
	if err := m.WriteFloat32s(matrix, p.Matrix[:]); err != nil {
		return 0, err
	}

	err = m.Apply(native.ApplyArgs{
		Pixels:     pixels,
		Width:      int32(buf.Width),
		Height:     int32(buf.Height),
		Matrix:     matrix,
		Saturation: p.Saturation,
		Contrast:   p.Contrast,
		Brightness: p.Brightness,
		Gamma:      p.Gamma,
	}, a.unrolled)
	if err != nil {
		return 0, err
	}
	if err := m.Read(pixels, buf.Pix); err != nil {
		return 0, err
	}

	elapsed = time.Since(start)
	a.logger.Debug("processed buffer", "pixels", buf.PixelCount(), "elapsed", elapsed)
	return elapsed, nil
}

// HeapUsed reports the bytes held by the module allocator. It returns ErrNotReady
// before Init.
func (a *AcceleratedBackend) HeapUsed() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.module == nil {
		return 0, ErrNotReady
	}
	return a.module.HeapUsed()
}

// Close drops the native module. A later Init loads it again.
func (a *AcceleratedBackend) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.module != nil {
		a.module.Close()
		a.module = nil
	}
	return nil
}
