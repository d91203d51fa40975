package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/nvr-ai/filterbench/filters"
	"github.com/nvr-ai/filterbench/presets"
)

// DirectBackend runs the pipeline on the caller's buffer without any copies.
type DirectBackend struct {
	logger *slog.Logger
}

// NewDirect creates a direct backend. It is ready immediately.
func NewDirect(logger *slog.Logger) *DirectBackend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DirectBackend{logger: logger.With("backend", Direct)}
}

func (d *DirectBackend) ID() ID { return Direct }

// Init is a no-op.
func (d *DirectBackend) Init(ctx context.Context) error { return nil }

func (d *DirectBackend) Ready() bool { return true }

func (d *DirectBackend) Status() Status {
	return Status{ID: Direct, Ready: true}
}

// Process filters buf in place.
func (d *DirectBackend) Process(ctx context.Context, buf *filters.Buffer, p presets.Preset) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	elapsed, err := filters.Apply(buf, p)
	if err != nil {
		return 0, err
	}
	d.logger.Debug("processed buffer", "pixels", buf.PixelCount(), "elapsed", elapsed)
	return elapsed, nil
}

func (d *DirectBackend) Close() error { return nil }
