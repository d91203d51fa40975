// Package backend - Interchangeable compute backends running the filter pipeline.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/filterbench/filters"
	"github.com/nvr-ai/filterbench/native"
	"github.com/nvr-ai/filterbench/presets"
)

// ID identifies a backend. It also scopes the persisted benchmark history.
type ID string

const (
	// Direct runs the pipeline in the calling process's own memory.
	Direct ID = "direct"
	// Accelerated runs the pipeline in the natively compiled filter module.
	Accelerated ID = "accelerated"
)

var (
	// ErrNotReady is returned by Process before a successful Init.
	ErrNotReady = errors.New("backend not ready")
	// ErrUnknownBackend is returned for identifiers that name no backend.
	ErrUnknownBackend = errors.New("unknown backend")
)

// InitError reports a backend that could not be initialized. The backend stays unusable
// until Init is called again and succeeds.
type InitError struct {
	Backend ID
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("backend %s: init: %v", e.Backend, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Status is a snapshot of a backend's readiness.
type Status struct {
	ID    ID     `json:"id"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Backend is the processing contract shared by every implementation. For the same
// buffer and preset all backends produce channel values within
// filters.EquivalenceEpsilon of each other.
type Backend interface {
	// ID returns the backend identifier.
	ID() ID
	// Init prepares the backend. It may block while native code is loaded.
	Init(ctx context.Context) error
	// Ready reports whether Process may be called.
	Ready() bool
	// Status reports readiness and the last init failure.
	Status() Status
	// Process filters buf in place with p and returns the time the backend spent.
	Process(ctx context.Context, buf *filters.Buffer, p presets.Preset) (time.Duration, error)
	// Close releases backend resources.
	Close() error
}

// Options configures backends built with New.
type Options struct {
	// Native selects the module of the accelerated backend.
	Native native.Config `json:"native" yaml:"native"`
	// Unrolled selects the four-pixels-per-iteration routine of the accelerated backend.
	Unrolled bool `json:"unrolled" yaml:"unrolled"`
	// Logger receives lifecycle events. Nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// IDs returns every known backend identifier.
func IDs() []ID {
	return []ID{Direct, Accelerated}
}

// ParseID validates s as a backend identifier.
//
// Arguments:
//   - s: The identifier to check.
//
// Returns:
//   - ID: The identifier.
//   - error: ErrUnknownBackend when s names no backend.
func ParseID(s string) (ID, error) {
	for _, id := range IDs() {
		if string(id) == s {
			return id, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownBackend, "%q", s)
}

// New creates the backend identified by id. The backend is not initialized.
//
// Arguments:
//   - id: The backend to create.
//   - opts: Backend options.
//
// Returns:
//   - Backend: The new backend.
//   - error: ErrUnknownBackend when id names no backend.
func New(id ID, opts Options) (Backend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch id {
	case Direct:
		return NewDirect(logger), nil
	case Accelerated:
		return NewAccelerated(opts.Native, opts.Unrolled, logger), nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", id)
	}
}
