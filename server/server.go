// Package server - HTTP API over the controller: presets, backends, filter runs and history.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/controller"
	"github.com/nvr-ai/filterbench/filters"
	"github.com/nvr-ai/filterbench/history"
	"github.com/nvr-ai/filterbench/images"
	"github.com/nvr-ai/filterbench/presets"
)

// Limits applied when Options leaves them unset.
const (
	DefaultMaxUploadBytes = 32 << 20
	DefaultMaxImagePixels = 50_000_000
)

// Response headers set by the apply endpoint.
const (
	HeaderProcessingTime = "X-Processing-Time-Ms"
	HeaderThroughput     = "X-Throughput"
	HeaderPreset         = "X-Preset"
	HeaderBackend        = "X-Backend"
)

// Options configures the HTTP handler.
type Options struct {
	// MaxUploadBytes limits the size of uploaded images.
	MaxUploadBytes int64
	// MaxImagePixels limits width*height of uploaded images, checked before decoding.
	MaxImagePixels int64
	// Logger receives handler failures. Nil discards them.
	Logger *slog.Logger
	// Now is used for health timestamps. Nil uses time.Now.
	Now func() time.Time
}

type handler struct {
	ctrl      *controller.Controller
	maxUpload int64
	maxPixels int64
	logger    *slog.Logger
	now       func() time.Time
	started   time.Time
}

// New returns the API router.
//
// Arguments:
//   - ctrl: The controller every route delegates to.
//   - opts: Upload limit and logger.
//
// Returns:
//   - http.Handler: The chi router with logging and panic recovery.
func New(ctrl *controller.Controller, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.MaxImagePixels <= 0 {
		opts.MaxImagePixels = DefaultMaxImagePixels
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	h := &handler{
		ctrl:      ctrl,
		maxUpload: opts.MaxUploadBytes,
		maxPixels: opts.MaxImagePixels,
		logger:    opts.Logger,
		now:       opts.Now,
		started:   opts.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(slogFormatter{logger: h.logger}))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/api/presets", h.listPresets)
	r.Get("/api/stats", h.stats)

	r.Get("/api/backends", h.listBackends)
	r.Route("/api/backends/{backend}", func(r chi.Router) {
		r.Post("/init", h.initBackend)
		r.Post("/apply", h.apply)
		r.Get("/history", h.getHistory)
		r.Delete("/history", h.clearHistory)
		r.Get("/history.csv", h.exportHistory)
	})

	return r
}

func backendParam(r *http.Request) backend.ID {
	return backend.ID(chi.URLParam(r, "backend"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	var initErr *backend.InitError
	switch {
	case errors.Is(err, backend.ErrUnknownBackend),
		errors.Is(err, presets.ErrUnknownPreset),
		errors.Is(err, history.ErrEmpty):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrNotReady), errors.As(err, &initErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &tooLarge), errors.Is(err, images.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, images.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, filters.ErrInvalidBuffer):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
