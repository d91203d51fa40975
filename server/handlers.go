package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/nvr-ai/filterbench/history"
	"github.com/nvr-ai/filterbench/images"
)

type healthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: now.UTC().Format(history.TimestampLayout),
		Uptime:    now.Sub(h.started).Seconds(),
	})
}

func (h *handler) listPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.ListPresets())
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.ctrl.Stats()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "profiling disabled"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) listBackends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.BackendStatus())
}

func (h *handler) initBackend(w http.ResponseWriter, r *http.Request) {
	id := backendParam(r)
	if err := h.ctrl.InitBackend(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	b, _ := h.ctrl.Backend(id)
	writeJSON(w, http.StatusOK, b.Status())
}

// apply filters the uploaded image and returns it encoded. The output format defaults to
// the upload's format; WebP uploads come back as PNG.
func (h *handler) apply(w http.ResponseWriter, r *http.Request) {
	presetName := r.URL.Query().Get("preset")
	if presetName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing preset parameter"})
		return
	}

	var out images.ImageFormat
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := images.ParseFormat(q)
		if err == nil && f == images.FormatWebP {
			err = errors.Wrap(images.ErrUnsupportedFormat, "webp output")
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out = f
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "read upload"))
		return
	}
	buf, in, err := images.DecodeToBufferLimit(data, h.maxPixels)
	if errors.Is(err, images.ErrImageTooLarge) {
		h.fail(w, r, err)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if out == "" {
		out = in
		if out == images.FormatWebP {
			out = images.FormatPNG
		}
	}

	res, err := h.ctrl.ApplyPreset(r.Context(), buf, presetName, backendParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	encoded, err := images.EncodeBuffer(buf, out)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", out.ContentType())
	w.Header().Set(HeaderProcessingTime, strconv.FormatFloat(res.Entry.ProcessingTimeMs, 'f', 2, 64))
	w.Header().Set(HeaderThroughput, strconv.FormatUint(uint64(res.Entry.Throughput), 10))
	w.Header().Set(HeaderPreset, res.Entry.Preset)
	w.Header().Set(HeaderBackend, string(res.Backend))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ctrl.History(backendParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.ClearHistory(r.Context(), backendParam(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) exportHistory(w http.ResponseWriter, r *http.Request) {
	export, err := h.ctrl.ExportHistory(backendParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Body)
}
