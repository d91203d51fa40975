// Package history - Per-backend benchmark history with durable snapshots and CSV export.
package history

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// TimestampLayout is the ISO-8601 form used in exports.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is one recorded filter run. Entries are immutable once created.
type Entry struct {
	Timestamp        time.Time `json:"timestamp"`
	Preset           string    `json:"preset"`
	Width            uint      `json:"width"`
	Height           uint      `json:"height"`
	PixelCount       uint      `json:"pixelCount"`
	ProcessingTimeMs float64   `json:"processingTime"`
	Throughput       uint      `json:"throughput"`
}

// NewEntry builds an entry for a run over a width x height image.
//
// Arguments:
//   - ts: When the run happened.
//   - preset: The preset key.
//   - width: Image width in pixels.
//   - height: Image height in pixels.
//   - elapsed: Measured processing time.
//
// Returns:
//   - Entry: The entry, with throughput in pixels per millisecond.
func NewEntry(ts time.Time, preset string, width, height int, elapsed time.Duration) Entry {
	pixels := uint(width) * uint(height)
	ms := float64(elapsed) / float64(time.Millisecond)
	return Entry{
		Timestamp:        ts,
		Preset:           preset,
		Width:            uint(width),
		Height:           uint(height),
		PixelCount:       pixels,
		ProcessingTimeMs: ms,
		Throughput:       Throughput(pixels, ms),
	}
}

// Throughput returns pixels per millisecond rounded to the nearest integer, or 0 when
// no time was measured.
func Throughput(pixels uint, ms float64) uint {
	if !(ms > 0) {
		return 0
	}
	return uint(math.Round(float64(pixels) / ms))
}

// Size formats the dimensions as W×H.
func (e Entry) Size() string {
	return fmt.Sprintf("%d×%d", e.Width, e.Height)
}

// Header lists the export columns in order.
func Header() []string {
	return []string{"timestamp", "preset", "size", "pixelCount", "processingTime", "throughput"}
}

// Fields returns the export columns of e in Header order.
func (e Entry) Fields() []string {
	return []string{
		e.Timestamp.UTC().Format(TimestampLayout),
		e.Preset,
		e.Size(),
		strconv.FormatUint(uint64(e.PixelCount), 10),
		strconv.FormatFloat(e.ProcessingTimeMs, 'f', 2, 64),
		strconv.FormatUint(uint64(e.Throughput), 10),
	}
}
