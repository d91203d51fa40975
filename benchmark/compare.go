package benchmark

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/filters"
	"github.com/nvr-ai/filterbench/presets"
)

// Comparison reports two backends run on copies of the same buffer.
type Comparison struct {
	Preset   string        `json:"preset"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Baseline backend.ID    `json:"baseline"`
	Subject  backend.ID    `json:"subject"`
	BaseTime time.Duration `json:"baseTime"`
	SubjTime time.Duration `json:"subjectTime"`
	// MaxDiff is the largest per-channel difference between the two outputs.
	MaxDiff int `json:"maxDiff"`
	// Speedup is BaseTime / SubjTime; above 1 the subject is faster.
	Speedup float64 `json:"speedup"`
}

// Equivalent reports whether the outputs agree within filters.EquivalenceEpsilon.
func (c Comparison) Equivalent() bool {
	return c.MaxDiff <= filters.EquivalenceEpsilon
}

// Compare runs p on copies of buf with base and subj. buf is not modified.
//
// Arguments:
//   - ctx: Passed to both backends.
//   - base: The reference backend.
//   - subj: The backend under comparison.
//   - buf: The input pixels.
//   - p: The preset to apply.
//
// Returns:
//   - Comparison: Timings, speedup and the largest channel difference.
//   - error: A backend failure.
func Compare(ctx context.Context, base, subj backend.Backend, buf *filters.Buffer, p presets.Preset) (Comparison, error) {
	if err := buf.Validate(); err != nil {
		return Comparison{}, err
	}
	c := Comparison{
		Preset:   p.Name,
		Width:    buf.Width,
		Height:   buf.Height,
		Baseline: base.ID(),
		Subject:  subj.ID(),
	}

	want := buf.Clone()
	start := time.Now()
	if _, err := base.Process(ctx, want, p); err != nil {
		return Comparison{}, errors.Wrapf(err, "compare on %s", base.ID())
	}
	c.BaseTime = time.Since(start)

	got := buf.Clone()
	start = time.Now()
	if _, err := subj.Process(ctx, got, p); err != nil {
		return Comparison{}, errors.Wrapf(err, "compare on %s", subj.ID())
	}
	c.SubjTime = time.Since(start)

	c.MaxDiff = MaxChannelDiff(want.Pix, got.Pix)
	if c.SubjTime > 0 {
		c.Speedup = float64(c.BaseTime) / float64(c.SubjTime)
	}
	return c, nil
}

// MaxChannelDiff returns the largest absolute byte difference between a and b, which
// must have equal length.
func MaxChannelDiff(a, b []byte) int {
	diff := 0
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		diff = max(diff, d)
	}
	return diff
}
