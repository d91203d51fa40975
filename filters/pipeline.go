package filters

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/filterbench/presets"
)

// ITU-R BT.709 luma weights.
const (
	LumaR float32 = 0.2126
	LumaG float32 = 0.7152
	LumaB float32 = 0.0722
)

// EquivalenceEpsilon is the largest per-channel difference allowed between two backends
// running the same preset on the same buffer.
const EquivalenceEpsilon = 1

// The stages below work in float32 and round every product explicitly. That keeps the
// compiler from fusing multiply-adds, so the results match the accelerated module's f32
// instructions exactly.

// Matrix applies the row-major 3x3 color matrix m.
func Matrix(r, g, b float32, m *[presets.MatrixSize]float32) (float32, float32, float32) {
	nr := float32(r*m[0]) + float32(g*m[1]) + float32(b*m[2])
	ng := float32(r*m[3]) + float32(g*m[4]) + float32(b*m[5])
	nb := float32(r*m[6]) + float32(g*m[7]) + float32(b*m[8])
	return nr, ng, nb
}

// Brightness multiplies every channel by k.
func Brightness(r, g, b, k float32) (float32, float32, float32) {
	return r * k, g * k, b * k
}

// Saturation moves every channel towards (s < 1) or away from (s > 1) the luma.
func Saturation(r, g, b, s float32) (float32, float32, float32) {
	l := float32(LumaR*r) + float32(LumaG*g) + float32(LumaB*b)
	return l + float32(s*(r-l)), l + float32(s*(g-l)), l + float32(s*(b-l))
}

// Contrast scales every channel around mid grey.
func Contrast(r, g, b, k float32) (float32, float32, float32) {
	return contrast(r, k), contrast(g, k), contrast(b, k)
}

func contrast(c, k float32) float32 {
	return (float32((c/255-0.5)*k) + 0.5) * 255
}

// Gamma raises every normalized channel to the power gamma. Negative channels are
// clamped to zero first so the base is never negative.
func Gamma(r, g, b, gamma float32) (float32, float32, float32) {
	return gammaChannel(r, gamma), gammaChannel(g, gamma), gammaChannel(b, gamma)
}

func gammaChannel(c, gamma float32) float32 {
	if !(c > 0) {
		c = 0
	}
	return math32.Pow(c/255, gamma) * 255
}

// Quantize clamps v to [0,255] and rounds it to the nearest integer. NaN maps to 0.
func Quantize(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if !(v < 255) {
		return 255
	}
	return uint8(math32.Floor(v + 0.5))
}

// Transform runs one pixel through the five stages in their fixed order, without
// clamping between stages.
//
// Arguments:
//   - r, g, b: The input channels.
//   - p: The preset whose parameters drive the stages.
//
// Returns:
//   - float32, float32, float32: The unclamped output channels.
func Transform(r, g, b float32, p *presets.Preset) (float32, float32, float32) {
	r, g, b = Matrix(r, g, b, &p.Matrix)
	r, g, b = Brightness(r, g, b, p.Brightness)
	r, g, b = Saturation(r, g, b, p.Saturation)
	r, g, b = Contrast(r, g, b, p.Contrast)
	return Gamma(r, g, b, p.Gamma)
}

// ApplyPixels filters every quadruple of pix in place. Alpha bytes are left untouched.
func ApplyPixels(pix []byte, p *presets.Preset) {
	for i := 0; i+3 < len(pix); i += BytesPerPixel {
		r, g, b := Transform(float32(pix[i]), float32(pix[i+1]), float32(pix[i+2]), p)
		pix[i] = Quantize(r)
		pix[i+1] = Quantize(g)
		pix[i+2] = Quantize(b)
	}
}

// Apply validates buf, filters it in place and returns the wall-clock time of the
// pixel loop.
//
// Arguments:
//   - buf: The buffer to filter.
//   - p: The preset to apply.
//
// Returns:
//   - time.Duration: The elapsed time for the whole buffer.
//   - error: ErrInvalidBuffer when buf is malformed; buf is untouched in that case.
func Apply(buf *Buffer, p presets.Preset) (time.Duration, error) {
	if err := buf.Validate(); err != nil {
		return 0, err
	}
	start := time.Now()
	ApplyPixels(buf.Pix, &p)
	return time.Since(start), nil
}
