package filters

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/filterbench/presets"
)

func genBuffer(w, h int, seed int64) *Buffer {
	buf := NewBuffer(w, h)
	rng := rand.New(rand.NewSource(seed))
	for i := range buf.Pix {
		buf.Pix[i] = uint8(rng.Intn(256))
	}
	return buf
}

func randomPreset(rng *rand.Rand) presets.Preset {
	p := presets.Preset{Name: "random"}
	for i := range p.Matrix {
		p.Matrix[i] = rng.Float32()*4 - 2
	}
	p.Saturation = rng.Float32() * 3
	p.Contrast = rng.Float32()*4 - 1
	p.Brightness = rng.Float32() * 3
	p.Gamma = rng.Float32()*3 + 0.05
	return p
}

func TestIdentityPreset(t *testing.T) {
	buf := &Buffer{Pix: []byte{10, 20, 30, 255}, Width: 1, Height: 1}

	_, err := Apply(buf, presets.Identity())
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 255}, buf.Pix)
}

func TestIdentityPresetEveryValue(t *testing.T) {
	buf := NewBuffer(256, 1)
	for i := 0; i < 256; i++ {
		buf.Pix[i*4] = uint8(i)
		buf.Pix[i*4+1] = uint8(255 - i)
		buf.Pix[i*4+2] = uint8(i / 2)
		buf.Pix[i*4+3] = uint8(i)
	}
	want := buf.Clone()

	_, err := Apply(buf, presets.Identity())
	require.NoError(t, err)
	assert.Equal(t, want.Pix, buf.Pix)
}

func TestBrightnessScenario(t *testing.T) {
	p := presets.Identity()
	p.Brightness = 2
	buf := &Buffer{Pix: []byte{100, 100, 100, 255}, Width: 1, Height: 1}

	_, err := Apply(buf, p)
	require.NoError(t, err)
	assert.Equal(t, []byte{200, 200, 200, 255}, buf.Pix)
}

func TestAlphaInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 20; n++ {
		buf := genBuffer(17, 9, int64(n))
		orig := buf.Clone()

		_, err := Apply(buf, randomPreset(rng))
		require.NoError(t, err)
		for i := 3; i < len(buf.Pix); i += 4 {
			require.Equal(t, orig.Pix[i], buf.Pix[i], "alpha changed at byte %d", i)
		}
	}
}

func TestTransformStaysInRangeAfterQuantize(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 2000; n++ {
		p := randomPreset(rng)
		r, g, b := Transform(float32(rng.Intn(256)), float32(rng.Intn(256)), float32(rng.Intn(256)), &p)
		for _, v := range []float32{r, g, b} {
			q := Quantize(v)
			assert.True(t, q <= 255)
			if v <= 0 || math32.IsNaN(v) {
				assert.Equal(t, uint8(0), q)
			}
			if v >= 255 {
				assert.Equal(t, uint8(255), q)
			}
		}
	}
}

func TestQuantize(t *testing.T) {
	testCases := []struct {
		in   float32
		want uint8
	}{
		{-12.5, 0},
		{0, 0},
		{0.49, 0},
		{0.5, 1},
		{29.99998, 30},
		{127.5, 128},
		{254.4, 254},
		{254.6, 255},
		{255, 255},
		{1e9, 255},
		{math32.Inf(1), 255},
		{math32.Inf(-1), 0},
		{math32.NaN(), 0},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Quantize(tc.in), "Quantize(%v)", tc.in)
	}
}

func TestStages(t *testing.T) {
	t.Run("matrix swaps channels", func(t *testing.T) {
		m := [presets.MatrixSize]float32{0, 0, 1, 0, 1, 0, 1, 0, 0}
		r, g, b := Matrix(10, 20, 30, &m)
		assert.Equal(t, []float32{30, 20, 10}, []float32{r, g, b})
	})

	t.Run("zero saturation yields luma", func(t *testing.T) {
		r, g, b := Saturation(255, 0, 0, 0)
		assert.InDelta(t, 0.2126*255, r, 1e-3)
		assert.Equal(t, r, g)
		assert.Equal(t, r, b)
	})

	t.Run("zero contrast yields mid grey", func(t *testing.T) {
		r, g, b := Contrast(0, 100, 255, 0)
		for _, v := range []float32{r, g, b} {
			assert.InDelta(t, 127.5, v, 1e-4)
		}
	})

	t.Run("gamma clamps negative base", func(t *testing.T) {
		r, g, b := Gamma(-40, 0, 255, 0.5)
		assert.Equal(t, float32(0), r)
		assert.Equal(t, float32(0), g)
		assert.InDelta(t, 255, b, 1e-3)
	})

	t.Run("gamma darkens midtones above one", func(t *testing.T) {
		_, g, _ := Gamma(0, 128, 0, 2.2)
		assert.Less(t, g, float32(128))
	})
}

func TestApplyRejectsInvalidBuffer(t *testing.T) {
	testCases := []struct {
		name string
		buf  *Buffer
	}{
		{name: "nil", buf: nil},
		{name: "not multiple of four", buf: &Buffer{Pix: make([]byte, 7), Width: 1, Height: 1}},
		{name: "dimension mismatch", buf: &Buffer{Pix: make([]byte, 8), Width: 3, Height: 1}},
		{name: "negative", buf: &Buffer{Pix: nil, Width: -1, Height: 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Apply(tc.buf, presets.Identity())
			assert.ErrorIs(t, err, ErrInvalidBuffer)
		})
	}
}

func TestEmbeddedPresetsKeepAlpha(t *testing.T) {
	catalog, err := presets.Load(t.Context(), presets.Embedded())
	require.NoError(t, err)

	for _, name := range catalog.Names() {
		p, err := catalog.Lookup(name)
		require.NoError(t, err)

		buf := genBuffer(32, 32, 3)
		orig := buf.Clone()
		_, err = Apply(buf, p)
		require.NoError(t, err)
		for i := 3; i < len(buf.Pix); i += 4 {
			require.Equal(t, orig.Pix[i], buf.Pix[i], "preset %s", name)
		}
	}
}
