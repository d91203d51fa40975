package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/filterbench/filters"
)

func getTestImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 128})
		}
	}
	return img
}

func getPNGBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, getTestImage()))
	return buf.Bytes()
}

func getJPEGBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, getTestImage(), nil))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		format ImageFormat
	}{
		{name: "png", data: getPNGBytes(t), format: FormatPNG},
		{name: "jpeg", data: getJPEGBytes(t), format: FormatJPEG},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img, format, err := Decode(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.format, format)
			assert.Equal(t, 100, img.Bounds().Dx())
			assert.Equal(t, 80, img.Bounds().Dy())
		})
	}

	_, _, err := Decode(nil)
	assert.Error(t, err)
	_, _, err = Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestToBufferKeepsStraightAlpha(t *testing.T) {
	buf, format, err := DecodeToBuffer(getPNGBytes(t))
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, format)
	require.NoError(t, buf.Validate())
	assert.Equal(t, 100, buf.Width)
	assert.Equal(t, 80, buf.Height)

	// Pixel (7, 3).
	i := (3*100 + 7) * filters.BytesPerPixel
	assert.Equal(t, []byte{7, 3, 200, 128}, buf.Pix[i:i+4])
}

func TestEncodeBufferRoundTrip(t *testing.T) {
	src := filters.NewBuffer(3, 2)
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 10)
	}

	data, err := EncodeBuffer(src, FormatPNG)
	require.NoError(t, err)
	got, _, err := DecodeToBuffer(data)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, got.Pix)

	_, err = EncodeBuffer(src, FormatWebP)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = EncodeBuffer(&filters.Buffer{Pix: make([]byte, 5), Width: 1, Height: 1}, FormatPNG)
	assert.ErrorIs(t, err, filters.ErrInvalidBuffer)
}

func TestDecodeToBufferLimit(t *testing.T) {
	// A blank grayscale PNG compresses to a few bytes per row regardless of size.
	var big bytes.Buffer
	require.NoError(t, png.Encode(&big, image.NewGray(image.Rect(0, 0, 4000, 3000))))

	_, _, err := DecodeToBufferLimit(big.Bytes(), 1_000_000)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.ErrorContains(t, err, "4000x3000")
	assert.ErrorIs(t, CheckDimensions(big.Bytes(), 11_999_999), ErrImageTooLarge)
	assert.NoError(t, CheckDimensions(big.Bytes(), 12_000_000))
	assert.NoError(t, CheckDimensions(big.Bytes(), 0))

	buf, _, err := DecodeToBufferLimit(getPNGBytes(t), 8000)
	require.NoError(t, err)
	assert.Equal(t, 8000, buf.PixelCount())

	_, _, err = DecodeToBufferLimit(getPNGBytes(t), 7999)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, _, err = DecodeToBufferLimit([]byte("not an image"), 8000)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrImageTooLarge)
}

func TestResize(t *testing.T) {
	img, err := Resize(getTestImage(), 50, 40)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 40), img.Bounds())

	same, err := Resize(getTestImage(), 100, 80)
	require.NoError(t, err)
	assert.Equal(t, 100, same.Bounds().Dx())

	_, err = Resize(getTestImage(), 0, 10)
	assert.Error(t, err)
}

func TestResizeToBuffer(t *testing.T) {
	res := Resolution{Name: "64x48", Width: 64, Height: 48}
	buf, err := ResizeToBuffer(getJPEGBytes(t), res)
	require.NoError(t, err)
	assert.Equal(t, 64, buf.Width)
	assert.Equal(t, 48, buf.Height)
	assert.Len(t, buf.Pix, 64*48*4)

	_, err = ResizeToBuffer([]byte("junk"), res)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]ImageFormat{"png": FormatPNG, ".JPG": FormatJPEG, "jpeg": FormatJPEG, "webp": FormatWebP} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("bmp")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	f, err := FormatFromPath("/tmp/out.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType())
}
