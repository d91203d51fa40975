// Package images - Decoding, encoding and RGBA buffer conversion for filter runs.
package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/nvr-ai/filterbench/filters"
)

// DefaultJPEGQuality is used by Encode for JPEG output.
const DefaultJPEGQuality = 92

// Decode decodes a PNG, JPEG or WebP image.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - image.Image: The decoded image.
//   - ImageFormat: The detected format.
//   - error: An error if the data is empty or cannot be decoded.
func Decode(data []byte) (image.Image, ImageFormat, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty image data")
	}
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	format, err := ParseFormat(name)
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// Encode writes img to w in format.
func Encode(w io.Writer, img image.Image, format ImageFormat) error {
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: DefaultJPEGQuality})
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "encode %q", format)
	}
	return errors.Wrapf(err, "encode %s", format)
}

// ToBuffer converts img to a straight-alpha RGBA pixel buffer. The buffer does not
// share memory with img.
func ToBuffer(img image.Image) *filters.Buffer {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		// Row copy keeps semi-transparent pixels exact; draw goes through premultiplied color.
		for y := 0; y < b.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	} else {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	}
	return &filters.Buffer{Pix: dst.Pix, Width: b.Dx(), Height: b.Dy()}
}

// FromBuffer wraps buf as an image without copying.
func FromBuffer(buf *filters.Buffer) *image.NRGBA {
	return &image.NRGBA{
		Pix:    buf.Pix,
		Stride: buf.Width * filters.BytesPerPixel,
		Rect:   image.Rect(0, 0, buf.Width, buf.Height),
	}
}

// ErrImageTooLarge is returned when an image has more pixels than allowed.
var ErrImageTooLarge = errors.New("image dimensions too large")

// CheckDimensions reads only the image header and rejects images with more than
// maxPixels pixels. A maxPixels of 0 or less disables the check.
//
// Arguments:
//   - data: The encoded image.
//   - maxPixels: The largest accepted width*height.
//
// Returns:
//   - error: ErrImageTooLarge, or a header decoding failure.
func CheckDimensions(data []byte, maxPixels int64) error {
	if maxPixels <= 0 {
		return nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "decode image header")
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return errors.Wrapf(ErrImageTooLarge, "%dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// DecodeToBuffer decodes data straight into a pixel buffer.
func DecodeToBuffer(data []byte) (*filters.Buffer, ImageFormat, error) {
	return DecodeToBufferLimit(data, 0)
}

// DecodeToBufferLimit is DecodeToBuffer for untrusted input: the dimensions are checked
// against maxPixels before any pixel is decoded.
func DecodeToBufferLimit(data []byte, maxPixels int64) (*filters.Buffer, ImageFormat, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty image data")
	}
	if err := CheckDimensions(data, maxPixels); err != nil {
		return nil, "", err
	}
	img, format, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	return ToBuffer(img), format, nil
}

// EncodeBuffer encodes buf in format.
func EncodeBuffer(buf *filters.Buffer, format ImageFormat) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := Encode(&out, FromBuffer(buf), format); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
