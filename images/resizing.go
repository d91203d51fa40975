package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/nvr-ai/filterbench/filters"
)

// Resize scales img to exactly width x height with bilinear interpolation.
//
// Arguments:
//   - img: The source image.
//   - width: The target width.
//   - height: The target height.
//
// Returns:
//   - image.Image: The resized image.
//   - error: An error if the dimensions are not positive.
func Resize(img image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear), nil
}

// ResizeToBuffer decodes data, scales it to res and converts it to a pixel buffer.
func ResizeToBuffer(data []byte, res Resolution) (*filters.Buffer, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	resized, err := Resize(img, res.Width, res.Height)
	if err != nil {
		return nil, err
	}
	return ToBuffer(resized), nil
}
