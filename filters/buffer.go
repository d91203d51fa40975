// Package filters - The fixed five-stage color pipeline and the RGBA buffers it runs on.
package filters

import (
	"github.com/pkg/errors"
)

// BytesPerPixel is the size of one (R,G,B,A) quadruple.
const BytesPerPixel = 4

// ErrInvalidBuffer is returned for buffers whose length does not match their dimensions.
var ErrInvalidBuffer = errors.New("invalid pixel buffer")

// Buffer is an interleaved RGBA image owned by the caller. Backends mutate Pix in place
// and never change its length or ordering.
type Buffer struct {
	// Pix holds Width*Height quadruples, row by row.
	Pix []byte
	// Width is the image width in pixels.
	Width int
	// Height is the image height in pixels.
	Height int
}

// NewBuffer allocates a zeroed buffer of the given size.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Pix:    make([]byte, width*height*BytesPerPixel),
		Width:  width,
		Height: height,
	}
}

// Validate checks that the buffer length is a multiple of four and matches its
// dimensions.
//
// Returns:
//   - error: ErrInvalidBuffer (wrapped) when the buffer is malformed.
func (b *Buffer) Validate() error {
	if b == nil {
		return errors.Wrap(ErrInvalidBuffer, "nil buffer")
	}
	if b.Width < 0 || b.Height < 0 {
		return errors.Wrapf(ErrInvalidBuffer, "negative dimensions %dx%d", b.Width, b.Height)
	}
	if len(b.Pix)%BytesPerPixel != 0 {
		return errors.Wrapf(ErrInvalidBuffer, "length %d is not a multiple of %d", len(b.Pix), BytesPerPixel)
	}
	if want := b.Width * b.Height * BytesPerPixel; len(b.Pix) != want {
		return errors.Wrapf(ErrInvalidBuffer, "length %d does not match %dx%d (want %d)",
			len(b.Pix), b.Width, b.Height, want)
	}
	return nil
}

// PixelCount returns Width*Height.
func (b *Buffer) PixelCount() int {
	return b.Width * b.Height
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Pix: pix, Width: b.Width, Height: b.Height}
}
