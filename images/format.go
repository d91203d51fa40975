package images

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format. It can be decoded but not encoded.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// ErrUnsupportedFormat is returned for formats that cannot be decoded or encoded.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ParseFormat maps a format name or file extension to an ImageFormat.
//
// Arguments:
//   - s: A name such as "png", "jpg" or ".jpeg".
//
// Returns:
//   - ImageFormat: The format.
//   - error: ErrUnsupportedFormat for unknown names.
func ParseFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "%q", s)
	}
}

// FormatFromPath returns the format implied by the extension of p.
func FormatFromPath(p string) (ImageFormat, error) {
	return ParseFormat(filepath.Ext(p))
}

// ContentType returns the media type of f.
func (f ImageFormat) ContentType() string {
	return "image/" + string(f)
}
