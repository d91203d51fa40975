package images

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ResolutionType names a standard resolution.
type ResolutionType string

const (
	ResolutionTypeQVGA     ResolutionType = "QVGA"
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeNHD      ResolutionType = "nHD"
	ResolutionTypeQHD540   ResolutionType = "qHD 540p"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionTypeHDPlus   ResolutionType = "HD+"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
	ResolutionTypeQHD1440p ResolutionType = "QHD 1440p"
	ResolutionType4KUHD    ResolutionType = "4K UHD"
)

// ErrInvalidResolution is returned by ParseResolution for malformed input.
var ErrInvalidResolution = errors.New("invalid resolution")

// Resolution is a target size for benchmark inputs.
type Resolution struct {
	Name   ResolutionType `json:"name"   yaml:"name"`
	Width  int            `json:"width"  yaml:"width"`
	Height int            `json:"height" yaml:"height"`
}

// PixelCount returns Width*Height.
func (r Resolution) PixelCount() int {
	return r.Width * r.Height
}

// MegaPixels returns the pixel count in megapixels rounded to two decimals.
func (r Resolution) MegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return math.Round(float64(r.Width*r.Height)/1e4) / 100
}

// Key returns the WxH form of r.
func (r Resolution) Key() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Width, r.Height, r.MegaPixels())
}

// ladder is ordered by pixel count.
var ladder = []Resolution{
	{Name: ResolutionTypeQVGA, Width: 320, Height: 240},
	{Name: ResolutionTypeNHD, Width: 640, Height: 360},
	{Name: ResolutionTypeVGA, Width: 640, Height: 480},
	{Name: ResolutionTypeQHD540, Width: 960, Height: 540},
	{Name: ResolutionTypeHD720p, Width: 1280, Height: 720},
	{Name: ResolutionTypeHDPlus, Width: 1600, Height: 900},
	{Name: ResolutionTypeFHD1080p, Width: 1920, Height: 1080},
	{Name: ResolutionTypeQHD1440p, Width: 2560, Height: 1440},
	{Name: ResolutionType4KUHD, Width: 3840, Height: 2160},
}

// Ladder returns every standard resolution ordered by pixel count.
func Ladder() []Resolution {
	out := make([]Resolution, len(ladder))
	copy(out, ladder)
	return out
}

// GetResolutionByType retrieves a standard resolution by name.
func GetResolutionByType(t ResolutionType) (Resolution, bool) {
	for _, r := range ladder {
		if r.Name == t {
			return r, true
		}
	}
	return Resolution{}, false
}

// GetHighestResolutionUnderDimensions returns the largest standard resolution that fits
// inside width x height.
//
// Arguments:
//   - width: The maximum width.
//   - height: The maximum height.
//
// Returns:
//   - Resolution: The largest fitting resolution.
//   - bool: True if any resolution fits.
func GetHighestResolutionUnderDimensions(width, height int) (Resolution, bool) {
	var highest Resolution
	var found bool
	for _, r := range ladder {
		if r.Width <= width && r.Height <= height && (!found || r.PixelCount() > highest.PixelCount()) {
			highest, found = r, true
		}
	}
	return highest, found
}

// ParseResolution accepts a standard name ("HD 720p") or a WxH pair ("1280x720").
func ParseResolution(s string) (Resolution, error) {
	if r, ok := GetResolutionByType(ResolutionType(s)); ok {
		return r, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, errors.Wrapf(ErrInvalidResolution, "%q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Resolution{}, errors.Wrapf(ErrInvalidResolution, "%q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Resolution{}, errors.Wrapf(ErrInvalidResolution, "%q", s)
	}
	if width <= 0 || height <= 0 {
		return Resolution{}, errors.Wrapf(ErrInvalidResolution, "%q", s)
	}
	r := Resolution{Name: ResolutionType(fmt.Sprintf("%dx%d", width, height)), Width: width, Height: height}
	for _, std := range ladder {
		if std.Width == width && std.Height == height {
			return std, nil
		}
	}
	return r, nil
}
