// Package presets - Named color filter definitions and the catalog that holds them.
package presets

import (
	"fmt"

	"github.com/pkg/errors"
)

// MatrixSize is the number of coefficients in a row-major 3x3 color matrix.
const MatrixSize = 9

// ErrUnknownPreset is returned when a preset name is absent from the catalog.
var ErrUnknownPreset = errors.New("unknown preset")

// Preset is a named set of filter parameters: a color matrix followed by four scalar
// adjustments. Presets are immutable once loaded.
type Preset struct {
	// Name is the display name of the preset.
	Name string `json:"name" yaml:"name"`
	// Description is a short human readable summary.
	Description string `json:"description" yaml:"description"`
	// Matrix is the row-major 3x3 color matrix.
	Matrix [MatrixSize]float32 `json:"matrix" yaml:"matrix"`
	// Saturation scales the distance of each channel from the luma.
	Saturation float32 `json:"saturation" yaml:"saturation"`
	// Contrast scales the distance of each channel from mid grey.
	Contrast float32 `json:"contrast" yaml:"contrast"`
	// Brightness multiplies each channel.
	Brightness float32 `json:"brightness" yaml:"brightness"`
	// Gamma is the exponent of the final gamma stage. Always > 0.
	Gamma float32 `json:"gamma" yaml:"gamma"`
}

// Identity returns the preset that leaves every pixel unchanged.
//
// Returns:
//   - Preset: The identity preset.
func Identity() Preset {
	return Preset{
		Name:        "Identity",
		Description: "No-op filter",
		Matrix:      [MatrixSize]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
		Saturation:  1,
		Contrast:    1,
		Brightness:  1,
		Gamma:       1,
	}
}

// Info is the listing view of a preset.
type Info struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadError reports a catalog that could not be built from its source. No partial
// catalog is ever produced alongside it.
type LoadError struct {
	// Source names where the definitions were read from.
	Source string
	// Err is the underlying read, parse or validation failure.
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("presets: load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
