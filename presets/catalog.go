package presets

import (
	"context"

	"github.com/pkg/errors"
)

// Catalog is a validated, read-only registry of presets keyed by name.
type Catalog struct {
	order []string
	byKey map[string]Preset
}

// Load reads and validates every preset of src. Loading is all-or-nothing: any read,
// parse or validation failure yields a *LoadError and no catalog.
//
// Arguments:
//   - ctx: Cancels a pending read.
//   - src: Where the definitions come from.
//
// Returns:
//   - *Catalog: The loaded catalog.
//   - error: A *LoadError on failure.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	data, format, err := src.Read(ctx)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	order, byKey, err := decode(data, format)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	return &Catalog{order: order, byKey: byKey}, nil
}

// Names returns the preset keys in source-defined order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Len returns the number of presets.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Lookup returns the preset stored under name.
//
// Arguments:
//   - name: The preset key.
//
// Returns:
//   - Preset: The preset.
//   - error: ErrUnknownPreset (wrapped) when name is not defined.
func (c *Catalog) Lookup(name string) (Preset, error) {
	p, ok := c.byKey[name]
	if !ok {
		return Preset{}, errors.Wrapf(ErrUnknownPreset, "lookup %q", name)
	}
	return p, nil
}

// List returns key, display name and description of every preset, in order.
func (c *Catalog) List() []Info {
	infos := make([]Info, 0, len(c.order))
	for _, key := range c.order {
		p := c.byKey[key]
		infos = append(infos, Info{Key: key, Name: p.Name, Description: p.Description})
	}
	return infos
}
