package presets

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a preset source.
type Format string

const (
	// FormatJSON is a JSON object mapping keys to presets.
	FormatJSON Format = "json"
	// FormatYAML is a YAML mapping of keys to presets.
	FormatYAML Format = "yaml"
)

// rawPreset mirrors Preset with optional fields so missing ones can be detected.
type rawPreset struct {
	Name        *string   `json:"name" yaml:"name"`
	Description *string   `json:"description" yaml:"description"`
	Matrix      []float64 `json:"matrix" yaml:"matrix"`
	Saturation  *float64  `json:"saturation" yaml:"saturation"`
	Contrast    *float64  `json:"contrast" yaml:"contrast"`
	Brightness  *float64  `json:"brightness" yaml:"brightness"`
	Gamma       *float64  `json:"gamma" yaml:"gamma"`
}

// entry is one decoded preset with its key, in source order.
type entry struct {
	key string
	raw rawPreset
}

// decode parses data into ordered, validated presets.
func decode(data []byte, format Format) ([]string, map[string]Preset, error) {
	var (
		entries []entry
		err     error
	)
	switch format {
	case FormatJSON:
		entries, err = decodeJSON(data)
	case FormatYAML:
		entries, err = decodeYAML(data)
	default:
		return nil, nil, errors.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		return nil, nil, errors.New("source defines no presets")
	}

	order := make([]string, 0, len(entries))
	byKey := make(map[string]Preset, len(entries))
	for _, e := range entries {
		if e.key == "" {
			return nil, nil, errors.New("preset key must not be empty")
		}
		if _, dup := byKey[e.key]; dup {
			return nil, nil, errors.Errorf("duplicate preset %q", e.key)
		}
		p, err := e.raw.validate()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "preset %q", e.key)
		}
		order = append(order, e.key)
		byKey[e.key] = p
	}
	return order, byKey, nil
}

// decodeJSON walks the top-level object token by token so key order is kept.
func decodeJSON(data []byte) ([]entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "decode json")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("decode json: top level must be an object")
	}

	var entries []entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "decode json")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("decode json: expected object key")
		}
		var raw rawPreset
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrapf(err, "decode json preset %q", key)
		}
		entries = append(entries, entry{key: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "decode json")
	}
	if _, err := dec.Token(); err == nil {
		return nil, errors.New("decode json: trailing data after object")
	}
	return entries, nil
}

// decodeYAML reads the document as a node tree so mapping order is kept.
func decodeYAML(data []byte) ([]entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("decode yaml: empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("decode yaml: top level must be a mapping")
	}

	entries := make([]entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		var raw rawPreset
		if err := valNode.Decode(&raw); err != nil {
			return nil, errors.Wrapf(err, "decode yaml preset %q", keyNode.Value)
		}
		entries = append(entries, entry{key: keyNode.Value, raw: raw})
	}
	return entries, nil
}

func (r rawPreset) validate() (Preset, error) {
	switch {
	case r.Name == nil:
		return Preset{}, errors.New("missing field name")
	case r.Description == nil:
		return Preset{}, errors.New("missing field description")
	case r.Matrix == nil:
		return Preset{}, errors.New("missing field matrix")
	case r.Saturation == nil:
		return Preset{}, errors.New("missing field saturation")
	case r.Contrast == nil:
		return Preset{}, errors.New("missing field contrast")
	case r.Brightness == nil:
		return Preset{}, errors.New("missing field brightness")
	case r.Gamma == nil:
		return Preset{}, errors.New("missing field gamma")
	}
	if len(r.Matrix) != MatrixSize {
		return Preset{}, errors.Errorf("matrix must have %d elements, got %d", MatrixSize, len(r.Matrix))
	}

	p := Preset{Name: *r.Name, Description: *r.Description}
	for i, v := range r.Matrix {
		f, err := toFloat32(v)
		if err != nil {
			return Preset{}, errors.Wrapf(err, "matrix[%d]", i)
		}
		p.Matrix[i] = f
	}

	scalars := []struct {
		name string
		src  float64
		dst  *float32
	}{
		{"saturation", *r.Saturation, &p.Saturation},
		{"contrast", *r.Contrast, &p.Contrast},
		{"brightness", *r.Brightness, &p.Brightness},
		{"gamma", *r.Gamma, &p.Gamma},
	}
	for _, s := range scalars {
		f, err := toFloat32(s.src)
		if err != nil {
			return Preset{}, errors.Wrap(err, s.name)
		}
		*s.dst = f
	}
	if !(p.Gamma > 0) {
		return Preset{}, errors.Errorf("gamma must be > 0, got %v", p.Gamma)
	}
	return p, nil
}

// toFloat32 narrows v, rejecting values that are not finite at float32 precision.
func toFloat32(v float64) (float32, error) {
	f := float32(v)
	if math.IsNaN(v) || math.IsInf(float64(f), 0) {
		return 0, errors.Errorf("value %v is not a finite float32", v)
	}
	return f, nil
}
