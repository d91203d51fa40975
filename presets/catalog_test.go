package presets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoPresetsJSON = `{
  "zeta": {"name": "Zeta", "description": "last letter", "matrix": [1,0,0,0,1,0,0,0,1],
           "saturation": 1, "contrast": 1, "brightness": 2, "gamma": 1},
  "alpha": {"name": "Alpha", "description": "first letter", "matrix": [0,0,1,0,1,0,1,0,0],
            "saturation": 0.5, "contrast": 1.5, "brightness": 1, "gamma": 2.2}
}`

const twoPresetsYAML = `
zeta:
  name: Zeta
  description: last letter
  matrix: [1, 0, 0, 0, 1, 0, 0, 0, 1]
  saturation: 1
  contrast: 1
  brightness: 2
  gamma: 1
alpha:
  name: Alpha
  description: first letter
  matrix: [0, 0, 1, 0, 1, 0, 1, 0, 0]
  saturation: 0.5
  contrast: 1.5
  brightness: 1
  gamma: 2.2
`

func TestLoadEmbedded(t *testing.T) {
	catalog, err := Load(context.Background(), Embedded())
	require.NoError(t, err)

	assert.Equal(t, 8, catalog.Len())
	assert.Equal(t, []string{
		"vintage", "cool", "warm", "blackwhite", "sepia", "vivid", "fade", "dramatic",
	}, catalog.Names())

	bw, err := catalog.Lookup("blackwhite")
	require.NoError(t, err)
	assert.Equal(t, "B&W", bw.Name)
	assert.Equal(t, float32(1.2), bw.Contrast)
}

func TestLoadKeepsSourceOrder(t *testing.T) {
	testCases := []struct {
		name   string
		source Source
	}{
		{name: "json", source: BytesSource("json", []byte(twoPresetsJSON), FormatJSON)},
		{name: "yaml", source: BytesSource("yaml", []byte(twoPresetsYAML), FormatYAML)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			catalog, err := Load(context.Background(), tc.source)
			require.NoError(t, err)
			assert.Equal(t, []string{"zeta", "alpha"}, catalog.Names())

			alpha, err := catalog.Lookup("alpha")
			require.NoError(t, err)
			assert.Equal(t, [MatrixSize]float32{0, 0, 1, 0, 1, 0, 1, 0, 0}, alpha.Matrix)
			assert.Equal(t, float32(2.2), alpha.Gamma)

			infos := catalog.List()
			require.Len(t, infos, 2)
			assert.Equal(t, Info{Key: "zeta", Name: "Zeta", Description: "last letter"}, infos[0])
		})
	}
}

func TestLoadRejectsInvalidSources(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{name: "not json", data: `not json`},
		{name: "array at top level", data: `[]`},
		{name: "empty object", data: `{}`},
		{name: "short matrix", data: `{"a": {"name": "A", "description": "d", "matrix": [1,0,0],
			"saturation": 1, "contrast": 1, "brightness": 1, "gamma": 1}}`},
		{name: "long matrix", data: `{"a": {"name": "A", "description": "d", "matrix": [1,0,0,0,1,0,0,0,1,0],
			"saturation": 1, "contrast": 1, "brightness": 1, "gamma": 1}}`},
		{name: "missing gamma", data: `{"a": {"name": "A", "description": "d", "matrix": [1,0,0,0,1,0,0,0,1],
			"saturation": 1, "contrast": 1, "brightness": 1}}`},
		{name: "missing description", data: `{"a": {"name": "A", "matrix": [1,0,0,0,1,0,0,0,1],
			"saturation": 1, "contrast": 1, "brightness": 1, "gamma": 1}}`},
		{name: "zero gamma", data: `{"a": {"name": "A", "description": "d", "matrix": [1,0,0,0,1,0,0,0,1],
			"saturation": 1, "contrast": 1, "brightness": 1, "gamma": 0}}`},
		{name: "overflowing brightness", data: `{"a": {"name": "A", "description": "d", "matrix": [1,0,0,0,1,0,0,0,1],
			"saturation": 1, "contrast": 1, "brightness": 1e300, "gamma": 1}}`},
		{name: "duplicate key", data: `{
			"a": {"name": "A", "description": "d", "matrix": [1,0,0,0,1,0,0,0,1], "saturation": 1, "contrast": 1, "brightness": 1, "gamma": 1},
			"a": {"name": "B", "description": "d", "matrix": [1,0,0,0,1,0,0,0,1], "saturation": 1, "contrast": 1, "brightness": 1, "gamma": 1}}`},
		{name: "wrong type", data: `{"a": {"name": "A", "description": "d", "matrix": "identity",
			"saturation": 1, "contrast": 1, "brightness": 1, "gamma": 1}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			catalog, err := Load(context.Background(), BytesSource(tc.name, []byte(tc.data), FormatJSON))
			assert.Nil(t, catalog)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "expected *LoadError, got %v", err)
			assert.Equal(t, tc.name, loadErr.Source)
		})
	}
}

func TestLoadRejectsNonFiniteYAML(t *testing.T) {
	data := `
a:
  name: A
  description: d
  matrix: [1, 0, 0, 0, .nan, 0, 0, 0, 1]
  saturation: 1
  contrast: 1
  brightness: 1
  gamma: 1
`
	_, err := Load(context.Background(), BytesSource("yaml", []byte(data), FormatYAML))
	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestLookupUnknownPreset(t *testing.T) {
	catalog, err := Load(context.Background(), Embedded())
	require.NoError(t, err)

	_, err = catalog.Lookup("does-not-exist")
	assert.True(t, errors.Is(err, ErrUnknownPreset))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "presets.json")
	yamlPath := filepath.Join(dir, "presets.yml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(twoPresetsJSON), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte(twoPresetsYAML), 0o644))

	fromJSON, err := Load(context.Background(), FileSource(jsonPath))
	require.NoError(t, err)
	fromYAML, err := Load(context.Background(), FileSource(yamlPath))
	require.NoError(t, err)

	for _, name := range fromJSON.Names() {
		a, err := fromJSON.Lookup(name)
		require.NoError(t, err)
		b, err := fromYAML.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}

	_, err = Load(context.Background(), FileSource(filepath.Join(dir, "missing.json")))
	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/presets.yaml":
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write([]byte(twoPresetsYAML))
		case "/presets.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(twoPresetsJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	for _, p := range []string{"/presets.json", "/presets.yaml"} {
		catalog, err := Load(context.Background(), HTTPSource(srv.URL+p, srv.Client()))
		require.NoError(t, err, p)
		assert.Equal(t, []string{"zeta", "alpha"}, catalog.Names())
	}

	_, err := Load(context.Background(), HTTPSource(srv.URL+"/missing", srv.Client()))
	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestLoadHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, Embedded())
	assert.True(t, errors.Is(err, context.Canceled))
}
