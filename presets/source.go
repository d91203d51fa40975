package presets

import (
	"context"
	_ "embed"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

//go:embed presets.json
var embeddedPresets []byte

// Source supplies raw preset definitions to Load.
type Source interface {
	// Name identifies the source in errors and logs.
	Name() string
	// Read returns the raw definitions and their encoding.
	Read(ctx context.Context) ([]byte, Format, error)
}

// FormatFromPath guesses the encoding from a file extension. Unknown extensions are
// treated as JSON.
func FormatFromPath(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

type bytesSource struct {
	name   string
	data   []byte
	format Format
}

// BytesSource returns a source over in-memory definitions.
//
// Arguments:
//   - name: The name reported in errors.
//   - data: The raw definitions.
//   - format: The encoding of data.
//
// Returns:
//   - Source: The source.
func BytesSource(name string, data []byte, format Format) Source {
	return bytesSource{name: name, data: data, format: format}
}

func (s bytesSource) Name() string { return s.name }

func (s bytesSource) Read(ctx context.Context) ([]byte, Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	return s.data, s.format, nil
}

// Embedded returns the source of the presets shipped with the module.
func Embedded() Source {
	return BytesSource("embedded:presets.json", embeddedPresets, FormatJSON)
}

type fileSource struct {
	path string
}

// FileSource reads definitions from a JSON or YAML file.
func FileSource(path string) Source {
	return fileSource{path: path}
}

func (s fileSource) Name() string { return s.path }

func (s fileSource) Read(ctx context.Context) ([]byte, Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, "", errors.Wrap(err, "read preset file")
	}
	return data, FormatFromPath(s.path), nil
}

type httpSource struct {
	url    string
	client *http.Client
}

// HTTPSource fetches definitions from a URL. A nil client uses http.DefaultClient.
//
// Arguments:
//   - url: The address of the definitions.
//   - client: The HTTP client to use.
//
// Returns:
//   - Source: The source.
func HTTPSource(url string, client *http.Client) Source {
	if client == nil {
		client = http.DefaultClient
	}
	return httpSource{url: url, client: client}
}

func (s httpSource) Name() string { return s.url }

func (s httpSource) Read(ctx context.Context) ([]byte, Format, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "build request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "fetch presets")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Errorf("fetch presets: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "read response")
	}

	format := FormatFromPath(path.Base(req.URL.Path))
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if strings.Contains(mt, "yaml") {
			format = FormatYAML
		} else if strings.Contains(mt, "json") {
			format = FormatJSON
		}
	}
	return data, format, nil
}
