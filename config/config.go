// Package config - Configuration file loading, defaults and validation.
package config

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/native"
	"github.com/nvr-ai/filterbench/presets"
	"github.com/nvr-ai/filterbench/storage"
)

// Config represents the overall filterbench configuration.
type Config struct {
	Presets     PresetsConfig     `json:"presets"     yaml:"presets"`
	Storage     StorageConfig     `json:"storage"     yaml:"storage"`
	Accelerated AcceleratedConfig `json:"accelerated" yaml:"accelerated"`
	Server      ServerConfig      `json:"server"      yaml:"server"`
	Suite       SuiteConfig       `json:"suite"       yaml:"suite"`
	Log         LogConfig         `json:"log"         yaml:"log"`
}

// PresetsConfig selects the preset catalog source.
type PresetsConfig struct {
	// Source is a file path or http(s) URL. Empty uses the built-in presets.
	Source string `json:"source" yaml:"source"`
}

// StorageConfig selects where benchmark history is persisted.
type StorageConfig struct {
	Driver storage.Driver `json:"driver" yaml:"driver"`
	Path   string         `json:"path"   yaml:"path"`
}

// AcceleratedConfig configures the accelerated backend.
type AcceleratedConfig struct {
	// ModulePath is a .wat or .wasm file. Empty uses the built-in module.
	ModulePath string `json:"modulePath" yaml:"modulePath"`
	Unrolled   bool   `json:"unrolled"   yaml:"unrolled"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// MaxUploadBytes bounds the request body of apply calls.
	MaxUploadBytes int64 `json:"maxUploadBytes" yaml:"maxUploadBytes"`
	// MaxImagePixels bounds width*height of uploaded images before they are decoded.
	MaxImagePixels int64 `json:"maxImagePixels" yaml:"maxImagePixels"`
	// ShutdownSeconds bounds graceful shutdown.
	ShutdownSeconds int `json:"shutdownSeconds" yaml:"shutdownSeconds"`
	// ReportSeconds is the runtime report interval; 0 disables reports.
	ReportSeconds int `json:"reportSeconds" yaml:"reportSeconds"`
}

// SuiteConfig configures scenario suites.
type SuiteConfig struct {
	OutputDir  string `json:"outputDir"  yaml:"outputDir"`
	ImagesPath string `json:"imagesPath" yaml:"imagesPath"`
	Iterations int    `json:"iterations" yaml:"iterations"`
	WarmupRuns int    `json:"warmupRuns" yaml:"warmupRuns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Driver: storage.DriverDir, Path: "./data"},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadBytes:  32 << 20,
			MaxImagePixels:  50_000_000,
			ShutdownSeconds: 10,
			ReportSeconds:   60,
		},
		Suite: SuiteConfig{
			OutputDir:  "./benchmark_results",
			ImagesPath: "./test_images",
			Iterations: 50,
			WarmupRuns: 5,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML (.yaml, .yml) or JSON (.json) file over the defaults and validates
// the result.
//
// Arguments:
//   - path: The configuration file.
//
// Returns:
//   - *Config: The merged configuration.
//   - error: A read, parse or validation failure.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, errors.Errorf("config %s: unsupported extension", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML or JSON by extension.
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "failed to write config file")
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case storage.DriverMemory:
	case storage.DriverDir, storage.DriverSQLite:
		if c.Storage.Path == "" {
			return errors.Errorf("config: storage driver %s needs a path", c.Storage.Driver)
		}
	default:
		return errors.Wrapf(storage.ErrUnknownDriver, "config: %q", c.Storage.Driver)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("config: server.maxUploadBytes must be positive")
	}
	if c.Server.MaxImagePixels <= 0 {
		return errors.New("config: server.maxImagePixels must be positive")
	}
	if c.Server.ShutdownSeconds < 0 || c.Server.ReportSeconds < 0 {
		return errors.New("config: server durations must not be negative")
	}
	if c.Suite.Iterations <= 0 {
		return errors.New("config: suite.iterations must be positive")
	}
	if c.Suite.WarmupRuns < 0 {
		return errors.New("config: suite.warmupRuns must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// PresetSource returns the configured catalog source.
func (c *Config) PresetSource(client *http.Client) presets.Source {
	src := c.Presets.Source
	switch {
	case src == "":
		return presets.Embedded()
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return presets.HTTPSource(src, client)
	default:
		return presets.FileSource(src)
	}
}

// OpenStorage opens the configured history storage.
func (c *Config) OpenStorage() (storage.Storage, error) {
	return storage.Open(c.Storage.Driver, c.Storage.Path)
}

// BackendOptions returns the options for backend.New.
func (c *Config) BackendOptions(logger *slog.Logger) backend.Options {
	return backend.Options{
		Native:   native.Config{Path: c.Accelerated.ModulePath},
		Unrolled: c.Accelerated.Unrolled,
		Logger:   logger,
	}
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownSeconds) * time.Second
}

// ReportInterval returns the runtime report interval, 0 when disabled.
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.Server.ReportSeconds) * time.Second
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Wrapf(err, "config: log level %q", s)
	}
	return level, nil
}
