package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/config"
	"github.com/nvr-ai/filterbench/controller"
	"github.com/nvr-ai/filterbench/presets"
	"github.com/nvr-ai/filterbench/profiler"
	"github.com/nvr-ai/filterbench/storage"
)

var (
	configPath string
	logLevel   string
)

// rootCmd is the base command; every subcommand registers itself in init.
var rootCmd = &cobra.Command{
	Use:   "filterbench",
	Short: "Apply color presets to images and benchmark the direct and accelerated filter backends",
	// Errors are printed once by Execute.
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides the config)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	os.Exit(execute(os.Stderr))
}

func execute(stderr io.Writer) int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "filterbench:", err)
		return 1
	}
	return 0
}

// app is the wiring shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	catalog  *presets.Catalog
	storage  storage.Storage
	backends []backend.Backend
	profiler *profiler.RuntimeProfiler
	ctrl     *controller.Controller
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	name := cfg.Log.Level
	if logLevel != "" {
		name = logLevel
	}
	level, err := config.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// setup loads the configuration and catalog, opens storage, builds every backend and
// the controller, then initializes the backends once.
func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	src := cfg.PresetSource(&http.Client{Timeout: 30 * time.Second})
	catalog, err := presets.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	logger.Debug("presets loaded", "source", src.Name(), "count", catalog.Len())

	st, err := cfg.OpenStorage()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, catalog: catalog, storage: st}
	opts := cfg.BackendOptions(logger)
	for _, id := range backend.IDs() {
		b, err := backend.New(id, opts)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		a.backends = append(a.backends, b)
	}

	a.profiler = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: cfg.ReportInterval(),
		Logger:         logger,
	})
	a.ctrl, err = controller.New(ctx, controller.Options{
		Catalog:  catalog,
		Backends: a.backends,
		Storage:  st,
		Profiler: a.profiler,
		Logger:   logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.ctrl.InitBackends(ctx)
	return a, nil
}

// ready returns the initialized backends.
func (a *app) ready() []backend.Backend {
	out := make([]backend.Backend, 0, len(a.backends))
	for _, b := range a.backends {
		if b.Ready() {
			out = append(out, b)
		}
	}
	return out
}

func (a *app) Close() {
	if err := a.ctrl.Close(); err != nil {
		a.logger.Warn("close backends", "error", err)
	}
	if err := a.storage.Close(); err != nil {
		a.logger.Warn("close storage", "error", err)
	}
}

func parseBackend(s string) (backend.ID, error) {
	id, err := backend.ParseID(s)
	if err != nil {
		return "", errors.Wrap(err, "--backend")
	}
	return id, nil
}
