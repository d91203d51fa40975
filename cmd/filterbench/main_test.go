package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/filterbench/config"
	"github.com/nvr-ai/filterbench/storage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	// Cobra keeps the first context on subcommands, so a per-test context would go stale.
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFixtures(t *testing.T) (cfgPath, input string) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: storage.DriverDir, Path: filepath.Join(dir, "data")}
	cfg.Log.Level = "error"
	cfgPath = filepath.Join(dir, "filterbench.yaml")
	require.NoError(t, cfg.Save(cfgPath))

	img := image.NewNRGBA(image.Rect(0, 0, 6, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	input = filepath.Join(dir, "in.png")
	require.NoError(t, os.WriteFile(input, buf.Bytes(), 0o644))
	return cfgPath, input
}

func TestPresetsCommand(t *testing.T) {
	cfgPath, _ := writeFixtures(t)

	out, err := run(t, "presets", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "vintage")
	assert.Contains(t, out, "dramatic")
}

func TestApplyAndHistoryCommands(t *testing.T) {
	cfgPath, input := writeFixtures(t)
	dir := filepath.Dir(input)
	output := filepath.Join(dir, "out.jpg")

	out, err := run(t, "apply", input, output, "--config", cfgPath, "--preset", "sepia", "--backend", "direct")
	require.NoError(t, err)
	assert.Contains(t, out, "sepia on direct, 6×4")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 4), img.Bounds())

	// History persists across invocations through the directory store.
	out, err = run(t, "history", "list", "--config", cfgPath, "--backend", "direct")
	require.NoError(t, err)
	assert.Contains(t, out, "sepia")
	assert.Contains(t, out, "6×4")

	out, err = run(t, "history", "export", "--config", cfgPath, "--backend", "direct", "--dir", dir)
	require.NoError(t, err)
	matches, err := filepath.Glob(filepath.Join(dir, "benchmark-direct-*.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, out, matches[0])

	_, err = run(t, "history", "clear", "--config", cfgPath, "--backend", "direct")
	require.NoError(t, err)
	_, err = run(t, "history", "export", "--config", cfgPath, "--backend", "direct", "--dir", dir)
	assert.ErrorContains(t, err, "nothing to export")
}

func TestApplyRejectsBadArguments(t *testing.T) {
	cfgPath, input := writeFixtures(t)
	dir := filepath.Dir(input)

	_, err := run(t, "apply", input, filepath.Join(dir, "out.webp"), "--config", cfgPath, "--preset", "sepia", "--backend", "direct")
	assert.ErrorContains(t, err, "unsupported image format")

	_, err = run(t, "apply", input, filepath.Join(dir, "out.png"), "--config", cfgPath, "--preset", "sepia", "--backend", "gpu")
	assert.ErrorContains(t, err, "unknown backend")

	_, err = run(t, "apply", input, filepath.Join(dir, "out.png"), "--config", cfgPath, "--preset", "noir", "--backend", "direct")
	assert.ErrorContains(t, err, "unknown preset")
	assert.NoFileExists(t, filepath.Join(dir, "out.png"))
}

func TestCompareCommand(t *testing.T) {
	cfgPath, input := writeFixtures(t)

	out, err := run(t, "compare", input, "--config", cfgPath, "--preset", "vivid")
	require.NoError(t, err)
	assert.Contains(t, out, "vivid")
	assert.Contains(t, out, "ok")
	assert.NotContains(t, out, "MISMATCH")
}

func TestInvalidLogLevel(t *testing.T) {
	cfgPath, _ := writeFixtures(t)

	_, err := run(t, "presets", "--config", cfgPath, "--log-level", "loud")
	assert.Error(t, err)
	logLevel = ""
}

func TestExecuteReportsErrors(t *testing.T) {
	var stderr bytes.Buffer
	rootCmd.SetArgs([]string{"apply", "only-one-arg"})
	assert.Equal(t, 1, execute(&stderr))
	assert.True(t, strings.HasPrefix(stderr.String(), "filterbench: "))
	assert.Contains(t, stderr.String(), "arg(s)")
}
