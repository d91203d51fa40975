package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
}

func TestLoadDirectoryImages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "frame-2.png", "frame-1.JPG", "notes.txt", "c.webp")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	images, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, images, 3)

	names := []string{images[0].Name(), images[1].Name(), images[2].Name()}
	assert.Equal(t, []string{"c.webp", "frame-1.JPG", "frame-2.png"}, names)
	assert.Equal(t, []byte("frame-2.png"), images[2].Data)
}

func TestLoadDirectoryWithoutImages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "readme.md")

	_, err := LoadDirectoryImageFiles(dir)
	assert.ErrorIs(t, err, ErrNoImages)

	_, err = LoadDirectoryImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestLoadImageFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.png", "b.png")

	images, err := LoadImageFiles(filepath.Join(dir, "b.png"))
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "b.png", images[0].Name())

	images, err = LoadImageFiles(dir)
	require.NoError(t, err)
	assert.Len(t, images, 2)
}
