package native

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadEmbedded(t *testing.T) *Module {
	t.Helper()
	m, err := Load(context.Background(), Config{})
	require.NoError(t, err)
	return m
}

func heapUsed(t *testing.T, m *Module) int {
	t.Helper()
	n, err := m.HeapUsed()
	require.NoError(t, err)
	return n
}

func TestLoadEmbedded(t *testing.T) {
	m := loadEmbedded(t)
	assert.Equal(t, 0, heapUsed(t, m))
	assert.Equal(t, 65536, m.MemorySize())
}

func TestAllocatorReclaimsInAnyOrder(t *testing.T) {
	m := loadEmbedded(t)

	a, err := m.Malloc(100)
	require.NoError(t, err)
	b, err := m.Malloc(36)
	require.NoError(t, err)
	c, err := m.Malloc(1)
	require.NoError(t, err)

	assert.Zero(t, uint32(a)%8)
	assert.Less(t, uint32(a), uint32(b))
	assert.Less(t, uint32(b), uint32(c))

	require.NoError(t, m.Free(a))
	assert.Greater(t, heapUsed(t, m), 0)
	require.NoError(t, m.Free(c))
	assert.Greater(t, heapUsed(t, m), 0)
	require.NoError(t, m.Free(b))
	assert.Equal(t, 0, heapUsed(t, m))

	again, err := m.Malloc(100)
	require.NoError(t, err)
	assert.Equal(t, a, again)
	require.NoError(t, m.Free(again))
}

func TestMallocGrowsMemory(t *testing.T) {
	m := loadEmbedded(t)

	const size = 5 << 20
	ptr, err := m.Malloc(size)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.MemorySize(), int(ptr)+size)

	payload := make([]byte, size)
	payload[size-1] = 0xAB
	require.NoError(t, m.Write(ptr, payload))

	out := make([]byte, size)
	require.NoError(t, m.Read(ptr, out))
	assert.Equal(t, byte(0xAB), out[size-1])

	require.NoError(t, m.Free(ptr))
	assert.Equal(t, 0, heapUsed(t, m))
}

func TestMallocRejectsHugeRequest(t *testing.T) {
	m := loadEmbedded(t)

	_, err := m.Malloc(-1)
	assert.True(t, errors.Is(err, ErrOutOfMemory))
	assert.Equal(t, 0, heapUsed(t, m))
}

func TestScopeReleasesEverything(t *testing.T) {
	m := loadEmbedded(t)

	scope := m.NewScope()
	_, err := scope.Alloc(4096)
	require.NoError(t, err)
	_, err = scope.Alloc(36)
	require.NoError(t, err)
	assert.Equal(t, 2, scope.Len())

	require.NoError(t, scope.Release())
	assert.Equal(t, 0, scope.Len())
	assert.Equal(t, 0, heapUsed(t, m))
	require.NoError(t, scope.Release())
}

func TestApplyIdentity(t *testing.T) {
	m := loadEmbedded(t)
	scope := m.NewScope()
	defer scope.Release()

	pixels := []byte{10, 20, 30, 255, 0, 128, 255, 7}
	pix, err := scope.Alloc(len(pixels))
	require.NoError(t, err)
	mat, err := scope.Alloc(36)
	require.NoError(t, err)

	require.NoError(t, m.Write(pix, pixels))
	require.NoError(t, m.WriteFloat32s(mat, []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}))

	for _, unrolled := range []bool{false, true} {
		require.NoError(t, m.Apply(ApplyArgs{
			Pixels: pix, Width: 2, Height: 1, Matrix: mat,
			Saturation: 1, Contrast: 1, Brightness: 1, Gamma: 1,
		}, unrolled))

		out := make([]byte, len(pixels))
		require.NoError(t, m.Read(pix, out))
		assert.Equal(t, pixels, out)
	}
}

func TestOutOfBoundsAccess(t *testing.T) {
	m := loadEmbedded(t)

	err := m.Write(Ptr(m.MemorySize()-2), []byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrOutOfBounds))

	err = m.Read(Ptr(m.MemorySize()+10), make([]byte, 1))
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestLoadMissingExports(t *testing.T) {
	testCases := []struct {
		name    string
		source  string
		missing string
	}{
		{
			name:    "no memory",
			source:  `(module)`,
			missing: ExportMemory,
		},
		{
			name: "no filter routine",
			source: `(module
				(memory (export "memory") 1)
				(func (export "malloc") (param i32) (result i32) (i32.const 0))
				(func (export "free") (param i32)))`,
			missing: ExportApplyPreset,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Load(context.Background(), Config{Source: []byte(tc.source)})
			assert.Nil(t, m)
			require.True(t, errors.Is(err, ErrMissingExport), "got %v", err)
			assert.Contains(t, err.Error(), tc.missing)
		})
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()

	watPath := filepath.Join(dir, "filters.wat")
	require.NoError(t, os.WriteFile(watPath, []byte(embeddedWAT), 0o644))
	m, err := Load(context.Background(), Config{Path: watPath})
	require.NoError(t, err)
	assert.Equal(t, 0, heapUsed(t, m))

	badPath := filepath.Join(dir, "broken.wasm")
	require.NoError(t, os.WriteFile(badPath, []byte("not wasm"), 0o644))
	_, err = Load(context.Background(), Config{Path: badPath})
	assert.Error(t, err)

	_, err = Load(context.Background(), Config{Path: filepath.Join(dir, "missing.wat")})
	assert.Error(t, err)
}

func TestLoadRejectsMalformedText(t *testing.T) {
	_, err := Load(context.Background(), Config{Source: []byte("(module")})
	assert.Error(t, err)
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, Config{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoadClosesModuleFinishedAfterCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	loaded := make(chan *Module, 1)
	compile = func(cfg Config) (*Module, error) {
		close(started)
		<-release
		m, err := load(cfg)
		loaded <- m
		return m, err
	}
	t.Cleanup(func() { compile = load })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Load(ctx, Config{})
		errCh <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	m := <-loaded
	require.NotNil(t, m)
	require.Eventually(t, m.closed.Load, time.Second, 5*time.Millisecond)

	m.Close()
}
