// Package native - Loader and memory helpers for the accelerated filter module.
//
// The module is WebAssembly compiled to native code by wasmtime. It runs in its own
// linear memory, so every buffer handed to it must be allocated with its exported
// allocator, filled by copy, and released explicitly: nothing in that memory is
// garbage collected.
package native

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

//go:embed filters.wat
var embeddedWAT string

// Names of the exports every filter module must provide.
const (
	ExportMemory              = "memory"
	ExportMalloc              = "malloc"
	ExportFree                = "free"
	ExportApplyPreset         = "applyPreset"
	ExportApplyPresetUnrolled = "applyPresetUnrolled"
	ExportHeapUsed            = "heapUsed"
)

var (
	// ErrMissingExport is returned when a module lacks one of the required exports.
	ErrMissingExport = errors.New("missing export")
	// ErrOutOfMemory is returned when the module allocator cannot satisfy a request.
	ErrOutOfMemory = errors.New("foreign allocation failed")
	// ErrOutOfBounds is returned for copies that fall outside the module memory.
	ErrOutOfBounds = errors.New("foreign access out of bounds")
)

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// Config selects the module to load.
type Config struct {
	// Path is a .wat or .wasm file. Empty uses the module embedded in this package.
	Path string `json:"path" yaml:"path"`
	// Source is raw module text or binary; it takes precedence over Path.
	Source []byte `json:"-" yaml:"-"`
}

// Ptr is an address inside the module linear memory.
type Ptr uint32

// Module is a linked, instantiated filter module. The handles are resolved once at load
// time; nothing is looked up by name afterwards.
//
// A Module is not safe for concurrent use.
type Module struct {
	store               *wasmtime.Store
	memory              *wasmtime.Memory
	malloc              *wasmtime.Func
	free                *wasmtime.Func
	applyPreset         *wasmtime.Func
	applyPresetUnrolled *wasmtime.Func
	heapUsed            *wasmtime.Func

	closed atomic.Bool
}

// ApplyArgs are the arguments of the exported filter routine.
type ApplyArgs struct {
	Pixels     Ptr
	Width      int32
	Height     int32
	Matrix     Ptr
	Saturation float32
	Contrast   float32
	Brightness float32
	Gamma      float32
}

// compile builds a module from cfg. Tests replace it to control timing.
var compile = load

// Load compiles, links and instantiates the filter module. Compilation runs on its own
// goroutine; when ctx is done first Load returns ctx's error and a module that finishes
// loading afterwards is closed.
//
// Arguments:
//   - ctx: Bounds how long the caller waits for the module.
//   - cfg: Selects the module source.
//
// Returns:
//   - *Module: The ready module with every export resolved.
//   - error: A read, compile, link or ErrMissingExport failure.
func Load(ctx context.Context, cfg Config) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		module *Module
		err    error
	}
	done := make(chan result, 1)
	go func() {
		m, err := compile(cfg)
		done <- result{module: m, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.module != nil {
				r.module.Close()
			}
		}()
		return nil, errors.Wrap(ctx.Err(), "load native module")
	case r := <-done:
		return r.module, r.err
	}
}

func load(cfg Config) (*Module, error) {
	wasm, err := readSource(cfg)
	if err != nil {
		return nil, err
	}

	engineCfg := wasmtime.NewConfig()
	engineCfg.SetCraneliftOptLevel(wasmtime.OptLevelSpeed)
	engine := wasmtime.NewEngineWithConfig(engineCfg)

	module, err := wasmtime.NewModule(engine, wasm)
	if err != nil {
		return nil, errors.Wrap(err, "compile module")
	}

	linker := wasmtime.NewLinker(engine)
	if err := linker.FuncWrap("env", "powf", func(x, y float32) float32 {
		return math32.Pow(x, y)
	}); err != nil {
		return nil, errors.Wrap(err, "define env.powf")
	}

	store := wasmtime.NewStore(engine)
	instance, err := linker.Instantiate(store, module)
	if err != nil {
		return nil, errors.Wrap(err, "instantiate module")
	}

	m := &Module{store: store}
	ext := instance.GetExport(store, ExportMemory)
	if ext == nil || ext.Memory() == nil {
		return nil, errors.Wrap(ErrMissingExport, ExportMemory)
	}
	m.memory = ext.Memory()

	funcs := []struct {
		name string
		dst  **wasmtime.Func
	}{
		{ExportMalloc, &m.malloc},
		{ExportFree, &m.free},
		{ExportApplyPreset, &m.applyPreset},
		{ExportApplyPresetUnrolled, &m.applyPresetUnrolled},
		{ExportHeapUsed, &m.heapUsed},
	}
	for _, f := range funcs {
		fn := instance.GetFunc(store, f.name)
		if fn == nil {
			return nil, errors.Wrap(ErrMissingExport, f.name)
		}
		*f.dst = fn
	}
	return m, nil
}

// readSource returns the module binary, translating text format when needed.
func readSource(cfg Config) ([]byte, error) {
	src := cfg.Source
	if src == nil && cfg.Path != "" {
		data, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, errors.Wrap(err, "read module")
		}
		src = data
	}
	if src == nil {
		src = []byte(embeddedWAT)
	}

	if bytes.HasPrefix(src, wasmMagic) {
		return src, nil
	}
	if cfg.Path != "" && cfg.Source == nil && strings.EqualFold(filepath.Ext(cfg.Path), ".wasm") {
		return nil, errors.Errorf("read module: %s is not a wasm binary", cfg.Path)
	}
	wasm, err := wasmtime.Wat2Wasm(string(src))
	if err != nil {
		return nil, errors.Wrap(err, "translate wat")
	}
	return wasm, nil
}

// Malloc allocates size bytes in the module memory.
//
// Arguments:
//   - size: The number of bytes to allocate.
//
// Returns:
//   - Ptr: The address of the block.
//   - error: ErrOutOfMemory when the module cannot allocate, or a trap.
func (m *Module) Malloc(size int) (Ptr, error) {
	if size < 0 || size > 0x7fff0000 {
		return 0, errors.Wrapf(ErrOutOfMemory, "size %d", size)
	}
	v, err := m.malloc.Call(m.store, int32(size))
	if err != nil {
		return 0, errors.Wrap(err, "call malloc")
	}
	ptr, ok := v.(int32)
	if !ok {
		return 0, errors.Errorf("malloc returned %T", v)
	}
	if ptr == 0 {
		return 0, errors.Wrapf(ErrOutOfMemory, "size %d", size)
	}
	return Ptr(uint32(ptr)), nil
}

// Free releases a block returned by Malloc.
func (m *Module) Free(ptr Ptr) error {
	if _, err := m.free.Call(m.store, int32(ptr)); err != nil {
		return errors.Wrap(err, "call free")
	}
	return nil
}

// HeapUsed reports the bytes currently held by the module allocator, headers included.
func (m *Module) HeapUsed() (int, error) {
	v, err := m.heapUsed.Call(m.store)
	if err != nil {
		return 0, errors.Wrap(err, "call heapUsed")
	}
	n, ok := v.(int32)
	if !ok {
		return 0, errors.Errorf("heapUsed returned %T", v)
	}
	return int(n), nil
}

// MemorySize returns the current size of the module memory in bytes.
func (m *Module) MemorySize() int {
	return int(m.memory.DataSize(m.store))
}

// span returns the slice of module memory [ptr, ptr+n). The slice is only valid until
// the next call into the module, which may grow and move the memory.
func (m *Module) span(ptr Ptr, n int) ([]byte, error) {
	data := m.memory.UnsafeData(m.store)
	start := int(ptr)
	if n < 0 || start > len(data) || len(data)-start < n {
		return nil, errors.Wrapf(ErrOutOfBounds, "[%d, %d+%d) of %d", start, start, n, len(data))
	}
	return data[start : start+n], nil
}

// Write copies src into the module memory at ptr.
func (m *Module) Write(ptr Ptr, src []byte) error {
	dst, err := m.span(ptr, len(src))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// Read copies len(dst) bytes out of the module memory at ptr.
func (m *Module) Read(ptr Ptr, dst []byte) error {
	src, err := m.span(ptr, len(dst))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// WriteFloat32s stores vals as little-endian f32 values starting at ptr.
func (m *Module) WriteFloat32s(ptr Ptr, vals []float32) error {
	dst, err := m.span(ptr, len(vals)*4)
	if err != nil {
		return err
	}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
	return nil
}

// Apply invokes the exported filter routine on buffers already in module memory.
//
// Arguments:
//   - args: Pointers, dimensions and scalar parameters.
//   - unrolled: Use the four-pixels-per-iteration variant.
//
// Returns:
//   - error: A trap raised by the routine.
func (m *Module) Apply(args ApplyArgs, unrolled bool) error {
	fn := m.applyPreset
	if unrolled {
		fn = m.applyPresetUnrolled
	}
	_, err := fn.Call(m.store,
		int32(args.Pixels), args.Width, args.Height, int32(args.Matrix),
		args.Saturation, args.Contrast, args.Brightness, args.Gamma,
	)
	if err != nil {
		return errors.Wrap(err, "call applyPreset")
	}
	return nil
}

// EmbeddedSource returns the text of the module shipped with this package.
func EmbeddedSource() []byte {
	return []byte(embeddedWAT)
}

// Close releases the module store. The module must not be used afterwards; closing
// twice is a no-op.
func (m *Module) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.store.Close()
}
