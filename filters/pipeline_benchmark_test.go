package filters

import (
	"testing"

	"github.com/nvr-ai/filterbench/presets"
)

func benchmarkApply(b *testing.B, w, h int) {
	buf := genBuffer(w, h, 1)
	p := presets.Identity()
	p.Saturation = 1.2
	p.Gamma = 0.9
	b.SetBytes(int64(len(buf.Pix)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ApplyPixels(buf.Pix, &p)
	}
}

func BenchmarkApply_640x480(b *testing.B)   { benchmarkApply(b, 640, 480) }
func BenchmarkApply_1280x720(b *testing.B)  { benchmarkApply(b, 1280, 720) }
func BenchmarkApply_1920x1080(b *testing.B) { benchmarkApply(b, 1920, 1080) }
