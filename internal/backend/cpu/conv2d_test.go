package cpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/vision/internal/tensor"
)

func randomRaw(shape tensor.Shape, rng *rand.Rand) *tensor.RawTensor {
	r := tensor.MustNewRaw(shape, tensor.Float64, tensor.CPU)
	for i := range r.AsFloat64() {
		r.AsFloat64()[i] = rng.NormFloat64()
	}
	return r
}

// referenceConv2D is the textbook definition, used to check the optimized paths.
func referenceConv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) []float64 {
	is, ks := input.Shape(), kernel.Shape()
	n, cin, h, w := is[0], is[1], is[2], is[3]
	cout, inPerG, kh, kw := ks[0], ks[1], ks[2], ks[3]
	outPerG := cout / groups
	hout := (h+2*padding-kh)/stride + 1
	wout := (w+2*padding-kw)/stride + 1
	in, k := input.AsFloat64(), kernel.AsFloat64()
	out := make([]float64, n*cout*hout*wout)
	for b := 0; b < n; b++ {
		for co := 0; co < cout; co++ {
			g := co / outPerG
			for oh := 0; oh < hout; oh++ {
				for ow := 0; ow < wout; ow++ {
					var sum float64
					for cl := 0; cl < inPerG; cl++ {
						ci := g*inPerG + cl
						for i := 0; i < kh; i++ {
							for j := 0; j < kw; j++ {
								ih, iw := oh*stride-padding+i, ow*stride-padding+j
								if ih < 0 || ih >= h || iw < 0 || iw >= w {
									continue
								}
								sum += in[((b*cin+ci)*h+ih)*w+iw] * k[((co*inPerG+cl)*kh+i)*kw+j]
							}
						}
					}
					out[((b*cout+co)*hout+oh)*wout+ow] = sum
				}
			}
		}
	}
	return out
}

func TestConv2D_MatchesReference(t *testing.T) {
	tests := []struct {
		name                    string
		input, kernel           tensor.Shape
		stride, padding, groups int
		wantOut                 tensor.Shape
	}{
		{"dense 3x3 same", tensor.Shape{2, 3, 5, 5}, tensor.Shape{4, 3, 3, 3}, 1, 1, 1, tensor.Shape{2, 4, 5, 5}},
		{"depthwise 7x7 same", tensor.Shape{2, 6, 8, 8}, tensor.Shape{6, 1, 7, 7}, 1, 3, 6, tensor.Shape{2, 6, 8, 8}},
		{"grouped", tensor.Shape{1, 4, 6, 6}, tensor.Shape{6, 2, 3, 3}, 1, 1, 2, tensor.Shape{1, 6, 6, 6}},
		{"pointwise", tensor.Shape{3, 5, 4, 4}, tensor.Shape{7, 5, 1, 1}, 1, 0, 1, tensor.Shape{3, 7, 4, 4}},
		{"patchify stride 2", tensor.Shape{2, 3, 8, 8}, tensor.Shape{4, 3, 2, 2}, 2, 0, 1, tensor.Shape{2, 4, 4, 4}},
		{"strided pointwise", tensor.Shape{1, 4, 6, 6}, tensor.Shape{8, 4, 1, 1}, 2, 0, 1, tensor.Shape{1, 8, 3, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			input := randomRaw(tt.input, rng)
			kernel := randomRaw(tt.kernel, rng)
			for _, workers := range []int{1, 4} {
				got := New(WithWorkers(workers)).Conv2D(input, kernel, tt.stride, tt.padding, tt.groups)
				require.Equal(t, tt.wantOut, got.Shape())
				assert.InDeltaSlice(t, referenceConv2D(input, kernel, tt.stride, tt.padding, tt.groups),
					got.AsFloat64(), 1e-9, "workers=%d", workers)
			}
		})
	}
}

func TestConv2D_Float32PointwiseUsesSameMath(t *testing.T) {
	cpu := New()
	input := tensor.MustNewRaw(tensor.Shape{1, 2, 1, 2}, tensor.Float32, tensor.CPU)
	copy(input.AsFloat32(), []float32{1, 2, 3, 4})
	kernel := tensor.MustNewRaw(tensor.Shape{1, 2, 1, 1}, tensor.Float32, tensor.CPU)
	copy(kernel.AsFloat32(), []float32{10, 100})

	got := cpu.Conv2D(input, kernel, 1, 0, 1)
	assert.Equal(t, tensor.Shape{1, 1, 1, 2}, got.Shape())
	assert.Equal(t, []float32{310, 420}, got.AsFloat32())
}

func TestConv2D_ShapeErrors(t *testing.T) {
	cpu := New()
	input := tensor.MustNewRaw(tensor.Shape{1, 4, 5, 5}, tensor.Float32, tensor.CPU)

	assert.Panics(t, func() {
		cpu.Conv2D(input, tensor.MustNewRaw(tensor.Shape{4, 3, 3, 3}, tensor.Float32, tensor.CPU), 1, 1, 1)
	}, "kernel channel mismatch")
	assert.Panics(t, func() {
		cpu.Conv2D(input, tensor.MustNewRaw(tensor.Shape{4, 1, 3, 3}, tensor.Float32, tensor.CPU), 1, 1, 3)
	}, "groups not dividing channels")
	assert.Panics(t, func() {
		cpu.Conv2D(input, tensor.MustNewRaw(tensor.Shape{4, 4, 9, 9}, tensor.Float32, tensor.CPU), 1, 0, 1)
	}, "kernel larger than padded input")
	assert.Panics(t, func() {
		cpu.Conv2D(tensor.MustNewRaw(tensor.Shape{4, 5, 5}, tensor.Float32, tensor.CPU),
			tensor.MustNewRaw(tensor.Shape{4, 4, 3, 3}, tensor.Float32, tensor.CPU), 1, 1, 1)
	}, "3D input")
}
