package nn

import (
	"fmt"

	"github.com/born-ml/vision/internal/tensor"
)

// DropPath implements stochastic depth on a per-sample basis.
//
// In a training pass each sample of the batch is kept with probability 1-p
// and rescaled by 1/(1-p), or zeroed entirely. All non-batch elements of a
// sample share the same draw. In evaluation, or when p is 0, the input is
// returned unchanged.
type DropPath[B tensor.Backend] struct {
	p       float64
	backend B
}

// NewDropPath creates a DropPath with drop probability p in [0, 1).
func NewDropPath[B tensor.Backend](p float64, backend B) (*DropPath[B], error) {
	if !(p >= 0 && p < 1) {
		return nil, invalidf("droppath: probability must be in [0, 1), got %g", p)
	}
	return &DropPath[B]{p: p, backend: backend}, nil
}

// Forward applies the per-sample mask in training mode.
//
// Panics if a training pass with p > 0 carries no random source.
func (d *DropPath[B]) Forward(pass Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !pass.Training() || d.p == 0 {
		return input
	}
	if pass.Rand == nil {
		panic("droppath: training pass without a random source")
	}

	shape := input.Shape()
	if len(shape) == 0 {
		panic("droppath: expected input with a batch dimension, got a scalar")
	}
	maskShape := make(tensor.Shape, len(shape))
	maskShape[0] = shape[0]
	for i := 1; i < len(maskShape); i++ {
		maskShape[i] = 1
	}

	keep := 1 - d.p
	scale := float32(1 / keep)
	mask := tensor.Zeros[float32](maskShape, d.backend)
	data := mask.Data()
	for i := range data {
		if pass.Rand.Float64() < keep {
			data[i] = scale
		}
	}
	return input.Mul(mask)
}

// Parameters returns nil; DropPath has none.
func (d *DropPath[B]) Parameters() []*Parameter[B] {
	return nil
}

// P returns the drop probability.
func (d *DropPath[B]) P() float64 {
	return d.p
}

// String returns a string representation of the layer.
func (d *DropPath[B]) String() string {
	return fmt.Sprintf("DropPath(p=%g)", d.p)
}
