package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/vision/internal/tensor"
)

// RandOrDefault returns rng, or a new source seeded from the global one when
// rng is nil.
func RandOrDefault(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	//nolint:gosec // weight initialization is not security sensitive
	return rand.New(rand.NewSource(rand.Int63()))
}

// Uniform creates a tensor with values drawn from U(-bound, bound).
func Uniform[B tensor.Backend](shape tensor.Shape, bound float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2 - 1) * bound)
	}
	return t
}

// KaimingUniform draws weights from U(-1/√fanIn, 1/√fanIn), the default
// initialization of convolution and linear layers (Kaiming uniform with
// a = √5).
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return Uniform(shape, 1/math.Sqrt(float64(fanIn)), rng, backend)
}

// Xavier (Glorot) initialization: U(-√(6/(fanIn+fanOut)), √(6/(fanIn+fanOut))).
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return Uniform(shape, math.Sqrt(6.0/float64(fanIn+fanOut)), rng, backend)
}

// TruncNormal draws from N(0, std²) resampling values outside ±2·std.
// ConvNeXt initializes its convolution and linear weights this way with
// std = 0.02.
func TruncNormal[B tensor.Backend](shape tensor.Shape, std float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		v := rng.NormFloat64()
		for math.Abs(v) > 2 {
			v = rng.NormFloat64()
		}
		data[i] = float32(v * std)
	}
	return t
}
