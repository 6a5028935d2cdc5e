package nn

import (
	"fmt"

	"github.com/born-ml/vision/internal/tensor"
)

// LayerNorm2D normalizes a [N, C, H, W] feature map over the channel axis at
// every spatial position:
//
//	mean = mean_c(x)
//	var  = mean_c((x - mean)^2)
//	y    = (x - mean) / sqrt(var + eps) * scale[c] + shift[c]
//
// The variance is the population (biased) one. Scale starts at ones and shift
// at zeros.
type LayerNorm2D[B tensor.Backend] struct {
	channels int
	eps      float64
	scale    *Parameter[B] // [C]
	shift    *Parameter[B] // [C]
	backend  B
}

// NewLayerNorm2D creates a channel-wise layer normalization for feature maps
// with the given number of channels.
func NewLayerNorm2D[B tensor.Backend](channels int, eps float64, backend B) (*LayerNorm2D[B], error) {
	if channels <= 0 {
		return nil, invalidf("layernorm2d: channels must be positive, got %d", channels)
	}
	if !(eps > 0) {
		return nil, invalidf("layernorm2d: eps must be positive, got %g", eps)
	}
	return &LayerNorm2D[B]{
		channels: channels,
		eps:      eps,
		scale:    NewParameter("scale", tensor.Ones[float32](tensor.Shape{channels}, backend)),
		shift:    NewParameter("shift", tensor.Zeros[float32](tensor.Shape{channels}, backend)),
		backend:  backend,
	}, nil
}

// Normalize returns (x - mean) / sqrt(var + eps) without the affine step.
func (ln *LayerNorm2D[B]) Normalize(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("layernorm2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != ln.channels {
		panic(fmt.Sprintf("layernorm2d: input channels %d != expected %d", shape[1], ln.channels))
	}

	mean := input.MeanDim(1, true)
	centered := input.Sub(mean)
	variance := centered.Mul(centered).MeanDim(1, true)
	return centered.Mul(variance.AddScalar(ln.eps).Rsqrt())
}

// Forward normalizes the input and applies the per-channel scale and shift.
func (ln *LayerNorm2D[B]) Forward(_ Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	normalized := ln.Normalize(input)
	scale := ln.scale.Tensor().Reshape(1, ln.channels, 1, 1)
	shift := ln.shift.Tensor().Reshape(1, ln.channels, 1, 1)
	return normalized.Mul(scale).Add(shift)
}

// Parameters returns [scale, shift].
func (ln *LayerNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{ln.scale, ln.shift}
}

// Scale returns the per-channel scale parameter.
func (ln *LayerNorm2D[B]) Scale() *Parameter[B] {
	return ln.scale
}

// Shift returns the per-channel shift parameter.
func (ln *LayerNorm2D[B]) Shift() *Parameter[B] {
	return ln.shift
}

// Eps returns the numerical-stability constant.
func (ln *LayerNorm2D[B]) Eps() float64 {
	return ln.eps
}
