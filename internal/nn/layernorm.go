package nn

import (
	"fmt"

	"github.com/born-ml/vision/internal/tensor"
)

// LayerNorm normalizes over the last dimension of its input:
//
//	y = (x - mean(x)) / sqrt(var(x) + eps) * scale + shift
//
// It is the token normalization of transformer blocks; LayerNorm2D is the
// feature-map counterpart.
type LayerNorm[B tensor.Backend] struct {
	features int
	eps      float64
	scale    *Parameter[B] // [features]
	shift    *Parameter[B] // [features]
}

// NewLayerNorm creates a LayerNorm over the given number of features.
func NewLayerNorm[B tensor.Backend](features int, eps float64, backend B) (*LayerNorm[B], error) {
	if features <= 0 {
		return nil, invalidf("layernorm: features must be positive, got %d", features)
	}
	if !(eps > 0) {
		return nil, invalidf("layernorm: eps must be positive, got %g", eps)
	}
	return &LayerNorm[B]{
		features: features,
		eps:      eps,
		scale:    NewParameter("scale", tensor.Ones[float32](tensor.Shape{features}, backend)),
		shift:    NewParameter("shift", tensor.Zeros[float32](tensor.Shape{features}, backend)),
	}, nil
}

// Forward normalizes [..., features] inputs.
func (l *LayerNorm[B]) Forward(_ Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) == 0 || shape[len(shape)-1] != l.features {
		panic(fmt.Sprintf("layernorm: expected last dimension %d, got shape %v", l.features, shape))
	}

	mean := input.MeanDim(-1, true)
	centered := input.Sub(mean)
	variance := centered.Mul(centered).MeanDim(-1, true)
	normalized := centered.Mul(variance.AddScalar(l.eps).Rsqrt())

	// [features] broadcasts against the trailing axis.
	return normalized.Mul(l.scale.Tensor()).Add(l.shift.Tensor())
}

// Parameters returns [scale, shift].
func (l *LayerNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.scale, l.shift}
}

// Scale returns the scale parameter.
func (l *LayerNorm[B]) Scale() *Parameter[B] {
	return l.scale
}

// Shift returns the shift parameter.
func (l *LayerNorm[B]) Shift() *Parameter[B] {
	return l.shift
}
