package nn

import (
	"github.com/born-ml/vision/internal/tensor"
)

// GELU applies the Gaussian Error Linear Unit element-wise:
//
//	GELU(x) = 0.5 * x * (1 + erf(x / √2))
//
// The exact form is used, not the tanh approximation.
type GELU[B tensor.Backend] struct {
	backend B
}

// NewGELU creates a new GELU activation.
func NewGELU[B tensor.Backend](backend B) *GELU[B] {
	return &GELU[B]{backend: backend}
}

// Forward applies GELU.
func (g *GELU[B]) Forward(_ Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](g.backend.GELU(input.Raw()), g.backend)
}

// Parameters returns nil; GELU has none.
func (g *GELU[B]) Parameters() []*Parameter[B] {
	return nil
}

// ReLU applies max(0, x) element-wise.
type ReLU[B tensor.Backend] struct {
	backend B
}

// NewReLU creates a new ReLU activation.
func NewReLU[B tensor.Backend](backend B) *ReLU[B] {
	return &ReLU[B]{backend: backend}
}

// Forward applies ReLU.
func (r *ReLU[B]) Forward(_ Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](r.backend.ReLU(input.Raw()), r.backend)
}

// Parameters returns nil; ReLU has none.
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}
