package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/vision/internal/tensor"
)

// FFN is the position-wise feed-forward network of a transformer block:
//
//	FFN(x) = fc2(GELU(fc1(x)))
//
// fc1 expands dim to hidden features and fc2 projects back.
type FFN[B tensor.Backend] struct {
	fc1 *Linear[B]
	act *GELU[B]
	fc2 *Linear[B]
}

// NewFFN creates a feed-forward network dim → hidden → dim.
func NewFFN[B tensor.Backend](dim, hidden int, backend B, rng *rand.Rand) (*FFN[B], error) {
	rng = RandOrDefault(rng)
	fc1, err := NewLinear(dim, hidden, backend, rng)
	if err != nil {
		return nil, err
	}
	fc2, err := NewLinear(hidden, dim, backend, rng)
	if err != nil {
		return nil, err
	}
	Scope[B]("fc1", fc1)
	Scope[B]("fc2", fc2)
	return &FFN[B]{fc1: fc1, act: NewGELU(backend), fc2: fc2}, nil
}

// Forward accepts [batch, dim] or [batch, seq, dim] inputs.
func (f *FFN[B]) Forward(pass Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	switch len(shape) {
	case 2:
	case 3:
		input = input.Reshape(shape[0]*shape[1], shape[2])
	default:
		panic(fmt.Sprintf("ffn: expected 2D or 3D input, got %v", shape))
	}

	h := f.fc2.Forward(pass, f.act.Forward(pass, f.fc1.Forward(pass, input)))
	if len(shape) == 3 {
		h = h.Reshape(shape[0], shape[1], f.fc2.OutFeatures())
	}
	return h
}

// Parameters returns fc1 then fc2.
func (f *FFN[B]) Parameters() []*Parameter[B] {
	return append(f.fc1.Parameters(), f.fc2.Parameters()...)
}
