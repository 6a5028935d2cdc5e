package nn

import (
	"fmt"

	"github.com/born-ml/vision/internal/tensor"
)

// GlobalAvgPool2D averages every channel over its spatial extent:
// [N, C, H, W] → [N, C].
type GlobalAvgPool2D[B tensor.Backend] struct{}

// NewGlobalAvgPool2D creates a global average pooling layer.
func NewGlobalAvgPool2D[B tensor.Backend]() *GlobalAvgPool2D[B] {
	return &GlobalAvgPool2D[B]{}
}

// Forward pools the spatial axes.
func (g *GlobalAvgPool2D[B]) Forward(_ Pass, input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if rank := len(input.Shape()); rank != 4 {
		panic(fmt.Sprintf("globalavgpool2d: expected 4D input [N,C,H,W], got %dD", rank))
	}
	return input.MeanDim(3, false).MeanDim(2, false)
}

// Parameters returns nil.
func (g *GlobalAvgPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}
